package jobgraph

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/clients/queue"
	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/errs"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// Graph maintains the per-submission job DAG and advances jobs through
// the status machine:
//
//	waiting → ready   (prereqs met)
//	ready   → running (dispatcher picks up)
//	running → finished | failed | invalid
type Graph struct {
	db    *gorm.DB
	log   *logger.Logger
	jobs  repos.JobRepo
	deps  repos.JobDependencyRepo
	queue queue.WorkQueue
}

func New(db *gorm.DB, baseLog *logger.Logger, jobs repos.JobRepo, deps repos.JobDependencyRepo, wq queue.WorkQueue) *Graph {
	return &Graph{
		db:    db,
		log:   baseLog.With("service", "JobGraph"),
		jobs:  jobs,
		deps:  deps,
		queue: wq,
	}
}

// dabsUploadFiles are the user-facing upload files of a DABS
// submission.
var dabsUploadFiles = []types.FileType{types.FileTypeA, types.FileTypeB, types.FileTypeC}

// CreateSubmissionJobs builds the DAG for a new submission. DABS gets
// upload+validate pairs for A/B/C, generation+validate for D1/D2,
// generation for E and F, and a cross-file validation job rooted on
// the five validations. FABS gets a single upload+validate pair.
func (g *Graph) CreateSubmissionJobs(dbc dbctx.Context, sub *types.Submission) ([]*types.Job, error) {
	switch sub.Kind {
	case types.KindFABS:
		return g.createFABSJobs(dbc, sub)
	case types.KindDABS:
		return g.createDABSJobs(dbc, sub)
	default:
		return nil, errs.Client("unknown submission kind %q", sub.Kind)
	}
}

func newJob(sub *types.Submission, jobType types.JobType, fileType types.FileType, status types.JobStatus) *types.Job {
	return &types.Job{
		ID:           uuid.New(),
		SubmissionID: sub.ID,
		JobType:      jobType,
		FileType:     fileType,
		Status:       status,
	}
}

func (g *Graph) createFABSJobs(dbc dbctx.Context, sub *types.Submission) ([]*types.Job, error) {
	upload := newJob(sub, types.JobTypeFileUpload, types.FileTypeFABS, types.StatusReady)
	validate := newJob(sub, types.JobTypeCSVValidation, types.FileTypeFABS, types.StatusWaiting)
	jobs := []*types.Job{upload, validate}
	if _, err := g.jobs.Create(dbc, jobs); err != nil {
		return nil, err
	}
	edges := []*types.JobDependency{
		{ID: uuid.New(), JobID: validate.ID, PrerequisiteID: upload.ID},
	}
	if err := g.deps.Create(dbc, edges); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (g *Graph) createDABSJobs(dbc dbctx.Context, sub *types.Submission) ([]*types.Job, error) {
	var jobs []*types.Job
	var edges []*types.JobDependency
	var crossPrereqs []uuid.UUID

	addEdge := func(jobID, prereqID uuid.UUID) {
		edges = append(edges, &types.JobDependency{ID: uuid.New(), JobID: jobID, PrerequisiteID: prereqID})
	}

	for _, ft := range dabsUploadFiles {
		upload := newJob(sub, types.JobTypeFileUpload, ft, types.StatusReady)
		validate := newJob(sub, types.JobTypeCSVValidation, ft, types.StatusWaiting)
		jobs = append(jobs, upload, validate)
		addEdge(validate.ID, upload.ID)
		crossPrereqs = append(crossPrereqs, validate.ID)
	}

	var d1Val, d2Val uuid.UUID
	for _, ft := range []types.FileType{types.FileTypeD1, types.FileTypeD2} {
		generate := newJob(sub, types.JobTypeFileGen, ft, types.StatusReady)
		validate := newJob(sub, types.JobTypeCSVValidation, ft, types.StatusWaiting)
		jobs = append(jobs, generate, validate)
		addEdge(validate.ID, generate.ID)
		crossPrereqs = append(crossPrereqs, validate.ID)
		if ft == types.FileTypeD1 {
			d1Val = validate.ID
		} else {
			d2Val = validate.ID
		}
	}

	// E draws on the D1/D2 staging rows, so it waits on both
	// validations. F reads the subaward table and can start any time.
	genE := newJob(sub, types.JobTypeFileGen, types.FileTypeE, types.StatusWaiting)
	genF := newJob(sub, types.JobTypeFileGen, types.FileTypeF, types.StatusReady)
	jobs = append(jobs, genE, genF)
	addEdge(genE.ID, d1Val)
	addEdge(genE.ID, d2Val)

	cross := newJob(sub, types.JobTypeValidation, types.FileTypeCross, types.StatusWaiting)
	jobs = append(jobs, cross)
	for _, prereq := range crossPrereqs {
		addEdge(cross.ID, prereq)
	}

	if _, err := g.jobs.Create(dbc, jobs); err != nil {
		return nil, err
	}
	if err := g.deps.Create(dbc, edges); err != nil {
		return nil, err
	}
	return jobs, nil
}

// allowedFrom returns the statuses a job may hold immediately before
// moving to the target status.
func allowedFrom(to types.JobStatus) []types.JobStatus {
	switch to {
	case types.StatusReady:
		return []types.JobStatus{types.StatusWaiting, types.StatusReady}
	case types.StatusRunning:
		return []types.JobStatus{types.StatusReady}
	case types.StatusFinished, types.StatusFailed, types.StatusInvalid:
		return []types.JobStatus{types.StatusRunning, types.StatusReady, types.StatusWaiting}
	default:
		return nil
	}
}

// MarkStatus transitions a job and, on finished, evaluates downstream
// jobs. Transitions are one-way; an already-terminal job is left
// untouched and reported as a conflict.
func (g *Graph) MarkStatus(dbc dbctx.Context, jobID uuid.UUID, to types.JobStatus, updates map[string]interface{}) error {
	job, err := g.jobs.GetByID(dbc, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s: %w", jobID, errs.ErrNotFound)
	}
	if to == types.StatusFailed {
		msg := ""
		if updates != nil {
			if m, ok := updates["error_message"].(string); ok {
				msg = m
			}
		}
		if msg == "" {
			if updates == nil {
				updates = map[string]interface{}{}
			}
			updates["error_message"] = FallbackMessage(job.JobType)
		}
	}
	moved, err := g.jobs.TransitionStatus(dbc, jobID, allowedFrom(to), to, updates)
	if err != nil {
		return err
	}
	if !moved {
		return errs.Conflict("job %s cannot move %s -> %s", jobID, job.Status, to)
	}
	// Re-read so Advance sees the counts written by this transition.
	job, err = g.jobs.GetByID(dbc, jobID)
	if err != nil {
		return err
	}
	switch to {
	case types.StatusFinished:
		return g.Advance(dbc, job)
	case types.StatusFailed, types.StatusInvalid:
		return g.cascadeFailure(dbc, job)
	}
	return nil
}

// Advance inspects every dependent of a finished prerequisite: when
// all of a dependent's prerequisites are finished with zero fatal
// errors it moves waiting→ready and is enqueued exactly once (the
// guarded transition arbitrates racing callers).
func (g *Graph) Advance(dbc dbctx.Context, prereq *types.Job) error {
	dependents, err := g.deps.DependentsOf(dbc, prereq.ID)
	if err != nil {
		return err
	}
	for _, dependent := range dependents {
		if dependent.Status != types.StatusWaiting {
			continue
		}
		prereqs, err := g.deps.PrerequisitesOf(dbc, dependent.ID)
		if err != nil {
			return err
		}
		satisfied := true
		for _, p := range prereqs {
			if p.ID == prereq.ID {
				// Re-read below through the fresh prereq we were
				// handed; the joined row may predate the transition.
				p = prereq
			}
			if p.Status != types.StatusFinished || p.NumberOfErrors > 0 {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}
		moved, err := g.jobs.TransitionStatus(dbc, dependent.ID, []types.JobStatus{types.StatusWaiting}, types.StatusReady, nil)
		if err != nil {
			return err
		}
		if !moved {
			continue
		}
		if err := g.EnqueueJob(dbc, dependent); err != nil {
			return err
		}
	}
	return nil
}

// cascadeFailure fails every waiting dependent of a failed or invalid
// prerequisite, transitively.
func (g *Graph) cascadeFailure(dbc dbctx.Context, prereq *types.Job) error {
	dependents, err := g.deps.DependentsOf(dbc, prereq.ID)
	if err != nil {
		return err
	}
	for _, dependent := range dependents {
		if dependent.Status.Terminal() {
			continue
		}
		moved, err := g.jobs.TransitionStatus(dbc, dependent.ID,
			[]types.JobStatus{types.StatusWaiting, types.StatusReady}, types.StatusFailed,
			map[string]interface{}{"error_message": fmt.Sprintf("Prerequisite job did not complete: %s", prereq.FileType)})
		if err != nil {
			return err
		}
		if !moved {
			continue
		}
		dependent.Status = types.StatusFailed
		if err := g.cascadeFailure(dbc, dependent); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueJob dispatches a ready job onto its queue.
func (g *Graph) EnqueueJob(dbc dbctx.Context, job *types.Job) error {
	if g.queue == nil {
		return nil
	}
	queueName := queue.QueueValidation
	if job.JobType == types.JobTypeFileGen {
		queueName = queue.QueueGeneration
	}
	return g.queue.Enqueue(dbc.Ctx, queueName, map[string]string{
		"job_id":        job.ID.String(),
		"submission_id": job.SubmissionID.String(),
		"job_type":      string(job.JobType),
		"file_type":     string(job.FileType),
	})
}

// FallbackMessage is shown when a job fails without capturing a
// specific error, so the user never sees an empty failure.
func FallbackMessage(jobType types.JobType) string {
	switch jobType {
	case types.JobTypeFileUpload:
		return "Upload job failed without error message"
	case types.JobTypeFileGen:
		return "Generation job failed without error message"
	default:
		return "Validation job failed without error message"
	}
}
