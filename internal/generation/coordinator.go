package generation

import (
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/clients/gcs"
	"github.com/usaspending/data-broker/internal/clients/queue"
	"github.com/usaspending/data-broker/internal/data/repos"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/jobgraph"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/errs"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// Coordinator produces D1/D2/E/F artifacts, deduplicating identical
// requests across concurrent submissions through the FileGeneration
// cache.
type Coordinator struct {
	db    *gorm.DB
	log   *logger.Logger
	repos *repos.All
	blob  gcs.BlobStore
	queue queue.WorkQueue
	graph *jobgraph.Graph
}

func NewCoordinator(db *gorm.DB, baseLog *logger.Logger, all *repos.All, blob gcs.BlobStore, wq queue.WorkQueue, graph *jobgraph.Graph) *Coordinator {
	return &Coordinator{
		db:    db,
		log:   baseLog.With("service", "GenerationCoordinator"),
		repos: all,
		blob:  blob,
		queue: wq,
		graph: graph,
	}
}

var generatedFileTypes = map[types.FileType]bool{
	types.FileTypeD1: true,
	types.FileTypeD2: true,
	types.FileTypeE:  true,
	types.FileTypeF:  true,
}

// StartGeneration resolves a generation request against the cache.
// On a fresh cache hit the job attaches to the cached artifact and
// finishes without enqueueing work; otherwise at most one generation
// message is produced per key, however many jobs race.
func (c *Coordinator) StartGeneration(dbc dbctx.Context, job *types.Job, startRaw, endRaw, agencyCode string, role types.AgencyRole) (*types.FileGeneration, error) {
	if !generatedFileTypes[job.FileType] {
		return nil, errs.Client("file type %q is not generated", job.FileType)
	}
	switch job.FileType {
	case types.FileTypeD1, types.FileTypeD2:
		if role != types.RoleAwarding && role != types.RoleFunding {
			return nil, errs.Client("agency role %q is not valid for %s generation", role, job.FileType)
		}
	default:
		role = types.RoleNone
	}
	start, err := types.ParseMMDDYYYY(startRaw)
	if err != nil {
		return nil, errs.Client("start date %q is not a MM/DD/YYYY date", startRaw)
	}
	end, err := types.ParseMMDDYYYY(endRaw)
	if err != nil {
		return nil, errs.Client("end date %q is not a MM/DD/YYYY date", endRaw)
	}
	if end.Before(start) {
		return nil, errs.Client("date range %s to %s is inverted", startRaw, endRaw)
	}

	key := types.GenerationKey{
		FileType:   job.FileType,
		AgencyCode: agencyCode,
		AgencyRole: role,
		Start:      start,
		End:        end,
	}

	if err := c.repos.Jobs.UpdateFields(dbc, job.ID, map[string]interface{}{
		"start_date": start,
		"end_date":   end,
	}); err != nil {
		return nil, err
	}

	cached, err := c.repos.FileGen.FindCached(dbc, key)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		fresh, err := c.cacheFresh(dbc, cached)
		if err != nil {
			return nil, err
		}
		if fresh {
			if err := c.attach(dbc, job, cached); err != nil {
				return nil, err
			}
			return cached, c.reopenIfPublished(dbc, job.SubmissionID)
		}
	}

	gen := &types.FileGeneration{
		ID:          uuid.New(),
		RequestDate: time.Now(),
		FileType:    key.FileType,
		AgencyCode:  key.AgencyCode,
		AgencyRole:  key.AgencyRole,
		StartDate:   key.Start,
		EndDate:     key.End,
		ParentJobID: &job.ID,
	}
	if _, err := c.repos.FileGen.Create(dbc, gen); err != nil {
		return nil, err
	}

	// Insert-then-recheck: if an older in-flight generation for the
	// same key exists, that one is the winner. This job waits on it
	// instead of enqueueing a second pull.
	pending, err := c.repos.FileGen.FindPending(dbc, key)
	if err != nil {
		return nil, err
	}
	target := gen
	enqueue := true
	if pending != nil && pending.ID != gen.ID {
		target = pending
		enqueue = false
	}

	if err := c.repos.Jobs.UpdateFields(dbc, job.ID, map[string]interface{}{
		"file_generation_id": target.ID,
	}); err != nil {
		return nil, err
	}
	if enqueue {
		if err := c.queue.Enqueue(dbc.Ctx, queue.QueueGeneration, map[string]string{
			"job_id":             job.ID.String(),
			"file_generation_id": target.ID.String(),
			"agency_code":        agencyCode,
			"agency_role":        string(role),
		}); err != nil {
			return nil, err
		}
	}
	return target, c.reopenIfPublished(dbc, job.SubmissionID)
}

// cacheFresh applies the D1 freshness gate: a cached D1 row predating
// the latest procurement load cannot satisfy new requests.
func (c *Coordinator) cacheFresh(dbc dbctx.Context, gen *types.FileGeneration) (bool, error) {
	if gen.FileType != types.FileTypeD1 {
		return true, nil
	}
	refreshedAt, err := c.repos.LoadDates.Get(dbc, types.SourceProcurement)
	if err != nil {
		return false, err
	}
	if refreshedAt == nil {
		return true, nil
	}
	return !gen.RequestDate.Before(*refreshedAt), nil
}

// attach finishes a job against a cached artifact, copying the
// filename and every count the original generation produced.
func (c *Coordinator) attach(dbc dbctx.Context, job *types.Job, gen *types.FileGeneration) error {
	updates := map[string]interface{}{
		"file_generation_id": gen.ID,
		"filename":           gen.FilePath,
		"original_filename":  path.Base(gen.FilePath),
		"number_of_rows":     gen.NumberOfRows,
	}
	if gen.ParentJobID != nil {
		parent, err := c.repos.Jobs.GetByID(dbc, *gen.ParentJobID)
		if err != nil {
			return err
		}
		if parent != nil {
			updates["number_of_errors"] = parent.NumberOfErrors
			updates["number_of_warnings"] = parent.NumberOfWarnings
		}
	}
	if err := c.repos.Jobs.UpdateFields(dbc, job.ID, updates); err != nil {
		return err
	}
	return c.graph.MarkStatus(dbc, job.ID, types.StatusFinished, nil)
}

// reopenIfPublished flips a previously published submission back to
// updated and re-arms its cross-file validation, since regenerating a
// file invalidates the published result.
func (c *Coordinator) reopenIfPublished(dbc dbctx.Context, submissionID uuid.UUID) error {
	moved, err := c.repos.Submissions.TransitionPublishState(dbc, submissionID,
		[]types.PublishState{types.StatePublished}, types.StateUpdated)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	cross, err := c.repos.Jobs.GetBySubmissionTypeFile(dbc, submissionID, types.JobTypeValidation, types.FileTypeCross)
	if err != nil {
		return err
	}
	if cross == nil {
		return nil
	}
	return c.repos.Jobs.UpdateFields(dbc, cross.ID, map[string]interface{}{
		"status":         types.StatusWaiting,
		"last_validated": nil,
	})
}

// CompleteGeneration publishes a produced artifact: the row takes the
// cached slot (latest completion wins), and every job waiting on it
// finishes with the artifact's name and counts.
func (c *Coordinator) CompleteGeneration(dbc dbctx.Context, fileGenerationID uuid.UUID, artifactPath string, rowCount int) error {
	if err := c.repos.FileGen.MarkCached(dbc, fileGenerationID, artifactPath, rowCount); err != nil {
		return err
	}
	waiting, err := c.repos.Jobs.GetByGeneration(dbc, fileGenerationID)
	if err != nil {
		return err
	}
	for _, job := range waiting {
		if job.Status.Terminal() {
			continue
		}
		if err := c.repos.Jobs.UpdateFields(dbc, job.ID, map[string]interface{}{
			"filename":          artifactPath,
			"original_filename": path.Base(artifactPath),
			"number_of_rows":    rowCount,
		}); err != nil {
			return err
		}
		if err := c.graph.MarkStatus(dbc, job.ID, types.StatusFinished, nil); err != nil {
			return err
		}
	}
	return nil
}

// FailGeneration un-caches the row, removes any partial artifact and
// fails every attached job with the adapter's message.
func (c *Coordinator) FailGeneration(dbc dbctx.Context, fileGenerationID uuid.UUID, message string) error {
	gen, err := c.repos.FileGen.GetByID(dbc, fileGenerationID)
	if err != nil {
		return err
	}
	if gen == nil {
		return fmt.Errorf("file generation %s: %w", fileGenerationID, errs.ErrNotFound)
	}
	if err := c.repos.FileGen.Uncache(dbc, gen.ID); err != nil {
		return err
	}
	if gen.FilePath != "" {
		// Partial artifact; best effort removal.
		if err := c.blob.Delete(dbc.Ctx, gen.FilePath); err != nil {
			c.log.Warn("could not delete partial artifact", "path", gen.FilePath, "error", err)
		}
	}
	if message == "" {
		message = jobgraph.FallbackMessage(types.JobTypeFileGen)
	}
	attached, err := c.repos.Jobs.GetByGeneration(dbc, gen.ID)
	if err != nil {
		return err
	}
	for _, job := range attached {
		if job.Status.Terminal() {
			continue
		}
		if err := c.graph.MarkStatus(dbc, job.ID, types.StatusFailed, map[string]interface{}{
			"error_message": message,
		}); err != nil {
			return err
		}
	}
	return nil
}
