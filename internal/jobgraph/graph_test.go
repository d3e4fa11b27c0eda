package jobgraph

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/usaspending/data-broker/internal/clients/queue"
	"github.com/usaspending/data-broker/internal/data/repos"
	"github.com/usaspending/data-broker/internal/data/repos/testutil"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/errs"
)

// memQueue records enqueues in place of redis.
type memQueue struct {
	enqueued []map[string]string
	queues   []string
}

func (m *memQueue) Enqueue(_ context.Context, q string, attrs map[string]string) error {
	m.enqueued = append(m.enqueued, attrs)
	m.queues = append(m.queues, q)
	return nil
}

func (m *memQueue) Claim(context.Context, string, time.Duration) (*queue.Message, error) {
	return nil, nil
}
func (m *memQueue) Ack(context.Context, *queue.Message) error     { return nil }
func (m *memQueue) Backout(context.Context, *queue.Message) error { return nil }
func (m *memQueue) ReapStale(context.Context, string, time.Duration) (int, error) {
	return 0, nil
}
func (m *memQueue) Close() error { return nil }

func newTestGraph(t *testing.T) (*Graph, *memQueue, dbctx.Context, *types.Submission) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	all := repos.NewAll(db, log)
	wq := &memQueue{}
	g := New(db, log, all.Jobs, all.Deps, wq)

	testutil.SeedAgency(t, ctx, tx, "097", false)
	sub := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)
	return g, wq, dbc, sub
}

func jobsByKey(jobs []*types.Job) map[string]*types.Job {
	out := make(map[string]*types.Job, len(jobs))
	for _, j := range jobs {
		out[string(j.JobType)+"/"+string(j.FileType)] = j
	}
	return out
}

func TestCreateDABSJobs(t *testing.T) {
	g, _, dbc, sub := newTestGraph(t)

	jobs, err := g.CreateSubmissionJobs(dbc, sub)
	if err != nil {
		t.Fatalf("create jobs: %v", err)
	}
	if len(jobs) != 13 {
		t.Fatalf("expected 13 jobs, got %d", len(jobs))
	}
	byKey := jobsByKey(jobs)

	for _, ft := range []types.FileType{types.FileTypeA, types.FileTypeB, types.FileTypeC} {
		upload, ok := byKey["file_upload/"+string(ft)]
		if !ok || upload.Status != types.StatusReady {
			t.Fatalf("upload %s missing or not ready: %+v", ft, upload)
		}
		validate, ok := byKey["csv_record_validation/"+string(ft)]
		if !ok || validate.Status != types.StatusWaiting {
			t.Fatalf("validation %s missing or not waiting: %+v", ft, validate)
		}
	}
	for _, ft := range []types.FileType{types.FileTypeD1, types.FileTypeD2} {
		gen, ok := byKey["file_generation/"+string(ft)]
		if !ok || gen.Status != types.StatusReady {
			t.Fatalf("generation %s missing or not ready: %+v", ft, gen)
		}
	}
	if genE := byKey["file_generation/"+string(types.FileTypeE)]; genE == nil || genE.Status != types.StatusWaiting {
		t.Fatalf("E generation should wait on D validations: %+v", genE)
	}
	if genF := byKey["file_generation/"+string(types.FileTypeF)]; genF == nil || genF.Status != types.StatusReady {
		t.Fatalf("F generation should start immediately: %+v", genF)
	}

	cross := byKey["validation/"+string(types.FileTypeCross)]
	if cross == nil || cross.Status != types.StatusWaiting {
		t.Fatalf("cross job missing or not waiting: %+v", cross)
	}
	prereqs, err := g.deps.PrerequisitesOf(dbc, cross.ID)
	if err != nil {
		t.Fatalf("cross prereqs: %v", err)
	}
	if len(prereqs) != 5 {
		t.Fatalf("cross job should root on 5 validations, got %d", len(prereqs))
	}
}

func TestCreateFABSJobs(t *testing.T) {
	g, _, dbc, _ := newTestGraph(t)
	sub := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 4, types.KindFABS)

	jobs, err := g.CreateSubmissionJobs(dbc, sub)
	if err != nil {
		t.Fatalf("create jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected upload+validate pair, got %d jobs", len(jobs))
	}
	byKey := jobsByKey(jobs)
	if byKey["file_upload/"+string(types.FileTypeFABS)] == nil {
		t.Fatal("missing FABS upload job")
	}
	if byKey["csv_record_validation/"+string(types.FileTypeFABS)] == nil {
		t.Fatal("missing FABS validation job")
	}
}

func TestAdvanceOnFinish(t *testing.T) {
	g, wq, dbc, sub := newTestGraph(t)

	upload := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeFileUpload, types.FileTypeA, types.StatusRunning)
	validate := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeCSVValidation, types.FileTypeA, types.StatusWaiting)
	testutil.SeedDependency(t, dbc.Ctx, dbc.Tx, validate.ID, upload.ID)

	if err := g.MarkStatus(dbc, upload.ID, types.StatusFinished, nil); err != nil {
		t.Fatalf("mark finished: %v", err)
	}

	got, err := g.jobs.GetByID(dbc, validate.ID)
	if err != nil {
		t.Fatalf("get dependent: %v", err)
	}
	if got.Status != types.StatusReady {
		t.Fatalf("dependent status = %s, want ready", got.Status)
	}
	if len(wq.enqueued) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(wq.enqueued))
	}
	if wq.queues[0] != queue.QueueValidation {
		t.Fatalf("queue = %s", wq.queues[0])
	}
	if wq.enqueued[0]["job_id"] != validate.ID.String() {
		t.Fatalf("enqueued job = %s", wq.enqueued[0]["job_id"])
	}
}

func TestAdvanceHoldsOnErrors(t *testing.T) {
	g, wq, dbc, sub := newTestGraph(t)

	d1Val := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeCSVValidation, types.FileTypeD1, types.StatusRunning)
	genE := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeFileGen, types.FileTypeE, types.StatusWaiting)
	testutil.SeedDependency(t, dbc.Ctx, dbc.Tx, genE.ID, d1Val.ID)

	if err := g.MarkStatus(dbc, d1Val.ID, types.StatusFinished, map[string]interface{}{"number_of_errors": 2}); err != nil {
		t.Fatalf("mark finished: %v", err)
	}

	got, err := g.jobs.GetByID(dbc, genE.ID)
	if err != nil {
		t.Fatalf("get dependent: %v", err)
	}
	if got.Status != types.StatusWaiting {
		t.Fatalf("dependent advanced past a prerequisite with errors: %s", got.Status)
	}
	if len(wq.enqueued) != 0 {
		t.Fatalf("expected no enqueue, got %d", len(wq.enqueued))
	}
}

func TestFailureCascades(t *testing.T) {
	g, _, dbc, sub := newTestGraph(t)

	upload := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeFileUpload, types.FileTypeA, types.StatusRunning)
	validate := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeCSVValidation, types.FileTypeA, types.StatusWaiting)
	cross := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeValidation, types.FileTypeCross, types.StatusWaiting)
	testutil.SeedDependency(t, dbc.Ctx, dbc.Tx, validate.ID, upload.ID)
	testutil.SeedDependency(t, dbc.Ctx, dbc.Tx, cross.ID, validate.ID)

	if err := g.MarkStatus(dbc, upload.ID, types.StatusFailed, map[string]interface{}{"error_message": "upload lost"}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	for _, id := range []uuid.UUID{validate.ID, cross.ID} {
		got, err := g.jobs.GetByID(dbc, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != types.StatusFailed {
			t.Fatalf("job %s status = %s, want failed", id, got.Status)
		}
		if got.ErrorMessage == "" {
			t.Fatalf("job %s has no cascade message", id)
		}
	}
}

func TestMarkStatusConflictOnTerminalJob(t *testing.T) {
	g, _, dbc, sub := newTestGraph(t)

	job := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeCSVValidation, types.FileTypeA, types.StatusFinished)
	err := g.MarkStatus(dbc, job.ID, types.StatusRunning, nil)
	if !errs.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
