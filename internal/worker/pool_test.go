package worker

import (
	"context"
	"testing"
	"time"

	"github.com/usaspending/data-broker/internal/clients/queue"
	"github.com/usaspending/data-broker/internal/data/repos"
	"github.com/usaspending/data-broker/internal/data/repos/testutil"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/generation"
	"github.com/usaspending/data-broker/internal/jobgraph"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/validation"
)

// memQueue records enqueues in place of redis.
type memQueue struct {
	messages []*queue.Message
}

func (m *memQueue) Enqueue(_ context.Context, q string, attrs map[string]string) error {
	m.messages = append(m.messages, &queue.Message{
		Queue:      q,
		Attributes: attrs,
		EnqueuedAt: time.Now().UTC(),
	})
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

func newTestPool(t *testing.T) (*Pool, *memQueue, *jobgraph.Graph, *repos.All, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	log := testutil.Logger(t)
	all := repos.NewAll(db, log)
	wq := &memQueue{}
	graph := jobgraph.New(db, log, all.Jobs, all.Deps, wq)
	validator := validation.New(db, log, all, nil, graph)
	builder := generation.NewBuilder(db, log, all, nil, nil)
	coordinator := generation.NewCoordinator(db, log, all, nil, wq, graph)
	pool := NewPool(db, log, all, wq, graph, validator, builder, coordinator)
	return pool, wq, graph, all, dbc
}

// A generation job dispatched by graph advancement carries no
// file_generation_id; processing it must resolve a generation and
// enqueue the produced id rather than fail.
func TestProcessAdvancedGenerationJob(t *testing.T) {
	pool, wq, graph, all, dbc := newTestPool(t)

	testutil.SeedAgency(t, dbc.Ctx, dbc.Tx, "097", false)
	sub := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 4, types.KindDABS)

	d1Val := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeCSVValidation, types.FileTypeD1, types.StatusFinished)
	d2Val := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeCSVValidation, types.FileTypeD2, types.StatusRunning)
	genE := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, sub.ID, types.JobTypeFileGen, types.FileTypeE, types.StatusWaiting)
	testutil.SeedDependency(t, dbc.Ctx, dbc.Tx, genE.ID, d1Val.ID)
	testutil.SeedDependency(t, dbc.Ctx, dbc.Tx, genE.ID, d2Val.ID)

	// Finishing the second D validation advances and enqueues E.
	if err := graph.MarkStatus(dbc, d2Val.ID, types.StatusFinished, nil); err != nil {
		t.Fatalf("finish d2 validation: %v", err)
	}
	if len(wq.messages) != 1 {
		t.Fatalf("expected one advancement message, got %d", len(wq.messages))
	}
	msg := wq.messages[0]
	if msg.Queue != queue.QueueGeneration {
		t.Fatalf("queue = %s", msg.Queue)
	}
	if msg.Attributes["file_generation_id"] != "" {
		t.Fatalf("advancement message should carry no generation id: %v", msg.Attributes)
	}

	// The consumer claims the job before processing.
	claimed, err := all.Jobs.TransitionStatus(dbc, genE.ID,
		[]types.JobStatus{types.StatusReady, types.StatusRunning}, types.StatusRunning, nil)
	if err != nil || !claimed {
		t.Fatalf("claim: moved=%v err=%v", claimed, err)
	}
	job, err := all.Jobs.GetByID(dbc, genE.ID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}

	if err := pool.process(dbc, msg, job); err != nil {
		t.Fatalf("process: %v", err)
	}

	job, err = all.Jobs.GetByID(dbc, genE.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if job.FileGenerationID == nil {
		t.Fatal("job not attached to a generation")
	}
	gen, err := all.FileGen.GetByID(dbc, *job.FileGenerationID)
	if err != nil || gen == nil {
		t.Fatalf("load generation: %v (%v)", err, gen)
	}
	if gen.FileType != types.FileTypeE || gen.AgencyRole != types.RoleNone {
		t.Fatalf("generation identity = %s/%q", gen.FileType, gen.AgencyRole)
	}
	wantStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	if !gen.StartDate.Equal(wantStart) || !gen.EndDate.Equal(wantEnd) {
		t.Fatalf("generation window = %s to %s", gen.StartDate, gen.EndDate)
	}

	// The cache miss enqueues exactly one follow-up carrying the id.
	if len(wq.messages) != 2 {
		t.Fatalf("expected a follow-up message, got %d total", len(wq.messages))
	}
	followUp := wq.messages[1]
	if followUp.Queue != queue.QueueGeneration {
		t.Fatalf("follow-up queue = %s", followUp.Queue)
	}
	if followUp.Attributes["file_generation_id"] != gen.ID.String() {
		t.Fatalf("follow-up generation id = %q", followUp.Attributes["file_generation_id"])
	}
}
