package generation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/usaspending/data-broker/internal/clients/queue"
	"github.com/usaspending/data-broker/internal/data/repos"
	"github.com/usaspending/data-broker/internal/data/repos/testutil"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/jobgraph"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
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

func newTestCoordinator(t *testing.T) (*Coordinator, *memQueue, *repos.All, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	log := testutil.Logger(t)
	all := repos.NewAll(db, log)
	wq := &memQueue{}
	graph := jobgraph.New(db, log, all.Jobs, all.Deps, wq)
	return NewCoordinator(db, log, all, nil, wq, graph), wq, all, dbc
}

// A fresh cache hit attaches the job without enqueueing, carrying over
// the artifact name and the row, error and warning counts the winning
// generation produced.
func TestStartGenerationCacheHitCopiesCounts(t *testing.T) {
	c, wq, all, dbc := newTestCoordinator(t)

	testutil.SeedAgency(t, dbc.Ctx, dbc.Tx, "097", false)
	winnerSub := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 4, types.KindDABS)
	winner := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, winnerSub.ID, types.JobTypeFileGen, types.FileTypeD1, types.StatusFinished)
	if err := all.Jobs.UpdateFields(dbc, winner.ID, map[string]interface{}{
		"number_of_errors":   3,
		"number_of_warnings": 7,
	}); err != nil {
		t.Fatalf("update winner: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	cached := &types.FileGeneration{
		ID:          uuid.New(),
		RequestDate: time.Now().UTC(),
		FileType:    types.FileTypeD1,
		AgencyCode:  "097",
		AgencyRole:  types.RoleAwarding,
		StartDate:   start,
		EndDate:     end,
		ParentJobID: &winner.ID,
	}
	if _, err := all.FileGen.Create(dbc, cached); err != nil {
		t.Fatalf("create generation: %v", err)
	}
	if err := all.FileGen.MarkCached(dbc, cached.ID, "generated/d1_097.csv", 42); err != nil {
		t.Fatalf("mark cached: %v", err)
	}

	laterSub := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 5, types.KindDABS)
	job := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, laterSub.ID, types.JobTypeFileGen, types.FileTypeD1, types.StatusRunning)

	gen, err := c.StartGeneration(dbc, job, "01/01/2024", "01/31/2024", "097", types.RoleAwarding)
	if err != nil {
		t.Fatalf("start generation: %v", err)
	}
	if gen.ID != cached.ID {
		t.Fatalf("resolved generation %s, want cached %s", gen.ID, cached.ID)
	}
	if len(wq.messages) != 0 {
		t.Fatalf("cache hit enqueued %d messages", len(wq.messages))
	}

	got, err := all.Jobs.GetByID(dbc, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if got.Status != types.StatusFinished {
		t.Fatalf("status = %s", got.Status)
	}
	if got.FileGenerationID == nil || *got.FileGenerationID != cached.ID {
		t.Fatalf("file generation id = %v", got.FileGenerationID)
	}
	if got.Filename != "generated/d1_097.csv" || got.NumberOfRows != 42 {
		t.Fatalf("artifact = %q (%d rows)", got.Filename, got.NumberOfRows)
	}
	if got.NumberOfErrors != 3 || got.NumberOfWarnings != 7 {
		t.Fatalf("counts = %d errors, %d warnings, want the winner's",
			got.NumberOfErrors, got.NumberOfWarnings)
	}
}
