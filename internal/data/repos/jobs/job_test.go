package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/usaspending/data-broker/internal/data/repos/testutil"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
)

func TestTransitionStatus(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	testutil.SeedAgency(t, ctx, tx, "097", false)
	sub := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)
	job := testutil.SeedJob(t, ctx, tx, sub.ID, types.JobTypeValidation, types.FileTypeA, types.StatusWaiting)

	moved, err := repo.TransitionStatus(dbc, job.ID, []types.JobStatus{types.StatusReady}, types.StatusRunning, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if moved {
		t.Fatal("transition from wrong state should not move")
	}

	moved, err = repo.TransitionStatus(dbc, job.ID, []types.JobStatus{types.StatusWaiting}, types.StatusReady, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !moved {
		t.Fatal("expected waiting -> ready to move")
	}

	started := time.Now().UTC()
	moved, err = repo.TransitionStatus(dbc, job.ID,
		[]types.JobStatus{types.StatusReady, types.StatusRunning},
		types.StatusRunning,
		map[string]interface{}{"started_at": started, "attempts": 1})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !moved {
		t.Fatal("expected ready -> running to move")
	}

	got, err := repo.GetByID(dbc, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.StatusRunning {
		t.Fatalf("status = %s", got.Status)
	}
	if got.StartedAt == nil || got.Attempts != 1 {
		t.Fatalf("claim fields not applied: started=%v attempts=%d", got.StartedAt, got.Attempts)
	}
}

func TestSumCounts(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	testutil.SeedAgency(t, ctx, tx, "097", false)
	sub := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)
	other := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 5, types.KindDABS)

	a := testutil.SeedJob(t, ctx, tx, sub.ID, types.JobTypeValidation, types.FileTypeA, types.StatusFinished)
	b := testutil.SeedJob(t, ctx, tx, sub.ID, types.JobTypeValidation, types.FileTypeB, types.StatusFinished)
	stranger := testutil.SeedJob(t, ctx, tx, other.ID, types.JobTypeValidation, types.FileTypeA, types.StatusFinished)

	if err := repo.UpdateFields(dbc, a.ID, map[string]interface{}{"number_of_errors": 3, "number_of_warnings": 1}); err != nil {
		t.Fatalf("update a: %v", err)
	}
	if err := repo.UpdateFields(dbc, b.ID, map[string]interface{}{"number_of_errors": 0, "number_of_warnings": 4}); err != nil {
		t.Fatalf("update b: %v", err)
	}
	if err := repo.UpdateFields(dbc, stranger.ID, map[string]interface{}{"number_of_errors": 9}); err != nil {
		t.Fatalf("update stranger: %v", err)
	}

	errCount, warnCount, err := repo.SumCounts(dbc, sub.ID)
	if err != nil {
		t.Fatalf("sum counts: %v", err)
	}
	if errCount != 3 || warnCount != 5 {
		t.Fatalf("counts = %d/%d, want 3/5", errCount, warnCount)
	}
}

func TestDependencyEdges(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobDependencyRepo(db, testutil.Logger(t))

	testutil.SeedAgency(t, ctx, tx, "097", false)
	sub := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)
	upload := testutil.SeedJob(t, ctx, tx, sub.ID, types.JobTypeFileUpload, types.FileTypeA, types.StatusFinished)
	validate := testutil.SeedJob(t, ctx, tx, sub.ID, types.JobTypeValidation, types.FileTypeA, types.StatusWaiting)
	cross := testutil.SeedJob(t, ctx, tx, sub.ID, types.JobTypeValidation, types.FileTypeCross, types.StatusWaiting)
	testutil.SeedDependency(t, ctx, tx, validate.ID, upload.ID)
	testutil.SeedDependency(t, ctx, tx, cross.ID, validate.ID)

	prereqs, err := repo.PrerequisitesOf(dbc, validate.ID)
	if err != nil {
		t.Fatalf("prerequisites: %v", err)
	}
	if len(prereqs) != 1 || prereqs[0].ID != upload.ID {
		t.Fatalf("prerequisites = %+v", prereqs)
	}

	dependents, err := repo.DependentsOf(dbc, validate.ID)
	if err != nil {
		t.Fatalf("dependents: %v", err)
	}
	if len(dependents) != 1 || dependents[0].ID != cross.ID {
		t.Fatalf("dependents = %+v", dependents)
	}

	if deps, err := repo.DependentsOf(dbc, cross.ID); err != nil || len(deps) != 0 {
		t.Fatalf("cross dependents = %+v, err %v", deps, err)
	}
}
