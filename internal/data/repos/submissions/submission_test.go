package submissions

import (
	"context"
	"testing"
	"time"

	"github.com/usaspending/data-broker/internal/data/repos/testutil"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
)

func TestTransitionPublishState(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSubmissionRepo(db, testutil.Logger(t))

	testutil.SeedAgency(t, ctx, tx, "097", false)
	sub := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)

	moved, err := repo.TransitionPublishState(dbc, sub.ID, []types.PublishState{types.StateUpdated}, types.StateReverting)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if moved {
		t.Fatal("transition from wrong state should not move")
	}

	moved, err = repo.TransitionPublishState(dbc, sub.ID,
		[]types.PublishState{types.StateUnpublished, types.StateUpdated}, types.StatePublishing)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !moved {
		t.Fatal("expected unpublished -> publishing to move")
	}

	got, err := repo.GetByID(dbc, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PublishState != types.StatePublishing {
		t.Fatalf("state = %s", got.PublishState)
	}

	// A concurrent publisher loses the same race.
	moved, err = repo.TransitionPublishState(dbc, sub.ID,
		[]types.PublishState{types.StateUnpublished, types.StateUpdated}, types.StatePublishing)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if moved {
		t.Fatal("second claim on the same submission should lose")
	}
}

func TestFindForPeriod(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSubmissionRepo(db, testutil.Logger(t))

	testutil.SeedAgency(t, ctx, tx, "097", false)
	published := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)
	if err := repo.UpdateFields(dbc, published.ID, map[string]interface{}{"publish_state": types.StatePublished}); err != nil {
		t.Fatalf("update: %v", err)
	}
	draft := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)
	test := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)
	if err := repo.UpdateFields(dbc, test.ID, map[string]interface{}{"test_flag": true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	testutil.SeedSubmission(t, ctx, tx, "097", 2024, 5, types.KindDABS)

	got, err := repo.FindPublishedForPeriod(dbc, "097", 2024, 4)
	if err != nil {
		t.Fatalf("find published: %v", err)
	}
	if len(got) != 1 || got[0].ID != published.ID {
		t.Fatalf("published = %+v", got)
	}

	got, err = repo.FindUnpublishedForPeriod(dbc, "097", 2024, 4, published.ID)
	if err != nil {
		t.Fatalf("find unpublished: %v", err)
	}
	if len(got) != 1 || got[0].ID != draft.ID {
		t.Fatalf("unpublished = %+v", got)
	}

	got, err = repo.FindUnpublishedForPeriod(dbc, "097", 2024, 4, draft.ID)
	if err != nil {
		t.Fatalf("find unpublished excluding draft: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected exclusion to empty the result, got %+v", got)
	}
}

func TestDeleteCascades(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSubmissionRepo(db, testutil.Logger(t))

	testutil.SeedAgency(t, ctx, tx, "097", false)
	sub := testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)
	upload := testutil.SeedJob(t, ctx, tx, sub.ID, types.JobTypeFileUpload, types.FileTypeA, types.StatusFinished)
	validate := testutil.SeedJob(t, ctx, tx, sub.ID, types.JobTypeValidation, types.FileTypeA, types.StatusFinished)
	testutil.SeedDependency(t, ctx, tx, validate.ID, upload.ID)
	testutil.SeedAppropriationRow(t, ctx, tx, sub.ID, validate.ID, 2)

	if err := repo.Delete(dbc, sub.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := repo.GetByID(dbc, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("submission survived delete")
	}
	var jobCount, edgeCount, rowCount int64
	if err := tx.WithContext(ctx).Model(&types.Job{}).Where("submission_id = ?", sub.ID).Count(&jobCount).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if err := tx.WithContext(ctx).Model(&types.JobDependency{}).Where("job_id = ?", validate.ID).Count(&edgeCount).Error; err != nil {
		t.Fatalf("count edges: %v", err)
	}
	if err := tx.WithContext(ctx).Model(&types.Appropriation{}).Where("submission_id = ?", sub.ID).Count(&rowCount).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if jobCount != 0 || edgeCount != 0 || rowCount != 0 {
		t.Fatalf("owned rows survived delete: jobs=%d edges=%d rows=%d", jobCount, edgeCount, rowCount)
	}
}

func TestListExpiredUnpublished(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSubmissionRepo(db, testutil.Logger(t))

	testutil.SeedAgency(t, ctx, tx, "097", false)
	stale := testutil.SeedSubmission(t, ctx, tx, "097", 2023, 4, types.KindDABS)
	old := time.Now().Add(-200 * 24 * time.Hour)
	if err := tx.WithContext(ctx).Model(&types.Submission{}).
		Where("id = ?", stale.ID).
		Update("updated_at", old).Error; err != nil {
		t.Fatalf("age submission: %v", err)
	}
	testutil.SeedSubmission(t, ctx, tx, "097", 2024, 4, types.KindDABS)

	got, err := repo.ListExpiredUnpublished(dbc, time.Now().Add(-180*24*time.Hour))
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(got) != 1 || got[0].ID != stale.ID {
		t.Fatalf("expired = %+v", got)
	}
}
