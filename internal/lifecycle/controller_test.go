package lifecycle

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/usaspending/data-broker/internal/data/repos"
	"github.com/usaspending/data-broker/internal/data/repos/testutil"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/jobgraph"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/errs"
)

func strPtr(s string) *string { return &s }

func newTestController(t *testing.T) (*Controller, *repos.All, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	log := testutil.Logger(t)
	all := repos.NewAll(db, log)
	graph := jobgraph.New(db, log, all.Jobs, all.Deps, nil)
	return New(db, log, all, graph), all, dbc
}

func TestCreateRejectsBadRequests(t *testing.T) {
	c, _, dbc := newTestController(t)
	testutil.SeedAgency(t, dbc.Ctx, dbc.Tx, "097", false)

	cases := map[string]CreateRequest{
		"both codes": {
			OwnerUserID: uuid.New(),
			CGACCode:    strPtr("097"),
			FRECCode:    strPtr("1601"),
			FiscalYear:  2024, Period: 4,
			Cadence: types.CadenceMonthly, Kind: types.KindDABS,
		},
		"neither code": {
			OwnerUserID: uuid.New(),
			FiscalYear:  2024, Period: 4,
			Cadence: types.CadenceMonthly, Kind: types.KindDABS,
		},
		"unknown agency": {
			OwnerUserID: uuid.New(),
			CGACCode:    strPtr("999"),
			FiscalYear:  2024, Period: 4,
			Cadence: types.CadenceMonthly, Kind: types.KindDABS,
		},
		"period out of range": {
			OwnerUserID: uuid.New(),
			CGACCode:    strPtr("097"),
			FiscalYear:  2024, Period: 1,
			Cadence: types.CadenceMonthly, Kind: types.KindDABS,
		},
		"quarterly off-quarter period": {
			OwnerUserID: uuid.New(),
			CGACCode:    strPtr("097"),
			FiscalYear:  2024, Period: 4,
			Cadence: types.CadenceQuarterly, Kind: types.KindDABS,
		},
		"quarterly fabs": {
			OwnerUserID: uuid.New(),
			CGACCode:    strPtr("097"),
			FiscalYear:  2024, Period: 6,
			Cadence: types.CadenceQuarterly, Kind: types.KindFABS,
		},
	}
	for name, req := range cases {
		if _, err := c.Create(dbc, req); !errs.IsClient(err) {
			t.Errorf("%s: expected client error, got %v", name, err)
		}
	}
}

func TestCreateBuildsJobGraph(t *testing.T) {
	c, all, dbc := newTestController(t)
	testutil.SeedAgency(t, dbc.Ctx, dbc.Tx, "097", false)

	sub, err := c.Create(dbc, CreateRequest{
		OwnerUserID: uuid.New(),
		CGACCode:    strPtr("097"),
		FiscalYear:  2024,
		Period:      6,
		Cadence:     types.CadenceQuarterly,
		Kind:        types.KindDABS,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.PublishState != types.StateUnpublished {
		t.Fatalf("state = %s", sub.PublishState)
	}

	jobs, err := all.Jobs.GetBySubmission(dbc, sub.ID)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if len(jobs) != 13 {
		t.Fatalf("expected full dabs graph, got %d jobs", len(jobs))
	}
}

func TestPublishRejectsTestSubmissions(t *testing.T) {
	c, all, dbc := newTestController(t)
	testutil.SeedAgency(t, dbc.Ctx, dbc.Tx, "097", false)
	sub := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 4, types.KindDABS)
	if err := all.Submissions.UpdateFields(dbc, sub.ID, map[string]interface{}{"test_flag": true}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := c.Publish(dbc, sub.ID); !errs.IsClient(err) {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestPublishRejectsUnvalidatedSubmissions(t *testing.T) {
	c, _, dbc := newTestController(t)
	testutil.SeedAgency(t, dbc.Ctx, dbc.Tx, "097", false)
	sub := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 4, types.KindDABS)

	// No finished cross-file validation job exists.
	if err := c.Publish(dbc, sub.ID); !errs.IsClient(err) {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestCertifyIsMonthlyOnly(t *testing.T) {
	c, _, dbc := newTestController(t)
	testutil.SeedAgency(t, dbc.Ctx, dbc.Tx, "097", false)
	sub := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 6, types.KindDABS)
	if err := dbc.Tx.WithContext(dbc.Ctx).Model(&types.Submission{}).
		Where("id = ?", sub.ID).
		Update("cadence", types.CadenceQuarterly).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := c.Certify(dbc, sub.ID); !errs.IsClient(err) {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestCertifyRejectsUpdatedState(t *testing.T) {
	c, all, dbc := newTestController(t)
	testutil.SeedAgency(t, dbc.Ctx, dbc.Tx, "097", false)
	sub := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 4, types.KindDABS)

	// The submission has published before but diverged since.
	if err := all.Submissions.UpdateFields(dbc, sub.ID, map[string]interface{}{"publish_state": types.StateUpdated}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := all.Publish.CreatePublish(dbc, sub.ID); err != nil {
		t.Fatalf("create publish: %v", err)
	}

	if err := c.Certify(dbc, sub.ID); !errs.IsConflict(err) {
		t.Fatalf("expected conflict for updated submission, got %v", err)
	}
	got, err := all.Submissions.GetByID(dbc, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CertifiedFlag {
		t.Fatal("diverged submission was certified")
	}
}

func TestDeletePreconditions(t *testing.T) {
	c, all, dbc := newTestController(t)
	testutil.SeedAgency(t, dbc.Ctx, dbc.Tx, "097", false)

	published := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 4, types.KindDABS)
	if err := all.Submissions.UpdateFields(dbc, published.ID, map[string]interface{}{"publish_state": types.StatePublished}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Delete(dbc, published.ID); !errs.IsConflict(err) {
		t.Fatalf("expected conflict for published submission, got %v", err)
	}

	busy := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 5, types.KindDABS)
	testutil.SeedJob(t, dbc.Ctx, dbc.Tx, busy.ID, types.JobTypeCSVValidation, types.FileTypeA, types.StatusRunning)
	if err := c.Delete(dbc, busy.ID); !errs.IsConflict(err) {
		t.Fatalf("expected conflict for running jobs, got %v", err)
	}

	idle := testutil.SeedSubmission(t, dbc.Ctx, dbc.Tx, "097", 2024, 6, types.KindDABS)
	if err := c.Delete(dbc, idle.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := all.Submissions.GetByID(dbc, idle.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("submission survived delete")
	}
}
