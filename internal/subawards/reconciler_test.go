package subawards

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/usaspending/data-broker/internal/data/repos"
	"github.com/usaspending/data-broker/internal/data/repos/testutil"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
)

func newTestReconciler(t *testing.T) (*Reconciler, *repos.All, dbctx.Context) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)
	all := repos.NewAll(db, log)
	return NewReconciler(db, log, all), all, dbc
}

func seedPrimeContract(t *testing.T, all *repos.All, dbc dbctx.Context, internalID, piid, agency string) *types.PrimeContract {
	t.Helper()
	prime := &types.PrimeContract{
		InternalID:         internalID,
		ContractNumber:     piid,
		ContractAgencyCode: agency,
	}
	if err := all.SubReports.UpsertPrimeContracts(dbc, []*types.PrimeContract{prime}); err != nil {
		t.Fatalf("upsert prime: %v", err)
	}
	primes, err := all.SubReports.GetPrimeContracts(dbc, []string{internalID})
	if err != nil || len(primes) != 1 {
		t.Fatalf("reload prime: %v (%d rows)", err, len(primes))
	}
	return primes[0]
}

func seedSubcontract(t *testing.T, all *repos.All, dbc dbctx.Context, prime *types.PrimeContract, reportNumber string) {
	t.Helper()
	amount := decimal.NewFromInt(125000)
	date := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	rows := []*types.Subcontract{{
		ParentID:        prime.ID,
		ReportNumber:    reportNumber,
		SubcontractNum:  "SC-1",
		Amount:          &amount,
		SubcontractDate: &date,
		UEI:             strPtr("SUBUEI000001"),
		LegalName:       strPtr("SUB CO"),
	}}
	if err := all.SubReports.ReplaceSubcontracts(dbc, prime.ID, rows); err != nil {
		t.Fatalf("replace subcontracts: %v", err)
	}
}

func seedAwardWithKey(t *testing.T, dbc dbctx.Context, piid, agency, uei, key string) *types.ProcurementAward {
	t.Helper()
	award := testutil.SeedProcurementAward(t, dbc.Ctx, dbc.Tx, piid, agency, uei, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if err := dbc.Tx.WithContext(dbc.Ctx).Model(award).Update("unique_award_key", key).Error; err != nil {
		t.Fatalf("set award key: %v", err)
	}
	award.UniqueAwardKey = key
	return award
}

func fetchSubaward(t *testing.T, dbc dbctx.Context, reportNumber string) *types.Subaward {
	t.Helper()
	var row types.Subaward
	err := dbc.Tx.WithContext(dbc.Ctx).
		Where("subaward_report_number = ?", reportNumber).
		First(&row).Error
	if err != nil {
		t.Fatalf("fetch subaward %s: %v", reportNumber, err)
	}
	return &row
}

func TestIngestContracts_LinksUniqueCandidate(t *testing.T) {
	rec, all, dbc := newTestReconciler(t)

	prime := seedPrimeContract(t, all, dbc, "rpt-1", "W912DY20D0034", "2100")
	seedSubcontract(t, all, dbc, prime, "SUB-2024-001")
	seedAwardWithKey(t, dbc, "W912DY20D0034", "2100", "PRIMEUEI0001", contractAwardKey(prime))

	n, err := rec.IngestBatch(dbc, types.SubawardContract, []string{"rpt-1"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("ingested = %d, want 1", n)
	}

	row := fetchSubaward(t, dbc, "SUB-2024-001")
	if !row.Linked() {
		t.Fatalf("row not linked: %+v", row)
	}
	if row.Ambiguous {
		t.Fatal("unique candidate marked ambiguous")
	}
	if row.PrimeAwardeeUEI == nil || *row.PrimeAwardeeUEI != "PRIMEUEI0001" {
		t.Fatalf("prime uei = %v", row.PrimeAwardeeUEI)
	}
	if row.AwardID != "W912DY20D0034" {
		t.Fatalf("award id = %s", row.AwardID)
	}
}

func TestIngestContracts_AmbiguousKeyStaysUnlinked(t *testing.T) {
	rec, all, dbc := newTestReconciler(t)

	prime := seedPrimeContract(t, all, dbc, "rpt-2", "N0002419C4301", "1700")
	seedSubcontract(t, all, dbc, prime, "SUB-2024-002")
	key := contractAwardKey(prime)
	seedAwardWithKey(t, dbc, "N0002419C4301", "1700", "PRIMEUEI0001", key)
	seedAwardWithKey(t, dbc, "N0002419C4301", "1700", "PRIMEUEI0002", key)

	if _, err := rec.IngestBatch(dbc, types.SubawardContract, []string{"rpt-2"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	row := fetchSubaward(t, dbc, "SUB-2024-002")
	if row.Linked() {
		t.Fatalf("ambiguous row linked: %+v", row)
	}
	if !row.Ambiguous {
		t.Fatal("expected ambiguous flag")
	}
}

func TestFixBrokenLinks(t *testing.T) {
	rec, all, dbc := newTestReconciler(t)

	prime := seedPrimeContract(t, all, dbc, "rpt-3", "GS35F0119Y", "4732")
	seedSubcontract(t, all, dbc, prime, "SUB-2024-003")

	// The award lands after the report: the row starts unlinked.
	if _, err := rec.IngestBatch(dbc, types.SubawardContract, []string{"rpt-3"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if row := fetchSubaward(t, dbc, "SUB-2024-003"); row.Linked() {
		t.Fatalf("row linked without an award: %+v", row)
	}

	linked, err := rec.FixBrokenLinks(dbc, types.SubawardContract, nil)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if linked != 0 {
		t.Fatalf("linked %d rows without an award", linked)
	}

	seedAwardWithKey(t, dbc, "GS35F0119Y", "4732", "PRIMEUEI0003", contractAwardKey(prime))
	linked, err = rec.FixBrokenLinks(dbc, types.SubawardContract, nil)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if linked != 1 {
		t.Fatalf("linked = %d, want 1", linked)
	}
	row := fetchSubaward(t, dbc, "SUB-2024-003")
	if !row.Linked() {
		t.Fatalf("row still unlinked after fix: %+v", row)
	}

	// Repeat runs over the same window are no-ops.
	linked, err = rec.FixBrokenLinks(dbc, types.SubawardContract, nil)
	if err != nil {
		t.Fatalf("fix again: %v", err)
	}
	if linked != 0 {
		t.Fatalf("second fix relinked %d rows", linked)
	}
}

func TestIngestGrants_AggregateNeverRetried(t *testing.T) {
	rec, all, dbc := newTestReconciler(t)

	prime := &types.PrimeGrant{
		InternalID: "grant-1",
		FAIN:       "FAIN000123",
		RecordType: 1,
	}
	if err := all.SubReports.UpsertPrimeGrants(dbc, []*types.PrimeGrant{prime}); err != nil {
		t.Fatalf("upsert prime grant: %v", err)
	}
	primes, err := all.SubReports.GetPrimeGrants(dbc, []string{"grant-1"})
	if err != nil || len(primes) != 1 {
		t.Fatalf("reload prime grant: %v (%d rows)", err, len(primes))
	}
	if err := all.SubReports.ReplaceSubgrants(dbc, primes[0].ID, []*types.Subgrant{{
		ParentID:     primes[0].ID,
		ReportNumber: "SUBG-2024-001",
		SubawardNum:  "SG-1",
	}}); err != nil {
		t.Fatalf("replace subgrants: %v", err)
	}

	if _, err := rec.IngestBatch(dbc, types.SubawardGrant, []string{"grant-1"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	row := fetchSubaward(t, dbc, "SUBG-2024-001")
	if row.UniqueAwardKey != "" {
		t.Fatalf("aggregate grant derived a key: %q", row.UniqueAwardKey)
	}

	// A keyless row never enters the retry pool.
	unlinked, err := all.Subawards.Unlinked(dbc, types.SubawardGrant, nil)
	if err != nil {
		t.Fatalf("unlinked: %v", err)
	}
	if len(unlinked) != 0 {
		t.Fatalf("keyless rows offered for retry: %+v", unlinked)
	}
}
