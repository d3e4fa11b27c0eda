package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/usaspending/data-broker/internal/domain"
)

func strPtr(s string) *string { return &s }

func SeedAgency(tb testing.TB, ctx context.Context, tx *gorm.DB, code string, sensitive bool) *types.Agency {
	tb.Helper()
	a := &types.Agency{
		Code:      code,
		Name:      "Agency " + code,
		Sensitive: sensitive,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed agency: %v", err)
	}
	return a
}

func SeedSubmission(tb testing.TB, ctx context.Context, tx *gorm.DB, agencyCode string, year, period int, kind types.SubmissionKind) *types.Submission {
	tb.Helper()
	now := time.Now().UTC()
	s := &types.Submission{
		ID:                     uuid.New(),
		OwnerUserID:            uuid.New(),
		CGACCode:               strPtr(agencyCode),
		ReportingFiscalYear:    year,
		ReportingFiscalPeriod:  period,
		Cadence:                types.CadenceMonthly,
		Kind:                   kind,
		PublishState:           types.StateUnpublished,
		PublishedSubmissionIDs: datatypes.JSON([]byte("[]")),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed submission: %v", err)
	}
	return s
}

func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, jobType types.JobType, fileType types.FileType, status types.JobStatus) *types.Job {
	tb.Helper()
	now := time.Now().UTC()
	j := &types.Job{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		JobType:      jobType,
		FileType:     fileType,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return j
}

func SeedDependency(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID, prereqID uuid.UUID) *types.JobDependency {
	tb.Helper()
	d := &types.JobDependency{ID: uuid.New(), JobID: jobID, PrerequisiteID: prereqID}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed dependency: %v", err)
	}
	return d
}

func SeedFileGeneration(tb testing.TB, ctx context.Context, tx *gorm.DB, fileType types.FileType, agencyCode string, role types.AgencyRole, start, end time.Time, cached bool) *types.FileGeneration {
	tb.Helper()
	now := time.Now().UTC()
	g := &types.FileGeneration{
		ID:          uuid.New(),
		RequestDate: now,
		FileType:    fileType,
		AgencyCode:  agencyCode,
		AgencyRole:  role,
		StartDate:   start,
		EndDate:     end,
		IsCached:    cached,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed file generation: %v", err)
	}
	return g
}

func SeedProcurementAward(tb testing.TB, ctx context.Context, tx *gorm.DB, piid, agencyCode, uei string, actionDate time.Time) *types.ProcurementAward {
	tb.Helper()
	now := time.Now().UTC()
	a := &types.ProcurementAward{
		ID:                     uuid.New(),
		DetachedAwardProcID:    "proc_" + uuid.NewString(),
		UniqueAwardKey:         "CONT_AWD_" + piid + "_" + agencyCode,
		PIID:                   piid,
		AwardingAgencyCode:     agencyCode,
		AwardingSubTierAgencyC: agencyCode + "00",
		AwardeeUEI:             uei,
		AwardeeLegalName:       "VENDOR " + uei,
		ActionDate:             actionDate,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed procurement award: %v", err)
	}
	return a
}

func SeedAssistanceAward(tb testing.TB, ctx context.Context, tx *gorm.DB, fain, subTier, agencyCode string, actionDate time.Time) *types.AssistanceAward {
	tb.Helper()
	now := time.Now().UTC()
	a := &types.AssistanceAward{
		ID:                     uuid.New(),
		AFAGeneratedID:         "asst_" + uuid.NewString(),
		UniqueAwardKey:         "ASST_NON_" + fain + "_" + subTier,
		FAIN:                   strPtr(fain),
		RecordType:             2,
		AwardingAgencyCode:     agencyCode,
		AwardingSubTierAgencyC: subTier,
		ActionDate:             actionDate,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assistance award: %v", err)
	}
	return a
}

func SeedAppropriationRow(tb testing.TB, ctx context.Context, tx *gorm.DB, submissionID, jobID uuid.UUID, rowNumber int) *types.Appropriation {
	tb.Helper()
	row := &types.Appropriation{
		ID:               uuid.New(),
		SubmissionID:     submissionID,
		JobID:            jobID,
		RowNumber:        rowNumber,
		AgencyIdentifier: "097",
		MainAccountCode:  "4930",
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed appropriation row: %v", err)
	}
	return row
}
