package stagingrows

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// tablePair binds a staging table to its published snapshot. The two
// tables are migrated from the same struct, so a bare SELECT * copy is
// column-stable.
type tablePair struct {
	staging   string
	published string
}

var pairs = map[types.FileType]tablePair{
	types.FileTypeA:  {"appropriation", "published_appropriation"},
	types.FileTypeB:  {"object_class_program_activity", "published_object_class_program_activity"},
	types.FileTypeC:  {"award_financial", "published_award_financial"},
	types.FileTypeD1: {"award_procurement", "published_award_procurement"},
	types.FileTypeD2: {"award_financial_assistance", "published_award_financial_assistance"},
}

func modelFor(ft types.FileType) (interface{}, error) {
	switch ft {
	case types.FileTypeA:
		return &types.Appropriation{}, nil
	case types.FileTypeB:
		return &types.ObjectClassProgramActivity{}, nil
	case types.FileTypeC:
		return &types.AwardFinancial{}, nil
	case types.FileTypeD1:
		return &types.AwardProcurement{}, nil
	case types.FileTypeD2, types.FileTypeFABS:
		return &types.AwardFinancialAssistance{}, nil
	default:
		return nil, fmt.Errorf("no staging table for file type %q", ft)
	}
}

type StagingRepo interface {
	// InsertRows bulk-inserts a slice of staging row structs.
	InsertRows(dbc dbctx.Context, rows interface{}) error
	DeleteForJob(dbc dbctx.Context, fileType types.FileType, jobID uuid.UUID) error
	CountRows(dbc dbctx.Context, fileType types.FileType, submissionID uuid.UUID) (int64, error)
	// SnapshotToPublished replaces the published snapshot of every
	// staging table pair with the current staging rows.
	SnapshotToPublished(dbc dbctx.Context, submissionID uuid.UUID) error
	// RestoreFromPublished is the inverse copy used by revert.
	RestoreFromPublished(dbc dbctx.Context, submissionID uuid.UUID) error
	// DistinctRecipientUEIs returns the union of awardee UEIs across
	// the submission's D1 and D2 staging rows. Feeds file E.
	DistinctRecipientUEIs(dbc dbctx.Context, submissionID uuid.UUID) ([]string, error)
	ReplaceFlexFields(dbc dbctx.Context, jobID uuid.UUID, rows []*types.FlexField) error
	FlexFieldsByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.FlexField, error)
}

type stagingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStagingRepo(db *gorm.DB, baseLog *logger.Logger) StagingRepo {
	return &stagingRepo{
		db:  db,
		log: baseLog.With("repo", "StagingRepo"),
	}
}

func (r *stagingRepo) InsertRows(dbc dbctx.Context, rows interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).CreateInBatches(rows, 1000).Error
}

func (r *stagingRepo) DeleteForJob(dbc dbctx.Context, fileType types.FileType, jobID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	model, err := modelFor(fileType)
	if err != nil {
		return err
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Delete(model).Error; err != nil {
		return err
	}
	return transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Delete(&types.FlexField{}).Error
}

func (r *stagingRepo) CountRows(dbc dbctx.Context, fileType types.FileType, submissionID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	model, err := modelFor(fileType)
	if err != nil {
		return 0, err
	}
	var count int64
	err = transaction.WithContext(dbc.Ctx).
		Model(model).
		Where("submission_id = ?", submissionID).
		Count(&count).Error
	return count, err
}

func (r *stagingRepo) SnapshotToPublished(dbc dbctx.Context, submissionID uuid.UUID) error {
	return r.copyAll(dbc, submissionID, false)
}

func (r *stagingRepo) RestoreFromPublished(dbc dbctx.Context, submissionID uuid.UUID) error {
	return r.copyAll(dbc, submissionID, true)
}

func (r *stagingRepo) copyAll(dbc dbctx.Context, submissionID uuid.UUID, reverse bool) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		for _, pair := range pairs {
			src, dst := pair.staging, pair.published
			if reverse {
				src, dst = pair.published, pair.staging
			}
			if err := txx.Exec(
				fmt.Sprintf("DELETE FROM %s WHERE submission_id = ?", dst), submissionID,
			).Error; err != nil {
				return err
			}
			if err := txx.Exec(
				fmt.Sprintf("INSERT INTO %s SELECT * FROM %s WHERE submission_id = ?", dst, src), submissionID,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *stagingRepo) DistinctRecipientUEIs(dbc dbctx.Context, submissionID uuid.UUID) ([]string, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ueis []string
	err := transaction.WithContext(dbc.Ctx).Raw(`
        SELECT DISTINCT uei FROM (
            SELECT awardee_or_recipient_uei AS uei
              FROM award_procurement WHERE submission_id = ?
            UNION
            SELECT uei FROM award_financial_assistance WHERE submission_id = ?
        ) recipients
        WHERE uei IS NOT NULL AND uei <> ''
        ORDER BY uei`, submissionID, submissionID).
		Scan(&ueis).Error
	if err != nil {
		return nil, err
	}
	return ueis, nil
}

func (r *stagingRepo) ReplaceFlexFields(dbc dbctx.Context, jobID uuid.UUID, rows []*types.FlexField) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("job_id = ?", jobID).Delete(&types.FlexField{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return txx.CreateInBatches(&rows, 1000).Error
	})
}

func (r *stagingRepo) FlexFieldsByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.FlexField, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.FlexField
	err := transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Order("row_number ASC, header ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
