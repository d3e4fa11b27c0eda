package jobs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type ErrorMetadataRepo interface {
	Replace(dbc dbctx.Context, jobID uuid.UUID, rows []*types.ErrorMetadata) error
	GetByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.ErrorMetadata, error)
	DeleteByJob(dbc dbctx.Context, jobID uuid.UUID) error
	// SnapshotToPublished replaces the submission's published aggregate
	// with the live one. Runs inside the publish critical section.
	SnapshotToPublished(dbc dbctx.Context, submissionID uuid.UUID) error
	GetPublished(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.PublishedErrorMetadata, error)
}

type errorMetadataRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewErrorMetadataRepo(db *gorm.DB, baseLog *logger.Logger) ErrorMetadataRepo {
	return &errorMetadataRepo{
		db:  db,
		log: baseLog.With("repo", "ErrorMetadataRepo"),
	}
}

func (r *errorMetadataRepo) Replace(dbc dbctx.Context, jobID uuid.UUID, rows []*types.ErrorMetadata) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("job_id = ?", jobID).Delete(&types.ErrorMetadata{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return txx.Create(&rows).Error
	})
}

func (r *errorMetadataRepo) GetByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.ErrorMetadata, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ErrorMetadata
	if err := transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Order("rule_label ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *errorMetadataRepo) DeleteByJob(dbc dbctx.Context, jobID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("job_id = ?", jobID).
		Delete(&types.ErrorMetadata{}).Error
}

func (r *errorMetadataRepo) SnapshotToPublished(dbc dbctx.Context, submissionID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("submission_id = ?", submissionID).
			Delete(&types.PublishedErrorMetadata{}).Error; err != nil {
			return err
		}
		var live []*types.ErrorMetadata
		err := txx.Model(&types.ErrorMetadata{}).
			Joins("JOIN job ON job.id = error_metadata.job_id").
			Where("job.submission_id = ?", submissionID).
			Find(&live).Error
		if err != nil {
			return err
		}
		if len(live) == 0 {
			return nil
		}
		published := make([]*types.PublishedErrorMetadata, 0, len(live))
		for _, em := range live {
			row := &types.PublishedErrorMetadata{ErrorMetadata: *em, SubmissionID: submissionID}
			row.ID = uuid.New()
			published = append(published, row)
		}
		return txx.Create(&published).Error
	})
}

func (r *errorMetadataRepo) GetPublished(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.PublishedErrorMetadata, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PublishedErrorMetadata
	if err := transaction.WithContext(dbc.Ctx).
		Where("submission_id = ?", submissionID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
