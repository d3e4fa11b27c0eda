package submissions

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type PublishHistoryRepo interface {
	CreatePublish(dbc dbctx.Context, submissionID uuid.UUID) (*types.PublishHistory, error)
	CreateCertify(dbc dbctx.Context, submissionID uuid.UUID) (*types.CertifyHistory, error)
	LatestPublish(dbc dbctx.Context, submissionID uuid.UUID) (*types.PublishHistory, error)
	// CertifiedSince reports whether a certify record exists at or
	// after the given publish.
	CertifiedSince(dbc dbctx.Context, submissionID uuid.UUID, publish *types.PublishHistory) (bool, error)
	SnapshotFiles(dbc dbctx.Context, rows []*types.PublishedFilesHistory) error
	LatestFiles(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.PublishedFilesHistory, error)
}

type publishHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPublishHistoryRepo(db *gorm.DB, baseLog *logger.Logger) PublishHistoryRepo {
	return &publishHistoryRepo{
		db:  db,
		log: baseLog.With("repo", "PublishHistoryRepo"),
	}
}

func (r *publishHistoryRepo) CreatePublish(dbc dbctx.Context, submissionID uuid.UUID) (*types.PublishHistory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.PublishHistory{ID: uuid.New(), SubmissionID: submissionID}
	if err := transaction.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *publishHistoryRepo) CreateCertify(dbc dbctx.Context, submissionID uuid.UUID) (*types.CertifyHistory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.CertifyHistory{ID: uuid.New(), SubmissionID: submissionID}
	if err := transaction.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *publishHistoryRepo) LatestPublish(dbc dbctx.Context, submissionID uuid.UUID) (*types.PublishHistory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.PublishHistory
	err := transaction.WithContext(dbc.Ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *publishHistoryRepo) CertifiedSince(dbc dbctx.Context, submissionID uuid.UUID, publish *types.PublishHistory) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if publish == nil {
		return false, nil
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.CertifyHistory{}).
		Where("submission_id = ? AND created_at >= ?", submissionID, publish.CreatedAt).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *publishHistoryRepo) SnapshotFiles(dbc dbctx.Context, rows []*types.PublishedFilesHistory) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *publishHistoryRepo) LatestFiles(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.PublishedFilesHistory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	latest, err := r.LatestPublish(dbc, submissionID)
	if err != nil || latest == nil {
		return nil, err
	}
	var out []*types.PublishedFilesHistory
	err = transaction.WithContext(dbc.Ctx).
		Where("publish_history_id = ?", latest.ID).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
