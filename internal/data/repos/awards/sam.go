package awards

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type SAMRecipientRepo interface {
	UpsertBatch(dbc dbctx.Context, rows []*types.SAMRecipient) error
	GetByUEIs(dbc dbctx.Context, ueis []string) (map[string]*types.SAMRecipient, error)
}

type samRecipientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSAMRecipientRepo(db *gorm.DB, baseLog *logger.Logger) SAMRecipientRepo {
	return &samRecipientRepo{
		db:  db,
		log: baseLog.With("repo", "SAMRecipientRepo"),
	}
}

func (r *samRecipientRepo) UpsertBatch(dbc dbctx.Context, rows []*types.SAMRecipient) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uei"}},
			UpdateAll: true,
		}).
		CreateInBatches(&rows, 500).Error
}

func (r *samRecipientRepo) GetByUEIs(dbc dbctx.Context, ueis []string) (map[string]*types.SAMRecipient, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := map[string]*types.SAMRecipient{}
	if len(ueis) == 0 {
		return out, nil
	}
	var rows []*types.SAMRecipient
	if err := transaction.WithContext(dbc.Ctx).
		Where("uei IN ?", ueis).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UEI] = row
	}
	return out, nil
}

type LoadDateRepo interface {
	Get(dbc dbctx.Context, sourceType string) (*time.Time, error)
	Set(dbc dbctx.Context, sourceType string, at time.Time) error
}

type loadDateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLoadDateRepo(db *gorm.DB, baseLog *logger.Logger) LoadDateRepo {
	return &loadDateRepo{
		db:  db,
		log: baseLog.With("repo", "LoadDateRepo"),
	}
}

func (r *loadDateRepo) Get(dbc dbctx.Context, sourceType string) (*time.Time, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ExternalDataLoadDate
	err := transaction.WithContext(dbc.Ctx).
		Where("source_type = ?", sourceType).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.SourceType == "" {
		return nil, nil
	}
	return &row.LastLoadDate, nil
}

func (r *loadDateRepo) Set(dbc dbctx.Context, sourceType string, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_load_date"}),
		}).
		Create(&types.ExternalDataLoadDate{SourceType: sourceType, LastLoadDate: at}).Error
}
