package awards

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type AssistanceAwardRepo interface {
	UpsertBatch(dbc dbctx.Context, rows []*types.AssistanceAward) error
	DeleteByGeneratedIDs(dbc dbctx.Context, ids []string) error
	InWindow(dbc dbctx.Context, agencyCode string, role types.AgencyRole, start, end time.Time) ([]*types.AssistanceAward, error)
	ByUniqueKeys(dbc dbctx.Context, keys []string) (map[string][]*types.AssistanceAward, error)
}

type assistanceAwardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssistanceAwardRepo(db *gorm.DB, baseLog *logger.Logger) AssistanceAwardRepo {
	return &assistanceAwardRepo{
		db:  db,
		log: baseLog.With("repo", "AssistanceAwardRepo"),
	}
}

func (r *assistanceAwardRepo) UpsertBatch(dbc dbctx.Context, rows []*types.AssistanceAward) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "afa_generated_unique"}},
			UpdateAll: true,
		}).
		CreateInBatches(&rows, 500).Error
}

// DeleteByGeneratedIDs removes records named by correction/delete
// notices from the feed.
func (r *assistanceAwardRepo) DeleteByGeneratedIDs(dbc dbctx.Context, ids []string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("afa_generated_unique IN ?", ids).
		Delete(&types.AssistanceAward{}).Error
}

func (r *assistanceAwardRepo) InWindow(dbc dbctx.Context, agencyCode string, role types.AgencyRole, start, end time.Time) ([]*types.AssistanceAward, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("action_date >= ? AND action_date <= ?", start, end)
	switch role {
	case types.RoleFunding:
		q = q.Where("funding_agency_code = ?", agencyCode)
	default:
		q = q.Where("awarding_agency_code = ?", agencyCode)
	}
	var out []*types.AssistanceAward
	if err := q.Order("action_date ASC, afa_generated_unique ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assistanceAwardRepo) ByUniqueKeys(dbc dbctx.Context, keys []string) (map[string][]*types.AssistanceAward, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := map[string][]*types.AssistanceAward{}
	if len(keys) == 0 {
		return out, nil
	}
	var rows []*types.AssistanceAward
	if err := transaction.WithContext(dbc.Ctx).
		Where("unique_award_key IN ?", keys).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UniqueAwardKey] = append(out[row.UniqueAwardKey], row)
	}
	return out, nil
}
