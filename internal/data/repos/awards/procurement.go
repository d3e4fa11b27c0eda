package awards

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type ProcurementAwardRepo interface {
	UpsertBatch(dbc dbctx.Context, rows []*types.ProcurementAward) error
	// InWindow returns the mirror rows attributable to the agency in
	// the reporting window, split by agency role. Feeds D1.
	InWindow(dbc dbctx.Context, agencyCode string, role types.AgencyRole, start, end time.Time) ([]*types.ProcurementAward, error)
	// ByUniqueKeys resolves award keys for subaward linking. A key
	// mapping to more than one row is an ambiguous link.
	ByUniqueKeys(dbc dbctx.Context, keys []string) (map[string][]*types.ProcurementAward, error)
}

type procurementAwardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProcurementAwardRepo(db *gorm.DB, baseLog *logger.Logger) ProcurementAwardRepo {
	return &procurementAwardRepo{
		db:  db,
		log: baseLog.With("repo", "ProcurementAwardRepo"),
	}
}

func (r *procurementAwardRepo) UpsertBatch(dbc dbctx.Context, rows []*types.ProcurementAward) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "detached_award_proc_unique"}},
			UpdateAll: true,
		}).
		CreateInBatches(&rows, 500).Error
}

func (r *procurementAwardRepo) InWindow(dbc dbctx.Context, agencyCode string, role types.AgencyRole, start, end time.Time) ([]*types.ProcurementAward, error) {
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
	var out []*types.ProcurementAward
	if err := q.Order("piid ASC, action_date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *procurementAwardRepo) ByUniqueKeys(dbc dbctx.Context, keys []string) (map[string][]*types.ProcurementAward, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := map[string][]*types.ProcurementAward{}
	if len(keys) == 0 {
		return out, nil
	}
	var rows []*types.ProcurementAward
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
