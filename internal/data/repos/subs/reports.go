package subs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

// ReportRepo persists the raw subaward feed mirrors: prime reports and
// the subaward reports hanging off them.
type ReportRepo interface {
	UpsertPrimeContracts(dbc dbctx.Context, rows []*types.PrimeContract) error
	UpsertPrimeGrants(dbc dbctx.Context, rows []*types.PrimeGrant) error
	ReplaceSubcontracts(dbc dbctx.Context, parentID uuid.UUID, rows []*types.Subcontract) error
	ReplaceSubgrants(dbc dbctx.Context, parentID uuid.UUID, rows []*types.Subgrant) error
	DeletePrimeContracts(dbc dbctx.Context, internalIDs []string) error
	DeletePrimeGrants(dbc dbctx.Context, internalIDs []string) error
	// GetPrimeContracts returns mirror rows for the given internal ids,
	// or every row when ids is empty.
	GetPrimeContracts(dbc dbctx.Context, internalIDs []string) ([]*types.PrimeContract, error)
	GetPrimeGrants(dbc dbctx.Context, internalIDs []string) ([]*types.PrimeGrant, error)
	SubcontractsByParents(dbc dbctx.Context, parentIDs []uuid.UUID) ([]*types.Subcontract, error)
	SubgrantsByParents(dbc dbctx.Context, parentIDs []uuid.UUID) ([]*types.Subgrant, error)
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{
		db:  db,
		log: baseLog.With("repo", "SubawardReportRepo"),
	}
}

func (r *reportRepo) UpsertPrimeContracts(dbc dbctx.Context, rows []*types.PrimeContract) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "internal_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(&rows, 500).Error
}

func (r *reportRepo) UpsertPrimeGrants(dbc dbctx.Context, rows []*types.PrimeGrant) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "internal_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(&rows, 500).Error
}

func (r *reportRepo) ReplaceSubcontracts(dbc dbctx.Context, parentID uuid.UUID, rows []*types.Subcontract) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("parent_id = ?", parentID).Delete(&types.Subcontract{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return txx.CreateInBatches(&rows, 500).Error
	})
}

func (r *reportRepo) ReplaceSubgrants(dbc dbctx.Context, parentID uuid.UUID, rows []*types.Subgrant) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("parent_id = ?", parentID).Delete(&types.Subgrant{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return txx.CreateInBatches(&rows, 500).Error
	})
}

func (r *reportRepo) GetPrimeContracts(dbc dbctx.Context, internalIDs []string) ([]*types.PrimeContract, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx)
	if len(internalIDs) > 0 {
		q = q.Where("internal_id IN ?", internalIDs)
	}
	var out []*types.PrimeContract
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reportRepo) GetPrimeGrants(dbc dbctx.Context, internalIDs []string) ([]*types.PrimeGrant, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx)
	if len(internalIDs) > 0 {
		q = q.Where("internal_id IN ?", internalIDs)
	}
	var out []*types.PrimeGrant
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reportRepo) SubcontractsByParents(dbc dbctx.Context, parentIDs []uuid.UUID) ([]*types.Subcontract, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var out []*types.Subcontract
	if err := transaction.WithContext(dbc.Ctx).
		Where("parent_id IN ?", parentIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reportRepo) SubgrantsByParents(dbc dbctx.Context, parentIDs []uuid.UUID) ([]*types.Subgrant, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var out []*types.Subgrant
	if err := transaction.WithContext(dbc.Ctx).
		Where("parent_id IN ?", parentIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reportRepo) DeletePrimeContracts(dbc dbctx.Context, internalIDs []string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(internalIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var ids []uuid.UUID
		if err := txx.Model(&types.PrimeContract{}).
			Where("internal_id IN ?", internalIDs).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := txx.Where("parent_id IN ?", ids).Delete(&types.Subcontract{}).Error; err != nil {
			return err
		}
		return txx.Where("id IN ?", ids).Delete(&types.PrimeContract{}).Error
	})
}

func (r *reportRepo) DeletePrimeGrants(dbc dbctx.Context, internalIDs []string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(internalIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var ids []uuid.UUID
		if err := txx.Model(&types.PrimeGrant{}).
			Where("internal_id IN ?", internalIDs).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := txx.Where("parent_id IN ?", ids).Delete(&types.Subgrant{}).Error; err != nil {
			return err
		}
		return txx.Where("id IN ?", ids).Delete(&types.PrimeGrant{}).Error
	})
}
