package subs

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type SubawardRepo interface {
	// UpsertByReport writes denormalized rows keyed by
	// (subaward_report_number, kind).
	UpsertByReport(dbc dbctx.Context, rows []*types.Subaward) error
	GetByReport(dbc dbctx.Context, reportNumber string, kind types.SubawardKind) (*types.Subaward, error)
	// Unlinked returns rows whose prime side is unresolved and not
	// ambiguous, optionally bounded by updated_at >= since.
	Unlinked(dbc dbctx.Context, kind types.SubawardKind, since *time.Time) ([]*types.Subaward, error)
	Update(dbc dbctx.Context, row *types.Subaward) error
	// DeleteByReports removes rows for reports the feed has retracted.
	DeleteByReports(dbc dbctx.Context, kind types.SubawardKind, reportNumbers []string) error
	// ForAgencyWindow returns the linked rows attributable to the
	// agency in the reporting window. Feeds file F.
	ForAgencyWindow(dbc dbctx.Context, agencyCode string, start, end time.Time) ([]*types.Subaward, error)
}

type subawardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubawardRepo(db *gorm.DB, baseLog *logger.Logger) SubawardRepo {
	return &subawardRepo{
		db:  db,
		log: baseLog.With("repo", "SubawardRepo"),
	}
}

func (r *subawardRepo) UpsertByReport(dbc dbctx.Context, rows []*types.Subaward) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "subaward_report_number"}, {Name: "subaward_type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"unique_award_key", "ambiguous",
				"subaward_number", "subaward_amount", "sub_action_date",
				"sub_awardee_uei", "sub_awardee_name", "sub_awardee_city", "sub_awardee_state",
				"description", "award_id", "parent_award_id",
				"prime_awardee_uei", "prime_awardee_name",
				"awarding_agency_code", "awarding_agency_name", "awarding_sub_tier_agency_c",
				"funding_agency_code", "updated_at",
			}),
		}).
		CreateInBatches(&rows, 500).Error
}

func (r *subawardRepo) GetByReport(dbc dbctx.Context, reportNumber string, kind types.SubawardKind) (*types.Subaward, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Subaward
	err := transaction.WithContext(dbc.Ctx).
		Where("subaward_report_number = ? AND subaward_type = ?", reportNumber, kind).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ReportNumber == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *subawardRepo) Unlinked(dbc dbctx.Context, kind types.SubawardKind, since *time.Time) ([]*types.Subaward, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("subaward_type = ?", kind).
		Where("awarding_agency_code IS NULL").
		Where("ambiguous = ?", false).
		Where("unique_award_key <> ''")
	if since != nil {
		q = q.Where("updated_at >= ?", *since)
	}
	var out []*types.Subaward
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *subawardRepo) Update(dbc dbctx.Context, row *types.Subaward) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	row.UpdatedAt = time.Now()
	return transaction.WithContext(dbc.Ctx).Save(row).Error
}

func (r *subawardRepo) DeleteByReports(dbc dbctx.Context, kind types.SubawardKind, reportNumbers []string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(reportNumbers) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("subaward_type = ? AND subaward_report_number IN ?", kind, reportNumbers).
		Delete(&types.Subaward{}).Error
}

func (r *subawardRepo) ForAgencyWindow(dbc dbctx.Context, agencyCode string, start, end time.Time) ([]*types.Subaward, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Subaward
	err := transaction.WithContext(dbc.Ctx).
		Where("awarding_agency_code = ?", agencyCode).
		Where("sub_action_date >= ? AND sub_action_date <= ?", start, end).
		Order("subaward_report_number ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
