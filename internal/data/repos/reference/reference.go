package reference

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type AgencyRepo interface {
	GetByCode(dbc dbctx.Context, code string) (*types.Agency, error)
	Upsert(dbc dbctx.Context, rows []*types.Agency) error
}

type agencyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgencyRepo(db *gorm.DB, baseLog *logger.Logger) AgencyRepo {
	return &agencyRepo{db: db, log: baseLog.With("repo", "AgencyRepo")}
}

func (r *agencyRepo) GetByCode(dbc dbctx.Context, code string) (*types.Agency, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var agency types.Agency
	err := transaction.WithContext(dbc.Ctx).
		Where("code = ?", code).
		Limit(1).
		Find(&agency).Error
	if err != nil {
		return nil, err
	}
	if agency.Code == "" {
		return nil, nil
	}
	return &agency, nil
}

func (r *agencyRepo) Upsert(dbc dbctx.Context, rows []*types.Agency) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
}

type RuleRepo interface {
	// ReplaceCatalog loads the rule catalog wholesale. Run once per
	// worker start from the rules file.
	ReplaceCatalog(dbc dbctx.Context, rules []*types.RuleSQL) error
	ForFile(dbc dbctx.Context, fileType types.FileType, sensitiveOnly bool) ([]*types.RuleSQL, error)
	CrossFile(dbc dbctx.Context, sensitiveOnly bool) ([]*types.RuleSQL, error)
}

type ruleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRuleRepo(db *gorm.DB, baseLog *logger.Logger) RuleRepo {
	return &ruleRepo{db: db, log: baseLog.With("repo", "RuleRepo")}
}

func (r *ruleRepo) ReplaceCatalog(dbc dbctx.Context, rules []*types.RuleSQL) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("1 = 1").Delete(&types.RuleSQL{}).Error; err != nil {
			return err
		}
		if len(rules) == 0 {
			return nil
		}
		return txx.CreateInBatches(&rules, 200).Error
	})
}

func (r *ruleRepo) ForFile(dbc dbctx.Context, fileType types.FileType, sensitiveOnly bool) ([]*types.RuleSQL, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("file_type = ? AND rule_cross_file_flag = ?", fileType, false)
	if sensitiveOnly {
		q = q.Where("sensitive = ?", true)
	}
	var out []*types.RuleSQL
	if err := q.Order("rule_label ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ruleRepo) CrossFile(dbc dbctx.Context, sensitiveOnly bool) ([]*types.RuleSQL, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("rule_cross_file_flag = ?", true)
	if sensitiveOnly {
		q = q.Where("sensitive = ?", true)
	}
	var out []*types.RuleSQL
	if err := q.Order("rule_label ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type WindowRepo interface {
	Get(dbc dbctx.Context, year, period int) (*types.SubmissionWindow, error)
	Upsert(dbc dbctx.Context, rows []*types.SubmissionWindow) error
}

type windowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWindowRepo(db *gorm.DB, baseLog *logger.Logger) WindowRepo {
	return &windowRepo{db: db, log: baseLog.With("repo", "WindowRepo")}
}

func (r *windowRepo) Get(dbc dbctx.Context, year, period int) (*types.SubmissionWindow, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var window types.SubmissionWindow
	err := transaction.WithContext(dbc.Ctx).
		Where("year = ? AND period = ?", year, period).
		Limit(1).
		Find(&window).Error
	if err != nil {
		return nil, err
	}
	if window.Year == 0 {
		return nil, nil
	}
	return &window, nil
}

func (r *windowRepo) Upsert(dbc dbctx.Context, rows []*types.SubmissionWindow) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "year"}, {Name: "period"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
}

type BannerRepo interface {
	ActiveBlocking(dbc dbctx.Context, at time.Time) (*types.Banner, error)
}

type bannerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBannerRepo(db *gorm.DB, baseLog *logger.Logger) BannerRepo {
	return &bannerRepo{db: db, log: baseLog.With("repo", "BannerRepo")}
}

func (r *bannerRepo) ActiveBlocking(dbc dbctx.Context, at time.Time) (*types.Banner, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var banner types.Banner
	err := transaction.WithContext(dbc.Ctx).
		Where("blocking = ? AND start_date <= ? AND end_date >= ?", true, at, at).
		Limit(1).
		Find(&banner).Error
	if err != nil {
		return nil, err
	}
	if banner.Message == "" {
		return nil, nil
	}
	return &banner, nil
}
