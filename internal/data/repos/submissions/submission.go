package submissions

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type SubmissionRepo interface {
	Create(dbc dbctx.Context, sub *types.Submission) (*types.Submission, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// TransitionPublishState is the compare-and-set that serializes
	// racing publish/revert attempts. It returns false when the row was
	// not in any of the allowed source states.
	TransitionPublishState(dbc dbctx.Context, id uuid.UUID, from []types.PublishState, to types.PublishState) (bool, error)
	FindPublishedForPeriod(dbc dbctx.Context, agencyCode string, year, period int) ([]*types.Submission, error)
	FindUnpublishedForPeriod(dbc dbctx.Context, agencyCode string, year, period int, excludeID uuid.UUID) ([]*types.Submission, error)
	ListExpiredUnpublished(dbc dbctx.Context, olderThan time.Time) ([]*types.Submission, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{
		db:  db,
		log: baseLog.With("repo", "SubmissionRepo"),
	}
}

func (r *submissionRepo) Create(dbc dbctx.Context, sub *types.Submission) (*types.Submission, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *submissionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var sub types.Submission
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Submission{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *submissionRepo) TransitionPublishState(dbc dbctx.Context, id uuid.UUID, from []types.PublishState, to types.PublishState) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Submission{}).
		Where("id = ? AND publish_state IN ?", id, from).
		Updates(map[string]interface{}{
			"publish_state": to,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *submissionRepo) FindPublishedForPeriod(dbc dbctx.Context, agencyCode string, year, period int) ([]*types.Submission, error) {
	return r.findForPeriod(dbc, agencyCode, year, period, []types.PublishState{types.StatePublished, types.StatePublishing, types.StateUpdated, types.StateReverting}, uuid.Nil)
}

func (r *submissionRepo) FindUnpublishedForPeriod(dbc dbctx.Context, agencyCode string, year, period int, excludeID uuid.UUID) ([]*types.Submission, error) {
	return r.findForPeriod(dbc, agencyCode, year, period, []types.PublishState{types.StateUnpublished}, excludeID)
}

func (r *submissionRepo) findForPeriod(dbc dbctx.Context, agencyCode string, year, period int, states []types.PublishState, excludeID uuid.UUID) ([]*types.Submission, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Submission
	q := transaction.WithContext(dbc.Ctx).
		Where("(cgac_code = ? OR frec_code = ?)", agencyCode, agencyCode).
		Where("reporting_fiscal_year = ? AND reporting_fiscal_period = ?", year, period).
		Where("publish_state IN ?", states).
		Where("test_flag = ?", false)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *submissionRepo) ListExpiredUnpublished(dbc dbctx.Context, olderThan time.Time) ([]*types.Submission, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Submission
	err := transaction.WithContext(dbc.Ctx).
		Where("publish_state = ? AND updated_at < ?", types.StateUnpublished, olderThan).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a submission and everything it owns. Callers enforce
// the unpublished / no-running-jobs preconditions.
func (r *submissionRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		owned := []interface{}{
			&types.Appropriation{},
			&types.ObjectClassProgramActivity{},
			&types.AwardFinancial{},
			&types.AwardProcurement{},
			&types.AwardFinancialAssistance{},
			&types.FlexField{},
		}
		for _, model := range owned {
			if err := txx.Where("submission_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := txx.Where("job_id IN (?)",
			txx.Session(&gorm.Session{NewDB: true}).Model(&types.Job{}).Select("id").Where("submission_id = ?", id),
		).Delete(&types.ErrorMetadata{}).Error; err != nil {
			return err
		}
		if err := txx.Where("job_id IN (?)",
			txx.Session(&gorm.Session{NewDB: true}).Model(&types.Job{}).Select("id").Where("submission_id = ?", id),
		).Delete(&types.JobDependency{}).Error; err != nil {
			return err
		}
		if err := txx.Where("submission_id = ?", id).Delete(&types.Job{}).Error; err != nil {
			return err
		}
		return txx.Where("id = ?", id).Delete(&types.Submission{}).Error
	})
}
