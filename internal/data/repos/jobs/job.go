package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type JobRepo interface {
	Create(dbc dbctx.Context, jobs []*types.Job) ([]*types.Job, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error)
	GetBySubmission(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.Job, error)
	GetBySubmissionTypeFile(dbc dbctx.Context, submissionID uuid.UUID, jobType types.JobType, fileType types.FileType) (*types.Job, error)
	GetByGeneration(dbc dbctx.Context, fileGenerationID uuid.UUID) ([]*types.Job, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// TransitionStatus moves a job from any of the allowed source
	// statuses and reports whether the row actually moved.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []types.JobStatus, to types.JobStatus, updates map[string]interface{}) (bool, error)
	SumCounts(dbc dbctx.Context, submissionID uuid.UUID) (errorsTotal int, warningsTotal int, err error)
	CountRunning(dbc dbctx.Context, submissionID uuid.UUID) (int64, error)
	ListOverrunning(dbc dbctx.Context, startedBefore time.Time) ([]*types.Job, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{
		db:  db,
		log: baseLog.With("repo", "JobRepo"),
	}
}

func (r *jobRepo) Create(dbc dbctx.Context, jobs []*types.Job) ([]*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(jobs) == 0 {
		return []*types.Job{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var job types.Job
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) GetBySubmission(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Job
	if err := transaction.WithContext(dbc.Ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) GetBySubmissionTypeFile(dbc dbctx.Context, submissionID uuid.UUID, jobType types.JobType, fileType types.FileType) (*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var job types.Job
	err := transaction.WithContext(dbc.Ctx).
		Where("submission_id = ? AND job_type = ? AND file_type = ?", submissionID, jobType, fileType).
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRepo) GetByGeneration(dbc dbctx.Context, fileGenerationID uuid.UUID) ([]*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Job
	if err := transaction.WithContext(dbc.Ctx).
		Where("file_generation_id = ?", fileGenerationID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []types.JobStatus, to types.JobStatus, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.Job{}).
		Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepo) SumCounts(dbc dbctx.Context, submissionID uuid.UUID) (int, int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row struct {
		Errors   int
		Warnings int
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Job{}).
		Select("COALESCE(SUM(number_of_errors), 0) AS errors, COALESCE(SUM(number_of_warnings), 0) AS warnings").
		Where("submission_id = ?", submissionID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Errors, row.Warnings, nil
}

func (r *jobRepo) CountRunning(dbc dbctx.Context, submissionID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Job{}).
		Where("submission_id = ? AND status = ?", submissionID, types.StatusRunning).
		Count(&count).Error
	return count, err
}

func (r *jobRepo) ListOverrunning(dbc dbctx.Context, startedBefore time.Time) ([]*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Job
	err := transaction.WithContext(dbc.Ctx).
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", types.StatusRunning, startedBefore).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
