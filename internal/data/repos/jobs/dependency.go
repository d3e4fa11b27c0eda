package jobs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type JobDependencyRepo interface {
	Create(dbc dbctx.Context, edges []*types.JobDependency) error
	// PrerequisitesOf returns the jobs the given job depends on.
	PrerequisitesOf(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Job, error)
	// DependentsOf returns the jobs that depend on the given job.
	DependentsOf(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Job, error)
}

type jobDependencyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobDependencyRepo(db *gorm.DB, baseLog *logger.Logger) JobDependencyRepo {
	return &jobDependencyRepo{
		db:  db,
		log: baseLog.With("repo", "JobDependencyRepo"),
	}
}

func (r *jobDependencyRepo) Create(dbc dbctx.Context, edges []*types.JobDependency) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(edges) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&edges).Error
}

func (r *jobDependencyRepo) PrerequisitesOf(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Job
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Job{}).
		Joins("JOIN job_dependency ON job_dependency.prerequisite_id = job.id").
		Where("job_dependency.job_id = ?", jobID).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobDependencyRepo) DependentsOf(dbc dbctx.Context, jobID uuid.UUID) ([]*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Job
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Job{}).
		Joins("JOIN job_dependency ON job_dependency.job_id = job.id").
		Where("job_dependency.prerequisite_id = ?", jobID).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
