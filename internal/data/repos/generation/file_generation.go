package generation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/logger"
)

type FileGenerationRepo interface {
	Create(dbc dbctx.Context, gen *types.FileGeneration) (*types.FileGeneration, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FileGeneration, error)
	// FindCached returns the cached generation for the key, or nil.
	FindCached(dbc dbctx.Context, key types.GenerationKey) (*types.FileGeneration, error)
	// FindPending returns the oldest in-flight (uncached, not yet
	// produced) generation for the key, or nil. Losers of the start
	// race attach to it.
	FindPending(dbc dbctx.Context, key types.GenerationKey) (*types.FileGeneration, error)
	// MarkCached stores the artifact on the row, flips it to cached and
	// un-caches every other row with the same key in one transaction.
	// Latest completion wins the cached slot.
	MarkCached(dbc dbctx.Context, id uuid.UUID, filePath string, rowCount int) error
	Uncache(dbc dbctx.Context, id uuid.UUID) error
}

type fileGenerationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileGenerationRepo(db *gorm.DB, baseLog *logger.Logger) FileGenerationRepo {
	return &fileGenerationRepo{
		db:  db,
		log: baseLog.With("repo", "FileGenerationRepo"),
	}
}

func (r *fileGenerationRepo) Create(dbc dbctx.Context, gen *types.FileGeneration) (*types.FileGeneration, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(gen).Error; err != nil {
		return nil, err
	}
	return gen, nil
}

func (r *fileGenerationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FileGeneration, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var gen types.FileGeneration
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&gen).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gen, nil
}

func keyScope(q *gorm.DB, key types.GenerationKey) *gorm.DB {
	return q.Where(
		"file_type = ? AND agency_code = ? AND agency_role = ? AND start_date = ? AND end_date = ?",
		key.FileType, key.AgencyCode, key.AgencyRole, key.Start, key.End,
	)
}

func (r *fileGenerationRepo) FindCached(dbc dbctx.Context, key types.GenerationKey) (*types.FileGeneration, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var gen types.FileGeneration
	err := keyScope(transaction.WithContext(dbc.Ctx), key).
		Where("is_cached = ?", true).
		Order("request_date DESC").
		Limit(1).
		Find(&gen).Error
	if err != nil {
		return nil, err
	}
	if gen.ID == uuid.Nil {
		return nil, nil
	}
	return &gen, nil
}

func (r *fileGenerationRepo) FindPending(dbc dbctx.Context, key types.GenerationKey) (*types.FileGeneration, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var gen types.FileGeneration
	err := keyScope(transaction.WithContext(dbc.Ctx), key).
		Where("is_cached = ? AND file_path = ''", false).
		Order("request_date ASC").
		Limit(1).
		Find(&gen).Error
	if err != nil {
		return nil, err
	}
	if gen.ID == uuid.Nil {
		return nil, nil
	}
	return &gen, nil
}

func (r *fileGenerationRepo) MarkCached(dbc dbctx.Context, id uuid.UUID, filePath string, rowCount int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var gen types.FileGeneration
		if err := txx.Where("id = ?", id).First(&gen).Error; err != nil {
			return err
		}
		now := time.Now()
		err := keyScope(txx.Model(&types.FileGeneration{}), gen.Key()).
			Where("id <> ? AND is_cached = ?", id, true).
			Updates(map[string]interface{}{"is_cached": false, "updated_at": now}).Error
		if err != nil {
			return err
		}
		return txx.Model(&types.FileGeneration{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"file_path":      filePath,
				"number_of_rows": rowCount,
				"is_cached":      true,
				"updated_at":     now,
			}).Error
	})
}

func (r *fileGenerationRepo) Uncache(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.FileGeneration{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_cached": false, "updated_at": time.Now()}).Error
}
