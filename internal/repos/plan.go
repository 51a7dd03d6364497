package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/types"
)

type PlanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Plan) ([]*types.Plan, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Plan, error)
	GetWithDays(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Plan, error)
	GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.Plan, error)
	GetRecentGenerating(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, window time.Duration) (*types.Plan, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type planRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanRepo(db *gorm.DB, baseLog *logger.Logger) PlanRepo {
	return &planRepo{db: db, log: baseLog.With("repo", "PlanRepo")}
}

func (r *planRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Plan) ([]*types.Plan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Plan{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *planRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Plan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Plan
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *planRepo) GetWithDays(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Plan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var result types.Plan
	err := transaction.WithContext(ctx).
		Preload("Story").
		Preload("Days", func(db *gorm.DB) *gorm.DB {
			return db.Order("day_index ASC")
		}).
		Where("id = ?", id).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *planRepo) GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.Plan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Plan
	if studentID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetRecentGenerating returns the newest still-generating plan for a
// student created inside the debounce window, if any. This is the durable
// half of the duplicate-creation guard.
func (r *planRepo) GetRecentGenerating(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, window time.Duration) (*types.Plan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil {
		return nil, nil
	}
	cutoff := time.Now().Add(-window)
	var result types.Plan
	err := transaction.WithContext(ctx).
		Where("student_id = ? AND status = ? AND created_at > ?", studentID, types.PlanStatusGenerating, cutoff).
		Order("created_at DESC").
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *planRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Plan{}).
		Where("id = ?", id).
		Updates(fields).Error
}
