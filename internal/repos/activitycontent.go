package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/types"
)

type ActivityContentRepo interface {
	GetByKey(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int, activityType string) (*types.ActivityContent, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.ActivityContent) error
	DeleteByDay(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int) error
	DeleteByKey(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int, activityType string) error
}

type activityContentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityContentRepo(db *gorm.DB, baseLog *logger.Logger) ActivityContentRepo {
	return &activityContentRepo{db: db, log: baseLog.With("repo", "ActivityContentRepo")}
}

func (r *activityContentRepo) GetByKey(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int, activityType string) (*types.ActivityContent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if planID == uuid.Nil || dayIndex < 1 || activityType == "" {
		return nil, nil
	}
	var result types.ActivityContent
	err := transaction.WithContext(ctx).
		Where("plan_id = ? AND day_index = ? AND activity_type = ?", planID, dayIndex, activityType).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Upsert by the (plan, day, type) unique key.
func (r *activityContentRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.ActivityContent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	var existing types.ActivityContent
	err := transaction.WithContext(ctx).
		Where("plan_id = ? AND day_index = ? AND activity_type = ?", row.PlanID, row.DayIndex, row.ActivityType).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return transaction.WithContext(ctx).Create(row).Error
	}
	if err != nil {
		return err
	}
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	return transaction.WithContext(ctx).
		Model(&types.ActivityContent{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"content":      row.Content,
			"content_hash": row.ContentHash,
			"student_age":  row.StudentAge,
			"expires_at":   row.ExpiresAt,
		}).Error
}

func (r *activityContentRepo) DeleteByDay(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if planID == uuid.Nil || dayIndex < 1 {
		return nil
	}
	return transaction.WithContext(ctx).
		Unscoped().
		Where("plan_id = ? AND day_index = ?", planID, dayIndex).
		Delete(&types.ActivityContent{}).Error
}

func (r *activityContentRepo) DeleteByKey(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int, activityType string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if planID == uuid.Nil || dayIndex < 1 || activityType == "" {
		return nil
	}
	return transaction.WithContext(ctx).
		Unscoped().
		Where("plan_id = ? AND day_index = ? AND activity_type = ?", planID, dayIndex, activityType).
		Delete(&types.ActivityContent{}).Error
}
