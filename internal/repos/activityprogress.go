package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/types"
)

type ActivityProgressRepo interface {
	GetByDay(ctx context.Context, tx *gorm.DB, studentID, planID uuid.UUID, dayIndex int) ([]*types.ActivityProgress, error)
	MarkInProgress(ctx context.Context, tx *gorm.DB, studentID, planID uuid.UUID, dayIndex int, activityType string, timeSpentSeconds int) error
	MarkCompleted(ctx context.Context, tx *gorm.DB, studentID, planID uuid.UUID, dayIndex int, activityTypes []string) error
}

type activityProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityProgressRepo(db *gorm.DB, baseLog *logger.Logger) ActivityProgressRepo {
	return &activityProgressRepo{db: db, log: baseLog.With("repo", "ActivityProgressRepo")}
}

func (r *activityProgressRepo) GetByDay(ctx context.Context, tx *gorm.DB, studentID, planID uuid.UUID, dayIndex int) ([]*types.ActivityProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ActivityProgress
	if studentID == uuid.Nil || planID == uuid.Nil || dayIndex < 1 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND plan_id = ? AND day_index = ?", studentID, planID, dayIndex).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MarkInProgress upserts a row for a first (or repeated) partial answer.
// Completed rows are left alone; time spent accumulates.
func (r *activityProgressRepo) MarkInProgress(ctx context.Context, tx *gorm.DB, studentID, planID uuid.UUID, dayIndex int, activityType string, timeSpentSeconds int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil || planID == uuid.Nil || dayIndex < 1 || activityType == "" {
		return nil
	}
	now := time.Now()
	var existing types.ActivityProgress
	err := transaction.WithContext(ctx).
		Where("student_id = ? AND plan_id = ? AND day_index = ? AND activity_type = ?", studentID, planID, dayIndex, activityType).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		row := &types.ActivityProgress{
			ID:               uuid.New(),
			StudentID:        studentID,
			PlanID:           planID,
			DayIndex:         dayIndex,
			ActivityType:     activityType,
			Status:           types.ActivityProgressInProgress,
			StartedAt:        &now,
			TimeSpentSeconds: timeSpentSeconds,
		}
		return transaction.WithContext(ctx).Create(row).Error
	}
	if err != nil {
		return err
	}
	if existing.Status == types.ActivityProgressCompleted {
		return nil
	}
	updates := map[string]any{
		"status":             types.ActivityProgressInProgress,
		"time_spent_seconds": existing.TimeSpentSeconds + timeSpentSeconds,
	}
	if existing.StartedAt == nil {
		updates["started_at"] = now
	}
	return transaction.WithContext(ctx).
		Model(&types.ActivityProgress{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error
}

// MarkCompleted stamps every listed activity completed and increments its
// attempt counter, creating rows that were never started explicitly.
func (r *activityProgressRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, studentID, planID uuid.UUID, dayIndex int, activityTypes []string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil || planID == uuid.Nil || dayIndex < 1 || len(activityTypes) == 0 {
		return nil
	}
	now := time.Now()
	for _, at := range activityTypes {
		var existing types.ActivityProgress
		err := transaction.WithContext(ctx).
			Where("student_id = ? AND plan_id = ? AND day_index = ? AND activity_type = ?", studentID, planID, dayIndex, at).
			First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			row := &types.ActivityProgress{
				ID:           uuid.New(),
				StudentID:    studentID,
				PlanID:       planID,
				DayIndex:     dayIndex,
				ActivityType: at,
				Status:       types.ActivityProgressCompleted,
				StartedAt:    &now,
				CompletedAt:  &now,
				Attempts:     1,
			}
			if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := transaction.WithContext(ctx).
			Model(&types.ActivityProgress{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"status":       types.ActivityProgressCompleted,
				"completed_at": now,
				"attempts":     existing.Attempts + 1,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}
