package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/types"
)

type PlanDayRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.PlanDay) ([]*types.PlanDay, error)
	GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanDay, error)
	GetByPlanAndIndex(ctx context.Context, tx *gorm.DB, planID uuid.UUID, index int) (*types.PlanDay, error)
	UpdateVersioned(ctx context.Context, tx *gorm.DB, id uuid.UUID, version int, fields map[string]any) (bool, error)
	UnlockIfLocked(ctx context.Context, tx *gorm.DB, planID uuid.UUID, index int) (bool, error)
}

type planDayRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanDayRepo(db *gorm.DB, baseLog *logger.Logger) PlanDayRepo {
	return &planDayRepo{db: db, log: baseLog.With("repo", "PlanDayRepo")}
}

func (r *planDayRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.PlanDay) ([]*types.PlanDay, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.PlanDay{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *planDayRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanDay, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PlanDay
	if planID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("day_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *planDayRepo) GetByPlanAndIndex(ctx context.Context, tx *gorm.DB, planID uuid.UUID, index int) (*types.PlanDay, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if planID == uuid.Nil || index < 1 {
		return nil, nil
	}
	var result types.PlanDay
	err := transaction.WithContext(ctx).
		Where("plan_id = ? AND day_index = ?", planID, index).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateVersioned applies fields only if the stored version still matches,
// bumping the version in the same statement. Returns false when another
// writer got there first.
func (r *planDayRepo) UpdateVersioned(ctx context.Context, tx *gorm.DB, id uuid.UUID, version int, fields map[string]any) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = version + 1
	res := transaction.WithContext(ctx).
		Model(&types.PlanDay{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UnlockIfLocked flips a day to available only from the locked state, so a
// repeat completion of the prior day cannot regress an already-open day.
func (r *planDayRepo) UnlockIfLocked(ctx context.Context, tx *gorm.DB, planID uuid.UUID, index int) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if planID == uuid.Nil || index < 1 {
		return false, nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.PlanDay{}).
		Where("plan_id = ? AND day_index = ? AND state = ?", planID, index, types.DayStateLocked).
		Update("state", types.DayStateAvailable)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
