package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/types"
)

type StoryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Story) (*types.Story, error)
	GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (*types.Story, error)
}

type storyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoryRepo(db *gorm.DB, baseLog *logger.Logger) StoryRepo {
	return &storyRepo{db: db, log: baseLog.With("repo", "StoryRepo")}
}

func (r *storyRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Story) (*types.Story, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *storyRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (*types.Story, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if planID == uuid.Nil {
		return nil, nil
	}
	var result types.Story
	err := transaction.WithContext(ctx).
		Where("plan_id = ?", planID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
