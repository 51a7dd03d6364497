package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/repos"
	"github.com/storynest/storynest-backend/internal/types"
)

// ErrGeneratorUnavailable marks a forced regeneration that could not reach
// the generator. Plain reads never return it; they fall back instead.
var ErrGeneratorUnavailable = errors.New("generator unavailable")

// ContentCacheService resolves per-(day, activity type) generated content
// cache-aside: unexpired rows are served as-is, misses call the generator
// and persist the result with a fresh TTL, generator failures fall back to
// static content that is deliberately not cached.
type ContentCacheService interface {
	Resolve(ctx context.Context, tx *gorm.DB, plan *types.Plan, student *types.Student, dayIndex int, activityType string) (*types.ActivityContent, error)
	// Regenerate drops the cached entry and generates fresh content. Unlike
	// Resolve it does not fall back: the caller asked for new content, so a
	// generator outage is reported as ErrGeneratorUnavailable.
	Regenerate(ctx context.Context, tx *gorm.DB, plan *types.Plan, student *types.Student, dayIndex int, activityType string) (*types.ActivityContent, error)
	Invalidate(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int) error
	InvalidateOne(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int, activityType string) error
}

type contentCacheService struct {
	log         *logger.Logger
	contentRepo repos.ActivityContentRepo
	generator   ContentGenerator
	fallback    FallbackProvider
	ttl         time.Duration
}

func NewContentCacheService(
	baseLog *logger.Logger,
	contentRepo repos.ActivityContentRepo,
	generator ContentGenerator,
	fallback FallbackProvider,
	ttl time.Duration,
) ContentCacheService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &contentCacheService{
		log:         baseLog.With("service", "ContentCacheService"),
		contentRepo: contentRepo,
		generator:   generator,
		fallback:    fallback,
		ttl:         ttl,
	}
}

func (s *contentCacheService) Resolve(ctx context.Context, tx *gorm.DB, plan *types.Plan, student *types.Student, dayIndex int, activityType string) (*types.ActivityContent, error) {
	if plan == nil || student == nil {
		return nil, fmt.Errorf("plan and student required")
	}
	if !types.IsActivityType(activityType) {
		return nil, fmt.Errorf("unknown activity type %q", activityType)
	}

	cached, err := s.contentRepo.GetByKey(ctx, tx, plan.ID, dayIndex, activityType)
	if err != nil {
		return nil, fmt.Errorf("read content cache: %w", err)
	}
	if cached != nil && time.Now().Before(cached.ExpiresAt) {
		return cached, nil
	}

	payload, genErr := s.generator.GenerateActivity(ctx, student, plan.Theme, dayIndex, activityType)
	if genErr != nil {
		s.log.Warn("activity generation failed, serving fallback",
			"plan_id", plan.ID, "day_index", dayIndex, "activity_type", activityType, "error", genErr)
		return s.fallbackEntry(plan, student, dayIndex, activityType)
	}

	return s.storeGenerated(ctx, tx, plan, student, dayIndex, activityType, payload)
}

func (s *contentCacheService) Regenerate(ctx context.Context, tx *gorm.DB, plan *types.Plan, student *types.Student, dayIndex int, activityType string) (*types.ActivityContent, error) {
	if plan == nil || student == nil {
		return nil, fmt.Errorf("plan and student required")
	}
	if !types.IsActivityType(activityType) {
		return nil, fmt.Errorf("unknown activity type %q", activityType)
	}

	if err := s.InvalidateOne(ctx, tx, plan.ID, dayIndex, activityType); err != nil {
		return nil, fmt.Errorf("drop cached content: %w", err)
	}

	payload, genErr := s.generator.GenerateActivity(ctx, student, plan.Theme, dayIndex, activityType)
	if genErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, genErr)
	}

	return s.storeGenerated(ctx, tx, plan, student, dayIndex, activityType, payload)
}

func (s *contentCacheService) Invalidate(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int) error {
	return s.contentRepo.DeleteByDay(ctx, tx, planID, dayIndex)
}

func (s *contentCacheService) InvalidateOne(ctx context.Context, tx *gorm.DB, planID uuid.UUID, dayIndex int, activityType string) error {
	return s.contentRepo.DeleteByKey(ctx, tx, planID, dayIndex, activityType)
}

func (s *contentCacheService) storeGenerated(ctx context.Context, tx *gorm.DB, plan *types.Plan, student *types.Student, dayIndex int, activityType string, payload map[string]any) (*types.ActivityContent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode generated content: %w", err)
	}
	entry := &types.ActivityContent{
		ID:           uuid.New(),
		PlanID:       plan.ID,
		DayIndex:     dayIndex,
		ActivityType: activityType,
		Content:      datatypes.JSON(raw),
		ContentHash:  hashContent(raw),
		StudentAge:   student.Age,
		ExpiresAt:    time.Now().Add(s.ttl),
	}
	if err := s.contentRepo.Upsert(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("upsert content cache: %w", err)
	}
	return entry, nil
}

// fallbackEntry builds a transient entry around static content. ExpiresAt
// is already past so a stale copy can never be mistaken for cacheable.
func (s *contentCacheService) fallbackEntry(plan *types.Plan, student *types.Student, dayIndex int, activityType string) (*types.ActivityContent, error) {
	payload := s.fallback.ActivityContent(activityType, student.Age)
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode fallback content: %w", err)
	}
	return &types.ActivityContent{
		PlanID:       plan.ID,
		DayIndex:     dayIndex,
		ActivityType: activityType,
		Content:      datatypes.JSON(raw),
		ContentHash:  hashContent(raw),
		StudentAge:   student.Age,
		ExpiresAt:    time.Now(),
	}, nil
}

// hashContent changes iff the content bytes change; exposed to clients
// for cheap change detection.
func hashContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
