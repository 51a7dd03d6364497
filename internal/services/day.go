package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/apierr"
	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/repos"
	"github.com/storynest/storynest-backend/internal/types"
)

// DayDetail is the resolved view of one plan day: chapter text plus the
// content-cache-backed activity set with the student's answers layered in.
type DayDetail struct {
	PlanID      uuid.UUID           `json:"planId"`
	Index       int                 `json:"index"`
	State       string              `json:"state"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	Chapter     *types.StoryChapter `json:"chapter,omitempty"`
	Activities  []*types.Activity   `json:"activities"`
}

type SubmitAnswersInput struct {
	Answers          map[string]any
	CompleteDay      bool
	TimeSpentSeconds map[string]int
}

type SubmitAnswersResult struct {
	Day             *types.PlanDay `json:"day"`
	NextDayUnlocked *int           `json:"nextDayUnlocked,omitempty"`
	PlanComplete    bool           `json:"planComplete"`
}

// DayService owns the day state machine: locked -> available -> complete,
// monotonic, day N+1 unlocking only on completion of day N.
type DayService interface {
	GetDayDetail(ctx context.Context, planID uuid.UUID, dayIndex int) (*DayDetail, error)
	SubmitAnswers(ctx context.Context, planID uuid.UUID, dayIndex int, input SubmitAnswersInput) (*SubmitAnswersResult, error)
	RegenerateActivity(ctx context.Context, planID uuid.UUID, dayIndex int, activityType string) (*types.Activity, error)
}

type dayService struct {
	db  *gorm.DB
	log *logger.Logger

	planService  PlanService
	planRepo     repos.PlanRepo
	dayRepo      repos.PlanDayRepo
	storyRepo    repos.StoryRepo
	progressRepo repos.ActivityProgressRepo
	cache        ContentCacheService
	validator    AnswerValidator
}

func NewDayService(
	db *gorm.DB,
	baseLog *logger.Logger,
	planService PlanService,
	planRepo repos.PlanRepo,
	dayRepo repos.PlanDayRepo,
	storyRepo repos.StoryRepo,
	progressRepo repos.ActivityProgressRepo,
	cache ContentCacheService,
	validator AnswerValidator,
) DayService {
	return &dayService{
		db:           db,
		log:          baseLog.With("service", "DayService"),
		planService:  planService,
		planRepo:     planRepo,
		dayRepo:      dayRepo,
		storyRepo:    storyRepo,
		progressRepo: progressRepo,
		cache:        cache,
		validator:    validator,
	}
}

func (s *dayService) GetDayDetail(ctx context.Context, planID uuid.UUID, dayIndex int) (*DayDetail, error) {
	plan, student, day, err := s.resolveDay(ctx, planID, dayIndex)
	if err != nil {
		return nil, err
	}
	if day.State == types.DayStateLocked {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeDayLocked, fmt.Errorf("day %d is locked", dayIndex))
	}

	answers := decodeAnswers(day.Answers)
	required := types.RequiredActivityTypes(dayIndex)
	activities := make([]*types.Activity, len(required))

	// Content for each type resolves independently; a slow or failing
	// generator for one type must not block the others.
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, at := range required {
		i, at := i, at
		g.Go(func() error {
			entry, err := s.cache.Resolve(gctx, nil, plan, student, dayIndex, at)
			if err != nil {
				return err
			}
			activity := buildActivity(at, entry, answers[at], s.validator)
			mu.Lock()
			activities[i] = activity
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve day content: %w", err)
	}

	detail := &DayDetail{
		PlanID:      plan.ID,
		Index:       day.Index,
		State:       day.State,
		CompletedAt: day.CompletedAt,
		Activities:  activities,
	}
	chapter, err := s.chapterForDay(ctx, plan.ID, dayIndex)
	if err != nil {
		s.log.Warn("failed to load chapter for day", "plan_id", plan.ID, "day_index", dayIndex, "error", err)
	}
	detail.Chapter = chapter
	return detail, nil
}

func (s *dayService) SubmitAnswers(ctx context.Context, planID uuid.UUID, dayIndex int, input SubmitAnswersInput) (*SubmitAnswersResult, error) {
	plan, student, day, err := s.resolveDay(ctx, planID, dayIndex)
	if err != nil {
		return nil, err
	}
	switch day.State {
	case types.DayStateLocked:
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeDayLocked, fmt.Errorf("day %d is locked", dayIndex))
	case types.DayStateComplete:
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeDayAlreadyComplete, fmt.Errorf("day %d is already complete", dayIndex))
	}

	for at := range input.Answers {
		if !types.IsActivityType(at) {
			return nil, apierr.New(http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("unknown activity type %q", at))
		}
	}

	merged := decodeAnswers(day.Answers)
	for at, response := range input.Answers {
		merged[at] = response
	}
	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}

	required := types.RequiredActivityTypes(dayIndex)

	if !input.CompleteDay {
		applied, err := s.dayRepo.UpdateVersioned(ctx, nil, day.ID, day.Version, map[string]any{
			"answers":    datatypes.JSON(mergedRaw),
			"updated_at": time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("save answers: %w", err)
		}
		if !applied {
			return nil, conflict()
		}
		s.trackPartialProgress(ctx, student.ID, plan.ID, dayIndex, input)
		day.Answers = datatypes.JSON(mergedRaw)
		day.Version++
		return &SubmitAnswersResult{Day: day}, nil
	}

	if failed := s.validator.FailingTypes(required, merged); len(failed) > 0 {
		return nil, &apierr.Error{
			Status:  http.StatusBadRequest,
			Code:    apierr.CodeActivitiesIncomplete,
			Err:     fmt.Errorf("activities incomplete: %v", failed),
			Details: map[string]any{"failed_types": failed},
		}
	}

	now := time.Now()
	result := &SubmitAnswersResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.dayRepo.UpdateVersioned(ctx, tx, day.ID, day.Version, map[string]any{
			"answers":      datatypes.JSON(mergedRaw),
			"state":        types.DayStateComplete,
			"completed_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return fmt.Errorf("complete day: %w", err)
		}
		if !applied {
			return conflict()
		}

		if err := s.progressRepo.MarkCompleted(ctx, tx, student.ID, plan.ID, dayIndex, required); err != nil {
			return fmt.Errorf("mark progress: %w", err)
		}

		// A finished day is never re-answered, so its cached content has
		// nothing left to serve.
		if err := s.cache.Invalidate(ctx, tx, plan.ID, dayIndex); err != nil {
			return fmt.Errorf("clear day content: %w", err)
		}

		totalDays := types.DayCountForVariant(plan.Variant)
		if dayIndex < totalDays {
			if _, err := s.dayRepo.UnlockIfLocked(ctx, tx, plan.ID, dayIndex+1); err != nil {
				return fmt.Errorf("unlock next day: %w", err)
			}
			next := dayIndex + 1
			result.NextDayUnlocked = &next
		} else {
			if err := s.planRepo.UpdateFields(ctx, tx, plan.ID, map[string]any{
				"status":     types.PlanStatusCompleted,
				"updated_at": now,
			}); err != nil {
				return fmt.Errorf("complete plan: %w", err)
			}
			result.PlanComplete = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	day.Answers = datatypes.JSON(mergedRaw)
	day.State = types.DayStateComplete
	day.CompletedAt = &now
	day.Version++
	result.Day = day
	return result, nil
}

func (s *dayService) RegenerateActivity(ctx context.Context, planID uuid.UUID, dayIndex int, activityType string) (*types.Activity, error) {
	if !types.IsActivityType(activityType) {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("unknown activity type %q", activityType))
	}
	plan, student, day, err := s.resolveDay(ctx, planID, dayIndex)
	if err != nil {
		return nil, err
	}
	if day.State == types.DayStateLocked {
		return nil, apierr.New(http.StatusBadRequest, apierr.CodeDayLocked, fmt.Errorf("day %d is locked", dayIndex))
	}

	entry, err := s.cache.Regenerate(ctx, nil, plan, student, dayIndex, activityType)
	if err != nil {
		if errors.Is(err, ErrGeneratorUnavailable) {
			return nil, apierr.New(http.StatusServiceUnavailable, apierr.CodeGeneratorUnavailable, err)
		}
		return nil, fmt.Errorf("regenerate content: %w", err)
	}

	answers := decodeAnswers(day.Answers)
	return buildActivity(activityType, entry, answers[activityType], s.validator), nil
}

func (s *dayService) resolveDay(ctx context.Context, planID uuid.UUID, dayIndex int) (*types.Plan, *types.Student, *types.PlanDay, error) {
	plan, student, err := s.planService.ResolveOwned(ctx, nil, planID)
	if err != nil {
		return nil, nil, nil, err
	}
	day, err := s.dayRepo.GetByPlanAndIndex(ctx, nil, planID, dayIndex)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load day: %w", err)
	}
	if day == nil {
		return nil, nil, nil, notFound()
	}
	return plan, student, day, nil
}

func (s *dayService) chapterForDay(ctx context.Context, planID uuid.UUID, dayIndex int) (*types.StoryChapter, error) {
	story, err := s.storyRepo.GetByPlanID(ctx, nil, planID)
	if err != nil || story == nil {
		return nil, err
	}
	var chapters []types.StoryChapter
	if err := json.Unmarshal(story.Chapters, &chapters); err != nil {
		return nil, err
	}
	for i := range chapters {
		if chapters[i].Index == dayIndex {
			return &chapters[i], nil
		}
	}
	return nil, nil
}

// trackPartialProgress is best effort: answer persistence must not fail
// because the progress ledger write did.
func (s *dayService) trackPartialProgress(ctx context.Context, studentID, planID uuid.UUID, dayIndex int, input SubmitAnswersInput) {
	for at := range input.Answers {
		spent := input.TimeSpentSeconds[at]
		if err := s.progressRepo.MarkInProgress(ctx, nil, studentID, planID, dayIndex, at, spent); err != nil {
			s.log.Warn("failed to track activity progress", "plan_id", planID, "day_index", dayIndex, "activity_type", at, "error", err)
		}
	}
}

func buildActivity(activityType string, entry *types.ActivityContent, response any, validator AnswerValidator) *types.Activity {
	var data map[string]any
	_ = json.Unmarshal(entry.Content, &data)
	prompt, _ := data["prompt"].(string)
	return &types.Activity{
		Type:        activityType,
		Prompt:      prompt,
		Data:        data,
		ContentHash: entry.ContentHash,
		Response:    response,
		Completed:   response != nil && validator.Validate(activityType, response),
	}
}

func conflict() *apierr.Error {
	return apierr.New(http.StatusConflict, apierr.CodeConflict, fmt.Errorf("day was modified concurrently, retry"))
}
