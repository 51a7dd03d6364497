package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/apierr"
	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/repos"
	"github.com/storynest/storynest-backend/internal/requestdata"
	"github.com/storynest/storynest-backend/internal/types"
)

const (
	maxPlanNameLength  = 120
	maxPlanThemeLength = 200
)

// GenerationLease is the cross-process backstop for the duplicate-creation
// guard. Optional: a nil lease degrades to the durable window check plus
// the in-process lock.
type GenerationLease interface {
	Acquire(ctx context.Context, studentID uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, studentID uuid.UUID) error
}

// PlanGenerationService coordinates the create-now-fill-in-later flow:
// a stub plan row is committed and returned immediately, the story and
// days are generated by a deferred task, and duplicate requests for the
// same student are folded into the in-flight generation.
type PlanGenerationService interface {
	// CreatePlan returns the stub (or the already-generating plan on the
	// idempotent path). inProgress is true when generation is already
	// running and no plan row could be returned.
	CreatePlan(ctx context.Context, studentID uuid.UUID, name, theme, variant string) (plan *types.Plan, inProgress bool, err error)
}

type planGenerationService struct {
	db  *gorm.DB
	log *logger.Logger

	studentRepo repos.StudentRepo
	planRepo    repos.PlanRepo
	storyRepo   repos.StoryRepo
	dayRepo     repos.PlanDayRepo

	generator ContentGenerator
	lease     GenerationLease

	// Process-local guard: studentID -> generation in flight.
	mu    sync.Mutex
	locks map[uuid.UUID]bool

	debounceWindow time.Duration
	genTimeout     time.Duration
}

func NewPlanGenerationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	studentRepo repos.StudentRepo,
	planRepo repos.PlanRepo,
	storyRepo repos.StoryRepo,
	dayRepo repos.PlanDayRepo,
	generator ContentGenerator,
	lease GenerationLease,
	debounceWindow time.Duration,
	genTimeout time.Duration,
) PlanGenerationService {
	if debounceWindow <= 0 {
		debounceWindow = 5 * time.Minute
	}
	if genTimeout <= 0 {
		genTimeout = 120 * time.Second
	}
	return &planGenerationService{
		db:             db,
		log:            baseLog.With("service", "PlanGenerationService"),
		studentRepo:    studentRepo,
		planRepo:       planRepo,
		storyRepo:      storyRepo,
		dayRepo:        dayRepo,
		generator:      generator,
		lease:          lease,
		locks:          map[uuid.UUID]bool{},
		debounceWindow: debounceWindow,
		genTimeout:     genTimeout,
	}
}

func (s *planGenerationService) CreatePlan(ctx context.Context, studentID uuid.UUID, name, theme, variant string) (*types.Plan, bool, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, false, apierr.New(http.StatusUnauthorized, apierr.CodeNotFound, fmt.Errorf("not authenticated"))
	}

	name = strings.TrimSpace(name)
	theme = strings.TrimSpace(theme)
	if variant == "" {
		variant = types.PlanVariantStandard
	}
	if err := validatePlanInput(name, theme, variant); err != nil {
		return nil, false, err
	}

	students, err := s.studentRepo.GetByIDs(ctx, nil, []uuid.UUID{studentID})
	if err != nil {
		return nil, false, fmt.Errorf("load student: %w", err)
	}
	if len(students) == 0 || students[0] == nil || students[0].UserID != rd.UserID {
		return nil, false, apierr.New(http.StatusNotFound, apierr.CodeNotFound, fmt.Errorf("student not found"))
	}
	student := students[0]

	// Durable idempotency: reuse a still-generating plan created inside
	// the debounce window. Best effort across instances; two stubs can
	// race past this check, which the lease below narrows further.
	if existing, err := s.planRepo.GetRecentGenerating(ctx, nil, studentID, s.debounceWindow); err != nil {
		return nil, false, fmt.Errorf("check generating plans: %w", err)
	} else if existing != nil {
		return existing, false, nil
	}

	// Transient idempotency: a generation task is running in this process.
	s.mu.Lock()
	inFlight := s.locks[studentID]
	s.mu.Unlock()
	if inFlight {
		return nil, true, nil
	}

	if s.lease != nil {
		acquired, err := s.lease.Acquire(ctx, studentID, s.debounceWindow)
		if err != nil {
			s.log.Warn("generation lease unavailable, continuing without it", "error", err)
		} else if !acquired {
			return nil, true, nil
		}
	}

	now := time.Now()
	plan := &types.Plan{
		ID:        uuid.New(),
		StudentID: studentID,
		Name:      name,
		Theme:     theme,
		Variant:   variant,
		Status:    types.PlanStatusGenerating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.planRepo.Create(ctx, nil, []*types.Plan{plan}); err != nil {
		s.releaseLease(studentID)
		return nil, false, fmt.Errorf("create plan stub: %w", err)
	}

	// Deferred task: runs after the response is written; its outcome is
	// only observable through the status poll.
	go s.runGeneration(plan, student)

	return plan, false, nil
}

func validatePlanInput(name, theme, variant string) error {
	if name == "" || len(name) > maxPlanNameLength {
		return apierr.New(http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("name must be 1-%d characters", maxPlanNameLength))
	}
	if theme == "" || len(theme) > maxPlanThemeLength {
		return apierr.New(http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("theme must be 1-%d characters", maxPlanThemeLength))
	}
	if variant != types.PlanVariantShort && variant != types.PlanVariantStandard {
		return apierr.New(http.StatusBadRequest, apierr.CodeValidationFailed, fmt.Errorf("variant must be %q or %q", types.PlanVariantShort, types.PlanVariantStandard))
	}
	return nil
}

// runGeneration is the background half of plan creation. The lock and
// lease are cleared on every exit path; failures land on the plan row.
func (s *planGenerationService) runGeneration(plan *types.Plan, student *types.Student) {
	s.mu.Lock()
	s.locks[plan.StudentID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.locks, plan.StudentID)
		s.mu.Unlock()
		s.releaseLease(plan.StudentID)
	}()

	genCtx, cancel := context.WithTimeout(context.Background(), s.genTimeout)
	defer cancel()

	dayCount := types.DayCountForVariant(plan.Variant)
	story, err := s.generator.GenerateStory(genCtx, student, plan.Theme, dayCount)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "generation timed out"
		}
		s.markFailed(plan.ID, reason)
		return
	}

	persistCtx, cancelPersist := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelPersist()

	err = s.db.WithContext(persistCtx).Transaction(func(tx *gorm.DB) error {
		chapters, err := jsonBytes(story.Chapters)
		if err != nil {
			return fmt.Errorf("encode chapters: %w", err)
		}
		vocabulary, err := jsonBytes(story.Vocabulary)
		if err != nil {
			return fmt.Errorf("encode vocabulary: %w", err)
		}
		row := &types.Story{
			ID:         uuid.New(),
			PlanID:     plan.ID,
			Title:      story.Title,
			Chapters:   datatypes.JSON(chapters),
			Vocabulary: datatypes.JSON(vocabulary),
		}
		if _, err := s.storyRepo.Create(persistCtx, tx, row); err != nil {
			return fmt.Errorf("create story: %w", err)
		}

		days := make([]*types.PlanDay, 0, dayCount)
		for i := 1; i <= dayCount; i++ {
			state := types.DayStateLocked
			if i == 1 {
				state = types.DayStateAvailable
			}
			days = append(days, &types.PlanDay{
				ID:      uuid.New(),
				PlanID:  plan.ID,
				Index:   i,
				State:   state,
				Answers: datatypes.JSON([]byte(`{}`)),
			})
		}
		if _, err := s.dayRepo.Create(persistCtx, tx, days); err != nil {
			return fmt.Errorf("create days: %w", err)
		}

		return s.planRepo.UpdateFields(persistCtx, tx, plan.ID, map[string]any{
			"status":     types.PlanStatusActive,
			"updated_at": time.Now(),
		})
	})
	if err != nil {
		s.markFailed(plan.ID, err.Error())
		return
	}

	s.log.Info("plan generation finished", "plan_id", plan.ID, "student_id", plan.StudentID, "days", dayCount)
}

func (s *planGenerationService) markFailed(planID uuid.UUID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.planRepo.UpdateFields(ctx, nil, planID, map[string]any{
		"status":         types.PlanStatusFailed,
		"failure_reason": reason,
		"updated_at":     time.Now(),
	}); err != nil {
		s.log.Error("failed to record plan failure", "plan_id", planID, "error", err)
	}
	s.log.Warn("plan generation failed", "plan_id", planID, "reason", reason)
}

func (s *planGenerationService) releaseLease(studentID uuid.UUID) {
	if s.lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.lease.Release(ctx, studentID); err != nil {
		s.log.Warn("failed to release generation lease", "student_id", studentID, "error", err)
	}
}
