package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/apierr"
	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/repos"
	"github.com/storynest/storynest-backend/internal/requestdata"
	"github.com/storynest/storynest-backend/internal/types"
)

// PlanProgress aggregates day completion for plan reads.
type PlanProgress struct {
	CompletedDays    int  `json:"completedDays"`
	TotalDays        int  `json:"totalDays"`
	Progress         int  `json:"progress"`
	NextAvailableDay *int `json:"nextAvailableDay,omitempty"`
}

// PlanStatus is the lightweight poll payload.
type PlanStatus struct {
	Status                     string `json:"status"`
	EstimatedCompletionSeconds *int   `json:"estimatedCompletionSeconds,omitempty"`
}

type PlanService interface {
	GetPlanWithProgress(ctx context.Context, planID uuid.UUID) (*types.Plan, *PlanProgress, error)
	GetStatus(ctx context.Context, planID uuid.UUID) (*PlanStatus, error)
	// ResolveOwned loads a plan and its student, enforcing that the
	// requesting account owns the student. Missing and not-owned are
	// indistinguishable to the caller.
	ResolveOwned(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (*types.Plan, *types.Student, error)
}

type planService struct {
	log         *logger.Logger
	planRepo    repos.PlanRepo
	studentRepo repos.StudentRepo
	typicalGen  time.Duration
}

func NewPlanService(
	baseLog *logger.Logger,
	planRepo repos.PlanRepo,
	studentRepo repos.StudentRepo,
	typicalGen time.Duration,
) PlanService {
	if typicalGen <= 0 {
		typicalGen = 45 * time.Second
	}
	return &planService{
		log:         baseLog.With("service", "PlanService"),
		planRepo:    planRepo,
		studentRepo: studentRepo,
		typicalGen:  typicalGen,
	}
}

func (s *planService) ResolveOwned(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (*types.Plan, *types.Student, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, nil, apierr.New(http.StatusUnauthorized, apierr.CodeNotFound, fmt.Errorf("not authenticated"))
	}
	if planID == uuid.Nil {
		return nil, nil, notFound()
	}

	plan, err := s.planRepo.GetWithDays(ctx, tx, planID)
	if err != nil {
		return nil, nil, fmt.Errorf("load plan: %w", err)
	}
	if plan == nil {
		return nil, nil, notFound()
	}

	students, err := s.studentRepo.GetByIDs(ctx, tx, []uuid.UUID{plan.StudentID})
	if err != nil {
		return nil, nil, fmt.Errorf("load student: %w", err)
	}
	if len(students) == 0 || students[0] == nil || students[0].UserID != rd.UserID {
		return nil, nil, notFound()
	}
	return plan, students[0], nil
}

func (s *planService) GetPlanWithProgress(ctx context.Context, planID uuid.UUID) (*types.Plan, *PlanProgress, error) {
	plan, _, err := s.ResolveOwned(ctx, nil, planID)
	if err != nil {
		return nil, nil, err
	}

	totalDays := types.DayCountForVariant(plan.Variant)
	progress := &PlanProgress{TotalDays: totalDays}
	for _, day := range plan.Days {
		if day == nil {
			continue
		}
		switch day.State {
		case types.DayStateComplete:
			progress.CompletedDays++
		case types.DayStateAvailable:
			if progress.NextAvailableDay == nil || day.Index < *progress.NextAvailableDay {
				idx := day.Index
				progress.NextAvailableDay = &idx
			}
		}
	}
	if totalDays > 0 {
		progress.Progress = progress.CompletedDays * 100 / totalDays
	}
	return plan, progress, nil
}

func (s *planService) GetStatus(ctx context.Context, planID uuid.UUID) (*PlanStatus, error) {
	plan, _, err := s.ResolveOwned(ctx, nil, planID)
	if err != nil {
		return nil, err
	}

	status := &PlanStatus{Status: plan.Status}
	if plan.Status == types.PlanStatusGenerating {
		remaining := int(s.typicalGen.Seconds()) - int(time.Since(plan.CreatedAt).Seconds())
		if remaining < 5 {
			remaining = 5
		}
		status.EstimatedCompletionSeconds = &remaining
	}
	return status, nil
}

func notFound() *apierr.Error {
	return apierr.New(http.StatusNotFound, apierr.CodeNotFound, fmt.Errorf("plan not found"))
}
