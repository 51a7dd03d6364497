package services

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/apierr"
	"github.com/storynest/storynest-backend/internal/repos"
	"github.com/storynest/storynest-backend/internal/types"
)

func newPlanReadFixture(t *testing.T) (*gorm.DB, PlanService, *types.User, *types.Student) {
	t.Helper()
	gdb := newTestDB(t)
	log := newTestLogger()
	user, student := seedStudent(t, gdb, 9)
	svc := NewPlanService(log, repos.NewPlanRepo(gdb, log), repos.NewStudentRepo(gdb, log), 45*time.Second)
	return gdb, svc, user, student
}

func seedPlanWithDays(t *testing.T, gdb *gorm.DB, studentID uuid.UUID, status string, dayStates []string) *types.Plan {
	t.Helper()
	plan := &types.Plan{
		ID:        uuid.New(),
		StudentID: studentID,
		Name:      "River week",
		Theme:     "Rivers",
		Variant:   types.PlanVariantShort,
		Status:    status,
	}
	if err := gdb.Create(plan).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}
	for i, state := range dayStates {
		day := &types.PlanDay{
			ID:      uuid.New(),
			PlanID:  plan.ID,
			Index:   i + 1,
			State:   state,
			Answers: datatypes.JSON([]byte(`{}`)),
		}
		if state == types.DayStateComplete {
			now := time.Now()
			day.CompletedAt = &now
		}
		if err := gdb.Create(day).Error; err != nil {
			t.Fatalf("create day %d: %v", i+1, err)
		}
	}
	return plan
}

func TestGetPlanWithProgress_AggregatesDayStates(t *testing.T) {
	gdb, svc, user, student := newPlanReadFixture(t)
	plan := seedPlanWithDays(t, gdb, student.ID, types.PlanStatusActive,
		[]string{types.DayStateComplete, types.DayStateAvailable, types.DayStateLocked})

	loaded, progress, err := svc.GetPlanWithProgress(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if loaded.ID != plan.ID || len(loaded.Days) != 3 {
		t.Fatalf("expected plan with 3 days, got %d", len(loaded.Days))
	}
	if progress.CompletedDays != 1 || progress.TotalDays != 3 {
		t.Fatalf("completed/total = %d/%d", progress.CompletedDays, progress.TotalDays)
	}
	if progress.Progress != 33 {
		t.Fatalf("progress = %d, want 33", progress.Progress)
	}
	if progress.NextAvailableDay == nil || *progress.NextAvailableDay != 2 {
		t.Fatalf("next available day = %v, want 2", progress.NextAvailableDay)
	}
}

func TestGetPlanWithProgress_AllDaysComplete(t *testing.T) {
	gdb, svc, user, student := newPlanReadFixture(t)
	plan := seedPlanWithDays(t, gdb, student.ID, types.PlanStatusCompleted,
		[]string{types.DayStateComplete, types.DayStateComplete, types.DayStateComplete})

	_, progress, err := svc.GetPlanWithProgress(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if progress.CompletedDays != 3 || progress.Progress != 100 {
		t.Fatalf("completed/progress = %d/%d", progress.CompletedDays, progress.Progress)
	}
	if progress.NextAvailableDay != nil {
		t.Fatalf("finished plan must have no next available day, got %d", *progress.NextAvailableDay)
	}
}

func TestGetPlanWithProgress_OtherUsersPlanLooksMissing(t *testing.T) {
	gdb, svc, _, student := newPlanReadFixture(t)
	plan := seedPlanWithDays(t, gdb, student.ID, types.PlanStatusActive,
		[]string{types.DayStateAvailable, types.DayStateLocked, types.DayStateLocked})
	otherUser, _ := seedStudent(t, gdb, 12)

	_, _, err := svc.GetPlanWithProgress(authedCtx(otherUser.ID), plan.ID)
	requireAPICode(t, err, apierr.CodeNotFound)
}

func TestGetStatus_GeneratingPlanEstimatesCompletion(t *testing.T) {
	gdb, svc, user, student := newPlanReadFixture(t)
	plan := seedPlanWithDays(t, gdb, student.ID, types.PlanStatusGenerating, nil)

	status, err := svc.GetStatus(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.Status != types.PlanStatusGenerating {
		t.Fatalf("status = %s", status.Status)
	}
	if status.EstimatedCompletionSeconds == nil {
		t.Fatalf("generating plan must carry an estimate")
	}
	if est := *status.EstimatedCompletionSeconds; est < 5 || est > 45 {
		t.Fatalf("estimate %d outside [5, 45]", est)
	}
}

func TestGetStatus_EstimateClampsNearZero(t *testing.T) {
	gdb, svc, user, student := newPlanReadFixture(t)
	plan := seedPlanWithDays(t, gdb, student.ID, types.PlanStatusGenerating, nil)

	// A generation running far longer than typical still reports a floor,
	// never a zero or negative countdown.
	if err := gdb.Model(&types.Plan{}).Where("id = ?", plan.ID).
		Update("created_at", time.Now().Add(-10*time.Minute)).Error; err != nil {
		t.Fatalf("age plan: %v", err)
	}

	status, err := svc.GetStatus(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.EstimatedCompletionSeconds == nil || *status.EstimatedCompletionSeconds != 5 {
		t.Fatalf("estimate = %v, want the 5 second floor", status.EstimatedCompletionSeconds)
	}
}

func TestGetStatus_ActivePlanHasNoEstimate(t *testing.T) {
	gdb, svc, user, student := newPlanReadFixture(t)
	plan := seedPlanWithDays(t, gdb, student.ID, types.PlanStatusActive,
		[]string{types.DayStateAvailable, types.DayStateLocked, types.DayStateLocked})

	status, err := svc.GetStatus(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.Status != types.PlanStatusActive {
		t.Fatalf("status = %s", status.Status)
	}
	if status.EstimatedCompletionSeconds != nil {
		t.Fatalf("non-generating plan must not carry an estimate")
	}
}

func TestPlanReadWireFieldNames(t *testing.T) {
	gdb, svc, user, student := newPlanReadFixture(t)
	plan := seedPlanWithDays(t, gdb, student.ID, types.PlanStatusActive,
		[]string{types.DayStateComplete, types.DayStateAvailable, types.DayStateLocked})

	_, progress, err := svc.GetPlanWithProgress(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	raw, err := json.Marshal(progress)
	if err != nil {
		t.Fatalf("encode progress: %v", err)
	}
	body := string(raw)
	for _, key := range []string{`"completedDays"`, `"totalDays"`, `"progress"`, `"nextAvailableDay"`} {
		if !strings.Contains(body, key) {
			t.Fatalf("progress body missing %s: %s", key, body)
		}
	}

	if err := gdb.Model(&types.Plan{}).Where("id = ?", plan.ID).
		Update("status", types.PlanStatusGenerating).Error; err != nil {
		t.Fatalf("flip status: %v", err)
	}
	status, err := svc.GetStatus(authedCtx(user.ID), plan.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	raw, err = json.Marshal(status)
	if err != nil {
		t.Fatalf("encode status: %v", err)
	}
	if !strings.Contains(string(raw), `"estimatedCompletionSeconds"`) {
		t.Fatalf("status body missing estimatedCompletionSeconds: %s", raw)
	}
}
