package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/storynest/storynest-backend/internal/apierr"
	"github.com/storynest/storynest-backend/internal/repos"
	"github.com/storynest/storynest-backend/internal/types"
)

type genFixture struct {
	gdb     *gorm.DB
	svc     PlanGenerationService
	gen     *fakeGenerator
	lease   *fakeLease
	user    *types.User
	student *types.Student
}

func newGenFixture(t *testing.T) *genFixture {
	t.Helper()
	gdb := newTestDB(t)
	log := newTestLogger()
	user, student := seedStudent(t, gdb, 8)
	gen := &fakeGenerator{}
	lease := newFakeLease()
	svc := NewPlanGenerationService(
		gdb, log,
		repos.NewStudentRepo(gdb, log),
		repos.NewPlanRepo(gdb, log),
		repos.NewStoryRepo(gdb, log),
		repos.NewPlanDayRepo(gdb, log),
		gen, lease,
		5*time.Minute,
		10*time.Second,
	)
	return &genFixture{gdb: gdb, svc: svc, gen: gen, lease: lease, user: user, student: student}
}

func requireAPICode(t *testing.T, err error, code string) *apierr.Error {
	t.Helper()
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, apiErr.Code, apiErr)
	}
	return apiErr
}

func TestCreatePlan_StubThenBackgroundCompletion(t *testing.T) {
	f := newGenFixture(t)
	ctx := authedCtx(f.user.ID)

	plan, inProgress, err := f.svc.CreatePlan(ctx, f.student.ID, "Ocean week", "Ocean", types.PlanVariantShort)
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if inProgress {
		t.Fatalf("first create must not report in progress")
	}
	if plan.Status != types.PlanStatusGenerating {
		t.Fatalf("stub must be returned as generating, got %s", plan.Status)
	}

	waitForPlanStatus(t, f.gdb, plan.ID, types.PlanStatusActive)

	var story types.Story
	if err := f.gdb.Where("plan_id = ?", plan.ID).First(&story).Error; err != nil {
		t.Fatalf("story row missing: %v", err)
	}
	var days []types.PlanDay
	if err := f.gdb.Where("plan_id = ?", plan.ID).Order("day_index ASC").Find(&days).Error; err != nil {
		t.Fatalf("load days: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("short variant must create 3 days, got %d", len(days))
	}
	for _, day := range days {
		want := types.DayStateLocked
		if day.Index == 1 {
			want = types.DayStateAvailable
		}
		if day.State != want {
			t.Fatalf("day %d state = %s, want %s", day.Index, day.State, want)
		}
	}
}

func TestCreatePlan_DuplicateWithinWindowReturnsSamePlan(t *testing.T) {
	f := newGenFixture(t)
	ctx := authedCtx(f.user.ID)

	release := make(chan struct{})
	f.gen.storyFn = func(_ *types.Student, theme string, chapterCount int) (*StoryResult, error) {
		<-release
		chapters := make([]types.StoryChapter, 0, chapterCount)
		for i := 1; i <= chapterCount; i++ {
			chapters = append(chapters, types.StoryChapter{Index: i, Title: "Chapter", Text: "..."})
		}
		return &StoryResult{Title: theme, Chapters: chapters}, nil
	}

	first, _, err := f.svc.CreatePlan(ctx, f.student.ID, "Jungle week", "Jungle", types.PlanVariantStandard)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, inProgress, err := f.svc.CreatePlan(ctx, f.student.ID, "Jungle week", "Jungle", types.PlanVariantStandard)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if inProgress {
		t.Fatalf("duplicate must return the existing stub, not a bare in-progress signal")
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate created a second plan: %s vs %s", second.ID, first.ID)
	}

	var count int64
	if err := f.gdb.Model(&types.Plan{}).Where("student_id = ?", f.student.ID).Count(&count).Error; err != nil {
		t.Fatalf("count plans: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 plan row, got %d", count)
	}

	close(release)
	waitForPlanStatus(t, f.gdb, first.ID, types.PlanStatusActive)
}

func TestCreatePlan_GeneratorFailureMarksPlanFailed(t *testing.T) {
	f := newGenFixture(t)
	ctx := authedCtx(f.user.ID)

	f.gen.storyFn = func(_ *types.Student, _ string, _ int) (*StoryResult, error) {
		return nil, errors.New("upstream returned 500")
	}

	plan, _, err := f.svc.CreatePlan(ctx, f.student.ID, "Desert week", "Desert", types.PlanVariantShort)
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	failed := waitForPlanStatus(t, f.gdb, plan.ID, types.PlanStatusFailed)
	if failed.FailureReason != "upstream returned 500" {
		t.Fatalf("failure reason = %q", failed.FailureReason)
	}
	if failed.Name != "Desert week" || failed.Theme != "Desert" {
		t.Fatalf("failure must not clobber plan fields: %q / %q", failed.Name, failed.Theme)
	}
	var days int64
	if err := f.gdb.Model(&types.PlanDay{}).Where("plan_id = ?", plan.ID).Count(&days).Error; err != nil {
		t.Fatalf("count days: %v", err)
	}
	if days != 0 {
		t.Fatalf("failed generation must not leave day rows, got %d", days)
	}
}

func TestCreatePlan_TimeoutGetsExplicitReason(t *testing.T) {
	f := newGenFixture(t)
	ctx := authedCtx(f.user.ID)

	f.gen.storyFn = func(_ *types.Student, _ string, _ int) (*StoryResult, error) {
		return nil, context.DeadlineExceeded
	}

	plan, _, err := f.svc.CreatePlan(ctx, f.student.ID, "Arctic week", "Arctic", types.PlanVariantShort)
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	failed := waitForPlanStatus(t, f.gdb, plan.ID, types.PlanStatusFailed)
	if failed.FailureReason != "generation timed out" {
		t.Fatalf("failure reason = %q, want the timeout reason", failed.FailureReason)
	}
}

func TestCreatePlan_InputValidation(t *testing.T) {
	f := newGenFixture(t)
	ctx := authedCtx(f.user.ID)

	_, _, err := f.svc.CreatePlan(ctx, f.student.ID, "   ", "Ocean", types.PlanVariantShort)
	requireAPICode(t, err, apierr.CodeValidationFailed)

	_, _, err = f.svc.CreatePlan(ctx, f.student.ID, "Ocean week", "Ocean", "marathon")
	requireAPICode(t, err, apierr.CodeValidationFailed)

	long := make([]byte, maxPlanThemeLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, _, err = f.svc.CreatePlan(ctx, f.student.ID, "Ocean week", string(long), types.PlanVariantShort)
	requireAPICode(t, err, apierr.CodeValidationFailed)
}

func TestCreatePlan_StudentOwnershipEnforced(t *testing.T) {
	f := newGenFixture(t)
	otherUser, _ := seedStudent(t, f.gdb, 10)

	_, _, err := f.svc.CreatePlan(authedCtx(otherUser.ID), f.student.ID, "Ocean week", "Ocean", types.PlanVariantShort)
	requireAPICode(t, err, apierr.CodeNotFound)

	_, _, err = f.svc.CreatePlan(context.Background(), f.student.ID, "Ocean week", "Ocean", types.PlanVariantShort)
	if err == nil {
		t.Fatalf("unauthenticated create must fail")
	}
}

func TestCreatePlan_HeldLeaseReportsInProgress(t *testing.T) {
	f := newGenFixture(t)
	ctx := authedCtx(f.user.ID)

	if ok, _ := f.lease.Acquire(ctx, f.student.ID, time.Minute); !ok {
		t.Fatalf("pre-acquire lease")
	}
	plan, inProgress, err := f.svc.CreatePlan(ctx, f.student.ID, "Ocean week", "Ocean", types.PlanVariantShort)
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if !inProgress || plan != nil {
		t.Fatalf("held lease must report in progress without a stub, got plan=%v inProgress=%v", plan, inProgress)
	}
	var count int64
	if err := f.gdb.Model(&types.Plan{}).Where("student_id = ?", f.student.ID).Count(&count).Error; err != nil {
		t.Fatalf("count plans: %v", err)
	}
	if count != 0 {
		t.Fatalf("held lease must prevent stub creation, got %d rows", count)
	}
}

func TestCreatePlan_DefaultsToStandardVariant(t *testing.T) {
	f := newGenFixture(t)
	ctx := authedCtx(f.user.ID)

	plan, _, err := f.svc.CreatePlan(ctx, f.student.ID, "Ocean week", "Ocean", "")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if plan.Variant != types.PlanVariantStandard {
		t.Fatalf("empty variant must default to standard, got %s", plan.Variant)
	}
	waitForPlanStatus(t, f.gdb, plan.ID, types.PlanStatusActive)

	var days int64
	if err := f.gdb.Model(&types.PlanDay{}).Where("plan_id = ?", plan.ID).Count(&days).Error; err != nil {
		t.Fatalf("count days: %v", err)
	}
	if days != 5 {
		t.Fatalf("standard variant must create 5 days, got %d", days)
	}
}
