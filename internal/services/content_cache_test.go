package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/storynest/storynest-backend/internal/repos"
	"github.com/storynest/storynest-backend/internal/types"
)

func newCacheFixture(t *testing.T) (ContentCacheService, *fakeGenerator, *types.Plan, *types.Student, repos.ActivityContentRepo) {
	t.Helper()
	gdb := newTestDB(t)
	log := newTestLogger()
	_, student := seedStudent(t, gdb, 9)
	plan := &types.Plan{
		ID:        uuid.New(),
		StudentID: student.ID,
		Name:      "Space week",
		Theme:     "Space",
		Variant:   types.PlanVariantShort,
		Status:    types.PlanStatusActive,
	}
	if err := gdb.Create(plan).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}
	gen := &fakeGenerator{}
	contentRepo := repos.NewActivityContentRepo(gdb, log)
	cache := NewContentCacheService(log, contentRepo, gen, NewStaticFallbackProvider(), 24*time.Hour)
	return cache, gen, plan, student, contentRepo
}

func TestResolve_CachesWithinTTL(t *testing.T) {
	cache, gen, plan, student, _ := newCacheFixture(t)
	ctx := context.Background()

	first, err := cache.Resolve(ctx, nil, plan, student, 1, types.ActivityTypeWho)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if gen.ActivityCalls() != 1 {
		t.Fatalf("expected 1 generator call, got %d", gen.ActivityCalls())
	}

	second, err := cache.Resolve(ctx, nil, plan, student, 1, types.ActivityTypeWho)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if gen.ActivityCalls() != 1 {
		t.Fatalf("cached read must not call the generator, got %d calls", gen.ActivityCalls())
	}
	if first.ContentHash != second.ContentHash {
		t.Fatalf("cached read must return identical content: %s vs %s", first.ContentHash, second.ContentHash)
	}
	if string(first.Content) != string(second.Content) {
		t.Fatalf("cached content bytes changed")
	}
}

func TestResolve_RegeneratesAfterExpiry(t *testing.T) {
	cache, gen, plan, student, contentRepo := newCacheFixture(t)
	ctx := context.Background()

	first, err := cache.Resolve(ctx, nil, plan, student, 1, types.ActivityTypeSequence)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	// Force expiry, then change what the generator would return.
	expired := *first
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if err := contentRepo.Upsert(ctx, nil, &expired); err != nil {
		t.Fatalf("expire entry: %v", err)
	}
	gen.activityFn = func(_ *types.Student, _ string, dayIndex int, activityType string) (map[string]any, error) {
		return map[string]any{"prompt": "fresh prompt", "items": []string{"a", "b"}}, nil
	}

	second, err := cache.Resolve(ctx, nil, plan, student, 1, types.ActivityTypeSequence)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if gen.ActivityCalls() != 2 {
		t.Fatalf("expired entry must trigger regeneration, got %d calls", gen.ActivityCalls())
	}
	if second.ContentHash == first.ContentHash {
		t.Fatalf("changed payload must change the hash")
	}
	if !second.ExpiresAt.After(time.Now()) {
		t.Fatalf("regenerated entry must carry a fresh expiry")
	}
}

func TestResolve_FallbackIsNeverCached(t *testing.T) {
	cache, gen, plan, student, contentRepo := newCacheFixture(t)
	ctx := context.Background()

	gen.activityFn = func(_ *types.Student, _ string, _ int, _ string) (map[string]any, error) {
		return nil, errors.New("generator down")
	}
	entry, err := cache.Resolve(ctx, nil, plan, student, 2, types.ActivityTypeVocabulary)
	if err != nil {
		t.Fatalf("fallback resolve: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(entry.Content, &payload); err != nil {
		t.Fatalf("decode fallback: %v", err)
	}
	if payload["fallback"] != true {
		t.Fatalf("expected fallback payload, got %v", payload)
	}
	if cached, _ := contentRepo.GetByKey(ctx, nil, plan.ID, 2, types.ActivityTypeVocabulary); cached != nil {
		t.Fatalf("fallback content must not be written to the cache")
	}

	// Generator recovers: the next read must attempt generation again.
	gen.activityFn = nil
	recovered, err := cache.Resolve(ctx, nil, plan, student, 2, types.ActivityTypeVocabulary)
	if err != nil {
		t.Fatalf("recovered resolve: %v", err)
	}
	if gen.ActivityCalls() != 2 {
		t.Fatalf("recovery read must call the generator, got %d calls", gen.ActivityCalls())
	}
	if recovered.ContentHash == entry.ContentHash {
		t.Fatalf("recovered content must differ from the fallback")
	}
	if cached, _ := contentRepo.GetByKey(ctx, nil, plan.ID, 2, types.ActivityTypeVocabulary); cached == nil {
		t.Fatalf("recovered content must be cached")
	}
}

func TestRegenerate_ReplacesCachedContent(t *testing.T) {
	cache, gen, plan, student, contentRepo := newCacheFixture(t)
	ctx := context.Background()

	first, err := cache.Resolve(ctx, nil, plan, student, 1, types.ActivityTypeWho)
	if err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	gen.activityFn = func(_ *types.Student, _ string, _ int, _ string) (map[string]any, error) {
		return map[string]any{"prompt": "a different question", "examples": []string{"x"}}, nil
	}
	fresh, err := cache.Regenerate(ctx, nil, plan, student, 1, types.ActivityTypeWho)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if fresh.ContentHash == first.ContentHash {
		t.Fatalf("regeneration must produce new content")
	}
	cached, err := contentRepo.GetByKey(ctx, nil, plan.ID, 1, types.ActivityTypeWho)
	if err != nil || cached == nil {
		t.Fatalf("regenerated content must be cached: %v", err)
	}
	if cached.ContentHash != fresh.ContentHash {
		t.Fatalf("cache holds %s, returned %s", cached.ContentHash, fresh.ContentHash)
	}
}

func TestRegenerate_GeneratorFailureSurfacesError(t *testing.T) {
	cache, gen, plan, student, contentRepo := newCacheFixture(t)
	ctx := context.Background()

	if _, err := cache.Resolve(ctx, nil, plan, student, 1, types.ActivityTypeWho); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	gen.activityFn = func(_ *types.Student, _ string, _ int, _ string) (map[string]any, error) {
		return nil, errors.New("generator down")
	}
	_, err := cache.Regenerate(ctx, nil, plan, student, 1, types.ActivityTypeWho)
	if !errors.Is(err, ErrGeneratorUnavailable) {
		t.Fatalf("expected ErrGeneratorUnavailable, got %v", err)
	}
	// The entry was dropped on purpose; the next plain read retries.
	if cached, _ := contentRepo.GetByKey(ctx, nil, plan.ID, 1, types.ActivityTypeWho); cached != nil {
		t.Fatalf("failed regeneration must not leave the stale entry behind")
	}
}

func TestInvalidateOne_ForcesRegeneration(t *testing.T) {
	cache, gen, plan, student, _ := newCacheFixture(t)
	ctx := context.Background()

	first, err := cache.Resolve(ctx, nil, plan, student, 1, types.ActivityTypePredict)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	gen.activityFn = func(_ *types.Student, _ string, _ int, _ string) (map[string]any, error) {
		return map[string]any{"prompt": "brand new prediction", "options": []string{"x", "y", "z"}}, nil
	}
	if err := cache.InvalidateOne(ctx, nil, plan.ID, 1, types.ActivityTypePredict); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	second, err := cache.Resolve(ctx, nil, plan, student, 1, types.ActivityTypePredict)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if gen.ActivityCalls() != 2 {
		t.Fatalf("invalidation must force regeneration, got %d calls", gen.ActivityCalls())
	}
	if second.ContentHash == first.ContentHash {
		t.Fatalf("regenerated content must carry a new hash")
	}
}
