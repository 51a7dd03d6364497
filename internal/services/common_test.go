package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/storynest/storynest-backend/internal/db"
	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/requestdata"
	"github.com/storynest/storynest-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// A single connection keeps every session on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func seedStudent(t *testing.T, gdb *gorm.DB, age int) (*types.User, *types.Student) {
	t.Helper()
	user := &types.User{ID: uuid.New(), Email: fmt.Sprintf("%s@example.com", uuid.NewString()[:8])}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	student := &types.Student{
		ID:           uuid.New(),
		UserID:       user.ID,
		Name:         "Alex",
		Age:          age,
		ReadingLevel: "B",
	}
	if err := gdb.Create(student).Error; err != nil {
		t.Fatalf("create student: %v", err)
	}
	return user, student
}

func authedCtx(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
}

// fakeGenerator lets tests script the external generator per call.
type fakeGenerator struct {
	mu sync.Mutex

	storyFn    func(student *types.Student, theme string, chapterCount int) (*StoryResult, error)
	activityFn func(student *types.Student, theme string, dayIndex int, activityType string) (map[string]any, error)

	storyCalls    int
	activityCalls int
}

func (f *fakeGenerator) GenerateStory(_ context.Context, student *types.Student, theme string, chapterCount int) (*StoryResult, error) {
	f.mu.Lock()
	f.storyCalls++
	fn := f.storyFn
	f.mu.Unlock()
	if fn != nil {
		return fn(student, theme, chapterCount)
	}
	chapters := make([]types.StoryChapter, 0, chapterCount)
	for i := 1; i <= chapterCount; i++ {
		chapters = append(chapters, types.StoryChapter{Index: i, Title: fmt.Sprintf("Chapter %d", i), Text: "Once upon a time..."})
	}
	return &StoryResult{
		Title:      "The " + theme + " Adventure",
		Chapters:   chapters,
		Vocabulary: []VocabularyItem{{Word: "brave", Definition: "not afraid to try"}},
	}, nil
}

func (f *fakeGenerator) GenerateActivity(_ context.Context, student *types.Student, theme string, dayIndex int, activityType string) (map[string]any, error) {
	f.mu.Lock()
	f.activityCalls++
	fn := f.activityFn
	f.mu.Unlock()
	if fn != nil {
		return fn(student, theme, dayIndex, activityType)
	}
	return map[string]any{
		"prompt": fmt.Sprintf("Day %d %s activity", dayIndex, activityType),
		"theme":  theme,
	}, nil
}

func (f *fakeGenerator) ActivityCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activityCalls
}

// fakeLease is an in-process stand-in for the Redis lease.
type fakeLease struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newFakeLease() *fakeLease {
	return &fakeLease{held: map[uuid.UUID]bool{}}
}

func (l *fakeLease) Acquire(_ context.Context, studentID uuid.UUID, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[studentID] {
		return false, nil
	}
	l.held[studentID] = true
	return true, nil
}

func (l *fakeLease) Release(_ context.Context, studentID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, studentID)
	return nil
}

func waitForPlanStatus(t *testing.T, gdb *gorm.DB, planID uuid.UUID, want string) *types.Plan {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var plan types.Plan
		if err := gdb.Where("id = ?", planID).First(&plan).Error; err == nil && plan.Status == want {
			return &plan
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("plan %s never reached status %q", planID, want)
	return nil
}
