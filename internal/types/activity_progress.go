package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActivityProgressNotStarted = "not_started"
	ActivityProgressInProgress = "in_progress"
	ActivityProgressCompleted  = "completed"
)

// ActivityProgress tracks one student's work on one activity. Kept
// consistent with PlanDay.Answers: a first answer for a type moves the
// row to in_progress, day completion moves every required row to
// completed and bumps attempts.
type ActivityProgress struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_progress_key,unique" json:"studentId"`
	PlanID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_progress_key,unique" json:"planId"`
	DayIndex         int            `gorm:"column:day_index;not null;index:idx_progress_key,unique" json:"dayIndex"`
	ActivityType     string         `gorm:"column:activity_type;not null;index:idx_progress_key,unique" json:"activityType"`
	Status           string         `gorm:"column:status;not null;default:'not_started'" json:"status"`
	StartedAt        *time.Time     `gorm:"column:started_at" json:"startedAt,omitempty"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completedAt,omitempty"`
	TimeSpentSeconds int            `gorm:"column:time_spent_seconds;not null;default:0" json:"timeSpentSeconds"`
	Attempts         int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	CreatedAt        time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (ActivityProgress) TableName() string { return "activity_progress" }
