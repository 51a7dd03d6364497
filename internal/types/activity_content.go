package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityContent is one cache entry of generated activity material,
// keyed by (plan, day index, activity type). Reads that find an unexpired
// row skip generation; fallback payloads are never written here.
type ActivityContent struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_content_key,unique" json:"planId"`
	DayIndex     int            `gorm:"column:day_index;not null;index:idx_content_key,unique" json:"dayIndex"`
	ActivityType string         `gorm:"column:activity_type;not null;index:idx_content_key,unique" json:"activityType"`
	Content      datatypes.JSON `gorm:"column:content;type:jsonb;not null" json:"content"`
	ContentHash  string         `gorm:"column:content_hash;not null" json:"contentHash"`
	StudentAge   int            `gorm:"column:student_age;not null" json:"studentAge"`
	ExpiresAt    time.Time      `gorm:"column:expires_at;not null;index" json:"expiresAt"`
	CreatedAt    time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (ActivityContent) TableName() string { return "activity_content" }
