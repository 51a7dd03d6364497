package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Story is the generated narrative for a plan, split into chapters
// (one per day). Immutable once written.
type Story struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"planId"`
	Title      string         `gorm:"column:title;not null" json:"title"`
	Chapters   datatypes.JSON `gorm:"column:chapters;type:jsonb" json:"chapters"`
	Vocabulary datatypes.JSON `gorm:"column:vocabulary;type:jsonb" json:"vocabulary"`
	CreatedAt  time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (Story) TableName() string { return "story" }

// StoryChapter is the element shape of Story.Chapters.
type StoryChapter struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Text  string `json:"text"`
}
