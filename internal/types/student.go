package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Student is the reader profile plans are generated for. Age and reading
// level feed the content generator.
type Student struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"userId"`
	User         *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	Age          int            `gorm:"column:age;not null" json:"age"`
	ReadingLevel string         `gorm:"column:reading_level" json:"readingLevel"`
	CreatedAt    time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (Student) TableName() string { return "student" }
