package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the parent/guardian account that owns students. Account
// management (registration, login, sessions) lives in a separate service;
// rows exist here for ownership scoping only.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string         `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Name      string         `gorm:"column:name" json:"name"`
	CreatedAt time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (User) TableName() string { return "user" }
