package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PlanStatusGenerating = "generating"
	PlanStatusActive     = "active"
	PlanStatusCompleted  = "completed"
	PlanStatusFailed     = "failed"
)

const (
	PlanVariantShort    = "short"    // 3 days
	PlanVariantStandard = "standard" // 5 days
)

// DayCountForVariant returns the fixed plan length for a variant.
func DayCountForVariant(variant string) int {
	if variant == PlanVariantShort {
		return 3
	}
	return 5
}

// Plan is one student's multi-day reading program. Status is the only
// mutable field after creation; FailureReason is diagnostic only and is
// never surfaced through Name or Theme.
type Plan struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"studentId"`
	Student       *Student       `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	Name          string         `gorm:"column:name;not null" json:"name"`
	Theme         string         `gorm:"column:theme;not null" json:"theme"`
	Variant       string         `gorm:"column:variant;not null;default:'standard'" json:"variant"`
	Status        string         `gorm:"column:status;not null;index" json:"status"`
	FailureReason string         `gorm:"column:failure_reason" json:"failureReason,omitempty"`
	Story         *Story         `gorm:"constraint:OnDelete:CASCADE;foreignKey:PlanID;references:ID" json:"story,omitempty"`
	Days          []*PlanDay     `gorm:"constraint:OnDelete:CASCADE;foreignKey:PlanID;references:ID" json:"days,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"createdAt"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (Plan) TableName() string { return "plan" }
