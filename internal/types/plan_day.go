package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DayStateLocked    = "locked"
	DayStateAvailable = "available"
	DayStateComplete  = "complete"
)

// PlanDay is one unit of a plan's schedule. State moves
// locked -> available -> complete and never regresses. Version backs the
// conditional update on answer writes; concurrent submissions that lose
// the race are rejected rather than silently overwritten.
type PlanDay struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_plan_day,unique" json:"planId"`
	Index       int            `gorm:"column:day_index;not null;index:idx_plan_day,unique" json:"index"`
	State       string         `gorm:"column:state;not null" json:"state"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completedAt,omitempty"`
	Answers     datatypes.JSON `gorm:"column:answers;type:jsonb" json:"answers"`
	Version     int            `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt   time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (PlanDay) TableName() string { return "plan_day" }
