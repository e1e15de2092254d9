package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// DispenseRun represents a single attempt to make a drink
type DispenseRun struct {
	gorm.Model
	RunID      string `gorm:"unique_index"`
	RecipeID   string `gorm:"index"`
	RecipeName string
	StartTime  time.Time
	EndTime    time.Time
	Status     string
	SafeMode   bool
	FailedItem string
	Error      string `gorm:"type:text"`
}

// RunStatus represents the outcome of a dispense run
type RunStatus string

const (
	// Run statuses
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusReady      RunStatus = "ready"
	RunStatusMissing    RunStatus = "missing"
	RunStatusFault      RunStatus = "fault"
	RunStatusAborted    RunStatus = "aborted"
)
