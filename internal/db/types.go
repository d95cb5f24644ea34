package db

import (
	"time"

	"github.com/google/uuid"
)

// Run represents a pipeline run record
type Run struct {
	ID              uuid.UUID  `json:"id"`
	PlanID          uuid.UUID  `json:"plan_id"`
	OpportunityName string     `json:"opportunity_name"`
	BuildMode       string     `json:"build_mode,omitempty"`
	Status          string     `json:"status"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// RunFilters holds optional filters for listing runs
type RunFilters struct {
	PlanID uuid.UUID
	Status string
	Limit  int
}
