package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunSummary is what one pipeline pass reports: how many records went in,
// how many were accepted, and how many were excluded for each reason.
// Accepted + Excluded always equals Total.
type RunSummary struct {
	RuleVersion      string
	Total            int
	Accepted         int
	Excluded         int
	ExcludedByReason map[ReasonCode]int
}

// Run is a persisted pipeline execution. Every stored trip and exclusion
// belongs to exactly one run.
type Run struct {
	ID           uuid.UUID
	RuleVersion  string
	Source       string
	Status       RunStatus
	TotalRows    int
	AcceptedRows int
	ExcludedRows int
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time // nil while running

	// ExcludedByReason is filled by the service layer, not stored on the run row.
	ExcludedByReason map[ReasonCode]int
}
