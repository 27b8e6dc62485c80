package aggregation

import (
	"time"

	"cardadmin/internal/domain/directory"
)

// Options narrows a run. An empty Teams list means every team.
type Options struct {
	Teams []string `json:"teams,omitempty"`
}

type EmployeeView struct {
	directory.Employee
	Cards []directory.Card `json:"cards"`
}

type TeamView struct {
	directory.Team
	Employees []EmployeeView `json:"employees"`
}

type Summary struct {
	Teams     int `json:"teams"`
	Employees int `json:"employees"`
	Cards     int `json:"cards"`
}

type Result struct {
	RunID       string     `json:"runId"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt time.Time  `json:"completedAt"`
	Teams       []TeamView `json:"teams"`
	Summary     Summary    `json:"summary"`
	// ReconciledIDs is the exact id set sent to the is_added write-back.
	ReconciledIDs []int64 `json:"reconciledIds"`
	NewlyImported int64   `json:"newlyImported"`
	// DegradedEmployeeIDs lists employees whose card lookup failed.
	DegradedEmployeeIDs []int64  `json:"degradedEmployeeIds,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
}
