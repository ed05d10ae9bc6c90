package history

import "time"

// Run kinds.
const (
	KindDeploy   = "deploy"
	KindRollback = "rollback"
)

// Status is the closed set of terminal and transient run states. The
// backend's history API is looser (it reuses "rolled_back" for both
// rollback operations and superseded deploys); locally the two cases
// are kept distinct.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
	StatusRolledBack Status = "rolled_back"
	StatusSuperseded Status = "superseded"
)

// ParseStatus maps a backend-supplied status string onto the closed
// set. The second return is false for values outside the set, so
// callers can surface unexpected upstream states instead of guessing.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusInProgress, StatusSucceeded, StatusFailed, StatusPartial, StatusRolledBack, StatusSuperseded:
		return Status(raw), true
	case "success":
		return StatusSucceeded, true
	case "failure":
		return StatusFailed, true
	default:
		return StatusFailed, false
	}
}

// Run is one recorded orchestration run (a deploy or a rollback).
type Run struct {
	ID              int64
	Kind            string
	Project         string
	Environment     string
	Service         string
	Status          Status
	StartedAt       time.Time
	CompletedAt     *time.Time
	DurationSeconds *float64
	DeploymentID    *string // backend deployment id, when known
	ServersJSON     *string // per-server outcomes as a JSON array
	ErrorMessage    *string
}

// ServiceStatus is the latest run plus recent history for one service,
// as served by the local status API.
type ServiceStatus struct {
	Project     string `json:"project"`
	Environment string `json:"environment"`
	Service     string `json:"service"`
	LatestRun   *Run   `json:"latest_run,omitempty"`
	RecentRuns  []Run  `json:"recent_runs"`
}
