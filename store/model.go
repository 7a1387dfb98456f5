package store

import (
	"time"

	skew "skew"
)

// RunStatus is the lifecycle status of a stored run.
type RunStatus string

const (
	// RunStatusRunning means the run is still probing.
	RunStatusRunning RunStatus = "RUNNING"
	// RunStatusStopped means the run finished normally.
	RunStatusStopped RunStatus = "STOPPED"
	// RunStatusAborted means the run was interrupted before Stop.
	RunStatusAborted RunStatus = "ABORTED"
)

// Run represents a harness run record in the database.
type Run struct {
	// ID is the auto-increment primary key.
	ID int64 `db:"id" json:"id"`

	// RunID is the unique run identifier.
	RunID string `db:"run_id" json:"run_id"`

	// MemberServiceURL is the service A base URL this run targeted.
	MemberServiceURL string `db:"member_service_url" json:"member_service_url"`

	// AccountServiceURL is the service B base URL this run targeted.
	AccountServiceURL string `db:"account_service_url" json:"account_service_url"`

	// Clients is the configured number of virtual clients.
	Clients int `db:"clients" json:"clients"`

	// EligibleClients is how many clients survived setup.
	EligibleClients int `db:"eligible_clients" json:"eligible_clients"`

	// Status is the current run status.
	Status RunStatus `db:"status" json:"status"`

	// TotalProbes is the total number of probes issued.
	TotalProbes int64 `db:"total_probes" json:"total_probes"`

	// BlockedCount is the number of probes classified as blocked.
	BlockedCount int64 `db:"blocked_count" json:"blocked_count"`

	// ViolatedCount is the number of probes classified as violated.
	ViolatedCount int64 `db:"violated_count" json:"violated_count"`

	// AmbiguousCount is the number of probes classified as ambiguous.
	AmbiguousCount int64 `db:"ambiguous_count" json:"ambiguous_count"`

	// Clean records the final verdict of the run.
	Clean bool `db:"clean" json:"clean"`

	// StartedAt is when the run started.
	StartedAt time.Time `db:"started_at" json:"started_at"`

	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// StoppedAt is when the run stopped.
	StoppedAt *time.Time `db:"stopped_at" json:"stopped_at,omitempty"`
}

// ViolationRecord represents one observed violation in the database.
type ViolationRecord struct {
	// ID is the auto-increment primary key.
	ID int64 `db:"id" json:"id"`

	// RunID is the run this violation belongs to.
	RunID string `db:"run_id" json:"run_id"`

	// ClientID is the virtual client that observed the violation.
	ClientID string `db:"client_id" json:"client_id"`

	// MemberID is the member whose deletion succeeded.
	MemberID string `db:"member_id" json:"member_id"`

	// StatusCode is the HTTP status the delete returned.
	StatusCode int `db:"status_code" json:"status_code"`

	// ObservedAt is when the violation was observed.
	ObservedAt time.Time `db:"observed_at" json:"observed_at"`
}

// NewRun creates a new Run record for a starting run.
func NewRun(runID, memberURL, accountURL string, clients int) *Run {
	now := time.Now()
	return &Run{
		RunID:             runID,
		MemberServiceURL:  memberURL,
		AccountServiceURL: accountURL,
		Clients:           clients,
		Status:            RunStatusRunning,
		StartedAt:         now,
		UpdatedAt:         now,
	}
}

// ApplySnapshot copies the verdict counters into the record.
func (r *Run) ApplySnapshot(s skew.VerdictSnapshot) {
	r.TotalProbes = s.TotalProbes
	r.BlockedCount = s.BlockedCount
	r.ViolatedCount = s.ViolatedCount
	r.AmbiguousCount = s.AmbiguousCount
	r.UpdatedAt = time.Now()
}

// Finish marks the run stopped with its final verdict.
func (r *Run) Finish(s skew.VerdictSnapshot, clean bool) {
	r.ApplySnapshot(s)
	r.Clean = clean
	r.Status = RunStatusStopped
	now := time.Now()
	r.StoppedAt = &now
}

// IsFinished returns true if the run is in a terminal state.
func (r *Run) IsFinished() bool {
	return r.Status == RunStatusStopped || r.Status == RunStatusAborted
}

// NewViolationRecord creates a ViolationRecord from a probe violation.
func NewViolationRecord(runID string, v skew.Violation) *ViolationRecord {
	return &ViolationRecord{
		RunID:      runID,
		ClientID:   v.ClientID,
		MemberID:   v.MemberID,
		StatusCode: v.StatusCode,
		ObservedAt: time.Now(),
	}
}
