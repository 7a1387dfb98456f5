// Package store provides the storage interface and models for run history.
package store

import (
	"context"
	"time"
)

// Store defines the storage interface for harness runs and the
// violations they found. Run history is what turns a one-off check
// into a regression signal: a violation that shows up after being
// absent for weeks points at a recent deploy.
type Store interface {
	// Run operations

	// CreateRun creates a new run record.
	CreateRun(ctx context.Context, run *Run) error

	// UpdateRun updates an existing run record, typically with the
	// final counters when the run stops.
	UpdateRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by its run ID.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// Violation operations

	// CreateViolation records one observed violation.
	CreateViolation(ctx context.Context, v *ViolationRecord) error

	// GetViolations retrieves all violations recorded for a run.
	GetViolations(ctx context.Context, runID string) ([]*ViolationRecord, error)

	// History queries

	// ListRuns lists runs with optional filters, newest first.
	ListRuns(ctx context.Context, filter *RunFilter) ([]*Run, int64, error)
}

// RunFilter defines filters for listing runs.
type RunFilter struct {
	// Status filters by run status (multiple allowed).
	Status []RunStatus

	// UncleanOnly restricts the listing to runs that found violations.
	UncleanOnly bool

	// StartTime filters runs started after this time.
	StartTime time.Time

	// EndTime filters runs started before this time.
	EndTime time.Time

	// Limit specifies the maximum number of results to return.
	Limit int

	// Offset specifies the number of results to skip.
	Offset int
}

// NewRunFilter creates a new RunFilter with default values.
func NewRunFilter() *RunFilter {
	return &RunFilter{
		Limit:  100,
		Offset: 0,
	}
}

// WithStatus adds status filters.
func (f *RunFilter) WithStatus(status ...RunStatus) *RunFilter {
	f.Status = append(f.Status, status...)
	return f
}

// WithUncleanOnly restricts the listing to unclean runs.
func (f *RunFilter) WithUncleanOnly() *RunFilter {
	f.UncleanOnly = true
	return f
}

// WithTimeRange sets the time range filter.
func (f *RunFilter) WithTimeRange(start, end time.Time) *RunFilter {
	f.StartTime = start
	f.EndTime = end
	return f
}

// WithPagination sets pagination parameters.
func (f *RunFilter) WithPagination(limit, offset int) *RunFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}
