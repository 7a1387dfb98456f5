// Package mysql provides a MySQL implementation of the store.Store interface.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	skew "skew"
	"skew/store"
)

// MySQLStore implements the store.Store interface using MySQL.
type MySQLStore struct {
	db *sql.DB
}

// New creates a new MySQLStore with the given database connection.
func New(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// ============================================================================
// Run Operations
// ============================================================================

// CreateRun creates a new run record.
func (s *MySQLStore) CreateRun(ctx context.Context, run *store.Run) error {
	query := `
		INSERT INTO skew_runs (
			run_id, member_service_url, account_service_url, clients,
			eligible_clients, status, total_probes, blocked_count,
			violated_count, ambiguous_count, clean,
			started_at, updated_at, stopped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		run.RunID, run.MemberServiceURL, run.AccountServiceURL, run.Clients,
		run.EligibleClients, run.Status, run.TotalProbes, run.BlockedCount,
		run.ViolatedCount, run.AmbiguousCount, run.Clean,
		run.StartedAt, run.UpdatedAt, run.StoppedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return skew.ErrRunAlreadyExists
		}
		return fmt.Errorf("%w: create run: %v", skew.ErrStoreOperationFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	run.ID = id

	return nil
}

// UpdateRun updates an existing run record.
func (s *MySQLStore) UpdateRun(ctx context.Context, run *store.Run) error {
	query := `
		UPDATE skew_runs SET
			eligible_clients = ?, status = ?, total_probes = ?,
			blocked_count = ?, violated_count = ?, ambiguous_count = ?,
			clean = ?, updated_at = ?, stopped_at = ?
		WHERE run_id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		run.EligibleClients, run.Status, run.TotalProbes,
		run.BlockedCount, run.ViolatedCount, run.AmbiguousCount,
		run.Clean, time.Now(), run.StoppedAt,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("%w: update run: %v", skew.ErrStoreOperationFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return skew.ErrRunNotFound
	}

	run.UpdatedAt = time.Now()
	return nil
}

// GetRun retrieves a run by its run ID.
func (s *MySQLStore) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	query := `
		SELECT id, run_id, member_service_url, account_service_url, clients,
			eligible_clients, status, total_probes, blocked_count,
			violated_count, ambiguous_count, clean,
			started_at, updated_at, stopped_at
		FROM skew_runs
		WHERE run_id = ?
	`

	run := &store.Run{}
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID, &run.RunID, &run.MemberServiceURL, &run.AccountServiceURL, &run.Clients,
		&run.EligibleClients, &run.Status, &run.TotalProbes, &run.BlockedCount,
		&run.ViolatedCount, &run.AmbiguousCount, &run.Clean,
		&run.StartedAt, &run.UpdatedAt, &run.StoppedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, skew.ErrRunNotFound
		}
		return nil, fmt.Errorf("%w: get run: %v", skew.ErrStoreOperationFailed, err)
	}

	return run, nil
}

// ============================================================================
// Violation Operations
// ============================================================================

// CreateViolation records one observed violation.
func (s *MySQLStore) CreateViolation(ctx context.Context, v *store.ViolationRecord) error {
	query := `
		INSERT INTO skew_violations (
			run_id, client_id, member_id, status_code, observed_at
		) VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		v.RunID, v.ClientID, v.MemberID, v.StatusCode, v.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: create violation: %v", skew.ErrStoreOperationFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	v.ID = id

	return nil
}

// GetViolations retrieves all violations recorded for a run.
func (s *MySQLStore) GetViolations(ctx context.Context, runID string) ([]*store.ViolationRecord, error) {
	query := `
		SELECT id, run_id, client_id, member_id, status_code, observed_at
		FROM skew_violations
		WHERE run_id = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: get violations: %v", skew.ErrStoreOperationFailed, err)
	}
	defer rows.Close()

	var violations []*store.ViolationRecord
	for rows.Next() {
		v := &store.ViolationRecord{}
		err := rows.Scan(&v.ID, &v.RunID, &v.ClientID, &v.MemberID, &v.StatusCode, &v.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: scan violation: %v", skew.ErrStoreOperationFailed, err)
		}
		violations = append(violations, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate violations: %v", skew.ErrStoreOperationFailed, err)
	}

	return violations, nil
}

// ============================================================================
// History Queries
// ============================================================================

// ListRuns lists runs with optional filters, newest first.
func (s *MySQLStore) ListRuns(ctx context.Context, filter *store.RunFilter) ([]*store.Run, int64, error) {
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			placeholders[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	if filter.UncleanOnly {
		conditions = append(conditions, "violated_count > 0")
	}

	if !filter.StartTime.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, filter.StartTime)
	}

	if !filter.EndTime.IsZero() {
		conditions = append(conditions, "started_at <= ?")
		args = append(args, filter.EndTime)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM skew_runs %s", whereClause)
	var total int64
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count runs: %v", skew.ErrStoreOperationFailed, err)
	}

	query := fmt.Sprintf(`
		SELECT id, run_id, member_service_url, account_service_url, clients,
			eligible_clients, status, total_probes, blocked_count,
			violated_count, ambiguous_count, clean,
			started_at, updated_at, stopped_at
		FROM skew_runs
		%s
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`, whereClause)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: query runs: %v", skew.ErrStoreOperationFailed, err)
	}
	defer rows.Close()

	var runs []*store.Run
	for rows.Next() {
		run := &store.Run{}
		err := rows.Scan(
			&run.ID, &run.RunID, &run.MemberServiceURL, &run.AccountServiceURL, &run.Clients,
			&run.EligibleClients, &run.Status, &run.TotalProbes, &run.BlockedCount,
			&run.ViolatedCount, &run.AmbiguousCount, &run.Clean,
			&run.StartedAt, &run.UpdatedAt, &run.StoppedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scan run: %v", skew.ErrStoreOperationFailed, err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterate runs: %v", skew.ErrStoreOperationFailed, err)
	}

	return runs, total, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

// isDuplicateKeyError checks if the error is a MySQL duplicate key error.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// MySQL error code 1062 is for duplicate entry
	return strings.Contains(err.Error(), "Duplicate entry") ||
		strings.Contains(err.Error(), "1062")
}

// Ensure MySQLStore implements store.Store interface.
var _ store.Store = (*MySQLStore)(nil)
