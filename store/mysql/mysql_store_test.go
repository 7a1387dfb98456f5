// Package mysql provides tests for the MySQL implementation of the store.Store interface.
package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	skew "skew"
	"skew/store"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	s := New(db)
	return s, mock, func() { db.Close() }
}

func createTestRun(runID string) *store.Run {
	return store.NewRun(runID, "http://a:8080", "http://b:3000", 10)
}

func runColumns() []string {
	return []string{
		"id", "run_id", "member_service_url", "account_service_url", "clients",
		"eligible_clients", "status", "total_probes", "blocked_count",
		"violated_count", "ambiguous_count", "clean",
		"started_at", "updated_at", "stopped_at",
	}
}

// ============================================================================
// Run CRUD Tests
// ============================================================================

func TestMySQLStore_CreateRun(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	run := createTestRun("run-123")

	mock.ExpectExec("INSERT INTO skew_runs").
		WithArgs(
			run.RunID, run.MemberServiceURL, run.AccountServiceURL, run.Clients,
			run.EligibleClients, run.Status, run.TotalProbes, run.BlockedCount,
			run.ViolatedCount, run.AmbiguousCount, run.Clean,
			sqlmock.AnyArg(), sqlmock.AnyArg(), // started_at, updated_at
			run.StoppedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.CreateRun(context.Background(), run); err != nil {
		t.Errorf("CreateRun failed: %v", err)
	}
	if run.ID != 1 {
		t.Errorf("expected ID 1, got %d", run.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMySQLStore_CreateRun_DuplicateKey(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	run := createTestRun("run-123")

	mock.ExpectExec("INSERT INTO skew_runs").
		WillReturnError(errors.New("Error 1062: Duplicate entry 'run-123' for key 'run_id'"))

	err := s.CreateRun(context.Background(), run)
	if !errors.Is(err, skew.ErrRunAlreadyExists) {
		t.Errorf("expected ErrRunAlreadyExists, got: %v", err)
	}
}

func TestMySQLStore_UpdateRun(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	run := createTestRun("run-123")
	run.Finish(skew.VerdictSnapshot{
		TotalProbes:  100,
		BlockedCount: 100,
	}, true)

	mock.ExpectExec("UPDATE skew_runs SET").
		WithArgs(
			run.EligibleClients, run.Status, run.TotalProbes,
			run.BlockedCount, run.ViolatedCount, run.AmbiguousCount,
			run.Clean, sqlmock.AnyArg(), sqlmock.AnyArg(), // updated_at, stopped_at
			run.RunID,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpdateRun(context.Background(), run); err != nil {
		t.Errorf("UpdateRun failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMySQLStore_UpdateRun_NotFound(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	run := createTestRun("run-missing")

	mock.ExpectExec("UPDATE skew_runs SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateRun(context.Background(), run)
	if !errors.Is(err, skew.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got: %v", err)
	}
}

func TestMySQLStore_GetRun(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(runColumns()).
		AddRow(1, "run-123", "http://a:8080", "http://b:3000", 10,
			8, "STOPPED", 500, 495,
			0, 5, true,
			now, now, now)

	mock.ExpectQuery("SELECT (.+) FROM skew_runs").
		WithArgs("run-123").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "run-123")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if run.RunID != "run-123" {
		t.Errorf("expected run-123, got %s", run.RunID)
	}
	if run.Status != store.RunStatusStopped {
		t.Errorf("expected STOPPED, got %s", run.Status)
	}
	if run.TotalProbes != 500 || run.BlockedCount != 495 || run.AmbiguousCount != 5 {
		t.Errorf("unexpected counters: %+v", run)
	}
	if !run.Clean {
		t.Error("expected clean run")
	}
	if run.StoppedAt == nil {
		t.Error("expected stopped_at to be set")
	}
}

func TestMySQLStore_GetRun_NotFound(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM skew_runs").
		WithArgs("run-missing").
		WillReturnRows(sqlmock.NewRows(runColumns()))

	_, err := s.GetRun(context.Background(), "run-missing")
	if !errors.Is(err, skew.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got: %v", err)
	}
}

// ============================================================================
// Violation Tests
// ============================================================================

func TestMySQLStore_CreateViolation(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	v := store.NewViolationRecord("run-123", skew.Violation{
		ClientID:   "client-001",
		MemberID:   "member-9",
		StatusCode: 204,
	})

	mock.ExpectExec("INSERT INTO skew_violations").
		WithArgs(v.RunID, v.ClientID, v.MemberID, v.StatusCode, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))

	if err := s.CreateViolation(context.Background(), v); err != nil {
		t.Errorf("CreateViolation failed: %v", err)
	}
	if v.ID != 7 {
		t.Errorf("expected ID 7, got %d", v.ID)
	}
}

func TestMySQLStore_GetViolations(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "run_id", "client_id", "member_id", "status_code", "observed_at"}).
		AddRow(1, "run-123", "client-001", "member-1", 200, now).
		AddRow(2, "run-123", "client-002", "member-2", 204, now)

	mock.ExpectQuery("SELECT (.+) FROM skew_violations").
		WithArgs("run-123").
		WillReturnRows(rows)

	violations, err := s.GetViolations(context.Background(), "run-123")
	if err != nil {
		t.Fatalf("GetViolations failed: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(violations))
	}
	if violations[0].ClientID != "client-001" || violations[0].StatusCode != 200 {
		t.Errorf("unexpected first violation: %+v", violations[0])
	}
}

func TestMySQLStore_GetViolations_Empty(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM skew_violations").
		WithArgs("run-clean").
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "client_id", "member_id", "status_code", "observed_at"}))

	violations, err := s.GetViolations(context.Background(), "run-clean")
	if err != nil {
		t.Fatalf("GetViolations failed: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("expected no violations, got %d", len(violations))
	}
}

// ============================================================================
// History Query Tests
// ============================================================================

func TestMySQLStore_ListRuns(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	now := time.Now()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM skew_runs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows(runColumns()).
		AddRow(2, "run-2", "http://a:8080", "http://b:3000", 10,
			10, "STOPPED", 300, 300, 0, 0, true, now, now, now).
		AddRow(1, "run-1", "http://a:8080", "http://b:3000", 10,
			10, "STOPPED", 200, 198, 1, 1, false, now.Add(-time.Hour), now, now)

	mock.ExpectQuery("SELECT (.+) FROM skew_runs").
		WithArgs(100, 0).
		WillReturnRows(rows)

	runs, total, err := s.ListRuns(context.Background(), store.NewRunFilter())
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if total != 2 {
		t.Errorf("expected total 2, got %d", total)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-2" {
		t.Errorf("expected newest run first, got %s", runs[0].RunID)
	}
}

func TestMySQLStore_ListRuns_WithFilters(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	filter := store.NewRunFilter().
		WithStatus(store.RunStatusStopped).
		WithUncleanOnly().
		WithPagination(10, 20)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM skew_runs WHERE status IN \\(\\?\\) AND violated_count > 0").
		WithArgs(store.RunStatusStopped).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectQuery("SELECT (.+) FROM skew_runs").
		WithArgs(store.RunStatusStopped, 10, 20).
		WillReturnRows(sqlmock.NewRows(runColumns()))

	runs, total, err := s.ListRuns(context.Background(), filter)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if total != 0 || len(runs) != 0 {
		t.Errorf("expected empty result, got total=%d runs=%d", total, len(runs))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMySQLStore_ListRuns_TimeRange(t *testing.T) {
	s, mock, cleanup := newTestStore(t)
	defer cleanup()

	start := time.Now().Add(-24 * time.Hour)
	end := time.Now()
	filter := store.NewRunFilter().WithTimeRange(start, end)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM skew_runs WHERE started_at >= \\? AND started_at <= \\?").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectQuery("SELECT (.+) FROM skew_runs").
		WithArgs(start, end, 100, 0).
		WillReturnRows(sqlmock.NewRows(runColumns()))

	if _, _, err := s.ListRuns(context.Background(), filter); err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
