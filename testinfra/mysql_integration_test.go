package testinfra

import (
	"context"
	"errors"
	"testing"

	skew "skew"
	"skew/store"
)

// ============================================================================
// Integration Tests for the MySQL run history (requires MySQL)
// ============================================================================

func TestIntegration_MySQLStore_RunLifecycle(t *testing.T) {
	SkipIfNoInfrastructure(t)
	infra := NewTestInfrastructure(t)
	defer infra.Close()
	defer infra.Cleanup(t)

	ctx := context.Background()
	runID := infra.GenerateRunID("run")

	run := store.NewRun(runID, "http://localhost:8080", "http://localhost:3000", 10)
	if err := infra.Store.CreateRun(ctx, run); err != nil {
		t.Fatalf("Expected create to succeed, got: %v", err)
	}
	if run.ID == 0 {
		t.Error("Expected the insert to assign an ID")
	}

	// Creating the same run twice must fail on the unique run_id.
	dup := store.NewRun(runID, "http://localhost:8080", "http://localhost:3000", 10)
	if err := infra.Store.CreateRun(ctx, dup); !errors.Is(err, skew.ErrRunAlreadyExists) {
		t.Fatalf("Expected ErrRunAlreadyExists, got: %v", err)
	}

	run.EligibleClients = 9
	run.Finish(skew.VerdictSnapshot{
		TotalProbes:    100,
		BlockedCount:   97,
		AmbiguousCount: 3,
	}, true)
	if err := infra.Store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("Expected update to succeed, got: %v", err)
	}

	got, err := infra.Store.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("Expected get to succeed, got: %v", err)
	}
	if got.Status != store.RunStatusStopped {
		t.Errorf("Expected STOPPED, got %s", got.Status)
	}
	if got.TotalProbes != 100 || got.BlockedCount != 97 || got.AmbiguousCount != 3 {
		t.Errorf("Counters not persisted: %+v", got)
	}
	if !got.Clean {
		t.Error("Expected the clean flag to persist")
	}
	if got.StoppedAt == nil {
		t.Error("Expected StoppedAt to be set")
	}
}

func TestIntegration_MySQLStore_GetRunNotFound(t *testing.T) {
	SkipIfNoInfrastructure(t)
	infra := NewTestInfrastructure(t)
	defer infra.Close()

	_, err := infra.Store.GetRun(context.Background(), infra.GenerateRunID("missing"))
	if !errors.Is(err, skew.ErrRunNotFound) {
		t.Fatalf("Expected ErrRunNotFound, got: %v", err)
	}
}

func TestIntegration_MySQLStore_Violations(t *testing.T) {
	SkipIfNoInfrastructure(t)
	infra := NewTestInfrastructure(t)
	defer infra.Close()
	defer infra.Cleanup(t)

	ctx := context.Background()
	runID := infra.GenerateRunID("run")

	run := store.NewRun(runID, "http://localhost:8080", "http://localhost:3000", 2)
	if err := infra.Store.CreateRun(ctx, run); err != nil {
		t.Fatalf("Expected create to succeed, got: %v", err)
	}

	for _, v := range []skew.Violation{
		{ClientID: "client-001", MemberID: "member-1", StatusCode: 200},
		{ClientID: "client-002", MemberID: "member-2", StatusCode: 204},
	} {
		if err := infra.Store.CreateViolation(ctx, store.NewViolationRecord(runID, v)); err != nil {
			t.Fatalf("Expected violation insert to succeed, got: %v", err)
		}
	}

	violations, err := infra.Store.GetViolations(ctx, runID)
	if err != nil {
		t.Fatalf("Expected get to succeed, got: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("Expected 2 violations, got %d", len(violations))
	}
	if violations[0].ClientID != "client-001" || violations[1].StatusCode != 204 {
		t.Errorf("Unexpected violation rows: %+v", violations)
	}
}

func TestIntegration_MySQLStore_ListRuns(t *testing.T) {
	SkipIfNoInfrastructure(t)
	infra := NewTestInfrastructure(t)
	defer infra.Close()
	defer infra.Cleanup(t)

	ctx := context.Background()

	clean := store.NewRun(infra.GenerateRunID("clean"), "http://a", "http://b", 5)
	clean.Finish(skew.VerdictSnapshot{TotalProbes: 10, BlockedCount: 10}, true)

	unclean := store.NewRun(infra.GenerateRunID("unclean"), "http://a", "http://b", 5)
	unclean.Finish(skew.VerdictSnapshot{TotalProbes: 10, BlockedCount: 8, ViolatedCount: 2}, false)

	for _, r := range []*store.Run{clean, unclean} {
		if err := infra.Store.CreateRun(ctx, r); err != nil {
			t.Fatalf("Expected create to succeed, got: %v", err)
		}
		if err := infra.Store.UpdateRun(ctx, r); err != nil {
			t.Fatalf("Expected update to succeed, got: %v", err)
		}
	}

	// UncleanOnly must keep the violated run and drop the clean one.
	// Other suites may have left rows behind, so assert membership
	// rather than exact counts.
	runs, _, err := infra.Store.ListRuns(ctx, store.NewRunFilter().WithUncleanOnly())
	if err != nil {
		t.Fatalf("Expected list to succeed, got: %v", err)
	}
	foundClean, foundUnclean := false, false
	for _, r := range runs {
		if r.RunID == clean.RunID {
			foundClean = true
		}
		if r.RunID == unclean.RunID {
			foundUnclean = true
		}
	}
	if foundClean {
		t.Error("UncleanOnly listing must not contain the clean run")
	}
	if !foundUnclean {
		t.Error("UncleanOnly listing must contain the violated run")
	}
}
