package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	skew "skew"
	"skew/event"
	"skew/testinfra"
)

// ============================================================================
// Unit Tests for scenario.go
// Tests stage sequencing over a scripted fake surface
// ============================================================================

// fakeRow is one row of the fake accounts table.
type fakeRow struct {
	number  string
	balance string
}

// fakeSurface simulates the member/account frontend as a small state
// machine: clicks append the toasts a real page would show, and the
// accounts table holds one row per created account.
type fakeSurface struct {
	mu sync.Mutex

	pageText     string
	accountsView bool
	dialogArmed  bool
	dialogInput  string

	fields map[string]string
	rows   []fakeRow

	calls []string

	// Failure injection
	failNavigate     bool
	failSelect       bool
	swallowDeposits  bool
	misapplyDeposits bool
}

var _ Surface = (*fakeSurface)(nil)

func (s *fakeSurface) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *fakeSurface) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("navigate")
	if s.failNavigate {
		return errors.New("connection refused")
	}
	s.pageText = "Registro de Socios"
	return nil
}

func (s *fakeSurface) Fill(_ context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("fill " + selector)
	if s.fields == nil {
		s.fields = make(map[string]string)
	}
	s.fields[selector] = value
	return nil
}

func (s *fakeSurface) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("click " + selector)

	switch selector {
	case selSubmitSocio:
		s.pageText += " " + toastMemberCreated
	case selCreateCuenta:
		s.rows = append(s.rows, fakeRow{
			number:  s.fields[selNumeroCuenta],
			balance: s.fields[selSaldoInicial],
		})
		s.pageText += " " + toastAccountCreated
	}
	return nil
}

func (s *fakeSurface) ClickByText(_ context.Context, substring string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("clickByText " + substring)
	if substring == navAccounts {
		s.accountsView = true
		s.pageText = "Gestión de Cuentas"
	}
	return nil
}

func (s *fakeSurface) SelectOption(_ context.Context, selector, substring string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("select " + selector)
	if s.failSelect {
		return errors.New("no matching option")
	}
	if !s.accountsView {
		return errors.New("select not on page")
	}
	return nil
}

func (s *fakeSurface) AcceptNextDialog(_ context.Context, input string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("armDialog")
	s.dialogArmed = true
	s.dialogInput = input
	return nil
}

func (s *fakeSurface) ClickRowButton(_ context.Context, rowText, idPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("clickRow " + rowText)

	if !s.dialogArmed {
		return errors.New("unexpected dialog blocked the page")
	}
	s.dialogArmed = false

	idx := -1
	for i, row := range s.rows {
		if strings.Contains(row.number, rowText) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("no row containing %q", rowText)
	}

	if s.swallowDeposits {
		return nil
	}
	s.pageText += " " + toastTransaction + " exitosa"
	if !s.misapplyDeposits {
		s.rows[idx].balance = "600.00"
	}
	return nil
}

func (s *fakeSurface) RowCellText(_ context.Context, rowText string, cell int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if !strings.Contains(row.number, rowText) {
			continue
		}
		switch cell {
		case 1:
			return row.number, nil
		case 2:
			return "AHORRO", nil
		case 3:
			return row.balance, nil
		}
		return "", fmt.Errorf("no cell %d", cell)
	}
	return "", fmt.Errorf("no row containing %q", rowText)
}

func (s *fakeSurface) Text(_ context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if selector == selSocioSelect && s.accountsView {
		return "1700000001 - Test Harness", nil
	}
	return "", fmt.Errorf("no element matching %s", selector)
}

func (s *fakeSurface) PageText(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.pageText
	for _, row := range s.rows {
		text += " " + row.number + " AHORRO " + row.balance
	}
	return text, nil
}

func (s *fakeSurface) callList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *fakeSurface) rowBalance(number string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if strings.Contains(row.number, number) {
			return row.balance
		}
	}
	return ""
}

func fastScenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.WaitTimeout = 100 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func TestScenario_PassingRun(t *testing.T) {
	surface := &fakeSurface{}
	collector := testinfra.NewEventCollector()
	bus := event.NewMemoryEventBus()
	bus.SubscribeAll(collector.Handle)

	sc := New(surface, WithConfig(fastScenarioConfig()), WithEventBus(bus))

	result, err := sc.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected passing run, got: %v", err)
	}
	if !result.Passed {
		t.Fatal("Expected Passed to be true")
	}
	if result.Diagnostic != "" {
		t.Errorf("Expected no diagnostic, got %q", result.Diagnostic)
	}

	expected := []string{"create-member", "switch-to-accounts", "create-account", "deposit", "verify-balance"}
	if len(result.Stages) != len(expected) {
		t.Fatalf("Expected %d stages, got %d", len(expected), len(result.Stages))
	}
	for i, st := range result.Stages {
		if st.Name != expected[i] {
			t.Errorf("Stage %d: expected %s, got %s", i, expected[i], st.Name)
		}
		if st.Failed {
			t.Errorf("Stage %s unexpectedly failed: %v", st.Name, st.Err)
		}
	}

	testinfra.AssertEventCount(t, collector, event.EventScenarioStage, 5)
	testinfra.AssertEventNotPublished(t, collector, event.EventScenarioFailed)
}

func TestScenario_NavigateFailure(t *testing.T) {
	surface := &fakeSurface{failNavigate: true}
	sc := New(surface, WithConfig(fastScenarioConfig()))

	result, err := sc.Run(context.Background())
	if !errors.Is(err, skew.ErrStageFailed) {
		t.Fatalf("Expected ErrStageFailed, got: %v", err)
	}
	if result.Passed {
		t.Error("Expected failed run")
	}
	if len(result.Stages) != 0 {
		t.Errorf("Expected no stages executed, got %d", len(result.Stages))
	}
}

func TestScenario_FailingStageAbortsRun(t *testing.T) {
	surface := &fakeSurface{failSelect: true}
	collector := testinfra.NewEventCollector()
	bus := event.NewMemoryEventBus()
	bus.SubscribeAll(collector.Handle)

	sc := New(surface, WithConfig(fastScenarioConfig()), WithEventBus(bus))

	result, err := sc.Run(context.Background())
	if !errors.Is(err, skew.ErrStageFailed) {
		t.Fatalf("Expected ErrStageFailed, got: %v", err)
	}
	if result.Passed {
		t.Error("Expected failed run")
	}

	// create-member and switch-to-accounts pass; create-account times
	// out waiting for the member option; deposit and verify never run.
	if len(result.Stages) != 3 {
		t.Fatalf("Expected 3 executed stages, got %d", len(result.Stages))
	}
	last := result.Stages[len(result.Stages)-1]
	if last.Name != "create-account" || !last.Failed {
		t.Errorf("Expected create-account to fail, got %+v", last)
	}
	if !errors.Is(last.Err, skew.ErrStageTimeout) {
		t.Errorf("Expected ErrStageTimeout, got: %v", last.Err)
	}

	testinfra.AssertEventPublished(t, collector, event.EventScenarioFailed)

	for _, call := range surface.callList() {
		if strings.HasPrefix(call, "clickRow ") {
			t.Error("Deposit must not run after an aborted stage")
		}
	}
}

func TestScenario_FailureCapturesDiagnostic(t *testing.T) {
	surface := &fakeSurface{swallowDeposits: true}
	sc := New(surface, WithConfig(fastScenarioConfig()))

	result, err := sc.Run(context.Background())
	if err == nil {
		t.Fatal("Expected the deposit stage to fail")
	}
	if result.Diagnostic == "" {
		t.Error("Expected a page-text diagnostic on failure")
	}
	if !strings.Contains(result.Diagnostic, "Gestión de Cuentas") {
		t.Errorf("Diagnostic should carry page text, got %q", result.Diagnostic)
	}
}

func TestScenario_DepositTargetsCreatedAccountRow(t *testing.T) {
	// The environment is littered with accounts from earlier load runs;
	// the deposit must land on the row this run created.
	surface := &fakeSurface{
		rows: []fakeRow{{number: "LOCUST000001", balance: "100.00"}},
	}
	sc := New(surface, WithConfig(fastScenarioConfig()))

	if _, err := sc.Run(context.Background()); err != nil {
		t.Fatalf("Expected passing run, got: %v", err)
	}

	if got := surface.rowBalance("LOCUST000001"); got != "100.00" {
		t.Errorf("Pre-existing row must be untouched, balance went to %q", got)
	}
	if got := surface.rowBalance("SKEW"); got != "600.00" {
		t.Errorf("Created row must carry the deposit, got balance %q", got)
	}

	for _, call := range surface.callList() {
		if strings.HasPrefix(call, "clickRow ") && !strings.Contains(call, "SKEW") {
			t.Errorf("Deposit clicked outside the created account's row: %s", call)
		}
	}
}

func TestScenario_BalanceCheckedOnCreatedRow(t *testing.T) {
	// A pre-existing account number containing the expected figure must
	// not satisfy the balance check when the deposit was never applied.
	surface := &fakeSurface{
		rows:             []fakeRow{{number: "LOCUST600123", balance: "100.00"}},
		misapplyDeposits: true,
	}
	sc := New(surface, WithConfig(fastScenarioConfig()))

	text, _ := surface.PageText(context.Background())
	if !strings.Contains(text, "600") {
		t.Fatal("Setup broken: the page text should already contain the expected figure")
	}

	result, err := sc.Run(context.Background())
	if err == nil {
		t.Fatal("Expected the balance check to fail")
	}
	if result.Passed {
		t.Error("Expected failed run")
	}

	last := result.Stages[len(result.Stages)-1]
	if last.Name != "verify-balance" || !last.Failed {
		t.Errorf("Expected verify-balance to fail, got %+v", last)
	}
	if !errors.Is(last.Err, skew.ErrStageTimeout) {
		t.Errorf("Expected ErrStageTimeout, got: %v", last.Err)
	}
}

func TestScenario_DialogArmedBeforeDepositClick(t *testing.T) {
	surface := &fakeSurface{}
	sc := New(surface, WithConfig(fastScenarioConfig()))

	if _, err := sc.Run(context.Background()); err != nil {
		t.Fatalf("Expected passing run, got: %v", err)
	}

	calls := surface.callList()
	armIdx, clickIdx := -1, -1
	for i, call := range calls {
		if call == "armDialog" && armIdx == -1 {
			armIdx = i
		}
		if strings.HasPrefix(call, "clickRow ") && clickIdx == -1 {
			clickIdx = i
		}
	}
	if armIdx == -1 || clickIdx == -1 {
		t.Fatalf("Missing arm or click call: %v", calls)
	}
	if armIdx > clickIdx {
		t.Error("Dialog must be armed before the deposit click")
	}
	if surface.dialogInput != DefaultConfig().DepositAmount {
		t.Errorf("Expected deposit amount %q, got %q", DefaultConfig().DepositAmount, surface.dialogInput)
	}
}

func TestScenario_StageDurationsRecorded(t *testing.T) {
	surface := &fakeSurface{}
	sc := New(surface, WithConfig(fastScenarioConfig()))

	result, err := sc.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected passing run, got: %v", err)
	}
	for _, st := range result.Stages {
		if st.Duration <= 0 {
			t.Errorf("Stage %s has no duration", st.Name)
		}
	}
}
