package scenario

import (
	"context"
	"fmt"
	"time"

	skew "skew"
	"skew/event"
	"skew/tracing"
)

// Element selectors of the frontend under test.
const (
	selNombres        = "#input-nombres"
	selApellidos      = "#input-apellidos"
	selIdentificacion = "#input-identificacion"
	selEmail          = "#input-email"
	selTelefono       = "#input-telefono"
	selDireccion      = "#input-direccion"
	selSubmitSocio    = "#btn-submit-socio"
	selSocioSelect    = "#select-socio"
	selNumeroCuenta   = "#input-numero-cuenta"
	selSaldoInicial   = "#input-saldo-inicial"
	selCreateCuenta   = "#btn-create-cuenta"
)

// depositButtonPrefix identifies the per-row deposit button. The id
// carries the account id suffix, so rows are matched by their text and
// the button by this prefix.
const depositButtonPrefix = "btn-deposito"

// balanceColumn is the balance cell of an accounts-table row
// (columns: account number, type, balance).
const balanceColumn = 3

// navAccounts is the text of the accounts navigation tab.
const navAccounts = "Cuentas"

// Toast texts the frontend shows on success.
const (
	toastMemberCreated  = "Socio registrado exitosamente"
	toastAccountCreated = "Cuenta creada exitosamente"
	toastTransaction    = "Transacción"
)

// Config holds the configuration for a scenario run.
type Config struct {
	// BaseURL is the frontend URL.
	BaseURL string
	// WaitTimeout bounds each stage wait, default 20s.
	WaitTimeout time.Duration
	// PollInterval is the wait re-check interval, default 250ms.
	PollInterval time.Duration
	// InitialBalance is typed into the account form.
	InitialBalance string
	// DepositAmount is supplied to the deposit prompt.
	DepositAmount string
	// ExpectedBalance is the substring the balance cell must show
	// after the deposit.
	ExpectedBalance string
}

// DefaultConfig returns the default scenario configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:5173",
		WaitTimeout:     DefaultWaitTimeout,
		PollInterval:    DefaultPollInterval,
		InitialBalance:  "500.00",
		DepositAmount:   "100.00",
		ExpectedBalance: "600",
	}
}

// StageResult records one executed stage.
type StageResult struct {
	Name     string        `json:"name"`
	Err      error         `json:"-"`
	Failed   bool          `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Passed bool          `json:"passed"`
	Stages []StageResult `json:"stages"`
	// Diagnostic is a bounded page-text dump captured at the moment of
	// failure. Empty for a passing run.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Scenario drives the five-stage flow: register a member, switch to
// the accounts view, open an account for the member, deposit into it,
// and verify the resulting balance.
type Scenario struct {
	surface    Surface
	identities *skew.IdentityRegistry
	config     Config
	bus        event.EventBus
	tracer     tracing.Tracer
	logger     Logger
}

// Logger defines the logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Option configures a Scenario.
type Option func(*Scenario)

// WithConfig sets the scenario configuration.
func WithConfig(cfg Config) Option {
	return func(s *Scenario) {
		s.config = cfg
	}
}

// WithEventBus sets the event bus for stage events.
func WithEventBus(bus event.EventBus) Option {
	return func(s *Scenario) {
		s.bus = bus
	}
}

// WithTracer sets the tracer for stage spans.
func WithTracer(t tracing.Tracer) Option {
	return func(s *Scenario) {
		s.tracer = t
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Scenario) {
		s.logger = l
	}
}

// New creates a Scenario over the given surface.
func New(surface Surface, opts ...Option) *Scenario {
	s := &Scenario{
		surface:    surface,
		identities: skew.NewIdentityRegistry(),
		config:     DefaultConfig(),
		bus:        event.NewNoOpEventBus(),
		tracer:     &tracing.NoopTracer{},
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noopLogger struct{}

func (noopLogger) Printf(format string, v ...any) {}

type stage struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes the stages in order, aborting on the first failure and
// capturing a diagnostic. The returned error is the failing stage's
// error, nil for a passing run.
func (s *Scenario) Run(ctx context.Context) (*Result, error) {
	identification := s.identities.NextIdentification()
	accountNumber := s.identities.NextAccountNumber()

	stages := []stage{
		{"create-member", func(ctx context.Context) error {
			return s.createMember(ctx, identification)
		}},
		{"switch-to-accounts", s.switchToAccounts},
		{"create-account", func(ctx context.Context) error {
			return s.createAccount(ctx, identification, accountNumber)
		}},
		{"deposit", func(ctx context.Context) error {
			return s.deposit(ctx, accountNumber)
		}},
		{"verify-balance", func(ctx context.Context) error {
			return s.verifyBalance(ctx, accountNumber)
		}},
	}

	result := &Result{Passed: true}

	if err := s.surface.Navigate(ctx, s.config.BaseURL); err != nil {
		result.Passed = false
		result.Diagnostic = s.captureDiagnostic(ctx)
		return result, fmt.Errorf("%w: navigate: %v", skew.ErrStageFailed, err)
	}

	for _, st := range stages {
		stageCtx, span := s.tracer.StartStage(ctx, "member-account-flow", st.name)

		start := time.Now()
		err := st.run(stageCtx)
		sr := StageResult{
			Name:     st.name,
			Err:      err,
			Failed:   err != nil,
			Duration: time.Since(start),
		}
		result.Stages = append(result.Stages, sr)

		if err != nil {
			span.SetError(err)
			span.End()
			result.Passed = false
			result.Diagnostic = s.captureDiagnostic(ctx)
			s.logger.Printf("[Scenario] stage %s failed: %v", st.name, err)
			s.bus.Publish(ctx, event.NewEvent(event.EventScenarioFailed).
				WithError(err).
				WithData("stage", st.name))
			return result, fmt.Errorf("%w: stage %s: %v", skew.ErrStageFailed, st.name, err)
		}

		span.End()
		s.logger.Printf("[Scenario] stage %s passed in %v", st.name, sr.Duration)
		s.bus.Publish(ctx, event.NewEvent(event.EventScenarioStage).
			WithData("stage", st.name).
			WithData("duration", sr.Duration.String()))
	}

	return result, nil
}

// createMember fills the registration form, submits it and waits for
// the success toast.
func (s *Scenario) createMember(ctx context.Context, identification string) error {
	fields := []struct {
		selector string
		value    string
	}{
		{selNombres, "Test"},
		{selApellidos, "Harness"},
		{selIdentificacion, identification},
		{selEmail, fmt.Sprintf("test.%s@example.com", identification)},
		{selTelefono, "0999999999"},
		{selDireccion, "Direccion Test"},
	}
	for _, f := range fields {
		if err := s.surface.Fill(ctx, f.selector, f.value); err != nil {
			return fmt.Errorf("fill %s: %w", f.selector, err)
		}
	}

	if err := s.surface.Click(ctx, selSubmitSocio); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	return waitForPageText(ctx, s.surface, s.config.WaitTimeout, s.config.PollInterval, toastMemberCreated)
}

// switchToAccounts navigates to the accounts view and waits for the
// member select to appear.
func (s *Scenario) switchToAccounts(ctx context.Context) error {
	if err := s.surface.ClickByText(ctx, navAccounts); err != nil {
		return fmt.Errorf("open accounts view: %w", err)
	}

	return WaitUntil(ctx, s.config.WaitTimeout, s.config.PollInterval, "member select", func(ctx context.Context) (bool, error) {
		_, err := s.surface.Text(ctx, selSocioSelect)
		return err == nil, nil
	})
}

// createAccount picks the registered member, fills the account form
// and waits for the success toast.
func (s *Scenario) createAccount(ctx context.Context, identification, accountNumber string) error {
	// The option text carries the member's identification.
	if err := WaitUntil(ctx, s.config.WaitTimeout, s.config.PollInterval, "member option", func(ctx context.Context) (bool, error) {
		return s.surface.SelectOption(ctx, selSocioSelect, identification) == nil, nil
	}); err != nil {
		return err
	}

	if err := s.surface.Fill(ctx, selNumeroCuenta, accountNumber); err != nil {
		return fmt.Errorf("fill account number: %w", err)
	}
	if err := s.surface.Fill(ctx, selSaldoInicial, s.config.InitialBalance); err != nil {
		return fmt.Errorf("fill initial balance: %w", err)
	}
	if err := s.surface.Click(ctx, selCreateCuenta); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	return waitForPageText(ctx, s.surface, s.config.WaitTimeout, s.config.PollInterval, toastAccountCreated)
}

// deposit arms the prompt with the deposit amount, clicks the deposit
// button of the created account's row and waits for the transaction
// toast. The table lists every existing account; clicking the first
// deposit button on the page would hit whichever row renders first.
func (s *Scenario) deposit(ctx context.Context, accountNumber string) error {
	// Arm before the click: the prompt fires synchronously.
	if err := s.surface.AcceptNextDialog(ctx, s.config.DepositAmount); err != nil {
		return fmt.Errorf("%w: %v", skew.ErrDialogNotPresented, err)
	}

	if err := s.surface.ClickRowButton(ctx, accountNumber, depositButtonPrefix); err != nil {
		return fmt.Errorf("deposit button for %s: %w", accountNumber, err)
	}

	return waitForPageText(ctx, s.surface, s.config.WaitTimeout, s.config.PollInterval, toastTransaction)
}

// verifyBalance waits for the created account's balance cell to show
// the post-deposit balance. Scoped to the row: the expected figure may
// already appear elsewhere on the page, in another row's balance or
// inside an old account number.
func (s *Scenario) verifyBalance(ctx context.Context, accountNumber string) error {
	return waitForRowCell(ctx, s.surface, s.config.WaitTimeout, s.config.PollInterval,
		accountNumber, balanceColumn, s.config.ExpectedBalance)
}

// captureDiagnostic grabs a bounded page-text dump for the failure
// report. Best effort: an unreachable page yields an empty string.
func (s *Scenario) captureDiagnostic(ctx context.Context) string {
	text, err := s.surface.PageText(ctx)
	if err != nil {
		return ""
	}
	return boundDiagnostic(text)
}

// maxDiagnosticLen bounds the captured page text.
const maxDiagnosticLen = 2000

func boundDiagnostic(text string) string {
	if len(text) > maxDiagnosticLen {
		return text[:maxDiagnosticLen]
	}
	return text
}
