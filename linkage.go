package skew

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"skew/circuit"
	"skew/service"
)

// LinkageResult records how far a client's setup got. Partial linkage
// (member created, account not) is left in place on purpose: the
// orphaned member exercises the same missing-guard path as a linked
// one, just from the other side, and cleanup would hide it.
type LinkageResult struct {
	MemberCreated  bool
	AccountCreated bool
	MemberID       string
	AccountID      string
}

// LinkageStep performs the two-call setup for a virtual client: create
// a member in service A, then create an account referencing it in
// service B. There is no cross-service transaction between the calls.
type LinkageStep struct {
	members    *service.MemberClient
	accounts   *service.AccountClient
	identities *IdentityRegistry
	breaker    circuit.CircuitBreaker

	initialBalance float64
	timeout        time.Duration
}

// LinkageOption configures a LinkageStep.
type LinkageOption func(*LinkageStep)

// WithLinkageBreaker guards the account-service call with a circuit
// breaker so a downed service B fails setup fast instead of piling up
// timeouts across clients.
func WithLinkageBreaker(cb circuit.CircuitBreaker) LinkageOption {
	return func(s *LinkageStep) {
		s.breaker = cb
	}
}

// WithLinkageTimeout sets the per-call timeout.
func WithLinkageTimeout(timeout time.Duration) LinkageOption {
	return func(s *LinkageStep) {
		s.timeout = timeout
	}
}

// WithLinkageBalance sets the initial balance of the created account.
func WithLinkageBalance(balance float64) LinkageOption {
	return func(s *LinkageStep) {
		s.initialBalance = balance
	}
}

// NewLinkageStep creates a LinkageStep over the two service clients.
func NewLinkageStep(members *service.MemberClient, accounts *service.AccountClient, identities *IdentityRegistry, opts ...LinkageOption) *LinkageStep {
	s := &LinkageStep{
		members:        members,
		accounts:       accounts,
		identities:     identities,
		initialBalance: 100.00,
		timeout:        10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Link creates the member and the linked account. Failure at either
// call returns the partial result and an error; nothing already
// created is rolled back.
func (s *LinkageStep) Link(ctx context.Context) (LinkageResult, error) {
	var result LinkageResult

	identification := s.identities.NextIdentification()
	member := service.MemberPayload{
		Nombres:            "Test",
		Apellidos:          "Harness",
		Identificacion:     identification,
		Email:              fmt.Sprintf("test.%s@example.com", identification),
		Telefono:           "0999999999",
		Direccion:          "Direccion Test",
		TipoIdentificacion: "CEDULA",
		Activo:             true,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	status, memberID, err := s.members.CreateMember(callCtx, member)
	cancel()
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrMemberCreateFailed, err)
	}
	if status != http.StatusCreated || memberID == "" {
		return result, fmt.Errorf("%w: status %d", ErrMemberCreateFailed, status)
	}
	result.MemberCreated = true
	result.MemberID = memberID

	account := service.AccountPayload{
		SocioID:      memberID,
		NumeroCuenta: s.identities.NextAccountNumber(),
		Saldo:        s.initialBalance,
		TipoCuenta:   "AHORRO",
	}

	callCtx, cancel = context.WithTimeout(ctx, s.timeout)
	defer cancel()

	createAccount := func() error {
		var accountStatus int
		accountStatus, result.AccountID, err = s.accounts.CreateAccount(callCtx, account)
		if err != nil {
			return err
		}
		if accountStatus != http.StatusCreated {
			return fmt.Errorf("%w: status %d", ErrAccountCreateFailed, accountStatus)
		}
		return nil
	}

	if s.breaker != nil {
		err = s.breaker.Execute(callCtx, createAccount)
	} else {
		err = createAccount()
	}
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrAccountCreateFailed, err)
	}
	result.AccountCreated = true

	return result, nil
}
