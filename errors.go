package skew

import "errors"

// Setup errors
var (
	// ErrMemberCreateFailed indicates the member-service create call did not return 201
	ErrMemberCreateFailed = errors.New("member creation failed")

	// ErrAccountCreateFailed indicates the account-service create call did not return 201
	ErrAccountCreateFailed = errors.New("account creation failed")

	// ErrClientNotEligible indicates the client failed setup and must not probe
	ErrClientNotEligible = errors.New("client not eligible")
)

// Run errors
var (
	// ErrRunAlreadyStarted indicates Start was called twice on the same runner
	ErrRunAlreadyStarted = errors.New("run already started")

	// ErrRunLockHeld indicates another harness run holds the environment lock
	ErrRunLockHeld = errors.New("run lock held by another process")

	// ErrNoClients indicates the runner was started with zero clients
	ErrNoClients = errors.New("no clients configured")
)

// Scenario errors
var (
	// ErrStageTimeout indicates a scenario stage wait exceeded its deadline
	ErrStageTimeout = errors.New("scenario stage timeout")

	// ErrStageFailed indicates a scenario stage aborted
	ErrStageFailed = errors.New("scenario stage failed")

	// ErrDialogNotPresented indicates the deposit prompt never appeared
	ErrDialogNotPresented = errors.New("dialog not presented")
)

// Circuit breaker errors
var (
	// ErrCircuitOpen indicates the circuit breaker is open and rejecting calls
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Store errors
var (
	// ErrRunNotFound indicates the run record does not exist
	ErrRunNotFound = errors.New("run not found")

	// ErrRunAlreadyExists indicates the run record already exists
	ErrRunAlreadyExists = errors.New("run already exists")

	// ErrStoreOperationFailed indicates a store operation failed
	ErrStoreOperationFailed = errors.New("store operation failed")
)

// Config errors
var (
	// ErrInvalidConfig indicates the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
