package testinfra

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	skew "skew"

	"pgregory.net/rapid"
)

// FakeEnvironment is an in-memory stand-in for the member and account
// services. Wrap MemberHandler and AccountHandler in httptest servers
// to exercise the setup and probe paths without a deployed backend.
type FakeEnvironment struct {
	// DeleteStatus is the status code every delete probe receives.
	DeleteStatus atomic.Int64

	// FailMemberCreate makes member creation return 500.
	FailMemberCreate atomic.Bool
	// FailAccountCreate makes account creation return 500.
	FailAccountCreate atomic.Bool

	mu        sync.Mutex
	memberSeq int
	accounts  int
	deletes   int
}

// NewFakeEnvironment creates a fake environment whose delete probes
// answer with the given status code.
func NewFakeEnvironment(deleteStatus int) *FakeEnvironment {
	env := &FakeEnvironment{}
	env.DeleteStatus.Store(int64(deleteStatus))
	return env
}

// MemberHandler serves the member service surface: member creation and
// member deletion.
func (e *FakeEnvironment) MemberHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/socios":
			if e.FailMemberCreate.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			e.mu.Lock()
			e.memberSeq++
			id := e.memberSeq
			e.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": fmt.Sprintf("member-%d", id)})

		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/socios/"):
			e.mu.Lock()
			e.deletes++
			e.mu.Unlock()
			w.WriteHeader(int(e.DeleteStatus.Load()))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// AccountHandler serves the account service surface: account creation.
func (e *FakeEnvironment) AccountHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cuentas" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if e.FailAccountCreate.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		e.mu.Lock()
		e.accounts++
		id := e.accounts
		e.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": fmt.Sprintf("account-%d", id)})
	})
}

// MembersCreated returns the number of members created so far.
func (e *FakeEnvironment) MembersCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.memberSeq
}

// AccountsCreated returns the number of accounts created so far.
func (e *FakeEnvironment) AccountsCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accounts
}

// DeletesServed returns the number of delete probes served so far.
func (e *FakeEnvironment) DeletesServed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deletes
}

// ============================================================================
// Rapid Generators
// ============================================================================

// BlockedStatusGenerator generates status codes classified as Blocked.
func BlockedStatusGenerator() *rapid.Generator[int] {
	return rapid.SampledFrom([]int{
		http.StatusBadRequest,
		http.StatusConflict,
		http.StatusInternalServerError,
	})
}

// ViolatedStatusGenerator generates status codes classified as Violated.
func ViolatedStatusGenerator() *rapid.Generator[int] {
	return rapid.SampledFrom([]int{
		http.StatusOK,
		http.StatusNoContent,
	})
}

// AnyStatusGenerator generates status codes across the full space a
// delete probe can observe, transport failures included.
func AnyStatusGenerator() *rapid.Generator[int] {
	return rapid.OneOf(
		rapid.SampledFrom([]int{
			skew.StatusTransportError,
			http.StatusOK,
			http.StatusNoContent,
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusInternalServerError,
		}),
		rapid.IntRange(100, 599),
	)
}

// ProbeResultGenerator generates probe results with consistent
// classification.
func ProbeResultGenerator() *rapid.Generator[skew.ProbeResult] {
	return rapid.Custom(func(t *rapid.T) skew.ProbeResult {
		clientID := ClientIDGenerator().Draw(t, "clientID")
		memberID := rapid.StringMatching(`^member-[0-9]{1,4}$`).Draw(t, "memberID")
		status := AnyStatusGenerator().Draw(t, "statusCode")
		return skew.NewProbeResult(clientID, memberID, status, nil)
	})
}

// ClientIDGenerator generates virtual client identifiers.
func ClientIDGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`^client-[0-9]{3}$`)
}

// IdentificationGenerator generates national identification numbers in
// the format the member service accepts.
func IdentificationGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`^17[0-9]{8}$`)
}

// AccountNumberGenerator generates account numbers in the harness
// format.
func AccountNumberGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`^SKEW[0-9]{6}$`)
}

// RunIDGenerator generates run identifiers with the given prefix.
func RunIDGenerator(prefix string) *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		suffix := rapid.StringMatching(`^[a-z0-9]{8}$`).Draw(t, "runSuffix")
		return fmt.Sprintf("%s-%s", prefix, suffix)
	})
}
