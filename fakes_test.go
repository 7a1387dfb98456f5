package skew

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"skew/circuit"
	"skew/event"
	"skew/lock"
	"skew/service"
)

// ============================================================================
// Test Helpers - Fake Services
// ============================================================================

// fakeEnv stands in for the member and account services. The delete
// probe answer is configurable per test.
type fakeEnv struct {
	memberServer  *httptest.Server
	accountServer *httptest.Server

	deleteStatus      atomic.Int64
	failMemberCreate  atomic.Bool
	failAccountCreate atomic.Bool

	mu        sync.Mutex
	memberSeq int
	deletes   int
}

func newFakeEnv(t *testing.T, deleteStatus int) *fakeEnv {
	t.Helper()

	e := &fakeEnv{}
	e.deleteStatus.Store(int64(deleteStatus))

	e.memberServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/socios":
			if e.failMemberCreate.Load() {
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
			w.WriteHeader(int(e.deleteStatus.Load()))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	e.accountServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cuentas" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if e.failAccountCreate.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "account-1"})
	}))

	t.Cleanup(e.memberServer.Close)
	t.Cleanup(e.accountServer.Close)
	return e
}

func (e *fakeEnv) memberClient() *service.MemberClient {
	return service.NewMemberClient(e.memberServer.URL)
}

func (e *fakeEnv) accountClient() *service.AccountClient {
	return service.NewAccountClient(e.accountServer.URL)
}

func (e *fakeEnv) deletesServed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deletes
}

// ============================================================================
// Test Helpers - Event Recorder
// ============================================================================

// eventRecorder collects published events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *eventRecorder) handle(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) count(eventType event.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (r *eventRecorder) has(eventType event.EventType) bool {
	return r.count(eventType) > 0
}

// ============================================================================
// Test Helpers - Mock Locker and Breaker
// ============================================================================

var errLockTaken = errors.New("lock taken")

// mockLocker tracks acquisitions and can be told to refuse them.
type mockLocker struct {
	mu       sync.Mutex
	refuse   bool
	acquired int
	released int
	extended int
}

func (l *mockLocker) Acquire(_ context.Context, key string, _ time.Duration) (lock.LockHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refuse {
		return nil, errLockTaken
	}
	l.acquired++
	return &mockHandle{locker: l, key: key}, nil
}

type mockHandle struct {
	locker *mockLocker
	key    string
}

func (h *mockHandle) Extend(_ context.Context, _ time.Duration) error {
	h.locker.mu.Lock()
	defer h.locker.mu.Unlock()
	h.locker.extended++
	return nil
}

func (h *mockHandle) Release(_ context.Context) error {
	h.locker.mu.Lock()
	defer h.locker.mu.Unlock()
	h.locker.released++
	return nil
}

func (h *mockHandle) Key() string {
	return h.key
}

// mockBreaker is a pass-through circuit breaker manager that can be
// forced open.
type mockBreaker struct {
	open     atomic.Bool
	executed atomic.Int64
}

func (b *mockBreaker) Get(_ string) circuit.CircuitBreaker {
	return (*mockCircuitBreaker)(b)
}

type mockCircuitBreaker mockBreaker

func (cb *mockCircuitBreaker) Execute(_ context.Context, fn func() error) error {
	if cb.open.Load() {
		return ErrCircuitOpen
	}
	cb.executed.Add(1)
	return fn()
}

func (cb *mockCircuitBreaker) State() circuit.State {
	if cb.open.Load() {
		return circuit.StateOpen
	}
	return circuit.StateClosed
}

func (cb *mockCircuitBreaker) Reset() {
	cb.open.Store(false)
}

func (cb *mockCircuitBreaker) Counts() circuit.BreakerCounts {
	return circuit.BreakerCounts{Requests: cb.executed.Load()}
}
