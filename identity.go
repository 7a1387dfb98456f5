package skew

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// IdentityRegistry hands out synthetic member identities and account
// numbers. Identifications are unique process-wide: the member service
// rejects duplicate identifications outright, and a collision would
// disable an otherwise healthy client for a reason unrelated to the
// integrity rule under test.
type IdentityRegistry struct {
	mu     sync.Mutex
	issued map[string]struct{}
}

// NewIdentityRegistry creates an empty registry.
func NewIdentityRegistry() *IdentityRegistry {
	return &IdentityRegistry{
		issued: make(map[string]struct{}),
	}
}

// NextIdentification returns a fresh national-id-like identification:
// the "17" province prefix followed by eight random digits, matching
// the format the member service accepts.
func (r *IdentityRegistry) NextIdentification() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		id := fmt.Sprintf("17%08d", rand.IntN(100000000))
		if _, dup := r.issued[id]; dup {
			continue
		}
		r.issued[id] = struct{}{}
		return id
	}
}

// NextAccountNumber returns a generated account number with the
// harness prefix and six random digits.
func (r *IdentityRegistry) NextAccountNumber() string {
	return fmt.Sprintf("SKEW%06d", rand.IntN(1000000))
}

// Issued returns how many identifications have been handed out.
func (r *IdentityRegistry) Issued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issued)
}
