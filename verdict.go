package skew

import (
	"sync"
	"sync/atomic"
)

// Verdict accumulates probe outcomes across all virtual clients.
// Counters are monotonic and support concurrent increment; this is the
// only state shared between client goroutines. A Verdict is passed
// explicitly to whatever needs it, never held as a package global, so
// independent runs can coexist in one process.
type Verdict struct {
	total     atomic.Int64
	blocked   atomic.Int64
	violated  atomic.Int64
	ambiguous atomic.Int64

	mu         sync.Mutex
	violations []Violation
}

// Violation is the per-defect detail kept for actionable reports.
type Violation struct {
	ClientID   string `json:"client_id"`
	MemberID   string `json:"member_id"`
	StatusCode int    `json:"status_code"`
}

// VerdictSnapshot is a point-in-time copy of the counters.
type VerdictSnapshot struct {
	TotalProbes    int64 `json:"total_probes"`
	BlockedCount   int64 `json:"blocked_count"`
	ViolatedCount  int64 `json:"violated_count"`
	AmbiguousCount int64 `json:"ambiguous_count"`
}

// NewVerdict creates an empty verdict.
func NewVerdict() *Verdict {
	return &Verdict{}
}

// Record accumulates one probe result. Safe for concurrent use.
func (v *Verdict) Record(r ProbeResult) {
	switch r.Outcome {
	case OutcomeBlocked:
		v.blocked.Add(1)
	case OutcomeViolated:
		v.violated.Add(1)
		v.mu.Lock()
		v.violations = append(v.violations, Violation{
			ClientID:   r.ClientID,
			MemberID:   r.MemberID,
			StatusCode: r.StatusCode,
		})
		v.mu.Unlock()
	case OutcomeAmbiguous:
		v.ambiguous.Add(1)
	}
	// total is incremented last so that at any instant
	// total <= blocked+violated+ambiguous never underreports a
	// classified outcome; Snapshot reads total first for the
	// converse guarantee.
	v.total.Add(1)
}

// Snapshot returns a consistent-enough view of the counters: the sum
// of the per-outcome counts is always >= TotalProbes, and the two are
// equal whenever no Record call is mid-flight.
func (v *Verdict) Snapshot() VerdictSnapshot {
	return VerdictSnapshot{
		TotalProbes:    v.total.Load(),
		BlockedCount:   v.blocked.Load(),
		ViolatedCount:  v.violated.Load(),
		AmbiguousCount: v.ambiguous.Load(),
	}
}

// Violations returns a copy of the recorded violation details.
func (v *Verdict) Violations() []Violation {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Violation, len(v.violations))
	copy(out, v.violations)
	return out
}

// Clean reports whether the run passed: zero violations and an
// ambiguous fraction within tolerance. ambiguousTolerance is a
// fraction of total probes in [0,1]; with tolerance 0 any ambiguous
// outcome fails the run.
func (v *Verdict) Clean(ambiguousTolerance float64) bool {
	s := v.Snapshot()
	if s.ViolatedCount > 0 {
		return false
	}
	if s.AmbiguousCount == 0 {
		return true
	}
	if s.TotalProbes == 0 {
		// Ambiguous without total cannot happen; zero probes is a
		// clean (if vacuous) run, e.g. when no client became eligible.
		return true
	}
	return float64(s.AmbiguousCount) <= ambiguousTolerance*float64(s.TotalProbes)
}
