package skew

import (
	"net/http"
	"time"
)

// Outcome classifies a single delete probe. The split is deliberately
// three-way: folding Ambiguous into either side would hide defects or
// raise false alarms from unrelated failures.
type Outcome string

const (
	// OutcomeBlocked indicates the member service rejected the deletion.
	// This is the expected behavior while a linked account exists.
	OutcomeBlocked Outcome = "BLOCKED"
	// OutcomeViolated indicates the deletion succeeded despite the linkage.
	// This is the defect the harness exists to detect.
	OutcomeViolated Outcome = "VIOLATED"
	// OutcomeAmbiguous indicates a response outside the expected space,
	// including transport failures. Reported but counted as neither
	// pass nor defect.
	OutcomeAmbiguous Outcome = "AMBIGUOUS"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// Classify maps a delete-probe HTTP status code to an Outcome.
// The mapping is total: every status code yields exactly one outcome.
// Transport failures carry no status code; callers pass StatusTransportError.
//
// 500 counts as Blocked because the member service under test surfaces
// the cross-service validation as an internal error. That conflates
// "rule enforced" with "server crashed"; the looser split matches the
// deployed behavior being regression-tested.
func Classify(statusCode int) Outcome {
	switch statusCode {
	case http.StatusOK, http.StatusNoContent:
		return OutcomeViolated
	case http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError:
		return OutcomeBlocked
	default:
		return OutcomeAmbiguous
	}
}

// StatusTransportError is the pseudo status code used when the probe
// request never produced an HTTP response. Classify treats it as
// Ambiguous along with every other unexpected code.
const StatusTransportError = 0

// ProbeResult is the record of one executed probe. Immutable once
// produced; fed to the verdict and the event bus, then discarded.
type ProbeResult struct {
	// ClientID identifies the virtual client that issued the probe.
	ClientID string
	// MemberID is the member whose deletion was attempted.
	MemberID string
	// StatusCode is the raw HTTP status, or StatusTransportError.
	StatusCode int
	// Outcome is the classification of StatusCode.
	Outcome Outcome
	// Err is the transport error, if any. Informational only; the
	// classification already accounts for it.
	Err error
	// At is when the probe completed.
	At time.Time
}

// NewProbeResult classifies a raw probe response into a ProbeResult.
func NewProbeResult(clientID, memberID string, statusCode int, err error) ProbeResult {
	if err != nil {
		statusCode = StatusTransportError
	}
	return ProbeResult{
		ClientID:   clientID,
		MemberID:   memberID,
		StatusCode: statusCode,
		Outcome:    Classify(statusCode),
		Err:        err,
		At:         time.Now(),
	}
}
