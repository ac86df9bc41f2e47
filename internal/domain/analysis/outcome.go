package analysis

import "github.com/kailas-cloud/medlens/internal/domain/candidate"

// Status tags the outcome of an analysis.
type Status string

// Analysis status values.
const (
	StatusOK                   Status = "ok"
	StatusInvalidInput         Status = "invalid_input"
	StatusNoMatch              Status = "no_match"
	StatusUnrecognizedEvidence Status = "unrecognized_evidence"
	StatusEmptyResult          Status = "empty_result"
)

// Reasons shown to users for each non-OK status.
const (
	ReasonNoInput      = "No symptoms or image provided."
	ReasonNoLabel      = "No disease specified"
	ReasonNoMatch      = "No disease matches the given symptoms with sufficient overlap."
	ReasonUnrecognized = "Image not recognised"
	ReasonEmptyResult  = "No valid results to store."
)

// Outcome is the tagged result of a scoring run: either a list of candidates
// or a non-OK status with a human-readable reason.
type Outcome struct {
	status     Status
	reason     string
	candidates []candidate.Candidate
}

// OK creates a successful outcome.
func OK(candidates []candidate.Candidate) Outcome {
	return Outcome{status: StatusOK, candidates: candidates}
}

// Fail creates a non-OK outcome.
func Fail(status Status, reason string) Outcome {
	return Outcome{status: status, reason: reason}
}

// InvalidInput creates an invalid-input outcome.
func InvalidInput(reason string) Outcome { return Fail(StatusInvalidInput, reason) }

// NoMatch creates a no-match outcome.
func NoMatch() Outcome { return Fail(StatusNoMatch, ReasonNoMatch) }

// Unrecognized creates an unrecognized-evidence outcome.
func Unrecognized() Outcome { return Fail(StatusUnrecognizedEvidence, ReasonUnrecognized) }

// EmptyResult creates an empty-result outcome.
func EmptyResult() Outcome { return Fail(StatusEmptyResult, ReasonEmptyResult) }

// Status returns the outcome tag.
func (o Outcome) Status() Status { return o.status }

// OK reports whether the outcome carries candidates.
func (o Outcome) OK() bool { return o.status == StatusOK }

// Reason returns the human-readable reason of a non-OK outcome.
func (o Outcome) Reason() string { return o.reason }

// Candidates returns the ordered candidates of an OK outcome.
func (o Outcome) Candidates() []candidate.Candidate { return o.candidates }
