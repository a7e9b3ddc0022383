package model

// Outcome is the final state of a sub-area in a run.
type Outcome string

const (
	// OutcomePending means the sub-area has not finished processing.
	OutcomePending Outcome = "pending"

	// OutcomeSucceeded means every step of the sub-area completed.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed means a step returned an error. The remaining steps of
	// the sub-area were skipped.
	OutcomeFailed Outcome = "failed"
)

// String returns the outcome name.
func (o Outcome) String() string {
	return string(o)
}

// IsFinal reports whether the outcome is succeeded or failed.
func (o Outcome) IsFinal() bool {
	return o == OutcomeSucceeded || o == OutcomeFailed
}

// ParseOutcome converts a stored outcome name back to an Outcome.
// Unknown names map to OutcomePending.
func ParseOutcome(s string) Outcome {
	switch Outcome(s) {
	case OutcomeSucceeded:
		return OutcomeSucceeded
	case OutcomeFailed:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}
