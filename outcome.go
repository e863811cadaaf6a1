package authflow

// OutcomeKind enumerates the mutually exclusive states of a submission. A
// single tagged value replaces the loading/error/success flag combinations a
// UI might otherwise juggle, so an illegal pairing (error and success at
// once) cannot be represented.
type OutcomeKind uint8

const (
	// OutcomeIdle means no submission has run since the last reset.
	OutcomeIdle OutcomeKind = iota
	// OutcomeSubmitting means a provider call is in flight; Submit is gated.
	OutcomeSubmitting
	// OutcomeFailed carries a user-presentable Message.
	OutcomeFailed
	// OutcomeSucceeded carries a user-presentable Message; the flow stays
	// open (reset mode only).
	OutcomeSucceeded
	// OutcomeAwaitingConfirmation is reachable only from a successful
	// sign-up; Email holds the address awaiting confirmation.
	OutcomeAwaitingConfirmation
)

// String describes the outcome kind for audit events.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeIdle:
		return "idle"
	case OutcomeSubmitting:
		return "submitting"
	case OutcomeFailed:
		return "failed"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "unknown"
	}
}

// Outcome is the display state of the flow. Message is set for Failed and
// Succeeded; Email for AwaitingConfirmation; both are empty otherwise.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	Email   string
}
