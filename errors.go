package authflow

import "errors"

var (
	// ErrBuilderIncomplete is returned by Build when a required dependency
	// was not supplied.
	ErrBuilderIncomplete = errors.New("builder missing required dependency")
	// ErrAlreadyBuilt is returned when Build is called twice on one Builder.
	ErrAlreadyBuilt = errors.New("builder already consumed")
	// ErrSubmitInFlight is returned by Submit while a previous submission is
	// still awaiting its provider call.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrNotAwaitingConfirmation is returned by AcknowledgeEmailConfirmation
	// outside the awaiting-confirmation state.
	ErrNotAwaitingConfirmation = errors.New("no email confirmation pending")
	// ErrNoRow is returned by RecordStore lookups and updates when no
	// analytics row exists for the user.
	ErrNoRow = errors.New("analytics row not found")
	// ErrSyncRunning is returned by SyncJob.Start while a previous session's
	// job is still running.
	ErrSyncRunning = errors.New("sync job already running")
)

// User-presentable messages owned by the flow. Provider messages pass through
// verbatim; these cover local validation, the reset confirmation, and the
// catch-all for unclassified failures.
const (
	msgPasswordMismatch = "Passwords do not match"
	msgPasswordTooShort = "Password must be at least 6 characters long"
	msgResetEmailSent   = "Password reset email sent! Check your inbox."
	msgUnexpected       = "An unexpected error occurred"
)

// providerMessage maps a provider call result to the message shown in a
// Failed outcome. Unclassified errors never leak internal detail.
func providerMessage(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return msgUnexpected
}
