package authflow

import (
	"context"
	"sync"
)

// Flow is the authentication dialog state machine. The UI layer renders
// Mode/Form/Outcome and drives the operations; the only side effects are the
// provider calls documented on each operation.
//
// A reset (mode change, close, sign-in success, confirmation acknowledge)
// bumps an internal generation counter. A submission completing after a reset
// carries a stale generation and is discarded, so an in-flight provider call
// can never clobber state the user has already moved past.
type Flow struct {
	cfg        FlowConfig
	provider   SessionProvider
	audit      *auditDispatcher
	metrics    *Metrics
	onComplete func()

	mu      sync.Mutex
	mode    Mode
	form    Form
	outcome Outcome
	gen     uint64
}

// Mode reports the active flow mode.
func (f *Flow) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Form reports a copy of the entered fields.
func (f *Flow) Form() Form {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// Outcome reports the current display state.
func (f *Flow) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

// SetEmail records the e-mail field.
func (f *Flow) SetEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form.Email = email
}

// SetPassword records the password field.
func (f *Flow) SetPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form.Password = password
}

// SetConfirmPassword records the confirmation field.
func (f *Flow) SetConfirmPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form.ConfirmPassword = password
}

// ToggleReveal flips the password visibility flag.
func (f *Flow) ToggleReveal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form.RevealPassword = !f.form.RevealPassword
}

// resetLocked clears every field and the outcome and invalidates any
// in-flight submission. Callers hold f.mu.
func (f *Flow) resetLocked() {
	f.form = Form{}
	f.outcome = Outcome{Kind: OutcomeIdle}
	f.gen++
}

// ChangeMode switches the flow mode, clearing all fields and the outcome so
// nothing leaks between modes. Valid from any state.
func (f *Flow) ChangeMode(mode Mode) {
	f.mu.Lock()
	f.mode = mode
	f.resetLocked()
	f.mu.Unlock()

	f.audit.emit(AuditEvent{
		EventType: auditEventModeChange,
		Mode:      mode.String(),
		Success:   true,
	})
}

// Close resets the flow to Idle(signin). Permitted even while Submitting;
// the submission's result is then discarded.
func (f *Flow) Close() {
	f.mu.Lock()
	f.mode = ModeSignIn
	f.resetLocked()
	f.mu.Unlock()

	f.audit.emit(AuditEvent{
		EventType: auditEventFlowClosed,
		Success:   true,
	})
}

// AcknowledgeEmailConfirmation leaves the awaiting-confirmation state: full
// reset back to Idle(signin) plus the flow-complete signal. Valid only while
// the outcome is OutcomeAwaitingConfirmation.
func (f *Flow) AcknowledgeEmailConfirmation() error {
	f.mu.Lock()
	if f.outcome.Kind != OutcomeAwaitingConfirmation {
		f.mu.Unlock()
		return ErrNotAwaitingConfirmation
	}
	email := f.outcome.Email
	f.mode = ModeSignIn
	f.resetLocked()
	f.mu.Unlock()

	f.audit.emit(AuditEvent{
		EventType: auditEventFlowComplete,
		Mode:      ModeSignUp.String(),
		Email:     email,
		Success:   true,
	})
	f.signalComplete()
	return nil
}

// Submit runs the provider operation for the active mode. It blocks until
// the submission settles; the result lands in Outcome, not in the returned
// error. The error is non-nil only when the state guard rejects the call:
// ErrSubmitInFlight while Submitting, ErrNotAwaitingConfirmation while a
// sign-up confirmation is pending acknowledgement.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	switch f.outcome.Kind {
	case OutcomeSubmitting:
		f.mu.Unlock()
		return ErrSubmitInFlight
	case OutcomeAwaitingConfirmation:
		f.mu.Unlock()
		return ErrNotAwaitingConfirmation
	}
	mode := f.mode
	form := f.form
	gen := f.gen
	f.outcome = Outcome{Kind: OutcomeSubmitting}
	f.mu.Unlock()

	switch mode {
	case ModeSignUp:
		f.submitSignUp(ctx, gen, form)
	case ModeReset:
		f.submitReset(ctx, gen, form)
	default:
		f.submitSignIn(ctx, gen, form)
	}
	return nil
}

func (f *Flow) submitSignUp(ctx context.Context, gen uint64, form Form) {
	if form.Password != form.ConfirmPassword {
		f.metrics.Inc(MetricValidationFailure)
		f.failValidation(gen, form, msgPasswordMismatch)
		return
	}
	if len(form.Password) < f.cfg.MinPasswordLength {
		f.metrics.Inc(MetricValidationFailure)
		f.failValidation(gen, form, msgPasswordTooShort)
		return
	}

	err := f.provider.SignUp(ctx, form.Email, form.Password)
	if err != nil {
		f.metrics.Inc(MetricSignUpFailure)
		f.fail(gen, ModeSignUp, form.Email, err)
		return
	}

	f.metrics.Inc(MetricSignUpSuccess)
	f.apply(gen, func(f *Flow) {
		f.outcome = Outcome{Kind: OutcomeAwaitingConfirmation, Email: form.Email}
	})
	f.audit.emit(AuditEvent{
		EventType: auditEventConfirmPending,
		Mode:      ModeSignUp.String(),
		Email:     form.Email,
		Success:   true,
	})
}

func (f *Flow) submitSignIn(ctx context.Context, gen uint64, form Form) {
	err := f.provider.SignIn(ctx, form.Email, form.Password)
	if err != nil {
		f.metrics.Inc(MetricSignInFailure)
		f.fail(gen, ModeSignIn, form.Email, err)
		return
	}

	f.metrics.Inc(MetricSignInSuccess)
	applied := f.apply(gen, func(f *Flow) {
		f.mode = ModeSignIn
		f.resetLocked()
	})
	f.audit.emit(AuditEvent{
		EventType: auditEventFlowComplete,
		Mode:      ModeSignIn.String(),
		Email:     form.Email,
		Success:   true,
	})
	if applied {
		f.signalComplete()
	}
}

func (f *Flow) submitReset(ctx context.Context, gen uint64, form Form) {
	err := f.provider.ResetPassword(ctx, form.Email)
	if err != nil {
		f.metrics.Inc(MetricResetFailure)
		f.fail(gen, ModeReset, form.Email, err)
		return
	}

	f.metrics.Inc(MetricResetRequested)
	// Fields stay populated: the user may navigate back to sign in with the
	// same address once the mail arrives.
	f.apply(gen, func(f *Flow) {
		f.outcome = Outcome{Kind: OutcomeSucceeded, Message: msgResetEmailSent}
	})
	f.audit.emit(AuditEvent{
		EventType: auditEventSubmit,
		Mode:      ModeReset.String(),
		Email:     form.Email,
		Success:   true,
	})
}

// apply runs mutate under the lock if the submission's generation is still
// current. A reset since capture means the result is stale and is dropped.
func (f *Flow) apply(gen uint64, mutate func(*Flow)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return false
	}
	mutate(f)
	return true
}

func (f *Flow) failValidation(gen uint64, form Form, message string) {
	f.apply(gen, func(f *Flow) {
		f.outcome = Outcome{Kind: OutcomeFailed, Message: message}
	})
	f.audit.emit(AuditEvent{
		EventType: auditEventValidationFailed,
		Mode:      ModeSignUp.String(),
		Email:     form.Email,
		Success:   false,
		Error:     message,
	})
}

func (f *Flow) fail(gen uint64, mode Mode, email string, err error) {
	message := providerMessage(err)
	if message == msgUnexpected {
		f.metrics.Inc(MetricUnexpectedFailure)
	}
	f.apply(gen, func(f *Flow) {
		f.outcome = Outcome{Kind: OutcomeFailed, Message: message}
	})
	f.audit.emit(AuditEvent{
		EventType: auditEventSubmit,
		Mode:      mode.String(),
		Email:     email,
		Success:   false,
		Error:     message,
	})
}

func (f *Flow) signalComplete() {
	if f.onComplete != nil {
		f.onComplete()
	}
}
