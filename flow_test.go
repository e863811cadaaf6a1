package authflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubProvider struct {
	mu          sync.Mutex
	signUpErr   error
	signInErr   error
	resetErr    error
	signUpCalls int
	signInCalls int
	resetCalls  int

	// When non-nil, SignIn blocks until the channel is closed.
	signInGate chan struct{}
}

func (p *stubProvider) SignUp(_ context.Context, _, _ string) error {
	p.mu.Lock()
	p.signUpCalls++
	err := p.signUpErr
	p.mu.Unlock()
	return err
}

func (p *stubProvider) SignIn(_ context.Context, _, _ string) error {
	p.mu.Lock()
	p.signInCalls++
	err := p.signInErr
	gate := p.signInGate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (p *stubProvider) ResetPassword(_ context.Context, _ string) error {
	p.mu.Lock()
	p.resetCalls++
	err := p.resetErr
	p.mu.Unlock()
	return err
}

func (p *stubProvider) SignOut(context.Context) error { return nil }

func (p *stubProvider) Current() (Session, bool) { return Session{}, false }

type stubStore struct{}

func (stubStore) FindByUser(context.Context, string) (Snapshot, error) {
	return Snapshot{}, ErrNoRow
}
func (stubStore) Update(context.Context, Snapshot) error { return nil }
func (stubStore) Insert(context.Context, Snapshot) error { return nil }

func newTestFlow(t *testing.T, provider SessionProvider, completions *atomic.Int64) *Flow {
	t.Helper()

	builder := New().
		WithSessionProvider(provider).
		WithRecordStore(stubStore{})
	if completions != nil {
		builder = builder.WithOnComplete(func() { completions.Add(1) })
	}
	client, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client.Flow()
}

func fillSignUpForm(f *Flow, email, password, confirm string) {
	f.SetEmail(email)
	f.SetPassword(password)
	f.SetConfirmPassword(confirm)
}

func TestChangeModeClearsState(t *testing.T) {
	provider := &stubProvider{signInErr: &AuthError{Message: "Invalid login credentials"}}
	flow := newTestFlow(t, provider, nil)

	fillSignUpForm(flow, "hugo@example.com", "secret", "secret")
	flow.ToggleReveal()
	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if flow.Outcome().Kind != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %v", flow.Outcome().Kind)
	}

	for _, mode := range []Mode{ModeSignUp, ModeReset, ModeSignIn} {
		flow.ChangeMode(mode)
		if got := flow.Form(); got != (Form{}) {
			t.Fatalf("mode %v: form not cleared: %+v", mode, got)
		}
		if got := flow.Outcome(); got.Kind != OutcomeIdle || got.Message != "" || got.Email != "" {
			t.Fatalf("mode %v: outcome not idle: %+v", mode, got)
		}
		if flow.Mode() != mode {
			t.Fatalf("mode not applied: want %v got %v", mode, flow.Mode())
		}
	}
}

func TestSignUpPasswordTooShort(t *testing.T) {
	provider := &stubProvider{}
	flow := newTestFlow(t, provider, nil)

	flow.ChangeMode(ModeSignUp)
	fillSignUpForm(flow, "hugo@example.com", "abc12", "abc12")
	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	out := flow.Outcome()
	if out.Kind != OutcomeFailed || out.Message != "Password must be at least 6 characters long" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if provider.signUpCalls != 0 {
		t.Fatalf("provider called despite local validation failure")
	}
}

func TestSignUpPasswordMismatch(t *testing.T) {
	provider := &stubProvider{}
	flow := newTestFlow(t, provider, nil)

	flow.ChangeMode(ModeSignUp)
	fillSignUpForm(flow, "hugo@example.com", "abcdef", "xyz123")
	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	out := flow.Outcome()
	if out.Kind != OutcomeFailed || out.Message != "Passwords do not match" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if provider.signUpCalls != 0 {
		t.Fatalf("provider called despite local validation failure")
	}
}

func TestSignUpSuccessAwaitsConfirmation(t *testing.T) {
	provider := &stubProvider{}
	var completions atomic.Int64
	flow := newTestFlow(t, provider, &completions)

	flow.ChangeMode(ModeSignUp)
	fillSignUpForm(flow, "hugo@example.com", "abcdef", "abcdef")
	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	out := flow.Outcome()
	if out.Kind != OutcomeAwaitingConfirmation || out.Email != "hugo@example.com" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	// Fields stay until the user acknowledges.
	if flow.Form().Email != "hugo@example.com" {
		t.Fatal("form cleared before acknowledgement")
	}
	// Re-submitting while a confirmation is pending is refused.
	if err := flow.Submit(context.Background()); !errors.Is(err, ErrNotAwaitingConfirmation) {
		t.Fatalf("expected ErrNotAwaitingConfirmation, got %v", err)
	}
	if completions.Load() != 0 {
		t.Fatal("flow-complete signalled before acknowledgement")
	}

	if err := flow.AcknowledgeEmailConfirmation(); err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}
	if got := flow.Form(); got != (Form{}) {
		t.Fatalf("form not reset after acknowledge: %+v", got)
	}
	if flow.Outcome().Kind != OutcomeIdle || flow.Mode() != ModeSignIn {
		t.Fatalf("flow not reset: outcome=%v mode=%v", flow.Outcome().Kind, flow.Mode())
	}
	if completions.Load() != 1 {
		t.Fatalf("expected one flow-complete signal, got %d", completions.Load())
	}
}

func TestAcknowledgeOutsideConfirmation(t *testing.T) {
	flow := newTestFlow(t, &stubProvider{}, nil)
	if err := flow.AcknowledgeEmailConfirmation(); !errors.Is(err, ErrNotAwaitingConfirmation) {
		t.Fatalf("expected ErrNotAwaitingConfirmation, got %v", err)
	}
}

func TestSignInFailureThenSuccess(t *testing.T) {
	provider := &stubProvider{signInErr: &AuthError{Message: "Invalid login credentials"}}
	var completions atomic.Int64
	flow := newTestFlow(t, provider, &completions)

	flow.SetEmail("hugo@example.com")
	flow.SetPassword("wrong")
	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	out := flow.Outcome()
	if out.Kind != OutcomeFailed || out.Message != "Invalid login credentials" {
		t.Fatalf("provider message not passed through: %+v", out)
	}

	provider.mu.Lock()
	provider.signInErr = nil
	provider.mu.Unlock()

	flow.SetPassword("right-this-time")
	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := flow.Form(); got != (Form{}) {
		t.Fatalf("form not reset after signin: %+v", got)
	}
	if flow.Outcome().Kind != OutcomeIdle {
		t.Fatalf("outcome not reset after signin: %+v", flow.Outcome())
	}
	if completions.Load() != 1 {
		t.Fatalf("expected one flow-complete signal, got %d", completions.Load())
	}
}

func TestSignInUnexpectedErrorIsGeneric(t *testing.T) {
	provider := &stubProvider{signInErr: errors.New("dial tcp: connection refused")}
	flow := newTestFlow(t, provider, nil)

	flow.SetEmail("hugo@example.com")
	flow.SetPassword("secret")
	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	out := flow.Outcome()
	if out.Kind != OutcomeFailed || out.Message != "An unexpected error occurred" {
		t.Fatalf("internal detail leaked: %+v", out)
	}
}

func TestResetSuccessKeepsFieldsAndStaysOpen(t *testing.T) {
	provider := &stubProvider{}
	var completions atomic.Int64
	flow := newTestFlow(t, provider, &completions)

	flow.ChangeMode(ModeReset)
	flow.SetEmail("hugo@example.com")
	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	out := flow.Outcome()
	if out.Kind != OutcomeSucceeded || out.Message != "Password reset email sent! Check your inbox." {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if flow.Form().Email != "hugo@example.com" {
		t.Fatal("fields auto-reset in reset mode")
	}
	if completions.Load() != 0 {
		t.Fatal("reset mode must not signal flow-complete")
	}

	// The flow stays open for a retry.
	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit failed: %v", err)
	}
	if provider.resetCalls != 2 {
		t.Fatalf("expected 2 reset calls, got %d", provider.resetCalls)
	}
}

func waitForOutcome(t *testing.T, flow *Flow, kind OutcomeKind) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if flow.Outcome().Kind == kind {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("outcome never reached %v, at %v", kind, flow.Outcome().Kind)
}

func TestSubmitGateWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	provider := &stubProvider{signInGate: gate}
	flow := newTestFlow(t, provider, nil)

	flow.SetEmail("hugo@example.com")
	flow.SetPassword("secret")

	done := make(chan error, 1)
	go func() { done <- flow.Submit(context.Background()) }()
	waitForOutcome(t, flow, OutcomeSubmitting)

	if err := flow.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if provider.signInCalls != 1 {
		t.Fatalf("expected exactly one provider call, got %d", provider.signInCalls)
	}
}

func TestCloseDiscardsStaleCompletion(t *testing.T) {
	gate := make(chan struct{})
	provider := &stubProvider{signInGate: gate}
	var completions atomic.Int64
	flow := newTestFlow(t, provider, &completions)

	flow.SetEmail("hugo@example.com")
	flow.SetPassword("secret")

	done := make(chan error, 1)
	go func() { done <- flow.Submit(context.Background()) }()
	waitForOutcome(t, flow, OutcomeSubmitting)

	// Closing mid-submit is permitted; the in-flight result is discarded.
	flow.Close()
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if flow.Outcome().Kind != OutcomeIdle || flow.Mode() != ModeSignIn {
		t.Fatalf("stale completion mutated state: outcome=%+v mode=%v", flow.Outcome(), flow.Mode())
	}
	if completions.Load() != 0 {
		t.Fatal("stale completion signalled flow-complete")
	}
}

func TestModeChangeDiscardsStaleCompletion(t *testing.T) {
	gate := make(chan struct{})
	provider := &stubProvider{signInGate: gate, signInErr: &AuthError{Message: "Invalid login credentials"}}
	flow := newTestFlow(t, provider, nil)

	flow.SetEmail("hugo@example.com")
	flow.SetPassword("secret")

	done := make(chan error, 1)
	go func() { done <- flow.Submit(context.Background()) }()
	waitForOutcome(t, flow, OutcomeSubmitting)

	flow.ChangeMode(ModeReset)
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// The failure belongs to the abandoned signin attempt, not to reset mode.
	if out := flow.Outcome(); out.Kind != OutcomeIdle {
		t.Fatalf("stale failure clobbered new mode: %+v", out)
	}
}
