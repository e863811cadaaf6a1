// Package authflow provides the client-side session core for Hugoland:
// an authentication flow state machine (sign-in, sign-up, password reset,
// post-signup e-mail confirmation) and a telemetry synchronizer that keeps
// one remote analytics row per active session approximately current.
//
// The package is the public surface. It exposes [Flow], [SyncJob], [Builder],
// [Config], and value types (Outcome, Form, Snapshot, MetricsSnapshot). The
// identity provider and the analytics row store are injected as interfaces
// ([SessionProvider], [RecordStore]); working Redis-backed implementations
// live under session/ and record/.
//
// # Concurrency contract
//
// Flow methods are safe to call from multiple goroutines after construction
// through [Builder.Build]. At most one Submit is in flight per Flow; the
// Submitting state gates re-entry. SyncJob funnels its periodic and debounce
// triggers into a single worker goroutine, so writes for a session are
// serialized even when both triggers become due together.
//
// # What this package must NOT do
//
//   - Render anything. The UI layer consumes Outcome/Form and calls
//     operations; presentation never leaks in here.
//   - Surface a sync failure to the user. Store errors are counted, audited,
//     logged, and swallowed; the next tick retries.
//   - Touch the provider or the store outside the operations documented on
//     Flow and SyncJob.
package authflow
