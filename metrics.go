package authflow

import "sync/atomic"

// MetricID identifies one counter tracked by the core.
type MetricID uint16

const (
	// MetricSignInSuccess counts completed sign-ins.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts provider-rejected sign-ins.
	MetricSignInFailure
	// MetricSignUpSuccess counts sign-ups accepted into the
	// pending-confirmation state.
	MetricSignUpSuccess
	// MetricSignUpFailure counts provider-rejected sign-ups.
	MetricSignUpFailure
	// MetricValidationFailure counts sign-ups stopped by local validation
	// before any provider call.
	MetricValidationFailure
	// MetricResetRequested counts password-reset e-mails requested.
	MetricResetRequested
	// MetricResetFailure counts provider-rejected reset requests.
	MetricResetFailure
	// MetricUnexpectedFailure counts unclassified submission errors.
	MetricUnexpectedFailure
	// MetricSyncInsert counts analytics rows created.
	MetricSyncInsert
	// MetricSyncUpdate counts analytics rows updated.
	MetricSyncUpdate
	// MetricSyncFailure counts swallowed store errors.
	MetricSyncFailure

	metricCount
)

var metricNames = [metricCount]string{
	MetricSignInSuccess:     "signin_success",
	MetricSignInFailure:     "signin_failure",
	MetricSignUpSuccess:     "signup_success",
	MetricSignUpFailure:     "signup_failure",
	MetricValidationFailure: "validation_failure",
	MetricResetRequested:    "reset_requested",
	MetricResetFailure:      "reset_failure",
	MetricUnexpectedFailure: "unexpected_failure",
	MetricSyncInsert:        "sync_insert",
	MetricSyncUpdate:        "sync_update",
	MetricSyncFailure:       "sync_failure",
}

// String returns the stable exposition name of the counter.
func (id MetricID) String() string {
	if id >= metricCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every counter the core tracks, in stable order. Exporters
// iterate this to register instruments.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Metrics is a fixed set of lock-free counters. A nil *Metrics is valid and
// counts nothing.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	out := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return out
	}
	for i := range m.counters {
		out.Counters[MetricID(i)] = m.counters[i].Load()
	}
	return out
}
