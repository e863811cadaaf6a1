package authflow

import (
	"fmt"
	"log"

	"github.com/hugoland/authflow/internal/clock"
)

// Client bundles the flow, the sync job, and their shared observability
// plumbing. Construct it through [Builder.Build].
type Client struct {
	flow    *Flow
	sync    *SyncJob
	audit   *auditDispatcher
	metrics *Metrics
}

// Flow returns the auth flow state machine.
func (c *Client) Flow() *Flow { return c.flow }

// Sync returns the telemetry sync job.
func (c *Client) Sync() *SyncJob { return c.sync }

// MetricsSnapshot copies the current counters. Empty when metrics are
// disabled.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports audit events discarded on a full buffer.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close stops the sync job and drains the audit queue.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.sync != nil {
		c.sync.Stop()
	}
	c.audit.Close()
}

// Builder assembles a [Client]. Construction is allocation-only; no I/O
// happens until flow operations or the sync job run.
type Builder struct {
	config     Config
	provider   SessionProvider
	store      RecordStore
	sink       AuditSink
	logger     *log.Logger
	clk        clock.Clock
	onComplete func()
	built      bool
}

// New starts a Builder with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithSessionProvider injects the identity provider. Required.
func (b *Builder) WithSessionProvider(p SessionProvider) *Builder {
	b.provider = p
	return b
}

// WithRecordStore injects the analytics row store. Required.
func (b *Builder) WithRecordStore(s RecordStore) *Builder {
	b.store = s
	return b
}

// WithAuditSink routes audit events to sink instead of discarding them.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the logger used for swallowed sync errors.
func (b *Builder) WithLogger(l *log.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the wall clock, for deterministic timer tests.
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clk = c
	return b
}

// WithOnComplete registers the flow-complete signal: invoked on sign-in
// success and on confirmation acknowledgement, after the flow has reset.
func (b *Builder) WithOnComplete(fn func()) *Builder {
	b.onComplete = fn
	return b
}

// WithMetricsEnabled toggles the counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the client. A Builder is
// single-use.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	if b.provider == nil {
		return nil, fmt.Errorf("%w: session provider", ErrBuilderIncomplete)
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: record store", ErrBuilderIncomplete)
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	b.built = true

	clk := b.clk
	if clk == nil {
		clk = clock.System{}
	}

	audit := newAuditDispatcher(b.config.Audit, b.sink)
	metrics := newMetrics(b.config.Metrics)

	return &Client{
		flow: &Flow{
			cfg:        b.config.Flow,
			provider:   b.provider,
			audit:      audit,
			metrics:    metrics,
			onComplete: b.onComplete,
			mode:       ModeSignIn,
			outcome:    Outcome{Kind: OutcomeIdle},
		},
		sync: &SyncJob{
			cfg:     b.config.Sync,
			store:   b.store,
			clk:     clk,
			logger:  b.logger,
			audit:   audit,
			metrics: metrics,
		},
		audit:   audit,
		metrics: metrics,
	}, nil
}
