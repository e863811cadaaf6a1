package authflow

import (
	"errors"
	"time"
)

// Config groups the tunables of the flow and the sync job. Instances are
// configured during initialization and treated as immutable afterwards.
type Config struct {
	Flow    FlowConfig
	Sync    SyncConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// FlowConfig holds the local validation policy applied before any provider
// call is made.
type FlowConfig struct {
	MinPasswordLength int
}

// SyncConfig holds the two trigger windows of the telemetry job. Interval is
// the fixed-period trigger; Debounce is the quiet window restarted on every
// tracked snapshot change.
type SyncConfig struct {
	Interval time.Duration
	Debounce time.Duration
}

// AuditConfig controls the async event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production defaults: 6-character password floor,
// 30s periodic sync, 1s debounce, audit and metrics on.
func DefaultConfig() Config {
	return Config{
		Flow: FlowConfig{
			MinPasswordLength: 6,
		},
		Sync: SyncConfig{
			Interval: 30 * time.Second,
			Debounce: 1 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

var (
	errPasswordFloor  = errors.New("config: Flow.MinPasswordLength must be >= 1")
	errSyncInterval   = errors.New("config: Sync.Interval must be > 0")
	errSyncDebounce   = errors.New("config: Sync.Debounce must be > 0")
	errDebounceWindow = errors.New("config: Sync.Debounce must not exceed Sync.Interval")
)

// Validate rejects configurations that would disable a trigger or the
// password floor outright.
func (c Config) Validate() error {
	if c.Flow.MinPasswordLength < 1 {
		return errPasswordFloor
	}
	if c.Sync.Interval <= 0 {
		return errSyncInterval
	}
	if c.Sync.Debounce <= 0 {
		return errSyncDebounce
	}
	if c.Sync.Debounce > c.Sync.Interval {
		return errDebounceWindow
	}
	return nil
}
