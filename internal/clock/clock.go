// Package clock abstracts time for the sync job so the periodic and debounce
// triggers can be driven deterministically in tests.
package clock

import "time"

// Clock produces the two timer shapes the sync job needs.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	AfterFunc(d time.Duration, fn func()) Timer
}

// Ticker mirrors time.Ticker behind an interface.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer mirrors the Reset/Stop surface of time.Timer created via AfterFunc.
type Timer interface {
	Reset(d time.Duration)
	Stop() bool
}

// System is the wall clock.
type System struct{}

// Now implements [Clock].
func (System) Now() time.Time { return time.Now() }

// NewTicker implements [Clock].
func (System) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

// AfterFunc implements [Clock].
func (System) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{time.AfterFunc(d, fn)}
}

type systemTicker struct {
	t *time.Ticker
}

func (t systemTicker) C() <-chan time.Time { return t.t.C }
func (t systemTicker) Stop()               { t.t.Stop() }

type systemTimer struct {
	t *time.Timer
}

func (t systemTimer) Reset(d time.Duration) { t.t.Reset(d) }
func (t systemTimer) Stop() bool            { return t.t.Stop() }
