package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Advance moves the fake time forward and
// fires every ticker tick and timer deadline that falls inside the step, in
// deadline order. Timer callbacks run on the advancing goroutine.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

// NewFake starts a fake clock at an arbitrary fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now implements [Clock].
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker implements [Clock].
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{
		clock:    f,
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     f.now.Add(d),
	}
	f.tickers = append(f.tickers, t)
	return t
}

// AfterFunc implements [Clock].
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{
		clock:    f,
		fn:       fn,
		deadline: f.now.Add(d),
		active:   true,
	}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, delivering ticks and running timer
// callbacks whose deadlines fall within the step.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		fn, ok := f.nextDue(target)
		if !ok {
			break
		}
		if fn != nil {
			fn()
		}
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// nextDue fires the earliest pending event at or before target. It returns
// a timer callback to run outside the lock, or (nil, true) when the event
// was a tick delivery.
func (f *Fake) nextDue(target time.Time) (func(), bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	type due struct {
		at     time.Time
		ticker *fakeTicker
		timer  *fakeTimer
	}
	var pending []due
	for _, t := range f.tickers {
		if !t.stopped && !t.next.After(target) {
			pending = append(pending, due{at: t.next, ticker: t})
		}
	}
	for _, t := range f.timers {
		if t.active && !t.deadline.After(target) {
			pending = append(pending, due{at: t.deadline, timer: t})
		}
	}
	if len(pending) == 0 {
		return nil, false
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].at.Before(pending[j].at) })

	next := pending[0]
	f.now = next.at
	if next.ticker != nil {
		next.ticker.next = next.at.Add(next.ticker.interval)
		select {
		case next.ticker.ch <- next.at:
		default:
		}
		return nil, true
	}
	next.timer.active = false
	return next.timer.fn, true
}

type fakeTicker struct {
	clock    *Fake
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

type fakeTimer struct {
	clock    *Fake
	fn       func()
	deadline time.Time
	active   bool
}

func (t *fakeTimer) Reset(d time.Duration) {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.deadline = t.clock.now.Add(d)
	t.active = true
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.active = false
	return was
}
