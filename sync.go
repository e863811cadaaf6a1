package authflow

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/hugoland/authflow/internal/clock"
)

// SyncJob keeps one remote analytics row per active session approximately
// current with the latest gameplay snapshot. Two triggers request a write: a
// fixed-interval tick and a debounce window restarted on every tracked field
// change delivered through Observe. Both funnel into a single worker
// goroutine, so two triggers becoming due together still produce serialized
// read-then-write sequences.
//
// The job is best-effort: every store error is counted, audited, logged, and
// swallowed, and the next periodic tick retries.
type SyncJob struct {
	cfg     SyncConfig
	store   RecordStore
	clk     clock.Clock
	logger  *log.Logger
	audit   *auditDispatcher
	metrics *Metrics

	mu       sync.Mutex
	running  bool
	session  Session
	latest   Snapshot
	have     bool
	debounce clock.Timer
	fires    chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

// Start binds the job to a session and launches the worker, which serves
// the periodic and debounce triggers until Stop. The first write lands once
// either trigger fires; with the default windows that is within one debounce
// interval of the first observed change.
func (j *SyncJob) Start(session Session) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return ErrSyncRunning
	}
	j.running = true
	j.session = session
	j.latest = Snapshot{}
	j.have = false
	j.fires = make(chan struct{}, 1)
	j.done = make(chan struct{})
	done := j.done
	fires := j.fires
	j.mu.Unlock()

	j.audit.emit(AuditEvent{
		EventType: auditEventSyncStart,
		UserID:    session.ID,
		Email:     session.Email,
		Success:   true,
	})

	j.wg.Add(1)
	go j.run(done, fires)
	return nil
}

// Stop cancels both triggers and waits for the worker to exit. An in-flight
// write sequence is not force-cancelled; it completes and its result is
// simply the last row the session leaves behind. Safe to call when not
// running.
func (j *SyncJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	session := j.session
	j.session = Session{}
	j.have = false
	if j.debounce != nil {
		j.debounce.Stop()
		j.debounce = nil
	}
	close(j.done)
	j.mu.Unlock()

	j.wg.Wait()

	j.audit.emit(AuditEvent{
		EventType: auditEventSyncStop,
		UserID:    session.ID,
		Email:     session.Email,
		Success:   true,
	})
}

// Observe delivers the latest gameplay snapshot. When a tracked field
// (coins, gems, zone, health, attack, defense) differs from the previous
// observation the debounce window restarts; when only untracked fields moved
// the value is retained for the next write without scheduling one. Dropped
// entirely while no session is bound.
func (j *SyncJob) Observe(snap Snapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}

	changed := !j.have || !trackedEqual(j.latest, snap)
	j.latest = snap
	j.have = true
	if !changed {
		return
	}

	if j.debounce == nil {
		fires := j.fires
		j.debounce = j.clk.AfterFunc(j.cfg.Debounce, func() {
			select {
			case fires <- struct{}{}:
			default:
			}
		})
		return
	}
	j.debounce.Stop()
	j.debounce.Reset(j.cfg.Debounce)
}

func (j *SyncJob) run(done chan struct{}, fires chan struct{}) {
	defer j.wg.Done()

	ticker := j.clk.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			j.flush()
		case <-fires:
			j.flush()
		case <-done:
			return
		}
	}
}

// flush runs one read-then-write sequence against the store: update the row
// when it exists, insert it otherwise. No-op until a snapshot has been
// observed for the bound session.
func (j *SyncJob) flush() {
	j.mu.Lock()
	if !j.running || !j.have {
		j.mu.Unlock()
		return
	}
	session := j.session
	snap := j.latest
	j.mu.Unlock()

	snap.UserID = session.ID
	ctx := context.Background()

	_, err := j.store.FindByUser(ctx, session.ID)
	switch {
	case err == nil:
		if err := j.store.Update(ctx, snap); err != nil {
			j.observeFailure(session, "update", err)
			return
		}
		j.metrics.Inc(MetricSyncUpdate)
		j.observeWrite(session, "update")
	case errors.Is(err, ErrNoRow):
		if err := j.store.Insert(ctx, snap); err != nil {
			j.observeFailure(session, "insert", err)
			return
		}
		j.metrics.Inc(MetricSyncInsert)
		j.observeWrite(session, "insert")
	default:
		j.observeFailure(session, "lookup", err)
	}
}

func (j *SyncJob) observeWrite(session Session, op string) {
	j.audit.emit(AuditEvent{
		EventType: auditEventSyncWrite,
		UserID:    session.ID,
		Success:   true,
		Metadata:  map[string]string{"op": op},
	})
}

func (j *SyncJob) observeFailure(session Session, op string, err error) {
	j.metrics.Inc(MetricSyncFailure)
	if j.logger != nil {
		j.logger.Printf("telemetry sync %s failed for user %s: %v", op, session.ID, err)
	}
	j.audit.emit(AuditEvent{
		EventType: auditEventSyncFailure,
		UserID:    session.ID,
		Success:   false,
		Error:     err.Error(),
		Metadata:  map[string]string{"op": op},
	})
}

// trackedEqual compares the fields whose changes schedule a debounced write.
// MaxHealth is carried on every write but does not trigger one by itself.
func trackedEqual(a, b Snapshot) bool {
	return a.Coins == b.Coins &&
		a.Gems == b.Gems &&
		a.Zone == b.Zone &&
		a.Health == b.Health &&
		a.Attack == b.Attack &&
		a.Defense == b.Defense
}
