package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func TestDispatcherDeliversAndCloses(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.emit(AuditEvent{EventType: auditEventSyncWrite, Success: true})
	}
	d.Close()

	if got := sink.count.Load(); got != 5 {
		t.Fatalf("expected 5 events drained through the sink, got %d", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("unexpected drops: %d", d.Dropped())
	}

	// Emit after Close is discarded, not delivered.
	d.emit(AuditEvent{EventType: auditEventSyncWrite})
	if got := sink.count.Load(); got != 5 {
		t.Fatalf("event delivered after Close: %d", got)
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("disabled audit must yield a nil dispatcher")
	}
	// Nil dispatcher methods are no-ops.
	d.emit(AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestFlowEmitsAuditEvents(t *testing.T) {
	sink := NewChannelSink(16)
	client, err := New().
		WithSessionProvider(&stubProvider{}).
		WithRecordStore(stubStore{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()

	client.Flow().ChangeMode(ModeSignUp)

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditEventModeChange || ev.Mode != "signup" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Fatal("dispatcher must stamp events")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
	}
}

func TestJSONWriterSinkLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		EventType: auditEventSubmit,
		Mode:      "reset",
		Email:     "hugo@example.com",
		Success:   true,
	})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if decoded.EventType != auditEventSubmit || decoded.Mode != "reset" {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}
