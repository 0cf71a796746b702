package output

import (
	"errors"
	"testing"
)

type recordingSink struct {
	events   []Event
	writeErr error
	closed   bool
}

func (s *recordingSink) Write(e Event) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestManager_FansOutToAllSinks(t *testing.T) {
	m := NewManager()
	a := &recordingSink{}
	b := &recordingSink{}
	if err := m.AddSink(a); err != nil {
		t.Fatalf("AddSink: %v", err)
	}
	if err := m.AddSink(b); err != nil {
		t.Fatalf("AddSink: %v", err)
	}

	if err := m.Write(Event{Type: EventRunStarted}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("events not fanned out: a=%d b=%d", len(a.events), len(b.events))
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("not all sinks closed")
	}
}

func TestManager_OneFailingSinkDoesNotStopOthers(t *testing.T) {
	m := NewManager()
	bad := &recordingSink{writeErr: errors.New("disk full")}
	good := &recordingSink{}
	_ = m.AddSink(bad)
	_ = m.AddSink(good)

	err := m.Write(Event{Type: EventRunFinished})
	if err == nil {
		t.Fatal("expected aggregated write error")
	}
	if len(good.events) != 1 {
		t.Fatal("healthy sink did not receive the event")
	}
}

func TestManager_RejectsNilSink(t *testing.T) {
	m := NewManager()
	if err := m.AddSink(nil); err == nil {
		t.Fatal("expected error for nil sink")
	}
}
