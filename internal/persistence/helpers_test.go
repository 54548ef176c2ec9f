package persistence

import (
	"sync"
	"testing"
	"time"

	"github.com/roach88/racelog/internal/model"
)

var t0 = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func testEntry(id, bib string, offset time.Duration) model.Entry {
	return model.Entry{
		ID:         id,
		Bib:        bib,
		Point:      model.PointStart,
		Run:        1,
		Timestamp:  t0.Add(offset),
		Status:     model.StatusOK,
		DeviceID:   "dev_a",
		DeviceName: "Start",
	}
}

// stateHolder stands in for the engine's snapshot cell.
type stateHolder struct {
	mu sync.Mutex
	p  model.Persisted
}

func newStateHolder() *stateHolder {
	return &stateHolder{p: model.DefaultPersisted()}
}

func (h *stateHolder) get() model.Persisted {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.p
}

func (h *stateHolder) update(fn func(*model.Persisted)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.p)
}

// eventSink collects storage events.
type eventSink struct {
	ch chan Event
}

func newEventSink() *eventSink {
	return &eventSink{ch: make(chan Event, 16)}
}

func (s *eventSink) handle(e Event) { s.ch <- e }

func (s *eventSink) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-s.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for storage event")
		return Event{}
	}
}

func (s *eventSink) empty() bool { return len(s.ch) == 0 }
