// ABOUTME: In-memory view of one conversation session and its event log
// ABOUTME: Query helpers scan the log newest-first; logs are small by construction

package session

import (
	"sync"
	"time"

	"github.com/2389/replybot/internal/mutex"
	"github.com/2389/replybot/internal/platform"
	"github.com/2389/replybot/internal/store"
)

// Thread is the in-memory view of one session: its model, the ordered
// event log (persisted events followed by uncommitted appends), and the
// lock held while processing.
type Thread struct {
	Model *store.Session
	Lock  mutex.Lock

	// mu guards the event log. A flow body that outlives its watchdog
	// keeps running after the middleware commits, so log access has to
	// be safe from both goroutines.
	mu        sync.Mutex
	events    []*store.SessionEvent
	committed int
}

// NewThread builds a thread over a loaded session. The given events are
// considered already persisted.
func NewThread(model *store.Session, events []*store.SessionEvent, lock mutex.Lock) *Thread {
	return &Thread{
		Model:     model,
		Lock:      lock,
		events:    events,
		committed: len(events),
	}
}

// Events returns a copy of the full ordered log, committed and pending.
func (t *Thread) Events() []*store.SessionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*store.SessionEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Append adds an event to the in-memory log. Nothing is persisted until
// the next commit.
func (t *Thread) Append(event *store.SessionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

// Pending returns a copy of the events appended since the last commit.
func (t *Thread) Pending() []*store.SessionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	pending := make([]*store.SessionEvent, len(t.events)-t.committed)
	copy(pending, t.events[t.committed:])
	return pending
}

// MarkCommitted records that all pending events have been persisted.
func (t *Thread) MarkCommitted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = len(t.events)
}

// LastEvent returns the newest event, or nil for an empty log.
func (t *Thread) LastEvent() *store.SessionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return nil
	}
	return t.events[len(t.events)-1]
}

// LastEventOfType returns the newest event of the given type.
func (t *Thread) LastEventOfType(eventType string) *store.SessionEvent {
	return t.reverseFilter(func(e *store.SessionEvent) bool {
		return e.Type == eventType
	})
}

// LastFlowEvent returns the newest flow-marker event. This is what the
// inference engine keys continuation decisions on.
func (t *Thread) LastFlowEvent() *store.SessionEvent {
	return t.reverseFilter(func(e *store.SessionEvent) bool {
		return store.IsFlowEvent(e.Type)
	})
}

// LastReceived returns the newest received message snapshot with a
// timestamp, or nil.
func (t *Thread) LastReceived() *platform.Event {
	event := t.reverseFilter(func(e *store.SessionEvent) bool {
		return e.Type == store.EventMessageReceived && e.Message != nil && e.Message.TS != ""
	})
	if event == nil {
		return nil
	}
	return event.Message
}

// LastSent returns the newest sent message snapshot, or nil.
func (t *Thread) LastSent() *platform.Event {
	event := t.LastEventOfType(store.EventMessageSent)
	if event == nil {
		return nil
	}
	return event.Message
}

func (t *Thread) reverseFilter(match func(*store.SessionEvent) bool) *store.SessionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.events) - 1; i >= 0; i-- {
		if match(t.events[i]) {
			return t.events[i]
		}
	}
	return nil
}

// IsOpen reports whether the session is still open.
func (t *Thread) IsOpen() bool {
	return t.Model.IsOpen()
}

// IsClosed reports whether the session has been closed.
func (t *Thread) IsClosed() bool {
	return !t.IsOpen()
}

// TimedOut reports whether the last received message is older than
// maxAge. Sent messages deliberately don't count: the inactivity clock
// only runs while we wait on the user.
func (t *Thread) TimedOut(maxAge time.Duration, now time.Time) bool {
	last := t.LastReceived()
	if last == nil {
		return false
	}
	at, ok := last.Time()
	if !ok {
		return false
	}
	return now.Sub(at) > maxAge
}
