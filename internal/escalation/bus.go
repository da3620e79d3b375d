// Package escalation fans out escalation and teacher-observer messages to
// subscribers of a session. Subscriber delivery is best-effort; a failing
// or full subscriber is pruned on the next broadcast, never treated as a
// bus error.
package escalation

import (
	"strings"
	"sync"
	"time"

	"github.com/antoniostano/tutorcore/internal/audit"
)

// Message is delivered to every current subscriber of a session.
type Message struct {
	SessionID string
	Reason    string
	Text      string
	At        time.Time
}

// Handle is returned by Notify; a new subscriber (the teacher) uses it to
// attach to the session's stream.
type Handle struct {
	SessionID string
}

// Bus fans out messages to per-session subscriber sets.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[int]chan Message
	nextSubID   int
	sink        audit.Sink
	onFailure   func(kind string)
}

func NewBus(sink audit.Sink) *Bus {
	return &Bus{
		subscribers: make(map[string]map[int]chan Message),
		sink:        sink,
	}
}

// SetAuditFailureHook registers a callback invoked when a best-effort
// escalation audit write fails, for metrics.
func (b *Bus) SetAuditFailureHook(fn func(kind string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFailure = fn
}

// Subscribe registers a new subscriber and returns its message channel
// plus an unsubscribe function.
func (b *Bus) Subscribe(sessionID string) (<-chan Message, func()) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan Message, 64)
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	if _, ok := b.subscribers[sessionID]; !ok {
		b.subscribers[sessionID] = make(map[int]chan Message)
	}
	b.subscribers[sessionID][id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[sessionID]
		if subs == nil {
			return
		}
		if c, ok := subs[id]; ok {
			delete(subs, id)
			close(c)
		}
		if len(subs) == 0 {
			delete(b.subscribers, sessionID)
		}
	}
}

// Broadcast delivers msg to every current subscriber of a session.
// Subscribers whose channel is full are dropped from the set: a slow
// observer must not block the pipeline or starve other subscribers.
func (b *Bus) Broadcast(sessionID string, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[sessionID]
	if len(subs) == 0 {
		return
	}
	for id, ch := range subs {
		select {
		case ch <- msg:
		default:
			delete(subs, id)
			close(ch)
		}
	}
	if len(subs) == 0 {
		delete(b.subscribers, sessionID)
	}
}

// Notify records an escalation and broadcasts it to current subscribers,
// returning a handle a new teacher connection can use to attach.
func (b *Bus) Notify(sessionID, reason string, at time.Time) Handle {
	b.Broadcast(sessionID, Message{SessionID: sessionID, Reason: reason, At: at})

	if b.sink != nil {
		if err := b.sink.WriteEscalationEvent(audit.EscalationEvent{
			SessionID:  sessionID,
			Reason:     reason,
			OccurredAt: at,
		}); err != nil {
			b.mu.RLock()
			hook := b.onFailure
			b.mu.RUnlock()
			if hook != nil {
				hook("escalation_event")
			}
		}
	}

	return Handle{SessionID: sessionID}
}

func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[sessionID])
}
