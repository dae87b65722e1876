// Package events implements the per-session event broadcaster.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripmind/backend/internal/domain"
)

const (
	// subscriberBuffer is the per-subscriber channel depth. A slow consumer
	// drops events rather than stalling the run.
	subscriberBuffer = 256

	// maxPending bounds events buffered for a session with no subscriber yet.
	maxPending = 512
)

// Broadcaster fans session events out to all subscribers of a session.
type Broadcaster struct {
	mu       sync.RWMutex
	sessions map[string]*sessionHub
}

type sessionHub struct {
	subscribers map[int]chan domain.Event
	nextID      int

	// pending holds events published before the first subscriber arrived,
	// delivered in order on first subscribe.
	pending []domain.Event
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		sessions: make(map[string]*sessionHub),
	}
}

// Subscribe registers an observer for a session. The returned cancel func
// must be called when the observer disconnects.
func (b *Broadcaster) Subscribe(sessionID string) (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hub, ok := b.sessions[sessionID]
	if !ok {
		hub = &sessionHub{subscribers: make(map[int]chan domain.Event)}
		b.sessions[sessionID] = hub
	}

	ch := make(chan domain.Event, subscriberBuffer)
	id := hub.nextID
	hub.nextID++
	hub.subscribers[id] = ch

	// First subscriber drains anything published before it connected.
	if len(hub.pending) > 0 {
		for _, ev := range hub.pending {
			select {
			case ch <- ev:
			default:
			}
		}
		hub.pending = nil
	}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		h, ok := b.sessions[sessionID]
		if !ok {
			return
		}
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub)
		}
		if len(h.subscribers) == 0 && len(h.pending) == 0 {
			delete(b.sessions, sessionID)
		}
	}
	return ch, cancel
}

// Publish broadcasts an event to all subscribers of a session. The payload
// is marshaled to JSON; marshal failures are logged and the event dropped.
func (b *Broadcaster) Publish(sessionID, runID string, typ domain.EventType, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("ERROR: marshal %s event for session %s: %v", typ, sessionID, err)
			return
		}
		raw = data
	}

	ev := domain.Event{
		EventID:   fmt.Sprintf("evt_%s", uuid.New().String()[:8]),
		SessionID: sessionID,
		RunID:     runID,
		Ts:        time.Now().UnixMilli(),
		Type:      typ,
		Payload:   raw,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	hub, ok := b.sessions[sessionID]
	if !ok {
		hub = &sessionHub{subscribers: make(map[int]chan domain.Event)}
		b.sessions[sessionID] = hub
	}

	if len(hub.subscribers) == 0 {
		if len(hub.pending) < maxPending {
			hub.pending = append(hub.pending, ev)
		}
		return
	}

	for _, ch := range hub.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow consumer; drop rather than block the run.
		}
	}
}

// SubscriberCount returns the number of active subscribers for a session.
func (b *Broadcaster) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hub, ok := b.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(hub.subscribers)
}
