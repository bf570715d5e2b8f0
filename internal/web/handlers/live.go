package handlers

import (
	"sync"
	"time"

	"github.com/kozaktomas/roll-call/internal/recognize"
)

// eventChannelBuffer bounds per-listener queues so one slow SSE client
// cannot block the recognition loop.
const eventChannelBuffer = 64

// LiveEvent is one message on a session's live stream.
type LiveEvent struct {
	Type      string              `json:"type"` // "sighting", "ended"
	Sighting  *recognize.Sighting `json:"sighting,omitempty"`
	Timestamp time.Time           `json:"ts"`
}

// EventBroadcaster provides listener management and event fan-out for a live
// session. Embed it to get AddListener, RemoveListener and SendEvent.
type EventBroadcaster struct {
	listeners []chan LiveEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan LiveEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan LiveEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan LiveEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event LiveEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// closeAll drops every listener. Called once when the session ends.
func (b *EventBroadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}

// LiveSession ties a recognition processor to the SSE stream of one
// open attendance session.
type LiveSession struct {
	EventBroadcaster

	ID        int64     `json:"id"`
	CourseID  int64     `json:"course_id"`
	StartedAt time.Time `json:"started_at"`

	processor *recognize.Processor
}

// SessionHub tracks the recognition state of open sessions.
type SessionHub struct {
	live map[int64]*LiveSession
	mu   sync.RWMutex
}

// NewSessionHub creates an empty hub.
func NewSessionHub() *SessionHub {
	return &SessionHub{
		live: make(map[int64]*LiveSession),
	}
}

// Open registers a processor for a freshly started session. The processor's
// recorded sightings are forwarded to SSE listeners.
func (h *SessionHub) Open(sessionID, courseID int64, p *recognize.Processor) *LiveSession {
	ls := &LiveSession{
		ID:        sessionID,
		CourseID:  courseID,
		StartedAt: time.Now(),
		processor: p,
	}
	if p != nil {
		p.OnMatch(func(s recognize.Sighting) {
			ls.SendEvent(LiveEvent{Type: "sighting", Sighting: &s, Timestamp: time.Now()})
		})
	}

	h.mu.Lock()
	h.live[sessionID] = ls
	h.mu.Unlock()

	return ls
}

// Get returns the live session, or nil if it is not open on this instance.
func (h *SessionHub) Get(sessionID int64) *LiveSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.live[sessionID]
}

// Close tears down the live session, notifying stream listeners first.
func (h *SessionHub) Close(sessionID int64) {
	h.mu.Lock()
	ls := h.live[sessionID]
	delete(h.live, sessionID)
	h.mu.Unlock()

	if ls != nil {
		ls.SendEvent(LiveEvent{Type: "ended", Timestamp: time.Now()})
		ls.closeAll()
	}
}

// Count returns the number of sessions open on this instance.
func (h *SessionHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.live)
}
