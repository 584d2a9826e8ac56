// ABOUTME: In-memory fan-out of conversation events to interested subscribers
// ABOUTME: Subscribers watch one session or every session; slow subscribers drop events

package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// AllSessions subscribes to events from every session.
	AllSessions = "*"
)

// EventType identifies what happened in a conversation.
type EventType string

const (
	EventTurn            EventType = "turn"
	EventReply           EventType = "reply"
	EventMaxTurnsReached EventType = "max_turns_reached"
	EventEscalated       EventType = "escalated"
	EventEnded           EventType = "ended"
)

// Event is a notification about one session.
type Event struct {
	ID        string
	Type      EventType
	SessionID string
	Turn      int
	Text      string // user text for turns, reply text for replies
	TicketID  string // set for EventEscalated
	Time      time.Time
}

// EventBroadcaster provides in-memory pub/sub for conversation events.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // session ID or AllSessions -> subID -> ch
	logger      *slog.Logger
}

// NewEventBroadcaster creates a broadcaster. Pass nil logger for default.
func NewEventBroadcaster(logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		subscribers: make(map[string]map[string]chan Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for events on a session, or on every session with
// AllSessions. The subscription is removed when ctx is cancelled.
func (b *EventBroadcaster) Subscribe(ctx context.Context, key string) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[string]chan Event)
	}
	b.subscribers[key][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "key", key, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(key, subID)
	}()

	return ch, subID
}

// Publish sends an event to the session's subscribers and to AllSessions
// subscribers. Non-blocking: full subscriber channels drop the event.
func (b *EventBroadcaster) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	var targets []chan Event
	for _, key := range []string{event.SessionID, AllSessions} {
		for _, ch := range b.subscribers[key] {
			targets = append(targets, ch)
		}
	}
	// Sends happen under the read lock so Unsubscribe cannot close a channel mid-send.
	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"session_id", event.SessionID,
				"event_type", event.Type)
		}
	}
	b.mu.RUnlock()
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBroadcaster) Unsubscribe(key, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, key)
	}

	b.logger.Debug("subscriber removed", "key", key, "sub_id", subID)
}

// Close closes every subscriber channel.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, key)
	}

	b.logger.Debug("broadcaster closed")
}
