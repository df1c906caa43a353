// Package events provides the in-process event bus used to signal
// portfolio changes to observers (SSE/websocket streams, jobs).
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a class of system event
type EventType string

const (
	StrategyAdded      EventType = "strategy_added"
	StrategyRemoved    EventType = "strategy_removed"
	WeightUpdated      EventType = "weight_updated"
	RebalanceCompleted EventType = "rebalance_completed"
	ConfigChanged      EventType = "config_changed"
	SnapshotTaken      EventType = "snapshot_taken"
	BackupCompleted    EventType = "backup_completed"
)

// Event is a single published event with its typed payload
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
}

// Handler receives published events. Handlers must not block; slow
// consumers should buffer on their own channel.
type Handler func(event *Event)

// Bus is a synchronous publish/subscribe bus. Publish calls every
// subscribed handler inline, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[int]Handler
	nextID   int
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType]map[int]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for the given event type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// Publish sends an event built from the payload's declared type to all
// subscribers of that type.
func (b *Bus) Publish(data EventData) {
	event := &Event{
		Type:      data.EventType(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	b.mu.RLock()
	subs := make([]Handler, 0, len(b.handlers[event.Type]))
	for _, h := range b.handlers[event.Type] {
		subs = append(subs, h)
	}
	b.mu.RUnlock()

	b.log.Debug().Str("type", string(event.Type)).Int("subscribers", len(subs)).Msg("Publishing event")

	for _, h := range subs {
		h(event)
	}
}
