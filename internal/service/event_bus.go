// internal/service/event_bus.go
package service

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"projector-service/internal/model"
)

// Subscription is a registered event consumer
type Subscription struct {
	ID     uuid.UUID
	C      <-chan *model.ProjectorEvent
	types  map[model.EventType]bool
	events chan *model.ProjectorEvent
}

// Wants reports whether the subscription receives eventType
func (s *Subscription) Wants(eventType model.EventType) bool {
	return len(s.types) == 0 || s.types[eventType]
}

// EventBus manages event distribution
type EventBus struct {
	subscribers map[uuid.UUID]*Subscription
	events      chan *model.ProjectorEvent
	mutex       sync.RWMutex
	closed      bool
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[uuid.UUID]*Subscription),
		events:      make(chan *model.ProjectorEvent, 1000),
		logger:      logger.With(zap.String("component", "event-bus")),
	}
}

// Start distributes events until Stop is called. It blocks.
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distributeEvent(event)
	}
}

// Stop closes the bus and every subscription
func (eb *EventBus) Stop() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	close(eb.events)
	for id, sub := range eb.subscribers {
		close(sub.events)
		delete(eb.subscribers, id)
	}
}

// Publish publishes an event. A full bus drops it.
func (eb *EventBus) Publish(event *model.ProjectorEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	if eb.closed {
		return
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
			zap.String("projector_id", event.ProjectorID),
		)
	}
}

// Subscribe subscribes to the given event types, or to all of them when none are given
func (eb *EventBus) Subscribe(types ...model.EventType) *Subscription {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	events := make(chan *model.ProjectorEvent, 100)
	sub := &Subscription{
		ID:     uuid.New(),
		C:      events,
		types:  make(map[model.EventType]bool, len(types)),
		events: events,
	}
	for _, t := range types {
		sub.types[t] = true
	}

	if eb.closed {
		close(events)
		return sub
	}
	eb.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes the subscription and closes its channel
func (eb *EventBus) Unsubscribe(sub *Subscription) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if _, ok := eb.subscribers[sub.ID]; !ok {
		return
	}
	delete(eb.subscribers, sub.ID)
	close(sub.events)
}

// SubscriberCount returns the number of live subscriptions
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event *model.ProjectorEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, sub := range eb.subscribers {
		if !sub.Wants(event.EventType) {
			continue
		}
		select {
		case sub.events <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
