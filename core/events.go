package core

import (
	"context"
	"fmt"
	"sync"
)

type EventType int

const (
	EventSessionStarted EventType = iota
	EventSessionSwitched
	EventSessionEnded
	EventContentUpdated
)

func (t EventType) String() string {
	switch t {
	case EventSessionStarted:
		return "session_started"
	case EventSessionSwitched:
		return "session_switched"
	case EventSessionEnded:
		return "session_ended"
	case EventContentUpdated:
		return "content_updated"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

type (
	Event struct {
		Type     EventType
		Username string
		Data     interface{}
	}

	EventHandler func(ctx context.Context, ev Event)

	// EventBus delivers events to subscribers synchronously, in subscription order.
	EventBus struct {
		mu          sync.RWMutex
		subscribers map[EventType][]EventHandler
		logger      Logger
	}
)

func NewEventBus(logger Logger) *EventBus {
	if logger == nil {
		logger = NopLogger{}
	}
	return &EventBus{
		subscribers: make(map[EventType][]EventHandler),
		logger:      logger,
	}
}

func (b *EventBus) Subscribe(evType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[evType] = append(b.subscribers[evType], handler)
}

// Publish calls every handler subscribed to ev.Type. A panicking handler is logged and skipped.
// Handlers may Subscribe or Publish themselves: the lock is not held while they run.
func (b *EventBus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.subscribers[ev.Type]))
	copy(handlers, b.subscribers[ev.Type])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(ctx, h, ev)
	}
}

func (b *EventBus) call(ctx context.Context, h EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in event handler", fmt.Errorf("%v", r), map[string]interface{}{"event": ev.Type.String()})
		}
	}()
	h(ctx, ev)
}
