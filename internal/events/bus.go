// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed = errors.New("event bus is shutting down")
	ErrBusFull   = errors.New("event channel full")
)

type entry struct {
	id      string
	handler Handler
}

// Bus is an in-process event bus. Queued events are delivered by one
// goroutine in publish order; handlers of a type run in subscription order.
type Bus struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[EventType][]entry

	queue     chan Event
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewBus starts a bus with a queue of bufferSize events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	b := &Bus{
		logger:  logger.Named("event_bus"),
		subs:    make(map[EventType][]entry),
		queue:   make(chan Event, bufferSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b
}

// Subscribe registers handler for eventType; AnyEvent receives everything.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	id := uuid.NewString()

	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], entry{id: id, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
	return &subscription{id: id, eventBus: b, typ: eventType}
}

// SubscribeFunc subscribes a plain function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues event without blocking. A full queue drops the event.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.closing:
		return ErrBusClosed
	default:
	}

	select {
	case b.queue <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event queue full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrBusFull
	}
}

// PublishSync delivers event on the caller's goroutine and joins handler errors.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, e := range b.targets(event.Type()) {
		if err := e.handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", e.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	b.delivered.Add(1)
	return errors.Join(errs...)
}

func (b *Bus) targets(t EventType) []entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]entry, 0, len(b.subs[t])+len(b.subs[AnyEvent]))
	out = append(out, b.subs[t]...)
	if t != AnyEvent {
		out = append(out, b.subs[AnyEvent]...)
	}
	return out
}

func (b *Bus) loop() {
	defer close(b.done)

	for {
		select {
		case event := <-b.queue:
			_ = b.PublishSync(context.Background(), event)
		case <-b.closing:
			// доставляем то, что уже в очереди
			for {
				select {
				case event := <-b.queue:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	list := b.subs[eventType]
	for i, e := range list {
		if e.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.subs, eventType)
	} else {
		b.subs[eventType] = list
	}
	b.mu.Unlock()

	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown stops accepting events and waits until the queue is drained.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.closeOnce.Do(func() { close(b.closing) })

	select {
	case <-b.done:
		b.logger.Debug("Event bus stopped",
			zap.Uint64("delivered", b.delivered.Load()),
			zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats is a point-in-time view of the bus.
type Stats struct {
	Queued          int
	Delivered       uint64
	Dropped         uint64
	HandlersPerType map[EventType]int
}

// Stats returns queue and subscription counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		Queued:          len(b.queue),
		Delivered:       b.delivered.Load(),
		Dropped:         b.dropped.Load(),
		HandlersPerType: make(map[EventType]int, len(b.subs)),
	}
	for t, list := range b.subs {
		st.HandlersPerType[t] = len(list)
	}
	return st
}
