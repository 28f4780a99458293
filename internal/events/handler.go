// internal/events/handler.go
package events

import (
	"context"
)

// Handler receives events from the bus. Asynchronous delivery runs all
// handlers on one goroutine, so Handle must return quickly.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is returned by Subscribe.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}

// Forward returns a handler that sends events to ch without blocking. Events
// are dropped when ch is full; the UI only needs the latest state.
func Forward(ch chan<- Event) Handler {
	return HandlerFunc(func(_ context.Context, event Event) error {
		select {
		case ch <- event:
		default:
		}
		return nil
	})
}
