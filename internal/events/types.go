// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

// EventType represents the type of event.
type EventType string

const (
	// AnyEvent subscribes a handler to every event type.
	AnyEvent EventType = "*"

	// Trade attempt events
	StateChanged    EventType = "swap.state_changed"
	RecordChanged   EventType = "swap.record_changed"
	SigningPending  EventType = "swap.signing_pending"
	AttemptFinished EventType = "swap.attempt_finished"

	// Form events
	QuoteUpdated   EventType = "quote.updated"
	BalanceUpdated EventType = "balance.updated"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// StateChangedEvent is emitted on every orchestrator transition.
type StateChangedEvent struct {
	BaseEvent
	AttemptID string
	Status    swap.Status
}

// NewStateChanged builds a StateChangedEvent stamped now.
func NewStateChanged(attemptID string, st swap.Status) StateChangedEvent {
	return StateChangedEvent{BaseEvent: base(StateChanged), AttemptID: attemptID, Status: st}
}

// RecordChangedEvent is emitted when a ledger record is appended or updated.
type RecordChangedEvent struct {
	BaseEvent
	AttemptID string
	Handle    swap.Handle
	Record    swap.TxRecord
}

// NewRecordChanged builds a RecordChangedEvent stamped now.
func NewRecordChanged(attemptID string, h swap.Handle, rec swap.TxRecord) RecordChangedEvent {
	return RecordChangedEvent{BaseEvent: base(RecordChanged), AttemptID: attemptID, Handle: h, Record: rec}
}

// SigningPendingEvent is the periodic "still waiting for the wallet" notice.
type SigningPendingEvent struct {
	BaseEvent
	AttemptID string
	Kind      swap.TxKind
	Waited    time.Duration
}

// NewSigningPending builds a SigningPendingEvent stamped now.
func NewSigningPending(attemptID string, kind swap.TxKind, waited time.Duration) SigningPendingEvent {
	return SigningPendingEvent{BaseEvent: base(SigningPending), AttemptID: attemptID, Kind: kind, Waited: waited}
}

// AttemptFinishedEvent carries the result of a finished attempt.
type AttemptFinishedEvent struct {
	BaseEvent
	Result *swap.Result
	Err    error
}

// NewAttemptFinished builds an AttemptFinishedEvent stamped now.
func NewAttemptFinished(res *swap.Result, err error) AttemptFinishedEvent {
	return AttemptFinishedEvent{BaseEvent: base(AttemptFinished), Result: res, Err: err}
}

// QuoteUpdatedEvent is emitted when the form's quote changes.
type QuoteUpdatedEvent struct {
	BaseEvent
	Quote *swap.Quote
	Stale bool
	Err   error
}

// NewQuoteUpdated builds a QuoteUpdatedEvent stamped now.
func NewQuoteUpdated(q *swap.Quote, stale bool, err error) QuoteUpdatedEvent {
	return QuoteUpdatedEvent{BaseEvent: base(QuoteUpdated), Quote: q, Stale: stale, Err: err}
}

// BalanceUpdatedEvent is emitted after a successful balance poll.
type BalanceUpdatedEvent struct {
	BaseEvent
	Snapshot swap.BalanceSnapshot
}

// NewBalanceUpdated builds a BalanceUpdatedEvent stamped now.
func NewBalanceUpdated(s swap.BalanceSnapshot) BalanceUpdatedEvent {
	return BalanceUpdatedEvent{BaseEvent: base(BalanceUpdated), Snapshot: s}
}
