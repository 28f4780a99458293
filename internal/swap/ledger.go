// internal/swap/ledger.go
package swap

import (
	"fmt"
	"sync"
	"time"
)

// TxKind distinguishes the on-chain operations of one attempt.
type TxKind string

const (
	TxKindSwap        TxKind = "swap"
	TxKindFeeTransfer TxKind = "fee_transfer"
)

// TxStatus is the lifecycle of a single on-chain operation.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxSubmitted
	TxConfirmed
	TxFailed
)

func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxSubmitted:
		return "submitted"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the status can no longer change.
func (s TxStatus) Terminal() bool {
	return s == TxConfirmed || s == TxFailed
}

// TxRecord tracks one on-chain operation. An empty Signature means the
// network has not returned one yet.
type TxRecord struct {
	Kind              TxKind
	Signature         string
	Status            TxStatus
	AmountDescription string
	Error             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Handle addresses a record inside the ledger that issued it.
type Handle int

// RecordUpdate is a partial update; nil fields are left untouched.
type RecordUpdate struct {
	Signature *string
	Status    *TxStatus
	Error     *string
}

// Ledger is the append-only list of records for one attempt. It is the
// display model: readers poll All or register an OnChange hook.
type Ledger struct {
	mu       sync.RWMutex
	records  []TxRecord
	byKind   map[TxKind][]Handle
	onChange func(Handle, TxRecord)
	now      func() time.Time
}

// NewLedger creates an empty ledger. onChange, if set, is called synchronously
// after every append and update, outside the ledger lock.
func NewLedger(onChange func(Handle, TxRecord)) *Ledger {
	return &Ledger{
		byKind:   make(map[TxKind][]Handle),
		onChange: onChange,
		now:      time.Now,
	}
}

// Append adds a record and returns its handle.
func (l *Ledger) Append(rec TxRecord) Handle {
	l.mu.Lock()
	now := l.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	h := Handle(len(l.records))
	l.records = append(l.records, rec)
	l.byKind[rec.Kind] = append(l.byKind[rec.Kind], h)
	l.mu.Unlock()

	l.notify(h, rec)
	return h
}

// Update applies a partial update. Status may only move forward and a
// terminal status is final.
func (l *Ledger) Update(h Handle, upd RecordUpdate) error {
	l.mu.Lock()
	if int(h) < 0 || int(h) >= len(l.records) {
		l.mu.Unlock()
		return fmt.Errorf("ledger: unknown handle %d", h)
	}
	rec := l.records[h]
	if upd.Status != nil && *upd.Status != rec.Status {
		if rec.Status.Terminal() || *upd.Status < rec.Status {
			l.mu.Unlock()
			return fmt.Errorf("ledger: invalid transition %s -> %s", rec.Status, *upd.Status)
		}
		rec.Status = *upd.Status
	}
	if upd.Signature != nil {
		rec.Signature = *upd.Signature
	}
	if upd.Error != nil {
		rec.Error = *upd.Error
	}
	rec.UpdatedAt = l.now()
	l.records[h] = rec
	l.mu.Unlock()

	l.notify(h, rec)
	return nil
}

// record returns a copy of one record.
func (l *Ledger) record(h Handle) (TxRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if int(h) < 0 || int(h) >= len(l.records) {
		return TxRecord{}, false
	}
	return l.records[h], true
}

// All returns the records in append order.
func (l *Ledger) All() []TxRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]TxRecord, len(l.records))
	copy(out, l.records)
	return out
}

// ByKind returns the records of one kind in append order.
func (l *Ledger) ByKind(kind TxKind) []TxRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	handles := l.byKind[kind]
	out := make([]TxRecord, 0, len(handles))
	for _, h := range handles {
		out = append(out, l.records[h])
	}
	return out
}

// size returns the number of records.
func (l *Ledger) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Ledger) notify(h Handle, rec TxRecord) {
	if l.onChange != nil {
		l.onChange(h, rec)
	}
}

// Ptr helpers for RecordUpdate literals.
func statusPtr(s TxStatus) *TxStatus { return &s }
func strPtr(s string) *string { return &s }
