// internal/events/observer.go
package events

import (
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

// Observer publishes orchestrator notifications on the bus.
type Observer struct {
	bus    *Bus
	logger *zap.Logger
}

// NewObserver returns a swap.Observer backed by bus.
func NewObserver(bus *Bus, logger *zap.Logger) *Observer {
	return &Observer{bus: bus, logger: logger.Named("swap_observer")}
}

func (o *Observer) StateChanged(attemptID string, st swap.Status) {
	o.publish(NewStateChanged(attemptID, st))
}

func (o *Observer) RecordChanged(attemptID string, h swap.Handle, rec swap.TxRecord) {
	o.publish(NewRecordChanged(attemptID, h, rec))
}

func (o *Observer) SigningPending(attemptID string, kind swap.TxKind, waited time.Duration) {
	o.publish(NewSigningPending(attemptID, kind, waited))
}

func (o *Observer) publish(e Event) {
	if err := o.bus.Publish(e); err != nil {
		o.logger.Debug("Event not published", zap.String("event_type", string(e.Type())), zap.Error(err))
	}
}

var _ swap.Observer = (*Observer)(nil)
