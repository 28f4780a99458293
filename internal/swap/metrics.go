// internal/swap/metrics.go
package swap

import "time"

// Metrics receives counters from the swap components. The prometheus
// implementation lives in internal/metrics.
type Metrics interface {
	QuoteRequested(outcome string)
	StageObserved(stage State, d time.Duration)
	AttemptFinished(final State, kind ErrorKind)
	BalancePolled(asset string, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) QuoteRequested(string) {}
func (nopMetrics) StageObserved(State, time.Duration) {}
func (nopMetrics) AttemptFinished(State, ErrorKind) {}
func (nopMetrics) BalancePolled(string, string) {}
