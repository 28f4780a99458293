// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

const namespace = "memeswap"

// Collector реализует swap.Metrics поверх prometheus.
type Collector struct {
	registry *prometheus.Registry

	quotes        *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	attempts      *prometheus.CounterVec
	balancePolls  *prometheus.CounterVec
}

var _ swap.Metrics = (*Collector)(nil)

// NewCollector создает коллектор с собственным registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_requests_total",
				Help:      "Quote requests by outcome",
			},
			[]string{"outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each orchestrator stage",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"stage"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Finished swap attempts by final state and error kind",
			},
			[]string{"state", "kind"},
		),
		balancePolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "balance_polls_total",
				Help:      "Balance poll ticks by asset and outcome",
			},
			[]string{"asset", "outcome"},
		),
	}
	c.registry.MustRegister(c.quotes, c.stageDuration, c.attempts, c.balancePolls)
	return c
}

func (c *Collector) QuoteRequested(outcome string) {
	c.quotes.WithLabelValues(outcome).Inc()
}

func (c *Collector) StageObserved(stage swap.State, d time.Duration) {
	c.stageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
}

func (c *Collector) AttemptFinished(final swap.State, kind swap.ErrorKind) {
	label := string(kind)
	if label == "" {
		label = "none"
	}
	c.attempts.WithLabelValues(final.String(), label).Inc()
}

func (c *Collector) BalancePolled(asset string, outcome string) {
	c.balancePolls.WithLabelValues(asset, outcome).Inc()
}

// Registry возвращает registry для тестов и внешних экспортеров.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler отдает метрики в формате prometheus.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.quotes.Reset()
	c.stageDuration.Reset()
	c.attempts.Reset()
	c.balancePolls.Reset()
}
