// internal/swap/quote.go
package swap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Quote is an immutable aggregator price for one (pair, amount) triple.
type Quote struct {
	Pair         Pair
	InputAmount  uint64
	OutputAmount uint64
	PriceImpact  decimal.Decimal
	RouteHops    int
	FetchedAt    time.Time
	// Payload is the aggregator's opaque quote body, echoed back to the build endpoint.
	Payload []byte
}

// Matches reports whether the quote still describes the given form state.
func (q *Quote) Matches(pair Pair, inputAmount uint64) bool {
	return q != nil &&
		q.Pair.Input.Mint == pair.Input.Mint &&
		q.Pair.Output.Mint == pair.Output.Mint &&
		q.InputAmount == inputAmount
}

// OutputDecimal returns the quoted output in human units.
func (q *Quote) OutputDecimal() decimal.Decimal {
	return FromSmallestUnit(q.OutputAmount, q.Pair.Output.Decimals)
}

// QuoteParams is the network request sent to the aggregator.
type QuoteParams struct {
	Pair        Pair
	Amount      uint64
	SlippageBps uint16
}

// QuoteFetcher is the aggregator quote endpoint.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, params QuoteParams) (*Quote, error)
}

// QuoteRequest is what the UI form submits.
type QuoteRequest struct {
	Pair   Pair
	Amount decimal.Decimal
}

// QuoteEngineConfig configures a QuoteEngine.
type QuoteEngineConfig struct {
	Fetcher     QuoteFetcher
	Logger      *zap.Logger
	Debounce    time.Duration
	TTL         time.Duration
	SlippageBps uint16
	Metrics     Metrics
}

type inflightQuote struct {
	gen    uint64
	amount uint64
	done   chan struct{}
	cancel context.CancelFunc
	quote  *Quote
	err    error
}

type pairState struct {
	gen    uint64
	latest *Quote
	stale  bool
	// requested is the amount of the most recent request, i.e. the form state.
	requested uint64
	inflight *inflightQuote
}

// QuoteEngine debounces quote requests per pair and keeps the latest quote.
type QuoteEngine struct {
	fetcher     QuoteFetcher
	logger      *zap.Logger
	debounce    time.Duration
	ttl         time.Duration
	slippageBps uint16
	metrics     Metrics

	mu     sync.Mutex
	pairs  map[string]*pairState
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewQuoteEngine creates an engine bound to one trade session.
func NewQuoteEngine(cfg QuoteEngineConfig) *QuoteEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var m Metrics = nopMetrics{}
	if cfg.Metrics != nil {
		m = cfg.Metrics
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QuoteEngine{
		fetcher:     cfg.Fetcher,
		logger:      logger.Named("quote_engine"),
		debounce:    cfg.Debounce,
		ttl:         cfg.TTL,
		slippageBps: cfg.SlippageBps,
		metrics:     m,
		pairs:       make(map[string]*pairState),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// RequestQuote returns a quote for the request after the debounce window.
// A newer request for a different amount on the same pair supersedes this
// one (ErrSuperseded); an identical request joins the one in flight.
func (e *QuoteEngine) RequestQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	units, err := ToSmallestUnit(req.Amount, req.Pair.Input.Decimals)
	if err != nil {
		e.metrics.QuoteRequested("invalid")
		return nil, newError(KindInvalidAmount, "", err)
	}

	key := req.Pair.Key()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	ps := e.pairs[key]
	if ps == nil {
		ps = &pairState{}
		e.pairs[key] = ps
	}
	ps.requested = units

	if q := ps.latest; q.Matches(req.Pair, units) && !ps.stale && e.fresh(q) {
		e.mu.Unlock()
		e.metrics.QuoteRequested("cached")
		return q, nil
	}

	f := ps.inflight
	if f != nil && f.amount == units {
		e.mu.Unlock()
		e.metrics.QuoteRequested("joined")
		return e.wait(ctx, f)
	}
	if f != nil {
		f.cancel()
	}

	ps.gen++
	fctx, cancel := context.WithCancel(e.ctx)
	f = &inflightQuote{
		gen:    ps.gen,
		amount: units,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	ps.inflight = f
	e.mu.Unlock()

	go e.run(fctx, key, f, QuoteParams{Pair: req.Pair, Amount: units, SlippageBps: e.slippageBps})
	return e.wait(ctx, f)
}

func (e *QuoteEngine) wait(ctx context.Context, f *inflightQuote) (*Quote, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.quote, f.err
	}
}

func (e *QuoteEngine) run(ctx context.Context, key string, f *inflightQuote, params QuoteParams) {
	defer f.cancel()

	timer := time.NewTimer(e.debounce)
	select {
	case <-ctx.Done():
		timer.Stop()
		e.settle(key, f, nil, ctx.Err())
		return
	case <-timer.C:
	}

	q, err := e.fetcher.FetchQuote(ctx, params)
	e.settle(key, f, q, err)
}

// settle publishes the outcome unless the request was superseded or the
// engine closed meanwhile, in which case the result is dropped.
func (e *QuoteEngine) settle(key string, f *inflightQuote, q *Quote, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer close(f.done)

	ps := e.pairs[key]
	switch {
	case e.closed:
		f.err = ErrClosed
		return
	case ps == nil || ps.gen != f.gen:
		f.err = ErrSuperseded
		e.metrics.QuoteRequested("superseded")
		e.logger.Debug("Dropping superseded quote result", zap.String("pair", key), zap.Uint64("amount", f.amount))
		return
	}
	ps.inflight = nil

	if err == nil {
		err = validateQuote(q)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			f.err = ErrSuperseded
			return
		}
		ps.stale = ps.latest != nil
		f.err = newError(KindQuoteUnavailable, "", err)
		e.metrics.QuoteRequested("unavailable")
		e.logger.Warn("Quote unavailable",
			zap.String("pair", key),
			zap.Uint64("amount", f.amount),
			zap.Bool("last_known_retained", ps.latest != nil),
			zap.Error(err))
		return
	}

	if q.InputAmount == 0 {
		q.InputAmount = f.amount
	}
	if q.FetchedAt.IsZero() {
		q.FetchedAt = time.Now()
	}
	ps.latest = q
	ps.stale = false
	f.quote = q
	e.metrics.QuoteRequested("ok")
	e.logger.Debug("Quote updated",
		zap.String("pair", key),
		zap.Uint64("in", q.InputAmount),
		zap.Uint64("out", q.OutputAmount),
		zap.Int("hops", q.RouteHops))
}

func validateQuote(q *Quote) error {
	if q == nil {
		return errors.New("empty quote response")
	}
	if q.PriceImpact.IsNegative() {
		return errors.New("negative price impact in quote response")
	}
	return nil
}

func (e *QuoteEngine) fresh(q *Quote) bool {
	return e.ttl <= 0 || time.Since(q.FetchedAt) < e.ttl
}

// Latest returns the last successful quote for the pair and whether it is
// stale: a later refresh failed, or the most recent request asked for a
// different amount than the quote was made for.
func (e *QuoteEngine) Latest(pair Pair) (*Quote, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ps := e.pairs[pair.Key()]
	if ps == nil || ps.latest == nil {
		return nil, false
	}
	return ps.latest, ps.stale || !ps.latest.Matches(pair, ps.requested)
}

// Reset cancels any pending request for the pair, e.g. on asset switch.
func (e *QuoteEngine) Reset(pair Pair) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ps := e.pairs[pair.Key()]; ps != nil {
		ps.gen++
		if ps.inflight != nil {
			ps.inflight.cancel()
			ps.inflight = nil
		}
	}
}

// Close cancels all timers and in-flight requests. Results arriving after
// Close are discarded.
func (e *QuoteEngine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()
}
