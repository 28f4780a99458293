// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/memeswap/internal/config"
	"github.com/rovshanmuradov/memeswap/internal/events"
	"github.com/rovshanmuradov/memeswap/internal/price"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Deps are the external services a session drives.
type Deps struct {
	Quotes     swap.QuoteFetcher
	Builder    swap.TxBuilder
	FeeBuilder swap.FeeTxBuilder
	Prices     swap.PriceSource
	Balances   swap.BalanceSource
	Network    swap.Network
	Signer     swap.Signer

	Reconciler swap.Reconciler
	Metrics    swap.Metrics
	// Bus is optional; a private bus is created and shut down with the session when nil.
	Bus    *events.Bus
	Logger *zap.Logger
}

// Options are the tunables of one session.
type Options struct {
	QuoteDebounce time.Duration
	QuoteTTL      time.Duration
	SlippageBps   uint16
	PriceTTL      time.Duration

	BalancePoll  time.Duration
	BalanceRate  float64
	BalanceBurst int

	FeeRate        decimal.Decimal
	FeeDestination string
	MinFeeLamports uint64
	GasReserve     decimal.Decimal
	MinFeeReserve  decimal.Decimal

	ConfirmTimeout  time.Duration
	SigningTimeout  time.Duration
	SigningReminder time.Duration
}

// OptionsFromConfig maps validated configuration to session options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		QuoteDebounce:   cfg.QuoteDebounceDuration(),
		QuoteTTL:        cfg.QuoteTTLDuration(),
		SlippageBps:     cfg.SlippageBps,
		PriceTTL:        cfg.PriceTTLDuration(),
		BalancePoll:     cfg.BalancePollDuration(),
		BalanceRate:     cfg.BalanceRate,
		BalanceBurst:    cfg.BalanceBurst,
		FeeRate:         cfg.FeeRateDecimal(),
		FeeDestination:  cfg.FeeDestination,
		MinFeeLamports:  cfg.MinFeeLamports,
		GasReserve:      cfg.GasReserveSOL(),
		MinFeeReserve:   cfg.MinFeeReserveSOL(),
		ConfirmTimeout:  cfg.ConfirmTimeoutDuration(),
		SigningTimeout:  cfg.SigningTimeoutDuration(),
		SigningReminder: cfg.SigningReminderDuration(),
	}
}

// Session owns the quote engine, balance tracker and orchestrator of one
// open trade screen. Close tears all of them down.
type Session struct {
	logger  *zap.Logger
	bus     *events.Bus
	ownsBus bool
	owner   string

	quotes  *swap.QuoteEngine
	tracker *swap.BalanceTracker
	orch    *swap.Orchestrator
	prices  *price.Cache

	mu     sync.RWMutex
	pair   swap.Pair
	closed bool
}

// Open builds the session components and starts balance polling for the
// signer's account.
func Open(ctx context.Context, deps Deps, opts Options, pair swap.Pair) (*Session, error) {
	if deps.Quotes == nil || deps.Balances == nil || deps.Signer == nil {
		return nil, errors.New("session: quotes, balances and signer are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("session")

	s := &Session{
		logger: logger,
		bus:    deps.Bus,
		owner:  deps.Signer.PublicKey(),
		pair:   pair,
	}
	if s.bus == nil {
		s.bus = events.NewBus(logger, 256)
		s.ownsBus = true
	}

	s.quotes = swap.NewQuoteEngine(swap.QuoteEngineConfig{
		Fetcher:     deps.Quotes,
		Logger:      logger,
		Debounce:    opts.QuoteDebounce,
		TTL:         opts.QuoteTTL,
		SlippageBps: opts.SlippageBps,
		Metrics:     deps.Metrics,
	})

	var limiter *rate.Limiter
	if opts.BalanceRate > 0 {
		burst := opts.BalanceBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.BalanceRate), burst)
	}
	s.tracker = swap.NewBalanceTracker(swap.BalanceTrackerConfig{
		Source:   deps.Balances,
		Logger:   logger,
		Interval: opts.BalancePoll,
		Limiter:  limiter,
		Metrics:  deps.Metrics,
		OnUpdate: func(snap swap.BalanceSnapshot) {
			s.publish(events.NewBalanceUpdated(snap))
		},
	})

	var prices swap.PriceSource
	if deps.Prices != nil {
		s.prices = price.NewCache(deps.Prices, opts.PriceTTL, logger)
		prices = s.prices
	}

	feeRate := opts.FeeRate
	if feeRate.IsZero() {
		feeRate = swap.DefaultFeeRate
	}
	orch, err := swap.NewOrchestrator(swap.OrchestratorConfig{
		Quotes:          s.quotes,
		Balances:        s.tracker,
		Prices:          prices,
		Builder:         deps.Builder,
		FeeBuilder:      deps.FeeBuilder,
		Signer:          deps.Signer,
		Network:         deps.Network,
		Fees:            swap.NewFeeCalculator(feeRate),
		FeeDestination:  opts.FeeDestination,
		MinFeeLamports:  opts.MinFeeLamports,
		GasReserve:      opts.GasReserve,
		MinFeeReserve:   opts.MinFeeReserve,
		ConfirmTimeout:  opts.ConfirmTimeout,
		SigningTimeout:  opts.SigningTimeout,
		SigningReminder: opts.SigningReminder,
		Logger:          logger,
		Metrics:         deps.Metrics,
		Reconciler:      deps.Reconciler,
		Observer:        events.NewObserver(s.bus, logger),
	})
	if err != nil {
		s.quotes.Close()
		if s.ownsBus {
			_ = s.bus.Shutdown(ctx)
		}
		return nil, fmt.Errorf("session: %w", err)
	}
	s.orch = orch

	s.tracker.Start(ctx, s.owner, pair.Input)
	logger.Info("Trade session opened",
		zap.String("owner", s.owner),
		zap.String("pair", pair.Input.String()+"->"+pair.Output.String()))
	return s, nil
}

// Quote requests a debounced quote for amount on the current pair and
// publishes the outcome. Superseded requests publish nothing.
func (s *Session) Quote(ctx context.Context, amount decimal.Decimal) (*swap.Quote, error) {
	pair, err := s.current()
	if err != nil {
		return nil, err
	}

	q, err := s.quotes.RequestQuote(ctx, swap.QuoteRequest{Pair: pair, Amount: amount})
	switch {
	case errors.Is(err, swap.ErrSuperseded):
	case err != nil:
		latest, _ := s.quotes.Latest(pair)
		s.publish(events.NewQuoteUpdated(latest, latest != nil, err))
	default:
		s.publish(events.NewQuoteUpdated(q, false, nil))
	}
	return q, err
}

// LatestQuote returns the last quote for the current pair and its stale flag.
func (s *Session) LatestQuote() (*swap.Quote, bool) {
	s.mu.RLock()
	pair := s.pair
	s.mu.RUnlock()
	return s.quotes.Latest(pair)
}

// SwitchDirection reverses the pair, drops pending quotes for the old
// direction and refreshes balances for the new input asset.
func (s *Session) SwitchDirection(ctx context.Context) (swap.Pair, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return swap.Pair{}, ErrClosed
	}
	old := s.pair
	s.pair = old.Reverse()
	pair := s.pair
	s.mu.Unlock()

	s.quotes.Reset(old)
	s.tracker.SetInputAsset(ctx, pair.Input)
	s.logger.Debug("Direction switched", zap.String("input", pair.Input.String()))
	return pair, nil
}

// Trade runs one swap attempt for amount on the current pair.
func (s *Session) Trade(ctx context.Context, amount decimal.Decimal) (*swap.Result, error) {
	pair, err := s.current()
	if err != nil {
		return nil, err
	}
	res, err := s.orch.Start(ctx, swap.TradeRequest{Pair: pair, Amount: amount})
	if !errors.Is(err, swap.ErrAttemptInProgress) {
		s.publish(events.NewAttemptFinished(res, err))
	}
	return res, err
}

// Status returns the orchestrator state.
func (s *Session) Status() swap.Status { return s.orch.Status() }

// Records returns the ledger of the current or last attempt.
func (s *Session) Records() []swap.TxRecord { return s.orch.Ledger().All() }

// Reset returns a finished attempt to Idle.
func (s *Session) Reset() bool { return s.orch.Reset() }

// Balance returns the latest balance snapshot.
func (s *Session) Balance() (swap.BalanceSnapshot, bool) { return s.tracker.Snapshot() }

// Pair returns the current trade direction.
func (s *Session) Pair() swap.Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

// Owner returns the connected account address.
func (s *Session) Owner() string { return s.owner }

// Bus returns the event bus the session publishes on.
func (s *Session) Bus() *events.Bus { return s.bus }

// Close stops polling, cancels pending quotes and, when owned, shuts the
// bus down. It does not wait for a running attempt; on-chain effects are
// never cancelled.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.tracker.Stop()
	s.quotes.Close()
	if s.prices != nil {
		s.prices.Invalidate()
	}
	s.logger.Info("Trade session closed")
	if s.ownsBus {
		return s.bus.Shutdown(ctx)
	}
	return nil
}

func (s *Session) current() (swap.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return swap.Pair{}, ErrClosed
	}
	return s.pair, nil
}

func (s *Session) publish(e events.Event) {
	if err := s.bus.Publish(e); err != nil {
		s.logger.Debug("Event dropped", zap.String("event_type", string(e.Type())), zap.Error(err))
	}
}
