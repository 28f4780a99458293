// internal/swap/balance.go
package swap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// BalanceSnapshot is the last observed balance of the connected account.
type BalanceSnapshot struct {
	NativeBalance decimal.Decimal
	// TokenBalance is only meaningful when TokenMint is set.
	TokenBalance decimal.Decimal
	TokenMint    string
	AsOf         time.Time
}

// BalanceSource reads on-chain balances in smallest units.
type BalanceSource interface {
	NativeBalance(ctx context.Context, owner string) (uint64, error)
	TokenBalance(ctx context.Context, owner string, asset Asset) (uint64, error)
}

// BalanceTrackerConfig configures a BalanceTracker.
type BalanceTrackerConfig struct {
	Source   BalanceSource
	Logger   *zap.Logger
	Interval time.Duration
	// Limiter caps RPC calls across both assets; nil disables limiting.
	Limiter  *rate.Limiter
	Metrics  Metrics
	OnUpdate func(BalanceSnapshot)
}

// BalanceTracker polls balances while a trade session is open.
type BalanceTracker struct {
	source   BalanceSource
	logger   *zap.Logger
	interval time.Duration
	limiter  *rate.Limiter
	metrics  Metrics
	onUpdate func(BalanceSnapshot)

	nativeBusy atomic.Bool
	tokenBusy  atomic.Bool

	mu       sync.RWMutex
	snapshot *BalanceSnapshot
	// nativeDone закрывается, когда тик с нативным запросом завершён.
	nativeDone chan struct{}
	owner    string
	input    Asset
	epoch    uint64
	cancel   context.CancelFunc
}

// NewBalanceTracker creates a stopped tracker.
func NewBalanceTracker(cfg BalanceTrackerConfig) *BalanceTracker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var m Metrics = nopMetrics{}
	if cfg.Metrics != nil {
		m = cfg.Metrics
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &BalanceTracker{
		source:   cfg.Source,
		logger:   logger.Named("balance_tracker"),
		interval: interval,
		limiter:  cfg.Limiter,
		metrics:  m,
		onUpdate: cfg.OnUpdate,
	}
}

// Start begins polling for owner with the given input asset. Calling Start
// again restarts polling for the new owner.
func (t *BalanceTracker) Start(ctx context.Context, owner string, input Asset) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.epoch++
	epoch := t.epoch
	t.owner = owner
	t.input = input
	t.snapshot = nil
	pollCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	t.logger.Debug("Balance polling started",
		zap.String("owner", owner),
		zap.String("input", input.String()),
		zap.Duration("interval", t.interval))

	go t.loop(pollCtx, epoch)
}

func (t *BalanceTracker) loop(ctx context.Context, epoch uint64) {
	go t.tick(ctx, epoch)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go t.tick(ctx, epoch)
		}
	}
}

// SetInputAsset switches the tracked token (trade direction change) and
// refreshes immediately. The previous token balance is dropped.
func (t *BalanceTracker) SetInputAsset(ctx context.Context, input Asset) {
	t.mu.Lock()
	if t.cancel == nil {
		t.input = input
		t.mu.Unlock()
		return
	}
	t.input = input
	if t.snapshot != nil {
		snap := *t.snapshot
		snap.TokenBalance = decimal.Zero
		snap.TokenMint = ""
		t.snapshot = &snap
	}
	epoch := t.epoch
	t.mu.Unlock()

	go t.tick(ctx, epoch)
}

// Refresh polls once synchronously. When a native poll started by the
// ticker is already in flight, Refresh waits for it instead of skipping.
// Skipped assets keep their last value.
func (t *BalanceTracker) Refresh(ctx context.Context) {
	t.mu.RLock()
	epoch := t.epoch
	running := t.cancel != nil
	t.mu.RUnlock()
	if !running {
		return
	}
	t.tick(ctx, epoch)

	t.mu.RLock()
	done := t.nativeDone
	t.mu.RUnlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
}

func (t *BalanceTracker) tick(ctx context.Context, epoch uint64) {
	t.mu.RLock()
	owner, input := t.owner, t.input
	t.mu.RUnlock()

	var (
		g         errgroup.Group
		native    uint64
		token     uint64
		gotNative bool
		gotToken  bool
	)

	if t.acquire(&t.nativeBusy, "native") {
		done := make(chan struct{})
		t.mu.Lock()
		t.nativeDone = done
		t.mu.Unlock()
		defer close(done)

		g.Go(func() error {
			defer t.nativeBusy.Store(false)
			v, err := t.source.NativeBalance(ctx, owner)
			if err != nil {
				t.metrics.BalancePolled("native", "error")
				t.logger.Warn("Native balance poll failed", zap.String("owner", owner), zap.Error(err))
				return nil
			}
			native, gotNative = v, true
			t.metrics.BalancePolled("native", "ok")
			return nil
		})
	}

	if !input.IsNative() && input.Mint != "" && t.acquire(&t.tokenBusy, "token") {
		g.Go(func() error {
			defer t.tokenBusy.Store(false)
			v, err := t.source.TokenBalance(ctx, owner, input)
			if err != nil {
				t.metrics.BalancePolled("token", "error")
				t.logger.Warn("Token balance poll failed",
					zap.String("owner", owner),
					zap.String("mint", input.Mint),
					zap.Error(err))
				return nil
			}
			token, gotToken = v, true
			t.metrics.BalancePolled("token", "ok")
			return nil
		})
	}

	_ = g.Wait()
	if !gotNative && !gotToken {
		return
	}

	t.mu.Lock()
	if t.epoch != epoch || ctx.Err() != nil {
		t.mu.Unlock()
		return
	}
	if t.snapshot == nil && !gotNative {
		// без нативного баланса снимок был бы ложным нулём
		t.mu.Unlock()
		return
	}
	snap := BalanceSnapshot{}
	if t.snapshot != nil {
		snap = *t.snapshot
	}
	if gotNative {
		snap.NativeBalance = FromSmallestUnit(native, NativeDecimals)
	}
	if gotToken && t.input.Mint == input.Mint {
		snap.TokenBalance = FromSmallestUnit(token, input.Decimals)
		snap.TokenMint = input.Mint
	}
	snap.AsOf = time.Now()
	t.snapshot = &snap
	t.mu.Unlock()

	if t.onUpdate != nil {
		t.onUpdate(snap)
	}
}

// acquire marks an asset busy unless a request is already in flight or the
// rate limiter refuses; in both cases the poll is skipped, not queued.
func (t *BalanceTracker) acquire(busy *atomic.Bool, asset string) bool {
	if !busy.CompareAndSwap(false, true) {
		t.metrics.BalancePolled(asset, "skipped_busy")
		return false
	}
	if t.limiter != nil && !t.limiter.Allow() {
		busy.Store(false)
		t.metrics.BalancePolled(asset, "skipped_rate_limited")
		return false
	}
	return true
}

// Snapshot returns the current balances, or false until the native balance
// of the current epoch is known.
func (t *BalanceTracker) Snapshot() (BalanceSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.snapshot == nil {
		return BalanceSnapshot{}, false
	}
	return *t.snapshot, true
}

// Stop halts polling and clears cached balances. In-flight results are
// discarded on arrival.
func (t *BalanceTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.epoch++
	t.snapshot = nil
	t.logger.Debug("Balance polling stopped")
}
