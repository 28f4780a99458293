package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/memeswap/internal/events"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

var memeToken = swap.Asset{Mint: "MemeMint11111111111111111111111111111111111", Symbol: "MEME", Decimals: 6}

type fakeFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeFetcher) FetchQuote(_ context.Context, p swap.QuoteParams) (*swap.Quote, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &swap.Quote{Pair: p.Pair, InputAmount: p.Amount, OutputAmount: 1_000_000, RouteHops: 1, FetchedAt: time.Now()}, nil
}

type fakeBuilder struct{}

func (fakeBuilder) BuildSwap(context.Context, *swap.Quote, string) ([]byte, error) {
	return []byte("swap"), nil
}

func (fakeBuilder) BuildFeeTransfer(context.Context, string, string, uint64) ([]byte, error) {
	return []byte("fee"), nil
}

type fakeSigner struct{}

func (fakeSigner) PublicKey() string { return "Owner1111111111111111111111111111111111111" }

func (fakeSigner) SignTransaction(_ context.Context, tx []byte) ([]byte, error) {
	return append([]byte("signed:"), tx...), nil
}

type fakeNetwork struct {
	submits atomic.Int32
}

func (n *fakeNetwork) Submit(context.Context, []byte) (string, error) {
	n.submits.Add(1)
	return "sig", nil
}

func (n *fakeNetwork) Confirm(context.Context, string, time.Duration) (swap.ConfirmStatus, error) {
	return swap.ConfirmConfirmed, nil
}

type fakeBalances struct {
	lamports uint64
	delay    time.Duration
}

func (b fakeBalances) NativeBalance(ctx context.Context, _ string) (uint64, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return b.lamports, nil
}

func (b fakeBalances) TokenBalance(context.Context, string, swap.Asset) (uint64, error) {
	return 42_000_000, nil
}

type fakePrices struct{}

func (fakePrices) USDPrices(_ context.Context, mints ...string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(mints))
	for _, m := range mints {
		out[m] = decimal.NewFromInt(100)
	}
	return out, nil
}

type harness struct {
	sess    *Session
	fetcher *fakeFetcher
	network *fakeNetwork
	events  chan events.Event
}

func openHarness(t *testing.T, lamports uint64) *harness {
	t.Helper()
	h := &harness{fetcher: &fakeFetcher{}, network: &fakeNetwork{}, events: make(chan events.Event, 256)}

	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, 256)
	bus.Subscribe(events.AnyEvent, events.Forward(h.events))
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })

	sess, err := Open(context.Background(), Deps{
		Quotes:     h.fetcher,
		Builder:    fakeBuilder{},
		FeeBuilder: fakeBuilder{},
		Prices:     fakePrices{},
		Balances:   fakeBalances{lamports: lamports},
		Network:    h.network,
		Signer:     fakeSigner{},
		Bus:        bus,
		Logger:     logger,
	}, Options{
		QuoteDebounce:  10 * time.Millisecond,
		QuoteTTL:       time.Minute,
		SlippageBps:    50,
		BalancePoll:    time.Hour,
		FeeRate:        decimal.RequireFromString("0.01"),
		FeeDestination: "Fee11111111111111111111111111111111111111111",
		MinFeeLamports: 1000,
		GasReserve:     decimal.RequireFromString("0.002"),
		ConfirmTimeout: time.Second,
	}, swap.Pair{Input: swap.NativeAsset(), Output: memeToken})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close(context.Background()) })

	h.sess = sess
	require.Eventually(t, func() bool {
		_, ok := sess.Balance()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	return h
}

func (h *harness) waitFor(t *testing.T, typ events.EventType) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-h.events:
			if e.Type() == typ {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
			return nil
		}
	}
}

func TestTradeSuccess(t *testing.T) {
	h := openHarness(t, 10_000_000_000)

	res, err := h.sess.Trade(context.Background(), decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, swap.StateSuccess, res.Status.State)
	assert.Equal(t, swap.StateSuccess, h.sess.Status().State)
	assert.Len(t, h.sess.Records(), 2)
	assert.EqualValues(t, 2, h.network.submits.Load())

	finished := h.waitFor(t, events.AttemptFinished).(events.AttemptFinishedEvent)
	assert.NoError(t, finished.Err)
	assert.Equal(t, res.AttemptID, finished.Result.AttemptID)
}

func TestTradeInsufficientBalance(t *testing.T) {
	h := openHarness(t, 1_000_000)

	res, err := h.sess.Trade(context.Background(), decimal.RequireFromString("1.5"))
	assert.True(t, errors.Is(err, swap.ErrInsufficientBalance))
	assert.Equal(t, swap.StateError, res.Status.State)
	assert.Zero(t, h.network.submits.Load())
}

func TestQuotePublishesAndCaches(t *testing.T) {
	h := openHarness(t, 10_000_000_000)

	q, err := h.sess.Quote(context.Background(), decimal.RequireFromString("2"))
	require.NoError(t, err)
	assert.EqualValues(t, 2_000_000_000, q.InputAmount)

	ev := h.waitFor(t, events.QuoteUpdated).(events.QuoteUpdatedEvent)
	assert.Same(t, q, ev.Quote)
	assert.False(t, ev.Stale)

	_, err = h.sess.Quote(context.Background(), decimal.RequireFromString("2"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.fetcher.calls.Load())

	latest, stale := h.sess.LatestQuote()
	assert.Same(t, q, latest)
	assert.False(t, stale)
}

func TestQuoteFailureKeepsStaleQuote(t *testing.T) {
	h := openHarness(t, 10_000_000_000)
	_, err := h.sess.Quote(context.Background(), decimal.RequireFromString("1"))
	require.NoError(t, err)
	h.waitFor(t, events.QuoteUpdated)

	h.fetcher.err = errors.New("route not found")
	_, err = h.sess.Quote(context.Background(), decimal.RequireFromString("3"))
	assert.True(t, errors.Is(err, swap.ErrQuoteUnavailable))

	ev := h.waitFor(t, events.QuoteUpdated).(events.QuoteUpdatedEvent)
	assert.Error(t, ev.Err)
	assert.True(t, ev.Stale)
	require.NotNil(t, ev.Quote)
	assert.EqualValues(t, 1_000_000_000, ev.Quote.InputAmount)
}

func TestSwitchDirection(t *testing.T) {
	h := openHarness(t, 10_000_000_000)

	pair, err := h.sess.SwitchDirection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, memeToken, pair.Input)
	assert.Equal(t, pair, h.sess.Pair())

	require.Eventually(t, func() bool {
		snap, ok := h.sess.Balance()
		return ok && snap.TokenMint == memeToken.Mint
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseIsFinal(t *testing.T) {
	h := openHarness(t, 10_000_000_000)
	require.NoError(t, h.sess.Close(context.Background()))
	require.NoError(t, h.sess.Close(context.Background()))

	_, ok := h.sess.Balance()
	assert.False(t, ok)

	_, err := h.sess.Trade(context.Background(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.sess.Quote(context.Background(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.sess.SwitchDirection(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenRequiresDeps(t *testing.T) {
	_, err := Open(context.Background(), Deps{}, Options{}, swap.Pair{})
	assert.Error(t, err)

	_, err = Open(context.Background(), Deps{
		Quotes:   &fakeFetcher{},
		Balances: fakeBalances{},
		Signer:   fakeSigner{},
	}, Options{}, swap.Pair{Input: swap.NativeAsset(), Output: memeToken})
	assert.Error(t, err)
}

func TestTradeRightAfterOpenWaitsForBalance(t *testing.T) {
	sess, err := Open(context.Background(), Deps{
		Quotes:   &fakeFetcher{},
		Builder:  fakeBuilder{},
		Balances: fakeBalances{lamports: 10_000_000_000, delay: 600 * time.Millisecond},
		Network:  &fakeNetwork{},
		Signer:   fakeSigner{},
		Logger:   zaptest.NewLogger(t),
	}, Options{
		QuoteDebounce:  400 * time.Millisecond,
		QuoteTTL:       time.Minute,
		BalancePoll:    time.Hour,
		GasReserve:     decimal.RequireFromString("0.002"),
		ConfirmTimeout: time.Second,
	}, swap.Pair{Input: swap.NativeAsset(), Output: memeToken})
	require.NoError(t, err)
	defer sess.Close(context.Background())

	res, err := sess.Trade(context.Background(), decimal.RequireFromString("1"))
	require.NoError(t, err)
	assert.Equal(t, swap.StateSuccess, res.Status.State)
}
