// internal/swap/orchestrator.go
package swap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TxBuilder turns an accepted quote into an unsigned swap transaction.
type TxBuilder interface {
	BuildSwap(ctx context.Context, quote *Quote, payer string) ([]byte, error)
}

// FeeTxBuilder builds the native transfer that pays the platform fee.
type FeeTxBuilder interface {
	BuildFeeTransfer(ctx context.Context, payer, destination string, lamports uint64) ([]byte, error)
}

// Signer is the user's wallet. SignTransaction blocks until the user
// approves or rejects.
type Signer interface {
	PublicKey() string
	SignTransaction(ctx context.Context, unsigned []byte) ([]byte, error)
}

// ConfirmStatus is the outcome of waiting on a submitted signature.
type ConfirmStatus int

const (
	ConfirmTimedOut ConfirmStatus = iota
	ConfirmConfirmed
	ConfirmFailed
)

func (c ConfirmStatus) String() string {
	switch c {
	case ConfirmConfirmed:
		return "confirmed"
	case ConfirmFailed:
		return "failed"
	default:
		return "timeout"
	}
}

// Network submits signed transactions and waits for their confirmation.
type Network interface {
	Submit(ctx context.Context, signed []byte) (string, error)
	Confirm(ctx context.Context, signature string, timeout time.Duration) (ConfirmStatus, error)
}

// PriceSource returns USD prices keyed by mint.
type PriceSource interface {
	USDPrices(ctx context.Context, mints ...string) (map[string]decimal.Decimal, error)
}

// QuoteProvider is satisfied by *QuoteEngine.
type QuoteProvider interface {
	RequestQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// BalanceProvider is satisfied by *BalanceTracker.
type BalanceProvider interface {
	Snapshot() (BalanceSnapshot, bool)
}

// balanceRefresher is implemented by providers that can poll on demand.
type balanceRefresher interface {
	Refresh(ctx context.Context)
}

// FeeOutcome is handed to the Reconciler whenever a fee was not collected.
type FeeOutcome struct {
	AttemptID   string
	Payer       string
	Destination string
	Lamports    uint64
	Signature   string
	Status      string
	Reason      string
	At          time.Time
}

// Reconciler persists uncollected fees for later review.
type Reconciler interface {
	RecordFee(FeeOutcome) error
}

// Observer receives orchestrator notifications. Calls are synchronous.
type Observer interface {
	StateChanged(attemptID string, status Status)
	RecordChanged(attemptID string, h Handle, rec TxRecord)
	SigningPending(attemptID string, kind TxKind, waited time.Duration)
}

// TradeRequest is the confirmed form state.
type TradeRequest struct {
	Pair   Pair
	Amount decimal.Decimal
}

// Result summarizes a finished attempt.
type Result struct {
	AttemptID string
	Status    Status
	Quote     *Quote
	Fee       FeeBreakdown
	SwapSig   string
	FeeSig    string
	// Degraded lists non-fatal problems, e.g. ConfirmationTimeout.
	Degraded []ErrorKind
	Records  []TxRecord
}

// HasDegraded reports whether kind was noted on the result.
func (r *Result) HasDegraded(kind ErrorKind) bool {
	for _, k := range r.Degraded {
		if k == kind {
			return true
		}
	}
	return false
}

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Quotes     QuoteProvider
	Balances   BalanceProvider
	Prices     PriceSource
	Builder    TxBuilder
	FeeBuilder FeeTxBuilder
	Signer     Signer
	Network    Network
	Fees       *FeeCalculator

	FeeDestination string
	MinFeeLamports uint64
	GasReserve     decimal.Decimal
	MinFeeReserve  decimal.Decimal

	ConfirmTimeout  time.Duration
	SigningTimeout  time.Duration
	SigningReminder time.Duration

	Logger     *zap.Logger
	Metrics    Metrics
	Reconciler Reconciler
	Observer   Observer
}

// Orchestrator drives one trade attempt at a time through
// Preparing -> Signing -> Submitting -> Confirming -> FeeProcessing.
type Orchestrator struct {
	cfg       OrchestratorConfig
	logger    *zap.Logger
	metrics   Metrics
	preflight BalancePreflight

	mu        sync.Mutex
	status    Status
	attemptID string
	ledger    *Ledger
	entered   time.Time
}

// NewOrchestrator validates the required collaborators.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	switch {
	case cfg.Quotes == nil:
		return nil, errors.New("orchestrator: quote provider is required")
	case cfg.Balances == nil:
		return nil, errors.New("orchestrator: balance provider is required")
	case cfg.Builder == nil:
		return nil, errors.New("orchestrator: tx builder is required")
	case cfg.Signer == nil:
		return nil, errors.New("orchestrator: signer is required")
	case cfg.Network == nil:
		return nil, errors.New("orchestrator: network is required")
	}
	if cfg.Fees == nil {
		cfg.Fees = NewFeeCalculator(DefaultFeeRate)
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var m Metrics = nopMetrics{}
	if cfg.Metrics != nil {
		m = cfg.Metrics
	}
	return &Orchestrator{
		cfg:     cfg,
		logger:  logger.Named("orchestrator"),
		metrics: m,
		status:  Status{State: StateIdle},
		ledger:  NewLedger(nil),
	}, nil
}

// Status returns the current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Ledger returns the ledger of the current or last attempt.
func (o *Orchestrator) Ledger() *Ledger {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ledger
}

// Reset discards a finished attempt and returns to Idle. It is a no-op
// while an attempt is running.
func (o *Orchestrator) Reset() bool {
	o.mu.Lock()
	if !o.status.State.Startable() {
		o.mu.Unlock()
		return false
	}
	o.status = Status{State: StateIdle}
	o.ledger = NewLedger(nil)
	id := o.attemptID
	o.attemptID = ""
	o.mu.Unlock()
	o.notifyState(id, Status{State: StateIdle})
	return true
}

type attempt struct {
	id     string
	req    TradeRequest
	ledger *Ledger
	res    *Result
}

// Start runs one trade attempt to a terminal state. The returned error is
// the fatal *Error when the attempt ends in StateError; the Result is
// populated in both cases.
func (o *Orchestrator) Start(ctx context.Context, req TradeRequest) (res *Result, err error) {
	o.mu.Lock()
	if !o.status.State.Startable() {
		o.mu.Unlock()
		return nil, ErrAttemptInProgress
	}
	a := &attempt{id: uuid.New().String(), req: req}
	a.ledger = NewLedger(func(h Handle, rec TxRecord) {
		o.notifyRecord(a.id, h, rec)
	})
	a.res = &Result{AttemptID: a.id}
	o.attemptID = a.id
	o.ledger = a.ledger
	o.status = Status{State: StatePreparing}
	o.entered = time.Now()
	o.mu.Unlock()

	logger := o.logger.With(
		zap.String("attempt_id", a.id),
		zap.String("pair", req.Pair.Key()),
		zap.String("amount", req.Amount.String()),
	)
	logger.Info("Trade attempt started")
	o.notifyState(a.id, Status{State: StatePreparing})

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Trade attempt panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = o.fail(a, newError(KindUnknown, fmt.Sprint(r), nil))
		}
		a.res.Records = a.ledger.All()
		a.res.Status = o.Status()
		res = a.res
	}()

	if err := o.run(ctx, a, logger); err != nil {
		return nil, o.fail(a, err)
	}
	o.transition(a, StateSuccess)
	o.metrics.AttemptFinished(StateSuccess, "")
	logger.Info("Trade attempt finished",
		zap.String("swap_signature", a.res.SwapSig),
		zap.Any("degraded", a.res.Degraded))
	return nil, nil
}

func (o *Orchestrator) run(ctx context.Context, a *attempt, logger *zap.Logger) error {
	// Preparing
	quote, err := o.prepareQuote(ctx, a.req)
	if err != nil {
		return err
	}
	a.res.Quote = quote
	amount := FromSmallestUnit(quote.InputAmount, a.req.Pair.Input.Decimals)

	fee := o.computeFee(ctx, amount, a.req.Pair.Input, logger)
	a.res.Fee = fee

	snap, ok := o.cfg.Balances.Snapshot()
	if r, canRefresh := o.cfg.Balances.(balanceRefresher); !ok && canRefresh {
		logger.Debug("Balance unknown, refreshing before preflight")
		r.Refresh(ctx)
		snap, ok = o.cfg.Balances.Snapshot()
	}
	in := PreflightInput{
		Input:         a.req.Pair.Input,
		Amount:        amount,
		Fee:           fee,
		GasReserve:    o.cfg.GasReserve,
		MinFeeReserve: o.cfg.MinFeeReserve,
	}
	if ok {
		in.Balance = &snap
	}
	if err := o.preflight.Validate(in); err != nil {
		return err
	}

	payer := o.cfg.Signer.PublicKey()
	unsigned, err := o.cfg.Builder.BuildSwap(ctx, quote, payer)
	if err != nil {
		return newError(KindBuildFailed, "", err)
	}
	if len(unsigned) == 0 {
		return newError(KindBuildFailed, "aggregator returned an empty transaction", nil)
	}

	// Signing
	o.transition(a, StateSigning)
	signed, err := o.sign(ctx, a, TxKindSwap, unsigned)
	if err != nil {
		return newError(KindSigningRejected, "", err)
	}

	// Submitting
	o.transition(a, StateSubmitting)
	h := a.ledger.Append(TxRecord{
		Kind:              TxKindSwap,
		Status:            TxPending,
		AmountDescription: describeSwap(quote),
	})
	sig, err := o.cfg.Network.Submit(ctx, signed)
	if err == nil && sig == "" {
		err = errors.New("network returned an empty signature")
	}
	if err != nil {
		o.mustUpdate(a, h, RecordUpdate{Status: statusPtr(TxFailed), Error: strPtr(err.Error())})
		return newError(KindSubmissionFailed, "", err)
	}
	o.mustUpdate(a, h, RecordUpdate{Signature: strPtr(sig), Status: statusPtr(TxSubmitted)})
	a.res.SwapSig = sig

	// Confirming
	o.transition(a, StateConfirming)
	switch o.confirm(ctx, sig, logger) {
	case ConfirmConfirmed:
		o.mustUpdate(a, h, RecordUpdate{Status: statusPtr(TxConfirmed)})
	case ConfirmFailed:
		msg := "transaction failed on-chain"
		o.mustUpdate(a, h, RecordUpdate{Status: statusPtr(TxFailed), Error: strPtr(msg)})
		return newError(KindSubmissionFailed, msg, nil)
	default:
		logger.Warn("Swap confirmation not observed in time, leaving record submitted",
			zap.String("signature", sig))
		a.res.Degraded = append(a.res.Degraded, KindConfirmationTimeout)
	}

	// FeeProcessing
	o.transition(a, StateFeeProcessing)
	o.collectFee(ctx, a, fee, payer, logger)
	return nil
}

func (o *Orchestrator) prepareQuote(ctx context.Context, req TradeRequest) (*Quote, error) {
	if _, err := ToSmallestUnit(req.Amount, req.Pair.Input.Decimals); err != nil {
		return nil, newError(KindInvalidAmount, "", err)
	}
	q, err := o.cfg.Quotes.RequestQuote(ctx, QuoteRequest{Pair: req.Pair, Amount: req.Amount})
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			return nil, newError(KindQuoteUnavailable, "quote was replaced by a newer request", err)
		}
		var se *Error
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, newError(KindQuoteUnavailable, "", err)
	}
	if q == nil {
		return nil, newError(KindQuoteUnavailable, "no quote", nil)
	}
	return q, nil
}

func (o *Orchestrator) computeFee(ctx context.Context, amount decimal.Decimal, input Asset, logger *zap.Logger) FeeBreakdown {
	var nativePrice, inputPrice decimal.Decimal
	if !input.IsNative() {
		if o.cfg.Prices == nil {
			logger.Warn("No price source configured, fee cannot be valued")
		} else {
			prices, err := o.cfg.Prices.USDPrices(ctx, NativeMint, input.Mint)
			if err != nil {
				logger.Warn("Price lookup failed, fee cannot be valued", zap.Error(err))
			} else {
				nativePrice = prices[NativeMint]
				inputPrice = prices[input.Mint]
			}
		}
	}
	fee := o.cfg.Fees.ComputeFee(amount, input, nativePrice, inputPrice)
	if fee.Unreliable {
		logger.Warn("Fee marked unreliable, transfer will be skipped",
			zap.String("native_price", nativePrice.String()),
			zap.String("input_price", inputPrice.String()))
	}
	return fee
}

// sign waits for the wallet while emitting periodic "still waiting" notices.
func (o *Orchestrator) sign(ctx context.Context, a *attempt, kind TxKind, unsigned []byte) ([]byte, error) {
	if o.cfg.SigningTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.SigningTimeout)
		defer cancel()
	}

	done := make(chan struct{})
	defer close(done)
	if o.cfg.SigningReminder > 0 && o.cfg.Observer != nil {
		started := time.Now()
		go func() {
			ticker := time.NewTicker(o.cfg.SigningReminder)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					o.cfg.Observer.SigningPending(a.id, kind, time.Since(started))
				}
			}
		}()
	}

	signed, err := o.cfg.Signer.SignTransaction(ctx, unsigned)
	if err != nil {
		return nil, err
	}
	if len(signed) == 0 {
		return nil, errors.New("wallet returned an empty transaction")
	}
	return signed, nil
}

// confirm never fails the attempt on its own: RPC errors and deadlines are
// reported as ConfirmTimedOut.
func (o *Orchestrator) confirm(ctx context.Context, sig string, logger *zap.Logger) ConfirmStatus {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.ConfirmTimeout)
	defer cancel()
	st, err := o.cfg.Network.Confirm(cctx, sig, o.cfg.ConfirmTimeout)
	if err != nil {
		logger.Warn("Confirmation indeterminate", zap.String("signature", sig), zap.Error(err))
		return ConfirmTimedOut
	}
	return st
}

func (o *Orchestrator) collectFee(ctx context.Context, a *attempt, fee FeeBreakdown, payer string, logger *zap.Logger) {
	lamports := fee.Lamports()
	outcome := FeeOutcome{
		AttemptID:   a.id,
		Payer:       payer,
		Destination: o.cfg.FeeDestination,
		Lamports:    lamports,
	}

	switch {
	case fee.Unreliable:
		logger.Warn("Skipping fee transfer, prices unavailable")
		outcome.Status = "skipped"
		outcome.Reason = "fee unreliable"
		o.reconcile(outcome, logger)
		return
	case lamports == 0 || lamports < o.cfg.MinFeeLamports:
		logger.Debug("Fee below threshold, skipping transfer", zap.Uint64("lamports", lamports))
		return
	case o.cfg.FeeBuilder == nil || o.cfg.FeeDestination == "":
		logger.Warn("Fee collection not configured, skipping transfer", zap.Uint64("lamports", lamports))
		return
	}

	desc := fmt.Sprintf("%s SOL fee", FromSmallestUnit(lamports, NativeDecimals).String())
	feeFailed := func(h *Handle, err error) {
		msg := err.Error()
		if h == nil {
			a.ledger.Append(TxRecord{Kind: TxKindFeeTransfer, Status: TxFailed, AmountDescription: desc, Error: msg})
		} else {
			o.mustUpdate(a, *h, RecordUpdate{Status: statusPtr(TxFailed), Error: strPtr(msg)})
		}
		a.res.Degraded = append(a.res.Degraded, KindFeeTransferFailed)
		logger.Warn("Fee transfer failed", zap.Uint64("lamports", lamports), zap.Error(err))
		outcome.Status = "failed"
		outcome.Reason = msg
		o.reconcile(outcome, logger)
	}

	unsigned, err := o.cfg.FeeBuilder.BuildFeeTransfer(ctx, payer, o.cfg.FeeDestination, lamports)
	if err != nil {
		feeFailed(nil, fmt.Errorf("build fee transfer: %w", err))
		return
	}
	signed, err := o.sign(ctx, a, TxKindFeeTransfer, unsigned)
	if err != nil {
		feeFailed(nil, fmt.Errorf("sign fee transfer: %w", err))
		return
	}

	h := a.ledger.Append(TxRecord{Kind: TxKindFeeTransfer, Status: TxPending, AmountDescription: desc})
	sig, err := o.cfg.Network.Submit(ctx, signed)
	if err == nil && sig == "" {
		err = errors.New("network returned an empty signature")
	}
	if err != nil {
		feeFailed(&h, fmt.Errorf("submit fee transfer: %w", err))
		return
	}
	o.mustUpdate(a, h, RecordUpdate{Signature: strPtr(sig), Status: statusPtr(TxSubmitted)})
	a.res.FeeSig = sig
	outcome.Signature = sig

	switch o.confirm(ctx, sig, logger) {
	case ConfirmConfirmed:
		o.mustUpdate(a, h, RecordUpdate{Status: statusPtr(TxConfirmed)})
	case ConfirmFailed:
		feeFailed(&h, errors.New("fee transfer failed on-chain"))
	default:
		logger.Warn("Fee confirmation not observed in time", zap.String("signature", sig))
		a.res.Degraded = append(a.res.Degraded, KindConfirmationTimeout)
		outcome.Status = "unconfirmed"
		outcome.Reason = "confirmation timeout"
		o.reconcile(outcome, logger)
	}
}

func (o *Orchestrator) reconcile(outcome FeeOutcome, logger *zap.Logger) {
	if o.cfg.Reconciler == nil {
		return
	}
	outcome.At = time.Now()
	if err := o.cfg.Reconciler.RecordFee(outcome); err != nil {
		logger.Error("Failed to write fee reconciliation row", zap.Error(err))
	}
}

func (o *Orchestrator) mustUpdate(a *attempt, h Handle, upd RecordUpdate) {
	if err := a.ledger.Update(h, upd); err != nil {
		panic(fmt.Sprintf("ledger update: %v", err))
	}
}

func (o *Orchestrator) transition(a *attempt, next State) {
	o.mu.Lock()
	if o.attemptID != a.id {
		o.mu.Unlock()
		return
	}
	prev := o.status.State
	now := time.Now()
	o.metrics.StageObserved(prev, now.Sub(o.entered))
	o.status = Status{State: next}
	o.entered = now
	o.mu.Unlock()

	o.logger.Debug("State transition",
		zap.String("attempt_id", a.id),
		zap.Stringer("from", prev),
		zap.Stringer("to", next))
	o.notifyState(a.id, Status{State: next})
}

func (o *Orchestrator) fail(a *attempt, err error) error {
	var se *Error
	if !errors.As(err, &se) {
		se = newError(KindUnknown, "", err)
	}
	st := Status{State: StateError, Reason: se.Kind, Err: se}

	o.mu.Lock()
	if o.attemptID == a.id {
		o.metrics.StageObserved(o.status.State, time.Since(o.entered))
		o.status = st
	}
	o.mu.Unlock()

	o.metrics.AttemptFinished(StateError, se.Kind)
	o.logger.Warn("Trade attempt failed",
		zap.String("attempt_id", a.id),
		zap.String("reason", string(se.Kind)),
		zap.Error(se))
	o.notifyState(a.id, st)
	return se
}

func (o *Orchestrator) notifyState(id string, st Status) {
	if o.cfg.Observer != nil {
		o.cfg.Observer.StateChanged(id, st)
	}
}

func (o *Orchestrator) notifyRecord(id string, h Handle, rec TxRecord) {
	if o.cfg.Observer != nil {
		o.cfg.Observer.RecordChanged(id, h, rec)
	}
}

func describeSwap(q *Quote) string {
	in := FromSmallestUnit(q.InputAmount, q.Pair.Input.Decimals)
	return fmt.Sprintf("%s %s -> %s %s",
		in.String(), q.Pair.Input.String(),
		q.OutputDecimal().String(), q.Pair.Output.String())
}
