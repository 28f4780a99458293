// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/aggregator"
	"github.com/rovshanmuradov/memeswap/internal/blockchain/solbc"
	"github.com/rovshanmuradov/memeswap/internal/config"
	"github.com/rovshanmuradov/memeswap/internal/license"
	"github.com/rovshanmuradov/memeswap/internal/metrics"
	"github.com/rovshanmuradov/memeswap/internal/reconcile"
	"github.com/rovshanmuradov/memeswap/internal/session"
	"github.com/rovshanmuradov/memeswap/internal/swap"
	"github.com/rovshanmuradov/memeswap/internal/wallet"
)

// Runner wires configuration into concrete clients shared by the commands.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger

	wallet     *wallet.Wallet
	client     *solbc.Client
	network    *solbc.Network
	aggregator *aggregator.Client
	metrics    *metrics.Collector
	reconciler *reconcile.CSVWriter
	shutdown   *session.ShutdownHandler
}

// NewRunner загружает кошельки и создает клиентов RPC и агрегатора.
func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	wallets, err := wallet.LoadWallets(cfg.WalletsFile)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}
	w, err := wallet.Select(wallets, cfg.Wallet)
	if err != nil {
		return nil, err
	}

	client := solbc.NewClient(cfg.RPCList[0], cfg.RPCRate, logger)
	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		wallet:  w,
		client:  client,
		network: solbc.NewNetwork(client, cfg.SubmitRetryDuration(), logger),
		aggregator: aggregator.NewClient(aggregator.Config{
			BaseURL:     cfg.AggregatorURL,
			PriceURL:    cfg.PriceURL,
			Timeout:     cfg.HTTPTimeoutDuration(),
			RetryWindow: cfg.RetryWindowDuration(),
		}, logger),
		metrics:  metrics.NewCollector(),
		shutdown: session.NewShutdownHandler(logger, 10*time.Second),
	}

	if cfg.ReconcileFile != "" {
		rw, err := reconcile.NewCSVWriter(cfg.ReconcileFile, logger)
		if err != nil {
			return nil, fmt.Errorf("open reconciliation file: %w", err)
		}
		r.reconciler = rw
		r.shutdown.Add("reconcile", rw)
	}

	logger.Info("Runner ready",
		zap.String("wallet", w.PublicKey()),
		zap.String("rpc", cfg.RPCList[0]),
		zap.String("aggregator", cfg.AggregatorURL))
	return r, nil
}

// ValidateLicense runs the startup license gate.
func (r *Runner) ValidateLicense(ctx context.Context) error {
	return license.Check(ctx, license.Settings{
		Key:          r.cfg.License,
		AccountID:    r.cfg.KeygenAccountID,
		ProductToken: r.cfg.KeygenProductToken,
		ProductID:    r.cfg.KeygenProductID,
	}, r.logger)
}

// Wallet returns the selected wallet.
func (r *Runner) Wallet() *wallet.Wallet { return r.wallet }

// Aggregator returns the aggregator client.
func (r *Runner) Aggregator() *aggregator.Client { return r.aggregator }

// Balances returns the on-chain balance source.
func (r *Runner) Balances() *solbc.Balances { return solbc.NewBalances(r.client) }

// Metrics returns the prometheus collector.
func (r *Runner) Metrics() *metrics.Collector { return r.metrics }

// Deps assembles session dependencies; approver gates every signature.
func (r *Runner) Deps(approver wallet.Approver) session.Deps {
	deps := session.Deps{
		Quotes:     r.aggregator,
		Builder:    r.aggregator,
		FeeBuilder: solbc.NewFeeTransfers(r.client),
		Prices:     r.aggregator,
		Balances:   solbc.NewBalances(r.client),
		Network:    r.network,
		Signer:     wallet.NewApprovalSigner(r.wallet, approver),
		Metrics:    r.metrics,
		Logger:     r.logger,
	}
	if r.reconciler != nil {
		deps.Reconciler = r.reconciler
	}
	return deps
}

// Options returns session options from configuration.
func (r *Runner) Options() session.Options {
	return session.OptionsFromConfig(r.cfg)
}

// ResolveAsset builds an Asset for mint. The native mint (or "SOL")
// resolves without RPC; token decimals are read from the mint account.
func (r *Runner) ResolveAsset(ctx context.Context, mint, symbol string) (swap.Asset, error) {
	if mint == "" || mint == "SOL" || mint == swap.NativeMint {
		return swap.NativeAsset(), nil
	}
	decimals, err := r.client.MintDecimals(ctx, mint)
	if err != nil {
		return swap.Asset{}, fmt.Errorf("resolve token %s: %w", mint, err)
	}
	return swap.Asset{Mint: mint, Symbol: symbol, Decimals: decimals}, nil
}

// OnShutdown registers a closer released by Close in reverse order.
func (r *Runner) OnShutdown(name string, fn func() error) {
	r.shutdown.AddFunc(name, fn)
}

// ServeMetrics exposes /metrics on the configured address until ctx ends.
// It is a no-op when metrics_addr is empty.
func (r *Runner) ServeMetrics(ctx context.Context) {
	if r.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	srv := &http.Server{Addr: r.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	r.shutdown.AddFunc("metrics", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	r.logger.Info("Metrics server listening", zap.String("addr", r.cfg.MetricsAddr))
}

// Close releases everything registered with the runner.
func (r *Runner) Close(ctx context.Context) error {
	return r.shutdown.Shutdown(ctx)
}
