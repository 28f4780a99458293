package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/app"
	"github.com/rovshanmuradov/memeswap/internal/config"
	"github.com/rovshanmuradov/memeswap/internal/logger"
	"github.com/rovshanmuradov/memeswap/internal/session"
	"github.com/rovshanmuradov/memeswap/internal/swap"
)

var (
	configPath string
	walletName string
	debug      bool
	tokenMint  string
	tokenSym   string
	sellSide   bool
)

var rootCmd = &cobra.Command{
	Use:   "memeswap",
	Short: "Swap SOL for meme tokens through an aggregator",
	Long: `memeswap quotes, signs and submits swaps between SOL and a token,
taking a small platform fee in SOL after each successful swap.

Examples:
  memeswap quote 0.5 --token <mint>
  memeswap trade 0.5 --token <mint> --symbol BONK
  memeswap trade 1200 --token <mint> --sell
  memeswap balance --token <mint>`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.json", "Path to config file (empty: environment only)")
	rootCmd.PersistentFlags().StringVarP(&walletName, "wallet", "w", "", "Wallet name from the wallets file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log debug output to the console")
	rootCmd.PersistentFlags().StringVarP(&tokenMint, "token", "t", "", "Token mint traded against SOL")
	rootCmd.PersistentFlags().StringVar(&tokenSym, "symbol", "TOKEN", "Display symbol of the token")
	rootCmd.PersistentFlags().BoolVar(&sellSide, "sell", false, "Sell the token for SOL instead of buying it")
}

// env bundles what every subcommand needs.
type env struct {
	ctx    context.Context
	cfg    *config.Config
	log    *logger.Logger
	runner *app.Runner
	pair   swap.Pair
	stop   context.CancelFunc
}

func setup(cmd *cobra.Command) (*env, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if walletName != "" {
		cfg.Wallet = walletName
	}

	lg, err := logger.New(&logger.Config{
		File:        cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: debug || cfg.DebugLogging,
		Console:     debug,
		Pretty:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := session.NotifyContext(cmd.Context(), lg.Logger)
	runner, err := app.NewRunner(cfg, lg.Logger)
	if err != nil {
		stop()
		_ = lg.Close()
		return nil, err
	}
	e := &env{ctx: ctx, cfg: cfg, log: lg, runner: runner, stop: stop}

	if err := runner.ValidateLicense(ctx); err != nil {
		e.close()
		return nil, fmt.Errorf("license: %w", err)
	}

	if tokenMint != "" {
		token, err := runner.ResolveAsset(ctx, tokenMint, tokenSym)
		if err != nil {
			e.close()
			return nil, err
		}
		e.pair = swap.Pair{Input: swap.NativeAsset(), Output: token}
		if sellSide {
			e.pair = e.pair.Reverse()
		}
	}
	return e, nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.runner.Close(ctx); err != nil {
		e.log.Warn("Shutdown finished with errors", zap.Error(err))
	}
	e.stop()
	_ = e.log.Close()
}

func requireToken(e *env) error {
	if e.pair == (swap.Pair{}) {
		return fmt.Errorf("--token is required")
	}
	return nil
}

func printError(err error) {
	color.Red("\nError: %v\n", err)
}
