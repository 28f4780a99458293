package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/app"
	"github.com/rovshanmuradov/memeswap/internal/config"
	"github.com/rovshanmuradov/memeswap/internal/events"
	"github.com/rovshanmuradov/memeswap/internal/logger"
	"github.com/rovshanmuradov/memeswap/internal/session"
	"github.com/rovshanmuradov/memeswap/internal/swap"
	"github.com/rovshanmuradov/memeswap/internal/ui"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to config file")
	token := flag.String("token", "", "Token mint to trade against SOL")
	symbol := flag.String("symbol", "TOKEN", "Display symbol of the token")
	sell := flag.Bool("sell", false, "Start in sell direction (token -> SOL)")
	flag.Parse()

	if *token == "" {
		log.Fatal("--token is required")
	}
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Консоль занята интерфейсом: пишем в файл и в буфер для панели логов.
	logs := logger.NewBuffer(500)
	appLogger, err := logger.New(&logger.Config{
		File:        cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
		Buffer:      logs,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer appLogger.Close()

	rootCtx, stop := session.NotifyContext(context.Background(), appLogger.Logger)
	defer stop()

	if err := run(rootCtx, cfg, appLogger.Logger, logs, *token, *symbol, *sell); err != nil {
		appLogger.Error("TUI terminated", zap.Error(err))
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger, logs *logger.Buffer, mint, symbol string, sell bool) error {
	runner, err := app.NewRunner(cfg, lg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := runner.Close(closeCtx); err != nil {
			lg.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	if err := runner.ValidateLicense(ctx); err != nil {
		return fmt.Errorf("license: %w", err)
	}
	runner.ServeMetrics(ctx)

	token, err := runner.ResolveAsset(ctx, mint, symbol)
	if err != nil {
		return err
	}
	pair := swap.Pair{Input: swap.NativeAsset(), Output: token}
	if sell {
		pair = pair.Reverse()
	}

	approver := ui.NewApprover()
	sess, err := session.Open(ctx, runner.Deps(approver), runner.Options(), pair)
	if err != nil {
		return err
	}
	runner.OnShutdown("session", func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sess.Close(closeCtx)
	})

	ch := make(chan events.Event, 64)
	sub := sess.Bus().Subscribe(events.AnyEvent, events.Forward(ch))
	defer sub.Unsubscribe()

	lg.Info("Starting trade screen",
		zap.String("pair", pair.Key()),
		zap.String("wallet", logger.ShortenAddress(sess.Owner())))

	model := ui.NewTradeModel(ctx, sess, ch, logs).WithApprover(approver)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
