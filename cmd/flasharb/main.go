// Package main is the entry point for the flash-loan arbitrage engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/flashloan-arb/business/arbitrage"
	arbitrageApp "github.com/fd1az/flashloan-arb/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/flashloan-arb/business/arbitrage/di"
	"github.com/fd1az/flashloan-arb/business/blockchain"
	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	"github.com/fd1az/flashloan-arb/business/lending"
	"github.com/fd1az/flashloan-arb/business/pricing"
	"github.com/fd1az/flashloan-arb/internal/apm"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/health"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/metrics"
	"github.com/fd1az/flashloan-arb/internal/monolith"
	"github.com/fd1az/flashloan-arb/pkg/ui"
	"github.com/fd1az/flashloan-arb/pkg/ui/components"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	mode := flag.String("mode", "", "Override execution.mode (paper|live)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flasharb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, *mode, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, mode string, tuiMode bool) error {
	if mode != "" {
		// Read by config.Load through the ARB_MODE binding.
		if err := os.Setenv("ARB_MODE", mode); err != nil {
			return err
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	log := newLogger(cfg, tuiMode)
	log.Info(ctx, "starting flash-loan arbitrage engine",
		"version", version,
		"environment", cfg.App.Environment,
		"mode", cfg.Execution.Mode,
	)

	if cfg.Telemetry.Enabled {
		stop, err := setupTelemetry(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	arb := &arbitrage.Module{}
	defer func() {
		if err := arb.Close(); err != nil {
			log.Warn(context.Background(), "failed to close arbitrage infrastructure", "error", err)
		}
	}()

	// Define modules in dependency order
	modules := []monolith.Module{
		&blockchain.Module{}, // node access, live mode only
		&lending.Module{},    // flash loans
		&pricing.Module{},    // venues and the settlement feed
		arb,                  // monitor and execution, depends on all of the above
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	healthServer := health.NewServer(cfg.App.HealthPort, version, log)
	healthServer.Start(ctx)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = healthServer.Stop(sctx)
	}()

	start := func() (*arbitrageApp.Monitor, error) {
		if err := mono.StartModules(ctx, modules...); err != nil {
			return nil, fmt.Errorf("failed to start modules: %w", err)
		}
		registerChecks(healthServer, mono)

		monitor := arbitrageDI.GetMonitor(mono.Services())
		if err := monitor.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start monitor: %w", err)
		}
		return monitor, nil
	}

	if tuiMode {
		return runTUI(ctx, cfg, start)
	}
	return runCLI(ctx, start, log)
}

func newLogger(cfg *config.Config, tuiMode bool) *logger.Logger {
	level := logger.ParseLevel(cfg.App.LogLevel)
	if !tuiMode {
		return logger.New(os.Stderr, level, cfg.App.Name, nil)
	}
	// In TUI mode stderr is discarded; warnings surface in the activity feed.
	return logger.New(io.Discard, level, cfg.App.Name, func(r logger.Record) {
		ui.Send(ui.LogMsg{Level: r.Level.String(), Message: r.Message})
	})
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	tc := cfg.Telemetry
	endpoint := tc.OTLPEndpoint
	if apm.Provider(tc.Exporter) == apm.ZipkinProvider {
		endpoint = tc.ZipkinEndpoint
	}

	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		ServiceName: tc.ServiceName,
		Provider:    apm.Provider(tc.Exporter),
		Endpoint:    endpoint,
		Headers:     tc.OTLPHeaders,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	mp, err := metrics.NewMetricProvider(ctx, metrics.Config{
		ServiceName: tc.ServiceName,
		Providers:   []metrics.ProviderCfg{{Provider: metrics.PrometheusProvider}},
	})
	if err != nil {
		_ = tp.Stop()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	promServer := metrics.NewServer(tc.PrometheusPort, log)
	promServer.Start(ctx)

	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = promServer.Stop(sctx)
		_ = mp.Shutdown(sctx)
		_ = tp.Stop()
	}, nil
}

// registerChecks adds a check per configured dependency.
func registerChecks(s *health.Server, mono monolith.Monolith) {
	cfg := mono.Config()
	sr := mono.Services()

	monitor := arbitrageDI.GetMonitor(sr)
	// Three missed ticks.
	s.RegisterCheck("monitor", health.FreshnessCheck(monitor.LastTick, 3*cfg.Monitor.Interval+cfg.Monitor.QuoteTimeout))

	if !cfg.IsPaper() {
		gas := blockchainDI.GetGasService(sr)
		s.RegisterCheck("ethereum", func(ctx context.Context) (bool, string) {
			if err := gas.Ping(ctx, cfg.Ethereum.RequestTimeout); err != nil {
				return false, err.Error()
			}
			return true, "ok"
		})
	}
	if cfg.Monitor.Lock == "redis" {
		s.RegisterCheck("redis", health.PingCheck(arbitrageDI.GetPairLock(sr)))
	}
	if cfg.Postgres.Enabled() {
		s.RegisterCheck("postgres", health.PingCheck(arbitrageDI.GetOutcomeStore(sr)))
	}
}

func runCLI(ctx context.Context, start func() (*arbitrageApp.Monitor, error), log *logger.Logger) error {
	monitor, err := start()
	if err != nil {
		return err
	}
	log.Info(ctx, "all modules started, monitoring")

	<-ctx.Done()

	log.Info(ctx, "shutting down, waiting for in-flight executions", "in_flight", monitor.InFlight())
	if err := monitor.Stop(); err != nil {
		log.Error(ctx, "error stopping monitor", "error", err)
	}

	stats := monitor.Stats()
	log.Info(ctx, "monitor stopped",
		"ticks", stats.Ticks,
		"executions", stats.Executions,
		"successes", stats.Successes,
		"failures", stats.Failures,
		"realized_profit", stats.RealizedProfit,
	)
	return nil
}

func runTUI(ctx context.Context, cfg *config.Config, start func() (*arbitrageApp.Monitor, error)) error {
	// The quit key ends the program without a signal.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(
		components.Setting{Name: "mode", Value: cfg.Execution.Mode},
		components.Setting{Name: "source", Value: cfg.Monitor.PriceSource},
		components.Setting{Name: "settlement", Value: cfg.Execution.SettlementAsset},
		components.Setting{Name: "pairs", Value: fmt.Sprint(len(cfg.Pairs))},
	), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		monitor, err := start()
		if err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}
		ui.Send(ui.SettingMsg{Name: "status", Value: "running"})

		<-ctx.Done()
		errCh <- monitor.Stop()
	}()

	_, runErr := p.Run()

	cancel()
	botErr := <-errCh

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return botErr
}
