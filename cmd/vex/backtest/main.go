package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/cmd/vex"
	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/config"
	"github.com/peter-kozarec/vexchange/pkg/datasource"
	"github.com/peter-kozarec/vexchange/pkg/simulation"
)

func main() {
	configPath := flag.String("config", "backtest.yaml", "run configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "unable to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := vex.NewLogger(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "unable to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	logger.Info("vex started", zap.String("environment", "backtest"), zap.String("version", vex.Version))
	defer logger.Info("vex finished")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("backtest failed", zap.Error(err))
	}
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	registry := vex.NewRegistry()
	vex.ServeMetrics(ctx, logger, cfg.Metrics.Listen, registry)

	source, err := datasource.New(logger, datasource.KindReplay,
		datasource.WithResolution(cfg.Source.Resolution),
		datasource.WithProgressInterval(cfg.Source.ProgressInterval))
	if err != nil {
		return err
	}

	strategy, err := vex.NewStrategy(logger, cfg)
	if err != nil {
		return err
	}

	router := bus.NewRouter(logger.Named("bus"), cfg.Engine.EventCapacity)
	mw := vex.Wire(logger, cfg, router, registry)

	engine := simulation.NewEngine(logger.Named("engine"), source, cfg.Pair,
		simulation.WithRouter(router),
		simulation.WithAccountOptions(vex.AccountOptions(cfg)...),
		simulation.WithAuditInterval(cfg.Engine.AuditInterval))
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("unable to close data source", zap.Error(err))
		}
	}()

	if err := engine.SetStartBalance(cfg.Account.StartBalance); err != nil {
		return err
	}
	engine.SetWaitTime(cfg.Engine.WaitTime)

	// A missing dataset is reported by the engine, Run then ends right away.
	_ = engine.SetDataInterval(ctx, cfg.Source.Location, cfg.Source.Start, cfg.Source.End)

	defer func() {
		mw.PrintStatistics()
		router.Statistics().Print(logger)
	}()

	if err := engine.Run(ctx, strategy); err != nil {
		return err
	}

	engine.Report().Print(logger)
	for asset, balance := range engine.Balances() {
		logger.Info("balance",
			zap.String("asset", asset),
			zap.Stringer("free", balance.Free),
			zap.Stringer("total", balance.Total),
			zap.Stringer("valuation", balance.Valuation))
	}
	return nil
}
