package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/cmd/vex"
	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/config"
	"github.com/peter-kozarec/vexchange/pkg/datasource"
	"github.com/peter-kozarec/vexchange/pkg/exchange/stream"
	"github.com/peter-kozarec/vexchange/pkg/simulation"
)

func main() {
	configPath := flag.String("config", "validation.yaml", "run configuration")
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

	logger.Info("vex started", zap.String("environment", cfg.Source.Kind), zap.String("version", vex.Version))
	defer logger.Info("vex finished")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("validation failed", zap.Error(err))
	}
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	kind := cfg.Kind()
	if kind == datasource.KindReplay {
		return fmt.Errorf("validation needs a live source, got %s", kind)
	}

	registry := vex.NewRegistry()
	vex.ServeMetrics(ctx, logger, cfg.Metrics.Listen, registry)

	interval, err := stream.KlineInterval(cfg.Source.Resolution)
	if err != nil {
		return err
	}
	url := stream.StreamURL(cfg.Source.StreamURL, cfg.Pair, stream.PartialDepth(cfg.Source.Depth), interval)
	connector := stream.NewConnector(logger.Named("stream"), url, stream.WithInterval(cfg.Source.Resolution))
	connector.Start(ctx)

	source, err := datasource.New(logger, kind,
		datasource.WithConnector(connector),
		datasource.WithDepth(cfg.Source.Depth),
		datasource.WithResolution(cfg.Source.Resolution))
	if err != nil {
		_ = connector.Close()
		return err
	}

	strategy, err := vex.NewStrategy(logger, cfg)
	if err != nil {
		_ = source.Close()
		return err
	}

	router := bus.NewRouter(logger.Named("bus"), cfg.Engine.EventCapacity)
	mw := vex.Wire(logger, cfg, router, registry)

	wait := cfg.Engine.WaitTime
	if wait <= 0 {
		wait = time.Second
	}
	engine := simulation.NewEngine(logger.Named("engine"), source, cfg.Pair,
		simulation.WithRouter(router),
		simulation.WithAccountOptions(vex.AccountOptions(cfg)...),
		simulation.WithAuditInterval(cfg.Engine.AuditInterval),
		simulation.WithWaitTime(wait))
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("unable to close data source", zap.Error(err))
		}
	}()

	if err := engine.SetStartBalance(cfg.Account.StartBalance); err != nil {
		return err
	}

	defer func() {
		mw.PrintStatistics()
		router.Statistics().Print(logger)
	}()

	if err := waitForMarketData(ctx, connector); err != nil {
		return err
	}
	if err := engine.Run(ctx, strategy); err != nil {
		return err
	}

	engine.Report().Print(logger)
	return nil
}

func waitForMarketData(ctx context.Context, connector *stream.Connector) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := connector.FetchCurrentPrice(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
