package vex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/examples/strategy"
	"github.com/peter-kozarec/vexchange/internal/dbg"
	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/config"
	"github.com/peter-kozarec/vexchange/pkg/exchange/sandbox"
	"github.com/peter-kozarec/vexchange/pkg/middleware"
	"github.com/peter-kozarec/vexchange/pkg/simulation"
)

const Version = "0.3.0"

const MonitorFlags = middleware.MonitorOrdersPlaced | middleware.MonitorOrdersRejected |
	middleware.MonitorOrdersClosed | middleware.MonitorFills

var ErrUnknownStrategy = errors.New("unknown strategy")

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return dbg.NewLogger(cfg.Logging.Level, cfg.Logging.Development, dbg.FileSink{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
}

func NewStrategy(logger *zap.Logger, cfg *config.Config) (simulation.Strategy, error) {
	switch cfg.Strategy.Name {
	case "hello":
		return strategy.NewHello(logger.Named("hello"), cfg.Strategy.Volume), nil
	case "naive":
		return strategy.NewNaive(logger.Named("naive"), cfg.Strategy.Volume, cfg.Strategy.Offset, false), nil
	case "naive_double":
		return strategy.NewNaive(logger.Named("naive"), cfg.Strategy.Volume, cfg.Strategy.Offset, true), nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Strategy.Name, ErrUnknownStrategy)
	}
}

func AccountOptions(cfg *config.Config) []sandbox.Option {
	return []sandbox.Option{sandbox.WithMakerTakerFees(cfg.Account.MakerFee, cfg.Account.TakerFee)}
}

// Middleware groups the ambient handlers wired into a router.
type Middleware struct {
	Monitor     *middleware.Monitor
	Telemetry   *middleware.Telemetry
	Performance *middleware.Performance
	Pushover    *middleware.Pushover
}

// Wire installs monitor, telemetry and performance handlers on router, plus pushover
// alerts when credentials are configured.
func Wire(logger *zap.Logger, cfg *config.Config, router *bus.Router, registerer prometheus.Registerer) *Middleware {
	m := &Middleware{
		Monitor:     middleware.NewMonitor(logger.Named("monitor"), MonitorFlags),
		Telemetry:   middleware.NewTelemetry(logger.Named("telemetry"), registerer),
		Performance: middleware.NewPerformance(logger.Named("performance")),
	}

	orderClosed := middleware.Chain(m.Telemetry.WithOrderClosed, m.Monitor.WithOrderClosed, m.Performance.WithOrderClosed)
	orderRejected := middleware.Chain(m.Telemetry.WithOrderRejected, m.Monitor.WithOrderRejected, m.Performance.WithOrderRejected)
	if cfg.Pushover.User != "" && cfg.Pushover.Token != "" {
		m.Pushover = middleware.NewPushover(logger.Named("pushover"), cfg.Pushover.User, cfg.Pushover.Token, cfg.Pushover.Device)
		orderClosed = middleware.Chain(orderClosed, m.Pushover.WithOrderClosed)
		orderRejected = middleware.Chain(orderRejected, m.Pushover.WithOrderRejected)
	}

	router.SnapshotHandler = middleware.Chain(m.Telemetry.WithSnapshot, m.Monitor.WithSnapshot, m.Performance.WithSnapshot)(middleware.NoopSnapshotHdl)
	router.OrderPlacedHandler = middleware.Chain(m.Telemetry.WithOrderPlaced, m.Monitor.WithOrderPlaced, m.Performance.WithOrderPlaced)(middleware.NoopOrderHdl)
	router.OrderRejectionHandler = orderRejected(middleware.NoopOrderRjctHdl)
	router.OrderClosedHandler = orderClosed(middleware.NoopOrderClsHdl)
	router.FillHandler = middleware.Chain(m.Telemetry.WithFill, m.Monitor.WithFill, m.Performance.WithFill)(middleware.NoopFillHdl)
	router.BalanceHandler = middleware.Chain(m.Telemetry.WithBalance, m.Monitor.WithBalance, m.Performance.WithBalance)(middleware.NoopBalanceHdl)
	return m
}

func (m *Middleware) PrintStatistics() {
	if m.Pushover != nil {
		m.Pushover.Wait()
	}
	m.Telemetry.PrintStatistics()
	m.Performance.PrintStatistics()
}

func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// ServeMetrics exposes registry on listen until ctx is done. An empty listen address
// disables the endpoint.
func ServeMetrics(ctx context.Context, logger *zap.Logger, listen string, registry *prometheus.Registry) {
	if listen == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("listen", listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
