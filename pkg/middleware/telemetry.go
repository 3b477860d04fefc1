package middleware

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/common"
)

type Telemetry struct {
	logger *zap.Logger

	events     *prometheus.CounterVec
	fillVolume *prometheus.CounterVec
	fees       *prometheus.CounterVec
	equity     prometheus.Gauge
	counters   map[bus.EventId]int64
	collectors []prometheus.Collector
	registerer prometheus.Registerer
}

// NewTelemetry registers the vexchange collectors with registerer. A nil
// registerer keeps the counters in memory only.
func NewTelemetry(logger *zap.Logger, registerer prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		logger: logger,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vexchange",
			Name:      "events_total",
			Help:      "Number of events dispatched by the bus, by event.",
		}, []string{"event"}),
		fillVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vexchange",
			Name:      "fill_volume_total",
			Help:      "Filled base volume, by side.",
		}, []string{"side"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vexchange",
			Name:      "fees_total",
			Help:      "Fees charged, by asset.",
		}, []string{"asset"}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vexchange",
			Name:      "equity",
			Help:      "Account equity in quote currency.",
		}),
		counters:   make(map[bus.EventId]int64),
		registerer: registerer,
	}

	t.collectors = []prometheus.Collector{t.events, t.fillVolume, t.fees, t.equity}
	if registerer != nil {
		for _, c := range t.collectors {
			if err := registerer.Register(c); err != nil {
				logger.Warn("unable to register collector", zap.Error(err))
			}
		}
	}
	return t
}

func (t *Telemetry) inc(id bus.EventId) {
	t.counters[id]++
	t.events.WithLabelValues(id.String()).Inc()
}

func (t *Telemetry) Count(id bus.EventId) int64 {
	return t.counters[id]
}

// Unregister removes the collectors from the registerer they were added to.
func (t *Telemetry) Unregister() {
	if t.registerer == nil {
		return
	}
	for _, c := range t.collectors {
		t.registerer.Unregister(c)
	}
}

func (t *Telemetry) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	return func(ctx context.Context, snapshot common.Snapshot) {
		t.inc(bus.SnapshotEvent)
		handler(ctx, snapshot)
	}
}

func (t *Telemetry) WithOrderPlaced(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return func(ctx context.Context, order common.Order) {
		t.inc(bus.OrderPlacedEvent)
		handler(ctx, order)
	}
}

func (t *Telemetry) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		t.inc(bus.OrderRejectedEvent)
		handler(ctx, rejected)
	}
}

func (t *Telemetry) WithOrderClosed(handler bus.OrderCloseEventHandler) bus.OrderCloseEventHandler {
	return func(ctx context.Context, order common.Order) {
		t.inc(bus.OrderClosedEvent)
		handler(ctx, order)
	}
}

func (t *Telemetry) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		t.inc(bus.FillEvent)
		t.fillVolume.WithLabelValues(fill.Side.String()).Add(float(fill.Volume))
		t.fees.WithLabelValues(fill.FeeAsset).Add(float(fill.Fee))
		handler(ctx, fill)
	}
}

func (t *Telemetry) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, sheet common.BalanceSheet) {
		t.inc(bus.BalanceEvent)
		t.equity.Set(float(sheet.Equity))
		handler(ctx, sheet)
	}
}

func (t *Telemetry) PrintStatistics() {
	t.logger.Info("event statistics",
		zap.Int64("snapshot_events", t.counters[bus.SnapshotEvent]),
		zap.Int64("order_placed_events", t.counters[bus.OrderPlacedEvent]),
		zap.Int64("order_rejected_events", t.counters[bus.OrderRejectedEvent]),
		zap.Int64("order_closed_events", t.counters[bus.OrderClosedEvent]),
		zap.Int64("fill_events", t.counters[bus.FillEvent]),
		zap.Int64("balance_events", t.counters[bus.BalanceEvent]))
}
