package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/common"
)

type Performance struct {
	logger *zap.Logger

	durations map[bus.EventId]time.Duration
	calls     map[bus.EventId]int64
}

func NewPerformance(logger *zap.Logger) *Performance {
	return &Performance{
		logger:    logger,
		durations: make(map[bus.EventId]time.Duration),
		calls:     make(map[bus.EventId]int64),
	}
}

func (p *Performance) track(id bus.EventId, startTime time.Time) {
	p.durations[id] += time.Since(startTime)
	p.calls[id]++
}

func (p *Performance) Total(id bus.EventId) time.Duration {
	return p.durations[id]
}

func (p *Performance) Average(id bus.EventId) time.Duration {
	if p.calls[id] == 0 {
		return 0
	}
	return p.durations[id] / time.Duration(p.calls[id])
}

func (p *Performance) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	return func(ctx context.Context, snapshot common.Snapshot) {
		defer p.track(bus.SnapshotEvent, time.Now())
		handler(ctx, snapshot)
	}
}

func (p *Performance) WithOrderPlaced(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return func(ctx context.Context, order common.Order) {
		defer p.track(bus.OrderPlacedEvent, time.Now())
		handler(ctx, order)
	}
}

func (p *Performance) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		defer p.track(bus.OrderRejectedEvent, time.Now())
		handler(ctx, rejected)
	}
}

func (p *Performance) WithOrderClosed(handler bus.OrderCloseEventHandler) bus.OrderCloseEventHandler {
	return func(ctx context.Context, order common.Order) {
		defer p.track(bus.OrderClosedEvent, time.Now())
		handler(ctx, order)
	}
}

func (p *Performance) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		defer p.track(bus.FillEvent, time.Now())
		handler(ctx, fill)
	}
}

func (p *Performance) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, sheet common.BalanceSheet) {
		defer p.track(bus.BalanceEvent, time.Now())
		handler(ctx, sheet)
	}
}

func (p *Performance) PrintStatistics() {
	var fields []zap.Field

	for _, id := range []bus.EventId{
		bus.SnapshotEvent,
		bus.OrderPlacedEvent,
		bus.OrderRejectedEvent,
		bus.OrderClosedEvent,
		bus.FillEvent,
		bus.BalanceEvent,
	} {
		if p.calls[id] == 0 {
			continue
		}
		fields = append(fields,
			zap.Duration(id.String()+"_avg_duration", p.Average(id)),
			zap.Duration(id.String()+"_total_duration", p.durations[id]))
	}

	p.logger.Info("performance statistics", fields...)
}
