package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorSnapshots
	MonitorOrdersPlaced
	MonitorOrdersRejected
	MonitorOrdersClosed
	MonitorFills
	MonitorBalance
)

type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	return func(ctx context.Context, snapshot common.Snapshot) {
		if m.enabled(MonitorSnapshots) {
			m.logger.Info("snapshot",
				zap.Time("ts", snapshot.TimeStamp),
				zap.Stringer("price", snapshot.CurrentPrice),
				zap.Int("bids", len(snapshot.Bids)),
				zap.Int("asks", len(snapshot.Asks)),
				zap.Bool("candle", snapshot.Candle != nil))
		}
		handler(ctx, snapshot)
	}
}

func (m *Monitor) WithOrderPlaced(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return func(ctx context.Context, order common.Order) {
		if m.enabled(MonitorOrdersPlaced) {
			m.logger.Info("order placed", orderFields(order)...)
		}
		handler(ctx, order)
	}
}

func (m *Monitor) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		if m.enabled(MonitorOrdersRejected) {
			m.logger.Info("order rejected",
				zap.String("reason", rejected.Reason),
				zap.Stringer("side", rejected.Request.Side),
				zap.Stringer("type", rejected.Request.Type),
				zap.Stringer("price", rejected.Request.Price),
				zap.Stringer("size", rejected.Request.Size))
		}
		handler(ctx, rejected)
	}
}

func (m *Monitor) WithOrderClosed(handler bus.OrderCloseEventHandler) bus.OrderCloseEventHandler {
	return func(ctx context.Context, order common.Order) {
		if m.enabled(MonitorOrdersClosed) {
			m.logger.Info("order closed", orderFields(order)...)
		}
		handler(ctx, order)
	}
}

func (m *Monitor) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		if m.enabled(MonitorFills) {
			m.logger.Info("fill",
				zap.Int64("order_id", fill.OrderId),
				zap.Stringer("side", fill.Side),
				zap.Stringer("price", fill.Price),
				zap.Stringer("volume", fill.Volume),
				zap.Stringer("fee", fill.Fee),
				zap.String("fee_asset", fill.FeeAsset))
		}
		handler(ctx, fill)
	}
}

func (m *Monitor) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, sheet common.BalanceSheet) {
		if m.enabled(MonitorBalance) {
			fields := []zap.Field{zap.Time("ts", sheet.TimeStamp), zap.Stringer("equity", sheet.Equity)}
			for asset, balance := range sheet.Balances {
				fields = append(fields, zap.Object(asset, balanceMarshaler(balance)))
			}
			m.logger.Info("balance", fields...)
		}
		handler(ctx, sheet)
	}
}

func orderFields(order common.Order) []zap.Field {
	return []zap.Field{
		zap.Int64("id", order.Id),
		zap.Stringer("side", order.Side),
		zap.Stringer("type", order.Type),
		zap.String("status", string(order.Status)),
		zap.Stringer("price", order.Price),
		zap.Stringer("size", order.Size),
		zap.Stringer("filled", order.FilledSize),
		zap.Stringer("fees", order.FeesPaid),
	}
}
