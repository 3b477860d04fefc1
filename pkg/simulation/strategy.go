package simulation

import (
	"context"
	"time"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/exchange"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

// Trader is the view of the engine a strategy gets during a cycle. The market data
// methods answer from the data source and fail with ErrNoMarketData when the source
// has none.
type Trader interface {
	exchange.Connector

	// PlaceOrder returns nil when the order is rejected, e.g. for insufficient funds.
	PlaceOrder(orderType common.OrderType, side common.OrderSide, price, volume fixed.Point) *common.OrderId
	CancelOrder(id common.OrderId) bool
	Balances() map[string]common.Balance
	OpenOrders() []common.Order
	OrderHistory() []common.Order
	Time() time.Time
}

// Strategy is called once per cycle before matching. Returning false ends the run
// once the orders of that cycle are matched.
type Strategy interface {
	OnCycle(ctx context.Context, trader Trader, snapshot common.Snapshot) bool
}

type StrategyFunc func(ctx context.Context, trader Trader, snapshot common.Snapshot) bool

func (f StrategyFunc) OnCycle(ctx context.Context, trader Trader, snapshot common.Snapshot) bool {
	return f(ctx, trader, snapshot)
}

// cycleTrader calls into the engine while Evaluate already holds its lock.
type cycleTrader struct {
	e *Engine
}

func (t cycleTrader) PlaceOrder(orderType common.OrderType, side common.OrderSide, price, volume fixed.Point) *common.OrderId {
	return t.e.placeOrder(orderType, side, price, volume)
}

func (t cycleTrader) CancelOrder(id common.OrderId) bool {
	return t.e.account.CancelOrder(id)
}

func (t cycleTrader) Balances() map[string]common.Balance {
	return t.e.account.Balances()
}

func (t cycleTrader) OpenOrders() []common.Order {
	return t.e.account.OpenOrders()
}

func (t cycleTrader) OrderHistory() []common.Order {
	return t.e.account.OrderHistory()
}

func (t cycleTrader) Time() time.Time {
	return t.e.timestamp
}

func (t cycleTrader) FetchCurrentPrice(ctx context.Context) (fixed.Point, error) {
	return t.e.fetchCurrentPrice(ctx)
}

func (t cycleTrader) FetchOrderBook(ctx context.Context, depth int) ([]common.BookLevel, []common.BookLevel, error) {
	return t.e.fetchOrderBook(ctx, depth)
}

func (t cycleTrader) FetchHistoricalWindow(ctx context.Context, start, end time.Time, resolution time.Duration) ([]common.Candle, error) {
	return t.e.fetchHistoricalWindow(ctx, start, end, resolution)
}
