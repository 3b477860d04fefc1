package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/exchange"
	"github.com/peter-kozarec/vexchange/pkg/exchange/sandbox"
	"github.com/peter-kozarec/vexchange/pkg/utility"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

const (
	defaultEventCapacity = 1024
	defaultAuditInterval = time.Hour
)

var (
	ErrNotReplay      = errors.New("data source does not support data intervals")
	ErrAlreadyStarted = errors.New("run already started")
	ErrNoMarketData   = errors.New("data source provides no market data")
)

type intervalSetter interface {
	SetDataInterval(ctx context.Context, location string, start, end time.Time) error
}

// Engine drives one run: it pulls a snapshot per cycle, calls the strategy, matches
// open orders and keeps the audit trail. Its methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	logger *zap.Logger
	router *bus.Router
	source exchange.DataSource
	pair   common.Pair

	accountOptions []sandbox.Option
	startBalance   fixed.Point
	waitTime       time.Duration
	auditInterval  time.Duration

	executionID utility.ExecutionID
	account     *sandbox.Account
	audit       *Audit
	fills       []common.Fill
	started     bool
	finished    bool
	cycle       int64
	timestamp   time.Time
	err         error
}

func NewEngine(logger *zap.Logger, source exchange.DataSource, pair common.Pair, options ...Option) *Engine {
	e := &Engine{
		logger:        logger,
		source:        source,
		pair:          pair,
		startBalance:  fixed.Zero,
		auditInterval: defaultAuditInterval,
	}

	for _, option := range options {
		option(e)
	}

	if e.router == nil {
		e.router = bus.NewRouter(logger.Named("bus"), defaultEventCapacity)
	}
	return e
}

// SetDataInterval positions a replay source at [start, end]. A failure is logged and
// ends the run, the next Evaluate reports not running.
func (e *Engine) SetDataInterval(ctx context.Context, location string, start, end time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	setter, ok := e.source.(intervalSetter)
	if !ok {
		return ErrNotReplay
	}

	if err := setter.SetDataInterval(ctx, location, start, end); err != nil {
		e.logger.Error("unable to set data interval",
			zap.String("location", location),
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(err))
		e.finished = true
		return err
	}

	e.finished = false
	return nil
}

// SetStartBalance sets the quote currency deposit of the run.
func (e *Engine) SetStartBalance(amount fixed.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	if amount.IsNegative() {
		return fmt.Errorf("start balance %s: %w", amount, sandbox.ErrInvalidAmount)
	}
	e.startBalance = amount
	return nil
}

// SetWaitTime throttles consecutive cycles, zero disables the wait.
func (e *Engine) SetWaitTime(wait time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waitTime = wait
}

// Evaluate runs a single cycle. Recoverable conditions, a stop signal or an exhausted
// source are reported as running == false, fatal ones as an error.
func (e *Engine) Evaluate(ctx context.Context, strategy Strategy) (bool, time.Time, error) {
	running, ts, wait, err := e.evaluate(ctx, strategy)
	if !running || err != nil || wait <= 0 {
		return running, ts, err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return running, ts, nil
}

// Run evaluates cycles until the source is exhausted, ctx is done or a fatal error
// occurs.
func (e *Engine) Run(ctx context.Context, strategy Strategy) error {
	for {
		running, _, err := e.Evaluate(ctx, strategy)
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
	}
}

func (e *Engine) evaluate(ctx context.Context, strategy Strategy) (bool, time.Time, time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return false, e.timestamp, 0, e.err
	}
	if e.finished {
		return false, e.timestamp, 0, nil
	}
	if err := e.begin(); err != nil {
		return false, e.timestamp, 0, err
	}

	if err := ctx.Err(); err != nil {
		e.logger.Info("run stopped", zap.Int64("cycles", e.cycle), zap.Error(err))
		e.finish()
		return false, e.timestamp, 0, nil
	}

	snapshot, ok := e.source.Advance(ctx)
	if !ok {
		e.finish()
		return false, e.timestamp, 0, nil
	}

	e.cycle++
	if snapshot.TimeStamp.After(e.timestamp) {
		e.timestamp = snapshot.TimeStamp
	}

	e.account.Observe(snapshot)
	if e.cycle == 1 {
		e.audit.AddSheet(e.account.Sheet(e.timestamp))
	}
	e.post(bus.SnapshotEvent, snapshot)

	running := true
	if strategy != nil {
		running = strategy.OnCycle(ctx, cycleTrader{e}, snapshot)
		if e.err != nil {
			return false, e.timestamp, 0, e.err
		}
	}

	fills, err := e.account.Match(ctx, snapshot)
	if err != nil {
		e.fail(err)
		return false, e.timestamp, 0, err
	}

	for _, fill := range fills {
		e.fills = append(e.fills, fill)
		e.audit.AddFill(fill)
		e.post(bus.FillEvent, fill)
	}
	for _, order := range e.account.OpenOrders() {
		if order.IsClosed() {
			e.post(bus.OrderClosedEvent, order)
		}
	}
	e.account.Cleanup()

	sheet := e.account.Sheet(e.timestamp)
	e.audit.AddSheet(sheet)
	if len(fills) > 0 {
		e.post(bus.BalanceEvent, sheet)
	}

	e.router.Drain(ctx)

	e.logger.Debug("cycle",
		zap.Int64("cycle", e.cycle),
		zap.Time("ts", e.timestamp),
		zap.Int("fills", len(fills)),
		zap.Int("open_orders", e.account.Registry().OpenCount()))

	if !running {
		e.logger.Info("run stopped by strategy", zap.Int64("cycle", e.cycle))
		e.finish()
		return false, e.timestamp, 0, nil
	}
	return true, e.timestamp, e.waitTime, nil
}

// begin creates the account of the run on first use.
func (e *Engine) begin() error {
	if e.started {
		return nil
	}

	account := sandbox.NewAccount(e.logger.Named("account"), e.pair, e.accountOptions...)
	if err := account.Deposit(e.pair.Quote, e.startBalance); err != nil {
		e.fail(err)
		return err
	}

	e.executionID = utility.NewExecutionID()
	e.account = account
	e.audit = NewAudit(e.auditInterval)
	e.started = true

	maker, taker := account.Fees()
	e.logger.Info("run started",
		zap.Stringer("execution_id", e.executionID),
		zap.Stringer("pair", e.pair),
		zap.Stringer("start_balance", e.startBalance),
		zap.Stringer("maker_fee", maker),
		zap.Stringer("taker_fee", taker))
	return nil
}

func (e *Engine) finish() {
	if e.finished {
		return
	}
	e.finished = true

	fields := []zap.Field{
		zap.Stringer("execution_id", e.executionID),
		zap.Int64("cycles", e.cycle),
		zap.Int("fills", len(e.fills)),
	}
	if src, ok := e.source.(interface{ MissingRows() int }); ok {
		fields = append(fields, zap.Int("missing_rows", src.MissingRows()))
	}
	if src, ok := e.source.(interface{ Reused() int }); ok {
		fields = append(fields, zap.Int("reused_snapshots", src.Reused()))
	}
	if src, ok := e.source.(interface{ Err() error }); ok && src.Err() != nil {
		fields = append(fields, zap.NamedError("source_error", src.Err()))
	}
	e.logger.Info("run finished", fields...)
}

func (e *Engine) fail(err error) {
	e.err = err
	e.finished = true
	e.logger.Error("run aborted",
		zap.Stringer("execution_id", e.executionID),
		zap.Int64("cycle", e.cycle),
		zap.Error(err))
}

func (e *Engine) post(id bus.EventId, data interface{}) {
	if err := e.router.Post(id, data); err != nil {
		e.logger.Warn("unable to post event", zap.Error(err))
	}
}

// PlaceOrder submits an order outside of a strategy callback. Strategies use the
// Trader passed to OnCycle.
func (e *Engine) PlaceOrder(orderType common.OrderType, side common.OrderSide, price, volume fixed.Point) *common.OrderId {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.begin(); err != nil {
		return nil
	}
	return e.placeOrder(orderType, side, price, volume)
}

func (e *Engine) placeOrder(orderType common.OrderType, side common.OrderSide, price, volume fixed.Point) *common.OrderId {
	if e.err != nil {
		return nil
	}

	req := common.OrderRequest{
		Type:      orderType,
		Side:      side,
		Price:     price,
		Size:      volume,
		TimeStamp: e.timestamp,
	}

	id, ok, err := e.account.PlaceOrder(req)
	if err != nil {
		e.fail(err)
		return nil
	}
	if !ok {
		e.post(bus.OrderRejectedEvent, common.OrderRejected{
			Request:   req,
			Reason:    e.account.Registry().LastRejection(),
			TimeStamp: e.timestamp,
		})
		return nil
	}

	if order, found := e.account.Registry().Get(id); found {
		e.post(bus.OrderPlacedEvent, order)
	}
	return &id
}

func (e *Engine) connector() (exchange.Connector, error) {
	connector, ok := e.source.(exchange.Connector)
	if !ok {
		return nil, ErrNoMarketData
	}
	return connector, nil
}

func (e *Engine) fetchCurrentPrice(ctx context.Context) (fixed.Point, error) {
	connector, err := e.connector()
	if err != nil {
		return fixed.Zero, err
	}
	return connector.FetchCurrentPrice(ctx)
}

func (e *Engine) fetchOrderBook(ctx context.Context, depth int) ([]common.BookLevel, []common.BookLevel, error) {
	connector, err := e.connector()
	if err != nil {
		return nil, nil, err
	}
	return connector.FetchOrderBook(ctx, depth)
}

func (e *Engine) fetchHistoricalWindow(ctx context.Context, start, end time.Time, resolution time.Duration) ([]common.Candle, error) {
	connector, err := e.connector()
	if err != nil {
		return nil, err
	}
	return connector.FetchHistoricalWindow(ctx, start, end, resolution)
}

// FetchHistoricalWindow queries the data source outside of a strategy callback.
func (e *Engine) FetchHistoricalWindow(ctx context.Context, start, end time.Time, resolution time.Duration) ([]common.Candle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetchHistoricalWindow(ctx, start, end, resolution)
}

func (e *Engine) CancelOrder(id common.OrderId) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return false
	}
	return e.account.CancelOrder(id)
}

// Balances returns free, total and valuation per asset. Before the first cycle it
// reports the start balance.
func (e *Engine) Balances() map[string]common.Balance {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return map[string]common.Balance{
			e.pair.Base:  {Asset: e.pair.Base, Free: fixed.Zero, Total: fixed.Zero, Valuation: fixed.Zero},
			e.pair.Quote: {Asset: e.pair.Quote, Free: e.startBalance, Total: e.startBalance, Valuation: e.startBalance},
		}
	}
	return e.account.Balances()
}

func (e *Engine) OrderHistory() []common.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}
	return e.account.OrderHistory()
}

func (e *Engine) Fills() []common.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()

	fills := make([]common.Fill, len(e.fills))
	copy(fills, e.fills)
	return fills
}

func (e *Engine) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return Report{}
	}
	report := e.audit.GenerateReport()
	report.ExecutionID = e.executionID
	report.Cycles = e.cycle
	for _, order := range e.account.OrderHistory() {
		report.TotalOrders++
		if order.IsClosed() {
			report.ClosedOrders++
		}
	}
	return report
}

func (e *Engine) ExecutionID() utility.ExecutionID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executionID
}

func (e *Engine) Router() *bus.Router {
	return e.router
}

func (e *Engine) Close() error {
	return e.source.Close()
}
