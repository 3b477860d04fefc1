package sandbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

const (
	DefaultMakerFee = "0.0002"
	DefaultTakerFee = "0.004"
)

// Account is the simulated exchange side of one run: balances, orders and matching
// for a single pair. It is not safe for concurrent use.
type Account struct {
	logger   *zap.Logger
	makerFee fixed.Point
	takerFee fixed.Point

	ledger   *Ledger
	registry *Registry
	matcher  *Matcher
}

func NewAccount(logger *zap.Logger, pair common.Pair, options ...Option) *Account {
	a := &Account{
		logger:   logger,
		makerFee: fixed.MustParse(DefaultMakerFee),
		takerFee: fixed.MustParse(DefaultTakerFee),
		ledger:   NewLedger(pair),
		registry: NewRegistry(logger),
	}

	for _, option := range options {
		option(a)
	}

	a.matcher = NewMatcher(logger, a.makerFee, a.takerFee)
	return a
}

func (a *Account) Ledger() *Ledger {
	return a.ledger
}

func (a *Account) Registry() *Registry {
	return a.registry
}

func (a *Account) Fees() (maker, taker fixed.Point) {
	return a.makerFee, a.takerFee
}

func (a *Account) Deposit(asset string, amount fixed.Point) error {
	return a.ledger.Deposit(asset, amount)
}

// Observe marks the account to the snapshot before the strategy runs.
func (a *Account) Observe(snapshot common.Snapshot) {
	a.registry.SetTime(snapshot.TimeStamp)
	a.ledger.Revalue(snapshot.CurrentPrice)
}

func (a *Account) PlaceOrder(req common.OrderRequest) (common.OrderId, bool, error) {
	return a.registry.Place(a.ledger, req)
}

func (a *Account) CancelOrder(id common.OrderId) bool {
	return a.registry.Cancel(id)
}

// Match runs the matcher and marks the balances to the snapshot price.
func (a *Account) Match(ctx context.Context, snapshot common.Snapshot) ([]common.Fill, error) {
	fills, err := a.matcher.Run(ctx, a, snapshot)
	if err != nil {
		return fills, err
	}
	a.ledger.Revalue(snapshot.CurrentPrice)
	return fills, a.ledger.Validate()
}

func (a *Account) Cleanup() int {
	return a.registry.Cleanup()
}

func (a *Account) Balances() map[string]common.Balance {
	return a.ledger.Balances()
}

func (a *Account) Sheet(ts time.Time) common.BalanceSheet {
	return common.BalanceSheet{
		TimeStamp: ts,
		Balances:  a.ledger.Balances(),
		Equity:    a.ledger.Equity(),
	}
}

func (a *Account) OrderHistory() []common.Order {
	return a.registry.History()
}

func (a *Account) OpenOrders() []common.Order {
	return a.registry.Open()
}
