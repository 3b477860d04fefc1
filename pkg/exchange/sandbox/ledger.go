package sandbox

import (
	"fmt"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

// Settlement describes the balance movement of one fill.
type Settlement struct {
	Debited  fixed.Point
	Credited fixed.Point
	Fee      fixed.Point
	FeeAsset string
}

// Ledger holds the balances of a single base/quote pair. The fee of every settlement
// is taken from the asset the trader receives.
type Ledger struct {
	pair      common.Pair
	base      common.Balance
	quote     common.Balance
	lastPrice fixed.Point
}

func NewLedger(pair common.Pair) *Ledger {
	return &Ledger{
		pair:  pair,
		base:  common.Balance{Asset: pair.Base},
		quote: common.Balance{Asset: pair.Quote},
	}
}

func (l *Ledger) Pair() common.Pair {
	return l.pair
}

func (l *Ledger) Deposit(asset string, amount fixed.Point) error {
	if amount.IsNegative() {
		return fmt.Errorf("deposit of %s %s: %w", amount, asset, ErrInvalidAmount)
	}
	b, err := l.balance(asset)
	if err != nil {
		return err
	}
	b.Total = b.Total.Add(amount)
	b.Free = b.Free.Add(amount)
	l.revalue()
	return l.Validate()
}

// Reserve moves amount out of the free balance. It reports false, without error,
// when the free balance does not cover the amount.
func (l *Ledger) Reserve(asset string, amount fixed.Point) (bool, error) {
	if amount.IsNegative() {
		return false, fmt.Errorf("reserve of %s %s: %w", amount, asset, ErrInvalidAmount)
	}
	b, err := l.balance(asset)
	if err != nil {
		return false, err
	}
	if b.Free.Lt(amount) {
		return false, nil
	}
	b.Free = b.Free.Sub(amount)
	return true, l.Validate()
}

// amountScale is the precision of every settled amount. Balances below 10^11 stay
// exact at this scale, so free and total never drift apart through rounding.
const amountScale = 8

// Cost is the quote amount paid for volume at price, rounded up.
func Cost(price, volume fixed.Point) fixed.Point {
	return volume.Mul(price).Ceil(amountScale)
}

// SettleBuy pays the cost of volume at price in quote and receives volume*(1-feeRate)
// of base. fromReserve is the part of the payment drawn from funds the order already
// reserved, only the rest leaves the free balance. A reservation larger than the cost
// is debited in full.
func (l *Ledger) SettleBuy(price, volume, feeRate, fromReserve fixed.Point) (Settlement, error) {
	if !price.IsPositive() || !volume.IsPositive() || fromReserve.IsNegative() {
		return Settlement{}, fmt.Errorf("buy %s at %s: %w", volume, price, ErrInvalidAmount)
	}

	cost := fixed.Max(Cost(price, volume), fromReserve)
	fee := volume.Mul(feeRate).Ceil(amountScale)
	received := volume.Sub(fee)

	l.quote.Total = l.quote.Total.Sub(cost)
	l.quote.Free = l.quote.Free.Sub(cost.Sub(fromReserve))
	l.base.Total = l.base.Total.Add(received)
	l.base.Free = l.base.Free.Add(received)
	l.revalue()

	return Settlement{
		Debited:  cost,
		Credited: received,
		Fee:      fee,
		FeeAsset: l.pair.Base,
	}, l.Validate()
}

// SettleSell pays volume of base and receives volume*price*(1-feeRate) of quote.
// fromReserve is the part of the base already reserved by the order.
func (l *Ledger) SettleSell(price, volume, feeRate, fromReserve fixed.Point) (Settlement, error) {
	if !price.IsPositive() || !volume.IsPositive() || fromReserve.IsNegative() {
		return Settlement{}, fmt.Errorf("sell %s at %s: %w", volume, price, ErrInvalidAmount)
	}

	debit := fixed.Max(volume, fromReserve)
	proceeds := volume.Mul(price).Floor(amountScale)
	fee := proceeds.Mul(feeRate).Ceil(amountScale)
	received := proceeds.Sub(fee)

	l.base.Total = l.base.Total.Sub(debit)
	l.base.Free = l.base.Free.Sub(debit.Sub(fromReserve))
	l.quote.Total = l.quote.Total.Add(received)
	l.quote.Free = l.quote.Free.Add(received)
	l.revalue()

	return Settlement{
		Debited:  debit,
		Credited: received,
		Fee:      fee,
		FeeAsset: l.pair.Quote,
	}, l.Validate()
}

// Revalue marks the base balance to the given price. Non-positive prices are ignored.
func (l *Ledger) Revalue(price fixed.Point) {
	if price.IsPositive() {
		l.lastPrice = price
	}
	l.revalue()
}

func (l *Ledger) LastPrice() fixed.Point {
	return l.lastPrice
}

func (l *Ledger) Free(asset string) fixed.Point {
	b, err := l.balance(asset)
	if err != nil {
		return fixed.Zero
	}
	return b.Free
}

func (l *Ledger) Total(asset string) fixed.Point {
	b, err := l.balance(asset)
	if err != nil {
		return fixed.Zero
	}
	return b.Total
}

// Equity is the quote denominated value of both balances.
func (l *Ledger) Equity() fixed.Point {
	return l.base.Valuation.Add(l.quote.Valuation)
}

func (l *Ledger) Balances() map[string]common.Balance {
	return map[string]common.Balance{
		l.pair.Base:  l.base,
		l.pair.Quote: l.quote,
	}
}

// Validate checks 0 <= free <= total for both assets.
func (l *Ledger) Validate() error {
	for _, b := range []common.Balance{l.base, l.quote} {
		if b.Free.IsNegative() || b.Total.IsNegative() || b.Free.Gt(b.Total) {
			return fmt.Errorf("%s free=%s total=%s: %w", b.Asset, b.Free, b.Total, ErrLedgerInvariantViolation)
		}
	}
	return nil
}

func (l *Ledger) revalue() {
	l.base.Valuation = l.base.Total.Mul(l.lastPrice)
	l.quote.Valuation = l.quote.Total
}

func (l *Ledger) balance(asset string) (*common.Balance, error) {
	switch asset {
	case l.pair.Base:
		return &l.base, nil
	case l.pair.Quote:
		return &l.quote, nil
	default:
		return nil, fmt.Errorf("%s not in %s: %w", asset, l.pair, ErrUnknownAsset)
	}
}
