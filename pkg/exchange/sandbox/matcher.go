package sandbox

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

// volumeScale bounds the precision of volumes derived from a division.
const volumeScale = 8

var volumeTick = fixed.New(1, volumeScale)

type Matcher struct {
	logger   *zap.Logger
	makerFee fixed.Point
	takerFee fixed.Point
}

func NewMatcher(logger *zap.Logger, makerFee, takerFee fixed.Point) *Matcher {
	return &Matcher{
		logger:   logger,
		makerFee: makerFee,
		takerFee: takerFee,
	}
}

// book is the per cycle working copy, levels consumed by one order are gone for the next.
type book struct {
	bids []common.BookLevel
	asks []common.BookLevel
}

func newBook(snapshot common.Snapshot) *book {
	b := &book{
		bids: make([]common.BookLevel, len(snapshot.Bids)),
		asks: make([]common.BookLevel, len(snapshot.Asks)),
	}
	copy(b.bids, snapshot.Bids)
	copy(b.asks, snapshot.Asks)
	return b
}

// Run matches the open orders of the account against one snapshot. Market orders are
// matched first, then limit orders. Returned errors are fatal for the run.
func (m *Matcher) Run(_ context.Context, account *Account, snapshot common.Snapshot) ([]common.Fill, error) {
	var fills []common.Fill
	working := newBook(snapshot)

	for _, order := range account.registry.OpenByType(common.OrderTypeMarket) {
		f, err := m.matchMarket(account, order, working, snapshot)
		if err != nil {
			return fills, err
		}
		fills = append(fills, f...)
	}

	if !m.limitInRange(account.registry, snapshot) {
		return fills, nil
	}

	for _, order := range account.registry.OpenByType(common.OrderTypeLimit) {
		f, err := m.matchLimit(account, order, working, snapshot)
		if err != nil {
			return fills, err
		}
		fills = append(fills, f...)
	}

	return fills, nil
}

func (m *Matcher) matchMarket(account *Account, order common.Order, working *book, snapshot common.Snapshot) ([]common.Fill, error) {
	var fills []common.Fill
	remaining := order.RemainingSize

	if !snapshot.HasBook() {
		price := snapshot.CurrentPrice
		if !price.IsPositive() {
			return nil, nil
		}
		volume := fixed.Min(remaining, m.affordable(account.ledger, order.Side, price))
		if !volume.IsPositive() {
			return nil, nil
		}
		fill, err := m.settle(account, order, price, volume, m.takerFee, false, snapshot)
		if err != nil {
			return nil, err
		}
		return append(fills, fill), nil
	}

	levels := working.asks
	if order.Side == common.OrderSideSell {
		levels = working.bids
	}

	for i := 0; i < len(levels) && remaining.IsPositive(); i++ {
		level := &levels[i]
		if !level.Volume.IsPositive() || !level.Price.IsPositive() {
			continue
		}
		volume := fixed.Min(level.Volume, remaining)
		volume = fixed.Min(volume, m.affordable(account.ledger, order.Side, level.Price))
		if !volume.IsPositive() {
			break
		}
		fill, err := m.settle(account, order, level.Price, volume, m.takerFee, false, snapshot)
		if err != nil {
			return fills, err
		}
		fills = append(fills, fill)
		level.Volume = level.Volume.Sub(volume)
		remaining = remaining.Sub(volume)
	}

	return fills, nil
}

func (m *Matcher) matchLimit(account *Account, order common.Order, working *book, snapshot common.Snapshot) ([]common.Fill, error) {
	var fills []common.Fill
	remaining := order.RemainingSize

	levels := working.asks
	if order.Side == common.OrderSideSell {
		levels = working.bids
	}

	for i := range levels {
		level := &levels[i]
		if !level.Price.Eq(order.Price) {
			continue
		}
		volume := fixed.Min(level.Volume, remaining)
		if !volume.IsPositive() {
			break
		}
		fill, err := m.settle(account, order, order.Price, volume, m.makerFee, true, snapshot)
		if err != nil {
			return fills, err
		}
		fills = append(fills, fill)
		level.Volume = level.Volume.Sub(volume)
		remaining = remaining.Sub(volume)
		break
	}

	if remaining.IsPositive() && snapshot.Candle != nil {
		low, high := snapshot.Candle.Body()
		if order.Price.Gte(low) && order.Price.Lte(high) {
			fill, err := m.settle(account, order, order.Price, remaining, m.makerFee, true, snapshot)
			if err != nil {
				return fills, err
			}
			fills = append(fills, fill)
		}
	}

	return fills, nil
}

func (m *Matcher) settle(account *Account, order common.Order, price, volume, feeRate fixed.Point, reserved bool, snapshot common.Snapshot) (common.Fill, error) {
	amount := volume
	if order.Side == common.OrderSideBuy {
		amount = Cost(price, volume)
	}

	fromReserve := fixed.Zero
	if reserved {
		current, _ := account.registry.Get(order.Id)
		fromReserve = account.registry.drawReservation(order.Id, amount, volume.Eq(current.RemainingSize))
	}

	var (
		settlement Settlement
		err        error
	)
	if order.Side == common.OrderSideBuy {
		settlement, err = account.ledger.SettleBuy(price, volume, feeRate, fromReserve)
	} else {
		settlement, err = account.ledger.SettleSell(price, volume, feeRate, fromReserve)
	}
	if err != nil {
		return common.Fill{}, err
	}
	if err := account.registry.UpdateFill(order.Id, volume); err != nil {
		return common.Fill{}, err
	}
	account.registry.chargeFee(order.Id, settlement.Fee)

	m.logger.Debug("order filled",
		zap.Int64("id", order.Id),
		zap.Stringer("side", order.Side),
		zap.Stringer("type", order.Type),
		zap.Stringer("price", price),
		zap.Stringer("volume", volume),
		zap.Stringer("fee", settlement.Fee))

	return common.Fill{
		OrderId:   order.Id,
		Side:      order.Side,
		Type:      order.Type,
		Price:     price,
		Volume:    volume,
		Fee:       settlement.Fee,
		FeeAsset:  settlement.FeeAsset,
		TimeStamp: snapshot.TimeStamp,
	}, nil
}

// affordable is the volume an unreserved order can settle at price with the free balance.
func (m *Matcher) affordable(ledger *Ledger, side common.OrderSide, price fixed.Point) fixed.Point {
	if side == common.OrderSideSell {
		return ledger.Free(ledger.pair.Base)
	}
	free := ledger.Free(ledger.pair.Quote)
	volume := free.Div(price).Floor(volumeScale)
	for volume.IsPositive() && Cost(price, volume).Gt(free) {
		volume = volume.Sub(volumeTick)
	}
	return volume
}

// limitInRange reports whether any open limit order can intersect the snapshot prices.
func (m *Matcher) limitInRange(registry *Registry, snapshot common.Snapshot) bool {
	lowest, highest, ok := registry.LimitRange()
	if !ok {
		return false
	}
	low, high, ok := snapshot.PriceRange()
	if !ok {
		return false
	}
	return !high.Lt(lowest) && !low.Gt(highest)
}
