package sandbox

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

// Registry keeps every order of a run. Ids are assigned from a watermark starting at 1.
type Registry struct {
	logger *zap.Logger

	idWatermark common.OrderId
	orders      map[common.OrderId]*common.Order
	history     []*common.Order
	open        []*common.Order
	reserved    map[common.OrderId]fixed.Point

	hasLimits    bool
	lowestLimit  fixed.Point
	highestLimit fixed.Point

	now           time.Time
	lastRejection string
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		orders:   make(map[common.OrderId]*common.Order),
		reserved: make(map[common.OrderId]fixed.Point),
	}
}

// SetTime sets the clock used for order timestamps.
func (r *Registry) SetTime(t time.Time) {
	r.now = t
}

// Place validates the request, reserves funds for limit orders and records the order
// as open. Malformed requests and insufficient funds are rejected with ok == false and
// no error; an error is only returned when the ledger is corrupted.
func (r *Registry) Place(ledger *Ledger, req common.OrderRequest) (common.OrderId, bool, error) {
	r.lastRejection = ""
	if reason := r.check(ledger, req); reason != "" {
		r.lastRejection = reason
		r.logger.Debug("order rejected",
			zap.String("reason", reason),
			zap.Stringer("side", req.Side),
			zap.Stringer("type", req.Type),
			zap.Stringer("price", req.Price),
			zap.Stringer("size", req.Size))
		return 0, false, nil
	}

	var reservation fixed.Point
	if req.Type == common.OrderTypeLimit {
		asset, amount := ledger.pair.Quote, Cost(req.Price, req.Size)
		if req.Side == common.OrderSideSell {
			asset, amount = ledger.pair.Base, req.Size
		}
		ok, err := ledger.Reserve(asset, amount)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			r.lastRejection = "insufficient funds"
			r.logger.Debug("order rejected, insufficient funds",
				zap.String("asset", asset),
				zap.Stringer("required", amount),
				zap.Stringer("free", ledger.Free(asset)))
			return 0, false, nil
		}
		reservation = amount
	}

	createdAt := req.TimeStamp
	if createdAt.IsZero() {
		createdAt = r.now
	}

	r.idWatermark++
	order := &common.Order{
		Id:            r.idWatermark,
		Side:          req.Side,
		Type:          req.Type,
		Status:        common.OrderStatusOpen,
		Price:         req.Price,
		Size:          req.Size,
		FilledSize:    fixed.Zero,
		RemainingSize: req.Size,
		FeesPaid:      fixed.Zero,
		CreatedAt:     createdAt,
	}
	r.orders[order.Id] = order
	r.history = append(r.history, order)
	r.open = append(r.open, order)

	if order.Type == common.OrderTypeLimit {
		r.reserved[order.Id] = reservation
		r.trackLimit(order.Price)
	}

	return order.Id, true, nil
}

// LastRejection is the reason the previous Place call was rejected, empty when it
// was accepted.
func (r *Registry) LastRejection() string {
	return r.lastRejection
}

func (r *Registry) check(ledger *Ledger, req common.OrderRequest) string {
	if !req.Size.IsPositive() {
		return "size must be positive"
	}
	if req.Price.IsNegative() {
		return "price must not be negative"
	}
	if req.Side != common.OrderSideBuy && req.Side != common.OrderSideSell {
		return "unknown side"
	}

	switch req.Type {
	case common.OrderTypeLimit:
		if !req.Price.IsPositive() {
			return "limit price must be positive"
		}
	case common.OrderTypeMarket:
		if req.Side == common.OrderSideSell {
			if ledger.Free(ledger.pair.Base).Lt(req.Size) {
				return "insufficient funds"
			}
			return ""
		}
		price := req.Price
		if price.IsZero() {
			price = ledger.LastPrice()
		}
		if price.IsZero() {
			return "no reference price"
		}
		if ledger.Free(ledger.pair.Quote).Lt(Cost(price, req.Size)) {
			return "insufficient funds"
		}
	default:
		return "unknown type"
	}
	return ""
}

// Cancel acknowledges the request. Cancellation is not simulated, the order stays as is.
func (r *Registry) Cancel(id common.OrderId) bool {
	r.logger.Debug("cancel acknowledged", zap.Int64("id", id))
	return true
}

// UpdateFill moves delta from the remaining to the filled size and closes the order once
// nothing remains.
func (r *Registry) UpdateFill(id common.OrderId, delta fixed.Point) error {
	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrUnknownOrder)
	}
	if !delta.IsPositive() {
		return fmt.Errorf("order %d delta %s: %w", id, delta, ErrInvalidFill)
	}
	if order.FilledSize.Add(delta).Gt(order.Size) {
		return fmt.Errorf("order %d filled %s + %s exceeds size %s: %w", id, order.FilledSize, delta, order.Size, ErrInvalidFill)
	}

	order.FilledSize = order.FilledSize.Add(delta)
	order.RemainingSize = order.Size.Sub(order.FilledSize)
	order.UpdatedAt = r.now
	if order.RemainingSize.IsZero() {
		order.Status = common.OrderStatusClosed
	}
	return nil
}

// Reserved is what is left of the funds reserved for an order.
func (r *Registry) Reserved(id common.OrderId) fixed.Point {
	if amount, ok := r.reserved[id]; ok {
		return amount
	}
	return fixed.Zero
}

// drawReservation takes amount out of the reservation of an order and returns what was
// drawn. The closing fill draws everything that is left, so a reservation is always
// consumed exactly.
func (r *Registry) drawReservation(id common.OrderId, amount fixed.Point, closing bool) fixed.Point {
	left, ok := r.reserved[id]
	if !ok {
		return fixed.Zero
	}
	drawn := fixed.Min(amount, left)
	if closing {
		drawn = left
	}
	left = left.Sub(drawn)
	if left.IsZero() {
		delete(r.reserved, id)
	} else {
		r.reserved[id] = left
	}
	return drawn
}

func (r *Registry) chargeFee(id common.OrderId, fee fixed.Point) {
	if order, ok := r.orders[id]; ok {
		order.FeesPaid = order.FeesPaid.Add(fee)
	}
}

// Cleanup drops closed orders from the open set. History keeps them.
func (r *Registry) Cleanup() int {
	kept := r.open[:0]
	removed := 0
	for _, order := range r.open {
		if order.IsClosed() {
			removed++
			continue
		}
		kept = append(kept, order)
	}
	for i := len(kept); i < len(r.open); i++ {
		r.open[i] = nil
	}
	r.open = kept

	r.hasLimits = false
	for _, order := range r.open {
		if order.Type == common.OrderTypeLimit {
			r.trackLimit(order.Price)
		}
	}
	return removed
}

// LimitRange returns the lowest and highest price among open limit orders.
func (r *Registry) LimitRange() (fixed.Point, fixed.Point, bool) {
	return r.lowestLimit, r.highestLimit, r.hasLimits
}

func (r *Registry) Get(id common.OrderId) (common.Order, bool) {
	order, ok := r.orders[id]
	if !ok {
		return common.Order{}, false
	}
	return *order, true
}

// Open returns the open set in placement order.
func (r *Registry) Open() []common.Order {
	orders := make([]common.Order, 0, len(r.open))
	for _, order := range r.open {
		orders = append(orders, *order)
	}
	return orders
}

func (r *Registry) OpenByType(orderType common.OrderType) []common.Order {
	var orders []common.Order
	for _, order := range r.open {
		if order.Type == orderType && !order.IsClosed() {
			orders = append(orders, *order)
		}
	}
	return orders
}

func (r *Registry) OpenCount() int {
	return len(r.open)
}

// History returns every order ever placed, in id order.
func (r *Registry) History() []common.Order {
	orders := make([]common.Order, 0, len(r.history))
	for _, order := range r.history {
		orders = append(orders, *order)
	}
	return orders
}

func (r *Registry) trackLimit(price fixed.Point) {
	if !r.hasLimits {
		r.lowestLimit, r.highestLimit, r.hasLimits = price, price, true
		return
	}
	r.lowestLimit = fixed.Min(r.lowestLimit, price)
	r.highestLimit = fixed.Max(r.highestLimit, price)
}
