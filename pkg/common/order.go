package common

import (
	"time"

	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

type OrderId = int64
type OrderType int
type OrderSide int
type OrderStatus string

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
)

const (
	OrderSideBuy OrderSide = iota
	OrderSideSell
)

const (
	OrderStatusOpen   OrderStatus = "open"
	OrderStatusClosed OrderStatus = "closed"
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	default:
		return "unknown"
	}
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

type Order struct {
	Id            OrderId     `json:"id"`
	Side          OrderSide   `json:"side"`
	Type          OrderType   `json:"type"`
	Status        OrderStatus `json:"status"`
	Price         fixed.Point `json:"price"`
	Size          fixed.Point `json:"size"`
	FilledSize    fixed.Point `json:"filled_size"`
	RemainingSize fixed.Point `json:"remaining_size"`
	FeesPaid      fixed.Point `json:"fees_paid"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at,omitempty"`
}

func (o Order) IsClosed() bool {
	return o.Status == OrderStatusClosed
}

// OrderRequest is what a strategy asks for, the registry turns it into an Order.
type OrderRequest struct {
	Type      OrderType   `json:"type"`
	Side      OrderSide   `json:"side"`
	Price     fixed.Point `json:"price"`
	Size      fixed.Point `json:"size"`
	TimeStamp time.Time   `json:"ts"`
}

type OrderRejected struct {
	Request   OrderRequest `json:"request"`
	Reason    string       `json:"reason"`
	TimeStamp time.Time    `json:"ts"`
}

type Fill struct {
	OrderId   OrderId     `json:"order_id"`
	Side      OrderSide   `json:"side"`
	Type      OrderType   `json:"type"`
	Price     fixed.Point `json:"price"`
	Volume    fixed.Point `json:"volume"`
	Fee       fixed.Point `json:"fee"`
	FeeAsset  string      `json:"fee_asset"`
	TimeStamp time.Time   `json:"ts"`
}
