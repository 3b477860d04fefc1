package bus

type EventId uint8

const (
	SnapshotEvent EventId = iota
	OrderPlacedEvent
	OrderRejectedEvent
	OrderClosedEvent
	FillEvent
	BalanceEvent
)

func (id EventId) String() string {
	switch id {
	case SnapshotEvent:
		return "snapshot"
	case OrderPlacedEvent:
		return "order_placed"
	case OrderRejectedEvent:
		return "order_rejected"
	case OrderClosedEvent:
		return "order_closed"
	case FillEvent:
		return "fill"
	case BalanceEvent:
		return "balance"
	default:
		return "unknown"
	}
}
