package bus

import (
	"context"

	"github.com/peter-kozarec/vexchange/pkg/common"
)

type EventHandler[T any] = func(context.Context, T)

type SnapshotEventHandler EventHandler[common.Snapshot]
type OrderEventHandler EventHandler[common.Order]
type OrderRejectionEventHandler EventHandler[common.OrderRejected]
type OrderCloseEventHandler EventHandler[common.Order]
type FillEventHandler EventHandler[common.Fill]
type BalanceEventHandler EventHandler[common.BalanceSheet]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			if handler != nil {
				handler(ctx, event)
			}
		}
	}
}
