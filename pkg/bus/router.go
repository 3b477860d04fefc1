package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
)

var ErrCapacityReached = errors.New("event capacity reached")

type event struct {
	id    EventId
	trace Trace
	data  interface{}
}

// Router queues events posted during a cycle and dispatches them on Drain, on the
// caller's goroutine.
type Router struct {
	logger *zap.Logger
	events chan event

	SnapshotHandler       SnapshotEventHandler
	OrderPlacedHandler    OrderEventHandler
	OrderRejectionHandler OrderRejectionEventHandler
	OrderClosedHandler    OrderCloseEventHandler
	FillHandler           FillEventHandler
	BalanceHandler        BalanceEventHandler

	batch uint64
	seq   uint32

	runTime       time.Duration
	postCount     uint64
	postFails     uint64
	dispatchCount uint64
	dispatchFails uint64
}

func NewRouter(logger *zap.Logger, eventCapacity int) *Router {
	return &Router{
		logger: logger,
		events: make(chan event, eventCapacity),
	}
}

// Post queues an event for the next Drain.
func (r *Router) Post(id EventId, data interface{}) error {
	select {
	case r.events <- event{id: id, trace: Trace{Batch: r.batch, Seq: r.seq}, data: data}:
		r.seq++
		r.postCount++
		return nil
	default:
		r.postFails++
		return fmt.Errorf("%s: %w", id, ErrCapacityReached)
	}
}

// Drain dispatches every queued event and returns the number dispatched.
func (r *Router) Drain(ctx context.Context) int {
	start := time.Now()
	defer func() {
		r.runTime += time.Since(start)
	}()

	n := 0
	for {
		select {
		case ev := <-r.events:
			n++
			r.dispatchCount++
			if err := r.dispatch(ctx, ev); err != nil {
				r.dispatchFails++
				r.logger.Warn("dispatch failed",
					zap.Error(err),
					zap.Stringer("event", ev.id),
					zap.Stringer("trace_id", ev.trace))
			}
		default:
			if r.seq > 0 {
				r.batch++
				r.seq = 0
			}
			return n
		}
	}
}

func (r *Router) Statistics() Statistics {
	s := Statistics{
		RunTime:       r.runTime,
		PostCount:     r.postCount,
		PostFails:     r.postFails,
		DispatchCount: r.dispatchCount,
		DispatchFails: r.dispatchFails,
		Batches:       r.batch,
	}
	if r.runTime > 0 {
		s.Throughput = float64(r.dispatchCount) / r.runTime.Seconds()
	}
	return s
}

func (r *Router) dispatch(ctx context.Context, ev event) error {
	switch ev.id {
	case SnapshotEvent:
		snapshot, ok := ev.data.(common.Snapshot)
		if !ok {
			return errors.New("invalid type assertion for snapshot event")
		}
		if r.SnapshotHandler != nil {
			r.SnapshotHandler(ctx, snapshot)
		}
	case OrderPlacedEvent:
		order, ok := ev.data.(common.Order)
		if !ok {
			return errors.New("invalid type assertion for order placed event")
		}
		if r.OrderPlacedHandler != nil {
			r.OrderPlacedHandler(ctx, order)
		}
	case OrderRejectedEvent:
		rejected, ok := ev.data.(common.OrderRejected)
		if !ok {
			return errors.New("invalid type assertion for order rejected event")
		}
		if r.OrderRejectionHandler != nil {
			r.OrderRejectionHandler(ctx, rejected)
		}
	case OrderClosedEvent:
		order, ok := ev.data.(common.Order)
		if !ok {
			return errors.New("invalid type assertion for order closed event")
		}
		if r.OrderClosedHandler != nil {
			r.OrderClosedHandler(ctx, order)
		}
	case FillEvent:
		fill, ok := ev.data.(common.Fill)
		if !ok {
			return errors.New("invalid type assertion for fill event")
		}
		if r.FillHandler != nil {
			r.FillHandler(ctx, fill)
		}
	case BalanceEvent:
		sheet, ok := ev.data.(common.BalanceSheet)
		if !ok {
			return errors.New("invalid type assertion for balance event")
		}
		if r.BalanceHandler != nil {
			r.BalanceHandler(ctx, sheet)
		}
	default:
		return fmt.Errorf("unsupported event id: %v", ev.id)
	}
	return nil
}
