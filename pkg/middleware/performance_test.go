package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peter-kozarec/vexchange/pkg/bus"
	"github.com/peter-kozarec/vexchange/pkg/common"
)

func TestPerformance_Tracks(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewPerformance(zap.New(core))

	slow := p.WithFill(func(context.Context, common.Fill) { time.Sleep(2 * time.Millisecond) })
	slow(context.Background(), common.Fill{})
	slow(context.Background(), common.Fill{})

	assert.GreaterOrEqual(t, p.Total(bus.FillEvent), 4*time.Millisecond)
	assert.GreaterOrEqual(t, p.Average(bus.FillEvent), 2*time.Millisecond)
	assert.Zero(t, p.Average(bus.SnapshotEvent))

	p.PrintStatistics()

	fields := logs.All()[0].ContextMap()
	assert.Contains(t, fields, "fill_avg_duration")
	assert.Contains(t, fields, "fill_total_duration")
	assert.NotContains(t, fields, "snapshot_avg_duration")
}

func TestPerformance_CallsThrough(t *testing.T) {
	p := NewPerformance(zap.NewNop())
	ctx := context.Background()

	called := 0
	p.WithSnapshot(func(context.Context, common.Snapshot) { called++ })(ctx, common.Snapshot{})
	p.WithOrderPlaced(func(context.Context, common.Order) { called++ })(ctx, common.Order{})
	p.WithOrderRejected(func(context.Context, common.OrderRejected) { called++ })(ctx, common.OrderRejected{})
	p.WithOrderClosed(func(context.Context, common.Order) { called++ })(ctx, common.Order{})
	p.WithBalance(func(context.Context, common.BalanceSheet) { called++ })(ctx, common.BalanceSheet{})

	assert.Equal(t, 5, called)
}
