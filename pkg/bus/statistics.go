package bus

import (
	"time"

	"go.uber.org/zap"
)

type Statistics struct {
	RunTime       time.Duration
	PostCount     uint64
	PostFails     uint64
	DispatchCount uint64
	DispatchFails uint64
	Batches       uint64
	Throughput    float64
}

func (s Statistics) Print(logger *zap.Logger) {
	logger.Info("router statistics",
		zap.Duration("run_time", s.RunTime),
		zap.Uint64("post_count", s.PostCount),
		zap.Uint64("post_fails", s.PostFails),
		zap.Uint64("dispatch_count", s.DispatchCount),
		zap.Uint64("dispatch_fails", s.DispatchFails),
		zap.Uint64("batches", s.Batches),
		zap.Float64("throughput", s.Throughput))
}
