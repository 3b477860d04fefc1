package live

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/exchange"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

const (
	defaultDepth      = 100
	defaultResolution = time.Minute
)

type Option func(*Source)

func WithDepth(depth int) Option {
	return func(s *Source) {
		if depth > 0 {
			s.depth = depth
		}
	}
}

// WithHybridValidation adds the latest completed candle to every snapshot so that
// candle matching applies next to the live book.
func WithHybridValidation() Option {
	return func(s *Source) {
		s.hybrid = true
	}
}

func WithResolution(resolution time.Duration) Option {
	return func(s *Source) {
		if resolution > 0 {
			s.resolution = resolution
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		s.now = now
	}
}

// Source captures the connector's market data verbatim, one snapshot per cycle.
type Source struct {
	logger     *zap.Logger
	connector  exchange.Connector
	depth      int
	hybrid     bool
	resolution time.Duration
	now        func() time.Time

	previous *common.Snapshot
	reused   int
}

func NewSource(logger *zap.Logger, connector exchange.Connector, options ...Option) *Source {
	s := &Source{
		logger:     logger,
		connector:  connector,
		depth:      defaultDepth,
		resolution: defaultResolution,
		now:        time.Now,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Advance fetches a fresh snapshot. A failed fetch reuses the previous snapshot, and
// returns false only when there is nothing to reuse or ctx is done.
func (s *Source) Advance(ctx context.Context) (common.Snapshot, bool) {
	if ctx.Err() != nil {
		return common.Snapshot{}, false
	}

	now := s.now().UTC()
	snapshot, err := s.fetch(ctx, now)
	if err != nil {
		if s.previous == nil {
			s.logger.Error("unable to fetch market data", zap.Error(err))
			return common.Snapshot{}, false
		}
		s.reused++
		s.logger.Warn("unable to fetch market data, reusing previous snapshot",
			zap.Error(err),
			zap.Int("reused", s.reused))
		snapshot = *s.previous
		snapshot.TimeStamp = now
	}

	s.previous = &snapshot
	return snapshot, true
}

func (s *Source) fetch(ctx context.Context, now time.Time) (common.Snapshot, error) {
	price, err := s.connector.FetchCurrentPrice(ctx)
	if err != nil {
		return common.Snapshot{}, err
	}

	bids, asks, err := s.connector.FetchOrderBook(ctx, s.depth)
	if err != nil {
		return common.Snapshot{}, err
	}

	snapshot := common.Snapshot{
		TimeStamp:    now,
		CurrentPrice: price,
		Bids:         bids,
		Asks:         asks,
	}

	if s.hybrid {
		candles, err := s.connector.FetchHistoricalWindow(ctx, now.Add(-2*s.resolution), now, s.resolution)
		if err != nil {
			return common.Snapshot{}, err
		}
		for i := len(candles) - 1; i >= 0; i-- {
			if !candles[i].StartTime.Add(s.resolution).After(now) {
				candle := candles[i]
				snapshot.Candle = &candle
				break
			}
		}
	}

	return snapshot, nil
}

func (s *Source) FetchCurrentPrice(ctx context.Context) (fixed.Point, error) {
	return s.connector.FetchCurrentPrice(ctx)
}

func (s *Source) FetchOrderBook(ctx context.Context, depth int) ([]common.BookLevel, []common.BookLevel, error) {
	return s.connector.FetchOrderBook(ctx, depth)
}

func (s *Source) FetchHistoricalWindow(ctx context.Context, start, end time.Time, resolution time.Duration) ([]common.Candle, error) {
	return s.connector.FetchHistoricalWindow(ctx, start, end, resolution)
}

// Reused counts the cycles that fell back to the previous snapshot.
func (s *Source) Reused() int {
	return s.reused
}

func (s *Source) Close() error {
	if closer, ok := s.connector.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
