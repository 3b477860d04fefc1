package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

const (
	defaultResolution       = time.Minute
	defaultProgressInterval = 1440
)

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrNoMarketData    = errors.New("no candle played yet")
)

type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StatePlaying
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Source replays a recorded dataset one candle per cycle. The cursor walks the
// interval [start, end] in steps of the resolution, rows are loaded a chunk at a time.
type Source struct {
	logger           *zap.Logger
	opener           Opener
	resolution       time.Duration
	progressInterval int

	state    State
	location string
	dataset  Dataset
	start    time.Time
	end      time.Time
	cursor   time.Time

	chunkStart  time.Time
	chunkLoaded bool
	chunk       map[int64]common.Candle
	previous    *common.Candle
	current     *common.Candle

	cycles      int
	missingRows int
	err         error
}

func NewSource(logger *zap.Logger, options ...Option) *Source {
	s := &Source{
		logger:           logger,
		opener:           OpenDataset,
		resolution:       defaultResolution,
		progressInterval: defaultProgressInterval,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// SetDataInterval opens the dataset at location and positions the cursor at start.
// It may be called again to replay another interval.
func (s *Source) SetDataInterval(ctx context.Context, location string, start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("start %s, end %s: %w", start, end, ErrInvalidInterval)
	}

	if _, err := os.Stat(location); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", location, ErrDatasetNotFound)
		}
		return fmt.Errorf("unable to stat dataset %s: %w", location, err)
	}

	dataset, err := s.opener(ctx, s.logger, location)
	if err != nil {
		return fmt.Errorf("unable to open dataset %s: %w", location, err)
	}
	if err := s.Close(); err != nil {
		s.logger.Warn("unable to close previous dataset", zap.Error(err))
	}

	s.dataset = dataset
	s.location = location
	s.start = start.UTC()
	s.end = end.UTC()
	s.cursor = s.start
	s.chunkLoaded = false
	s.chunk = nil
	s.previous = nil
	s.current = nil
	s.cycles = 0
	s.missingRows = 0
	s.err = nil
	s.state = StateLoaded

	s.logger.Info("replay interval set",
		zap.String("location", location),
		zap.Time("start", s.start),
		zap.Time("end", s.end),
		zap.Duration("resolution", s.resolution))
	return nil
}

// Advance returns the snapshot at the cursor and moves the cursor one step. It returns
// false once the cursor passed the end of the interval or the dataset failed.
func (s *Source) Advance(ctx context.Context) (common.Snapshot, bool) {
	if s.state != StateLoaded && s.state != StatePlaying {
		return common.Snapshot{}, false
	}

	for !s.cursor.After(s.end) {
		candle, ok, err := s.row(ctx, s.cursor)
		if err != nil {
			s.fail(err)
			return common.Snapshot{}, false
		}

		ts := s.cursor
		s.cursor = s.cursor.Add(s.resolution)

		if !ok {
			s.missingRows++
			if s.previous == nil {
				s.logger.Debug("row missing before first candle", zap.Time("ts", ts))
				continue
			}
			candle = *s.previous
		}
		previous := candle
		s.previous = &previous

		candle.StartTime = ts
		current := candle
		s.current = &current
		s.state = StatePlaying
		s.cycles++
		s.logProgress(ts)

		return common.Snapshot{
			TimeStamp:    ts,
			CurrentPrice: candle.Open,
			Candle:       &candle,
		}, true
	}

	s.state = StateExhausted
	s.logger.Info("replay finished",
		zap.Int("cycles", s.cycles),
		zap.Int("missing_rows", s.missingRows))
	return common.Snapshot{}, false
}

// FetchCurrentPrice is the open of the candle played last.
func (s *Source) FetchCurrentPrice(_ context.Context) (fixed.Point, error) {
	if s.current == nil {
		return fixed.Zero, ErrNoMarketData
	}
	return s.current.Open, nil
}

// FetchOrderBook always returns an empty book, recorded candles carry no depth.
func (s *Source) FetchOrderBook(_ context.Context, _ int) ([]common.BookLevel, []common.BookLevel, error) {
	return nil, nil, nil
}

// FetchHistoricalWindow loads the recorded candles in [start, end). The window is
// clamped to what was already played so a strategy never sees candles ahead of the
// cursor. A resolution coarser than the dataset's resamples the result.
func (s *Source) FetchHistoricalWindow(ctx context.Context, start, end time.Time, resolution time.Duration) ([]common.Candle, error) {
	if s.dataset == nil || s.current == nil {
		return nil, nil
	}
	if !end.After(start) {
		return nil, fmt.Errorf("start %s, end %s: %w", start, end, ErrInvalidInterval)
	}

	start, end = start.UTC(), end.UTC()
	if start.Before(s.start) {
		start = s.start
	}
	if played := s.current.StartTime.Add(s.resolution); end.After(played) {
		end = played
	}
	if !end.After(start) {
		return nil, nil
	}

	candles, err := s.dataset.Load(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("unable to load window %s - %s: %w", start, end, err)
	}
	if resolution > s.resolution {
		candles = common.Resample(candles, resolution)
	}
	return candles, nil
}

func (s *Source) row(ctx context.Context, ts time.Time) (common.Candle, bool, error) {
	length := s.dataset.ChunkLength()
	chunkStart := ts.Truncate(length)

	if !s.chunkLoaded || !chunkStart.Equal(s.chunkStart) {
		candles, err := s.dataset.Load(ctx, chunkStart, chunkStart.Add(length))
		if err != nil {
			return common.Candle{}, false, fmt.Errorf("unable to load chunk %s: %w", chunkStart, err)
		}
		s.chunk = make(map[int64]common.Candle, len(candles))
		for _, candle := range candles {
			s.chunk[s.offset(chunkStart, candle.StartTime)] = candle
		}
		s.chunkStart = chunkStart
		s.chunkLoaded = true
		s.logger.Debug("chunk loaded", zap.Time("chunk", chunkStart), zap.Int("rows", len(candles)))
	}

	candle, ok := s.chunk[s.offset(chunkStart, ts)]
	return candle, ok, nil
}

func (s *Source) offset(chunkStart, ts time.Time) int64 {
	return int64(ts.Sub(chunkStart) / s.resolution)
}

func (s *Source) fail(err error) {
	s.err = err
	s.state = StateExhausted
	s.logger.Error("replay stopped", zap.String("location", s.location), zap.Error(err))
}

func (s *Source) logProgress(ts time.Time) {
	if s.progressInterval <= 0 || s.cycles%s.progressInterval != 0 {
		return
	}
	s.logger.Info("replay progress",
		zap.Time("ts", ts),
		zap.Int("cycle", s.cycles),
		zap.Float64("progress", s.Progress()),
		zap.Int("missing_rows", s.missingRows))
}

// Progress is the share of the interval already replayed, in percent.
func (s *Source) Progress() float64 {
	total := s.end.Sub(s.start)
	if total <= 0 {
		return 0
	}
	done := s.cursor.Sub(s.start)
	if done > total {
		done = total
	}
	return float64(done) / float64(total) * 100
}

func (s *Source) State() State {
	return s.state
}

func (s *Source) MissingRows() int {
	return s.missingRows
}

// Err returns the dataset error that stopped the replay, if any.
func (s *Source) Err() error {
	return s.err
}

func (s *Source) Close() error {
	if s.dataset == nil {
		return nil
	}
	err := s.dataset.Close()
	s.dataset = nil
	return err
}
