package replay

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/datasource/historical"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

var start = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

type memoryDataset struct {
	chunkLength time.Duration
	candles     []common.Candle
	loads       int
	err         error
}

func (m *memoryDataset) ChunkLength() time.Duration { return m.chunkLength }

func (m *memoryDataset) Load(_ context.Context, from, to time.Time) ([]common.Candle, error) {
	m.loads++
	if m.err != nil {
		return nil, m.err
	}
	var out []common.Candle
	for _, c := range m.candles {
		if !c.StartTime.Before(from) && c.StartTime.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryDataset) Close() error { return nil }

func minuteCandles(from time.Time, n int, skip ...int) []common.Candle {
	skipped := make(map[int]bool, len(skip))
	for _, i := range skip {
		skipped[i] = true
	}
	var candles []common.Candle
	for i := 0; i < n; i++ {
		if skipped[i] {
			continue
		}
		candles = append(candles, common.Candle{
			StartTime: from.Add(time.Duration(i) * time.Minute),
			Open:      fixed.FromInt(100+i, 0),
			High:      fixed.FromInt(102+i, 0),
			Low:       fixed.FromInt(99+i, 0),
			Close:     fixed.FromInt(101+i, 0),
			Volume:    fixed.One,
		})
	}
	return candles
}

func placeholder(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.duckdb")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

func newMemorySource(t *testing.T, dataset *memoryDataset) *Source {
	t.Helper()
	return NewSource(zap.NewNop(), WithDatasetOpener(func(context.Context, *zap.Logger, string) (Dataset, error) {
		return dataset, nil
	}))
}

func drain(t *testing.T, s *Source) []common.Snapshot {
	t.Helper()
	var snapshots []common.Snapshot
	for {
		snapshot, ok := s.Advance(context.Background())
		if !ok {
			return snapshots
		}
		snapshots = append(snapshots, snapshot)
	}
}

func TestSource_SetDataInterval(t *testing.T) {
	s := NewSource(zap.NewNop())
	assert.Equal(t, StateUninitialized, s.State())

	err := s.SetDataInterval(context.Background(), placeholder(t), start, start)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	err = s.SetDataInterval(context.Background(), placeholder(t), start, start.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	err = s.SetDataInterval(context.Background(), filepath.Join(t.TempDir(), "missing.duckdb"), start, start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrDatasetNotFound)
	assert.Equal(t, StateUninitialized, s.State())

	_, ok := s.Advance(context.Background())
	assert.False(t, ok)
}

func TestSource_PlaysInclusiveInterval(t *testing.T) {
	dataset := &memoryDataset{chunkLength: 24 * time.Hour, candles: minuteCandles(start, 10)}
	s := newMemorySource(t, dataset)

	require.NoError(t, s.SetDataInterval(context.Background(), placeholder(t), start, start.Add(4*time.Minute)))
	assert.Equal(t, StateLoaded, s.State())

	snapshots := drain(t, s)
	require.Len(t, snapshots, 5)
	for i, snapshot := range snapshots {
		assert.Equal(t, start.Add(time.Duration(i)*time.Minute), snapshot.TimeStamp)
		assert.True(t, snapshot.CurrentPrice.Eq(fixed.FromInt(100+i, 0)))
		require.NotNil(t, snapshot.Candle)
		assert.False(t, snapshot.HasBook())
	}
	assert.Equal(t, StateExhausted, s.State())
	assert.Equal(t, 1, dataset.loads)
	assert.Equal(t, 0, s.MissingRows())
	assert.InDelta(t, 100.0, s.Progress(), 1e-9)

	_, ok := s.Advance(context.Background())
	assert.False(t, ok)
}

func TestSource_MissingRowsReusePrevious(t *testing.T) {
	dataset := &memoryDataset{chunkLength: 24 * time.Hour, candles: minuteCandles(start, 6, 2, 3)}
	s := newMemorySource(t, dataset)
	require.NoError(t, s.SetDataInterval(context.Background(), placeholder(t), start, start.Add(5*time.Minute)))

	snapshots := drain(t, s)
	require.Len(t, snapshots, 6)
	assert.Equal(t, 2, s.MissingRows())

	assert.True(t, snapshots[2].CurrentPrice.Eq(fixed.FromInt(101, 0)))
	assert.True(t, snapshots[3].CurrentPrice.Eq(fixed.FromInt(101, 0)))
	assert.Equal(t, start.Add(3*time.Minute), snapshots[3].TimeStamp)
	assert.Equal(t, start.Add(3*time.Minute), snapshots[3].Candle.StartTime)
	assert.True(t, snapshots[4].CurrentPrice.Eq(fixed.FromInt(104, 0)))
}

func TestSource_LeadingMissingRowsAreSkipped(t *testing.T) {
	dataset := &memoryDataset{chunkLength: 24 * time.Hour, candles: minuteCandles(start, 4, 0, 1)}
	s := newMemorySource(t, dataset)
	require.NoError(t, s.SetDataInterval(context.Background(), placeholder(t), start, start.Add(3*time.Minute)))

	snapshots := drain(t, s)
	require.Len(t, snapshots, 2)
	assert.Equal(t, start.Add(2*time.Minute), snapshots[0].TimeStamp)
	assert.Equal(t, 2, s.MissingRows())
}

func TestSource_CrossesChunks(t *testing.T) {
	from := start.Add(58 * time.Minute)
	dataset := &memoryDataset{chunkLength: time.Hour, candles: minuteCandles(from, 5)}
	s := newMemorySource(t, dataset)
	require.NoError(t, s.SetDataInterval(context.Background(), placeholder(t), from, from.Add(4*time.Minute)))

	snapshots := drain(t, s)
	require.Len(t, snapshots, 5)
	assert.Equal(t, 2, dataset.loads)
	assert.Equal(t, 0, s.MissingRows())
}

func TestSource_DatasetFailureStopsReplay(t *testing.T) {
	dataset := &memoryDataset{chunkLength: time.Hour, err: assert.AnError}
	s := newMemorySource(t, dataset)
	require.NoError(t, s.SetDataInterval(context.Background(), placeholder(t), start, start.Add(time.Hour)))

	_, ok := s.Advance(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, s.Err(), assert.AnError)
	assert.Equal(t, StateExhausted, s.State())
}

func TestSource_DeterministicReplay(t *testing.T) {
	dataset := &memoryDataset{chunkLength: time.Hour, candles: minuteCandles(start, 90, 7, 40)}
	s := newMemorySource(t, dataset)

	require.NoError(t, s.SetDataInterval(context.Background(), placeholder(t), start, start.Add(89*time.Minute)))
	first := drain(t, s)
	require.NoError(t, s.SetDataInterval(context.Background(), placeholder(t), start, start.Add(89*time.Minute)))
	second := drain(t, s)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, s.MissingRows())
}

func TestSource_BinaryDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	var records []historical.BinaryCandle
	for _, c := range minuteCandles(start, 3) {
		records = append(records, historical.FromCandle(c))
	}
	require.NoError(t, historical.WriteCandles(f, records...))
	require.NoError(t, f.Close())

	s := NewSource(zap.NewNop())
	require.NoError(t, s.SetDataInterval(context.Background(), path, start, start.Add(2*time.Minute)))
	defer func() { _ = s.Close() }()

	snapshots := drain(t, s)
	require.Len(t, snapshots, 3)
	assert.True(t, snapshots[1].CurrentPrice.Eq(fixed.FromInt(101, 0)))
}

func TestSource_NonFiniteRecordCountsAsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	var records []historical.BinaryCandle
	for _, c := range minuteCandles(start, 3) {
		records = append(records, historical.FromCandle(c))
	}
	records[1].Volume = math.NaN()
	require.NoError(t, historical.WriteCandles(f, records...))
	require.NoError(t, f.Close())

	s := NewSource(zap.NewNop())
	require.NoError(t, s.SetDataInterval(context.Background(), path, start, start.Add(2*time.Minute)))
	defer func() { _ = s.Close() }()

	var snapshots []common.Snapshot
	require.NotPanics(t, func() { snapshots = drain(t, s) })
	require.Len(t, snapshots, 3)
	assert.Equal(t, 1, s.MissingRows())
	assert.True(t, snapshots[1].CurrentPrice.Eq(fixed.FromInt(100, 0)))
	assert.Equal(t, start.Add(time.Minute), snapshots[1].TimeStamp)
	assert.True(t, snapshots[2].CurrentPrice.Eq(fixed.FromInt(102, 0)))
}

func TestSource_MarketData(t *testing.T) {
	dataset := &memoryDataset{chunkLength: 24 * time.Hour, candles: minuteCandles(start, 10)}
	s := newMemorySource(t, dataset)
	require.NoError(t, s.SetDataInterval(context.Background(), placeholder(t), start, start.Add(9*time.Minute)))
	ctx := context.Background()

	_, err := s.FetchCurrentPrice(ctx)
	assert.ErrorIs(t, err, ErrNoMarketData)
	window, err := s.FetchHistoricalWindow(ctx, start, start.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, window)

	for i := 0; i < 3; i++ {
		_, ok := s.Advance(ctx)
		require.True(t, ok)
	}

	price, err := s.FetchCurrentPrice(ctx)
	require.NoError(t, err)
	assert.True(t, price.Eq(fixed.FromInt(102, 0)))

	bids, asks, err := s.FetchOrderBook(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, bids)
	assert.Empty(t, asks)

	window, err = s.FetchHistoricalWindow(ctx, start.Add(-time.Hour), start.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	require.Len(t, window, 3, "window must not reach past the cursor")
	assert.Equal(t, start, window[0].StartTime)
	assert.Equal(t, start.Add(2*time.Minute), window[2].StartTime)

	window, err = s.FetchHistoricalWindow(ctx, start, start.Add(time.Hour), 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.True(t, window[0].Open.Eq(fixed.FromInt(100, 0)))
	assert.True(t, window[0].High.Eq(fixed.FromInt(104, 0)))
	assert.True(t, window[0].Close.Eq(fixed.FromInt(103, 0)))
	assert.True(t, window[0].Volume.Eq(fixed.FromInt(3, 0)))

	_, err = s.FetchHistoricalWindow(ctx, start.Add(time.Minute), start, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}
