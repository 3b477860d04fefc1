package historical

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
)

const defaultChunkLength = 24 * time.Hour

// CandleReader serves time ranges out of a binary candle file.
type CandleReader struct {
	logger *zap.Logger
	source *Source[BinaryCandle]
}

func OpenCandleReader(logger *zap.Logger, path string) (*CandleReader, error) {
	source := NewSource[BinaryCandle](path)
	if err := source.Open(); err != nil {
		return nil, err
	}
	logger.Debug("binary dataset opened", zap.String("path", path), zap.Int64("records", source.EntryCount()))
	return &CandleReader{logger: logger, source: source}, nil
}

func (r *CandleReader) ChunkLength() time.Duration {
	return defaultChunkLength
}

// Load returns the candles with start time in [from, to).
func (r *CandleReader) Load(ctx context.Context, from, to time.Time) ([]common.Candle, error) {
	idx, err := r.lookupStartIndex(from.UnixNano())
	if err != nil {
		return nil, err
	}

	var (
		candles  []common.Candle
		entry    BinaryCandle
		degraded int
	)
	for ; idx < r.source.EntryCount(); idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.source.Read(idx, &entry); err != nil {
			return nil, fmt.Errorf("error reading entry at index %d: %w", idx, err)
		}
		if entry.TimeStamp >= to.UnixNano() {
			break
		}
		var candle common.Candle
		if err := entry.ToCandle(&candle); err != nil {
			degraded++
			r.logger.Debug("degraded record skipped", zap.Int64("index", idx), zap.Error(err))
			continue
		}
		candles = append(candles, candle)
	}
	if degraded > 0 {
		r.logger.Warn("degraded records skipped", zap.Int("records", degraded), zap.Time("from", from), zap.Time("to", to))
	}
	return candles, nil
}

func (r *CandleReader) Close() error {
	return r.source.Close()
}

// lookupStartIndex finds the first record with a timestamp >= from.
func (r *CandleReader) lookupStartIndex(from int64) (int64, error) {
	var entry BinaryCandle

	low := int64(0)
	high := r.source.EntryCount() - 1

	for low <= high {
		mid := (low + high) / 2

		if err := r.source.Read(mid, &entry); err != nil {
			return 0, fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}

		if entry.TimeStamp < from {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	return low, nil
}
