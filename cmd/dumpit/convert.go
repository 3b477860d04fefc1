package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/datasource/historical"
	"github.com/peter-kozarec/vexchange/pkg/datasource/synthetic"
)

// microsecondThreshold separates millisecond from microsecond open times.
const microsecondThreshold = 1e14

// convertKlines copies Binance kline CSV rows (open time, open, high, low, close,
// volume, ...) into binary candles. A header row is skipped.
func convertKlines(r io.Reader, w io.Writer) (int, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	bw := bufio.NewWriter(w)
	count := 0
	line := 0
	var last int64

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, err
		}
		line++

		if len(record) < 6 {
			return count, fmt.Errorf("line %d: expected at least 6 fields, got %d", line, len(record))
		}

		openTime, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return count, fmt.Errorf("line %d: open time: %w", line, err)
		}

		var ts time.Time
		if openTime > microsecondThreshold {
			ts = time.UnixMicro(openTime)
		} else {
			ts = time.UnixMilli(openTime)
		}

		candle := historical.BinaryCandle{TimeStamp: ts.UnixNano()}
		for i, dst := range []*float64{&candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume} {
			if *dst, err = strconv.ParseFloat(record[i+1], 64); err != nil {
				return count, fmt.Errorf("line %d field %d: %w", line, i+1, err)
			}
			if math.IsNaN(*dst) || math.IsInf(*dst, 0) {
				return count, fmt.Errorf("line %d field %d: non-finite value %q", line, i+1, record[i+1])
			}
		}

		if candle.TimeStamp <= last {
			return count, fmt.Errorf("line %d: rows must be sorted by open time", line)
		}
		last = candle.TimeStamp

		if err := historical.WriteCandles(bw, candle); err != nil {
			return count, err
		}
		count++
	}

	return count, bw.Flush()
}

func writeSynthetic(logger *zap.Logger, w io.Writer, start time.Time, duration time.Duration, seed int64, mu, sigma float64) (int, error) {
	rng := rand.New(rand.NewSource(seed))
	generator := synthetic.NewBTCUSDTCandleGenerator(logger, rng, start, duration, mu, sigma)

	bw := bufio.NewWriter(w)
	count := 0
	for _, candle := range generator.Generate() {
		if err := historical.WriteCandles(bw, historical.FromCandle(candle)); err != nil {
			return count, err
		}
		count++
	}
	return count, bw.Flush()
}
