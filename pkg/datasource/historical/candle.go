package historical

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

// BinaryCandle is the on disk record, little endian, sorted by TimeStamp (unix ns).
type BinaryCandle struct {
	TimeStamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ToCandle fails on NaN or infinite values, the record is degraded.
func (b BinaryCandle) ToCandle(candle *common.Candle) error {
	candle.StartTime = time.Unix(0, b.TimeStamp).UTC()
	for _, field := range []struct {
		dst *fixed.Point
		src float64
	}{
		{&candle.Open, b.Open},
		{&candle.High, b.High},
		{&candle.Low, b.Low},
		{&candle.Close, b.Close},
		{&candle.Volume, b.Volume},
	} {
		v, err := fixed.NewFromFloat64(field.src)
		if err != nil {
			return fmt.Errorf("record at %s: %w", candle.StartTime.Format(time.RFC3339), err)
		}
		*field.dst = v
	}
	return nil
}

func FromCandle(candle common.Candle) BinaryCandle {
	f := func(p fixed.Point) float64 {
		v, _ := p.Float64()
		return v
	}
	return BinaryCandle{
		TimeStamp: candle.StartTime.UnixNano(),
		Open:      f(candle.Open),
		High:      f(candle.High),
		Low:       f(candle.Low),
		Close:     f(candle.Close),
		Volume:    f(candle.Volume),
	}
}

func WriteCandles(w io.Writer, candles ...BinaryCandle) error {
	for i := range candles {
		if err := binary.Write(w, binary.LittleEndian, candles[i]); err != nil {
			return fmt.Errorf("unable to write candle %d: %w", i, err)
		}
	}
	return nil
}
