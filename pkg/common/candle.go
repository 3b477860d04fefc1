package common

import (
	"time"

	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

type Candle struct {
	StartTime time.Time   `json:"start_time"`
	Open      fixed.Point `json:"open"`
	High      fixed.Point `json:"high"`
	Low       fixed.Point `json:"low"`
	Close     fixed.Point `json:"close"`
	Volume    fixed.Point `json:"volume"`
}

func (c Candle) IsBullish() bool {
	return c.Close.Gt(c.Open)
}

func (c Candle) IsBearish() bool {
	return c.Close.Lt(c.Open)
}

// Body returns the open/close range, low end first.
func (c Candle) Body() (fixed.Point, fixed.Point) {
	if c.IsBearish() {
		return c.Close, c.Open
	}
	return c.Open, c.Close
}

// Resample merges sorted candles into buckets of the given resolution. Buckets are
// aligned to the resolution.
func Resample(candles []Candle, resolution time.Duration) []Candle {
	var out []Candle
	for _, c := range candles {
		bucket := c.StartTime.Truncate(resolution)
		if n := len(out); n > 0 && out[n-1].StartTime.Equal(bucket) {
			last := &out[n-1]
			last.High = fixed.Max(last.High, c.High)
			last.Low = fixed.Min(last.Low, c.Low)
			last.Close = c.Close
			last.Volume = last.Volume.Add(c.Volume)
			continue
		}
		c.StartTime = bucket
		out = append(out, c)
	}
	return out
}
