package common

import (
	"time"

	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

type BookLevel struct {
	Price  fixed.Point `json:"price"`
	Volume fixed.Point `json:"volume"`
}

// Snapshot is the market state of one cycle. Bids are ordered best (highest) first,
// asks best (lowest) first. Replay snapshots carry a candle and no book.
type Snapshot struct {
	TimeStamp    time.Time   `json:"ts"`
	CurrentPrice fixed.Point `json:"current_price"`
	Bids         []BookLevel `json:"bids,omitempty"`
	Asks         []BookLevel `json:"asks,omitempty"`
	Candle       *Candle     `json:"candle,omitempty"`
}

func (s Snapshot) HasBook() bool {
	return len(s.Bids) > 0 || len(s.Asks) > 0
}

// PriceRange returns the lowest and highest price a resting order could match against
// in this snapshot, covering both the book and the candle body.
func (s Snapshot) PriceRange() (low, high fixed.Point, ok bool) {
	extend := func(p fixed.Point) {
		if !ok {
			low, high, ok = p, p, true
			return
		}
		low = fixed.Min(low, p)
		high = fixed.Max(high, p)
	}
	for _, level := range s.Bids {
		extend(level.Price)
	}
	for _, level := range s.Asks {
		extend(level.Price)
	}
	if s.Candle != nil {
		bodyLow, bodyHigh := s.Candle.Body()
		extend(bodyLow)
		extend(bodyHigh)
	}
	return low, high, ok
}
