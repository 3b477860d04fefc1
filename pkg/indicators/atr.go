package indicators

import (
	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

// Atr is a Wilder smoothed average true range.
type Atr struct {
	window int

	lastClose fixed.Point
	trueRange fixed.Point
	average   fixed.Point
	samples   int
}

func NewAtr(window int) *Atr {
	if window < 1 {
		window = 1
	}
	return &Atr{
		window:    window,
		lastClose: fixed.Zero,
		trueRange: fixed.Zero,
		average:   fixed.Zero,
	}
}

func (a *Atr) OnCandle(c common.Candle) {
	defer func() {
		a.lastClose = c.Close
	}()

	if a.lastClose.IsZero() {
		return
	}

	tr := c.High.Sub(c.Low).Abs()
	tr = fixed.Max(tr, c.High.Sub(a.lastClose).Abs())
	tr = fixed.Max(tr, c.Low.Sub(a.lastClose).Abs())
	a.trueRange = tr

	a.samples++
	if a.samples == 1 {
		a.average = tr
		return
	}
	a.average = a.average.MulInt64(int64(a.window - 1)).Add(tr).DivInt(a.window)
}

func (a *Atr) Value() fixed.Point {
	return a.average
}

func (a *Atr) TrueRange() fixed.Point {
	return a.trueRange
}

// Ready reports whether a full window of true ranges has been seen.
func (a *Atr) Ready() bool {
	return a.samples >= a.window
}

func (a *Atr) Reset() {
	a.lastClose = fixed.Zero
	a.trueRange = fixed.Zero
	a.average = fixed.Zero
	a.samples = 0
}
