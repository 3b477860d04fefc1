package synthetic

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

var ErrEof = errors.New("EOF")

// CandleGenerator produces candles whose closes follow a geometric brownian motion.
// Output is fully determined by the rng seed.
type CandleGenerator struct {
	rng *rand.Rand

	resolution time.Duration
	steps      int64
	t          int64

	drift     float64
	diffusion float64

	avgVolume      float64
	volumeVariance float64
	wickVariance   float64

	lastTime  time.Time
	lastPrice float64

	priceDigits  int
	volumeDigits int
}

// NewCandleGenerator takes annualized mu and sigma.
func NewCandleGenerator(rng *rand.Rand, startTime time.Time, startPrice float64, resolution time.Duration, mu, sigma float64, steps int64) *CandleGenerator {
	const secondsPerYear = 365.25 * 24 * 3600
	deltaT := resolution.Seconds() / secondsPerYear

	return &CandleGenerator{
		rng:        rng,
		resolution: resolution,
		steps:      steps,

		drift:     (mu - 0.5*sigma*sigma) * deltaT,
		diffusion: sigma * math.Sqrt(deltaT),

		avgVolume:      1,
		volumeVariance: 0.5,
		wickVariance:   0.3,

		lastTime:  startTime,
		lastPrice: startPrice,

		priceDigits:  2,
		volumeDigits: 4,
	}
}

func (g *CandleGenerator) SetVolumeParameters(avgVolume, variance float64) {
	g.avgVolume = avgVolume
	g.volumeVariance = variance
}

func (g *CandleGenerator) SetDigits(price, volume int) {
	g.priceDigits = price
	g.volumeDigits = volume
}

func (g *CandleGenerator) Next() (common.Candle, error) {
	if g.t >= g.steps {
		return common.Candle{}, ErrEof
	}

	open := g.lastPrice
	closePrice := open * math.Exp(g.drift+g.diffusion*g.rng.NormFloat64())

	wick := math.Abs(closePrice-open) + open*g.diffusion
	high := math.Max(open, closePrice) + math.Abs(g.rng.NormFloat64())*g.wickVariance*wick
	low := math.Min(open, closePrice) - math.Abs(g.rng.NormFloat64())*g.wickVariance*wick

	volume := g.avgVolume * math.Exp(g.rng.NormFloat64()*g.volumeVariance)

	candle := common.Candle{
		StartTime: g.lastTime,
		Open:      fixed.FromFloat64(open).Rescale(g.priceDigits),
		High:      fixed.FromFloat64(high).Rescale(g.priceDigits),
		Low:       fixed.FromFloat64(low).Rescale(g.priceDigits),
		Close:     fixed.FromFloat64(closePrice).Rescale(g.priceDigits),
		Volume:    fixed.FromFloat64(volume).Rescale(g.volumeDigits),
	}

	g.lastPrice = closePrice
	g.lastTime = g.lastTime.Add(g.resolution)
	g.t++

	return candle, nil
}

// Generate drains the generator.
func (g *CandleGenerator) Generate() []common.Candle {
	candles := make([]common.Candle, 0, g.steps-g.t)
	for {
		candle, err := g.Next()
		if err != nil {
			return candles
		}
		candles = append(candles, candle)
	}
}
