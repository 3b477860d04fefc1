package synthetic

import (
	"math/rand"
	"time"

	"go.uber.org/zap"
)

func NewBTCUSDTCandleGenerator(logger *zap.Logger, rng *rand.Rand, startTime time.Time, duration time.Duration, mu, sigma float64) *CandleGenerator {
	const (
		btcUsdtStartPrice = 30000.0
		avgVolume         = 12.5
		volumeVariability = 0.65
		priceDigits       = 2
		volumeDigits      = 5
	)

	steps := int64(duration / time.Minute)
	generator := NewCandleGenerator(rng, startTime, btcUsdtStartPrice, time.Minute, mu, sigma, steps)
	generator.SetVolumeParameters(avgVolume, volumeVariability)
	generator.SetDigits(priceDigits, volumeDigits)

	logger.Debug("BTCUSDT synthetic candle generator configuration",
		zap.Duration("duration", duration),
		zap.Float64("mu_annual", mu),
		zap.Float64("sigma_annual", sigma),
		zap.Float64("start_price", btcUsdtStartPrice),
		zap.Int64("steps", steps),
		zap.Time("start_time", startTime))

	return generator
}
