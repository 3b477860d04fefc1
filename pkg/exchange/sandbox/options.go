package sandbox

import (
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

type Option func(*Account)

// WithFeeRate applies the same rate to maker and taker fills.
func WithFeeRate(rate fixed.Point) Option {
	return func(a *Account) {
		a.makerFee = rate
		a.takerFee = rate
	}
}

func WithMakerTakerFees(maker, taker fixed.Point) Option {
	return func(a *Account) {
		a.makerFee = maker
		a.takerFee = taker
	}
}
