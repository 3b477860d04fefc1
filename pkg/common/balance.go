package common

import (
	"time"

	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

type Balance struct {
	Asset     string      `json:"asset"`
	Free      fixed.Point `json:"free"`
	Total     fixed.Point `json:"total"`
	Valuation fixed.Point `json:"valuation"`
}

// BalanceSheet is the state of every asset at the end of a cycle.
type BalanceSheet struct {
	TimeStamp time.Time          `json:"ts"`
	Balances  map[string]Balance `json:"balances"`
	Equity    fixed.Point        `json:"equity"`
}

type Pair struct {
	Base  string `json:"base" yaml:"base"`
	Quote string `json:"quote" yaml:"quote"`
}

func (p Pair) Symbol() string {
	return p.Base + p.Quote
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}
