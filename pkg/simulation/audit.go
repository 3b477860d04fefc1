package simulation

import (
	"time"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

// Window is the equity range observed within one audit interval.
type Window struct {
	Start time.Time
	Open  fixed.Point
	High  fixed.Point
	Low   fixed.Point
	Close fixed.Point
}

type Audit struct {
	interval time.Duration

	first   *common.BalanceSheet
	last    *common.BalanceSheet
	windows []Window

	peak        fixed.Point
	maxDrawdown fixed.Point

	fills     int
	buyFills  int
	sellFills int
	volume    fixed.Point
	fees      map[string]fixed.Point
	feesQuote fixed.Point
}

func NewAudit(interval time.Duration) *Audit {
	return &Audit{
		interval:    interval,
		peak:        fixed.Zero,
		maxDrawdown: fixed.Zero,
		volume:      fixed.Zero,
		fees:        make(map[string]fixed.Point),
		feesQuote:   fixed.Zero,
	}
}

func (a *Audit) AddSheet(sheet common.BalanceSheet) {
	if a.first == nil {
		first := sheet
		a.first = &first
	}
	last := sheet
	a.last = &last

	equity := sheet.Equity
	start := sheet.TimeStamp.Truncate(a.interval)
	if n := len(a.windows); n == 0 || !a.windows[n-1].Start.Equal(start) {
		a.windows = append(a.windows, Window{Start: start, Open: equity, High: equity, Low: equity, Close: equity})
	} else {
		w := &a.windows[n-1]
		w.High = fixed.Max(w.High, equity)
		w.Low = fixed.Min(w.Low, equity)
		w.Close = equity
	}

	if equity.Gt(a.peak) {
		a.peak = equity
	}
	if a.peak.IsPositive() {
		if drawdown := a.peak.Sub(equity).Div(a.peak); drawdown.Gt(a.maxDrawdown) {
			a.maxDrawdown = drawdown
		}
	}
}

func (a *Audit) AddFill(fill common.Fill) {
	a.fills++
	if fill.Side == common.OrderSideBuy {
		a.buyFills++
	} else {
		a.sellFills++
	}
	a.volume = a.volume.Add(fill.Volume)

	paid, ok := a.fees[fill.FeeAsset]
	if !ok {
		paid = fixed.Zero
	}
	a.fees[fill.FeeAsset] = paid.Add(fill.Fee)

	// buy fees are charged in base
	fee := fill.Fee
	if fill.Side == common.OrderSideBuy {
		fee = fee.Mul(fill.Price)
	}
	a.feesQuote = a.feesQuote.Add(fee)
}

func (a *Audit) Windows() []Window {
	windows := make([]Window, len(a.windows))
	copy(windows, a.windows)
	return windows
}

func (a *Audit) GenerateReport() Report {
	report := Report{
		InitialValuation: fixed.Zero,
		FinalValuation:   fixed.Zero,
		TotalProfit:      fixed.Zero,
		MaxDrawdown:      a.maxDrawdown.MulInt64(100).Rescale(2),
		TotalFills:       a.fills,
		BuyFills:         a.buyFills,
		SellFills:        a.sellFills,
		FilledVolume:     a.volume,
		FeesPaid:         make(map[string]fixed.Point, len(a.fees)),
		FeesValuation:    a.feesQuote,
		Windows:          a.Windows(),
	}
	for asset, fee := range a.fees {
		report.FeesPaid[asset] = fee
	}

	if a.first == nil {
		return report
	}

	report.StartDate = a.first.TimeStamp
	report.EndDate = a.last.TimeStamp
	report.InitialValuation = a.first.Equity
	report.FinalValuation = a.last.Equity
	if report.InitialValuation.IsPositive() {
		report.TotalProfit = report.FinalValuation.Div(report.InitialValuation).Sub(fixed.One).MulInt64(100).Rescale(2)
	}
	return report
}
