package simulation

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/utility"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

type Report struct {
	ExecutionID      utility.ExecutionID
	Cycles           int64
	StartDate        time.Time
	EndDate          time.Time
	InitialValuation fixed.Point
	FinalValuation   fixed.Point
	TotalProfit      fixed.Point
	MaxDrawdown      fixed.Point
	TotalOrders      int
	ClosedOrders     int
	TotalFills       int
	BuyFills         int
	SellFills        int
	FilledVolume     fixed.Point
	FeesPaid         map[string]fixed.Point
	FeesValuation    fixed.Point
	Windows          []Window
}

func (report Report) Print(logger *zap.Logger) {
	logger.Info("performance report",
		zap.Stringer("execution_id", report.ExecutionID),
		zap.Int64("cycles", report.Cycles),
		zap.Time("start", report.StartDate),
		zap.Time("end", report.EndDate),
		zap.String("initial_valuation", report.InitialValuation.String()),
		zap.String("final_valuation", report.FinalValuation.String()),
		zap.String("total_profit", fmt.Sprintf("%s%%", report.TotalProfit.String())),
		zap.String("max_drawdown", fmt.Sprintf("%s%%", report.MaxDrawdown.String())),
		zap.Int("windows", len(report.Windows)),
	)

	fees := make([]string, 0, len(report.FeesPaid))
	for asset := range report.FeesPaid {
		fees = append(fees, asset)
	}
	sort.Strings(fees)

	fields := []zap.Field{
		zap.Int("total_orders", report.TotalOrders),
		zap.Int("closed_orders", report.ClosedOrders),
		zap.Int("total_fills", report.TotalFills),
		zap.Int("buy_fills", report.BuyFills),
		zap.Int("sell_fills", report.SellFills),
		zap.String("filled_volume", report.FilledVolume.String()),
		zap.String("fees_valuation", report.FeesValuation.String()),
	}
	for _, asset := range fees {
		fields = append(fields, zap.String("fees_"+asset, report.FeesPaid[asset].String()))
	}
	logger.Info("trade statistics", fields...)
}
