package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

func newTestAccount(t *testing.T, base, quote, fee string) *Account {
	t.Helper()
	a := NewAccount(zap.NewNop(), testPair, WithFeeRate(fixed.MustParse(fee)))
	require.NoError(t, a.Deposit("BTC", fixed.MustParse(base)))
	require.NoError(t, a.Deposit("USDT", fixed.MustParse(quote)))
	return a
}

func level(price, volume string) common.BookLevel {
	return common.BookLevel{Price: fixed.MustParse(price), Volume: fixed.MustParse(volume)}
}

func candleSnapshot(ts time.Time, open, close string) common.Snapshot {
	c := &common.Candle{
		StartTime: ts,
		Open:      fixed.MustParse(open),
		High:      fixed.Max(fixed.MustParse(open), fixed.MustParse(close)),
		Low:       fixed.Min(fixed.MustParse(open), fixed.MustParse(close)),
		Close:     fixed.MustParse(close),
	}
	return common.Snapshot{TimeStamp: ts, CurrentPrice: c.Open, Candle: c}
}

func place(t *testing.T, a *Account, req common.OrderRequest) common.OrderId {
	t.Helper()
	id, ok, err := a.PlaceOrder(req)
	require.NoError(t, err)
	require.True(t, ok)
	return id
}

func TestMatcher_MarketBuyCandle(t *testing.T) {
	a := newTestAccount(t, "0", "200", "0.001")
	snapshot := candleSnapshot(time.Unix(0, 0), "100", "101")
	a.Observe(snapshot)

	id := place(t, a, common.OrderRequest{
		Type: common.OrderTypeMarket, Side: common.OrderSideBuy,
		Price: fixed.FromInt(100, 0), Size: fixed.One,
	})

	fills, err := a.Match(context.Background(), snapshot)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assertPoint(t, "100", fills[0].Price)
	assertPoint(t, "1", fills[0].Volume)

	assertPoint(t, "0.999", a.Ledger().Total("BTC"))
	assertPoint(t, "100", a.Ledger().Total("USDT"))

	order, _ := a.Registry().Get(id)
	assert.True(t, order.IsClosed())
	assertPoint(t, "0.001", order.FeesPaid)
}

func TestMatcher_MarketBuySweepsAsks(t *testing.T) {
	a := newTestAccount(t, "0", "1000", "0.001")
	snapshot := common.Snapshot{
		CurrentPrice: fixed.FromInt(100, 0),
		Bids:         []common.BookLevel{level("99", "5")},
		Asks:         []common.BookLevel{level("100", "0.5"), level("101", "0.5"), level("102", "1")},
	}
	a.Observe(snapshot)

	place(t, a, common.OrderRequest{
		Type: common.OrderTypeMarket, Side: common.OrderSideBuy,
		Price: fixed.FromInt(100, 0), Size: fixed.MustParse("1.2"),
	})

	fills, err := a.Match(context.Background(), snapshot)
	require.NoError(t, err)
	require.Len(t, fills, 3)

	fee := fixed.Zero
	for _, f := range fills {
		fee = fee.Add(f.Fee)
	}
	assertPoint(t, "0.0012", fee)
	assertPoint(t, "1.1988", a.Ledger().Total("BTC"))
	assertPoint(t, "879.1", a.Ledger().Total("USDT"))
	assertPoint(t, "879.1", a.Ledger().Free("USDT"))

	// the snapshot itself is untouched
	assertPoint(t, "0.5", snapshot.Asks[0].Volume)
}

func TestMatcher_MarketSellSweepsBids(t *testing.T) {
	a := newTestAccount(t, "2", "0", "0.01")
	snapshot := common.Snapshot{
		CurrentPrice: fixed.FromInt(100, 0),
		Bids:         []common.BookLevel{level("100", "1"), level("99", "3")},
	}
	a.Observe(snapshot)

	place(t, a, common.OrderRequest{Type: common.OrderTypeMarket, Side: common.OrderSideSell, Size: fixed.FromInt(2, 0)})

	fills, err := a.Match(context.Background(), snapshot)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assertPoint(t, "0", a.Ledger().Total("BTC"))
	// (100 + 99) * 0.99
	assertPoint(t, "197.01", a.Ledger().Total("USDT"))
}

func TestMatcher_MarketBuyCappedByFunds(t *testing.T) {
	a := newTestAccount(t, "0", "100", "0")
	a.Observe(common.Snapshot{CurrentPrice: fixed.FromInt(50, 0)})

	id := place(t, a, common.OrderRequest{Type: common.OrderTypeMarket, Side: common.OrderSideBuy, Size: fixed.FromInt(2, 0)})

	snapshot := common.Snapshot{
		CurrentPrice: fixed.FromInt(100, 0),
		Asks:         []common.BookLevel{level("100", "5")},
	}
	fills, err := a.Match(context.Background(), snapshot)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assertPoint(t, "1", fills[0].Volume)

	order, _ := a.Registry().Get(id)
	assert.Equal(t, common.OrderStatusOpen, order.Status)
	assertPoint(t, "1", order.RemainingSize)
	assertPoint(t, "0", a.Ledger().Free("USDT"))
}

func TestMatcher_LimitBookExactLevel(t *testing.T) {
	a := newTestAccount(t, "0", "1000", "0.001")
	snapshot := common.Snapshot{
		CurrentPrice: fixed.FromInt(100, 0),
		Bids:         []common.BookLevel{level("98", "10")},
		Asks:         []common.BookLevel{level("99", "1"), level("100", "10")},
	}
	a.Observe(snapshot)

	first := place(t, a, limitBuy("99", "2"))
	second := place(t, a, limitBuy("99", "1"))
	untouched := place(t, a, limitBuy("98.5", "1"))
	assertPoint(t, "604.5", a.Ledger().Free("USDT"))

	fills, err := a.Match(context.Background(), snapshot)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, first, fills[0].OrderId)
	assertPoint(t, "1", fills[0].Volume)

	order, _ := a.Registry().Get(first)
	assertPoint(t, "1", order.RemainingSize)
	order, _ = a.Registry().Get(second)
	assertPoint(t, "1", order.RemainingSize)
	order, _ = a.Registry().Get(untouched)
	assertPoint(t, "1", order.RemainingSize)

	assertPoint(t, "901", a.Ledger().Total("USDT"))
	assertPoint(t, "604.5", a.Ledger().Free("USDT"))
	assertPoint(t, "0.999", a.Ledger().Total("BTC"))
}

func TestMatcher_LimitCandleBody(t *testing.T) {
	tests := []struct {
		name   string
		open   string
		close  string
		price  string
		filled bool
	}{
		{name: "inside bearish body", open: "100", close: "95", price: "97", filled: true},
		{name: "inside bullish body", open: "95", close: "100", price: "97", filled: true},
		{name: "at open", open: "100", close: "95", price: "100", filled: true},
		{name: "at close", open: "100", close: "95", price: "95", filled: true},
		{name: "below body", open: "100", close: "95", price: "94.99", filled: false},
		{name: "above body", open: "100", close: "95", price: "100.01", filled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAccount(t, "0", "1000", "0")
			snapshot := candleSnapshot(time.Unix(60, 0), tt.open, tt.close)
			a.Observe(snapshot)

			id := place(t, a, limitBuy(tt.price, "1"))
			fills, err := a.Match(context.Background(), snapshot)
			require.NoError(t, err)

			order, _ := a.Registry().Get(id)
			if tt.filled {
				require.Len(t, fills, 1)
				assertPoint(t, tt.price, fills[0].Price)
				assert.True(t, order.IsClosed())
				assertPoint(t, "1", a.Ledger().Total("BTC"))
			} else {
				assert.Empty(t, fills)
				assert.Equal(t, common.OrderStatusOpen, order.Status)
				assertPoint(t, "1", order.RemainingSize)
			}
		})
	}
}

func TestMatcher_LimitSellReserved(t *testing.T) {
	a := newTestAccount(t, "2", "0", "0.001")
	snapshot := candleSnapshot(time.Unix(0, 0), "105", "112")
	a.Observe(snapshot)

	place(t, a, common.OrderRequest{
		Type: common.OrderTypeLimit, Side: common.OrderSideSell,
		Price: fixed.FromInt(110, 0), Size: fixed.FromInt(2, 0),
	})
	assertPoint(t, "0", a.Ledger().Free("BTC"))
	assertPoint(t, "2", a.Ledger().Total("BTC"))

	fills, err := a.Match(context.Background(), snapshot)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assertPoint(t, "0", a.Ledger().Total("BTC"))
	assertPoint(t, "219.78", a.Ledger().Total("USDT"))
	assertPoint(t, "219.78", a.Ledger().Free("USDT"))
	assert.Equal(t, "USDT", fills[0].FeeAsset)
}

func TestMatcher_MakerTakerFees(t *testing.T) {
	a := NewAccount(zap.NewNop(), testPair, WithMakerTakerFees(fixed.MustParse("0.0002"), fixed.MustParse("0.004")))
	require.NoError(t, a.Deposit("USDT", fixed.FromInt(1000, 0)))
	snapshot := candleSnapshot(time.Unix(0, 0), "100", "100")
	a.Observe(snapshot)

	place(t, a, limitBuy("100", "1"))
	place(t, a, common.OrderRequest{Type: common.OrderTypeMarket, Side: common.OrderSideBuy, Size: fixed.One})

	fills, err := a.Match(context.Background(), snapshot)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, common.OrderTypeMarket, fills[0].Type)
	assertPoint(t, "0.004", fills[0].Fee)
	assert.Equal(t, common.OrderTypeLimit, fills[1].Type)
	assertPoint(t, "0.0002", fills[1].Fee)
}

func TestMatcher_LimitBelowRangeStaysOpen(t *testing.T) {
	a := newTestAccount(t, "0", "1000", "0.001")
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	a.Observe(candleSnapshot(start, "100", "101"))
	id := place(t, a, limitBuy("50", "1"))

	prices := [][2]string{{"100", "101"}, {"101", "99"}, {"99", "98"}, {"98", "102"}, {"102", "103"}}
	for i, p := range prices {
		snapshot := candleSnapshot(start.Add(time.Duration(i)*time.Minute), p[0], p[1])
		snapshot.Bids = []common.BookLevel{level("97", "1")}
		snapshot.Asks = []common.BookLevel{level("104", "1")}
		a.Observe(snapshot)

		fills, err := a.Match(context.Background(), snapshot)
		require.NoError(t, err)
		assert.Empty(t, fills)
		a.Cleanup()

		order, _ := a.Registry().Get(id)
		assert.Equal(t, common.OrderStatusOpen, order.Status)
		assert.True(t, order.RemainingSize.Eq(order.Size))
	}
}

func TestMatcher_LimitInRange(t *testing.T) {
	m := NewMatcher(zap.NewNop(), fixed.Zero, fixed.Zero)
	l := newFundedLedger(t, "0", "1000")
	r := NewRegistry(zap.NewNop())

	snapshot := candleSnapshot(time.Unix(0, 0), "100", "105")
	assert.False(t, m.limitInRange(r, snapshot))

	_, _, err := r.Place(l, limitBuy("90", "1"))
	require.NoError(t, err)
	assert.False(t, m.limitInRange(r, snapshot))

	_, _, err = r.Place(l, limitBuy("100", "1"))
	require.NoError(t, err)
	assert.True(t, m.limitInRange(r, snapshot))

	assert.False(t, m.limitInRange(r, common.Snapshot{}))
}

func TestMatcher_LimitFilledAcrossCycles(t *testing.T) {
	a := newTestAccount(t, "0", "1000000", "0.0002")
	price := "12345.678901234567"

	first := common.Snapshot{
		TimeStamp:    time.Unix(60, 0),
		CurrentPrice: fixed.MustParse("12346"),
		Asks:         []common.BookLevel{level(price, "0.5")},
	}
	a.Observe(first)
	id := place(t, a, limitBuy(price, "1.23456789"))
	assertPoint(t, "15241.57875172", a.Registry().Reserved(id))
	assertPoint(t, "984758.42124828", a.Ledger().Free("USDT"))

	fills, err := a.Match(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assertPoint(t, "993827.16054938", a.Ledger().Total("USDT"))
	assertPoint(t, "984758.42124828", a.Ledger().Free("USDT"))
	a.Cleanup()

	second := first
	second.TimeStamp = time.Unix(120, 0)
	second.Asks = []common.BookLevel{level(price, "10")}
	a.Observe(second)

	fills, err = a.Match(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assertPoint(t, "0.73456789", fills[0].Volume)

	order, _ := a.Registry().Get(id)
	assert.True(t, order.IsClosed())
	assert.True(t, a.Registry().Reserved(id).IsZero())
	assertPoint(t, "984758.42124828", a.Ledger().Total("USDT"))
	assertPoint(t, "984758.42124828", a.Ledger().Free("USDT"))
	assertPoint(t, "1.23432097", a.Ledger().Total("BTC"))
	require.NoError(t, a.Ledger().Validate())
}
