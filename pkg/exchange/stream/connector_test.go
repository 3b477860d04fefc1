package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

const (
	depthMessage = `{"stream":"btcusdt@depth5@100ms","data":{"lastUpdateId":1,"bids":[["99.5","1.0"],["99.0","2.0"],["98.0","3.0"]],"asks":[["100.5","1.5"],["101.0","2.5"]]}}`
	klineClosed  = `{"stream":"btcusdt@kline_1m","data":{"e":"kline","E":1,"s":"BTCUSDT","k":{"t":1609459200000,"T":1609459259999,"i":"1m","o":"100","c":"101","h":"102","l":"99","v":"5","x":true}}}`
	klineOpen    = `{"stream":"btcusdt@kline_1m","data":{"e":"kline","E":2,"s":"BTCUSDT","k":{"t":1609459260000,"T":1609459319999,"i":"1m","o":"101","c":"103","h":"104","l":"100","v":"1","x":false}}}`
)

func createMockWSServer(t *testing.T, messages ...string) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func TestConnector_Stream(t *testing.T) {
	server := createMockWSServer(t, depthMessage, klineClosed, klineOpen)
	c := NewConnector(zap.NewNop(), httpToWS(server.URL))
	c.Start(context.Background())
	defer func() { _ = c.Close() }()

	require.Eventually(t, func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return len(c.bids) > 0 && c.last != nil && c.last.Close.Eq(fixed.FromInt(103, 0))
	}, 5*time.Second, 10*time.Millisecond)

	price, err := c.FetchCurrentPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Eq(fixed.FromInt(100, 0)), price.String())

	bids, asks, err := c.FetchOrderBook(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, bids, 2)
	assert.Len(t, asks, 2)
	assert.Equal(t, "99.5", bids[0].Price.String())

	start := time.UnixMilli(1609459200000).UTC()
	candles, err := c.FetchHistoricalWindow(context.Background(), start, start.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, start, candles[0].StartTime)
	assert.Equal(t, "101", candles[0].Close.String())
}

func TestConnector_NoData(t *testing.T) {
	c := NewConnector(zap.NewNop(), "ws://127.0.0.1:1/stream")

	_, err := c.FetchCurrentPrice(context.Background())
	assert.ErrorIs(t, err, ErrNoMarketData)
	_, _, err = c.FetchOrderBook(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoMarketData)

	candles, err := c.FetchHistoricalWindow(context.Background(), time.Unix(0, 0), time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, candles)
	assert.NoError(t, c.Close())
}

func TestConnector_HandleRejectsUnknownStream(t *testing.T) {
	c := NewConnector(zap.NewNop(), "")
	assert.Error(t, c.handle([]byte(`{"stream":"btcusdt@trade","data":{}}`)))
	assert.Error(t, c.handle([]byte(`not json`)))
}

func TestConnector_ClosedKlineWindow(t *testing.T) {
	c := NewConnector(zap.NewNop(), "", WithWindowSize(2))
	base := int64(1609459200000)
	for i := int64(0); i < 3; i++ {
		msg := strings.Replace(klineClosed, `"t":1609459200000`, `"t":`+fixedMillis(base+i*60000), 1)
		require.NoError(t, c.handle([]byte(msg)))
	}
	// replay of the same closed kline replaces the newest entry
	require.NoError(t, c.handle([]byte(strings.Replace(klineClosed, `"t":1609459200000`, `"t":`+fixedMillis(base+120000), 1))))

	candles, err := c.FetchHistoricalWindow(context.Background(), time.Unix(0, 0), time.UnixMilli(base).Add(time.Hour), time.Minute)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, time.UnixMilli(base+60000).UTC(), candles[0].StartTime)
	assert.Equal(t, time.UnixMilli(base+120000).UTC(), candles[1].StartTime)
}

func TestStreamURL(t *testing.T) {
	url := StreamURL("wss://stream.binance.com:9443/", common.Pair{Base: "BTC", Quote: "USDT"}, 20, "1m")
	assert.Equal(t, "wss://stream.binance.com:9443/stream?streams=btcusdt@depth20@100ms/btcusdt@kline_1m", url)
}

func TestKlineInterval(t *testing.T) {
	interval, err := KlineInterval(15 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "15m", interval)

	interval, err = KlineInterval(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "1d", interval)

	_, err = KlineInterval(7 * time.Minute)
	assert.Error(t, err)
}

func TestPartialDepth(t *testing.T) {
	assert.Equal(t, 5, PartialDepth(1))
	assert.Equal(t, 10, PartialDepth(6))
	assert.Equal(t, 20, PartialDepth(100))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, baseDelay, backoff(0))
	assert.Equal(t, 2*baseDelay, backoff(1))
	assert.Equal(t, maxDelay, backoff(100))
}

func fixedMillis(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

func TestConnector_AdoptAfterCancel(t *testing.T) {
	server := createMockWSServer(t)
	c := NewConnector(zap.NewNop(), httpToWS(server.URL))

	conn, _, err := websocket.DefaultDialer.Dial(httpToWS(server.URL), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.adopt(ctx, conn), context.Canceled)
	c.mu.RLock()
	assert.Nil(t, c.conn)
	c.mu.RUnlock()
	assert.Error(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")), "connection must be closed")

	live, _, err := websocket.DefaultDialer.Dial(httpToWS(server.URL), nil)
	require.NoError(t, err)
	require.NoError(t, c.adopt(context.Background(), live))
	require.NoError(t, c.Close())
}
