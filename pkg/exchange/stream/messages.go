package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

// envelope is the combined stream wrapper {"stream": ..., "data": ...}.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type depthEvent struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

type klineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		Closed    bool   `json:"x"`
	} `json:"k"`
}

func parseLevels(raw [][2]string) ([]common.BookLevel, error) {
	levels := make([]common.BookLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := fixed.Parse(pair[0])
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", pair[0], err)
		}
		volume, err := fixed.Parse(pair[1])
		if err != nil {
			return nil, fmt.Errorf("invalid volume %q: %w", pair[1], err)
		}
		levels = append(levels, common.BookLevel{Price: price, Volume: volume})
	}
	return levels, nil
}

func (k klineEvent) candle() (common.Candle, error) {
	candle := common.Candle{StartTime: time.UnixMilli(k.Kline.StartTime).UTC()}
	for _, field := range []struct {
		dst *fixed.Point
		src string
	}{
		{&candle.Open, k.Kline.Open},
		{&candle.High, k.Kline.High},
		{&candle.Low, k.Kline.Low},
		{&candle.Close, k.Kline.Close},
		{&candle.Volume, k.Kline.Volume},
	} {
		v, err := fixed.Parse(field.src)
		if err != nil {
			return common.Candle{}, fmt.Errorf("invalid kline value %q: %w", field.src, err)
		}
		*field.dst = v
	}
	return candle, nil
}

// StreamURL builds the combined stream url for a partial depth and a kline stream.
func StreamURL(base string, pair common.Pair, depth int, interval string) string {
	symbol := strings.ToLower(pair.Symbol())
	return fmt.Sprintf("%s/stream?streams=%s@depth%d@100ms/%s@kline_%s", strings.TrimRight(base, "/"), symbol, depth, symbol, interval)
}

var klineIntervals = map[time.Duration]string{
	time.Second:      "1s",
	time.Minute:      "1m",
	3 * time.Minute:  "3m",
	5 * time.Minute:  "5m",
	15 * time.Minute: "15m",
	30 * time.Minute: "30m",
	time.Hour:        "1h",
	2 * time.Hour:    "2h",
	4 * time.Hour:    "4h",
	6 * time.Hour:    "6h",
	8 * time.Hour:    "8h",
	12 * time.Hour:   "12h",
	24 * time.Hour:   "1d",
}

// KlineInterval maps a candle resolution to the stream interval name.
func KlineInterval(resolution time.Duration) (string, error) {
	if interval, ok := klineIntervals[resolution]; ok {
		return interval, nil
	}
	return "", fmt.Errorf("no kline stream for resolution %s", resolution)
}

// PartialDepth rounds depth up to a level count the partial depth stream offers.
func PartialDepth(depth int) int {
	switch {
	case depth <= 5:
		return 5
	case depth <= 10:
		return 10
	default:
		return 20
	}
}
