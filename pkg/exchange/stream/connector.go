package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/circular"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

const (
	defaultWindowSize   = 1440
	defaultInterval     = time.Minute
	defaultReadTimeout  = 60 * time.Second
	defaultHandshake    = 10 * time.Second
	depthStreamFragment = "@depth"
	klineStreamFragment = "@kline"
)

var ErrNoMarketData = errors.New("no market data")

type Option func(*Connector)

// WithWindowSize bounds the number of closed candles kept in memory.
func WithWindowSize(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.windowSize = n
		}
	}
}

// WithInterval sets the kline interval of the subscribed stream.
func WithInterval(interval time.Duration) Option {
	return func(c *Connector) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Connector) {
		c.readTimeout = timeout
	}
}

// Connector keeps the latest book and a window of closed candles from a websocket
// market data stream. It is read only and safe for concurrent use.
type Connector struct {
	logger      *zap.Logger
	url         string
	windowSize  int
	interval    time.Duration
	readTimeout time.Duration

	mu      sync.RWMutex
	conn    *websocket.Conn
	bids    []common.BookLevel
	asks    []common.BookLevel
	candles *circular.Buffer[common.Candle]
	last    *common.Candle

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConnector(logger *zap.Logger, url string, options ...Option) *Connector {
	c := &Connector{
		logger:      logger,
		url:         url,
		windowSize:  defaultWindowSize,
		interval:    defaultInterval,
		readTimeout: defaultReadTimeout,
	}

	for _, option := range options {
		option(c)
	}

	c.candles = circular.NewBuffer[common.Candle](uint(c.windowSize))
	return c
}

// Start runs the reader loop in the background and reconnects with backoff until
// ctx is done or Close is called.
func (c *Connector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.runLoop(ctx)
}

func (c *Connector) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.closeConn()
	c.wg.Wait()
	return nil
}

func (c *Connector) runLoop(ctx context.Context) {
	defer c.wg.Done()
	retry := 0

	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.connect(ctx); err != nil {
			delay := backoff(retry)
			c.logger.Warn("stream connection failed", zap.Error(err), zap.Int("retry", retry), zap.Duration("delay", delay))
			retry++

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		c.process(ctx)
	}
}

func (c *Connector) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshake}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	if err := c.adopt(ctx, conn); err != nil {
		return err
	}

	c.logger.Info("stream connected", zap.String("url", c.url))
	return nil
}

// adopt stores a freshly dialed connection. A Close that ran during the dial has
// already cancelled ctx, the connection is closed instead of stored.
func (c *Connector) adopt(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return err
	}
	c.conn = conn
	return nil
}

func (c *Connector) process(ctx context.Context) {
	for ctx.Err() == nil {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		if c.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("stream read error", zap.Error(err))
			}
			c.closeConn()
			return
		}

		if err := c.handle(msg); err != nil {
			c.logger.Debug("dropping stream message", zap.Error(err))
		}
	}
}

func (c *Connector) handle(msg []byte) error {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("invalid envelope: %w", err)
	}

	switch {
	case strings.Contains(env.Stream, depthStreamFragment):
		var event depthEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			return fmt.Errorf("invalid depth event: %w", err)
		}
		bids, err := parseLevels(event.Bids)
		if err != nil {
			return err
		}
		asks, err := parseLevels(event.Asks)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.bids, c.asks = bids, asks
		c.mu.Unlock()
	case strings.Contains(env.Stream, klineStreamFragment):
		var event klineEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			return fmt.Errorf("invalid kline event: %w", err)
		}
		candle, err := event.candle()
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.last = &candle
		if event.Kline.Closed {
			if !c.candles.IsEmpty() && c.candles.Get(0).StartTime.Equal(candle.StartTime) {
				c.candles.Replace(candle)
			} else {
				c.candles.Push(candle)
			}
		}
		c.mu.Unlock()
	default:
		return fmt.Errorf("unknown stream %q", env.Stream)
	}
	return nil
}

func (c *Connector) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// FetchCurrentPrice is the mid of the best bid and ask, or the last traded close when
// the book is one sided.
func (c *Connector) FetchCurrentPrice(_ context.Context) (fixed.Point, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.bids) > 0 && len(c.asks) > 0 {
		return c.bids[0].Price.Add(c.asks[0].Price).DivInt(2), nil
	}
	if c.last != nil {
		return c.last.Close, nil
	}
	return fixed.Zero, ErrNoMarketData
}

func (c *Connector) FetchOrderBook(_ context.Context, depth int) ([]common.BookLevel, []common.BookLevel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.bids) == 0 && len(c.asks) == 0 {
		return nil, nil, ErrNoMarketData
	}
	return clip(c.bids, depth), clip(c.asks, depth), nil
}

// FetchHistoricalWindow returns the closed candles with start time in [start, end),
// merged to resolution when it is coarser than the stream interval.
func (c *Connector) FetchHistoricalWindow(_ context.Context, start, end time.Time, resolution time.Duration) ([]common.Candle, error) {
	c.mu.RLock()
	all := c.candles.Chronological()
	c.mu.RUnlock()

	var window []common.Candle
	for _, candle := range all {
		if !candle.StartTime.Before(start) && candle.StartTime.Before(end) {
			window = append(window, candle)
		}
	}
	if resolution > c.interval {
		window = common.Resample(window, resolution)
	}
	return window, nil
}

func clip(levels []common.BookLevel, depth int) []common.BookLevel {
	if depth > 0 && len(levels) > depth {
		levels = levels[:depth]
	}
	out := make([]common.BookLevel, len(levels))
	copy(out, levels)
	return out
}
