package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

const (
	singleTable    = "data"
	chunkPrefix    = "DF"
	dayKeyLayout   = "20060102"
	hourKeyLayout  = "2006010215"
	candleColumns  = `"startTime", "open", "high", "low", "close", "volume"`
	startTimeQuery = `SELECT data_type FROM information_schema.columns WHERE table_name = ? AND lower(column_name) = 'starttime'`
)

var (
	ErrNoCandleTables = errors.New("no candle tables")

	// errDegradedRow marks NaN, infinite or NULL values. Such rows are left out of a
	// load, the replay counts them as missing.
	errDegradedRow = errors.New("degraded row")
)

type layout int

const (
	layoutSingle layout = iota
	layoutDaily
	layoutHourly
)

// Reader serves candle ranges out of a DuckDB database holding either one "data" table
// or chunk tables named DF + YYYYMMDD[HH].
type Reader struct {
	logger *zap.Logger
	path   string
	db     *sql.DB

	layout      layout
	single      string
	chunks      map[string]string
	timeIsEpoch bool
}

// Open opens the database read only and detects its layout.
func Open(ctx context.Context, logger *zap.Logger, path string) (*Reader, error) {
	db, err := sql.Open("duckdb", path+"?access_mode=read_only")
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	r := &Reader{
		logger: logger,
		path:   path,
		db:     db,
		chunks: make(map[string]string),
	}
	if err := r.index(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) index(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT table_name FROM information_schema.tables ORDER BY table_name`)
	if err != nil {
		return fmt.Errorf("error listing tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("error scanning table name: %w", err)
		}
		if strings.EqualFold(name, singleTable) {
			r.single = name
			continue
		}
		key, ok := strings.CutPrefix(name, chunkPrefix)
		if !ok {
			continue
		}
		switch len(key) {
		case len(dayKeyLayout):
			r.chunks[key] = name
		case len(hourKeyLayout):
			r.chunks[key] = name
			r.layout = layoutHourly
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error listing tables: %w", err)
	}

	sample := r.single
	switch {
	case r.single != "":
		r.layout = layoutSingle
	case len(r.chunks) > 0:
		if r.layout != layoutHourly {
			r.layout = layoutDaily
		}
		keys := make([]string, 0, len(r.chunks))
		for key := range r.chunks {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		sample = r.chunks[keys[0]]
	default:
		return fmt.Errorf("dataset %q: %w", r.path, ErrNoCandleTables)
	}

	var dataType string
	if err := r.db.QueryRowContext(ctx, startTimeQuery, sample).Scan(&dataType); err != nil {
		return fmt.Errorf("error reading startTime column of %s: %w", sample, err)
	}
	r.timeIsEpoch = !strings.HasPrefix(strings.ToUpper(dataType), "TIMESTAMP")

	r.logger.Debug("duckdb dataset indexed",
		zap.String("path", r.path),
		zap.String("table", r.single),
		zap.Int("chunks", len(r.chunks)),
		zap.Bool("epoch_ms", r.timeIsEpoch))
	return nil
}

func (r *Reader) ChunkLength() time.Duration {
	if r.layout == layoutHourly {
		return time.Hour
	}
	return 24 * time.Hour
}

// Load returns the candles with start time in [from, to), sorted by start time.
func (r *Reader) Load(ctx context.Context, from, to time.Time) ([]common.Candle, error) {
	if r.layout == layoutSingle {
		query := fmt.Sprintf(`SELECT %s FROM "%s" WHERE "startTime" >= ? AND "startTime" < ? ORDER BY "startTime"`, candleColumns, r.single)
		return r.query(ctx, query, from, to, r.bound(from), r.bound(to))
	}

	var candles []common.Candle
	step := r.ChunkLength()
	for chunk := from.UTC().Truncate(step); chunk.Before(to); chunk = chunk.Add(step) {
		keyLayout := dayKeyLayout
		if r.layout == layoutHourly {
			keyLayout = hourKeyLayout
		}
		table, ok := r.chunks[chunk.Format(keyLayout)]
		if !ok {
			continue
		}
		query := fmt.Sprintf(`SELECT %s FROM "%s" ORDER BY "startTime"`, candleColumns, table)
		chunkCandles, err := r.query(ctx, query, from, to)
		if err != nil {
			return nil, err
		}
		candles = append(candles, chunkCandles...)
	}
	return candles, nil
}

func (r *Reader) bound(t time.Time) any {
	if r.timeIsEpoch {
		return t.UnixMilli()
	}
	return t.UTC()
}

func (r *Reader) query(ctx context.Context, query string, from, to time.Time, args ...any) ([]common.Candle, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error preparing query: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var (
		candles  []common.Candle
		degraded int
	)
rowLoop:
	for rows.Next() {
		var startTime, open, high, low, closePrice, volume any
		if err := rows.Scan(&startTime, &open, &high, &low, &closePrice, &volume); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}

		var candle common.Candle
		if candle.StartTime, err = toTime(startTime); err != nil {
			return nil, err
		}
		if candle.StartTime.Before(from) || !candle.StartTime.Before(to) {
			continue
		}
		for _, field := range []struct {
			dst *fixed.Point
			src any
		}{
			{&candle.Open, open},
			{&candle.High, high},
			{&candle.Low, low},
			{&candle.Close, closePrice},
			{&candle.Volume, volume},
		} {
			if *field.dst, err = toPoint(field.src); err != nil {
				if errors.Is(err, errDegradedRow) {
					degraded++
					continue rowLoop
				}
				return nil, err
			}
		}
		candles = append(candles, candle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	if degraded > 0 {
		r.logger.Warn("degraded rows skipped", zap.Int("rows", degraded), zap.Time("from", from), zap.Time("to", to))
	}
	return candles, nil
}

func (r *Reader) Close() error {
	return r.db.Close()
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int32:
		return time.UnixMilli(int64(t)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported startTime value %v (%T)", v, v)
	}
}

func toPoint(v any) (fixed.Point, error) {
	switch n := v.(type) {
	case float64:
		return fromFloat(n)
	case float32:
		return fromFloat(float64(n))
	case int64:
		return fixed.New(n, 0), nil
	case int32:
		return fixed.New(int64(n), 0), nil
	case string:
		return fixed.Parse(n)
	case []byte:
		return fixed.Parse(string(n))
	case nil:
		return fixed.Zero, errDegradedRow
	case interface{ Float64() float64 }:
		return fromFloat(n.Float64())
	default:
		return fixed.Zero, fmt.Errorf("unsupported numeric value %v (%T)", v, v)
	}
}

func fromFloat(f float64) (fixed.Point, error) {
	p, err := fixed.NewFromFloat64(f)
	if err != nil {
		return fixed.Zero, fmt.Errorf("%v: %w", f, errDegradedRow)
	}
	return p, nil
}
