package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/datasource/historical"
)

const klines = `open_time,open,high,low,close,volume,close_time
1609459200000,100,110,95,105,1.5,1609459259999
1609459260000,105,108,101,102,2.25,1609459319999
1609459320000,102,104,99,103,0.75,1609459379999
`

func TestConvertKlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BTCUSDT.bin")
	f, err := os.Create(path)
	require.NoError(t, err)

	n, err := convertKlines(strings.NewReader(klines), f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, 3, n)

	r, err := historical.OpenCandleReader(zap.NewNop(), path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	start := time.UnixMilli(1609459200000)
	candles, err := r.Load(context.Background(), start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.True(t, candles[0].StartTime.Equal(start))
	assert.True(t, candles[2].StartTime.Equal(start.Add(2*time.Minute)))

	open, _ := candles[1].Open.Float64()
	volume, _ := candles[1].Volume.Float64()
	assert.InDelta(t, 105, open, 1e-9)
	assert.InDelta(t, 2.25, volume, 1e-9)
}

func TestConvertKlines_Microseconds(t *testing.T) {
	var buf bytes.Buffer
	n, err := convertKlines(strings.NewReader("1735689600000000,1,1,1,1,1\n1735689660000000,1,1,1,1,1\n"), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotZero(t, buf.Len())
}

func TestConvertKlines_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unsorted", "1609459260000,1,1,1,1,1\n1609459200000,1,1,1,1,1\n"},
		{"short row", "1609459200000,1,1,1\n"},
		{"bad price", "1609459200000,1,x,1,1,1\n"},
		{"nan volume", "1609459200000,1,1,1,1,NaN\n"},
		{"infinite close", "1609459200000,1,1,1,+Inf,1\n"},
		{"bad time after header", "open_time,o,h,l,c,v\nnope,1,1,1,1,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := convertKlines(strings.NewReader(tt.input), &buf)
			assert.Error(t, err)
		})
	}
}

func TestWriteSynthetic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var first, second bytes.Buffer
	n, err := writeSynthetic(zap.NewNop(), &first, start, 10*time.Minute, 7, 0.1, 0.6)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = writeSynthetic(zap.NewNop(), &second, start, 10*time.Minute, 7, 0.1, 0.6)
	require.NoError(t, err)
	assert.Equal(t, first.Bytes(), second.Bytes())
}
