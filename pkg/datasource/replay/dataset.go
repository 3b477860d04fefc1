package replay

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/data/duckdb"
	"github.com/peter-kozarec/vexchange/pkg/datasource/historical"
)

const binaryExtension = ".bin"

// Dataset is a recorded candle history split into chunks of equal length.
type Dataset interface {
	ChunkLength() time.Duration
	// Load returns the candles with start time in [from, to), sorted by start time.
	Load(ctx context.Context, from, to time.Time) ([]common.Candle, error)
	Close() error
}

type Opener func(ctx context.Context, logger *zap.Logger, location string) (Dataset, error)

// OpenDataset picks the reader by location: *.bin files are memory mapped binary
// candles, anything else is a DuckDB database.
func OpenDataset(ctx context.Context, logger *zap.Logger, location string) (Dataset, error) {
	if strings.EqualFold(filepath.Ext(location), binaryExtension) {
		return historical.OpenCandleReader(logger, location)
	}
	return duckdb.Open(ctx, logger, location)
}
