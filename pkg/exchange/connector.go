package exchange

import (
	"context"
	"time"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

// Connector is the read-only market data contract of a real exchange.
type Connector interface {
	FetchCurrentPrice(ctx context.Context) (fixed.Point, error)
	// FetchOrderBook returns up to depth levels per side, bids best first, asks best first.
	FetchOrderBook(ctx context.Context, depth int) ([]common.BookLevel, []common.BookLevel, error)
	FetchHistoricalWindow(ctx context.Context, start, end time.Time, resolution time.Duration) ([]common.Candle, error)
}

// DataSource produces one market snapshot per cycle. A false return means the
// source has nothing more to play and the run should end.
type DataSource interface {
	Advance(ctx context.Context) (common.Snapshot, bool)
	Close() error
}
