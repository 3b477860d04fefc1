package datasource

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/vexchange/pkg/datasource/live"
	"github.com/peter-kozarec/vexchange/pkg/datasource/replay"
	"github.com/peter-kozarec/vexchange/pkg/exchange"
)

type Kind string

const (
	KindReplay           Kind = "replay"
	KindLive             Kind = "live"
	KindHybridValidation Kind = "hybrid_validation"
)

var (
	ErrUnknownKind      = errors.New("unknown data source kind")
	ErrMissingConnector = errors.New("connector is required")
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindReplay, KindLive, KindHybridValidation:
		return k, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
	}
}

type settings struct {
	connector        exchange.Connector
	depth            int
	resolution       time.Duration
	progressInterval int
	opener           replay.Opener
}

type Option func(*settings)

func WithConnector(connector exchange.Connector) Option {
	return func(s *settings) {
		s.connector = connector
	}
}

func WithDepth(depth int) Option {
	return func(s *settings) {
		s.depth = depth
	}
}

func WithResolution(resolution time.Duration) Option {
	return func(s *settings) {
		s.resolution = resolution
	}
}

func WithProgressInterval(n int) Option {
	return func(s *settings) {
		s.progressInterval = n
	}
}

func WithDatasetOpener(opener replay.Opener) Option {
	return func(s *settings) {
		s.opener = opener
	}
}

// New builds the data source variant. Replay sources additionally expose
// SetDataInterval, live variants need a connector.
func New(logger *zap.Logger, kind Kind, options ...Option) (exchange.DataSource, error) {
	s := settings{progressInterval: -1}
	for _, option := range options {
		option(&s)
	}

	switch kind {
	case KindReplay:
		var replayOptions []replay.Option
		if s.resolution > 0 {
			replayOptions = append(replayOptions, replay.WithResolution(s.resolution))
		}
		if s.progressInterval >= 0 {
			replayOptions = append(replayOptions, replay.WithProgressInterval(s.progressInterval))
		}
		if s.opener != nil {
			replayOptions = append(replayOptions, replay.WithDatasetOpener(s.opener))
		}
		return replay.NewSource(logger.Named("replay"), replayOptions...), nil
	case KindLive, KindHybridValidation:
		if s.connector == nil {
			return nil, fmt.Errorf("%s: %w", kind, ErrMissingConnector)
		}
		liveOptions := []live.Option{live.WithDepth(s.depth), live.WithResolution(s.resolution)}
		if kind == KindHybridValidation {
			liveOptions = append(liveOptions, live.WithHybridValidation())
		}
		return live.NewSource(logger.Named(string(kind)), s.connector, liveOptions...), nil
	default:
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
	}
}
