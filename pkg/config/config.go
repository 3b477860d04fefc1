package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/peter-kozarec/vexchange/pkg/common"
	"github.com/peter-kozarec/vexchange/pkg/datasource"
	"github.com/peter-kozarec/vexchange/pkg/utility/fixed"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config describes one run of a binary: the pair, where the snapshots come from,
// the simulated account and the ambient services.
type Config struct {
	Pair common.Pair `yaml:"pair"`

	Source struct {
		Kind             string        `yaml:"kind"`
		Location         string        `yaml:"location"`
		Start            time.Time     `yaml:"start"`
		End              time.Time     `yaml:"end"`
		Resolution       time.Duration `yaml:"resolution"`
		ProgressInterval int           `yaml:"progress_interval"`
		StreamURL        string        `yaml:"stream_url"`
		Depth            int           `yaml:"depth"`
	} `yaml:"source"`

	Account struct {
		StartBalance fixed.Point `yaml:"start_balance"`
		MakerFee     fixed.Point `yaml:"maker_fee"`
		TakerFee     fixed.Point `yaml:"taker_fee"`
	} `yaml:"account"`

	Engine struct {
		WaitTime      time.Duration `yaml:"wait_time"`
		AuditInterval time.Duration `yaml:"audit_interval"`
		EventCapacity int           `yaml:"event_capacity"`
	} `yaml:"engine"`

	Strategy struct {
		Name   string      `yaml:"name"`
		Volume fixed.Point `yaml:"volume"`
		Offset fixed.Point `yaml:"offset"`
	} `yaml:"strategy"`

	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
		File        string `yaml:"file"`
		MaxSizeMB   int    `yaml:"max_size_mb"`
		MaxBackups  int    `yaml:"max_backups"`
		MaxAgeDays  int    `yaml:"max_age_days"`
		Compress    bool   `yaml:"compress"`
	} `yaml:"logging"`

	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`

	Pushover struct {
		User   string `yaml:"user"`
		Token  string `yaml:"token"`
		Device string `yaml:"device"`
	} `yaml:"pushover"`
}

// Default returns the configuration used for fields a run file leaves out.
func Default() Config {
	var cfg Config
	cfg.Pair = common.Pair{Base: "BTC", Quote: "USDT"}
	cfg.Source.Kind = string(datasource.KindReplay)
	cfg.Source.Resolution = time.Minute
	cfg.Source.ProgressInterval = 1440
	cfg.Source.StreamURL = "wss://stream.binance.com:9443"
	cfg.Source.Depth = 100
	cfg.Account.StartBalance = fixed.FromInt(1000, 0)
	cfg.Account.MakerFee = fixed.MustParse("0.0002")
	cfg.Account.TakerFee = fixed.MustParse("0.004")
	cfg.Engine.AuditInterval = time.Hour
	cfg.Engine.EventCapacity = 1024
	cfg.Strategy.Name = "hello"
	cfg.Strategy.Volume = fixed.MustParse("0.01")
	cfg.Strategy.Offset = fixed.FromInt(100, 0)
	cfg.Logging.Level = "info"
	cfg.Logging.MaxSizeMB = 10
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAgeDays = 28
	return cfg
}

// Load reads the YAML run file at path on top of Default, applies VEX_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration: %w", err)
	}

	if err := overrideWithEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Kind() datasource.Kind {
	kind, _ := datasource.ParseKind(c.Source.Kind)
	return kind
}

func (c *Config) Validate() error {
	if c.Pair.Base == "" || c.Pair.Quote == "" || c.Pair.Base == c.Pair.Quote {
		return fmt.Errorf("%w: pair %q", ErrInvalidConfig, c.Pair)
	}

	kind, err := datasource.ParseKind(c.Source.Kind)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch kind {
	case datasource.KindReplay:
		if c.Source.Location == "" {
			return fmt.Errorf("%w: replay needs a dataset location", ErrInvalidConfig)
		}
		if !c.Source.End.After(c.Source.Start) {
			return fmt.Errorf("%w: end %s must be after start %s", ErrInvalidConfig, c.Source.End, c.Source.Start)
		}
	case datasource.KindLive, datasource.KindHybridValidation:
		if !strings.HasPrefix(c.Source.StreamURL, "ws://") && !strings.HasPrefix(c.Source.StreamURL, "wss://") {
			return fmt.Errorf("%w: stream url %q", ErrInvalidConfig, c.Source.StreamURL)
		}
		if c.Source.Depth <= 0 {
			return fmt.Errorf("%w: depth must be positive", ErrInvalidConfig)
		}
	}

	if c.Source.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive", ErrInvalidConfig)
	}
	if c.Account.StartBalance.IsNegative() {
		return fmt.Errorf("%w: negative start balance", ErrInvalidConfig)
	}
	if c.Account.MakerFee.IsNegative() || c.Account.TakerFee.IsNegative() ||
		!c.Account.MakerFee.Lt(fixed.One) || !c.Account.TakerFee.Lt(fixed.One) {
		return fmt.Errorf("%w: fees must be within [0, 1)", ErrInvalidConfig)
	}
	if c.Engine.WaitTime < 0 {
		return fmt.Errorf("%w: negative wait time", ErrInvalidConfig)
	}
	if c.Engine.EventCapacity <= 0 {
		return fmt.Errorf("%w: event capacity must be positive", ErrInvalidConfig)
	}
	return nil
}

func overrideWithEnv(cfg *Config) error {
	if location := os.Getenv("VEX_DATASET"); location != "" {
		cfg.Source.Location = location
	}
	if url := os.Getenv("VEX_STREAM_URL"); url != "" {
		cfg.Source.StreamURL = url
	}
	if level := os.Getenv("VEX_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if listen := os.Getenv("VEX_METRICS_LISTEN"); listen != "" {
		cfg.Metrics.Listen = listen
	}
	if balance := os.Getenv("VEX_START_BALANCE"); balance != "" {
		p, err := fixed.Parse(balance)
		if err != nil {
			return fmt.Errorf("%w: VEX_START_BALANCE: %w", ErrInvalidConfig, err)
		}
		cfg.Account.StartBalance = p
	}
	if user := os.Getenv("VEX_PUSHOVER_USER"); user != "" {
		cfg.Pushover.User = user
	}
	if token := os.Getenv("VEX_PUSHOVER_TOKEN"); token != "" {
		cfg.Pushover.Token = token
	}
	return nil
}
