package ioruntime

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/go-ioruntime/blocking"
	"github.com/joeycumines/go-ioruntime/driver"
	"github.com/joeycumines/logiface"
)

const (
	// DriverFusion selects [Fusion].
	DriverFusion = "fusion"
	// DriverUring selects [Uring], with the layouts of [UringConfig].
	DriverUring = "uring"
	// DriverLegacy selects [Legacy].
	DriverLegacy = "legacy"

	// BlockingPool attaches a [blocking.Pool], in addition to the
	// [blocking.Strategy] names.
	BlockingPool = "pool"
)

type (
	// Config is the file representation of a runtime configuration, see
	// [LoadConfig] and [BuildFromConfig].
	Config struct {
		Driver   string         `toml:"driver"`
		LogLevel string         `toml:"log_level"`
		Uring    UringConfig    `toml:"uring"`
		Blocking BlockingConfig `toml:"blocking"`
		Entries  uint32         `toml:"entries"`
		Timer    bool           `toml:"timer"`
	}

	// UringConfig maps to [driver.UringOptions] and the entry layouts.
	UringConfig struct {
		SQThreadIdleMS uint32 `toml:"sq_thread_idle_ms"`
		CQEntries      uint32 `toml:"cq_entries"`
		SQE128         bool   `toml:"sqe128"`
		CQE32          bool   `toml:"cqe32"`
		SQPoll         bool   `toml:"sqpoll"`
		Clamp          bool   `toml:"clamp"`
		SingleIssuer   bool   `toml:"single_issuer"`
	}

	// BlockingConfig selects a [blocking.Strategy], or a pool of PoolSize.
	BlockingConfig struct {
		Strategy string `toml:"strategy"`
		PoolSize int    `toml:"pool_size"`
	}
)

// DefaultConfig returns the configuration used for keys absent from a file.
func DefaultConfig() Config {
	return Config{
		Driver:   DriverFusion,
		LogLevel: logiface.LevelInformational.String(),
		Blocking: BlockingConfig{
			Strategy: blocking.StrategyPanic.String(),
			PoolSize: 4,
		},
	}
}

// LoadConfig reads a TOML file over [DefaultConfig].
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("ioruntime: load config: %w", err)
	}
	return cfg, checkConfig(cfg, meta)
}

// DecodeConfig is [LoadConfig] for a reader.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("ioruntime: decode config: %w", err)
	}
	return cfg, checkConfig(cfg, meta)
}

func checkConfig(cfg Config, meta toml.MetaData) error {
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("ioruntime: unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg.Validate()
}

// Validate checks the enumerated values. Entries below [MinEntries] are
// valid, and raised when building.
func (x Config) Validate() error {
	var errs []error
	switch x.Driver {
	case DriverFusion, DriverUring, DriverLegacy:
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", x.Driver))
	}
	if _, err := ParseLevel(x.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if x.Blocking.Strategy == BlockingPool {
		if x.Blocking.PoolSize <= 0 {
			errs = append(errs, fmt.Errorf("invalid blocking pool size %d", x.Blocking.PoolSize))
		}
	} else if _, err := blocking.ParseStrategy(x.Blocking.Strategy); err != nil {
		errs = append(errs, err)
	}
	if (x.Uring.SQE128 || x.Uring.CQE32) && x.Driver != DriverUring {
		errs = append(errs, fmt.Errorf("uring entry layouts require driver %q", DriverUring))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("ioruntime: invalid config: %w", err)
	}
	return nil
}

// UringOptions returns the io_uring setup options.
func (x UringConfig) UringOptions() driver.UringOptions {
	return driver.UringOptions{
		SQThreadIdle: time.Duration(x.SQThreadIdleMS) * time.Millisecond,
		CQEntries:    x.CQEntries,
		SQPoll:       x.SQPoll,
		Clamp:        x.Clamp,
		SingleIssuer: x.SingleIssuer,
	}
}

// BuildFromConfig validates cfg, then builds the runtime it describes. A
// pool created for the blocking configuration is closed with the runtime.
func BuildFromConfig(cfg Config, logger *logiface.Logger[logiface.Event]) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := settings{
		logger: logger,
		uring:  cfg.Uring.UringOptions(),
	}
	if cfg.Entries != 0 {
		s.entries = max(cfg.Entries, MinEntries)
	}

	var pool *blocking.Pool
	if cfg.Blocking.Strategy == BlockingPool {
		pool = blocking.NewPool(cfg.Blocking.PoolSize, logger)
		s.blocking = blocking.Attached(pool)
	} else {
		strategy, _ := blocking.ParseStrategy(cfg.Blocking.Strategy)
		s.blocking = blocking.Empty(strategy)
	}

	var (
		rt  *Runtime
		err error
	)
	switch cfg.Driver {
	case DriverUring:
		switch {
		case cfg.Uring.SQE128 && cfg.Uring.CQE32:
			rt, err = buildConfigured[Uring[driver.SQE128, driver.CQE32]](s, cfg.Timer)
		case cfg.Uring.SQE128:
			rt, err = buildConfigured[Uring[driver.SQE128, driver.CQE16]](s, cfg.Timer)
		case cfg.Uring.CQE32:
			rt, err = buildConfigured[Uring[driver.SQE64, driver.CQE32]](s, cfg.Timer)
		default:
			rt, err = buildConfigured[Uring[driver.SQE64, driver.CQE16]](s, cfg.Timer)
		}
	case DriverLegacy:
		rt, err = buildConfigured[Legacy](s, cfg.Timer)
	default:
		rt, err = buildConfigured[Fusion](s, cfg.Timer)
	}

	if pool != nil {
		if err != nil {
			_ = pool.Close()
		} else {
			rt.onClose(pool.Close)
		}
	}
	return rt, err
}

func buildConfigured[D TimeWrappable](s settings, timed bool) (*Runtime, error) {
	b := New[D]()
	b.settings = s
	if timed {
		return EnableTimer(b).Build()
	}
	return b.Build()
}
