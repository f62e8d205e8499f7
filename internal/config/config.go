// Package config reads the TOML configuration of the tiles3d command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/eak1mov/go-tiles3d/content"
	"github.com/eak1mov/go-tiles3d/loader"
	"github.com/eak1mov/go-tiles3d/lod"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/time/rate"
)

var ErrInvalidConfig = errors.New("tiles3d: invalid config")

// Duration is a time.Duration written as a string such as "5m" or "1h30m".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type LOD struct {
	MaxScreenSpaceError float64  `toml:"max_screen_space_error"`
	RejectThreshold     float64  `toml:"reject_threshold"`
	RetryCooldown       Duration `toml:"retry_cooldown"`
	// LoadRate is the number of loads dispatched per second; zero is unlimited.
	LoadRate  float64 `toml:"load_rate"`
	LoadBurst int     `toml:"load_burst"`
}

type Loader struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

type Decoder struct {
	MaxInstances int `toml:"max_instances"`
}

type Config struct {
	LogLevel string  `toml:"log_level"`
	LOD      LOD     `toml:"lod"`
	Loader   Loader  `toml:"loader"`
	Decoder  Decoder `toml:"decoder"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		LOD: LOD{
			MaxScreenSpaceError: lod.DefaultMaxScreenSpaceError,
			RetryCooldown:       Duration(lod.DefaultRetryCooldown),
			LoadBurst:           1,
		},
		Loader: Loader{
			Workers: loader.DefaultWorkers,
		},
	}
}

// Parse reads a TOML document on top of the defaults. Unknown keys are errors.
func Parse(data []byte) (Config, error) {
	c := Default()
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads the config file at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch {
	case c.LOD.MaxScreenSpaceError <= 0:
		return fmt.Errorf("%w: lod.max_screen_space_error must be positive", ErrInvalidConfig)
	case c.LOD.RejectThreshold < 0:
		return fmt.Errorf("%w: lod.reject_threshold is negative", ErrInvalidConfig)
	case c.LOD.RetryCooldown < 0:
		return fmt.Errorf("%w: lod.retry_cooldown is negative", ErrInvalidConfig)
	case c.LOD.LoadRate < 0:
		return fmt.Errorf("%w: lod.load_rate is negative", ErrInvalidConfig)
	case c.LOD.LoadRate > 0 && c.LOD.LoadBurst < 1:
		return fmt.Errorf("%w: lod.load_burst must be at least 1", ErrInvalidConfig)
	case c.Loader.Workers < 1:
		return fmt.Errorf("%w: loader.workers must be at least 1", ErrInvalidConfig)
	case c.Loader.QueueSize < 0:
		return fmt.Errorf("%w: loader.queue_size is negative", ErrInvalidConfig)
	case c.Decoder.MaxInstances < 0:
		return fmt.Errorf("%w: decoder.max_instances is negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	return level, nil
}

func (c Config) LODOptions(logger *slog.Logger) []lod.Option {
	opts := []lod.Option{
		lod.WithMaxScreenSpaceError(c.LOD.MaxScreenSpaceError),
		lod.WithRejectThreshold(c.LOD.RejectThreshold),
		lod.WithRetryCooldown(time.Duration(c.LOD.RetryCooldown)),
		lod.WithLogger(logger),
	}
	if c.LOD.LoadRate > 0 {
		opts = append(opts, lod.WithLoadRate(rate.Limit(c.LOD.LoadRate), c.LOD.LoadBurst))
	}
	return opts
}

func (c Config) LoaderOptions(logger *slog.Logger) []loader.Option {
	return []loader.Option{
		loader.WithWorkers(c.Loader.Workers),
		loader.WithQueueSize(c.Loader.QueueSize),
		loader.WithLogger(logger),
	}
}

func (c Config) DecoderOptions(logger *slog.Logger) []content.DecoderOption {
	return []content.DecoderOption{
		content.WithMaxInstances(c.Decoder.MaxInstances),
		content.WithLogger(logger),
	}
}
