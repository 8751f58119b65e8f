// Package config loads runtime configuration from YAML files and the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/tracejit/internal/parallel"
	"github.com/born-ml/tracejit/internal/tensor"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvBackend   = "TRACEJIT_BACKEND"
	EnvDeferred  = "TRACEJIT_DEFERRED"
	EnvWorkers   = "TRACEJIT_WORKERS"
	EnvLogLevel  = "TRACEJIT_LOG_LEVEL"
	EnvLogFormat = "TRACEJIT_LOG_FORMAT"
)

// Config is the top-level runtime configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after Init.
type Config struct {
	// Backend selects the JIT backend ("llvm" or "cuda").
	Backend string `yaml:"backend" validate:"oneof=llvm cuda"`

	// Calls contains vectorized call settings.
	Calls CallsConfig `yaml:"calls"`

	// Parallel contains CPU kernel parallelism settings.
	Parallel ParallelConfig `yaml:"parallel"`

	// Log contains logging settings.
	Log LogConfig `yaml:"log"`
}

// CallsConfig contains vectorized call settings.
type CallsConfig struct {
	// AllowDeferred lets the call primitive retain call state until the
	// next evaluation instead of finalizing it immediately.
	AllowDeferred bool `yaml:"allow_deferred"`
}

// ParallelConfig contains CPU kernel parallelism settings.
type ParallelConfig struct {
	Enabled      bool `yaml:"enabled"`
	Workers      int  `yaml:"workers" validate:"gte=0,lte=1024"`
	MinChunkSize int  `yaml:"min_chunk_size" validate:"gte=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() Config {
	p := parallel.DefaultConfig()
	return Config{
		Backend: "llvm",
		Parallel: ParallelConfig{
			Enabled:      p.Enabled,
			Workers:      0,
			MinChunkSize: p.MinChunkSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TRACEJIT_* environment variables.
func (c *Config) ApplyEnv() {
	c.Backend = strings.ToLower(env.Str(EnvBackend, c.Backend))
	if env.Has(EnvDeferred) {
		c.Calls.AllowDeferred = env.Bool(EnvDeferred)
	}
	c.Parallel.Workers = env.Int(EnvWorkers, c.Parallel.Workers)
	c.Log.Level = strings.ToLower(env.Str(EnvLogLevel, c.Log.Level))
	c.Log.Format = strings.ToLower(env.Str(EnvLogFormat, c.Log.Format))
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// BackendType returns the parsed JIT backend.
func (c Config) BackendType() tensor.Backend {
	b, err := tensor.ParseBackend(c.Backend)
	if err != nil {
		return tensor.LLVM
	}
	return b
}

// ParallelConfig converts the parallel section for the CPU kernels.
// Zero workers means one per CPU.
func (c Config) ParallelConfig() parallel.Config {
	workers := c.Parallel.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return parallel.Config{
		Enabled:      c.Parallel.Enabled && workers > 1,
		NumWorkers:   workers,
		MinChunkSize: c.Parallel.MinChunkSize,
	}
}

// NewLogger builds a slog.Logger writing to w at the configured level and format.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
