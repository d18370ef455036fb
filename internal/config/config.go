// Package config loads numapin configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the NUMAPIN_CONFIG environment variable. Without a file, defaults apply.
// NUMAPIN_SYSFS_ROOT overrides the sysfs root after the file is read, which
// lets tests and containers point the tool at a copied tree.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfig    = "NUMAPIN_CONFIG"
	EnvSysfsRoot = "NUMAPIN_SYSFS_ROOT"
)

type Config struct {
	// SysfsRoot is where the sysfs tree is mounted.
	// Default: /sys
	SysfsRoot string `yaml:"sysfs_root"`

	// CacheLevel is the cache index cores are grouped by. Negative disables
	// cache optimization.
	// Default: 3
	CacheLevel int `yaml:"cache_level"`

	// NodesPerRound is the ping-pong round width.
	// Default: 1
	NodesPerRound int `yaml:"nodes_per_round"`

	// ClusterFile, when set, also receives the cluster description whenever a
	// pinning list is written.
	ClusterFile string `yaml:"cluster_file"`

	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`

	Memmon MemmonConfig `yaml:"memmon"`
}

// MemmonConfig holds defaults for the memory monitor.
type MemmonConfig struct {
	// Interval between samples.
	// Default: 1s
	Interval time.Duration `yaml:"interval"`

	// MaxRows stops sampling after this many rows.
	// Default: 1000
	MaxRows int `yaml:"max_rows"`

	// BatchSize is the number of rows buffered before a flush.
	// Default: 1000
	BatchSize int `yaml:"batch_size"`

	// Unit is the unit samples are converted to: pages (no conversion),
	// bytes, KB, MB or GB.
	// Default: MB
	Unit string `yaml:"unit"`
}

func Default() *Config {
	return &Config{
		SysfsRoot:     "/sys",
		CacheLevel:    3,
		NodesPerRound: 1,
		LogLevel:      "info",
		Memmon: MemmonConfig{
			Interval:  time.Second,
			MaxRows:   1000,
			BatchSize: 1000,
			Unit:      "MB",
		},
	}
}

// Load reads the file named by path, or by NUMAPIN_CONFIG when path is
// empty. With neither set the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	cfg.applyEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.decode(f)
}

func (c *Config) decode(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnvironment() {
	if root := os.Getenv(EnvSysfsRoot); root != "" {
		c.SysfsRoot = root
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.SysfsRoot == "" {
		errs = append(errs, errors.New("sysfs_root is required"))
	}
	if c.NodesPerRound <= 0 {
		errs = append(errs, fmt.Errorf("nodes_per_round must be positive, got %d", c.NodesPerRound))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Memmon.Interval <= 0 {
		errs = append(errs, fmt.Errorf("memmon.interval must be positive, got %s", c.Memmon.Interval))
	}
	if c.Memmon.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("memmon.max_rows must be positive, got %d", c.Memmon.MaxRows))
	}
	if c.Memmon.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("memmon.batch_size must be positive, got %d", c.Memmon.BatchSize))
	}
	switch strings.ToUpper(c.Memmon.Unit) {
	case "PAGES", "BYTES", "KB", "MB", "GB":
	default:
		errs = append(errs, fmt.Errorf("memmon.unit must be one of pages, bytes, KB, MB, GB, got %q", c.Memmon.Unit))
	}

	return errors.Join(errs...)
}

func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level: %s", name)
	}
}

// NewLogger returns a text logger on w at the configured level. verbose
// forces debug output.
func (c *Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
