package model

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DetectorSignature = "signature"
	DetectorExtension = "extension"
	DetectorCommand   = "command"
)

// Detectors lists the known detector names in their default order.
var Detectors = []string{DetectorSignature, DetectorExtension, DetectorCommand}

type Config struct {
	Version      int      `mapstructure:"version" yaml:"version"` // fixed 0 for now
	Associations string   `mapstructure:"associations" yaml:"associations"`
	Detectors    []string `mapstructure:"detectors" yaml:"detectors"`
	Magic        Magic    `mapstructure:"magic" yaml:"magic"`
	Workers      int      `mapstructure:"workers" yaml:"workers"`
	Cache        Cache    `mapstructure:"cache" yaml:"cache"`
	Launch       Launch   `mapstructure:"launch" yaml:"launch"`
	Scan         Scan     `mapstructure:"scan" yaml:"scan"`
	Verbose      bool     `mapstructure:"verbose" yaml:"verbose"`
}

// Magic configures the external program used by the command detector.
type Magic struct {
	Binary  string        `mapstructure:"binary" yaml:"binary"`
	Args    []string      `mapstructure:"args" yaml:"args"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Cache bounds the association lookup cache, 0 means unbounded.
type Cache struct {
	Size int `mapstructure:"size" yaml:"size"`
}

type Launch struct {
	Shell string `mapstructure:"shell" yaml:"shell"`
}

type Scan struct {
	Skip    []string `mapstructure:"skip" yaml:"skip"`
	MaxSize int64    `mapstructure:"max_size" yaml:"max_size"` // bytes, 0 disables the limit
}

func DefaultConfig(ctx context.Context) Config {
	assocPath := "assoc.toml"
	if d, err := os.UserConfigDir(); err == nil {
		assocPath = filepath.Join(d, "opener", "assoc.toml")
	} else {
		slog.WarnContext(ctx, "can't get user config dir, using current directory", "error", err)
	}

	return Config{
		Version:      0,
		Associations: assocPath,
		Detectors:    slices.Clone(Detectors),
		Magic: Magic{
			Binary:  "file",
			Args:    []string{"--brief", "--mime-type"},
			Timeout: 2 * time.Second,
		},
		Workers: 4,
		Launch: Launch{
			Shell: "/bin/sh",
		},
		Scan: Scan{
			Skip: []string{"/proc", "/sys", "/dev", "/run"},
		},
	}
}

// LoadConfig reads YAML from r on top of DefaultConfig. Every key can be
// overridden by an OPENER_ prefixed environment variable, nested keys
// use an underscore (OPENER_CACHE_SIZE).
func LoadConfig(ctx context.Context, r io.Reader) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("OPENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig(ctx)
	v.SetDefault("version", d.Version)
	v.SetDefault("associations", d.Associations)
	v.SetDefault("detectors", d.Detectors)
	v.SetDefault("magic.binary", d.Magic.Binary)
	v.SetDefault("magic.args", d.Magic.Args)
	v.SetDefault("magic.timeout", d.Magic.Timeout)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("launch.shell", d.Launch.Shell)
	v.SetDefault("scan.skip", d.Scan.Skip)
	v.SetDefault("scan.max_size", d.Scan.MaxSize)
	v.SetDefault("verbose", d.Verbose)

	if err := v.ReadConfig(r); err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Version != 0 {
		return fmt.Errorf("config version %d is not supported, expected 0", c.Version)
	}
	if c.Associations == "" {
		return fmt.Errorf("associations: path is empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers: must be at least 1, got %d", c.Workers)
	}
	if len(c.Detectors) == 0 {
		return fmt.Errorf("detectors: at least one detector is required")
	}
	seen := make(map[string]struct{}, len(c.Detectors))
	for _, name := range c.Detectors {
		if !slices.Contains(Detectors, name) {
			return fmt.Errorf("detectors: unknown detector %q, possible values (%s)", name, strings.Join(Detectors, ","))
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("detectors: duplicate detector %q", name)
		}
		seen[name] = struct{}{}
	}
	if slices.Contains(c.Detectors, DetectorCommand) && c.Magic.Binary == "" {
		return fmt.Errorf("magic.binary: required by the %s detector", DetectorCommand)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size: must not be negative, got %d", c.Cache.Size)
	}
	if c.Launch.Shell == "" {
		return fmt.Errorf("launch.shell: is empty")
	}
	if c.Scan.MaxSize < 0 {
		return fmt.Errorf("scan.max_size: must not be negative, got %d", c.Scan.MaxSize)
	}
	return nil
}

// AssociationsPath returns Associations with ~ and environment variables expanded.
func (c Config) AssociationsPath() (string, error) {
	return ExpandPath(c.Associations)
}

// ExpandPath expands a leading ~ to the home directory and $VARS.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get home directory for ~ expansion: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	if !strings.Contains(path, "$") {
		return path, nil
	}
	return os.ExpandEnv(path), nil
}
