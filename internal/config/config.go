// Package config loads the niftiforge run configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrsinham/niftiforge/internal/util"
	"github.com/mrsinham/niftiforge/internal/volume"
)

// Config is the complete run configuration.
type Config struct {
	// OutputDir receives converted volumes when no explicit output base is given.
	OutputDir string `yaml:"output_dir"`
	// VoxelOrder is a three-letter target orientation such as "LPS". Empty keeps the
	// acquisition orientation.
	VoxelOrder  string `yaml:"voxel_order"`
	LogLevel    string `yaml:"log_level"`
	MetricsFile string `yaml:"metrics_file"`
	// Manifest writes a YAML summary next to every converted series.
	Manifest bool `yaml:"manifest"`

	Export ExportConfig `yaml:"export"`
	Reader ReaderConfig `yaml:"reader"`
	Watch  WatchConfig  `yaml:"watch"`
}

// ExportConfig describes the produced datasets.
type ExportConfig struct {
	Domain   string   `yaml:"domain"`
	Filetype string   `yaml:"filetype"`
	State    []string `yaml:"state"`
}

// ReaderConfig controls DICOM parsing.
type ReaderConfig struct {
	// Pattern is a doublestar glob relative to the series directory.
	Pattern     string   `yaml:"pattern"`
	SidecarTags []string `yaml:"sidecar_tags"`
	// Workers parses files in parallel (0 = one per CPU).
	Workers int `yaml:"workers"`
}

// WatchConfig controls the inbox watcher.
type WatchConfig struct {
	// Settle is how long a series directory must stay unchanged before conversion.
	Settle time.Duration `yaml:"settle"`
}

var logLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns a Config with the defaults used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "nifti",
		LogLevel:  "info",
		Export: ExportConfig{
			Domain:   "mr",
			Filetype: "nifti",
			State:    []string{"orig"},
		},
		Reader: ReaderConfig{
			Pattern:     "**/*",
			SidecarTags: slices.Clone(util.DefaultSidecarTags),
		},
		Watch: WatchConfig{
			Settle: 5 * time.Second,
		},
	}
}

// LoadFromFile reads path over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// SaveToFile writes c to path, creating the parent directory.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.VoxelOrder != "" {
		if _, _, err := volume.ParseVoxelOrder(c.VoxelOrder); err != nil {
			errs = append(errs, fmt.Errorf("voxel_order: %w", err))
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Export.Domain == "" {
		errs = append(errs, errors.New("export.domain is required"))
	}
	if c.Export.Filetype == "" {
		errs = append(errs, errors.New("export.filetype is required"))
	}
	if len(c.Export.State) == 0 {
		errs = append(errs, errors.New("export.state needs at least one entry"))
	}
	if _, err := util.ResolveTags(c.Reader.SidecarTags); err != nil {
		errs = append(errs, fmt.Errorf("reader.sidecar_tags: %w", err))
	}
	if c.Reader.Workers < 0 {
		errs = append(errs, fmt.Errorf("reader.workers must be >= 0, got %d", c.Reader.Workers))
	}
	if c.Watch.Settle <= 0 {
		errs = append(errs, fmt.Errorf("watch.settle must be positive, got %s", c.Watch.Settle))
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel onto a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	name := strings.ToLower(c.LogLevel)
	if !slices.Contains(logLevels, name) {
		return level, fmt.Errorf("log_level %q is not one of %s", c.LogLevel, strings.Join(logLevels, ", "))
	}
	err := level.UnmarshalText([]byte(name))
	return level, err
}
