package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ethpandaops/renderlab/pkg/event"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. RENDERLAB_GLOBAL_LOG_LEVEL.
	EnvPrefix = "RENDERLAB"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultCommitCapacity is the number of commit samples kept in memory.
	DefaultCommitCapacity = 500

	// DefaultMaxDiffs is the number of diff records the panel prints.
	DefaultMaxDiffs = 20

	// DefaultRefreshInterval is how often the live panel redraws.
	DefaultRefreshInterval = "1s"

	// DefaultScenario is the scenario simulated when none is configured.
	DefaultScenario = string(event.ScenarioRerenders)

	// DefaultFrames is the number of simulated frames.
	DefaultFrames = 120

	// DefaultFramesPerSecond paces simulated frames.
	DefaultFramesPerSecond = 60.0

	// DefaultComponents is the number of simulated child components.
	DefaultComponents = 8
)

// Config is the root configuration for renderlab.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Panel    PanelConfig    `yaml:"panel" mapstructure:"panel"`
	Simulate SimulateConfig `yaml:"simulate" mapstructure:"simulate"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	Color    bool   `yaml:"color" mapstructure:"color"`
}

// StoreConfig contains metrics store settings.
type StoreConfig struct {
	CommitCapacity int `yaml:"commit_capacity" mapstructure:"commit_capacity"`
}

// PanelConfig contains metrics panel settings.
type PanelConfig struct {
	MaxDiffs        int    `yaml:"max_diffs" mapstructure:"max_diffs"`
	ShowProcess     bool   `yaml:"show_process" mapstructure:"show_process"`
	RefreshInterval string `yaml:"refresh_interval" mapstructure:"refresh_interval"`
}

// SimulateConfig contains synthetic scenario driver settings.
type SimulateConfig struct {
	Scenario        string  `yaml:"scenario" mapstructure:"scenario"`
	Frames          int     `yaml:"frames" mapstructure:"frames"`
	FramesPerSecond float64 `yaml:"frames_per_second" mapstructure:"frames_per_second"`
	Components      int     `yaml:"components" mapstructure:"components"`
}

// defaults are registered with viper so that every key can be overridden
// from the environment even when absent from the file.
var defaults = map[string]any{
	"global.log_level":           DefaultLogLevel,
	"global.color":               true,
	"store.commit_capacity":      DefaultCommitCapacity,
	"panel.max_diffs":            DefaultMaxDiffs,
	"panel.show_process":         false,
	"panel.refresh_interval":     DefaultRefreshInterval,
	"simulate.scenario":          DefaultScenario,
	"simulate.frames":            DefaultFrames,
	"simulate.frames_per_second": DefaultFramesPerSecond,
	"simulate.components":        DefaultComponents,
}

// Load reads and merges the given configuration files in order, applies
// environment overrides and defaults. With no paths, only defaults and
// environment are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, path := range paths {
		v.SetConfigFile(path)

		if err := v.MergeInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}

			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills zero values that an explicit empty setting left behind.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Store.CommitCapacity == 0 {
		c.Store.CommitCapacity = DefaultCommitCapacity
	}

	if c.Panel.RefreshInterval == "" {
		c.Panel.RefreshInterval = DefaultRefreshInterval
	}

	if c.Simulate.Scenario == "" {
		c.Simulate.Scenario = DefaultScenario
	}

	if c.Simulate.FramesPerSecond == 0 {
		c.Simulate.FramesPerSecond = DefaultFramesPerSecond
	}

	if c.Simulate.Components == 0 {
		c.Simulate.Components = DefaultComponents
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("global.log_level: %w", err)
	}

	if c.Store.CommitCapacity < 0 {
		return fmt.Errorf("store.commit_capacity must not be negative, got %d",
			c.Store.CommitCapacity)
	}

	if c.Panel.MaxDiffs < 0 {
		return fmt.Errorf("panel.max_diffs must not be negative, got %d",
			c.Panel.MaxDiffs)
	}

	if _, err := c.Panel.Refresh(); err != nil {
		return err
	}

	if !event.ScenarioID(c.Simulate.Scenario).Valid() {
		return fmt.Errorf("simulate.scenario: unknown scenario %q",
			c.Simulate.Scenario)
	}

	if c.Simulate.Frames < 0 {
		return fmt.Errorf("simulate.frames must not be negative, got %d",
			c.Simulate.Frames)
	}

	if c.Simulate.FramesPerSecond < 0 {
		return fmt.Errorf("simulate.frames_per_second must not be negative, got %v",
			c.Simulate.FramesPerSecond)
	}

	if c.Simulate.Components < 1 {
		return fmt.Errorf("simulate.components must be at least 1, got %d",
			c.Simulate.Components)
	}

	return nil
}

// Refresh parses the refresh interval.
func (p *PanelConfig) Refresh() (time.Duration, error) {
	d, err := time.ParseDuration(p.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("panel.refresh_interval: %w", err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("panel.refresh_interval must be positive, got %s", d)
	}

	return d, nil
}
