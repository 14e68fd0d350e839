package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.True(t, cfg.Global.Color)
	assert.Equal(t, DefaultCommitCapacity, cfg.Store.CommitCapacity)
	assert.Equal(t, DefaultMaxDiffs, cfg.Panel.MaxDiffs)
	assert.False(t, cfg.Panel.ShowProcess)
	assert.Equal(t, DefaultRefreshInterval, cfg.Panel.RefreshInterval)
	assert.Equal(t, DefaultScenario, cfg.Simulate.Scenario)
	assert.Equal(t, DefaultFrames, cfg.Simulate.Frames)
	assert.InDelta(t, DefaultFramesPerSecond, cfg.Simulate.FramesPerSecond, 0.0001)
	assert.Equal(t, DefaultComponents, cfg.Simulate.Components)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
store:
  commit_capacity: 100
simulate:
  scenario: derived-state
  frames: 10
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, 100, cfg.Store.CommitCapacity)
				assert.Equal(t, "derived-state", cfg.Simulate.Scenario)
				assert.Equal(t, 10, cfg.Simulate.Frames)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"RENDERLAB_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "boolean override - color false",
			envVars: map[string]string{
				"RENDERLAB_GLOBAL_COLOR": "false",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Global.Color)
			},
		},
		{
			name: "integer override - commit_capacity",
			envVars: map[string]string{
				"RENDERLAB_STORE_COMMIT_CAPACITY": "42",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 42, cfg.Store.CommitCapacity)
			},
		},
		{
			name: "float override - frames_per_second",
			envVars: map[string]string{
				"RENDERLAB_SIMULATE_FRAMES_PER_SECOND": "30",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.InDelta(t, 30.0, cfg.Simulate.FramesPerSecond, 0.0001)
			},
		},
		{
			name: "key absent from file - panel.max_diffs",
			envVars: map[string]string{
				"RENDERLAB_PANEL_MAX_DIFFS": "3",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3, cfg.Panel.MaxDiffs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_MergesFilesInOrder(t *testing.T) {
	base := writeConfig(t, `
global:
  log_level: warn
simulate:
  frames: 5
`)
	override := writeConfig(t, `
simulate:
  frames: 7
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Global.LogLevel)
	assert.Equal(t, 7, cfg.Simulate.Frames)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "global: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(_ *Config) {},
		},
		{
			name:    "unknown log level",
			mutate:  func(cfg *Config) { cfg.Global.LogLevel = "loud" },
			wantErr: "global.log_level",
		},
		{
			name:    "negative commit capacity",
			mutate:  func(cfg *Config) { cfg.Store.CommitCapacity = -1 },
			wantErr: "store.commit_capacity",
		},
		{
			name:    "negative max diffs",
			mutate:  func(cfg *Config) { cfg.Panel.MaxDiffs = -1 },
			wantErr: "panel.max_diffs",
		},
		{
			name:    "unparseable refresh interval",
			mutate:  func(cfg *Config) { cfg.Panel.RefreshInterval = "soon" },
			wantErr: "panel.refresh_interval",
		},
		{
			name:    "non-positive refresh interval",
			mutate:  func(cfg *Config) { cfg.Panel.RefreshInterval = "0s" },
			wantErr: "panel.refresh_interval must be positive",
		},
		{
			name:    "unknown scenario",
			mutate:  func(cfg *Config) { cfg.Simulate.Scenario = "nope" },
			wantErr: "unknown scenario",
		},
		{
			name:    "negative frames",
			mutate:  func(cfg *Config) { cfg.Simulate.Frames = -2 },
			wantErr: "simulate.frames",
		},
		{
			name:    "negative frames per second",
			mutate:  func(cfg *Config) { cfg.Simulate.FramesPerSecond = -1 },
			wantErr: "simulate.frames_per_second",
		},
		{
			name:    "no components",
			mutate:  func(cfg *Config) { cfg.Simulate.Components = 0 },
			wantErr: "simulate.components",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPanelConfig_Refresh(t *testing.T) {
	p := PanelConfig{RefreshInterval: "250ms"}

	d, err := p.Refresh()
	require.NoError(t, err)
	assert.Equal(t, int64(250), d.Milliseconds())
}
