package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cverdier/AcqGo/internal/params"
)

// SourceConfig describes the frame-producing hardware source.
// Type selects a concrete implementation (e.g., "sim").
type SourceConfig struct {
	ID          string   `yaml:"id"`           // canonical source id
	Type        string   `yaml:"type"`         // e.g., "sim"
	DisplayName string   `yaml:"display_name"` // human-readable name for logs
	Channels    []string `yaml:"channels"`     // channel names, in index order
	WidthPx     int      `yaml:"width_px"`     // default frame width
	HeightPx    int      `yaml:"height_px"`    // default frame height
	FrameTimeMs int      `yaml:"frame_time_ms"` // fixed frame time; 0 = derive from parameters
}

// InstrumentConfig describes the instrument property endpoint and its
// initial property values.
type InstrumentConfig struct {
	ID         string         `yaml:"id"`
	Properties map[string]any `yaml:"properties"` // seed values (bool/int/float/string)
}

// ProfileConfig is one named frame-parameter preset. Profile indexes
// follow list order.
type ProfileConfig struct {
	Name       string         `yaml:"name"`
	Parameters map[string]any `yaml:"parameters"`
}

// SinkConfig tells the controller where completed recordings go.
type SinkConfig struct {
	OutputDir string `yaml:"output_dir"` // empty = discard recordings
}

// DefaultsConfig contains generic parameters (timeouts, logging).
type DefaultsConfig struct {
	ProfileIndex  int `yaml:"profile_index"`   // initially selected profile
	GrabTimeoutMs int `yaml:"grab_timeout_ms"` // default timeout for blocking grabs
	DebugLevel    int `yaml:"debug_level"`     // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Source     SourceConfig      `yaml:"source"`
	Instrument *InstrumentConfig `yaml:"instrument,omitempty"` // optional
	Aliases    map[string]string `yaml:"aliases"`              // id → id indirection
	Profiles   []ProfileConfig   `yaml:"profiles"`
	Sink       SinkConfig        `yaml:"sink"`
	Defaults   DefaultsConfig    `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Source.ID == "" {
		return nil, fmt.Errorf("source.id is required")
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = "sim"
	}
	if cfg.Source.Type != "sim" {
		return nil, fmt.Errorf("unknown source.type %q", cfg.Source.Type)
	}
	if cfg.Source.WidthPx < 0 || cfg.Source.HeightPx < 0 {
		return nil, fmt.Errorf("source dimensions must be >= 0")
	}
	if cfg.Defaults.ProfileIndex < 0 || (len(cfg.Profiles) > 0 && cfg.Defaults.ProfileIndex >= len(cfg.Profiles)) {
		return nil, fmt.Errorf("profile_index %d out of range for %d profiles", cfg.Defaults.ProfileIndex, len(cfg.Profiles))
	}
	if cfg.Defaults.GrabTimeoutMs <= 0 {
		cfg.Defaults.GrabTimeoutMs = 5000 // reasonable default
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	// Alias targets must not shadow each other trivially
	for alias, target := range cfg.Aliases {
		if alias == target {
			return nil, fmt.Errorf("alias %q points to itself", alias)
		}
	}

	return &cfg, nil
}

// FrameTime returns the fixed frame time of the source, 0 if derived.
func (c *Config) FrameTime() time.Duration {
	return time.Duration(c.Source.FrameTimeMs) * time.Millisecond
}

// GrabTimeout returns the default timeout for blocking grabs.
func (c *Config) GrabTimeout() time.Duration {
	return time.Duration(c.Defaults.GrabTimeoutMs) * time.Millisecond
}

// ProfileSet converts the configured profiles into a ProfileSet.
func (c *Config) ProfileSet() *params.ProfileSet {
	profiles := make([]params.Profile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		profiles = append(profiles, params.Profile{
			Name:       p.Name,
			Parameters: params.FrameParameters(p.Parameters),
		})
	}
	return params.NewProfileSet(profiles...)
}

// DefaultParameters returns the parameters of the initially selected
// profile, or nil when no profiles are configured.
func (c *Config) DefaultParameters() params.FrameParameters {
	if len(c.Profiles) == 0 {
		return nil
	}
	return params.FrameParameters(c.Profiles[c.Defaults.ProfileIndex].Parameters).Clone()
}
