package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hubastard/canopy/engine/colors"
	"github.com/hubastard/canopy/engine/logging"
)

// Config for the engine run.
type Config struct {
	Title      string         `yaml:"title"`
	Width      int            `yaml:"width"`
	Height     int            `yaml:"height"`
	VSync      bool           `yaml:"vsync"`
	ClearColor colors.Color   `yaml:"clear_color"` // RGBA
	Engine     EngineConfig   `yaml:"engine"`
	Log        logging.Config `yaml:"log"`
}

// EngineConfig tunes the frame engine.
type EngineConfig struct {
	// MaxLayoutIterations bounds the layout fixed-point loop in one frame.
	MaxLayoutIterations int `yaml:"max_layout_iterations"`
	// CompositorInterval is how often the compositing goroutine advances
	// independent animations.
	CompositorInterval time.Duration `yaml:"compositor_interval"`
	// VisibilityTimeout is how long the window may stay hidden before the
	// host suspends the engine. Zero disables it.
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	// ReleaseOnLowMemory releases device resources while suspended.
	ReleaseOnLowMemory bool `yaml:"release_on_low_memory"`
	// AllowOfferResources lets suspend offer graphics memory back.
	AllowOfferResources bool `yaml:"allow_offer_resources"`
	// FatalDeviceCodes are device error codes that are not recoverable.
	FatalDeviceCodes []uint32 `yaml:"fatal_device_codes"`
}

// DefaultConfig returns the sandbox defaults.
func DefaultConfig() Config {
	return Config{
		Title:      "canopy",
		Width:      1280,
		Height:     720,
		VSync:      true,
		ClearColor: colors.DarkGray,
		Engine: EngineConfig{
			MaxLayoutIterations: 250,
			CompositorInterval:  time.Second / 60,
			VisibilityTimeout:   10 * time.Second,
			AllowOfferResources: true,
		},
		Log: logging.Config{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a YAML config on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("window size must be > 0, got %dx%d", c.Width, c.Height)
	}
	if c.Engine.MaxLayoutIterations < 0 {
		return fmt.Errorf("engine.max_layout_iterations must be >= 0")
	}
	if c.Engine.MaxLayoutIterations == 0 {
		c.Engine.MaxLayoutIterations = 250
	}
	if c.Engine.CompositorInterval < 0 || c.Engine.VisibilityTimeout < 0 {
		return fmt.Errorf("engine durations must be >= 0")
	}
	if c.Engine.CompositorInterval == 0 {
		c.Engine.CompositorInterval = time.Second / 60
	}
	return nil
}
