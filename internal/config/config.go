package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values
type Config struct {
	Display DisplayConfig `yaml:"display"`
	Render  RenderConfig  `yaml:"render"`
	Camera  CameraConfig  `yaml:"camera"`
	Scenes  ScenesConfig  `yaml:"scenes"`
}

type DisplayConfig struct {
	ScreenWidth  int    `yaml:"screen_width"`
	ScreenHeight int    `yaml:"screen_height"`
	WindowTitle  string `yaml:"window_title"`
	Resizable    bool   `yaml:"resizable"`
}

type RenderConfig struct {
	BlockSize   int    `yaml:"block_size"`
	AntiAlias   int    `yaml:"anti_alias"`
	MaxRayDepth int    `yaml:"max_ray_depth"`
	DeBand      bool   `yaml:"de_band"`
	Workers     int    `yaml:"workers"` // 0 = CPU count
	Mode        string `yaml:"mode"`    // "color" or "depth"
}

type CameraConfig struct {
	X             float64 `yaml:"x"`
	Y             float64 `yaml:"y"`
	Z             float64 `yaml:"z"`
	RotX          float64 `yaml:"rot_x"`
	RotY          float64 `yaml:"rot_y"`
	MoveSpeed     float64 `yaml:"move_speed"`
	RotationSpeed float64 `yaml:"rotation_speed"`
}

type ScenesConfig struct {
	File    string `yaml:"file"`    // yaml file with scene definitions
	Default int    `yaml:"default"` // scene id rendered at startup
}

// GlobalConfig provides easy access to the loaded configuration
var GlobalConfig *Config

// LoadConfig loads and validates the configuration from the given yaml file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Set global config for easy access
	GlobalConfig = &config

	return &config, nil
}

// MustLoadConfig loads the configuration and panics on error
func MustLoadConfig(filename string) *Config {
	config, err := LoadConfig(filename)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return config
}

// Validate rejects configurations the render scheduler would refuse anyway,
// so bad values surface at startup rather than on the first frame.
func (c *Config) Validate() error {
	if c.Display.ScreenWidth < 1 || c.Display.ScreenHeight < 1 {
		return fmt.Errorf("display size must be at least 1x1, got %dx%d",
			c.Display.ScreenWidth, c.Display.ScreenHeight)
	}
	if c.Render.BlockSize < 1 {
		return fmt.Errorf("render.block_size must be at least 1, got %d", c.Render.BlockSize)
	}
	switch c.Render.AntiAlias {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("render.anti_alias must be 1, 2, 4 or 8, got %d", c.Render.AntiAlias)
	}
	if c.Render.MaxRayDepth < 1 {
		return fmt.Errorf("render.max_ray_depth must be at least 1, got %d", c.Render.MaxRayDepth)
	}
	if c.Render.Workers < 0 {
		return fmt.Errorf("render.workers must not be negative, got %d", c.Render.Workers)
	}
	switch c.Render.Mode {
	case "color", "depth":
	default:
		return fmt.Errorf("render.mode must be \"color\" or \"depth\", got %q", c.Render.Mode)
	}
	return nil
}

// Helper functions for easy access to commonly used values
func (c *Config) GetScreenWidth() int {
	return c.Display.ScreenWidth
}

func (c *Config) GetScreenHeight() int {
	return c.Display.ScreenHeight
}

func (c *Config) GetMoveSpeed() float64 {
	return c.Camera.MoveSpeed
}

func (c *Config) GetRotSpeed() float64 {
	return c.Camera.RotationSpeed
}
