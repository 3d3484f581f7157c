// Package config loads the engine's TOML configuration file and merges it over the
// built-in defaults. Every field left out of the file keeps its default value.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root of the engine configuration file.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Scene    SceneConfig    `toml:"scene"`
	Log      LogConfig      `toml:"log"`
}

// WindowConfig describes the platform window.
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// RendererConfig describes the device and the scene renderer.
type RendererConfig struct {
	// VSync selects FIFO presentation when true and immediate presentation otherwise.
	VSync bool `toml:"vsync"`

	// Exposure is the initial tone-mapping exposure.
	Exposure float32 `toml:"exposure"`

	// TargetSwapChain makes the scene renderer blit its composite output to the window.
	// Hosts that display the composite image themselves (an editor viewport) turn this off.
	TargetSwapChain bool `toml:"target_swapchain"`

	// Headless runs against the recording device instead of a GPU.
	Headless bool `toml:"headless"`

	// ForceSoftware requests a fallback (CPU) adapter from the GPU instance.
	ForceSoftware bool `toml:"force_software"`
}

// AssetsConfig describes where assets and shaders are found.
type AssetsConfig struct {
	Root      string `toml:"root"`
	ShaderDir string `toml:"shader_dir"`
	HotReload bool   `toml:"hot_reload"`

	// DecodeWorkers is the size of the worker pool used to decode images during Preload.
	DecodeWorkers int `toml:"decode_workers"`
}

// SceneConfig lists the content loaded at start-up. A scene file, when named, replaces the
// environment, meshes and lights listed here.
type SceneConfig struct {
	File        string        `toml:"file"`
	Environment string        `toml:"environment"`
	Meshes      []MeshConfig  `toml:"meshes,omitempty"`
	Lights      []LightConfig `toml:"lights,omitempty"`
}

// MeshConfig places one mesh file in the scene.
type MeshConfig struct {
	Path     string     `toml:"path"`
	Position [3]float32 `toml:"position"`
	Rotation [3]float32 `toml:"rotation"`
	Scale    [3]float32 `toml:"scale"`
}

// LightConfig places one light in the scene. Kind is "directional" or "point".
type LightConfig struct {
	Kind      string     `toml:"kind"`
	Color     [3]float32 `toml:"color"`
	Intensity float32    `toml:"intensity"`
	Position  [3]float32 `toml:"position"`
}

// LogConfig controls the shared logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is supplied.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "lumen",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			VSync:           true,
			Exposure:        0.3,
			TargetSwapChain: true,
		},
		Assets: AssetsConfig{
			Root:          "assets",
			DecodeWorkers: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path and decodes it over Default(). Unknown keys are rejected
// so typos surface at start-up instead of silently falling back to defaults.
//
// Parameters:
//   - path: the configuration file path
//
// Returns:
//   - Config: the merged configuration
//   - error: an error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML bytes over Default() and validates the result.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the merged configuration
//   - error: an error if decoding or validation fails
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside the renderer.
//
// Returns:
//   - error: an ErrInvalidConfig-wrapped error describing the first problem found
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	if c.Renderer.Exposure < 0 {
		return fmt.Errorf("%w: negative exposure %v", ErrInvalidConfig, c.Renderer.Exposure)
	}
	if c.Assets.DecodeWorkers < 1 {
		return fmt.Errorf("%w: decode_workers must be at least 1", ErrInvalidConfig)
	}
	for i, l := range c.Scene.Lights {
		if l.Kind != "directional" && l.Kind != "point" {
			return fmt.Errorf("%w: light %d has unknown kind %q", ErrInvalidConfig, i, l.Kind)
		}
	}
	return nil
}

// Encode renders the configuration back to TOML, used by the CLI to print the effective config.
//
// Returns:
//   - []byte: the TOML document
//   - error: an error if encoding fails
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
