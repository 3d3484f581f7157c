package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMergesOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[window]
title = "viewer"

[renderer]
exposure = 0.8
vsync = false

[[scene.meshes]]
path = "meshes/helmet.glb"
position = [0.0, 1.0, 0.0]
scale = [1.0, 1.0, 1.0]
`))
	require.NoError(t, err)

	assert.Equal(t, "viewer", cfg.Window.Title)
	assert.Equal(t, 1280, cfg.Window.Width)
	assert.Equal(t, float32(0.8), cfg.Renderer.Exposure)
	assert.False(t, cfg.Renderer.VSync)
	assert.True(t, cfg.Renderer.TargetSwapChain)
	require.Len(t, cfg.Scene.Meshes, 1)
	assert.Equal(t, [3]float32{0, 1, 0}, cfg.Scene.Meshes[0].Position)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[window]\ntitel = \"oops\"\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Window.Width = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = Default()
	cfg.Scene.Lights = []LightConfig{{Kind: "area"}}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	assert.NoError(t, Default().Validate())
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Scene.Environment = "env/studio.hdr"
	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "meshes")

	path := filepath.Join(t.TempDir(), "lumen.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadRoundTripWithSceneLists(t *testing.T) {
	cfg := Default()
	cfg.Scene.Meshes = []MeshConfig{{Path: "models/helmet.glb", Scale: [3]float32{1, 1, 1}}}
	cfg.Scene.Lights = []LightConfig{{Kind: "point", Color: [3]float32{1, 1, 1}, Intensity: 2}}
	data, err := cfg.Encode()
	require.NoError(t, err)

	loaded, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
