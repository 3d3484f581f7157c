package scene

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/lumen/engine/config"
	"github.com/Carmen-Shannon/lumen/engine/game_object"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidSceneFile is returned for scene files that decode but describe impossible objects.
var ErrInvalidSceneFile = errors.New("scene: invalid scene file")

// sceneFile is the TOML layout of a saved scene. Material overrides are runtime objects and
// are not saved.
type sceneFile struct {
	Name    string         `toml:"name"`
	Objects []objectRecord `toml:"object"`
}

type objectRecord struct {
	Name     string          `toml:"name"`
	Disabled bool            `toml:"disabled,omitempty"`
	Position [3]float32      `toml:"position"`
	Rotation [3]float32      `toml:"rotation"`
	Scale    [3]float32      `toml:"scale"`
	Mesh     string          `toml:"mesh,omitempty"`
	SkyLight *skyLightRecord `toml:"sky_light,omitempty"`
	Light    *lightRecord    `toml:"light,omitempty"`
}

type skyLightRecord struct {
	Environment string  `toml:"environment"`
	Intensity   float32 `toml:"intensity"`
}

type lightRecord struct {
	Kind      string     `toml:"kind"`
	Color     [3]float32 `toml:"color"`
	Intensity float32    `toml:"intensity"`
}

// Marshal encodes a scene's objects as TOML, in ID order.
//
// Parameters:
//   - s: the scene to encode
//
// Returns:
//   - []byte: the TOML document
//   - error: an encoding error
func Marshal(s Scene) ([]byte, error) {
	file := sceneFile{Name: s.Name()}
	for _, obj := range s.Objects() {
		t := obj.Transform()
		rec := objectRecord{
			Name:     obj.Name(),
			Disabled: !obj.Enabled(),
			Position: t.Position,
			Rotation: t.Rotation,
			Scale:    t.Scale,
			Mesh:     obj.MeshPath(),
		}
		if sky := obj.SkyLight(); sky != nil {
			rec.SkyLight = &skyLightRecord{Environment: sky.EnvironmentPath, Intensity: sky.Intensity}
		}
		if l := obj.Light(); l != nil {
			rec.Light = &lightRecord{Kind: l.Kind.String(), Color: l.Color, Intensity: l.Intensity}
		}
		file.Objects = append(file.Objects, rec)
	}
	return toml.Marshal(file)
}

// Unmarshal decodes a TOML scene. Objects get fresh IDs in file order.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Scene: the decoded scene
//   - error: a decode error or ErrInvalidSceneFile
func Unmarshal(data []byte) (Scene, error) {
	var file sceneFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("scene: failed to decode: %w", err)
	}

	s := NewScene(file.Name)
	for i, rec := range file.Objects {
		opts := []game_object.GameObjectBuilderOption{
			game_object.WithName(rec.Name),
			game_object.WithEnabled(!rec.Disabled),
			game_object.WithTransform(transformOf(rec.Position, rec.Rotation, rec.Scale)),
		}
		if rec.Mesh != "" {
			opts = append(opts, game_object.WithMesh(rec.Mesh))
		}
		if rec.SkyLight != nil {
			opts = append(opts, game_object.WithSkyLight(rec.SkyLight.Environment, rec.SkyLight.Intensity))
		}
		if rec.Light != nil {
			opt, err := lightOption(rec.Light.Kind, rec.Light.Color, rec.Light.Intensity)
			if err != nil {
				return nil, fmt.Errorf("%w: object %d (%s): %v", ErrInvalidSceneFile, i, rec.Name, err)
			}
			opts = append(opts, opt)
		}
		s.Add(game_object.NewGameObject(opts...))
	}
	return s, nil
}

// Save writes a scene to a TOML file.
func Save(s Scene, path string) error {
	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("scene: failed to encode %s: %w", s.Name(), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scene: failed to write %q: %w", path, err)
	}
	logger.Info("saved scene", "name", s.Name(), "path", path, "objects", len(s.Objects()))
	return nil
}

// Load reads a TOML scene file. Its assets are not loaded; call LoadAssets.
//
// Parameters:
//   - path: the scene file
//
// Returns:
//   - Scene: the decoded scene
//   - error: a read or decode error
func Load(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: failed to read %q: %w", path, err)
	}
	return Unmarshal(data)
}

// FromConfig builds the start-up scene described by the configuration: a scene file when one
// is named, otherwise a sky light for the environment plus one object per mesh and light.
//
// Parameters:
//   - cfg: the [scene] section of the configuration
//
// Returns:
//   - Scene: the start-up scene
//   - error: a scene file or light error
func FromConfig(cfg config.SceneConfig) (Scene, error) {
	if cfg.File != "" {
		return Load(cfg.File)
	}

	s := NewScene("Scene")
	if cfg.Environment != "" {
		s.Add(game_object.NewGameObject(
			game_object.WithName("Sky Light"),
			game_object.WithSkyLight(cfg.Environment, 1),
		))
	}
	for i, m := range cfg.Meshes {
		s.Add(game_object.NewGameObject(
			game_object.WithName(fmt.Sprintf("Mesh %d", i)),
			game_object.WithTransform(transformOf(m.Position, m.Rotation, m.Scale)),
			game_object.WithMesh(m.Path),
		))
	}
	for i, l := range cfg.Lights {
		opt, err := lightOption(l.Kind, l.Color, l.Intensity)
		if err != nil {
			return nil, fmt.Errorf("scene: light %d: %w", i, err)
		}
		s.Add(game_object.NewGameObject(
			game_object.WithName(fmt.Sprintf("Light %d", i)),
			game_object.WithPosition(l.Position[0], l.Position[1], l.Position[2]),
			opt,
		))
	}
	return s, nil
}

// transformOf builds a transform, reading an all-zero scale as unit scale.
func transformOf(position, rotation, scale [3]float32) game_object.Transform {
	if scale == [3]float32{} {
		scale = [3]float32{1, 1, 1}
	}
	return game_object.Transform{Position: position, Rotation: rotation, Scale: scale}
}

func lightOption(kind string, color [3]float32, intensity float32) (game_object.GameObjectBuilderOption, error) {
	switch kind {
	case game_object.LightDirectional.String():
		return game_object.WithDirectionalLight(mgl32.Vec3(color), intensity), nil
	case game_object.LightPoint.String():
		return game_object.WithPointLight(mgl32.Vec3(color), intensity), nil
	default:
		return nil, fmt.Errorf("unknown light kind %q", kind)
	}
}
