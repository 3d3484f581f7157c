package game_object

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestNewGameObjectDefaults(t *testing.T) {
	obj := NewGameObject()
	assert.Equal(t, uint64(0), obj.ID())
	assert.Equal(t, "Unnamed", obj.Name())
	assert.True(t, obj.Enabled())
	assert.Equal(t, IdentityTransform(), obj.Transform())
	assert.True(t, obj.Matrix().ApproxEqual(mgl32.Ident4()))
	assert.Empty(t, obj.MeshPath())
	assert.Nil(t, obj.SkyLight())
	assert.Nil(t, obj.Light())
}

func TestBuilderOptions(t *testing.T) {
	obj := NewGameObject(
		WithName("Helmet"),
		WithEnabled(false),
		WithPosition(1, 2, 3),
		WithRotation(0, 90, 0),
		WithScale(2, 2, 2),
		WithMesh("meshes/helmet.glb"),
		WithSkyLight("env/studio.hdr", 0.5),
		WithPointLight(mgl32.Vec3{1, 0.5, 0}, 3),
	)
	assert.Equal(t, "Helmet", obj.Name())
	assert.False(t, obj.Enabled())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, obj.Transform().Position)
	assert.Equal(t, "meshes/helmet.glb", obj.MeshPath())
	assert.Equal(t, &SkyLight{EnvironmentPath: "env/studio.hdr", Intensity: 0.5}, obj.SkyLight())
	assert.Equal(t, LightPoint, obj.Light().Kind)
	assert.Equal(t, float32(3), obj.Light().Intensity)

	obj = NewGameObject(WithDirectionalLight(mgl32.Vec3{1, 1, 1}, 1))
	assert.Equal(t, LightDirectional, obj.Light().Kind)
}

func TestTransformMatrix(t *testing.T) {
	tr := Transform{
		Position: mgl32.Vec3{10, 0, 0},
		Rotation: mgl32.Vec3{0, 90, 0},
		Scale:    mgl32.Vec3{2, 2, 2},
	}
	// Scale, then rotate +X onto -Z, then translate.
	p := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 10, p[0], 1e-5)
	assert.InDelta(t, 0, p[1], 1e-5)
	assert.InDelta(t, -2, p[2], 1e-5)
}

func TestSetters(t *testing.T) {
	obj := NewGameObject()
	obj.SetID(7)
	obj.SetName("Lamp")
	obj.SetEnabled(false)
	obj.SetPosition(0, 5, 0)
	obj.SetRotation(45, 0, 0)
	obj.SetScale(1, 2, 3)
	obj.SetMesh("a.glb", nil)
	obj.SetLight(&LightComponent{Kind: LightPoint, Color: mgl32.Vec3{1, 1, 1}, Intensity: 2})

	assert.Equal(t, uint64(7), obj.ID())
	assert.Equal(t, "Lamp", obj.Name())
	assert.False(t, obj.Enabled())
	assert.Equal(t, Transform{
		Position: mgl32.Vec3{0, 5, 0},
		Rotation: mgl32.Vec3{45, 0, 0},
		Scale:    mgl32.Vec3{1, 2, 3},
	}, obj.Transform())
	assert.Len(t, obj.MaterialOverrides(), 1)

	obj.SetMesh("")
	obj.SetLight(nil)
	obj.SetSkyLight(nil)
	assert.Empty(t, obj.MeshPath())
	assert.Empty(t, obj.MaterialOverrides())
	assert.Nil(t, obj.Light())
}

func TestLightKindString(t *testing.T) {
	assert.Equal(t, "directional", LightDirectional.String())
	assert.Equal(t, "point", LightPoint.String())
	assert.Equal(t, "unknown", LightKind(9).String())
}
