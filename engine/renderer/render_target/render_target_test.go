package render_target

import (
	"testing"

	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeometryTarget(d gpu.Device) RenderTarget {
	return NewRenderTarget(d,
		WithLabel("Geometry"),
		WithSize(1280, 720),
		WithClearColor(gpu.Color{R: 0.1, G: 0.2, B: 0.3, A: 1}),
		WithAttachments(
			Attachment{Format: wgpu.TextureFormatRGBA16Float},
			Attachment{Format: gpu.SwapChainDepthFormat},
		),
	)
}

func TestNewRenderTargetAllocatesAttachments(t *testing.T) {
	rt := newGeometryTarget(gpu.NewHeadlessDevice(64, 64))

	color := rt.ColorAttachment(0)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, color.Format())
	assert.Equal(t, 1280, color.Width())
	assert.Equal(t, gpu.TextureUsageRenderTarget|gpu.TextureUsageSampled, color.Desc().Usage)

	depth := rt.DepthAttachment()
	require.NotNil(t, depth)
	assert.True(t, depth.IsDepth())
	assert.Equal(t, gpu.TextureUsageDepthStencil, depth.Desc().Usage)

	assert.Len(t, rt.ColorAttachments(), 1)
	assert.Equal(t, gpu.Color{R: 0.1, G: 0.2, B: 0.3, A: 1}, rt.ClearColor())
	assert.Panics(t, func() { rt.ColorAttachment(1) })
}

func TestResizeKeepsIdentityOnEqualSize(t *testing.T) {
	rt := newGeometryTarget(gpu.NewHeadlessDevice(64, 64))
	color, depth := rt.ColorAttachment(0).ID(), rt.DepthAttachment().ID()

	rt.Resize(1280, 720)
	assert.Equal(t, color, rt.ColorAttachment(0).ID())
	assert.Equal(t, depth, rt.DepthAttachment().ID())
}

func TestResizeRecreatesAttachments(t *testing.T) {
	rt := newGeometryTarget(gpu.NewHeadlessDevice(64, 64))
	color := rt.ColorAttachment(0).ID()
	before := rt.Attachments()

	rt.Resize(1920, 1080)

	assert.NotEqual(t, color, rt.ColorAttachment(0).ID())
	assert.Equal(t, before, rt.Attachments())
	assert.Len(t, rt.ColorAttachments(), 1)
	require.NotNil(t, rt.DepthAttachment())
	assert.Equal(t, gpu.SwapChainDepthFormat, rt.DepthAttachment().Format())
	assert.Equal(t, 1920, rt.DepthAttachment().Width())
	assert.Equal(t, gpu.Viewport{Width: 1920, Height: 1080, MaxDepth: 1}, rt.Viewport())
}

func TestCubeAttachment(t *testing.T) {
	rt := NewRenderTarget(gpu.NewHeadlessDevice(64, 64),
		WithSize(128, 128),
		WithAttachments(Attachment{Format: wgpu.TextureFormatRGBA16Float, Cube: true, MipCount: 4}),
	)
	assert.True(t, rt.ColorAttachment(0).IsCube())
	assert.Equal(t, 4, rt.ColorAttachment(0).MipCount())
	assert.Nil(t, rt.DepthAttachment())
}

func TestDefaultsAndValidation(t *testing.T) {
	d := gpu.NewHeadlessDevice(64, 64)
	rt := NewRenderTarget(d)
	assert.Equal(t, 1280, rt.Width())
	assert.Equal(t, 720, rt.Height())
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, rt.ColorAttachment(0).Format())

	assert.Panics(t, func() {
		NewRenderTarget(d, WithAttachments(
			Attachment{Format: gpu.SwapChainDepthFormat},
			Attachment{Format: wgpu.TextureFormatDepth32Float},
		))
	})
	assert.Panics(t, func() { NewRenderTarget(d, WithSize(0, 720)) })
}
