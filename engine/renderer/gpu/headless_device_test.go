package gpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProgram(t *testing.T, d Device, compute bool) Program {
	t.Helper()
	desc := ProgramDesc{Label: "test", Source: "// wgsl"}
	if compute {
		desc.ComputeEntry = "cs_main"
	} else {
		desc.VertexEntry = "vs_main"
		desc.FragmentEntry = "fs_main"
	}
	p, err := d.CreateProgram(desc)
	require.NoError(t, err)
	return p
}

func TestHeadlessExecuteStoresUploadsAndResets(t *testing.T) {
	d := NewHeadlessDevice(64, 64)
	cb := newTestBuffer(t, d, BufferKindConstant, 8)
	rec := d.NewCommandRecorder("uploads")

	rec.SetConstantBufferData(StageVertex, 0, cb, []byte{1, 2, 3, 4})
	rec.Finish()
	require.NoError(t, d.ExecuteCommandBuffer(rec))

	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, cb.Contents())
	assert.False(t, rec.IsFinished())
	assert.Equal(t, 0, rec.Len())

	executed := d.Executed()
	require.Len(t, executed, 1)
	assert.Equal(t, "uploads", executed[0].Label)
	assert.Len(t, executed[0].Commands, 1)
	assert.Equal(t, 1, d.Stats().Uploads)
}

func TestHeadlessRejectsUnfinishedAndForeignRecorders(t *testing.T) {
	d := NewHeadlessDevice(64, 64)
	other := NewHeadlessDevice(64, 64)

	rec := d.NewCommandRecorder("open")
	assert.ErrorIs(t, d.ExecuteCommandBuffer(rec), ErrRecorderNotFinished)

	foreign := other.NewCommandRecorder("foreign")
	foreign.Finish()
	assert.ErrorIs(t, d.ExecuteCommandBuffer(foreign), ErrForeignRecorder)
}

func TestHeadlessDrawValidation(t *testing.T) {
	d := NewHeadlessDevice(64, 64)
	color, depth := d.SwapChain()
	vb := newTestBuffer(t, d, BufferKindVertex, 56*3)
	ib := newTestBuffer(t, d, BufferKindIndex, 12)
	prog := newTestProgram(t, d, false)

	rec := d.NewCommandRecorder("draw")
	rec.SetRenderTargets([]Texture{color}, depth)
	rec.ClearRenderTarget(color, Color{R: 0.1, G: 0.2, B: 0.3, A: 1})
	rec.ClearDepthStencil(depth)
	rec.SetGraphicsPipelineState(GraphicsState{Program: prog, State: DefaultStateSnapshot(), Topology: wgpu.PrimitiveTopologyTriangleList})
	rec.SetVertexBuffer(vb)
	rec.SetIndexBuffer(ib)
	rec.DrawIndexed(3, 0, 0)
	rec.Finish()
	require.NoError(t, d.ExecuteCommandBuffer(rec))
	assert.Equal(t, 1, d.Stats().Draws)

	rec.SetRenderTargets([]Texture{color}, depth)
	rec.SetGraphicsPipelineState(GraphicsState{Program: prog, State: DefaultStateSnapshot()})
	rec.SetVertexBuffer(vb)
	rec.SetIndexBuffer(ib)
	rec.DrawIndexed(6, 0, 0)
	rec.Finish()
	assert.Error(t, d.ExecuteCommandBuffer(rec))

	rec.Reset()
	rec.SetVertexBuffer(vb)
	rec.SetIndexBuffer(ib)
	rec.DrawIndexed(3, 0, 0)
	rec.Finish()
	assert.Error(t, d.ExecuteCommandBuffer(rec))
}

func TestHeadlessClearValidation(t *testing.T) {
	d := NewHeadlessDevice(64, 64)
	color, depth := d.SwapChain()

	rec := d.NewCommandRecorder("clear")
	rec.ClearRenderTarget(depth, Color{})
	rec.Finish()
	assert.Error(t, d.ExecuteCommandBuffer(rec))

	rec.Reset()
	rec.ClearDepthStencil(color)
	rec.Finish()
	assert.Error(t, d.ExecuteCommandBuffer(rec))
}

func TestHeadlessDispatchNeedsComputeProgram(t *testing.T) {
	d := NewHeadlessDevice(64, 64)
	render := newTestProgram(t, d, false)
	compute := newTestProgram(t, d, true)

	rec := d.NewCommandRecorder("dispatch")
	rec.Dispatch(compute, 8, 8, 6)
	rec.Finish()
	require.NoError(t, d.ExecuteCommandBuffer(rec))
	assert.Equal(t, 1, d.Stats().Dispatches)

	rec.Dispatch(render, 1, 1, 1)
	rec.Finish()
	assert.Error(t, d.ExecuteCommandBuffer(rec))
}

func TestHeadlessCopyRange(t *testing.T) {
	d := NewHeadlessDevice(64, 64)
	src, err := d.CreateTexture(TextureDesc{Label: "src", Width: 64, Height: 64, MipCount: 7, Cube: true, Format: wgpu.TextureFormatRGBA16Float, Usage: TextureUsageStorage}, nil)
	require.NoError(t, err)
	dst, err := d.CreateTexture(TextureDesc{Label: "dst", Width: 64, Height: 64, MipCount: 7, Cube: true, Format: wgpu.TextureFormatRGBA16Float, Usage: TextureUsageSampled}, nil)
	require.NoError(t, err)
	small, err := d.CreateTexture(TextureDesc{Label: "small", Width: 64, Height: 64, Cube: true, Format: wgpu.TextureFormatRGBA16Float, Usage: TextureUsageSampled}, nil)
	require.NoError(t, err)

	rec := d.NewCommandRecorder("copy")
	for layer := range 6 {
		for mip := range 7 {
			rec.CopyTexture(dst, src, Subresource(layer, mip, 7))
		}
	}
	rec.Finish()
	require.NoError(t, d.ExecuteCommandBuffer(rec))

	rec.CopyTexture(small, src, Subresource(0, 3, 7))
	rec.Finish()
	assert.Error(t, d.ExecuteCommandBuffer(rec))
}

func TestHeadlessTextureValidation(t *testing.T) {
	d := NewHeadlessDevice(64, 64)

	_, err := d.CreateTexture(TextureDesc{Width: 0, Height: 4}, nil)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = d.CreateTexture(TextureDesc{Width: 8, Height: 4, Cube: true}, nil)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = d.CreateTexture(TextureDesc{Width: 1024, Height: 1024, MipCount: 12}, nil)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	tex, err := d.CreateTexture(TextureDesc{Width: 1024, Height: 1024, MipCount: 11, Cube: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 11, tex.MipCount())
	assert.True(t, tex.IsCube())
	assert.NotEmpty(t, tex.ID())
}

func TestHeadlessBufferValidation(t *testing.T) {
	d := NewHeadlessDevice(64, 64)

	_, err := d.CreateBuffer(BufferDesc{Size: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = d.CreateBuffer(BufferDesc{Size: 2}, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	buf, err := d.CreateBuffer(BufferDesc{Size: 4, Kind: BufferKindIndex}, []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0, 0}, buf.Contents())
}

func TestHeadlessResizeSwapChain(t *testing.T) {
	d := NewHeadlessDevice(64, 64)
	color, depth := d.SwapChain()

	require.NoError(t, d.ResizeSwapChain(64, 64))
	sameColor, sameDepth := d.SwapChain()
	assert.Equal(t, color.ID(), sameColor.ID())
	assert.Equal(t, depth.ID(), sameDepth.ID())

	require.NoError(t, d.ResizeSwapChain(128, 32))
	newColor, newDepth := d.SwapChain()
	assert.NotEqual(t, color.ID(), newColor.ID())
	assert.Equal(t, 128, newColor.Width())
	assert.Equal(t, 32, newDepth.Height())
	assert.Equal(t, SwapChainDepthFormat, newDepth.Format())
}

func TestNewDevice(t *testing.T) {
	d, err := NewDevice(BackendTypeHeadless, WithSize(320, 200))
	require.NoError(t, err)
	assert.Equal(t, BackendTypeHeadless, d.Backend())
	color, _ := d.SwapChain()
	assert.Equal(t, 320, color.Width())

	_, err = NewDevice(BackendTypeWGPU)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	require.NoError(t, d.Present(true))
	assert.Equal(t, 1, d.(HeadlessDevice).Stats().Presents)
}

func TestHeadlessRetainsMostRecentLists(t *testing.T) {
	d := newHeadlessDevice(&deviceConfig{width: 64, height: 64, retainLists: 2})
	for _, label := range []string{"first", "second", "third"} {
		rec := d.NewCommandRecorder(label)
		rec.Finish()
		require.NoError(t, d.ExecuteCommandBuffer(rec))
	}

	executed := d.Executed()
	require.Len(t, executed, 2)
	assert.Equal(t, "second", executed[0].Label)
	assert.Equal(t, "third", executed[1].Label)
	assert.Equal(t, 3, d.Stats().Lists)

	dev, err := NewDevice(BackendTypeHeadless, WithSize(64, 64), WithRetainedLists(0))
	require.NoError(t, err)
	for i := 0; i < DefaultRetainedLists+1; i++ {
		rec := dev.NewCommandRecorder("frame")
		rec.Finish()
		require.NoError(t, dev.ExecuteCommandBuffer(rec))
	}
	assert.Len(t, dev.(HeadlessDevice).Executed(), DefaultRetainedLists+1)
}

func TestNewDeviceCapsRetainedLists(t *testing.T) {
	dev, err := NewDevice(BackendTypeHeadless, WithSize(64, 64))
	require.NoError(t, err)
	for i := 0; i < DefaultRetainedLists+5; i++ {
		rec := dev.NewCommandRecorder("frame")
		rec.Finish()
		require.NoError(t, dev.ExecuteCommandBuffer(rec))
	}
	assert.Len(t, dev.(HeadlessDevice).Executed(), DefaultRetainedLists)
	assert.Equal(t, DefaultRetainedLists+5, dev.(HeadlessDevice).Stats().Lists)
}

func TestHeadlessCountsReleases(t *testing.T) {
	d := NewHeadlessDevice(64, 64)
	tex, err := d.CreateTexture(TextureDesc{Label: "tmp", Width: 4, Height: 4}, nil)
	require.NoError(t, err)

	d.ReleaseTexture(tex)
	d.ReleaseTexture(nil)
	assert.Equal(t, 1, d.Stats().Releases)
}
