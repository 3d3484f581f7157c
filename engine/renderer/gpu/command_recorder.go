package gpu

import (
	"sync"
)

// CommandRecorder records device commands without touching the device. A recorder may be
// filled on any goroutine; execution through Device.ExecuteCommandBuffer is serialized by
// the device and resets the recorder afterwards.
type CommandRecorder interface {
	// Label returns the debug label of the recorder.
	Label() string

	// SetVertexBuffer binds the vertex buffer read by subsequent draws.
	SetVertexBuffer(buf Buffer)

	// SetIndexBuffer binds the 32-bit index buffer read by subsequent draws.
	SetIndexBuffer(buf Buffer)

	// SetBufferData uploads data into buf with write-discard semantics. Panics when data is
	// larger than the buffer.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - data: the bytes to upload, copied at record time
	SetBufferData(buf Buffer, data []byte)

	// SetGraphicsPipelineState binds a program together with the per-draw state snapshot,
	// topology and input layout. State is never elided: every draw rebinds it.
	//
	// Parameters:
	//   - state: the graphics state to bind
	SetGraphicsPipelineState(state GraphicsState)

	// SetConstantBufferData uploads data into buf and binds it to a constant register of a
	// stage. Panics when data is larger than the buffer.
	//
	// Parameters:
	//   - stage: the stage whose register is bound
	//   - register: the b-register the shader declared the buffer at
	//   - buf: the constant buffer
	//   - data: the bytes to upload, copied at record time
	SetConstantBufferData(stage Stage, register int, buf Buffer, data []byte)

	// SetShaderResources binds textures to consecutive t-registers starting at start.
	// Nil entries leave the register unbound.
	SetShaderResources(stage Stage, start int, textures []Texture)

	// SetSamplers binds the samplers described by each texture's wrap and filter to
	// consecutive s-registers starting at start.
	SetSamplers(stage Stage, start int, textures []Texture)

	// SetStorageTextures binds single mips of textures to consecutive u-registers of the
	// compute stage starting at start.
	SetStorageTextures(start int, views []StorageView)

	// ClearRenderTarget clears a color texture.
	ClearRenderTarget(target Texture, color Color)

	// ClearDepthStencil clears a depth texture to depth 1 and stencil 0.
	ClearDepthStencil(target Texture)

	// SetRenderTargets binds the color attachments and optional depth attachment for
	// subsequent draws.
	SetRenderTargets(colors []Texture, depth Texture)

	SetViewport(viewport Viewport)
	SetScissorRect(rect Rect)

	// DrawIndexed draws indexCount indices starting at startIndex, adding baseVertex to each.
	DrawIndexed(indexCount, startIndex uint32, baseVertex int32)

	// Dispatch runs a compute program over x*y*z thread groups.
	Dispatch(program Program, x, y, z uint32)

	// CopyTexture copies one subresource (layer*mipCount + mip) of src into dst.
	CopyTexture(dst, src Texture, subresource int)

	// GenerateMips fills mips 1..n-1 of tex by successive downsampling of mip 0.
	GenerateMips(tex Texture)

	// Finish seals the recorded commands into an executable list. Recording after Finish panics.
	Finish()

	// Reset discards every recorded command and unseals the recorder.
	Reset()

	// IsFinished reports whether Finish has been called since the last Reset.
	IsFinished() bool

	// Commands returns a copy of the recorded commands.
	Commands() []Command

	// Len returns the number of recorded commands.
	Len() int
}

// commandRecorder is the implementation of the CommandRecorder interface.
type commandRecorder struct {
	mu       *sync.Mutex
	label    string
	owner    Device
	commands []Command
	finished bool
}

var _ CommandRecorder = &commandRecorder{}

func newCommandRecorder(owner Device, label string) *commandRecorder {
	return &commandRecorder{
		mu:       &sync.Mutex{},
		label:    label,
		owner:    owner,
		commands: make([]Command, 0, 64),
	}
}

func (r *commandRecorder) Label() string {
	return r.label
}

func (r *commandRecorder) record(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		violation(ErrRecorderSealed, "gpu: %s recorded on sealed recorder %q", cmd.Type(), r.label)
	}
	r.commands = append(r.commands, cmd)
}

func checkCapacity(buf Buffer, data []byte) {
	if buf == nil {
		violation(ErrInvalidDescriptor, "gpu: upload to nil buffer")
	}
	if len(data) > buf.Size() {
		violation(ErrCapacityExceeded, "gpu: %d byte upload into %q of capacity %d", len(data), buf.Label(), buf.Size())
	}
}

func (r *commandRecorder) SetVertexBuffer(buf Buffer) {
	r.record(BindVertexBufferCmd{Buffer: buf})
}

func (r *commandRecorder) SetIndexBuffer(buf Buffer) {
	r.record(BindIndexBufferCmd{Buffer: buf})
}

func (r *commandRecorder) SetBufferData(buf Buffer, data []byte) {
	checkCapacity(buf, data)
	r.record(UploadBufferCmd{Buffer: buf, Data: append([]byte(nil), data...)})
}

func (r *commandRecorder) SetGraphicsPipelineState(state GraphicsState) {
	r.record(SetPipelineStateCmd{State: state})
}

func (r *commandRecorder) SetConstantBufferData(stage Stage, register int, buf Buffer, data []byte) {
	checkCapacity(buf, data)
	r.record(UploadConstantsCmd{
		Stage:    stage,
		Register: register,
		Buffer:   buf,
		Data:     append([]byte(nil), data...),
	})
}

func (r *commandRecorder) SetShaderResources(stage Stage, start int, textures []Texture) {
	r.record(BindTexturesCmd{Stage: stage, Start: start, Textures: append([]Texture(nil), textures...)})
}

func (r *commandRecorder) SetSamplers(stage Stage, start int, textures []Texture) {
	r.record(BindSamplersCmd{Stage: stage, Start: start, Textures: append([]Texture(nil), textures...)})
}

func (r *commandRecorder) SetStorageTextures(start int, views []StorageView) {
	r.record(BindStorageTexturesCmd{Start: start, Views: append([]StorageView(nil), views...)})
}

func (r *commandRecorder) ClearRenderTarget(target Texture, color Color) {
	r.record(ClearRenderTargetCmd{Target: target, Color: color})
}

func (r *commandRecorder) ClearDepthStencil(target Texture) {
	r.record(ClearDepthStencilCmd{Target: target, Depth: 1, Stencil: 0})
}

func (r *commandRecorder) SetRenderTargets(colors []Texture, depth Texture) {
	r.record(SetRenderTargetsCmd{Colors: append([]Texture(nil), colors...), Depth: depth})
}

func (r *commandRecorder) SetViewport(viewport Viewport) {
	r.record(SetViewportCmd{Viewport: viewport})
}

func (r *commandRecorder) SetScissorRect(rect Rect) {
	r.record(SetScissorCmd{Rect: rect})
}

func (r *commandRecorder) DrawIndexed(indexCount, startIndex uint32, baseVertex int32) {
	r.record(DrawIndexedCmd{IndexCount: indexCount, StartIndex: startIndex, BaseVertex: baseVertex})
}

func (r *commandRecorder) Dispatch(program Program, x, y, z uint32) {
	r.record(DispatchCmd{Program: program, X: x, Y: y, Z: z})
}

func (r *commandRecorder) CopyTexture(dst, src Texture, subresource int) {
	r.record(CopyTextureCmd{Dst: dst, Src: src, Subresource: subresource})
}

func (r *commandRecorder) GenerateMips(tex Texture) {
	r.record(GenerateMipsCmd{Texture: tex})
}

func (r *commandRecorder) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
}

func (r *commandRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = r.commands[:0]
	r.finished = false
}

func (r *commandRecorder) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

func (r *commandRecorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

func (r *commandRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

// take returns the sealed command list for execution.
func (r *commandRecorder) take() ([]Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finished {
		return nil, ErrRecorderNotFinished
	}
	return r.commands, nil
}
