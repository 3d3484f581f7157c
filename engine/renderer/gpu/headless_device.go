package gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/lumen/engine/logger"
)

// ExecutedList is one command list executed by the headless device.
type ExecutedList struct {
	Label    string
	Commands []Command
}

// Stats counts the work a device has executed since it was created.
type Stats struct {
	Lists      int
	Commands   int
	Draws      int
	Dispatches int
	Uploads    int
	Presents   int
	Releases   int
}

// HeadlessDevice is the recording Device. It creates resources without a GPU, validates
// command lists as they execute and keeps every executed list for inspection.
type HeadlessDevice interface {
	Device

	// Executed returns the retained command lists, oldest first. Every list is retained
	// unless the device was created with WithRetainedLists.
	Executed() []ExecutedList

	// Stats returns counters for the executed work.
	Stats() Stats
}

// headlessDevice is the implementation of the HeadlessDevice interface.
type headlessDevice struct {
	mu *sync.Mutex

	swapColor *texture
	swapDepth *texture

	executed []ExecutedList
	retain   int
	stats    Stats
	closed   bool
}

var _ HeadlessDevice = &headlessDevice{}

func newHeadlessDevice(cfg *deviceConfig) *headlessDevice {
	d := &headlessDevice{
		mu:     &sync.Mutex{},
		retain: cfg.retainLists,
	}
	d.createSwapChain(cfg.width, cfg.height)
	logger.Debug("headless device created", "width", cfg.width, "height", cfg.height)
	return d
}

// NewHeadlessDevice creates a recording device with a swap chain of the given size.
//
// Parameters:
//   - width: the swap chain width
//   - height: the swap chain height
//
// Returns:
//   - HeadlessDevice: the created device
func NewHeadlessDevice(width, height int) HeadlessDevice {
	return newHeadlessDevice(&deviceConfig{width: width, height: height, vsync: true})
}

func (d *headlessDevice) createSwapChain(width, height int) {
	d.swapColor = newTexture(TextureDesc{
		Label:  "Swap Chain Color",
		Width:  width,
		Height: height,
		Format: swapChainColorFormat,
		Usage:  TextureUsageRenderTarget,
	})
	d.swapDepth = newTexture(TextureDesc{
		Label:  "Swap Chain Depth",
		Width:  width,
		Height: height,
		Format: SwapChainDepthFormat,
		Usage:  TextureUsageDepthStencil,
	})
}

func (d *headlessDevice) Backend() BackendType {
	return BackendTypeHeadless
}

func (d *headlessDevice) CreateBuffer(desc BufferDesc, data []byte) (Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("%w: buffer %q has size %d", ErrInvalidDescriptor, desc.Label, desc.Size)
	}
	if len(data) > desc.Size {
		return nil, fmt.Errorf("%w: %d initial bytes for buffer %q of size %d", ErrCapacityExceeded, len(data), desc.Label, desc.Size)
	}
	return newBuffer(desc, data), nil
}

func (d *headlessDevice) CreateTexture(desc TextureDesc, data *ImageData) (Texture, error) {
	if err := validateTextureDesc(desc); err != nil {
		return nil, err
	}
	return newTexture(desc), nil
}

func (d *headlessDevice) ReleaseTexture(tex Texture) {
	if tex == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Releases++
}

func (d *headlessDevice) CreateProgram(desc ProgramDesc) (Program, error) {
	if desc.Source == "" {
		return nil, fmt.Errorf("%w: program %q has no source", ErrInvalidDescriptor, desc.Label)
	}
	if !desc.IsCompute() && (desc.VertexEntry == "" || desc.FragmentEntry == "") {
		return nil, fmt.Errorf("%w: render program %q needs vertex and fragment entry points", ErrInvalidDescriptor, desc.Label)
	}
	return newProgram(desc), nil
}

func (d *headlessDevice) NewCommandRecorder(label string) CommandRecorder {
	return newCommandRecorder(d, label)
}

func (d *headlessDevice) ExecuteCommandBuffer(rec CommandRecorder) error {
	r, ok := rec.(*commandRecorder)
	if !ok || r.owner != Device(d) {
		return ErrForeignRecorder
	}
	cmds, err := r.take()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.replay(cmds); err != nil {
		return fmt.Errorf("gpu: executing %q: %w", r.label, err)
	}

	d.executed = append(d.executed, ExecutedList{Label: r.label, Commands: append([]Command(nil), cmds...)})
	if d.retain > 0 && len(d.executed) > d.retain {
		// The dropped head is freed once append outgrows the backing array.
		d.executed = d.executed[len(d.executed)-d.retain:]
	}
	d.stats.Lists++
	d.stats.Commands += len(cmds)
	r.Reset()
	return nil
}

// replay walks a command list, applying uploads to buffer contents and checking that every
// draw and dispatch has what it needs bound.
func (d *headlessDevice) replay(cmds []Command) error {
	var (
		state        *GraphicsState
		vertexBuffer Buffer
		indexBuffer  Buffer
		targets      bool
	)
	for i, c := range cmds {
		switch cmd := c.(type) {
		case UploadConstantsCmd:
			cmd.Buffer.(*buffer).store(cmd.Data)
			d.stats.Uploads++
		case UploadBufferCmd:
			cmd.Buffer.(*buffer).store(cmd.Data)
			d.stats.Uploads++
		case SetPipelineStateCmd:
			if cmd.State.Program == nil || cmd.State.Program.IsCompute() {
				return fmt.Errorf("command %d: graphics state needs a render program", i)
			}
			s := cmd.State
			state = &s
		case BindVertexBufferCmd:
			vertexBuffer = cmd.Buffer
		case BindIndexBufferCmd:
			indexBuffer = cmd.Buffer
		case SetRenderTargetsCmd:
			targets = len(cmd.Colors) > 0 || cmd.Depth != nil
		case ClearRenderTargetCmd:
			if cmd.Target == nil || cmd.Target.IsDepth() {
				return fmt.Errorf("command %d: color clear of a non-color target", i)
			}
		case ClearDepthStencilCmd:
			if cmd.Target == nil || !cmd.Target.IsDepth() {
				return fmt.Errorf("command %d: depth clear of a non-depth target", i)
			}
		case DrawIndexedCmd:
			switch {
			case state == nil:
				return fmt.Errorf("command %d: draw without graphics state", i)
			case vertexBuffer == nil || indexBuffer == nil:
				return fmt.Errorf("command %d: draw without vertex and index buffers", i)
			case !targets:
				return fmt.Errorf("command %d: draw without render targets", i)
			case int(cmd.StartIndex+cmd.IndexCount)*4 > indexBuffer.Size():
				return fmt.Errorf("command %d: draw reads past index buffer %q", i, indexBuffer.Label())
			}
			d.stats.Draws++
		case DispatchCmd:
			if cmd.Program == nil || !cmd.Program.IsCompute() {
				return fmt.Errorf("command %d: dispatch needs a compute program", i)
			}
			d.stats.Dispatches++
		case CopyTextureCmd:
			layer, mip := SplitSubresource(cmd.Subresource, cmd.Src.MipCount())
			if mip >= cmd.Dst.MipCount() || layer >= cmd.Dst.Desc().Layers() {
				return fmt.Errorf("command %d: copy subresource %d out of range", i, cmd.Subresource)
			}
		}
	}
	return nil
}

func (d *headlessDevice) SwapChain() (Texture, Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swapColor, d.swapDepth
}

func (d *headlessDevice) ResizeSwapChain(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.swapColor.Width() == width && d.swapColor.Height() == height {
		return nil
	}
	d.createSwapChain(width, height)
	return nil
}

func (d *headlessDevice) Present(vsync bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Presents++
	return nil
}

func (d *headlessDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *headlessDevice) Executed() []ExecutedList {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ExecutedList(nil), d.executed...)
}

func (d *headlessDevice) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func validateTextureDesc(desc TextureDesc) error {
	if desc.Width <= 0 || desc.Height <= 0 {
		return fmt.Errorf("%w: texture %q has size %dx%d", ErrInvalidDescriptor, desc.Label, desc.Width, desc.Height)
	}
	if desc.Cube && desc.Width != desc.Height {
		return fmt.Errorf("%w: cube texture %q is not square", ErrInvalidDescriptor, desc.Label)
	}
	maxMips := 1
	for s := max(desc.Width, desc.Height); s > 1; s >>= 1 {
		maxMips++
	}
	if desc.Mips() > maxMips {
		return fmt.Errorf("%w: texture %q requests %d mips, at most %d fit", ErrInvalidDescriptor, desc.Label, desc.Mips(), maxMips)
	}
	return nil
}
