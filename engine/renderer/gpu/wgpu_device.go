package gpu

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/lumen/common"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
)

// uniformAlignment is the dynamic offset alignment of uniform bindings on every adapter
// the default limits allow.
const uniformAlignment = 256

// maxCachedBindGroups bounds the bind group cache before it is dropped wholesale.
const maxCachedBindGroups = 4096

type samplerKey struct {
	wrap       wgpu.AddressMode
	filter     wgpu.FilterMode
	anisotropy uint16
}

// wgpuDevice is the WebGPU implementation of the Device interface.
type wgpuDevice struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode
	vsync         bool

	swapColor    *texture
	swapDepth    *texture
	frameSurface *wgpu.Texture

	// uniformRing holds every constant upload of one command list at 256-byte aligned
	// offsets. Its first ringReserve bytes are never written and back unbound registers.
	uniformRing     *wgpu.Buffer
	uniformRingSize uint64
	ringReserve     uint64
	ringGeneration  int

	staging     *wgpu.Buffer
	stagingSize uint64

	blackTexture *texture
	blackCube    *texture

	pipelines  map[string]*wgpu.RenderPipeline
	samplers   map[samplerKey]*wgpu.Sampler
	bindGroups map[string]*wgpu.BindGroup
	views      map[string]*wgpu.TextureView
	textures   map[string]*texture

	mips *mipGenerator

	wireframeWarning *sync.Once
}

var _ Device = &wgpuDevice{}

func newWGPUDevice(cfg *deviceConfig) (*wgpuDevice, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:               &sync.Mutex{},
		instance:         wgpu.CreateInstance(nil),
		vsync:            cfg.vsync,
		pipelines:        make(map[string]*wgpu.RenderPipeline),
		samplers:         make(map[samplerKey]*wgpu.Sampler),
		bindGroups:       make(map[string]*wgpu.BindGroup),
		views:            make(map[string]*wgpu.TextureView),
		textures:         make(map[string]*texture),
		wireframeWarning: &sync.Once{},
	}
	d.surface = d.instance.CreateSurface(cfg.surfaceDescriptor)

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: requesting adapter: %w", err)
	}
	d.adapter = a

	// Render programs place constants, textures and samplers in four fixed groups; the
	// mesh program also needs its per-stage uniform registers as dynamic offsets.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: requesting device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.configureSurface(cfg.width, cfg.height); err != nil {
		return nil, err
	}
	if err := d.createFallbackTextures(); err != nil {
		return nil, err
	}
	d.mips = newMipGenerator(d.device)

	logger.Info("wgpu device created",
		"format", d.surfaceFormat,
		"fallback", cfg.forceFallbackAdapter,
		"width", cfg.width,
		"height", cfg.height,
	)
	return d, nil
}

// configureSurface (re)configures the surface and recreates the swap chain textures. Both
// swap chain textures receive new identities.
func (d *wgpuDevice) configureSurface(width, height int) error {
	capabilities := d.surface.GetCapabilities(d.adapter)
	if len(capabilities.Formats) == 0 {
		return fmt.Errorf("%w: surface reports no formats", ErrInvalidDescriptor)
	}
	d.surfaceFormat = capabilities.Formats[0]
	d.alphaMode = capabilities.AlphaModes[0]

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: d.presentMode(),
		AlphaMode:   d.alphaMode,
	})

	color := newTexture(TextureDesc{
		Label:  "Swap Chain Color",
		Width:  width,
		Height: height,
		Format: d.surfaceFormat,
		Usage:  TextureUsageRenderTarget,
	})
	color.surface = true

	depth, err := d.createTexture(TextureDesc{
		Label:  "Swap Chain Depth",
		Width:  width,
		Height: height,
		Format: SwapChainDepthFormat,
		Usage:  TextureUsageDepthStencil,
	}, nil)
	if err != nil {
		return err
	}

	if d.swapDepth != nil {
		d.releaseTexture(d.swapDepth)
	}
	d.swapColor = color
	d.swapDepth = depth
	return nil
}

func (d *wgpuDevice) presentMode() wgpu.PresentMode {
	if d.vsync {
		return wgpu.PresentModeFifo
	}
	return wgpu.PresentModeImmediate
}

// createFallbackTextures creates the 1x1 black textures bound in place of unbound
// shader resource registers.
func (d *wgpuDevice) createFallbackTextures() error {
	black := []byte{0, 0, 0, 255}

	tex, err := d.createTexture(TextureDesc{
		Label:  "Fallback Black",
		Width:  1,
		Height: 1,
		Format: wgpu.TextureFormatRGBA8Unorm,
		Usage:  TextureUsageSampled,
	}, &ImageData{Pixels: black, BytesPerRow: 4})
	if err != nil {
		return err
	}
	d.blackTexture = tex

	cube, err := d.createTexture(TextureDesc{
		Label:  "Fallback Black Cube",
		Width:  1,
		Height: 1,
		Format: wgpu.TextureFormatRGBA8Unorm,
		Cube:   true,
		Usage:  TextureUsageSampled,
	}, nil)
	if err != nil {
		return err
	}
	for layer := range 6 {
		d.writeLayer(cube, layer, &ImageData{Pixels: black, BytesPerRow: 4})
	}
	d.blackCube = cube
	return nil
}

func (d *wgpuDevice) Backend() BackendType {
	return BackendTypeWGPU
}

func (d *wgpuDevice) CreateBuffer(desc BufferDesc, data []byte) (Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("%w: buffer %q has size %d", ErrInvalidDescriptor, desc.Label, desc.Size)
	}
	if len(data) > desc.Size {
		return nil, fmt.Errorf("%w: %d initial bytes for buffer %q of size %d", ErrCapacityExceeded, len(data), desc.Label, desc.Size)
	}

	b := newBuffer(desc, data)
	if desc.Kind == BufferKindConstant {
		return b, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	usage := wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	if desc.Kind == BufferKindIndex {
		usage = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	}
	handle, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             alignUp(uint64(desc.Size), 4),
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: creating buffer %q: %w", desc.Label, err)
	}
	if len(data) > 0 {
		d.queue.WriteBuffer(handle, 0, padTo4(data))
	}
	b.handle = handle
	return b, nil
}

func (d *wgpuDevice) CreateTexture(desc TextureDesc, data *ImageData) (Texture, error) {
	if err := validateTextureDesc(desc); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createTexture(desc, data)
}

func (d *wgpuDevice) createTexture(desc TextureDesc, data *ImageData) (*texture, error) {
	t := newTexture(desc)

	var usage wgpu.TextureUsage
	if desc.Usage&TextureUsageSampled != 0 {
		usage |= wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc
	}
	if desc.Usage&(TextureUsageRenderTarget|TextureUsageDepthStencil) != 0 {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	if desc.Usage&TextureUsageStorage != 0 {
		usage |= wgpu.TextureUsageStorageBinding | wgpu.TextureUsageCopySrc
	}
	if desc.Mips() > 1 {
		usage |= wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	}

	handle, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Usage: usage,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: uint32(desc.Layers()),
		},
		Dimension:     wgpu.TextureDimension2D,
		Format:        gpuFormat(desc),
		MipLevelCount: uint32(desc.Mips()),
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: creating texture %q: %w", desc.Label, err)
	}
	t.handle = handle

	dimension := wgpu.TextureViewDimension2D
	if desc.Cube {
		dimension = wgpu.TextureViewDimensionCube
	}
	t.view, err = handle.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label + " View",
		Format:          gpuFormat(desc),
		Dimension:       dimension,
		BaseMipLevel:    0,
		MipLevelCount:   uint32(desc.Mips()),
		BaseArrayLayer:  0,
		ArrayLayerCount: uint32(desc.Layers()),
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		handle.Release()
		return nil, fmt.Errorf("gpu: creating view of %q: %w", desc.Label, err)
	}

	if data != nil && len(data.Pixels) > 0 {
		d.writeLayer(t, 0, data)
	}
	d.textures[t.id] = t
	return t, nil
}

// writeLayer uploads pixels into mip 0 of one layer.
func (d *wgpuDevice) writeLayer(t *texture, layer int, data *ImageData) {
	bytesPerRow := data.BytesPerRow
	if bytesPerRow == 0 {
		bytesPerRow = t.Width() * BytesPerPixel(t.Format())
	}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.handle,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: uint32(layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(bytesPerRow),
			RowsPerImage: uint32(t.Height()),
		},
		&wgpu.Extent3D{
			Width:              uint32(t.Width()),
			Height:             uint32(t.Height()),
			DepthOrArrayLayers: 1,
		},
	)
}

func (d *wgpuDevice) ReleaseTexture(tex Texture) {
	t, ok := tex.(*texture)
	if !ok || t == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseTexture(t)
}

func (d *wgpuDevice) releaseTexture(t *texture) {
	prefix := t.id + "/"
	for key, view := range d.views {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			view.Release()
			delete(d.views, key)
		}
	}
	delete(d.textures, t.id)
	t.release()
}

func (d *wgpuDevice) CreateProgram(desc ProgramDesc) (Program, error) {
	if desc.Source == "" {
		return nil, fmt.Errorf("%w: program %q has no source", ErrInvalidDescriptor, desc.Label)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p := newProgram(desc)
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: compiling %q: %w", desc.Label, err)
	}
	p.module = module

	groups := desc.Groups()
	maxGroup := -1
	if len(groups) > 0 {
		maxGroup = groups[len(groups)-1]
	}
	p.bindGroupLayouts = make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		layoutDesc := dynamicUniforms(desc.BindGroupLayouts[g])
		if layoutDesc.Label == "" {
			layoutDesc.Label = fmt.Sprintf("%s Group %d", desc.Label, g)
		}
		layout, layoutErr := d.device.CreateBindGroupLayout(&layoutDesc)
		if layoutErr != nil {
			return nil, fmt.Errorf("gpu: creating bind group layout %d of %q: %w", g, desc.Label, layoutErr)
		}
		p.bindGroupLayouts[g] = layout

		for _, entry := range layoutDesc.Entries {
			if entry.Buffer.Type == wgpu.BufferBindingTypeUniform {
				d.reserveUniform(entry.Buffer.MinBindingSize)
			}
		}
	}

	p.pipelineLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: p.bindGroupLayouts,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: creating pipeline layout of %q: %w", desc.Label, err)
	}

	if desc.IsCompute() {
		p.compute, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  desc.Label + " Compute Pipeline",
			Layout: p.pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: desc.ComputeEntry,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("gpu: creating compute pipeline %q: %w", desc.Label, err)
		}
	}

	logger.Debug("program created", "label", desc.Label, "groups", len(groups), "compute", desc.IsCompute())
	return p, nil
}

// dynamicUniforms copies a layout description with every uniform entry switched to a
// dynamic offset into the uniform ring.
func dynamicUniforms(desc wgpu.BindGroupLayoutDescriptor) wgpu.BindGroupLayoutDescriptor {
	entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))
	copy(entries, desc.Entries)
	for i := range entries {
		if entries[i].Buffer.Type == wgpu.BufferBindingTypeUniform {
			entries[i].Buffer.HasDynamicOffset = true
		}
	}
	desc.Entries = entries
	return desc
}

// reserveUniform grows the zero region at the start of the uniform ring so it can back the
// largest uniform binding of any program.
func (d *wgpuDevice) reserveUniform(size uint64) {
	size = alignUp(size, uniformAlignment)
	if size > d.ringReserve {
		d.ringReserve = size
	}
}

func (d *wgpuDevice) NewCommandRecorder(label string) CommandRecorder {
	return newCommandRecorder(d, label)
}

func (d *wgpuDevice) ExecuteCommandBuffer(rec CommandRecorder) error {
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

	if err := d.execute(r.label, cmds); err != nil {
		return fmt.Errorf("gpu: executing %q: %w", r.label, err)
	}
	r.Reset()
	return nil
}

func (d *wgpuDevice) SwapChain() (Texture, Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swapColor, d.swapDepth
}

func (d *wgpuDevice) ResizeSwapChain(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.swapColor.Width() == width && d.swapColor.Height() == height {
		return nil
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: swap chain size %dx%d", ErrInvalidDescriptor, width, height)
	}
	d.releaseFrame()
	logger.Debug("resizing swap chain", "width", width, "height", height)
	return d.configureSurface(width, height)
}

// acquireFrame fetches the surface texture for this frame the first time the swap chain
// color texture is used.
func (d *wgpuDevice) acquireFrame() error {
	if d.frameSurface != nil {
		return nil
	}
	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("gpu: acquiring swap chain image: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("gpu: creating swap chain view: %w", err)
	}
	d.frameSurface = surfaceTexture
	d.swapColor.handle = surfaceTexture
	d.swapColor.view = view
	return nil
}

func (d *wgpuDevice) releaseFrame() {
	if d.swapColor != nil && d.swapColor.view != nil {
		d.swapColor.view.Release()
		d.swapColor.view = nil
	}
	if d.frameSurface != nil {
		d.frameSurface.Release()
		d.frameSurface = nil
	}
	if d.swapColor != nil {
		d.swapColor.handle = nil
	}
}

func (d *wgpuDevice) Present(vsync bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface != nil {
		d.surface.Present()
		d.releaseFrame()
	}

	if vsync != d.vsync {
		d.vsync = vsync
		return d.configureSurface(d.swapColor.Width(), d.swapColor.Height())
	}
	return nil
}

func (d *wgpuDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.releaseFrame()
	for _, bg := range d.bindGroups {
		bg.Release()
	}
	for _, p := range d.pipelines {
		p.Release()
	}
	for _, s := range d.samplers {
		s.Release()
	}
	for _, v := range d.views {
		v.Release()
	}
	for _, t := range d.textures {
		t.release()
	}
	d.mips.release()
	if d.uniformRing != nil {
		d.uniformRing.Release()
	}
	if d.staging != nil {
		d.staging.Release()
	}
	d.bindGroups = map[string]*wgpu.BindGroup{}
	d.pipelines = map[string]*wgpu.RenderPipeline{}
	d.samplers = map[samplerKey]*wgpu.Sampler{}
	d.views = map[string]*wgpu.TextureView{}
	d.textures = map[string]*texture{}

	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.surface.Release()
	d.instance.Release()
	logger.Info("wgpu device closed")
}

// sampler returns the cached sampler described by a texture's wrap and filter.
func (d *wgpuDevice) sampler(desc TextureDesc) (*wgpu.Sampler, error) {
	key := samplerKey{
		wrap:       common.Coalesce(desc.Wrap, wgpu.AddressModeRepeat),
		filter:     common.Coalesce(desc.Filter, wgpu.FilterModeLinear),
		anisotropy: common.Coalesce(desc.Anisotropy, 1),
	}
	if key.filter != wgpu.FilterModeLinear {
		key.anisotropy = 1
	}
	if s, ok := d.samplers[key]; ok {
		return s, nil
	}

	mipFilter := wgpu.MipmapFilterModeLinear
	if key.filter == wgpu.FilterModeNearest {
		mipFilter = wgpu.MipmapFilterModeNearest
	}
	s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         fmt.Sprintf("Sampler %v/%v/%d", key.wrap, key.filter, key.anisotropy),
		AddressModeU:  key.wrap,
		AddressModeV:  key.wrap,
		AddressModeW:  key.wrap,
		MagFilter:     key.filter,
		MinFilter:     key.filter,
		MipmapFilter:  mipFilter,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: key.anisotropy,
	})
	if err != nil {
		return nil, err
	}
	d.samplers[key] = s
	return s, nil
}

// subView returns a cached single-mip view of a texture. Storage bindings of cube textures
// see all six faces as a 2D array; attachments see one layer.
func (d *wgpuDevice) subView(t *texture, dimension wgpu.TextureViewDimension, mip, layer, layers int) (*wgpu.TextureView, error) {
	key := fmt.Sprintf("%s/%d/%d/%d/%d", t.id, dimension, mip, layer, layers)
	if v, ok := d.views[key]; ok {
		return v, nil
	}
	v, err := t.handle.CreateView(&wgpu.TextureViewDescriptor{
		Label:           fmt.Sprintf("%s Mip %d Layer %d", t.Label(), mip, layer),
		Format:          gpuFormat(t.desc),
		Dimension:       dimension,
		BaseMipLevel:    uint32(mip),
		MipLevelCount:   1,
		BaseArrayLayer:  uint32(layer),
		ArrayLayerCount: uint32(layers),
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, err
	}
	d.views[key] = v
	return v, nil
}

// attachmentView returns the view a texture is bound with as a render attachment.
func (d *wgpuDevice) attachmentView(t *texture) (*wgpu.TextureView, error) {
	if t.surface {
		if err := d.acquireFrame(); err != nil {
			return nil, err
		}
		return t.view, nil
	}
	if t.desc.Mips() == 1 && !t.desc.Cube {
		return t.view, nil
	}
	return d.subView(t, wgpu.TextureViewDimension2D, 0, 0, 1)
}

// gpuFormat is the format a texture is allocated with. Two-channel half float storage
// textures are widened because RG16Float has no storage binding on core WebGPU.
func gpuFormat(desc TextureDesc) wgpu.TextureFormat {
	if desc.Usage&TextureUsageStorage != 0 && desc.Format == wgpu.TextureFormatRG16Float {
		return wgpu.TextureFormatRGBA16Float
	}
	return desc.Format
}

func alignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) / alignment * alignment
}

func padTo4(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	padded := make([]byte, alignUp(uint64(len(data)), 4))
	copy(padded, data)
	return padded
}
