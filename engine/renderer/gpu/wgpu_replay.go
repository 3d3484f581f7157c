package gpu

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
)

type pendingClear struct {
	target  *texture
	color   Color
	depth   float32
	stencil uint32
}

// replayState is the binding state carried across one command list. Nothing survives
// between lists: every list binds everything it uses.
type replayState struct {
	graphics *GraphicsState
	vertex   *buffer
	index    *buffer

	constants map[Stage]map[int]uint64
	textures  map[Stage]map[int]Texture
	samplers  map[Stage]map[int]Texture
	storage   map[int]StorageView

	colors   []*texture
	depth    *texture
	viewport *Viewport
	scissor  *Rect

	clears map[string]pendingClear
	pass   *wgpu.RenderPassEncoder

	ringOffsets    map[int]uint64
	stagingOffsets map[int]uint64

	garbage []*wgpu.BindGroup
}

func newReplayState() *replayState {
	return &replayState{
		constants:      map[Stage]map[int]uint64{},
		textures:       map[Stage]map[int]Texture{},
		samplers:       map[Stage]map[int]Texture{},
		storage:        map[int]StorageView{},
		clears:         map[string]pendingClear{},
		ringOffsets:    map[int]uint64{},
		stagingOffsets: map[int]uint64{},
	}
}

// execute encodes one command list into a single command buffer and submits it.
func (d *wgpuDevice) execute(label string, cmds []Command) error {
	s := newReplayState()

	ringData, stagingData := d.layoutUploads(cmds, s)
	if err := d.ensureRing(d.ringReserve + uint64(len(ringData)) + d.ringReserve); err != nil {
		return err
	}
	if len(ringData) > 0 {
		d.queue.WriteBuffer(d.uniformRing, d.ringReserve, ringData)
	}
	if len(stagingData) > 0 {
		if err := d.ensureStaging(uint64(len(stagingData))); err != nil {
			return err
		}
		d.queue.WriteBuffer(d.staging, 0, stagingData)
	}

	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return err
	}
	defer enc.Release()

	for i, c := range cmds {
		if err := d.apply(enc, s, i, c); err != nil {
			d.endPass(s)
			return fmt.Errorf("command %d (%s): %w", i, c.Type(), err)
		}
	}
	d.endPass(s)
	if err := d.flushClears(enc, s, nil); err != nil {
		return err
	}

	commandBuffer, err := enc.Finish(nil)
	if err != nil {
		return err
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()

	for _, bg := range s.garbage {
		bg.Release()
	}
	return nil
}

// layoutUploads assigns every upload in the list its offset in the uniform ring or the
// staging buffer and returns the bytes to write there before submission.
func (d *wgpuDevice) layoutUploads(cmds []Command, s *replayState) (ring, staging []byte) {
	for i, c := range cmds {
		switch cmd := c.(type) {
		case UploadConstantsCmd:
			s.ringOffsets[i] = d.ringReserve + uint64(len(ring))
			chunk := make([]byte, alignUp(uint64(len(cmd.Data)), uniformAlignment))
			copy(chunk, cmd.Data)
			ring = append(ring, chunk...)
		case UploadBufferCmd:
			s.stagingOffsets[i] = uint64(len(staging))
			staging = append(staging, padTo4(cmd.Data)...)
		}
	}
	return ring, staging
}

func (d *wgpuDevice) ensureRing(size uint64) error {
	size = max(alignUp(size, uniformAlignment), 64*1024)
	if d.uniformRing != nil && d.uniformRingSize >= size {
		return nil
	}
	grown := max(size, d.uniformRingSize*2)
	ring, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Uniform Ring",
		Size:  grown,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: growing uniform ring to %d bytes: %w", grown, err)
	}
	if d.uniformRing != nil {
		d.uniformRing.Release()
	}
	d.uniformRing = ring
	d.uniformRingSize = grown
	d.ringGeneration++
	d.dropBindGroups()
	logger.Debug("uniform ring grown", "size", grown, "generation", d.ringGeneration)
	return nil
}

func (d *wgpuDevice) ensureStaging(size uint64) error {
	if d.staging != nil && d.stagingSize >= size {
		return nil
	}
	grown := max(alignUp(size, 4), d.stagingSize*2)
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Upload Staging",
		Size:  grown,
		Usage: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: growing staging buffer to %d bytes: %w", grown, err)
	}
	if d.staging != nil {
		d.staging.Release()
	}
	d.staging = staging
	d.stagingSize = grown
	return nil
}

func (d *wgpuDevice) dropBindGroups() {
	for _, bg := range d.bindGroups {
		bg.Release()
	}
	d.bindGroups = make(map[string]*wgpu.BindGroup)
}

func (d *wgpuDevice) apply(enc *wgpu.CommandEncoder, s *replayState, i int, c Command) error {
	switch cmd := c.(type) {
	case UploadConstantsCmd:
		cmd.Buffer.(*buffer).store(cmd.Data)
		setIn(s.constants, cmd.Stage, cmd.Register, s.ringOffsets[i])

	case UploadBufferCmd:
		b := cmd.Buffer.(*buffer)
		b.store(cmd.Data)
		if b.handle == nil || len(cmd.Data) == 0 {
			return nil
		}
		d.endPass(s)
		return enc.CopyBufferToBuffer(d.staging, s.stagingOffsets[i], b.handle, 0, uint64(len(padTo4(cmd.Data))))

	case SetPipelineStateCmd:
		if cmd.State.Program == nil || cmd.State.Program.IsCompute() {
			return fmt.Errorf("graphics state needs a render program")
		}
		state := cmd.State
		s.graphics = &state

	case BindVertexBufferCmd:
		s.vertex = cmd.Buffer.(*buffer)
	case BindIndexBufferCmd:
		s.index = cmd.Buffer.(*buffer)

	case BindTexturesCmd:
		for j, t := range cmd.Textures {
			setIn(s.textures, cmd.Stage, cmd.Start+j, t)
		}
	case BindSamplersCmd:
		for j, t := range cmd.Textures {
			setIn(s.samplers, cmd.Stage, cmd.Start+j, t)
		}
	case BindStorageTexturesCmd:
		for j, v := range cmd.Views {
			s.storage[cmd.Start+j] = v
		}

	case ClearRenderTargetCmd:
		t := cmd.Target.(*texture)
		if s.pass != nil && s.bound(t) {
			d.endPass(s)
		}
		s.clears[t.id] = pendingClear{target: t, color: cmd.Color}
	case ClearDepthStencilCmd:
		t := cmd.Target.(*texture)
		if s.pass != nil && s.bound(t) {
			d.endPass(s)
		}
		s.clears[t.id] = pendingClear{target: t, depth: cmd.Depth, stencil: cmd.Stencil}

	case SetRenderTargetsCmd:
		d.endPass(s)
		s.colors = s.colors[:0]
		keep := map[string]bool{}
		for _, c := range cmd.Colors {
			t := c.(*texture)
			s.colors = append(s.colors, t)
			keep[t.id] = true
		}
		s.depth = nil
		if cmd.Depth != nil {
			s.depth = cmd.Depth.(*texture)
			keep[s.depth.id] = true
		}
		return d.flushClears(enc, s, keep)

	case SetViewportCmd:
		vp := cmd.Viewport
		s.viewport = &vp
	case SetScissorCmd:
		r := cmd.Rect
		s.scissor = &r

	case DrawIndexedCmd:
		return d.draw(enc, s, cmd)

	case DispatchCmd:
		d.endPass(s)
		if err := d.flushClears(enc, s, nil); err != nil {
			return err
		}
		return d.dispatch(enc, s, cmd)

	case CopyTextureCmd:
		d.endPass(s)
		if err := d.flushClears(enc, s, nil); err != nil {
			return err
		}
		return d.copyTexture(enc, cmd)

	case GenerateMipsCmd:
		d.endPass(s)
		if err := d.flushClears(enc, s, nil); err != nil {
			return err
		}
		groups, err := d.mips.generate(d, enc, cmd.Texture.(*texture))
		s.garbage = append(s.garbage, groups...)
		return err
	}
	return nil
}

func setIn[V any](m map[Stage]map[int]V, stage Stage, register int, v V) {
	inner, ok := m[stage]
	if !ok {
		inner = map[int]V{}
		m[stage] = inner
	}
	inner[register] = v
}

// bound reports whether t is one of the current attachments.
func (s *replayState) bound(t *texture) bool {
	if s.depth == t {
		return true
	}
	for _, c := range s.colors {
		if c == t {
			return true
		}
	}
	return false
}

func (d *wgpuDevice) endPass(s *replayState) {
	if s.pass == nil {
		return
	}
	s.pass.End()
	s.pass.Release()
	s.pass = nil
}

// flushClears runs an empty pass for every pending clear whose target is not in keep.
func (d *wgpuDevice) flushClears(enc *wgpu.CommandEncoder, s *replayState, keep map[string]bool) error {
	for id, pc := range s.clears {
		if keep[id] {
			continue
		}
		delete(s.clears, id)
		view, err := d.attachmentView(pc.target)
		if err != nil {
			return err
		}
		desc := &wgpu.RenderPassDescriptor{Label: "Clear " + pc.target.Label()}
		if pc.target.IsDepth() {
			desc.DepthStencilAttachment = depthAttachment(view, pc.target, &pc)
		} else {
			desc.ColorAttachments = []wgpu.RenderPassColorAttachment{colorAttachment(view, &pc)}
		}
		pass := enc.BeginRenderPass(desc)
		pass.End()
		pass.Release()
	}
	return nil
}

func colorAttachment(view *wgpu.TextureView, clear *pendingClear) wgpu.RenderPassColorAttachment {
	att := wgpu.RenderPassColorAttachment{
		View:    view,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if clear != nil {
		att.LoadOp = wgpu.LoadOpClear
		att.ClearValue = wgpu.Color{R: clear.color.R, G: clear.color.G, B: clear.color.B, A: clear.color.A}
	}
	return att
}

func depthAttachment(view *wgpu.TextureView, t *texture, clear *pendingClear) *wgpu.RenderPassDepthStencilAttachment {
	att := &wgpu.RenderPassDepthStencilAttachment{
		View:            view,
		DepthLoadOp:     wgpu.LoadOpLoad,
		DepthStoreOp:    wgpu.StoreOpStore,
		DepthClearValue: 1,
	}
	if clear != nil {
		att.DepthLoadOp = wgpu.LoadOpClear
		att.DepthClearValue = clear.depth
	}
	if hasStencil(t.Format()) {
		att.StencilLoadOp = wgpu.LoadOpLoad
		att.StencilStoreOp = wgpu.StoreOpStore
		if clear != nil {
			att.StencilLoadOp = wgpu.LoadOpClear
			att.StencilClearValue = clear.stencil
		}
	}
	return att
}

func hasStencil(f wgpu.TextureFormat) bool {
	return f == wgpu.TextureFormatDepth24PlusStencil8 || f == wgpu.TextureFormatDepth32FloatStencil8
}

func (d *wgpuDevice) beginPass(enc *wgpu.CommandEncoder, s *replayState) error {
	if len(s.colors) == 0 && s.depth == nil {
		return fmt.Errorf("draw without render targets")
	}
	desc := &wgpu.RenderPassDescriptor{Label: "Draw"}
	for _, c := range s.colors {
		view, err := d.attachmentView(c)
		if err != nil {
			return err
		}
		var clear *pendingClear
		if pc, ok := s.clears[c.id]; ok {
			clear = &pc
			delete(s.clears, c.id)
		}
		desc.ColorAttachments = append(desc.ColorAttachments, colorAttachment(view, clear))
	}
	if s.depth != nil {
		view, err := d.attachmentView(s.depth)
		if err != nil {
			return err
		}
		var clear *pendingClear
		if pc, ok := s.clears[s.depth.id]; ok {
			clear = &pc
			delete(s.clears, s.depth.id)
		}
		desc.DepthStencilAttachment = depthAttachment(view, s.depth, clear)
	}
	s.pass = enc.BeginRenderPass(desc)
	return nil
}

// targetSize returns the size of the first bound attachment.
func (s *replayState) targetSize() (uint32, uint32) {
	if len(s.colors) > 0 {
		return uint32(s.colors[0].Width()), uint32(s.colors[0].Height())
	}
	if s.depth != nil {
		return uint32(s.depth.Width()), uint32(s.depth.Height())
	}
	return 0, 0
}

func (d *wgpuDevice) draw(enc *wgpu.CommandEncoder, s *replayState, cmd DrawIndexedCmd) error {
	switch {
	case s.graphics == nil:
		return fmt.Errorf("draw without graphics state")
	case s.vertex == nil || s.index == nil:
		return fmt.Errorf("draw without vertex and index buffers")
	case int(cmd.StartIndex+cmd.IndexCount)*4 > s.index.Size():
		return fmt.Errorf("draw reads past index buffer %q", s.index.Label())
	}

	// A pending clear of a texture this draw samples has to land before the draw.
	sampled := map[string]bool{}
	for _, stage := range []Stage{StageVertex, StagePixel} {
		for _, t := range s.textures[stage] {
			if t != nil {
				if _, ok := s.clears[t.ID()]; ok {
					sampled[t.ID()] = true
				}
			}
		}
	}
	if len(sampled) > 0 {
		d.endPass(s)
		keep := map[string]bool{}
		for id := range s.clears {
			keep[id] = !sampled[id]
		}
		if err := d.flushClears(enc, s, keep); err != nil {
			return err
		}
	}

	if s.pass == nil {
		if err := d.beginPass(enc, s); err != nil {
			return err
		}
	}

	prog := s.graphics.Program.(*program)
	pipeline, err := d.renderPipeline(*s.graphics, s.colors, s.depth)
	if err != nil {
		return err
	}
	s.pass.SetPipeline(pipeline)
	for g := range prog.bindGroupLayouts {
		bg, offsets, err := d.bindGroup(prog, g, s)
		if err != nil {
			return err
		}
		s.pass.SetBindGroup(uint32(g), bg, offsets)
	}
	s.pass.SetVertexBuffer(0, s.vertex.handle, 0, wgpu.WholeSize)
	s.pass.SetIndexBuffer(s.index.handle, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)

	width, height := s.targetSize()
	vp := Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1}
	if s.viewport != nil {
		vp = *s.viewport
	}
	vp.Width = min(vp.Width, float32(width)-vp.X)
	vp.Height = min(vp.Height, float32(height)-vp.Y)
	s.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)

	rect := Rect{Width: width, Height: height}
	if s.scissor != nil {
		rect = *s.scissor
	}
	rect.Width = min(rect.Width, width-min(rect.X, width))
	rect.Height = min(rect.Height, height-min(rect.Y, height))
	s.pass.SetScissorRect(rect.X, rect.Y, rect.Width, rect.Height)

	s.pass.DrawIndexed(cmd.IndexCount, 1, cmd.StartIndex, cmd.BaseVertex, 0)
	return nil
}

func (d *wgpuDevice) dispatch(enc *wgpu.CommandEncoder, s *replayState, cmd DispatchCmd) error {
	prog, ok := cmd.Program.(*program)
	if !ok || prog.compute == nil {
		return fmt.Errorf("dispatch needs a compute program")
	}
	groups := make([]*wgpu.BindGroup, len(prog.bindGroupLayouts))
	offsets := make([][]uint32, len(prog.bindGroupLayouts))
	for g := range prog.bindGroupLayouts {
		bg, off, err := d.bindGroup(prog, g, s)
		if err != nil {
			return err
		}
		groups[g], offsets[g] = bg, off
	}

	pass := enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: prog.Label()})
	pass.SetPipeline(prog.compute)
	for g, bg := range groups {
		pass.SetBindGroup(uint32(g), bg, offsets[g])
	}
	pass.DispatchWorkgroups(cmd.X, cmd.Y, cmd.Z)
	pass.End()
	pass.Release()
	return nil
}

func (d *wgpuDevice) copyTexture(enc *wgpu.CommandEncoder, cmd CopyTextureCmd) error {
	src, dst := cmd.Src.(*texture), cmd.Dst.(*texture)
	layer, mip := SplitSubresource(cmd.Subresource, src.MipCount())
	if mip >= dst.MipCount() || layer >= dst.desc.Layers() {
		return fmt.Errorf("copy subresource %d out of range", cmd.Subresource)
	}
	for _, t := range []*texture{src, dst} {
		if t.surface {
			if err := d.acquireFrame(); err != nil {
				return err
			}
		}
	}
	return enc.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{
			Texture:  src.handle,
			MipLevel: uint32(mip),
			Origin:   wgpu.Origin3D{Z: uint32(layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyTexture{
			Texture:  dst.handle,
			MipLevel: uint32(mip),
			Origin:   wgpu.Origin3D{Z: uint32(layer)},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.Extent3D{
			Width:              uint32(max(1, src.Width()>>mip)),
			Height:             uint32(max(1, src.Height()>>mip)),
			DepthOrArrayLayers: 1,
		},
	)
}

// bindingStages returns the stages whose bindings feed a group. Render programs keep vertex
// constants in group 0 and pixel constants in group 1; textures and samplers are shared.
func bindingStages(prog *program, group int, entry wgpu.BindGroupLayoutEntry) []Stage {
	if prog.IsCompute() {
		return []Stage{StageCompute}
	}
	if entry.Buffer.Type == wgpu.BufferBindingTypeUniform {
		if group == 0 {
			return []Stage{StageVertex}
		}
		return []Stage{StagePixel}
	}
	return []Stage{StagePixel, StageVertex}
}

func lookup[V any](m map[Stage]map[int]V, stages []Stage, register int) (V, bool) {
	for _, stage := range stages {
		if v, ok := m[stage][register]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// bindGroup resolves the current bindings of one group into a cached bind group and the
// dynamic offsets of its uniform entries.
func (d *wgpuDevice) bindGroup(prog *program, group int, s *replayState) (*wgpu.BindGroup, []uint32, error) {
	layoutDesc := prog.desc.BindGroupLayouts[group]
	entries := make([]wgpu.BindGroupEntry, 0, len(layoutDesc.Entries))
	var offsets []uint32
	var key strings.Builder
	fmt.Fprintf(&key, "%s/%d/%d", prog.id, group, d.ringGeneration)

	for _, entry := range layoutDesc.Entries {
		binding := int(entry.Binding)
		stages := bindingStages(prog, group, entry)

		switch {
		case entry.Buffer.Type == wgpu.BufferBindingTypeUniform:
			offset, _ := lookup(s.constants, stages, binding)
			offsets = append(offsets, uint32(offset))
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Buffer:  d.uniformRing,
				Offset:  0,
				Size:    entry.Buffer.MinBindingSize,
			})
			key.WriteString("|u")

		case entry.StorageTexture.Access != wgpu.StorageTextureAccessUndefined:
			sv, ok := s.storage[binding]
			if !ok || sv.Texture == nil {
				return nil, nil, fmt.Errorf("storage register u%d of %q is unbound", binding, prog.Label())
			}
			t := sv.Texture.(*texture)
			dimension := wgpu.TextureViewDimension2D
			if t.IsCube() {
				dimension = wgpu.TextureViewDimension2DArray
			}
			view, err := d.subView(t, dimension, sv.MipLevel, 0, t.desc.Layers())
			if err != nil {
				return nil, nil, err
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: entry.Binding, TextureView: view})
			fmt.Fprintf(&key, "|s%s@%d", t.id, sv.MipLevel)

		case entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			tex, _ := lookup(s.textures, stages, binding)
			t := d.blackTexture
			if entry.Texture.ViewDimension == wgpu.TextureViewDimensionCube {
				t = d.blackCube
			}
			if bound, ok := tex.(*texture); ok && bound != nil && bound.view != nil {
				t = bound
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: entry.Binding, TextureView: t.view})
			fmt.Fprintf(&key, "|t%s", t.id)

		case entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			var desc TextureDesc
			if tex, ok := lookup(s.samplers, stages, binding); ok && tex != nil {
				desc = tex.Desc()
			}
			samp, err := d.sampler(desc)
			if err != nil {
				return nil, nil, err
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: entry.Binding, Sampler: samp})
			fmt.Fprintf(&key, "|p%v/%v/%d", desc.Wrap, desc.Filter, desc.Anisotropy)
		}
	}

	if bg, ok := d.bindGroups[key.String()]; ok {
		return bg, offsets, nil
	}
	if len(d.bindGroups) >= maxCachedBindGroups {
		d.dropBindGroups()
	}
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s Group %d", prog.Label(), group),
		Layout:  prog.bindGroupLayouts[group],
		Entries: entries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating bind group %d of %q: %w", group, prog.Label(), err)
	}
	d.bindGroups[key.String()] = bg
	return bg, offsets, nil
}

// renderPipeline returns the cached render pipeline for a program, state snapshot and set
// of attachment formats.
func (d *wgpuDevice) renderPipeline(state GraphicsState, colors []*texture, depth *texture) (*wgpu.RenderPipeline, error) {
	prog := state.Program.(*program)
	layout := state.InputLayout
	if layout == nil {
		layout = prog.desc.VertexLayout
	}

	var key strings.Builder
	fmt.Fprintf(&key, "%s|%v|%d|", prog.id, state.State, state.Topology)
	if layout != nil {
		fmt.Fprintf(&key, "%v|", *layout)
	}
	for _, c := range colors {
		fmt.Fprintf(&key, "c%d,", gpuFormat(c.desc))
	}
	if depth != nil {
		fmt.Fprintf(&key, "d%d", depth.Format())
	}
	if p, ok := d.pipelines[key.String()]; ok {
		return p, nil
	}

	snapshot := state.State
	if snapshot.Rasterizer.Wireframe {
		d.wireframeWarning.Do(func() {
			logger.Warn("wireframe fill is not supported by the wgpu device, drawing solid")
		})
	}

	var buffers []wgpu.VertexBufferLayout
	if layout != nil {
		buffers = []wgpu.VertexBufferLayout{*layout}
	}

	writeMask := snapshot.Blend.WriteMask
	if writeMask == wgpu.ColorWriteMaskNone {
		writeMask = wgpu.ColorWriteMaskAll
	}
	targets := make([]wgpu.ColorTargetState, 0, len(colors))
	for _, c := range colors {
		target := wgpu.ColorTargetState{
			Format:    gpuFormat(c.desc),
			WriteMask: writeMask,
		}
		if snapshot.Blend.Enabled {
			target.Blend = &wgpu.BlendState{
				Color: snapshot.Blend.Color,
				Alpha: snapshot.Blend.Alpha,
			}
		}
		targets = append(targets, target)
	}

	var depthStencil *wgpu.DepthStencilState
	if depth != nil {
		ds := snapshot.DepthStencil
		compare := ds.DepthCompare
		if !ds.DepthEnabled || compare == wgpu.CompareFunctionUndefined {
			compare = wgpu.CompareFunctionAlways
		}
		front, back := ds.StencilFront, ds.StencilBack
		readMask, writeMask := ds.StencilReadMask, ds.StencilWriteMask
		if !ds.StencilEnabled || !hasStencil(depth.Format()) {
			front = wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways}
			back = front
			readMask, writeMask = 0xFF, 0
		}
		if front.Compare == wgpu.CompareFunctionUndefined {
			front.Compare = wgpu.CompareFunctionAlways
		}
		if back.Compare == wgpu.CompareFunctionUndefined {
			back.Compare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            depth.Format(),
			DepthWriteEnabled: ds.DepthEnabled && ds.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      front,
			StencilBack:       back,
			StencilReadMask:   readMask,
			StencilWriteMask:  writeMask,
		}
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  prog.Label() + " Render Pipeline",
		Layout: prog.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     prog.module,
			EntryPoint: prog.desc.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     prog.module,
			EntryPoint: prog.desc.FragmentEntry,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  state.Topology,
			FrontFace: snapshot.Rasterizer.FrontFace,
			CullMode:  snapshot.Rasterizer.CullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return nil, fmt.Errorf("creating render pipeline for %q: %w", prog.Label(), err)
	}
	d.pipelines[key.String()] = created
	logger.Debug("render pipeline created", "program", prog.Label(), "cached", len(d.pipelines))
	return created, nil
}
