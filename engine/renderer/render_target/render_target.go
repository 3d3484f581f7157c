package render_target

import (
	"fmt"

	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Attachment describes one texture of a render target.
type Attachment struct {
	Format   wgpu.TextureFormat
	MipCount int
	Wrap     wgpu.AddressMode
	Filter   wgpu.FilterMode

	// Cube allocates a six-layer cube attachment.
	Cube bool
}

// IsDepth reports whether the attachment has a depth format.
func (a Attachment) IsDepth() bool {
	return gpu.IsDepthFormat(a.Format)
}

// renderTarget is the implementation of the RenderTarget interface.
type renderTarget struct {
	device      gpu.Device
	label       string
	width       int
	height      int
	clearColor  gpu.Color
	attachments []Attachment

	colors []gpu.Texture
	depth  gpu.Texture
}

// RenderTarget is a resizable set of color attachments and at most one depth-stencil
// attachment, with the viewport that covers them.
type RenderTarget interface {
	// Label returns the debug label the attachments are named after.
	Label() string

	// Width returns the width of every attachment in pixels.
	Width() int

	// Height returns the height of every attachment in pixels.
	Height() int

	// ClearColor returns the color the color attachments are cleared to.
	ClearColor() gpu.Color

	// Attachments returns the attachment descriptions in declaration order.
	Attachments() []Attachment

	// ColorAttachment returns the i-th color attachment, counting color attachments only.
	// An out of range index panics.
	//
	// Parameters:
	//   - i: the color attachment index
	//
	// Returns:
	//   - gpu.Texture: the attachment texture
	ColorAttachment(i int) gpu.Texture

	// ColorAttachments returns every color attachment in order.
	ColorAttachments() []gpu.Texture

	// DepthAttachment returns the depth-stencil attachment, or nil when there is none.
	DepthAttachment() gpu.Texture

	// Viewport returns the viewport spanning the whole target with depth 0..1.
	Viewport() gpu.Viewport

	// Invalidate releases and recreates every attachment at the current size. Creation
	// failures are fatal.
	Invalidate()

	// Resize changes the size of the target. Equal dimensions are a no-op; otherwise every
	// attachment is recreated with the same formats.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// Release frees the attachments.
	Release()
}

var _ RenderTarget = &renderTarget{}

// NewRenderTarget creates a render target and allocates its attachments. Without options the
// target is 1280x720 with one RGBA8 color attachment.
//
// Parameters:
//   - device: the device attachments are created on
//   - options: variadic list of RenderTargetBuilderOption functions to configure the target
//
// Returns:
//   - RenderTarget: the new render target
func NewRenderTarget(device gpu.Device, options ...RenderTargetBuilderOption) RenderTarget {
	rt := &renderTarget{
		device: device,
		label:  "Render Target",
		width:  1280,
		height: 720,
		clearColor: gpu.Color{
			A: 1,
		},
	}
	for _, opt := range options {
		opt(rt)
	}
	if len(rt.attachments) == 0 {
		rt.attachments = []Attachment{{Format: wgpu.TextureFormatRGBA8Unorm}}
	}

	depths := 0
	for _, a := range rt.attachments {
		if a.IsDepth() {
			depths++
		}
	}
	if depths > 1 {
		logger.Error("render target has more than one depth attachment", "target", rt.label, "count", depths)
		panic(fmt.Sprintf("render_target: %s declares %d depth attachments", rt.label, depths))
	}

	rt.Invalidate()
	return rt
}

func (rt *renderTarget) Label() string {
	return rt.label
}

func (rt *renderTarget) Width() int {
	return rt.width
}

func (rt *renderTarget) Height() int {
	return rt.height
}

func (rt *renderTarget) ClearColor() gpu.Color {
	return rt.clearColor
}

func (rt *renderTarget) Attachments() []Attachment {
	return append([]Attachment(nil), rt.attachments...)
}

func (rt *renderTarget) ColorAttachment(i int) gpu.Texture {
	if i < 0 || i >= len(rt.colors) {
		panic(fmt.Sprintf("render_target: color attachment %d out of range for %s (%d)", i, rt.label, len(rt.colors)))
	}
	return rt.colors[i]
}

func (rt *renderTarget) ColorAttachments() []gpu.Texture {
	return append([]gpu.Texture(nil), rt.colors...)
}

func (rt *renderTarget) DepthAttachment() gpu.Texture {
	return rt.depth
}

func (rt *renderTarget) Viewport() gpu.Viewport {
	return gpu.Viewport{
		Width:    float32(rt.width),
		Height:   float32(rt.height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

func (rt *renderTarget) Invalidate() {
	rt.Release()

	for i, a := range rt.attachments {
		desc := gpu.TextureDesc{
			Label:    fmt.Sprintf("%s Attachment %d", rt.label, i),
			Width:    rt.width,
			Height:   rt.height,
			MipCount: a.MipCount,
			Format:   a.Format,
			Cube:     a.Cube,
			Wrap:     a.Wrap,
			Filter:   a.Filter,
			Usage:    gpu.TextureUsageRenderTarget | gpu.TextureUsageSampled,
		}
		if a.IsDepth() {
			desc.Usage = gpu.TextureUsageDepthStencil
		}

		tex, err := rt.device.CreateTexture(desc, nil)
		if err != nil {
			logger.Error("render target attachment creation failed", "target", rt.label, "attachment", i, "err", err)
			panic(fmt.Sprintf("render_target: creating attachment %d of %s: %v", i, rt.label, err))
		}
		if a.IsDepth() {
			rt.depth = tex
		} else {
			rt.colors = append(rt.colors, tex)
		}
	}
	logger.Debug("render target invalidated", "target", rt.label, "width", rt.width, "height", rt.height)
}

func (rt *renderTarget) Resize(width, height int) {
	if width == rt.width && height == rt.height {
		return
	}
	rt.width, rt.height = width, height
	rt.Invalidate()
}

func (rt *renderTarget) Release() {
	for _, tex := range rt.colors {
		rt.device.ReleaseTexture(tex)
	}
	if rt.depth != nil {
		rt.device.ReleaseTexture(rt.depth)
	}
	rt.colors, rt.depth = nil, nil
}
