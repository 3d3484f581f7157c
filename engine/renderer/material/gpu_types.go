package material

import (
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// alphaBlend is the straight alpha blend equation used by transparent materials.
var alphaBlend = wgpu.BlendComponent{
	SrcFactor: wgpu.BlendFactorSrcAlpha,
	DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
	Operation: wgpu.BlendOperationAdd,
}

// selectionStencil increments the stencil value of every covered pixel, for outline and
// selection effects.
var selectionStencil = wgpu.StencilFaceState{
	Compare:     wgpu.CompareFunctionAlways,
	FailOp:      wgpu.StencilOperationKeep,
	DepthFailOp: wgpu.StencilOperationKeep,
	PassOp:      wgpu.StencilOperationIncrementClamp,
}

// buildStates derives the per-draw state triple from render flags.
func buildStates(flags Flags) gpu.StateSnapshot {
	s := gpu.StateSnapshot{
		Rasterizer: gpu.RasterizerDesc{
			CullMode:  wgpu.CullModeBack,
			FrontFace: wgpu.FrontFaceCCW,
			Wireframe: flags.Has(FlagWireframe),
		},
		Blend: gpu.BlendDesc{
			Enabled:   flags.Has(FlagTransparent),
			Color:     alphaBlend,
			Alpha:     alphaBlend,
			WriteMask: wgpu.ColorWriteMaskAll,
		},
		DepthStencil: gpu.DepthStencilDesc{
			DepthEnabled:     true,
			DepthWrite:       true,
			DepthCompare:     wgpu.CompareFunctionLessEqual,
			StencilEnabled:   true,
			StencilReadMask:  0xFF,
			StencilWriteMask: 0xFF,
			StencilFront:     selectionStencil,
			StencilBack:      selectionStencil,
		},
	}
	if flags.Has(FlagTwoSided) {
		s.Rasterizer.CullMode = wgpu.CullModeNone
	}
	if flags.Has(FlagDisableDepthTest) {
		s.DepthStencil.DepthEnabled = false
		s.DepthStencil.DepthWrite = false
		s.DepthStencil.DepthCompare = wgpu.CompareFunctionAlways
	}
	return s
}
