package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// mipBlitSource downsamples one mip into the next with a single full-screen triangle.
const mipBlitSource = `
struct BlitOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@group(0) @binding(0) var source: texture_2d<f32>;
@group(0) @binding(1) var sourceSampler: sampler;

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> BlitOutput {
    var corners = array<vec2<f32>, 3>(
        vec2<f32>(-1.0, -1.0),
        vec2<f32>(3.0, -1.0),
        vec2<f32>(-1.0, 3.0),
    );
    var out: BlitOutput;
    let p = corners[index];
    out.position = vec4<f32>(p, 0.0, 1.0);
    out.uv = vec2<f32>((p.x + 1.0) * 0.5, (1.0 - p.y) * 0.5);
    return out;
}

@fragment
fn fs_main(in: BlitOutput) -> @location(0) vec4<f32> {
    return textureSampleLevel(source, sourceSampler, in.uv, 0.0);
}
`

// mipGenerator owns the blit pipelines used by GenerateMips, one per target format.
type mipGenerator struct {
	device *wgpu.Device

	module         *wgpu.ShaderModule
	layout         *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	sampler        *wgpu.Sampler
	pipelines      map[wgpu.TextureFormat]*wgpu.RenderPipeline
}

func newMipGenerator(device *wgpu.Device) *mipGenerator {
	return &mipGenerator{
		device:    device,
		pipelines: make(map[wgpu.TextureFormat]*wgpu.RenderPipeline),
	}
}

func (m *mipGenerator) init() error {
	if m.module != nil {
		return nil
	}
	module, err := m.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Mip Blit",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: mipBlitSource,
		},
	})
	if err != nil {
		return err
	}

	layout, err := m.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Mip Blit Group",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return err
	}

	pipelineLayout, err := m.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Mip Blit",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return err
	}

	sampler, err := m.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Mip Blit Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	m.module, m.layout, m.pipelineLayout, m.sampler = module, layout, pipelineLayout, sampler
	return nil
}

func (m *mipGenerator) pipeline(format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	if p, ok := m.pipelines[format]; ok {
		return p, nil
	}
	p, err := m.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("Mip Blit %v", format),
		Layout: m.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     m.module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     m.module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{Format: format, WriteMask: wgpu.ColorWriteMaskAll},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	m.pipelines[format] = p
	return p, nil
}

// generate encodes one blit pass per mip per layer. The returned bind groups must be
// released after the encoder is submitted.
func (m *mipGenerator) generate(d *wgpuDevice, enc *wgpu.CommandEncoder, t *texture) ([]*wgpu.BindGroup, error) {
	if t.MipCount() < 2 {
		return nil, nil
	}
	if err := m.init(); err != nil {
		return nil, fmt.Errorf("initializing mip blit: %w", err)
	}
	pipeline, err := m.pipeline(gpuFormat(t.desc))
	if err != nil {
		return nil, fmt.Errorf("creating mip blit pipeline: %w", err)
	}

	var groups []*wgpu.BindGroup
	for layer := range t.desc.Layers() {
		for mip := 1; mip < t.MipCount(); mip++ {
			src, err := d.subView(t, wgpu.TextureViewDimension2D, mip-1, layer, 1)
			if err != nil {
				return groups, err
			}
			dst, err := d.subView(t, wgpu.TextureViewDimension2D, mip, layer, 1)
			if err != nil {
				return groups, err
			}
			bg, err := m.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
				Label:  "Mip Blit Group",
				Layout: m.layout,
				Entries: []wgpu.BindGroupEntry{
					{Binding: 0, TextureView: src},
					{Binding: 1, Sampler: m.sampler},
				},
			})
			if err != nil {
				return groups, err
			}
			groups = append(groups, bg)

			pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
				Label: "Mip Blit",
				ColorAttachments: []wgpu.RenderPassColorAttachment{
					{
						View:    dst,
						LoadOp:  wgpu.LoadOpClear,
						StoreOp: wgpu.StoreOpStore,
					},
				},
			})
			pass.SetPipeline(pipeline)
			pass.SetBindGroup(0, bg, nil)
			pass.Draw(3, 1, 0, 0)
			pass.End()
			pass.Release()
		}
	}
	return groups, nil
}

func (m *mipGenerator) release() {
	for _, p := range m.pipelines {
		p.Release()
	}
	m.pipelines = map[wgpu.TextureFormat]*wgpu.RenderPipeline{}
	if m.sampler != nil {
		m.sampler.Release()
	}
	if m.pipelineLayout != nil {
		m.pipelineLayout.Release()
	}
	if m.layout != nil {
		m.layout.Release()
	}
	if m.module != nil {
		m.module.Release()
	}
}
