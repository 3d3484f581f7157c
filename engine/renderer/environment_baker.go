package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/Carmen-Shannon/lumen/engine/light"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ThreadGroupSize is the workgroup edge length of every environment compute shader.
const ThreadGroupSize = 32

// EnvironmentBaker turns an equirectangular HDR image into the cubes image-based lighting
// samples.
type EnvironmentBaker interface {
	// BakeEnvironment converts an equirectangular RGBA16Float texture into a prefiltered
	// radiance cube and an irradiance cube. Every stage is recorded into one command list that
	// is executed once.
	//
	// The stages are:
	//   - equirect to an unfiltered cube, then a mip chain generated from it
	//   - mip 0 copied into the radiance cube and each further mip m prefiltered at
	//     roughness m/(mips-1)
	//   - the irradiance cube convolved from the radiance cube
	//
	// Parameters:
	//   - name: the environment name, usually the source path
	//   - equirect: the source texture; the caller keeps ownership
	//
	// Returns:
	//   - *light.EnvironmentMap: the baked cubes
	//   - error: a device error
	BakeEnvironment(name string, equirect gpu.Texture) (*light.EnvironmentMap, error)
}

// ThreadGroups returns the number of workgroups covering size texels along one axis, at
// least one.
func ThreadGroups(size int) uint32 {
	return uint32(max(1, size/ThreadGroupSize))
}

// PrefilterRoughness returns the roughness a radiance mip is prefiltered at: mip 0 is a
// mirror and the last mip is fully rough.
//
// Parameters:
//   - mip: the mip level
//   - mipCount: the number of mips of the cube
//
// Returns:
//   - float32: mip/(mipCount-1), with a single-mip cube treated as two mips
func PrefilterRoughness(mip, mipCount int) float32 {
	return float32(mip) / float32(max(mipCount-1, 1))
}

// MipCount returns the full mip chain length of a size x size texture.
func MipCount(size int) int {
	if size < 1 {
		return 1
	}
	return bits.Len(uint(size))
}

func (r *renderer) BakeEnvironment(name string, equirect gpu.Texture) (*light.EnvironmentMap, error) {
	if equirect == nil {
		return nil, fmt.Errorf("%w: environment %s has no source texture", gpu.ErrInvalidDescriptor, name)
	}
	size := r.envSize
	mips := MipCount(size)
	cubeDesc := gpu.TextureDesc{
		Width:    size,
		Height:   size,
		MipCount: mips,
		Format:   EnvironmentFormat,
		Cube:     true,
		Usage:    gpu.TextureUsageStorage | gpu.TextureUsageSampled,
		Wrap:     wgpu.AddressModeClampToEdge,
		Filter:   wgpu.FilterModeLinear,
	}

	unfilteredDesc := cubeDesc
	unfilteredDesc.Label = name + " Unfiltered"
	unfiltered, err := r.device.CreateTexture(unfilteredDesc, nil)
	if err != nil {
		return nil, fmt.Errorf("renderer: baking %s: %w", name, err)
	}
	defer r.device.ReleaseTexture(unfiltered)

	filteredDesc := cubeDesc
	filteredDesc.Label = name + " Radiance"
	filtered, err := r.device.CreateTexture(filteredDesc, nil)
	if err != nil {
		return nil, fmt.Errorf("renderer: baking %s: %w", name, err)
	}

	irradiance, err := r.device.CreateTexture(gpu.TextureDesc{
		Label:  name + " Irradiance",
		Width:  r.irradianceSize,
		Height: r.irradianceSize,
		Format: EnvironmentFormat,
		Cube:   true,
		Usage:  gpu.TextureUsageStorage | gpu.TextureUsageSampled,
		Wrap:   wgpu.AddressModeClampToEdge,
		Filter: wgpu.FilterModeLinear,
	}, nil)
	if err != nil {
		r.device.ReleaseTexture(filtered)
		return nil, fmt.Errorf("renderer: baking %s: %w", name, err)
	}

	rec := r.device.NewCommandRecorder("Environment " + name)
	r.recordEquirectToCube(rec, equirect, unfiltered)
	r.recordPrefilter(rec, unfiltered, filtered)
	r.recordIrradiance(rec, filtered, irradiance)
	rec.Finish()
	if err := r.device.ExecuteCommandBuffer(rec); err != nil {
		r.device.ReleaseTexture(filtered)
		r.device.ReleaseTexture(irradiance)
		return nil, fmt.Errorf("renderer: baking %s: %w", name, err)
	}

	logger.Info("environment baked", "name", name, "size", size, "mips", mips, "irradiance", r.irradianceSize)
	return &light.EnvironmentMap{Name: name, Radiance: filtered, Irradiance: irradiance}, nil
}

func (r *renderer) recordEquirectToCube(rec gpu.CommandRecorder, equirect, cube gpu.Texture) {
	cs := r.library.GetCompute(shader.EquirectToCubeShader)
	groups := ThreadGroups(cube.Width())
	rec.SetShaderResources(gpu.StageCompute, 0, []gpu.Texture{equirect})
	rec.SetSamplers(gpu.StageCompute, 0, []gpu.Texture{equirect})
	rec.SetStorageTextures(0, []gpu.StorageView{{Texture: cube}})
	rec.Dispatch(cs.Program(), groups, groups, 6)
	rec.GenerateMips(cube)
}

// recordPrefilter copies mip 0 unchanged and filters every smaller mip from the full
// unfiltered chain.
func (r *renderer) recordPrefilter(rec gpu.CommandRecorder, unfiltered, filtered gpu.Texture) {
	mips := filtered.MipCount()
	for face := range 6 {
		rec.CopyTexture(filtered, unfiltered, gpu.Subresource(face, 0, mips))
	}

	cs := r.library.GetCompute(shader.EnvironmentPrefilterShader)
	params := cs.ConstantBuffer(0)
	rec.SetShaderResources(gpu.StageCompute, 0, []gpu.Texture{unfiltered})
	rec.SetSamplers(gpu.StageCompute, 0, []gpu.Texture{unfiltered})

	size := filtered.Width() / 2
	for m := 1; m < mips; m++ {
		groups := ThreadGroups(size)
		roughness := make([]byte, 4)
		binary.LittleEndian.PutUint32(roughness, math.Float32bits(PrefilterRoughness(m, mips)))
		rec.SetConstantBufferData(gpu.StageCompute, 0, params, roughness)
		rec.SetStorageTextures(0, []gpu.StorageView{{Texture: filtered, MipLevel: m}})
		rec.Dispatch(cs.Program(), groups, groups, 6)
		size /= 2
	}
}

func (r *renderer) recordIrradiance(rec gpu.CommandRecorder, radiance, irradiance gpu.Texture) {
	cs := r.library.GetCompute(shader.IrradianceShader)
	groups := ThreadGroups(irradiance.Width())
	rec.SetShaderResources(gpu.StageCompute, 0, []gpu.Texture{radiance})
	rec.SetSamplers(gpu.StageCompute, 0, []gpu.Texture{radiance})
	rec.SetStorageTextures(0, []gpu.StorageView{{Texture: irradiance}})
	rec.Dispatch(cs.Program(), groups, groups, 6)
}
