package gpu

// CommandType identifies a recorded command.
type CommandType int

const (
	CommandSetPipelineState CommandType = iota
	CommandUploadConstants
	CommandUploadBuffer
	CommandBindVertexBuffer
	CommandBindIndexBuffer
	CommandBindTextures
	CommandBindSamplers
	CommandBindStorageTextures
	CommandClearRenderTarget
	CommandClearDepthStencil
	CommandSetRenderTargets
	CommandSetViewport
	CommandSetScissor
	CommandDrawIndexed
	CommandDispatch
	CommandCopyTexture
	CommandGenerateMips
)

var commandTypeNames = [...]string{
	CommandSetPipelineState:    "SetPipelineState",
	CommandUploadConstants:     "UploadConstants",
	CommandUploadBuffer:        "UploadBuffer",
	CommandBindVertexBuffer:    "BindVertexBuffer",
	CommandBindIndexBuffer:     "BindIndexBuffer",
	CommandBindTextures:        "BindTextures",
	CommandBindSamplers:        "BindSamplers",
	CommandBindStorageTextures: "BindStorageTextures",
	CommandClearRenderTarget:   "ClearRenderTarget",
	CommandClearDepthStencil:   "ClearDepthStencil",
	CommandSetRenderTargets:    "SetRenderTargets",
	CommandSetViewport:         "SetViewport",
	CommandSetScissor:          "SetScissor",
	CommandDrawIndexed:         "DrawIndexed",
	CommandDispatch:            "Dispatch",
	CommandCopyTexture:         "CopyTexture",
	CommandGenerateMips:        "GenerateMips",
}

func (t CommandType) String() string {
	if int(t) < 0 || int(t) >= len(commandTypeNames) {
		return "Unknown"
	}
	return commandTypeNames[t]
}

// Command is one recorded device command. The concrete types below are plain values;
// byte payloads are copied at record time so callers may reuse their slices.
type Command interface {
	Type() CommandType
}

type SetPipelineStateCmd struct {
	State GraphicsState
}

type UploadConstantsCmd struct {
	Stage    Stage
	Register int
	Buffer   Buffer
	Data     []byte
}

type UploadBufferCmd struct {
	Buffer Buffer
	Data   []byte
}

type BindVertexBufferCmd struct {
	Buffer Buffer
}

type BindIndexBufferCmd struct {
	Buffer Buffer
}

type BindTexturesCmd struct {
	Stage    Stage
	Start    int
	Textures []Texture
}

type BindSamplersCmd struct {
	Stage    Stage
	Start    int
	Textures []Texture
}

type BindStorageTexturesCmd struct {
	Start int
	Views []StorageView
}

type ClearRenderTargetCmd struct {
	Target Texture
	Color  Color
}

type ClearDepthStencilCmd struct {
	Target  Texture
	Depth   float32
	Stencil uint32
}

type SetRenderTargetsCmd struct {
	Colors []Texture
	Depth  Texture
}

type SetViewportCmd struct {
	Viewport Viewport
}

type SetScissorCmd struct {
	Rect Rect
}

type DrawIndexedCmd struct {
	IndexCount uint32
	StartIndex uint32
	BaseVertex int32
}

type DispatchCmd struct {
	Program Program
	X, Y, Z uint32
}

// CopyTextureCmd copies one subresource of Src into the same subresource of Dst. The
// subresource index is layer*mipCount + mip.
type CopyTextureCmd struct {
	Dst         Texture
	Src         Texture
	Subresource int
}

type GenerateMipsCmd struct {
	Texture Texture
}

func (SetPipelineStateCmd) Type() CommandType    { return CommandSetPipelineState }
func (UploadConstantsCmd) Type() CommandType     { return CommandUploadConstants }
func (UploadBufferCmd) Type() CommandType        { return CommandUploadBuffer }
func (BindVertexBufferCmd) Type() CommandType    { return CommandBindVertexBuffer }
func (BindIndexBufferCmd) Type() CommandType     { return CommandBindIndexBuffer }
func (BindTexturesCmd) Type() CommandType        { return CommandBindTextures }
func (BindSamplersCmd) Type() CommandType        { return CommandBindSamplers }
func (BindStorageTexturesCmd) Type() CommandType { return CommandBindStorageTextures }
func (ClearRenderTargetCmd) Type() CommandType   { return CommandClearRenderTarget }
func (ClearDepthStencilCmd) Type() CommandType   { return CommandClearDepthStencil }
func (SetRenderTargetsCmd) Type() CommandType    { return CommandSetRenderTargets }
func (SetViewportCmd) Type() CommandType         { return CommandSetViewport }
func (SetScissorCmd) Type() CommandType          { return CommandSetScissor }
func (DrawIndexedCmd) Type() CommandType         { return CommandDrawIndexed }
func (DispatchCmd) Type() CommandType            { return CommandDispatch }
func (CopyTextureCmd) Type() CommandType         { return CommandCopyTexture }
func (GenerateMipsCmd) Type() CommandType        { return CommandGenerateMips }

// Subresource returns the copy subresource index for a mip of a layer.
//
// Parameters:
//   - layer: the array layer (cube face)
//   - mip: the mip level
//   - mipCount: the texture's mip count
//
// Returns:
//   - int: layer*mipCount + mip
func Subresource(layer, mip, mipCount int) int {
	return layer*mipCount + mip
}

// SplitSubresource is the inverse of Subresource.
func SplitSubresource(subresource, mipCount int) (layer, mip int) {
	return subresource / mipCount, subresource % mipCount
}
