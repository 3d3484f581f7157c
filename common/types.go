// package common contains plain data types and codecs shared by the importer, the asset
// manager and the renderer. They are not interface-wrapped structs.
package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImportedMaterial holds the material properties read from a model file, before they are
// applied to a mesh_pbr material.
type ImportedMaterial struct {
	// Name is the material identifier.
	Name string

	// AlbedoColor is the base color. Alpha below one marks the material transparent.
	AlbedoColor [4]float32

	// Metalness factor (0.0 = dielectric, 1.0 = metal).
	Metalness float32

	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32

	// Emission is the emissive strength.
	Emission float32

	AlbedoTexture    *ImportedTexture
	NormalTexture    *ImportedTexture
	MetalnessTexture *ImportedTexture
	RoughnessTexture *ImportedTexture

	// Transparent is set for blended materials and for albedo alpha below one.
	Transparent bool

	// TwoSided disables back-face culling.
	TwoSided bool
}

// ImportedTexture references texture data extracted from a model file.
// For embedded textures (GLB), the Data field contains raw image bytes.
// For external textures, the Path field contains the resolved file path.
type ImportedTexture struct {
	// Name is an identifier for this texture (e.g., "albedo", "normal").
	Name string

	// Path is the file path for external textures (empty for embedded).
	Path string

	// Data contains raw image bytes for embedded textures.
	Data []byte

	// MimeType indicates the image format (e.g., "image/png", "image/jpeg").
	MimeType string

	// Wrap is the address mode read from the file's sampler, zero for the default.
	Wrap wgpu.AddressMode

	// Channel selects one channel of a packed map, ChannelAll for plain color data.
	Channel Channel
}

// Channel names one color channel of a texture.
type Channel int

const (
	ChannelAll Channel = iota
	ChannelRed
	ChannelGreen
	ChannelBlue
	ChannelAlpha
)

func (c Channel) String() string {
	switch c {
	case ChannelRed:
		return "r"
	case ChannelGreen:
		return "g"
	case ChannelBlue:
		return "b"
	case ChannelAlpha:
		return "a"
	default:
		return "rgba"
	}
}

// Key returns the cache key of the texture: its path, or a name unique to the embedded data.
func (t *ImportedTexture) Key() string {
	key := t.Path
	if key == "" {
		key = fmt.Sprintf("embedded:%s:%d", t.Name, len(t.Data))
	}
	if t.Channel != ChannelAll {
		key += "#" + t.Channel.String()
	}
	return key
}

// Decode decodes the texture to an image, from Data when present and from Path otherwise.
//
// Returns:
//   - image.Image: the decoded image
//   - error: error if decoding fails
func (t *ImportedTexture) Decode() (image.Image, error) {
	if t == nil {
		return nil, fmt.Errorf("texture is nil")
	}
	if len(t.Data) > 0 {
		img, err := DecodeImage(bytes.NewReader(t.Data))
		if err != nil {
			return nil, fmt.Errorf("decoding embedded texture %s: %w", t.Name, err)
		}
		return img, nil
	}
	if t.Path == "" {
		return nil, fmt.Errorf("texture %s has neither data nor path", t.Name)
	}
	return DecodeImageFile(t.Path)
}

// DecodeImage decodes PNG, JPEG, BMP, TIFF or WebP data.
//
// Parameters:
//   - r: the encoded image
//
// Returns:
//   - image.Image: the decoded image
//   - error: an unknown format or corrupt data
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

// DecodeImageFile opens and decodes an image file.
func DecodeImageFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer file.Close()

	img, err := DecodeImage(file)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return img, nil
}

// ToBGRA converts an image to tightly packed 8-bit BGRA rows.
//
// Parameters:
//   - img: the source image in any color model
//
// Returns:
//   - []byte: width*height*4 bytes
//   - int: the width in pixels
//   - int: the height in pixels
func ToBGRA(img image.Image) ([]byte, int, int) {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	pix := rgba.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
	return pix, bounds.Dx(), bounds.Dy()
}

// SelectChannel copies one channel of BGRA pixels into the blue, green and red channels in
// place, leaving alpha opaque. ChannelAll leaves the pixels untouched.
//
// Parameters:
//   - bgra: tightly packed BGRA pixels as returned by ToBGRA
//   - ch: the channel to broadcast
func SelectChannel(bgra []byte, ch Channel) {
	var offset int
	switch ch {
	case ChannelBlue:
		offset = 0
	case ChannelGreen:
		offset = 1
	case ChannelRed:
		offset = 2
	case ChannelAlpha:
		offset = 3
	default:
		return
	}
	for i := 0; i+3 < len(bgra); i += 4 {
		v := bgra[i+offset]
		bgra[i], bgra[i+1], bgra[i+2], bgra[i+3] = v, v, v, 255
	}
}
