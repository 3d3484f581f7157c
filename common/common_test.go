package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hdrHeader(w, h string) []byte {
	return []byte("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y " + h + " +X " + w + "\n")
}

func TestDecodeHDRFlat(t *testing.T) {
	data := hdrHeader("2", "1")
	// 1.0 is mantissa 128 at exponent 129; zero exponent is black.
	data = append(data, 128, 128, 128, 129, 9, 9, 9, 0)

	img, err := DecodeHDR(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Height)
	assert.InDelta(t, 1.0, float64(img.At(0, 0)[0]), 0.01)
	assert.Equal(t, [3]float32{}, img.At(1, 0))
	assert.Equal(t, float32(1), img.Pix[7])
}

func TestDecodeHDRRunLength(t *testing.T) {
	data := hdrHeader("8", "1")
	data = append(data, 2, 2, 0, 8)
	// R: run of 8. G: 8 literals. B: run of 8. E: run of 8.
	data = append(data, 128+8, 64)
	data = append(data, 8, 0, 16, 32, 48, 64, 80, 96, 112)
	data = append(data, 128+8, 0)
	data = append(data, 128+8, 129)

	img, err := DecodeHDR(bytes.NewReader(data))
	require.NoError(t, err)
	for x := range 8 {
		px := img.At(x, 0)
		assert.InDelta(t, (64.5)/128, float64(px[0]), 1e-4)
		assert.InDelta(t, (float64(x*16)+0.5)/128, float64(px[1]), 1e-4)
	}
}

func TestDecodeHDRErrors(t *testing.T) {
	_, err := DecodeHDR(bytes.NewReader([]byte("P6\n")))
	assert.ErrorIs(t, err, ErrInvalidHDR)

	_, err = DecodeHDR(bytes.NewReader([]byte("#?RADIANCE\nFORMAT=32-bit_rle_xyze\n\n-Y 1 +X 1\n")))
	assert.ErrorIs(t, err, ErrInvalidHDR)

	_, err = DecodeHDR(bytes.NewReader([]byte("#?RADIANCE\n\n+Y 1 +X 1\n")))
	assert.ErrorIs(t, err, ErrInvalidHDR)

	_, err = DecodeHDR(bytes.NewReader(append(hdrHeader("2", "2"), 1, 2, 3)))
	assert.ErrorIs(t, err, ErrInvalidHDR)
}

func TestDecodeHDRRejectsHugeResolution(t *testing.T) {
	_, err := DecodeHDR(bytes.NewReader(hdrHeader("3037000500", "3037000500")))
	assert.ErrorIs(t, err, ErrInvalidHDR)

	_, err = DecodeHDR(bytes.NewReader(hdrHeader("1", "16385")))
	assert.ErrorIs(t, err, ErrInvalidHDR)

	_, err = DecodeHDR(bytes.NewReader(hdrHeader("99999999999999999999", "1")))
	assert.ErrorIs(t, err, ErrInvalidHDR)
}

func TestHalfBytes(t *testing.T) {
	buf := HalfBytes([]float32{1, -2, 0.5})
	require.Len(t, buf, 6)
	assert.Equal(t, []byte{0x00, 0x3c}, buf[0:2])
	assert.Equal(t, float32(-2), HalfToFloat32(uint16(buf[2])|uint16(buf[3])<<8))
	assert.Equal(t, float32(0.5), HalfToFloat32(uint16(buf[4])|uint16(buf[5])<<8))
}

func TestToBGRA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	pix, w, h := ToBGRA(src)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
	assert.Equal(t, []byte{30, 20, 10, 255}, pix)
}

func TestImportedTextureDecode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 3))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	tex := &ImportedTexture{Name: "albedo", Data: buf.Bytes()}
	img, err := tex.Decode()
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dy())
	assert.Equal(t, "embedded:albedo:"+strconv.Itoa(buf.Len()), tex.Key())

	_, err = (&ImportedTexture{Name: "none"}).Decode()
	assert.Error(t, err)
}

func TestSelectChannel(t *testing.T) {
	pix := []byte{10, 20, 30, 40, 50, 60, 70, 80}

	SelectChannel(pix, ChannelGreen)
	assert.Equal(t, []byte{20, 20, 20, 255, 60, 60, 60, 255}, pix)

	pix = []byte{1, 2, 3, 4}
	SelectChannel(pix, ChannelAll)
	assert.Equal(t, []byte{1, 2, 3, 4}, pix)

	tex := &ImportedTexture{Path: "textures/mr.png", Channel: ChannelBlue}
	assert.Equal(t, "textures/mr.png#b", tex.Key())
}
