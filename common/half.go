package common

import (
	"encoding/binary"

	"github.com/x448/float16"
)

// HalfBytes packs float32 values as little-endian IEEE 754 half floats, the layout of
// RGBA16Float texture uploads.
//
// Parameters:
//   - values: the values to convert
//
// Returns:
//   - []byte: 2 bytes per value
func HalfBytes(values []float32) []byte {
	buf := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(v).Bits())
	}
	return buf
}

// HalfToFloat32 converts one half float bit pattern back to float32.
func HalfToFloat32(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}
