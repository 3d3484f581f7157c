package common

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidHDR is returned for data that is not a Radiance RGBE image.
var ErrInvalidHDR = errors.New("common: invalid radiance hdr")

// MaxHDRDimension bounds the width and height DecodeHDR accepts, the usual GPU 2D texture
// limit.
const MaxHDRDimension = 16384

var (
	// hdrResolutionRegex captures the height and width of a standard "-Y h +X w" orientation.
	hdrResolutionRegex = regexp.MustCompile(`^-Y\s+(\d+)\s+\+X\s+(\d+)$`)
)

// HDRImage is a decoded floating-point image with four channels per pixel, alpha fixed at one.
type HDRImage struct {
	Width  int
	Height int

	// Pix holds RGBA values row by row, top row first.
	Pix []float32
}

// At returns the RGB value of a pixel.
func (img *HDRImage) At(x, y int) [3]float32 {
	i := (y*img.Width + x) * 4
	return [3]float32{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}
}

// DecodeHDRFile opens and decodes a Radiance .hdr file.
func DecodeHDRFile(path string) (*HDRImage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening hdr %s: %w", path, err)
	}
	defer file.Close()

	img, err := DecodeHDR(file)
	if err != nil {
		return nil, fmt.Errorf("decoding hdr %s: %w", path, err)
	}
	return img, nil
}

// DecodeHDR decodes a Radiance RGBE image with flat or run-length encoded scanlines. Only the
// standard -Y +X orientation is accepted.
//
// Parameters:
//   - r: the encoded image
//
// Returns:
//   - *HDRImage: the decoded image
//   - error: ErrInvalidHDR describing the first problem
func DecodeHDR(r io.Reader) (*HDRImage, error) {
	br := bufio.NewReader(r)

	magic, err := br.ReadString('\n')
	if err != nil || !strings.HasPrefix(magic, "#?") {
		return nil, fmt.Errorf("%w: missing #? signature", ErrInvalidHDR)
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrInvalidHDR)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if format, ok := strings.CutPrefix(line, "FORMAT="); ok && format != "32-bit_rle_rgbe" {
			return nil, fmt.Errorf("%w: unsupported format %s", ErrInvalidHDR, format)
		}
	}

	res, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: missing resolution", ErrInvalidHDR)
	}
	m := hdrResolutionRegex.FindStringSubmatch(strings.TrimSpace(res))
	if m == nil {
		return nil, fmt.Errorf("%w: unsupported resolution line %q", ErrInvalidHDR, strings.TrimSpace(res))
	}
	height, errH := strconv.Atoi(m[1])
	width, errW := strconv.Atoi(m[2])
	if errH != nil || errW != nil {
		return nil, fmt.Errorf("%w: unreadable resolution %q", ErrInvalidHDR, strings.TrimSpace(res))
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidHDR)
	}
	if width > MaxHDRDimension || height > MaxHDRDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrInvalidHDR, width, height, MaxHDRDimension)
	}

	img := &HDRImage{Width: width, Height: height, Pix: make([]float32, width*height*4)}
	scanline := make([]byte, width*4)
	for y := range height {
		if err := readScanline(br, scanline, width); err != nil {
			return nil, fmt.Errorf("%w: scanline %d: %v", ErrInvalidHDR, y, err)
		}
		row := img.Pix[y*width*4:]
		for x := range width {
			rgbe := scanline[x*4 : x*4+4]
			r, g, b := rgbeToFloat(rgbe[0], rgbe[1], rgbe[2], rgbe[3])
			row[x*4], row[x*4+1], row[x*4+2], row[x*4+3] = r, g, b, 1
		}
	}
	return img, nil
}

// readScanline fills dst with width RGBE pixels.
func readScanline(br *bufio.Reader, dst []byte, width int) error {
	head, err := br.Peek(4)
	if err != nil {
		return err
	}
	if width < 8 || width > 0x7fff || head[0] != 2 || head[1] != 2 || head[2]&0x80 != 0 {
		_, err := io.ReadFull(br, dst)
		return err
	}
	if int(head[2])<<8|int(head[3]) != width {
		return errors.New("run-length width mismatch")
	}
	if _, err := br.Discard(4); err != nil {
		return err
	}

	// New-style RLE stores each of the four components as its own run-length stream.
	for c := range 4 {
		for x := 0; x < width; {
			count, err := br.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				n := int(count - 128)
				if x+n > width {
					return errors.New("run overflows scanline")
				}
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				for ; n > 0; n-- {
					dst[x*4+c] = v
					x++
				}
				continue
			}
			n := int(count)
			if n == 0 || x+n > width {
				return errors.New("bad literal run")
			}
			for ; n > 0; n-- {
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				dst[x*4+c] = v
				x++
			}
		}
	}
	return nil
}

func rgbeToFloat(r, g, b, e byte) (float32, float32, float32) {
	if e == 0 {
		return 0, 0, 0
	}
	f := float32(math.Ldexp(1, int(e)-(128+8)))
	return (float32(r) + 0.5) * f, (float32(g) + 0.5) * f, (float32(b) + 0.5) * f
}
