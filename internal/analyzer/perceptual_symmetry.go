package analyzer

import (
	"image"

	"github.com/corona10/goimagehash"
)

// MirrorAxis selects which way PerceptualMirror flips the image.
type MirrorAxis int

const (
	MirrorLeftRight MirrorAxis = iota
	MirrorTopBottom
)

// PerceptualMirror compares the difference hash of the image with the hash of
// its mirror. It is far less sensitive to noise than the pixel comparison.
type PerceptualMirror struct {
	Axis MirrorAxis
}

func (m PerceptualMirror) Measure(buf *PixelBuffer) float64 {
	if buf.TotalPixels() == 0 {
		return 1.0
	}

	original, err := goimagehash.DifferenceHash(buf.Image())
	if err != nil {
		return 1.0
	}
	mirrored, err := goimagehash.DifferenceHash(mirror(buf, m.Axis))
	if err != nil {
		return 1.0
	}

	dist, err := original.Distance(mirrored)
	if err != nil {
		return 1.0
	}
	return 1 - float64(dist)/64
}

func mirror(buf *PixelBuffer, axis MirrorAxis) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			sx, sy := buf.Width-1-x, y
			if axis == MirrorTopBottom {
				sx, sy = x, buf.Height-1-y
			}
			src := (sy*buf.Width + sx) * 4
			dst := out.PixOffset(x, y)
			copy(out.Pix[dst:dst+4], buf.Pix[src:src+4])
		}
	}
	return out
}
