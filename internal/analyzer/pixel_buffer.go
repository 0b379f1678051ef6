package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the decode surface at 100 megapixels.
const DefaultMaxPixels = 100_000_000

// Decode failure reasons
const (
	ReasonInvalidImage    = "invalid_image"
	ReasonUnsupportedType = "unsupported_content_type"
	ReasonZeroDimensions  = "zero_dimensions"
	ReasonSurfaceTooLarge = "surface_unavailable"
)

// DecodeError reports that raw bytes could not be turned into a PixelBuffer.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return "decode image: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err carries a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// PixelBuffer is a row-major, top-to-bottom, non-premultiplied RGBA plane.
// len(Pix) is always Width*Height*4. Treat it as read-only once built.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer wraps pix after checking the layout invariant.
func NewPixelBuffer(width, height int, pix []uint8) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, &DecodeError{Reason: ReasonZeroDimensions}
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("pixel buffer: got %d bytes, want %d", len(pix), width*height*4)
	}
	return &PixelBuffer{Width: width, Height: height, Pix: pix}, nil
}

// TotalPixels returns Width*Height.
func (b *PixelBuffer) TotalPixels() int {
	return b.Width * b.Height
}

// At returns the RGBA quadruple at (x, y).
func (b *PixelBuffer) At(x, y int) (r, g, bl, a uint8) {
	i := (y*b.Width + x) * 4
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]
}

// Image exposes the buffer as an image.Image sharing the same backing array.
func (b *PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// surfacePool recycles off-screen decode surfaces between calls. Pixels are
// always copied out before a surface goes back to the pool.
var surfacePool = sync.Pool{
	New: func() interface{} {
		return &image.NRGBA{}
	},
}

func acquireSurface(width, height int) *image.NRGBA {
	s := surfacePool.Get().(*image.NRGBA)
	n := width * height * 4
	if cap(s.Pix) < n {
		s.Pix = make([]uint8, n)
	} else {
		s.Pix = s.Pix[:n]
		clear(s.Pix)
	}
	s.Stride = width * 4
	s.Rect = image.Rect(0, 0, width, height)
	return s
}

func releaseSurface(s *image.NRGBA) {
	surfacePool.Put(s)
}

// Load decodes data into a PixelBuffer at native resolution.
func Load(ctx context.Context, data []byte, contentType string) (*PixelBuffer, error) {
	buf, _, err := decode(ctx, data, contentType, DefaultMaxPixels)
	return buf, err
}

// decode returns the buffer together with the decoder's format name.
func decode(ctx context.Context, data []byte, contentType string, maxPixels int) (*PixelBuffer, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if !acceptsContentType(contentType) {
		return nil, "", &DecodeError{Reason: ReasonUnsupportedType, Err: fmt.Errorf("content type %q", contentType)}
	}
	if len(data) == 0 {
		return nil, "", &DecodeError{Reason: ReasonInvalidImage, Err: errors.New("empty input")}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Reason: ReasonInvalidImage, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", &DecodeError{Reason: ReasonZeroDimensions}
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, "", &DecodeError{
			Reason: ReasonSurfaceTooLarge,
			Err:    fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels),
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Reason: ReasonInvalidImage, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, "", &DecodeError{Reason: ReasonZeroDimensions}
	}

	surface := acquireSurface(width, height)
	defer releaseSurface(surface)

	draw.Draw(surface, surface.Rect, img, bounds.Min, draw.Src)

	pix := make([]uint8, len(surface.Pix))
	copy(pix, surface.Pix)

	return &PixelBuffer{Width: width, Height: height, Pix: pix}, format, nil
}

// acceptsContentType treats an empty or generic hint as "sniff the bytes".
func acceptsContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "", ct == "application/octet-stream":
		return true
	case strings.HasPrefix(ct, "image/"):
		return true
	default:
		return false
	}
}
