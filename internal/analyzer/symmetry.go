package analyzer

const (
	symmetrySampleStride = 10
	maxChannelSumDiff    = 765 // 3 * 255
	highSymmetry         = 0.7

	// PlaceholderVerticalSymmetry is reported when no vertical comparison is run.
	PlaceholderVerticalSymmetry = 0.5
)

// AxisMeasure scores mirror symmetry along one axis in [0,1], 1 meaning identical halves.
type AxisMeasure interface {
	Measure(buf *PixelBuffer) float64
}

// SymmetryAnalysis combines the horizontal and vertical measures.
type SymmetryAnalysis struct {
	HorizontalSymmetry float64 `json:"horizontalSymmetry"`
	VerticalSymmetry   float64 `json:"verticalSymmetry"`
	SymmetryAIScore    float64 `json:"symmetryAiScore"`
	Interpretation     string  `json:"interpretation"`
}

// AnalyzeSymmetry runs both measures and averages them.
func AnalyzeSymmetry(buf *PixelBuffer, horizontal, vertical AxisMeasure) SymmetryAnalysis {
	h := horizontal.Measure(buf)
	v := vertical.Measure(buf)
	score := (h + v) / 2

	interpretation := "Natural symmetry."
	if score > highSymmetry {
		interpretation = "High symmetry detected. Common in AI-generated images."
	}

	return SymmetryAnalysis{
		HorizontalSymmetry: h,
		VerticalSymmetry:   v,
		SymmetryAIScore:    score,
		Interpretation:     interpretation,
	}
}

// StridedHorizontal compares each sampled pixel in the left half against its
// mirror (width-1-x, y) on a grid with the given stride.
type StridedHorizontal struct {
	Stride int
}

func (m StridedHorizontal) Measure(buf *PixelBuffer) float64 {
	stride := m.Stride
	if stride <= 0 {
		stride = symmetrySampleStride
	}

	var diff, samples int
	for y := 0; y < buf.Height; y += stride {
		row := y * buf.Width
		// 2*x < Width keeps the half-width bound exact for odd widths.
		for x := 0; 2*x < buf.Width; x += stride {
			diff += pixelDiff(buf.Pix, (row+x)*4, (row+buf.Width-1-x)*4)
			samples++
		}
	}
	return similarity(diff, samples)
}

// StridedVertical compares each sampled pixel in the top half against its
// mirror (x, height-1-y).
type StridedVertical struct {
	Stride int
}

func (m StridedVertical) Measure(buf *PixelBuffer) float64 {
	stride := m.Stride
	if stride <= 0 {
		stride = symmetrySampleStride
	}

	var diff, samples int
	for y := 0; 2*y < buf.Height; y += stride {
		top := y * buf.Width
		bottom := (buf.Height - 1 - y) * buf.Width
		for x := 0; x < buf.Width; x += stride {
			diff += pixelDiff(buf.Pix, (top+x)*4, (bottom+x)*4)
			samples++
		}
	}
	return similarity(diff, samples)
}

// FixedAxis always reports the same value.
type FixedAxis float64

func (f FixedAxis) Measure(*PixelBuffer) float64 {
	return float64(f)
}

func pixelDiff(pix []uint8, a, b int) int {
	return absDiff(pix[a], pix[b]) + absDiff(pix[a+1], pix[b+1]) + absDiff(pix[a+2], pix[b+2])
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// similarity maps a summed channel difference to [0,1]. No samples means no
// evidence of asymmetry.
func similarity(diff, samples int) float64 {
	if samples == 0 {
		return 1.0
	}
	return 1 - float64(diff)/float64(samples*maxChannelSumDiff)
}
