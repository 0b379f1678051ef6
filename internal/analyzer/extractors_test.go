package analyzer

import (
	"context"
	"image/color"
	"math"
	"math/rand/v2"
	"testing"
)

// paletteBuffer has exactly unique distinct colours, the first pixel's
// colour filling the rest.
func paletteBuffer(width, height, unique int) *PixelBuffer {
	buf := createTestBuffer(width, height, color.NRGBA{0, 0, 0, 255})
	for i := 1; i < unique; i++ {
		buf.Pix[i*4] = uint8(i)
		buf.Pix[i*4+1] = uint8(i >> 8)
	}
	return buf
}

func TestAnalyzeColor_LimitedPaletteBoundary(t *testing.T) {
	// 100x100 means the boundary is 100 colours
	below := AnalyzeColor(paletteBuffer(100, 100, 99))
	if below.UniqueColors != 99 || !below.HasLimitedPalette {
		t.Errorf("Expected 99 colours to be limited, got %+v", below)
	}

	at := AnalyzeColor(paletteBuffer(100, 100, 100))
	if at.UniqueColors != 100 || at.HasLimitedPalette {
		t.Errorf("Expected 100 colours not to be limited, got %+v", at)
	}
}

func TestAnalyzeColor_IgnoresAlpha(t *testing.T) {
	buf := createTestBuffer(2, 1, color.NRGBA{5, 5, 5, 255})
	buf.Pix[7] = 0

	if got := AnalyzeColor(buf).UniqueColors; got != 1 {
		t.Errorf("Expected alpha to be ignored, got %d colours", got)
	}
}

func TestAnalyzeColor_DiversityCapped(t *testing.T) {
	ca := AnalyzeColor(createNoiseBuffer(20, 20, 3))
	if ca.DiversityScore != 1 {
		t.Errorf("Expected diversity capped at 1, got %f", ca.DiversityScore)
	}
	if ca.DominantColors == nil || len(ca.DominantColors) != 0 {
		t.Errorf("Expected empty dominant colours, got %v", ca.DominantColors)
	}
}

func TestExtractors_EmptyBuffer(t *testing.T) {
	empty := &PixelBuffer{}

	if ca := AnalyzeColor(empty); ca.DiversityScore != 0 || ca.UniqueColors != 0 {
		t.Errorf("Unexpected colour analysis %+v", ca)
	}
	if ta := AnalyzeTransparency(empty); ta.TransparencyRatio != 0 {
		t.Errorf("Unexpected transparency analysis %+v", ta)
	}
	if na := AnalyzeNoise(empty); na.NoiseScore != 0 || na.NoiseLevel != NoiseLow {
		t.Errorf("Unexpected noise analysis %+v", na)
	}
	if h := (StridedHorizontal{}).Measure(empty); h != 1.0 {
		t.Errorf("Expected 1.0 for no samples, got %f", h)
	}
	if p := (PerceptualMirror{}).Measure(empty); p != 1.0 {
		t.Errorf("Expected 1.0 for empty perceptual mirror, got %f", p)
	}
}

func TestAnalyzeTransparency_Threshold(t *testing.T) {
	// 1 of 10 translucent is exactly 0.1, which is not significant
	buf := createTestBuffer(10, 1, color.NRGBA{A: 255})
	buf.Pix[3] = 254
	ta := AnalyzeTransparency(buf)
	if ta.TransparentPixels != 1 || ta.TotalPixels != 10 || ta.HasSignificantTransparency {
		t.Errorf("Unexpected result at threshold: %+v", ta)
	}

	buf.Pix[7] = 0
	if ta := AnalyzeTransparency(buf); !ta.HasSignificantTransparency || ta.TransparentPixels != 2 {
		t.Errorf("Expected 2 of 10 to be significant: %+v", ta)
	}
}

func TestAnalyzeNoise_Levels(t *testing.T) {
	tests := []struct {
		name  string
		gray  uint8
		level NoiseLevel
	}{
		{"black", 0, NoiseLow},
		{"dark", 20, NoiseLow},
		{"mid", 60, NoiseMedium},
		{"white", 255, NoiseHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := AnalyzeNoise(createTestBuffer(4, 4, color.NRGBA{tt.gray, tt.gray, tt.gray, 255}))
			if na.NoiseLevel != tt.level {
				t.Errorf("Expected %s, got %s (score %f)", tt.level, na.NoiseLevel, na.NoiseScore)
			}
			if math.Abs(na.NoiseScore-float64(tt.gray)/255) > 1e-9 {
				t.Errorf("Expected score %f, got %f", float64(tt.gray)/255, na.NoiseScore)
			}
			if na.Interpretation != noiseInterpretations[tt.level] {
				t.Errorf("Unexpected interpretation %q", na.Interpretation)
			}
		})
	}
}

// mirroredBuffer is left/right symmetric by construction.
func mirroredBuffer(width, height int) *PixelBuffer {
	rng := rand.New(rand.NewPCG(42, 43))
	buf := createTestBuffer(width, height, color.NRGBA{A: 255})
	for y := 0; y < height; y++ {
		for x := 0; 2*x < width; x++ {
			r, g, b := uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256))
			for _, px := range []int{x, width - 1 - x} {
				i := (y*width + px) * 4
				buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2] = r, g, b
			}
		}
	}
	return buf
}

func TestSymmetry_MirroredImage(t *testing.T) {
	buf := mirroredBuffer(101, 57)

	if h := (StridedHorizontal{Stride: 10}).Measure(buf); h != 1.0 {
		t.Errorf("Expected horizontal symmetry 1.0, got %f", h)
	}
	if p := (PerceptualMirror{Axis: MirrorLeftRight}).Measure(buf); p != 1.0 {
		t.Errorf("Expected perceptual symmetry 1.0, got %f", p)
	}

	sa := AnalyzeSymmetry(buf, StridedHorizontal{}, FixedAxis(PlaceholderVerticalSymmetry))
	if sa.SymmetryAIScore != 0.75 {
		t.Errorf("Expected score 0.75, got %f", sa.SymmetryAIScore)
	}
	if sa.Interpretation != "High symmetry detected. Common in AI-generated images." {
		t.Errorf("Unexpected interpretation %q", sa.Interpretation)
	}
}

func TestSymmetry_HalvesDiffer(t *testing.T) {
	// Black left half, white right half
	buf := createTestBuffer(20, 10, color.NRGBA{A: 255})
	for y := 0; y < 10; y++ {
		for x := 10; x < 20; x++ {
			i := (y*20 + x) * 4
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2] = 255, 255, 255
		}
	}

	if h := (StridedHorizontal{}).Measure(buf); h != 0 {
		t.Errorf("Expected horizontal symmetry 0, got %f", h)
	}
	if v := (StridedVertical{}).Measure(buf); v != 1.0 {
		t.Errorf("Expected vertical symmetry 1.0, got %f", v)
	}

	sa := AnalyzeSymmetry(buf, StridedHorizontal{}, FixedAxis(0.5))
	if sa.Interpretation != "Natural symmetry." {
		t.Errorf("Unexpected interpretation %q", sa.Interpretation)
	}
}

func TestWatermarkDetectors(t *testing.T) {
	seeded := NewRandomWatermarkDetector(rand.New(rand.NewPCG(1, 2)))
	for i := 0; i < 100; i++ {
		score, err := seeded.Detect(context.Background(), nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if score < 0 || score >= 0.5 {
			t.Fatalf("Score out of range: %f", score)
		}
	}

	if wa := NewWatermarkAnalysis(0.3); wa.HasWatermark {
		t.Error("Expected 0.3 to be below the watermark threshold")
	}
	if wa := NewWatermarkAnalysis(0.31); !wa.HasWatermark || wa.Interpretation != "Possible watermark detected" {
		t.Errorf("Expected watermark, got %+v", wa)
	}
}

func TestScoreWatermarkText(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"", 0},
		{"a quiet lake at dawn", 0},
		{"© Shutterstock", 0.4},
		{"shutterstok 12345", 0.4},
		{"shutterstock\nalamy", 0.6},
		{"getty images  istock  alamy  freepik", 1.0},
	}
	for _, tt := range tests {
		if got := scoreWatermarkText(tt.text); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("scoreWatermarkText(%q) = %f, want %f", tt.text, got, tt.want)
		}
	}
}

func TestMatchKeyword(t *testing.T) {
	tests := []struct {
		text  string
		want  string
		found bool
	}{
		{"Made with Midjourney v6", "midjourney", true},
		{"Stable Difusion web UI", "stable diffusion", true},
		{"Adobe Photoshop 25.0", "", false},
		{"Canon", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := matchKeyword(tt.text, generatorNames)
		if ok != tt.found || got != tt.want {
			t.Errorf("matchKeyword(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.found)
		}
	}
}
