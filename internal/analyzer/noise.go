package analyzer

import "math"

// NoiseLevel buckets the noise score.
type NoiseLevel string

const (
	NoiseLow    NoiseLevel = "low"
	NoiseMedium NoiseLevel = "medium"
	NoiseHigh   NoiseLevel = "high"
)

var noiseInterpretations = map[NoiseLevel]string{
	NoiseLow:    "Low noise level. Typical of AI-generated or heavily processed images.",
	NoiseMedium: "Medium noise level. Could be a real photograph or an AI image with post-processing.",
	NoiseHigh:   "High noise level. Characteristic of real photographs.",
}

// NoiseAnalysis holds the luminance-based noise estimate.
type NoiseAnalysis struct {
	NoiseScore     float64    `json:"noiseScore"`
	NoiseLevel     NoiseLevel `json:"noiseLevel"`
	Interpretation string     `json:"interpretation"`
}

// AnalyzeNoise computes the RMS luminance of the buffer scaled to [0,1].
//
// The score is an RMS-luminance proxy, not a true noise estimator. The
// classifier weights depend on it, so it must stay as is.
func AnalyzeNoise(buf *PixelBuffer) NoiseAnalysis {
	score := rmsLuminance(buf)
	level := noiseLevelFor(score)
	return NoiseAnalysis{
		NoiseScore:     score,
		NoiseLevel:     level,
		Interpretation: noiseInterpretations[level],
	}
}

func rmsLuminance(buf *PixelBuffer) float64 {
	total := buf.TotalPixels()
	if total == 0 {
		return 0
	}

	var sumSq float64
	pix := buf.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		l := 0.299*float64(pix[i]) + 0.587*float64(pix[i+1]) + 0.114*float64(pix[i+2])
		sumSq += l * l
	}
	return math.Sqrt(sumSq/float64(total)) / 255
}

func noiseLevelFor(score float64) NoiseLevel {
	switch {
	case score < 0.1:
		return NoiseLow
	case score < 0.3:
		return NoiseMedium
	default:
		return NoiseHigh
	}
}
