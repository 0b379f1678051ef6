package analyzer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClassWeights are the per-signal coefficients of one class score. The
// signals are, in order: 1-noise, symmetry, limited palette, watermark,
// significant transparency.
type ClassWeights struct {
	InverseNoise   float64 `yaml:"inverse_noise" json:"inverseNoise"`
	Symmetry       float64 `yaml:"symmetry" json:"symmetry"`
	LimitedPalette float64 `yaml:"limited_palette" json:"limitedPalette"`
	Watermark      float64 `yaml:"watermark" json:"watermark"`
	Transparency   float64 `yaml:"transparency" json:"transparency"`
}

func (w ClassWeights) vector() []float64 {
	return []float64{w.InverseNoise, w.Symmetry, w.LimitedPalette, w.Watermark, w.Transparency}
}

// Weights is the whole scoring policy. The real score is derived from the
// other two and has no weights of its own.
type Weights struct {
	AI      ClassWeights `yaml:"ai" json:"ai"`
	Graphic ClassWeights `yaml:"graphic" json:"graphic"`
}

// DefaultWeights returns the hand-tuned coefficients.
func DefaultWeights() Weights {
	return Weights{
		AI: ClassWeights{
			InverseNoise:   0.3,
			Symmetry:       0.3,
			LimitedPalette: 0.2,
			Watermark:      0.2,
		},
		Graphic: ClassWeights{
			InverseNoise:   0.3,
			LimitedPalette: 0.3,
			Transparency:   0.4,
		},
	}
}

// LoadWeights reads a YAML weights file over the defaults. Any class or
// coefficient the file omits keeps its default value.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights: %w", err)
	}

	w := DefaultWeights()
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, fmt.Errorf("parse weights %s: %w", path, err)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, fmt.Errorf("weights %s: %w", path, err)
	}
	return w, nil
}

// Validate rejects negative coefficients.
func (w Weights) Validate() error {
	for name, cw := range map[string]ClassWeights{"ai": w.AI, "graphic": w.Graphic} {
		for _, v := range cw.vector() {
			if v < 0 {
				return fmt.Errorf("%s weights must be non-negative", name)
			}
		}
	}
	return nil
}
