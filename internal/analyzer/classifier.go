package analyzer

import (
	"gonum.org/v1/gonum/floats"
)

// Decision thresholds.
const (
	realProbabilityFloor  = 0.4
	highConfidenceAbove   = 0.7
	mediumConfidenceAbove = 0.5
)

// FeatureVector is [colorDiversity, transparencyRatio, noiseScore,
// symmetryAiScore, watermarkScore, hasLimitedPalette].
type FeatureVector [6]float64

// Classifier turns extractor outputs into a ternary classification.
type Classifier struct {
	weights Weights
}

// NewClassifier builds a classifier with the given policy.
func NewClassifier(w Weights) *Classifier {
	return &Classifier{weights: w}
}

// Weights returns the policy in use.
func (c *Classifier) Weights() Weights {
	return c.weights
}

// Classify scores the five extractor outputs. It never fails.
func (c *Classifier) Classify(
	color ColorAnalysis,
	transparency TransparencyAnalysis,
	noise NoiseAnalysis,
	watermark WatermarkAnalysis,
	symmetry SymmetryAnalysis,
) Classification {
	limited := boolToFloat(color.HasLimitedPalette)
	features := FeatureVector{
		color.DiversityScore,
		transparency.TransparencyRatio,
		noise.NoiseScore,
		symmetry.SymmetryAIScore,
		watermark.WatermarkScore,
		limited,
	}

	signals := []float64{
		1 - noise.NoiseScore,
		symmetry.SymmetryAIScore,
		limited,
		watermark.WatermarkScore,
		boolToFloat(transparency.HasSignificantTransparency),
	}

	aiScore := floats.Dot(c.weights.AI.vector(), signals)
	graphicScore := floats.Dot(c.weights.Graphic.vector(), signals)
	return ClassifyScores(aiScore, graphicScore, features)
}

// ClassifyScores normalises raw class scores and applies the decision order:
// strict AI maximum, strict graphic maximum, real above the floor, otherwise
// uncertain.
func ClassifyScores(aiScore, graphicScore float64, features FeatureVector) Classification {
	realScore := 1 - max(aiScore, graphicScore)

	total := aiScore + graphicScore + realScore
	var probAI, probGraphic, probReal float64
	if total > 0 {
		probAI = aiScore / total
		probGraphic = graphicScore / total
		probReal = realScore / total
	} else {
		probAI, probGraphic, probReal = 1.0/3, 1.0/3, 1.0/3
	}

	var label Label
	var probability float64
	switch {
	case probAI > probGraphic && probAI > probReal:
		label, probability = LabelAIGenerated, probAI
	case probGraphic > probAI && probGraphic > probReal:
		label, probability = LabelGraphicDesign, probGraphic
	case probReal > realProbabilityFloor:
		label, probability = LabelReal, probReal
	default:
		label, probability = LabelUncertain, max(probAI, probGraphic, probReal)
	}

	return NewTernaryClassification(TernaryClassification{
		Label:       label,
		Confidence:  ConfidenceFor(probability),
		Probability: probability,
		AllProbabilities: Probabilities{
			Real:          probReal,
			AIGenerated:   probAI,
			GraphicDesign: probGraphic,
		},
		Features: features,
	})
}

// ConfidenceFor maps the winning probability to a tier. Both bounds are strict.
func ConfidenceFor(p float64) Confidence {
	switch {
	case p > highConfidenceAbove:
		return ConfidenceHigh
	case p > mediumConfidenceAbove:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
