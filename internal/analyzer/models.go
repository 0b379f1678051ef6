package analyzer

import (
	"encoding/json"
	"fmt"
)

// Label is the winning class of a classification.
type Label string

const (
	LabelReal          Label = "real"
	LabelAIGenerated   Label = "ai-generated"
	LabelGraphicDesign Label = "graphic-design"
	LabelUncertain     Label = "uncertain"

	// Binary labels reported by remote models
	LabelAI Label = "ai"
)

// Confidence is a coarse tier derived from a probability.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Kind discriminates the two Classification shapes.
type Kind string

const (
	KindTernary Kind = "ternary"
	KindBinary  Kind = "binary"
)

// Probabilities is the normalised ternary distribution.
type Probabilities struct {
	Real          float64 `json:"real"`
	AIGenerated   float64 `json:"aiGenerated"`
	GraphicDesign float64 `json:"graphicDesign"`
}

// Sum returns Real+AIGenerated+GraphicDesign.
func (p Probabilities) Sum() float64 {
	return p.Real + p.AIGenerated + p.GraphicDesign
}

// TernaryClassification is produced by the local heuristic classifier.
type TernaryClassification struct {
	Label            Label         `json:"classification"`
	Confidence       Confidence    `json:"confidence"`
	Probability      float64       `json:"probability"`
	AllProbabilities Probabilities `json:"allProbabilities"`
	Features         FeatureVector `json:"features"`
}

// BinaryClassification is produced by a remote real/ai model.
type BinaryClassification struct {
	Label        Label      `json:"label"`
	Score        float64    `json:"score"`
	Confidence   Confidence `json:"confidence"`
	Threshold    float64    `json:"threshold"`
	ProbAI       float64    `json:"probAi"`
	ProbReal     float64    `json:"probReal"`
	ModelVersion string     `json:"modelVersion,omitempty"`
}

// Classification holds exactly one of the two shapes, selected by Kind.
type Classification struct {
	kind    Kind
	ternary *TernaryClassification
	binary  *BinaryClassification
}

// NewTernaryClassification wraps a ternary result.
func NewTernaryClassification(t TernaryClassification) Classification {
	return Classification{kind: KindTernary, ternary: &t}
}

// NewBinaryClassification wraps a binary result.
func NewBinaryClassification(b BinaryClassification) Classification {
	return Classification{kind: KindBinary, binary: &b}
}

// Binary confidence tiers are inclusive.
const (
	binaryHighConfidence   = 0.8
	binaryMediumConfidence = 0.6
)

// ClassifyBinary labels probAI against threshold. Score is the
// probability of the chosen label.
func ClassifyBinary(probAI, threshold float64, modelVersion string) Classification {
	probReal := 1 - probAI
	label, score := LabelReal, probReal
	if probAI >= threshold {
		label, score = LabelAI, probAI
	}
	return NewBinaryClassification(BinaryClassification{
		Label:        label,
		Score:        score,
		Confidence:   binaryConfidenceFor(score),
		Threshold:    threshold,
		ProbAI:       probAI,
		ProbReal:     probReal,
		ModelVersion: modelVersion,
	})
}

func binaryConfidenceFor(score float64) Confidence {
	switch {
	case score >= binaryHighConfidence:
		return ConfidenceHigh
	case score >= binaryMediumConfidence:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Kind reports which shape is held. The zero value has an empty kind.
func (c Classification) Kind() Kind {
	return c.kind
}

// AsTernary returns the ternary shape if held.
func (c Classification) AsTernary() (TernaryClassification, bool) {
	if c.ternary == nil {
		return TernaryClassification{}, false
	}
	return *c.ternary, true
}

// AsBinary returns the binary shape if held.
func (c Classification) AsBinary() (BinaryClassification, bool) {
	if c.binary == nil {
		return BinaryClassification{}, false
	}
	return *c.binary, true
}

func (c Classification) Label() Label {
	switch c.kind {
	case KindTernary:
		return c.ternary.Label
	case KindBinary:
		return c.binary.Label
	}
	return ""
}

// Probability is the winning probability for ternary results and the
// label score for binary ones.
func (c Classification) Probability() float64 {
	switch c.kind {
	case KindTernary:
		return c.ternary.Probability
	case KindBinary:
		return c.binary.Score
	}
	return 0
}

func (c Classification) ConfidenceTier() Confidence {
	switch c.kind {
	case KindTernary:
		return c.ternary.Confidence
	case KindBinary:
		return c.binary.Confidence
	}
	return ""
}

// MarshalJSON flattens the held shape and adds a "kind" discriminator.
func (c Classification) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindTernary:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			TernaryClassification
		}{c.kind, *c.ternary})
	case KindBinary:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			BinaryClassification
		}{c.kind, *c.binary})
	}
	return []byte("null"), nil
}

// UnmarshalJSON reads the shape named by "kind". Records written before the
// discriminator existed are ternary.
func (c *Classification) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Classification{}
		return nil
	}
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Kind {
	case KindTernary, "":
		var t TernaryClassification
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*c = NewTernaryClassification(t)
	case KindBinary:
		var b BinaryClassification
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*c = NewBinaryClassification(b)
	default:
		return fmt.Errorf("unknown classification kind %q", head.Kind)
	}
	return nil
}

// AnalysisResult is the assembled output of one analysis. It does not carry
// timing so that repeated analyses of the same input compare equal.
type AnalysisResult struct {
	ImageWidth   int                  `json:"imageWidth"`
	ImageHeight  int                  `json:"imageHeight"`
	Color        ColorAnalysis        `json:"colorAnalysis"`
	Transparency TransparencyAnalysis `json:"transparencyAnalysis"`
	Noise        NoiseAnalysis        `json:"noiseAnalysis"`
	Watermark    WatermarkAnalysis    `json:"watermarkAnalysis"`
	Symmetry     SymmetryAnalysis     `json:"symmetryAnalysis"`
	Metadata     *MetadataAnalysis    `json:"metadataAnalysis,omitempty"`
	// Classification is always ternary for locally produced results.
	Classification Classification `json:"mlClassification"`
}
