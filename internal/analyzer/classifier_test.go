package analyzer

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassifyScores_DecisionTable(t *testing.T) {
	tests := []struct {
		name        string
		ai, graphic float64
		label       Label
		probability float64
		confidence  Confidence
	}{
		{"ai strict maximum", 0.8, 0.1, LabelAIGenerated, 0.8 / 1.1, ConfidenceHigh},
		{"graphic strict maximum", 0.1, 0.8, LabelGraphicDesign, 0.8 / 1.1, ConfidenceHigh},
		{"real above floor", 0.1, 0.1, LabelReal, 0.9 / 1.1, ConfidenceHigh},
		{"ai ties real", 0.5, 0, LabelReal, 0.5, ConfidenceLow},
		{"ai ties graphic", 0.5, 0.5, LabelUncertain, 1.0 / 3, ConfidenceLow},
		{"zero total", -1, -1, LabelUncertain, 1.0 / 3, ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyScores(tt.ai, tt.graphic, FeatureVector{})
			tc, ok := c.AsTernary()
			if !ok {
				t.Fatal("Expected ternary classification")
			}
			if tc.Label != tt.label {
				t.Errorf("Expected %s, got %s", tt.label, tc.Label)
			}
			if math.Abs(tc.Probability-tt.probability) > 1e-9 {
				t.Errorf("Expected probability %f, got %f", tt.probability, tc.Probability)
			}
			if tc.Confidence != tt.confidence {
				t.Errorf("Expected %s confidence, got %s", tt.confidence, tc.Confidence)
			}
			if sum := tc.AllProbabilities.Sum(); math.Abs(sum-1) > 1e-9 {
				t.Errorf("Probabilities sum to %f", sum)
			}
		})
	}
}

func TestConfidenceFor_Boundaries(t *testing.T) {
	tests := []struct {
		p    float64
		want Confidence
	}{
		{0.7, ConfidenceMedium},
		{0.70001, ConfidenceHigh},
		{0.5, ConfidenceLow},
		{0.50001, ConfidenceMedium},
		{0, ConfidenceLow},
		{1, ConfidenceHigh},
	}
	for _, tt := range tests {
		if got := ConfidenceFor(tt.p); got != tt.want {
			t.Errorf("ConfidenceFor(%v) = %s, want %s", tt.p, got, tt.want)
		}
	}
}

func TestClassifier_Weights(t *testing.T) {
	color := ColorAnalysis{DiversityScore: 0.01, HasLimitedPalette: true}
	transparency := TransparencyAnalysis{}
	noise := NoiseAnalysis{NoiseScore: 0.05}
	watermark := NewWatermarkAnalysis(0.4)
	symmetry := SymmetryAnalysis{SymmetryAIScore: 0.9}

	c := NewClassifier(DefaultWeights()).Classify(color, transparency, noise, watermark, symmetry)
	tc, _ := c.AsTernary()

	ai := 0.3*0.95 + 0.3*0.9 + 0.2 + 0.2*0.4
	graphic := 0.3 + 0.3*0.95
	real := 1 - max(ai, graphic)
	if want := ai / (ai + graphic + real); math.Abs(tc.AllProbabilities.AIGenerated-want) > 1e-9 {
		t.Errorf("Expected probAI %f, got %f", want, tc.AllProbabilities.AIGenerated)
	}
	if tc.Label != LabelAIGenerated {
		t.Errorf("Expected ai-generated, got %s", tc.Label)
	}
	want := FeatureVector{0.01, 0, 0.05, 0.9, 0.4, 1}
	if tc.Features != want {
		t.Errorf("Expected features %v, got %v", want, tc.Features)
	}

	// Silencing every AI signal leaves only graphic and real.
	w := DefaultWeights()
	w.AI = ClassWeights{}
	c = NewClassifier(w).Classify(color, transparency, noise, watermark, symmetry)
	if c.Label() != LabelGraphicDesign {
		t.Errorf("Expected graphic-design with zero AI weights, got %s", c.Label())
	}
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	content := "ai:\n  inverse_noise: 0.5\n  watermark: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := LoadWeights(path)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	want := DefaultWeights().AI
	want.InverseNoise = 0.5
	want.Watermark = 0
	if w.AI != want {
		t.Errorf("AI weights = %+v, want %+v", w.AI, want)
	}
	if w.Graphic != DefaultWeights().Graphic {
		t.Errorf("Expected default graphic weights, got %+v", w.Graphic)
	}
}

func TestLoadWeights_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadWeights(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	negative := filepath.Join(dir, "negative.yaml")
	if err := os.WriteFile(negative, []byte("graphic:\n  transparency: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(negative); err == nil || !strings.Contains(err.Error(), "non-negative") {
		t.Errorf("Expected non-negative error, got %v", err)
	}

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("ai: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(broken); err == nil {
		t.Error("Expected parse error")
	}
}

func TestClassifyBinary(t *testing.T) {
	tests := []struct {
		probAI     float64
		label      Label
		score      float64
		confidence Confidence
	}{
		{0.85, LabelAI, 0.85, ConfidenceHigh},
		{0.5, LabelAI, 0.5, ConfidenceLow},
		{0.3, LabelReal, 0.7, ConfidenceMedium},
		{0.2, LabelReal, 0.8, ConfidenceHigh},
	}
	for _, tt := range tests {
		c := ClassifyBinary(tt.probAI, 0.5, "v2")
		b, ok := c.AsBinary()
		if !ok {
			t.Fatalf("probAI=%v: expected binary classification", tt.probAI)
		}
		if _, isTernary := c.AsTernary(); isTernary {
			t.Errorf("probAI=%v: binary result must not be ternary", tt.probAI)
		}
		if b.Label != tt.label || math.Abs(b.Score-tt.score) > 1e-9 || b.Confidence != tt.confidence {
			t.Errorf("probAI=%v: got %s %.2f %s", tt.probAI, b.Label, b.Score, b.Confidence)
		}
		if c.Kind() != KindBinary || b.ModelVersion != "v2" {
			t.Errorf("probAI=%v: unexpected kind %s / version %s", tt.probAI, c.Kind(), b.ModelVersion)
		}
	}
}

func TestClassification_JSON(t *testing.T) {
	c := ClassifyScores(0.8, 0.1, FeatureVector{1, 0, 0, 0, 0, 0})
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"ternary"`) || !strings.Contains(string(data), `"classification":"ai-generated"`) {
		t.Errorf("Unexpected JSON: %s", data)
	}

	var back Classification
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Label() != LabelAIGenerated || back.Probability() != c.Probability() {
		t.Errorf("Round trip lost data: %+v", back)
	}

	// Records without a discriminator are read as ternary.
	if err := json.Unmarshal([]byte(`{"classification":"real","confidence":"low","probability":0.45}`), &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Kind() != KindTernary || back.ConfidenceTier() != ConfidenceLow {
		t.Errorf("Expected legacy ternary record, got %+v", back)
	}

	if err := json.Unmarshal([]byte(`{"kind":"quaternary"}`), &back); err == nil {
		t.Error("Expected error for unknown kind")
	}
}
