package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
)

func percent(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}

// WriteCSV writes the two-column summary of result used by the history
// export.
func WriteCSV(w io.Writer, result *analyzer.AnalysisResult) error {
	tc, ok := result.Classification.AsTernary()
	if !ok {
		return fmt.Errorf("csv export requires a local classification")
	}

	rows := [][]string{
		{"Field", "Value"},
		{"Classification", string(tc.Label)},
		{"Confidence", string(tc.Confidence)},
		{"Probability", percent(tc.Probability)},
		{"Real Probability", percent(tc.AllProbabilities.Real)},
		{"AI Probability", percent(tc.AllProbabilities.AIGenerated)},
		{"Design Probability", percent(tc.AllProbabilities.GraphicDesign)},
		{"Unique Colors", strconv.Itoa(result.Color.UniqueColors)},
		{"Color Diversity", strconv.FormatFloat(result.Color.DiversityScore, 'f', 4, 64)},
		{"Noise Level", strconv.FormatFloat(result.Noise.NoiseScore, 'f', 4, 64)},
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
