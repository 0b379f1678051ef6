package analyzer

// ColorAnalysis summarises palette breadth.
type ColorAnalysis struct {
	UniqueColors      int      `json:"uniqueColors"`
	DiversityScore    float64  `json:"diversityScore"`
	HasLimitedPalette bool     `json:"hasLimitedPalette"`
	DominantColors    []string `json:"dominantColors"`
}

// AnalyzeColor counts distinct (r,g,b) triples, ignoring alpha.
func AnalyzeColor(buf *PixelBuffer) ColorAnalysis {
	total := buf.TotalPixels()
	if total == 0 {
		return ColorAnalysis{DominantColors: []string{}}
	}

	hint := total
	if hint > 1<<16 {
		hint = 1 << 16
	}
	seen := make(map[uint32]struct{}, hint)
	pix := buf.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		key := uint32(pix[i])<<16 | uint32(pix[i+1])<<8 | uint32(pix[i+2])
		seen[key] = struct{}{}
	}

	unique := len(seen)
	return ColorAnalysis{
		UniqueColors:      unique,
		DiversityScore:    min(float64(unique)/(float64(total)*0.1), 1),
		HasLimitedPalette: float64(unique) < float64(total)*0.01,
		DominantColors:    []string{},
	}
}
