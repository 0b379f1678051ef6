package analyzer

// significantTransparency is the ratio above which transparency counts as a graphic signal.
const significantTransparency = 0.1

// TransparencyAnalysis reports how much of the image is not fully opaque.
type TransparencyAnalysis struct {
	TransparencyRatio          float64 `json:"transparencyRatio"`
	HasSignificantTransparency bool    `json:"hasSignificantTransparency"`
	TransparentPixels          int     `json:"transparentPixels"`
	TotalPixels                int     `json:"totalPixels"`
}

// AnalyzeTransparency counts pixels whose alpha is below 255.
func AnalyzeTransparency(buf *PixelBuffer) TransparencyAnalysis {
	total := buf.TotalPixels()
	if total == 0 {
		return TransparencyAnalysis{}
	}

	transparent := 0
	pix := buf.Pix
	for i := 3; i < len(pix); i += 4 {
		if pix[i] < 255 {
			transparent++
		}
	}

	ratio := float64(transparent) / float64(total)
	return TransparencyAnalysis{
		TransparencyRatio:          ratio,
		HasSignificantTransparency: ratio > significantTransparency,
		TransparentPixels:          transparent,
		TotalPixels:                total,
	}
}
