//go:build ocr

package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// OCRWatermarkDetector reads text off the image with Tesseract and scores it
// against known watermark keywords.
type OCRWatermarkDetector struct {
	Language string
}

// NewOCRWatermarkDetector returns an English-language OCR detector.
func NewOCRWatermarkDetector() (WatermarkDetector, error) {
	return &OCRWatermarkDetector{Language: "eng"}, nil
}

func (d *OCRWatermarkDetector) Detect(ctx context.Context, buf *PixelBuffer) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, buf.Image()); err != nil {
		return 0, fmt.Errorf("encode for ocr: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(d.Language); err != nil {
		return 0, fmt.Errorf("ocr language: %w", err)
	}
	if err := client.SetImageFromBytes(encoded.Bytes()); err != nil {
		return 0, fmt.Errorf("ocr image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return 0, fmt.Errorf("ocr text: %w", err)
	}

	return scoreWatermarkText(text), nil
}

func (d *OCRWatermarkDetector) Name() string {
	return "ocr"
}
