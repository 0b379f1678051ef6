//go:build !ocr

package analyzer

// NewOCRWatermarkDetector reports ErrOCRUnavailable in builds without the ocr tag.
func NewOCRWatermarkDetector() (WatermarkDetector, error) {
	return nil, ErrOCRUnavailable
}
