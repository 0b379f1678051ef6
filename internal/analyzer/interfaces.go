package analyzer

import "context"

// ImageAnalyzer defines the main interface for image analysis
type ImageAnalyzer interface {
	// Analyze decodes raw bytes and runs the full pipeline
	Analyze(ctx context.Context, data []byte, contentType string) (*AnalysisResult, error)

	// AnalyzeBuffer runs the pipeline on an already decoded buffer
	AnalyzeBuffer(ctx context.Context, buf *PixelBuffer) (*AnalysisResult, error)

	// Lifecycle management
	Close() error
}

// Compile-time check
var _ ImageAnalyzer = (*Engine)(nil)
