package analyzer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/anime-shed/pixelcheck-go/internal/logger"
)

// Engine implements ImageAnalyzer and orchestrates all extractors.
type Engine struct {
	opts       AnalysisOptions
	classifier *Classifier
}

// NewEngine creates an engine. Zero-valued option fields fall back to the
// defaults.
func NewEngine(opts AnalysisOptions) *Engine {
	opts = opts.normalized()
	return &Engine{
		opts:       opts,
		classifier: NewClassifier(opts.Weights),
	}
}

// NewImageAnalyzer creates an engine with the default options.
func NewImageAnalyzer() (ImageAnalyzer, error) {
	return NewEngine(DefaultOptions()), nil
}

// Options returns the effective configuration.
func (e *Engine) Options() AnalysisOptions {
	return e.opts
}

// Analyze decodes data and runs every extractor on the result.
func (e *Engine) Analyze(ctx context.Context, data []byte, contentType string) (*AnalysisResult, error) {
	buf, format, err := decode(ctx, data, contentType, e.opts.MaxPixels)
	if err != nil {
		return nil, err
	}

	result, err := e.AnalyzeBuffer(ctx, buf)
	if err != nil {
		return nil, err
	}
	if !e.opts.SkipMetadata {
		md := AnalyzeMetadata(data, contentType, format, buf.Width, buf.Height)
		result.Metadata = &md
	}
	return result, nil
}

// AnalyzeBuffer runs the extractors and the classifier on buf.
func (e *Engine) AnalyzeBuffer(ctx context.Context, buf *PixelBuffer) (*AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		ImageWidth:  buf.Width,
		ImageHeight: buf.Height,
	}

	if e.opts.Parallel {
		if err := e.extractParallel(ctx, buf, result); err != nil {
			return nil, err
		}
	} else {
		result.Color = AnalyzeColor(buf)
		result.Transparency = AnalyzeTransparency(buf)
		result.Noise = AnalyzeNoise(buf)
		result.Watermark = e.detectWatermark(ctx, buf)
		result.Symmetry = AnalyzeSymmetry(buf, e.opts.Horizontal, e.opts.Vertical)
	}

	result.Classification = e.classifier.Classify(
		result.Color,
		result.Transparency,
		result.Noise,
		result.Watermark,
		result.Symmetry,
	)
	return result, nil
}

// extractParallel fans the extractors out. Each goroutine owns one field.
func (e *Engine) extractParallel(ctx context.Context, buf *PixelBuffer, out *AnalysisResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Color = AnalyzeColor(buf)
		return nil
	})
	g.Go(func() error {
		out.Transparency = AnalyzeTransparency(buf)
		return nil
	})
	g.Go(func() error {
		out.Noise = AnalyzeNoise(buf)
		return nil
	})
	g.Go(func() error {
		out.Watermark = e.detectWatermark(gctx, buf)
		return nil
	})
	g.Go(func() error {
		out.Symmetry = AnalyzeSymmetry(buf, e.opts.Horizontal, e.opts.Vertical)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// detectWatermark degrades to a zero score when the detector fails.
func (e *Engine) detectWatermark(ctx context.Context, buf *PixelBuffer) WatermarkAnalysis {
	score, err := e.opts.Watermark.Detect(ctx, buf)
	if err != nil {
		logger.WithError(err).WithField("detector", e.opts.Watermark.Name()).
			Warn("Watermark detection failed, scoring as absent")
		score = 0
	}
	return NewWatermarkAnalysis(score)
}

// Close releases engine resources. The engine currently holds none.
func (e *Engine) Close() error {
	return nil
}
