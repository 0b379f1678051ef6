package analyzer

// AnalysisOptions configures an Engine.
type AnalysisOptions struct {
	// Run the five pixel extractors concurrently
	Parallel bool

	// Upper bound on decoded surface size, 0 for no limit
	MaxPixels int

	// Classifier policy
	Weights Weights

	// Symmetry axes
	Horizontal AxisMeasure
	Vertical   AxisMeasure

	// Watermark scoring backend
	Watermark WatermarkDetector

	// Skip the metadata extractor
	SkipMetadata bool
}

// DefaultOptions returns the reference configuration: sequential extractors,
// strided horizontal symmetry, fixed vertical symmetry and the random
// watermark placeholder.
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		Parallel:   false,
		MaxPixels:  DefaultMaxPixels,
		Weights:    DefaultWeights(),
		Horizontal: StridedHorizontal{Stride: symmetrySampleStride},
		Vertical:   FixedAxis(PlaceholderVerticalSymmetry),
		Watermark:  NewRandomWatermarkDetector(nil),
	}
}

// DeterministicOptions replaces the random watermark placeholder with a
// constant score so repeated runs agree.
func DeterministicOptions(watermarkScore float64) AnalysisOptions {
	return DefaultOptions().WithWatermark(FixedWatermarkDetector(watermarkScore))
}

// WithParallel toggles concurrent extraction
func (opts AnalysisOptions) WithParallel(parallel bool) AnalysisOptions {
	opts.Parallel = parallel
	return opts
}

// WithWeights replaces the classifier policy
func (opts AnalysisOptions) WithWeights(w Weights) AnalysisOptions {
	opts.Weights = w
	return opts
}

// WithSymmetry replaces both axis measures. A nil axis keeps the current one.
func (opts AnalysisOptions) WithSymmetry(horizontal, vertical AxisMeasure) AnalysisOptions {
	if horizontal != nil {
		opts.Horizontal = horizontal
	}
	if vertical != nil {
		opts.Vertical = vertical
	}
	return opts
}

// WithWatermark replaces the watermark detector
func (opts AnalysisOptions) WithWatermark(d WatermarkDetector) AnalysisOptions {
	opts.Watermark = d
	return opts
}

// WithMaxPixels caps the decode surface
func (opts AnalysisOptions) WithMaxPixels(n int) AnalysisOptions {
	opts.MaxPixels = n
	return opts
}

// WithoutMetadata disables the metadata extractor
func (opts AnalysisOptions) WithoutMetadata() AnalysisOptions {
	opts.SkipMetadata = true
	return opts
}

// normalized fills unset fields with their defaults.
func (opts AnalysisOptions) normalized() AnalysisOptions {
	def := DefaultOptions()
	if opts.Horizontal == nil {
		opts.Horizontal = def.Horizontal
	}
	if opts.Vertical == nil {
		opts.Vertical = def.Vertical
	}
	if opts.Watermark == nil {
		opts.Watermark = def.Watermark
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = def.Weights
	}
	return opts
}
