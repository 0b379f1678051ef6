package factory

import (
	"context"
	"fmt"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
	"github.com/anime-shed/pixelcheck-go/internal/config"
	"github.com/anime-shed/pixelcheck-go/internal/storage"
)

// AnalyzerFactory creates image analyzers
type AnalyzerFactory interface {
	CreateAnalyzer() (*analyzer.Engine, error)
	CreateWatermarkDetector(kind string) (analyzer.WatermarkDetector, error)
	CreateVerticalMeasure(kind string) (analyzer.AxisMeasure, error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateBlobStore(ctx context.Context) (storage.BlobStore, error)
	CreateImageFetcher() storage.ImageFetcher
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct {
	cfg *config.Config
}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory(cfg *config.Config) AnalyzerFactory {
	return &analyzerFactory{cfg: cfg}
}

// CreateAnalyzer creates an engine configured from the environment
func (f *analyzerFactory) CreateAnalyzer() (*analyzer.Engine, error) {
	detector, err := f.CreateWatermarkDetector(f.cfg.WatermarkDetector)
	if err != nil {
		return nil, err
	}

	vertical, err := f.CreateVerticalMeasure(f.cfg.SymmetryVertical)
	if err != nil {
		return nil, err
	}

	weights := analyzer.DefaultWeights()
	if f.cfg.ClassifierWeightsFile != "" {
		if weights, err = analyzer.LoadWeights(f.cfg.ClassifierWeightsFile); err != nil {
			return nil, fmt.Errorf("failed to load classifier weights: %w", err)
		}
	}

	opts := analyzer.DefaultOptions().
		WithParallel(f.cfg.ParallelExtractors).
		WithMaxPixels(f.cfg.MaxImagePixels).
		WithWeights(weights).
		WithSymmetry(nil, vertical).
		WithWatermark(detector)
	return analyzer.NewEngine(opts), nil
}

// CreateWatermarkDetector creates the detector named by kind
func (f *analyzerFactory) CreateWatermarkDetector(kind string) (analyzer.WatermarkDetector, error) {
	switch kind {
	case config.WatermarkRandom, "":
		return analyzer.NewRandomWatermarkDetector(nil), nil
	case config.WatermarkOCR:
		return analyzer.NewOCRWatermarkDetector()
	case config.WatermarkNone:
		return analyzer.FixedWatermarkDetector(0), nil
	default:
		return nil, fmt.Errorf("unsupported watermark detector: %s", kind)
	}
}

// CreateVerticalMeasure creates the vertical symmetry measure named by kind
func (f *analyzerFactory) CreateVerticalMeasure(kind string) (analyzer.AxisMeasure, error) {
	switch kind {
	case config.SymmetryFixed, "":
		return analyzer.FixedAxis(analyzer.PlaceholderVerticalSymmetry), nil
	case config.SymmetryStrided:
		return analyzer.StridedVertical{}, nil
	case config.SymmetryPerceptual:
		return analyzer.PerceptualMirror{Axis: analyzer.MirrorTopBottom}, nil
	default:
		return nil, fmt.Errorf("unsupported vertical symmetry measure: %s", kind)
	}
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateBlobStore creates the blob store selected by STORAGE_BACKEND
func (f *storageFactory) CreateBlobStore(ctx context.Context) (storage.BlobStore, error) {
	switch f.cfg.StorageBackend {
	case config.StorageLocal, "":
		return storage.NewLocalStorage(f.cfg.StorageDir)
	case config.StorageAzure:
		return storage.NewAzureStorage(ctx, f.cfg.AzureStorageAccount, f.cfg.AzureStorageKey, f.cfg.AzureStorageContainer)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", f.cfg.StorageBackend)
	}
}

// CreateImageFetcher creates the HTTP fetcher used for analyze-by-URL
func (f *storageFactory) CreateImageFetcher() storage.ImageFetcher {
	return storage.NewHTTPImageFetcher(
		storage.WithTimeout(f.cfg.ImageFetchTimeout),
		storage.WithMaxBytes(f.cfg.MaxRequestBodySize),
	)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(cfg),
		StorageFactory:  NewStorageFactory(cfg),
	}
}
