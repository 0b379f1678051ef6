package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
	apperrors "github.com/anime-shed/pixelcheck-go/internal/errors"
	"github.com/anime-shed/pixelcheck-go/internal/logger"
	"github.com/anime-shed/pixelcheck-go/internal/observer"
	"github.com/anime-shed/pixelcheck-go/internal/repository"
	"github.com/anime-shed/pixelcheck-go/internal/storage"
	"github.com/anime-shed/pixelcheck-go/pkg/models"
	"github.com/anime-shed/pixelcheck-go/pkg/validation"
)

// ImageAnalysisService runs the local engine and keeps the history
type ImageAnalysisService interface {
	// AnalyzeUpload analyzes uploaded bytes and stores the record
	AnalyzeUpload(ctx context.Context, req UploadRequest) (*models.AnalysisResponse, error)

	// AnalyzeURL fetches an image and analyzes it
	AnalyzeURL(ctx context.Context, req models.AnalyzeURLRequest) (*models.AnalysisResponse, error)

	// AnalyzeBatch analyzes every upload on the worker pool. Items fail
	// independently; the order of the response matches reqs.
	AnalyzeBatch(ctx context.Context, reqs []UploadRequest) *models.BatchResponse

	// History
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisResponse, error)
	ListAnalyses(ctx context.Context, filter repository.ListFilter) (*models.AnalysisListResponse, error)
	DeleteAnalysis(ctx context.Context, id string) error

	// ExportCSV writes the CSV summary of a stored analysis. Premium only.
	ExportCSV(ctx context.Context, id, userID string, w io.Writer) error

	// PoolStats reports the batch worker pool counters
	PoolStats() analyzer.PoolStats

	Close() error
}

// UploadRequest is one image submitted by a client
type UploadRequest struct {
	Name        string
	ContentType string
	Data        []byte
	UserID      string
	SessionID   string
}

// Dependencies collects what NewImageAnalysisService needs. Blobs, Events
// and Entitlements may be nil.
type Dependencies struct {
	Analyzer     analyzer.ImageAnalyzer
	Images       repository.ImageRepository
	Records      repository.AnalysisRepository
	Blobs        storage.BlobStore
	Uploads      *validation.UploadValidator
	Entitlements EntitlementChecker
	Events       observer.Subject
	BatchWorkers int
}

type imageAnalysisService struct {
	analyzer     analyzer.ImageAnalyzer
	images       repository.ImageRepository
	records      repository.AnalysisRepository
	blobs        storage.BlobStore
	uploads      *validation.UploadValidator
	entitlements EntitlementChecker
	events       observer.Subject
	pool         *analyzer.WorkerPool
}

// NewImageAnalysisService creates a new image analysis service
func NewImageAnalysisService(deps Dependencies) ImageAnalysisService {
	uploads := deps.Uploads
	if uploads == nil {
		uploads = validation.NewUploadValidator()
	}
	pool := analyzer.NewWorkerPool(deps.BatchWorkers)
	pool.Start()

	return &imageAnalysisService{
		analyzer:     deps.Analyzer,
		images:       deps.Images,
		records:      deps.Records,
		blobs:        deps.Blobs,
		uploads:      uploads,
		entitlements: deps.Entitlements,
		events:       deps.Events,
		pool:         pool,
	}
}

func (s *imageAnalysisService) AnalyzeUpload(ctx context.Context, req UploadRequest) (*models.AnalysisResponse, error) {
	return s.analyze(ctx, req, "", observer.SourceUpload)
}

func (s *imageAnalysisService) AnalyzeURL(ctx context.Context, req models.AnalyzeURLRequest) (*models.AnalysisResponse, error) {
	if err := s.images.ValidateImageURL(req.URL); err != nil {
		return nil, toAppError("invalid image URL", err)
	}

	img, err := s.images.FetchImage(ctx, req.URL)
	if err != nil {
		s.notify(ctx, observer.AnalysisEvent{
			EventType:    observer.ImageFetchFailed,
			Source:       observer.SourceURL,
			ImageURL:     req.URL,
			ErrorMessage: err.Error(),
		})
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("image fetch timeout", err)
		}
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}
	s.notify(ctx, observer.AnalysisEvent{
		EventType: observer.ImageFetched,
		Source:    observer.SourceURL,
		ImageName: img.Name(),
		ImageURL:  req.URL,
		Success:   true,
	})

	return s.analyze(ctx, UploadRequest{
		Name:        img.Name(),
		ContentType: img.ContentType,
		Data:        img.Data,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
	}, req.URL, observer.SourceURL)
}

func (s *imageAnalysisService) AnalyzeBatch(ctx context.Context, reqs []UploadRequest) *models.BatchResponse {
	items := make([]models.BatchItem, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		items[i].ImageName = req.Name

		wg.Add(1)
		submitted := s.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				items[i].Error = models.NewErrorResponse(apperrors.NewTimeoutError("batch cancelled", err))
				return
			}
			resp, err := s.analyze(ctx, req, "", observer.SourceBatch)
			if err != nil {
				items[i].Error = models.NewErrorResponse(err)
				return
			}
			items[i].Analysis = resp
		})
		if !submitted {
			wg.Done()
			items[i].Error = models.NewErrorResponse(apperrors.NewInternalError("service is shutting down", nil))
		}
	}
	wg.Wait()

	out := &models.BatchResponse{Items: items}
	for _, item := range items {
		if item.Error != nil {
			out.Failed++
		} else {
			out.Succeeded++
		}
	}
	return out
}

// analyze runs the pipeline shared by every entry point: validate, analyze,
// store the blob, persist the record.
func (s *imageAnalysisService) analyze(ctx context.Context, req UploadRequest, sourceURL string, source observer.Source) (*models.AnalysisResponse, error) {
	if req.Name == "" {
		req.Name = "image"
	}

	start := time.Now()
	s.notify(ctx, observer.AnalysisEvent{
		EventType: observer.AnalysisStarted,
		Source:    source,
		ImageName: req.Name,
		ImageURL:  sourceURL,
	})

	rec, err := s.run(ctx, req, sourceURL)
	elapsed := time.Since(start)
	if err != nil {
		err = toAppError("image analysis failed", err)
		s.notify(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			Source:         source,
			ImageName:      req.Name,
			ImageURL:       sourceURL,
			ProcessingTime: elapsed,
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	s.notify(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Source:         source,
		ImageName:      req.Name,
		ImageURL:       sourceURL,
		Classification: string(rec.Result.Classification.Label()),
		ProcessingTime: elapsed,
		Success:        true,
	})
	return toResponse(rec), nil
}

func (s *imageAnalysisService) run(ctx context.Context, req UploadRequest, sourceURL string) (*repository.AnalysisRecord, error) {
	contentType, err := s.uploads.ValidateUpload(req.Name, req.ContentType, req.Data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.analyzer.Analyze(ctx, req.Data, contentType)
	if err != nil {
		return nil, err
	}
	processed := time.Since(start)

	rec := &repository.AnalysisRecord{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		ImageURL:    sourceURL,
		ImageName:   req.Name,
		ImageSize:   int64(len(req.Data)),
		Result:      *result,
		ProcessedIn: processed,
	}

	if s.blobs != nil {
		key := storage.ObjectKey(req.UserID, rec.ID, req.Name)
		url, err := s.blobs.Put(ctx, key, req.Data, contentType)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to store image", err)
		}
		rec.ImageKey = key
		if rec.ImageURL == "" {
			rec.ImageURL = url
		}
	}

	if err := s.records.Save(ctx, rec); err != nil {
		return nil, apperrors.NewInternalError("failed to save analysis", err)
	}

	logger.WithFields(logrus.Fields{
		"analysis_id":        rec.ID,
		"image_name":         rec.ImageName,
		"classification":     rec.Result.Classification.Label(),
		"processing_time_ms": processed.Milliseconds(),
	}).Info("Image analysis stored")
	return rec, nil
}

func (s *imageAnalysisService) GetAnalysis(ctx context.Context, id string) (*models.AnalysisResponse, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, toAppError("failed to load analysis", err)
	}
	return toResponse(rec), nil
}

func (s *imageAnalysisService) ListAnalyses(ctx context.Context, filter repository.ListFilter) (*models.AnalysisListResponse, error) {
	recs, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, toAppError("failed to list analyses", err)
	}
	out := &models.AnalysisListResponse{Items: make([]models.AnalysisResponse, 0, len(recs))}
	for _, rec := range recs {
		out.Items = append(out.Items, *toResponse(rec))
	}
	out.Count = len(out.Items)
	return out, nil
}

func (s *imageAnalysisService) DeleteAnalysis(ctx context.Context, id string) error {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return toAppError("failed to load analysis", err)
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return toAppError("failed to delete analysis", err)
	}

	if s.blobs != nil && rec.ImageKey != "" {
		if err := s.blobs.Delete(ctx, rec.ImageKey); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			// The record is gone; an orphaned blob is only logged
			logger.WithError(err).WithField("image_key", rec.ImageKey).Warn("Failed to delete stored image")
		}
	}
	return nil
}

func (s *imageAnalysisService) ExportCSV(ctx context.Context, id, userID string, w io.Writer) error {
	if err := requirePremium(ctx, s.entitlements, userID); err != nil {
		return toAppError("csv export denied", err)
	}

	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return toAppError("failed to load analysis", err)
	}
	if rec.UserID != "" && rec.UserID != userID {
		return apperrors.NewForbiddenError("analysis belongs to another user", nil)
	}

	if err := WriteCSV(w, &rec.Result); err != nil {
		return toAppError("failed to export analysis", err)
	}
	return nil
}

func (s *imageAnalysisService) PoolStats() analyzer.PoolStats {
	return s.pool.GetStats()
}

// Close waits for running batch jobs and stops the worker pool.
func (s *imageAnalysisService) Close() error {
	s.pool.Close()
	return nil
}

func (s *imageAnalysisService) notify(ctx context.Context, event observer.AnalysisEvent) {
	if s.events != nil {
		s.events.NotifyObservers(ctx, event)
	}
}

func toResponse(rec *repository.AnalysisRecord) *models.AnalysisResponse {
	return &models.AnalysisResponse{
		ID:               rec.ID,
		UserID:           rec.UserID,
		SessionID:        rec.SessionID,
		ImageName:        rec.ImageName,
		ImageURL:         rec.ImageURL,
		ImageSize:        rec.ImageSize,
		ProcessingTimeMs: rec.ProcessedIn.Milliseconds(),
		CreatedAt:        rec.CreatedAt,
		Result:           rec.Result,
	}
}
