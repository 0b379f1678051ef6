package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/pixelcheck-go/internal/logger"
	"github.com/anime-shed/pixelcheck-go/internal/observer"
	"github.com/anime-shed/pixelcheck-go/internal/remote"
	"github.com/anime-shed/pixelcheck-go/pkg/models"
	"github.com/anime-shed/pixelcheck-go/pkg/validation"
)

// RemoteClient is the subset of remote.Client used by RemoteService
type RemoteClient interface {
	Analyze(ctx context.Context, data []byte, filename string, onStatus remote.StatusFunc) (*remote.Result, error)
	Report(ctx context.Context, reportID string) ([]byte, error)
	Health(ctx context.Context) bool
}

var _ RemoteClient = (*remote.Client)(nil)

// RemoteService forwards images to the remote inference API
type RemoteService interface {
	Analyze(ctx context.Context, req UploadRequest, onStatus remote.StatusFunc) (*models.RemoteAnalysisResponse, error)

	// Report downloads a PDF report. Premium only.
	Report(ctx context.Context, reportID, userID string) ([]byte, error)

	Healthy(ctx context.Context) bool
}

type remoteService struct {
	client       RemoteClient
	uploads      *validation.UploadValidator
	entitlements EntitlementChecker
	events       observer.Subject
}

// NewRemoteService creates a remote analysis service. uploads and events
// may be nil.
func NewRemoteService(client RemoteClient, uploads *validation.UploadValidator, entitlements EntitlementChecker, events observer.Subject) RemoteService {
	if uploads == nil {
		uploads = validation.NewUploadValidator()
	}
	return &remoteService{
		client:       client,
		uploads:      uploads,
		entitlements: entitlements,
		events:       events,
	}
}

func (s *remoteService) Analyze(ctx context.Context, req UploadRequest, onStatus remote.StatusFunc) (*models.RemoteAnalysisResponse, error) {
	if _, err := s.uploads.ValidateUpload(req.Name, req.ContentType, req.Data); err != nil {
		return nil, err
	}

	start := time.Now()
	s.notify(ctx, observer.AnalysisEvent{
		EventType: observer.AnalysisStarted,
		Source:    observer.SourceRemote,
		ImageName: req.Name,
	})

	res, err := s.client.Analyze(ctx, req.Data, req.Name, func(st remote.Status) {
		s.notify(ctx, observer.AnalysisEvent{
			EventType: observer.RemoteStatusChanged,
			Source:    observer.SourceRemote,
			ImageName: req.Name,
			Metadata:  map[string]interface{}{"status": string(st)},
		})
		if onStatus != nil {
			onStatus(st)
		}
	})
	elapsed := time.Since(start)
	if err != nil {
		err = toAppError("remote analysis failed", err)
		s.notify(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			Source:         observer.SourceRemote,
			ImageName:      req.Name,
			ProcessingTime: elapsed,
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	resp := models.NewRemoteAnalysisResponse(req.Name, res, elapsed)
	s.notify(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Source:         observer.SourceRemote,
		ImageName:      req.Name,
		Classification: string(resp.Classification.Label()),
		ProcessingTime: elapsed,
		Success:        true,
	})
	logger.WithFields(logrus.Fields{
		"image_id":           resp.ImageID,
		"image_name":         req.Name,
		"classification":     resp.Classification.Label(),
		"processing_time_ms": elapsed.Milliseconds(),
	}).Info("Remote analysis completed")
	return resp, nil
}

func (s *remoteService) Report(ctx context.Context, reportID, userID string) ([]byte, error) {
	if err := requirePremium(ctx, s.entitlements, userID); err != nil {
		return nil, toAppError("report download denied", err)
	}
	pdf, err := s.client.Report(ctx, reportID)
	if err != nil {
		return nil, toAppError("failed to download report", err)
	}
	return pdf, nil
}

func (s *remoteService) Healthy(ctx context.Context) bool {
	return s.client.Health(ctx)
}

func (s *remoteService) notify(ctx context.Context, event observer.AnalysisEvent) {
	if s.events != nil {
		s.events.NotifyObservers(ctx, event)
	}
}
