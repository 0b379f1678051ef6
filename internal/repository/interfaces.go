package repository

import (
	"context"
	"time"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
	"github.com/anime-shed/pixelcheck-go/internal/storage"
)

// ImageRepository defines the interface for remote image access
type ImageRepository interface {
	// FetchImage retrieves an image from a URL
	FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// AnalysisRepository defines the interface for analysis record operations
type AnalysisRepository interface {
	// Save stores a record, assigning ID and CreatedAt when unset
	Save(ctx context.Context, record *AnalysisRecord) error

	// Get retrieves a stored record
	Get(ctx context.Context, id string) (*AnalysisRecord, error)

	// List returns records matching the filter, newest first
	List(ctx context.Context, filter ListFilter) ([]*AnalysisRecord, error)

	// Delete removes a record
	Delete(ctx context.Context, id string) error

	Close() error
}

// AnalysisRecord is one persisted analysis
type AnalysisRecord struct {
	ID          string                  `json:"id"`
	UserID      string                  `json:"user_id,omitempty"`
	SessionID   string                  `json:"session_id,omitempty"`
	ImageURL    string                  `json:"image_url,omitempty"`
	ImageKey    string                  `json:"-"`
	ImageName   string                  `json:"image_name"`
	ImageSize   int64                   `json:"image_size"`
	Result      analyzer.AnalysisResult `json:"result"`
	ProcessedIn time.Duration           `json:"processing_time_ns"`
	CreatedAt   time.Time               `json:"created_at"`
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	UserID    string
	SessionID string
	Limit     int
}

// DefaultListLimit applies when ListFilter.Limit is not positive
const DefaultListLimit = 50
