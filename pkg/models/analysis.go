package models

import (
	"time"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
	"github.com/anime-shed/pixelcheck-go/internal/remote"
)

// AnalysisResponse is one stored local analysis
type AnalysisResponse struct {
	ID               string                  `json:"id"`
	UserID           string                  `json:"user_id,omitempty"`
	SessionID        string                  `json:"session_id,omitempty"`
	ImageName        string                  `json:"image_name"`
	ImageURL         string                  `json:"image_url,omitempty"`
	ImageSize        int64                   `json:"image_size"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
	CreatedAt        time.Time               `json:"created_at"`
	Result           analyzer.AnalysisResult `json:"result"`
}

// AnalysisListResponse wraps a page of history
type AnalysisListResponse struct {
	Items []AnalysisResponse `json:"items"`
	Count int                `json:"count"`
}

// BatchItem is the outcome for one file of a batch. Exactly one of
// Analysis and Error is set.
type BatchItem struct {
	ImageName string            `json:"image_name"`
	Analysis  *AnalysisResponse `json:"analysis,omitempty"`
	Error     *ErrorResponse    `json:"error,omitempty"`
}

// BatchResponse represents the response of a batch analysis
type BatchResponse struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// RemoteAnalysisResponse is a remote model verdict
type RemoteAnalysisResponse struct {
	ImageID          string                  `json:"image_id"`
	ImageName        string                  `json:"image_name"`
	ReportID         string                  `json:"report_id,omitempty"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
	Classification   analyzer.Classification `json:"classification"`
	Features         remote.FeatureScores    `json:"features"`
	Observations     remote.Observations     `json:"observations"`
}

// NewRemoteAnalysisResponse converts a remote result
func NewRemoteAnalysisResponse(name string, res *remote.Result, elapsed time.Duration) *RemoteAnalysisResponse {
	out := &RemoteAnalysisResponse{
		ImageID:          res.ImageID,
		ImageName:        name,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Classification:   res.Classification(),
		Features:         res.Details.Features,
		Observations:     res.Details.Observations,
	}
	if res.ReportID != nil {
		out.ReportID = *res.ReportID
	}
	return out
}
