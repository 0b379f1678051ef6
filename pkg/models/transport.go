package models

import (
	"net/http"

	apperrors "github.com/anime-shed/pixelcheck-go/internal/errors"
	"github.com/anime-shed/pixelcheck-go/internal/remote"
)

// AnalyzeURLRequest represents a request to analyze an image by URL
type AnalyzeURLRequest struct {
	URL       string `json:"url" binding:"required,url"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Details string `json:"details,omitempty"`
}

// NewErrorResponse renders err. AppErrors keep their type and message; any
// other error is reported as an internal failure without its text.
func NewErrorResponse(err error) *ErrorResponse {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return &ErrorResponse{
			Error:   http.StatusText(http.StatusInternalServerError),
			Message: "internal error",
			Type:    string(apperrors.ErrorTypeInternal),
		}
	}
	msg := appErr.Message
	if appErr.Cause != nil && appErr.Type != apperrors.ErrorTypeInternal {
		msg += ": " + appErr.Cause.Error()
	}
	return &ErrorResponse{
		Error:   http.StatusText(appErr.StatusCode),
		Message: msg,
		Type:    string(appErr.Type),
		Details: appErr.Details,
	}
}

// Stream event types sent over the remote status websocket
const (
	StreamEventStatus = "status"
	StreamEventResult = "result"
	StreamEventError  = "error"
)

// StreamEvent is one websocket message of a remote analysis
type StreamEvent struct {
	Type   string                  `json:"type"`
	Status remote.Status           `json:"status,omitempty"`
	Result *RemoteAnalysisResponse `json:"result,omitempty"`
	Error  *ErrorResponse          `json:"error,omitempty"`
}
