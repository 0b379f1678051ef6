package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
	apperrors "github.com/anime-shed/pixelcheck-go/internal/errors"
	"github.com/anime-shed/pixelcheck-go/internal/remote"
	"github.com/anime-shed/pixelcheck-go/internal/repository"
)

// ErrNotPremium is returned when a premium-only operation is requested by a
// user without the entitlement.
var ErrNotPremium = errors.New("premium subscription required")

// toAppError classifies err for the transport layer. AppErrors pass through.
func toAppError(message string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}

	var statusErr *remote.StatusError
	switch {
	case analyzer.IsDecodeError(err):
		return apperrors.NewProcessingError("failed to decode image", err)
	case errors.Is(err, repository.ErrAnalysisNotFound):
		return apperrors.NewNotFoundError("analysis not found", err)
	case errors.Is(err, repository.ErrInvalidImageURL):
		return apperrors.NewValidationError("invalid image URL", err)
	case errors.Is(err, ErrNotPremium):
		return apperrors.NewForbiddenError("premium subscription required", err)
	case errors.Is(err, remote.ErrPollTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError(message, err)
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(message, err)
	case errors.As(err, &statusErr):
		return apperrors.NewNetworkError(message, err)
	default:
		return apperrors.NewInternalError(message, err)
	}
}
