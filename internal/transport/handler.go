package transport

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/pixelcheck-go/internal/config"
	apperrors "github.com/anime-shed/pixelcheck-go/internal/errors"
	"github.com/anime-shed/pixelcheck-go/internal/logger"
	"github.com/anime-shed/pixelcheck-go/internal/observer"
	"github.com/anime-shed/pixelcheck-go/internal/service"
	"github.com/anime-shed/pixelcheck-go/pkg/models"
)

const version = "1.0.0"

// Handler serves the HTTP API
type Handler struct {
	analysis service.ImageAnalysisService
	remote   service.RemoteService
	metrics  *observer.MetricsObserver
	cfg      *config.Config
}

// NewHandler builds the router. remote and metrics may be nil, in which
// case their routes answer 503.
func NewHandler(analysis service.ImageAnalysisService, remote service.RemoteService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	h := &Handler{
		analysis: analysis,
		remote:   remote,
		metrics:  metrics,
		cfg:      cfg,
	}

	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxRequestBodySize

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", h.healthCheck)
	r.GET("/metrics", h.getMetrics)

	local := r.Group("/", withTimeout(cfg.RequestTimeout))
	local.POST("/analyze", h.analyzeUpload)
	local.POST("/analyze/url", h.analyzeURL)
	local.POST("/analyze/batch", h.analyzeBatch)
	local.GET("/analyses", h.listAnalyses)
	local.GET("/analyses/:id", h.getAnalysis)
	local.DELETE("/analyses/:id", h.deleteAnalysis)
	local.GET("/analyses/:id/export.csv", h.exportCSV)

	slow := r.Group("/", withTimeout(cfg.RemoteTimeout()))
	slow.POST("/remote/analyze", h.remoteAnalyze)
	slow.GET("/remote/stream", h.remoteStream)
	slow.GET("/reports/:id", h.downloadReport)

	return r
}

func (h *Handler) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "available",
		"version": version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if c.Query("remote") == "true" && h.remote != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if h.remote.Healthy(ctx) {
			body["remote"] = "available"
		} else {
			body["remote"] = "unavailable"
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) getMetrics(c *gin.Context) {
	body := gin.H{"pool": h.analysis.PoolStats()}
	if h.metrics != nil {
		body["analyses"] = h.metrics.GetMetrics()
	}
	c.JSON(http.StatusOK, body)
}

// userID reads the caller identity from the X-User-ID header, falling back
// to the user_id query or form field.
func userID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-User-ID")); id != "" {
		return id
	}
	if id := c.Query("user_id"); id != "" {
		return id
	}
	return c.PostForm("user_id")
}

// attachment builds a Content-Disposition value with the filename quoted or
// RFC 2231 encoded as needed.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

// Middleware and helper functions
func withTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.StatusCode
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status derived from err
func fail(c *gin.Context, message string, err error) {
	respondError(c, determineStatusCode(err), message, err)
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	body := models.NewErrorResponse(err)
	body.Error = http.StatusText(code)
	if _, ok := apperrors.AsAppError(err); !ok && code < http.StatusInternalServerError {
		body.Message = fmt.Sprintf("%s: %v", message, err)
	}
	c.AbortWithStatusJSON(code, body)
}
