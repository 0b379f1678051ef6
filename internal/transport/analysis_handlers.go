package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/pixelcheck-go/internal/errors"
	"github.com/anime-shed/pixelcheck-go/internal/logger"
	"github.com/anime-shed/pixelcheck-go/internal/repository"
	"github.com/anime-shed/pixelcheck-go/internal/service"
	"github.com/anime-shed/pixelcheck-go/pkg/models"
)

// maxListLimit caps the history page size
const maxListLimit = 200

func (h *Handler) analyzeUpload(c *gin.Context) {
	startTime := time.Now()

	// Log request start
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing image analysis request")

	fh, err := c.FormFile("image")
	if err != nil {
		fail(c, "missing image", uploadError(err))
		return
	}
	req, err := readUpload(fh)
	if err != nil {
		fail(c, "failed to read image", err)
		return
	}
	req.UserID = userID(c)
	req.SessionID = c.PostForm("session_id")

	resp, err := h.analysis.AnalyzeUpload(c.Request.Context(), req)
	if err != nil {
		fail(c, "image analysis failed", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"analysis_id":        resp.ID,
		"image_name":         resp.ImageName,
		"classification":     resp.Result.Classification.Label(),
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Image analysis completed successfully")

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) analyzeURL(c *gin.Context) {
	var req models.AnalyzeURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"ip": c.ClientIP(),
		}).Error("Invalid request format")
		respondError(c, http.StatusBadRequest, "invalid request format", apperrors.NewValidationError("invalid request format", err))
		return
	}
	if req.UserID == "" {
		req.UserID = userID(c)
	}

	resp, err := h.analysis.AnalyzeURL(c.Request.Context(), req)
	if err != nil {
		fail(c, "image analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) analyzeBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		fail(c, "invalid multipart form", uploadError(err))
		return
	}
	files := append(form.File["images"], form.File["images[]"]...)
	if len(files) == 0 {
		respondError(c, http.StatusBadRequest, "no images", apperrors.NewValidationError("no images in field \"images\"", nil))
		return
	}

	user := userID(c)
	session := c.PostForm("session_id")
	reqs := make([]service.UploadRequest, 0, len(files))
	for _, fh := range files {
		req, err := readUpload(fh)
		if err != nil {
			fail(c, "failed to read image", err)
			return
		}
		req.UserID = user
		req.SessionID = session
		reqs = append(reqs, req)
	}

	c.JSON(http.StatusOK, h.analysis.AnalyzeBatch(c.Request.Context(), reqs))
}

func (h *Handler) getAnalysis(c *gin.Context) {
	resp, err := h.analysis.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, "failed to load analysis", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	filter := repository.ListFilter{
		UserID:    userID(c),
		SessionID: c.Query("session_id"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxListLimit {
			respondError(c, http.StatusBadRequest, "invalid limit",
				apperrors.NewValidationError(fmt.Sprintf("limit must be between 1 and %d", maxListLimit), err))
			return
		}
		filter.Limit = limit
	}

	resp, err := h.analysis.ListAnalyses(c.Request.Context(), filter)
	if err != nil {
		fail(c, "failed to list analyses", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) deleteAnalysis(c *gin.Context) {
	if err := h.analysis.DeleteAnalysis(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, "failed to delete analysis", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) exportCSV(c *gin.Context) {
	id := c.Param("id")

	// Buffer so that a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.analysis.ExportCSV(c.Request.Context(), id, userID(c), &buf); err != nil {
		fail(c, "csv export failed", err)
		return
	}

	c.Header("Content-Disposition", attachment("analysis_"+id+".csv"))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func readUpload(fh *multipart.FileHeader) (service.UploadRequest, error) {
	f, err := fh.Open()
	if err != nil {
		return service.UploadRequest{}, uploadError(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.UploadRequest{}, uploadError(err)
	}
	return service.UploadRequest{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// uploadError keeps oversized bodies distinguishable from malformed ones.
func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return apperrors.NewValidationError("invalid upload", err)
}
