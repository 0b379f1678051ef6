package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/pixelcheck-go/internal/errors"
	"github.com/anime-shed/pixelcheck-go/internal/logger"
	"github.com/anime-shed/pixelcheck-go/internal/remote"
	"github.com/anime-shed/pixelcheck-go/internal/service"
	"github.com/anime-shed/pixelcheck-go/pkg/models"
)

const (
	streamReadWait  = 30 * time.Second
	streamWriteWait = 10 * time.Second
)

// The API carries no cookies, so any origin may open a stream.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errRemoteDisabled = apperrors.NewInternalError("remote analysis is not configured", nil)

func (h *Handler) remoteAnalyze(c *gin.Context) {
	if h.remote == nil {
		respondError(c, http.StatusServiceUnavailable, "remote analysis unavailable", errRemoteDisabled)
		return
	}

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

	resp, err := h.remote.Analyze(c.Request.Context(), req, nil)
	if err != nil {
		fail(c, "remote analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// remoteStream accepts one binary message holding the image, then streams
// status events followed by a result or error event.
func (h *Handler) remoteStream(c *gin.Context) {
	if h.remote == nil {
		respondError(c, http.StatusServiceUnavailable, "remote analysis unavailable", errRemoteDisabled)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	name := c.DefaultQuery("name", "image")
	log := logger.WithFields(logrus.Fields{
		"image_name": name,
		"ip":         c.ClientIP(),
	})

	conn.SetReadLimit(h.cfg.MaxRequestBodySize)
	_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		log.WithError(err).Warn("Failed to read image from stream")
		return
	}
	if msgType != websocket.BinaryMessage {
		writeEvent(conn, errorEvent(apperrors.NewValidationError("expected a binary image message", nil)))
		closeStream(conn, websocket.CloseUnsupportedData, "binary message required")
		return
	}

	ctx := c.Request.Context()
	onStatus := func(st remote.Status) {
		if err := writeEvent(conn, models.StreamEvent{Type: models.StreamEventStatus, Status: st}); err != nil {
			log.WithError(err).Debug("Failed to push status")
		}
	}

	resp, err := h.remote.Analyze(ctx, service.UploadRequest{Name: name, Data: data}, onStatus)
	if err != nil {
		log.WithError(err).Warn("Streamed remote analysis failed")
		onStatus(remote.StatusFailed)
		writeEvent(conn, errorEvent(err))
		closeStream(conn, websocket.CloseNormalClosure, "failed")
		return
	}

	writeEvent(conn, models.StreamEvent{Type: models.StreamEventResult, Result: resp})
	closeStream(conn, websocket.CloseNormalClosure, "completed")
}

func (h *Handler) downloadReport(c *gin.Context) {
	if h.remote == nil {
		respondError(c, http.StatusServiceUnavailable, "remote analysis unavailable", errRemoteDisabled)
		return
	}

	id := c.Param("id")
	pdf, err := h.remote.Report(c.Request.Context(), id, userID(c))
	if err != nil {
		fail(c, "report download failed", err)
		return
	}

	c.Header("Content-Disposition", attachment("report_"+id+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func errorEvent(err error) models.StreamEvent {
	return models.StreamEvent{Type: models.StreamEventError, Error: models.NewErrorResponse(err)}
}

func writeEvent(conn *websocket.Conn, event models.StreamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(event)
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
