package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
	"github.com/anime-shed/pixelcheck-go/internal/config"
	apperrors "github.com/anime-shed/pixelcheck-go/internal/errors"
	"github.com/anime-shed/pixelcheck-go/internal/observer"
	"github.com/anime-shed/pixelcheck-go/internal/remote"
	"github.com/anime-shed/pixelcheck-go/internal/repository"
	"github.com/anime-shed/pixelcheck-go/internal/service"
	"github.com/anime-shed/pixelcheck-go/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnalysis struct {
	lastUpload service.UploadRequest
	lastFilter repository.ListFilter
	batchSize  int
	err        error
}

func (f *fakeAnalysis) AnalyzeUpload(_ context.Context, req service.UploadRequest) (*models.AnalysisResponse, error) {
	f.lastUpload = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalysisResponse{ID: "a1", ImageName: req.Name, UserID: req.UserID}, nil
}

func (f *fakeAnalysis) AnalyzeURL(_ context.Context, req models.AnalyzeURLRequest) (*models.AnalysisResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalysisResponse{ID: "a2", ImageURL: req.URL}, nil
}

func (f *fakeAnalysis) AnalyzeBatch(_ context.Context, reqs []service.UploadRequest) *models.BatchResponse {
	f.batchSize = len(reqs)
	out := &models.BatchResponse{}
	for _, r := range reqs {
		out.Items = append(out.Items, models.BatchItem{ImageName: r.Name, Analysis: &models.AnalysisResponse{ImageName: r.Name}})
		out.Succeeded++
	}
	return out
}

func (f *fakeAnalysis) GetAnalysis(_ context.Context, id string) (*models.AnalysisResponse, error) {
	if id != "a1" {
		return nil, apperrors.NewNotFoundError("analysis not found", repository.ErrAnalysisNotFound)
	}
	return &models.AnalysisResponse{ID: id}, nil
}

func (f *fakeAnalysis) ListAnalyses(_ context.Context, filter repository.ListFilter) (*models.AnalysisListResponse, error) {
	f.lastFilter = filter
	return &models.AnalysisListResponse{Items: []models.AnalysisResponse{}}, nil
}

func (f *fakeAnalysis) DeleteAnalysis(_ context.Context, id string) error {
	if id != "a1" {
		return apperrors.NewNotFoundError("analysis not found", repository.ErrAnalysisNotFound)
	}
	return nil
}

func (f *fakeAnalysis) ExportCSV(_ context.Context, id, userID string, w io.Writer) error {
	if userID != "pro" {
		return apperrors.NewForbiddenError("premium subscription required", service.ErrNotPremium)
	}
	_, err := io.WriteString(w, "Field,Value\nClassification,real\n")
	return err
}

func (f *fakeAnalysis) PoolStats() analyzer.PoolStats { return analyzer.PoolStats{Workers: 2} }
func (f *fakeAnalysis) Close() error                  { return nil }

type fakeRemoteService struct {
	err error
}

func (f *fakeRemoteService) Analyze(_ context.Context, req service.UploadRequest, onStatus remote.StatusFunc) (*models.RemoteAnalysisResponse, error) {
	if onStatus != nil {
		onStatus(remote.StatusUploading)
	}
	if f.err != nil {
		return nil, f.err
	}
	if onStatus != nil {
		onStatus(remote.StatusProcessing)
		onStatus(remote.StatusCompleted)
	}
	return &models.RemoteAnalysisResponse{
		ImageID:        "img-1",
		ImageName:      req.Name,
		Classification: analyzer.ClassifyBinary(0.9, 0.5, "v1"),
	}, nil
}

func (f *fakeRemoteService) Report(_ context.Context, id, userID string) ([]byte, error) {
	if userID != "pro" {
		return nil, apperrors.NewForbiddenError("premium subscription required", service.ErrNotPremium)
	}
	return []byte("%PDF-" + id), nil
}

func (f *fakeRemoteService) Healthy(context.Context) bool { return true }

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		RemotePollAttempts: 2,
		RemotePollInterval: 10 * time.Millisecond,
	}
}

func newTestHandler(a *fakeAnalysis, r service.RemoteService) http.Handler {
	return NewHandler(a, r, observer.NewMetricsObserver(), testConfig())
}

func multipartBody(t *testing.T, field string, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&fakeAnalysis{}, &fakeRemoteService{})

	w := do(h, httptest.NewRequest(http.MethodGet, "/health?remote=true", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "available", body["status"])
	assert.Equal(t, "available", body["remote"])
}

func TestAnalyzeUpload(t *testing.T) {
	a := &fakeAnalysis{}
	h := newTestHandler(a, nil)

	body, ct := multipartBody(t, "image", map[string][]byte{"cat.png": []byte("bytes")}, map[string]string{"session_id": "s1"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-ID", "u1")

	w := do(h, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cat.png", a.lastUpload.Name)
	assert.Equal(t, "u1", a.lastUpload.UserID)
	assert.Equal(t, "s1", a.lastUpload.SessionID)
	assert.Equal(t, []byte("bytes"), a.lastUpload.Data)
}

func TestAnalyzeUpload_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"decode", apperrors.NewProcessingError("failed to decode image", &analyzer.DecodeError{Reason: analyzer.ReasonInvalidImage}), http.StatusUnprocessableEntity},
		{"validation", apperrors.NewValidationError("bad", nil), http.StatusBadRequest},
		{"internal", apperrors.NewInternalError("db down", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeAnalysis{err: tt.err}, nil)
			body, ct := multipartBody(t, "image", map[string][]byte{"cat.png": []byte("bytes")}, nil)
			req := httptest.NewRequest(http.MethodPost, "/analyze", body)
			req.Header.Set("Content-Type", ct)

			w := do(h, req)
			assert.Equal(t, tt.code, w.Code)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, http.StatusText(tt.code), resp.Error)
		})
	}
}

func TestAnalyzeUpload_MissingFile(t *testing.T) {
	h := newTestHandler(&fakeAnalysis{}, nil)
	body, ct := multipartBody(t, "other", map[string][]byte{"cat.png": []byte("bytes")}, nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)

	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)
}

func TestAnalyzeUpload_TooLarge(t *testing.T) {
	h := newTestHandler(&fakeAnalysis{}, nil)
	body, ct := multipartBody(t, "image", map[string][]byte{"big.png": bytes.Repeat([]byte{1}, 2<<20)}, nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)

	code := do(h, req).Code
	assert.True(t, code == http.StatusRequestEntityTooLarge || code == http.StatusBadRequest, "got %d", code)
}

func TestAnalyzeURL(t *testing.T) {
	h := newTestHandler(&fakeAnalysis{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze/url", strings.NewReader(`{"url":"https://example.com/a.png"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(h, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://example.com/a.png")

	req = httptest.NewRequest(http.MethodPost, "/analyze/url", strings.NewReader(`{"url":"not a url"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)
}

func TestAnalyzeBatch(t *testing.T) {
	a := &fakeAnalysis{}
	h := newTestHandler(a, nil)

	body, ct := multipartBody(t, "images", map[string][]byte{"a.png": []byte("a"), "b.png": []byte("b")}, nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze/batch", body)
	req.Header.Set("Content-Type", ct)

	w := do(h, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, a.batchSize)

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Succeeded)

	body, ct = multipartBody(t, "nothing", map[string][]byte{"a.png": []byte("a")}, nil)
	req = httptest.NewRequest(http.MethodPost, "/analyze/batch", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)
}

func TestHistoryRoutes(t *testing.T) {
	a := &fakeAnalysis{}
	h := newTestHandler(a, nil)

	assert.Equal(t, http.StatusOK, do(h, httptest.NewRequest(http.MethodGet, "/analyses/a1", nil)).Code)
	assert.Equal(t, http.StatusNotFound, do(h, httptest.NewRequest(http.MethodGet, "/analyses/zz", nil)).Code)

	w := do(h, httptest.NewRequest(http.MethodGet, "/analyses?user_id=u1&session_id=s1&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.ListFilter{UserID: "u1", SessionID: "s1", Limit: 5}, a.lastFilter)

	assert.Equal(t, http.StatusBadRequest, do(h, httptest.NewRequest(http.MethodGet, "/analyses?limit=abc", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, httptest.NewRequest(http.MethodGet, "/analyses?limit=1000", nil)).Code)

	assert.Equal(t, http.StatusNoContent, do(h, httptest.NewRequest(http.MethodDelete, "/analyses/a1", nil)).Code)
	assert.Equal(t, http.StatusNotFound, do(h, httptest.NewRequest(http.MethodDelete, "/analyses/zz", nil)).Code)
}

func TestExportCSV(t *testing.T) {
	h := newTestHandler(&fakeAnalysis{}, nil)

	w := do(h, httptest.NewRequest(http.MethodGet, "/analyses/a1/export.csv?user_id=free", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(h, httptest.NewRequest(http.MethodGet, "/analyses/a1/export.csv?user_id=pro", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "analysis_a1.csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "Field,Value"))
}

func TestRemoteRoutes(t *testing.T) {
	h := newTestHandler(&fakeAnalysis{}, &fakeRemoteService{})

	body, ct := multipartBody(t, "image", map[string][]byte{"cat.png": []byte("bytes")}, nil)
	req := httptest.NewRequest(http.MethodPost, "/remote/analyze", body)
	req.Header.Set("Content-Type", ct)
	w := do(h, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"binary"`)

	assert.Equal(t, http.StatusForbidden, do(h, httptest.NewRequest(http.MethodGet, "/reports/r1", nil)).Code)

	req = httptest.NewRequest(http.MethodGet, "/reports/r1", nil)
	req.Header.Set("X-User-ID", "pro")
	w = do(h, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-r1", w.Body.String())
	assert.Equal(t, `attachment; filename=report_r1.pdf`, w.Header().Get("Content-Disposition"))
}

func TestDownloadReport_QuotesFilename(t *testing.T) {
	h := newTestHandler(&fakeAnalysis{}, &fakeRemoteService{})

	req := httptest.NewRequest(http.MethodGet, `/reports/a%22%3B%20x=1`, nil)
	req.Header.Set("X-User-ID", "pro")
	w := do(h, req)
	require.Equal(t, http.StatusOK, w.Code)

	disposition := w.Header().Get("Content-Disposition")
	typ, params, err := mime.ParseMediaType(disposition)
	require.NoError(t, err, disposition)
	assert.Equal(t, "attachment", typ)
	assert.Equal(t, `report_a"; x=1.pdf`, params["filename"])
	assert.NotContains(t, params, "x")
}

func TestAttachment(t *testing.T) {
	tests := map[string]string{
		"report_r1.pdf":       `attachment; filename=report_r1.pdf`,
		"analysis_a b.csv":    `attachment; filename="analysis_a b.csv"`,
		`report_"quoted".pdf`: `attachment; filename="report_\"quoted\".pdf"`,
	}
	for name, want := range tests {
		assert.Equal(t, want, attachment(name), name)
	}

	_, params, err := mime.ParseMediaType(attachment("report_\r\nSet-Cookie: x.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "report_\r\nSet-Cookie: x.pdf", params["filename"])
}

func TestRemoteRoutes_Disabled(t *testing.T) {
	h := newTestHandler(&fakeAnalysis{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(h, httptest.NewRequest(http.MethodGet, "/reports/r1", nil)).Code)
}

func TestMetrics(t *testing.T) {
	h := newTestHandler(&fakeAnalysis{}, nil)
	w := do(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"workers":2`)
	assert.Contains(t, w.Body.String(), `"total_analyses":0`)
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/remote/stream?name=cat.png"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvents(t *testing.T, conn *websocket.Conn) []models.StreamEvent {
	t.Helper()
	var events []models.StreamEvent
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev models.StreamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return events
		}
		events = append(events, ev)
	}
}

func TestRemoteStream(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(&fakeAnalysis{}, &fakeRemoteService{}))
	defer srv.Close()

	conn := dialStream(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("image-bytes")))

	events := readEvents(t, conn)
	require.Len(t, events, 4)
	assert.Equal(t, remote.StatusUploading, events[0].Status)
	assert.Equal(t, remote.StatusProcessing, events[1].Status)
	assert.Equal(t, remote.StatusCompleted, events[2].Status)
	assert.Equal(t, models.StreamEventResult, events[3].Type)
	require.NotNil(t, events[3].Result)
	assert.Equal(t, "cat.png", events[3].Result.ImageName)
	assert.Equal(t, analyzer.LabelAI, events[3].Result.Classification.Label())
}

func TestRemoteStream_Failure(t *testing.T) {
	failing := &fakeRemoteService{err: apperrors.NewTimeoutError("remote analysis failed", remote.ErrPollTimeout)}
	srv := httptest.NewServer(newTestHandler(&fakeAnalysis{}, failing))
	defer srv.Close()

	conn := dialStream(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("image-bytes")))

	events := readEvents(t, conn)
	require.Len(t, events, 3)
	assert.Equal(t, remote.StatusUploading, events[0].Status)
	assert.Equal(t, remote.StatusFailed, events[1].Status)
	assert.Equal(t, models.StreamEventError, events[2].Type)
	require.NotNil(t, events[2].Error)
	assert.Equal(t, string(apperrors.ErrorTypeTimeout), events[2].Error.Type)
}

func TestRemoteStream_RejectsText(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(&fakeAnalysis{}, &fakeRemoteService{}))
	defer srv.Close()

	conn := dialStream(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	events := readEvents(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, models.StreamEventError, events[0].Type)
}
