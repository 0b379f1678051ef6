package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/pixelcheck-go/internal/logger"
)

const (
	DefaultMaxAttempts  = 60
	DefaultPollInterval = 2 * time.Second

	maxErrorBody  = 4096
	maxReportSize = 50 * 1024 * 1024
)

var (
	// ErrPollTimeout is returned when the result is still pending after
	// the last poll attempt.
	ErrPollTimeout = errors.New("analysis timeout: exceeded maximum attempts")

	// errPending marks a result that is not ready yet.
	errPending = errors.New("result pending")
)

// StatusError is a non-success response from the remote API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d - %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to the remote inference API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	maxAttempts  int
	pollInterval time.Duration
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPolling sets the poll ceiling and the fixed delay before each attempt
func WithPolling(maxAttempts int, interval time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient creates a client for the API rooted at baseURL, for example
// https://host/api/v1.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		maxAttempts:  DefaultMaxAttempts,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends data as the multipart field "image".
func (c *Client) Upload(ctx context.Context, data []byte, filename string) (*UploadResponse, error) {
	if filename == "" {
		filename = "image"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("upload image", resp)
	}

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if out.ImageID == "" {
		return nil, fmt.Errorf("upload image: response carries no imageId")
	}
	return &out, nil
}

// Result fetches the analysis for imageID. A 202 or 404 response means the
// result is not ready and is reported as pending by Analyze.
func (c *Client) Result(ctx context.Context, imageID string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/results/"+url.PathEscape(imageID), nil)
	if err != nil {
		return nil, fmt.Errorf("build result request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Network failures are retried by the poll loop
		return nil, fmt.Errorf("%w: %v", errPending, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted, resp.StatusCode == http.StatusNotFound:
		return nil, errPending
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, statusError("get result", resp)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &out, nil
}

// IsPending reports whether err from Result means "try again later".
func IsPending(err error) bool {
	return errors.Is(err, errPending)
}

// Analyze uploads data then polls for the result, sleeping the poll
// interval before every attempt.
func (c *Client) Analyze(ctx context.Context, data []byte, filename string, onStatus StatusFunc) (*Result, error) {
	notify := func(s Status) {
		if onStatus != nil {
			onStatus(s)
		}
	}

	notify(StatusUploading)
	up, err := c.Upload(ctx, data, filename)
	if err != nil {
		return nil, err
	}

	notify(StatusProcessing)
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		res, err := c.Result(ctx, up.ImageID)
		if err == nil {
			notify(StatusCompleted)
			return res, nil
		}
		if !IsPending(err) {
			return nil, err
		}

		logger.WithFields(logrus.Fields{
			"image_id": up.ImageID,
			"attempt":  attempt,
			"max":      c.maxAttempts,
		}).Debug("Remote analysis still processing")
		timer.Reset(c.pollInterval)
	}

	return nil, fmt.Errorf("image %s: %w", up.ImageID, ErrPollTimeout)
}

// Report downloads the PDF report with the given id.
func (c *Client) Report(ctx context.Context, reportID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reports/"+url.PathEscape(reportID), nil)
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("get report", resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(data) > maxReportSize {
		return nil, fmt.Errorf("report exceeds %d bytes", maxReportSize)
	}
	return data, nil
}

// Health reports whether the API root answers its health endpoint. The
// root is the base URL without the /api/v1 suffix.
func (c *Client) Health(ctx context.Context) bool {
	root := strings.Replace(c.baseURL, "/api/v1", "", 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
