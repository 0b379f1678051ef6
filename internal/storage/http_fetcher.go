package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	fetchAttempts       = 3
	defaultMaxImageSize = 10 * 1024 * 1024
)

// FetchedImage is the raw body of a downloaded image.
type FetchedImage struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

// Name returns the last path segment of the source URL.
func (f *FetchedImage) Name() string {
	name := f.SourceURL
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "image"
	}
	return name
}

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error)
}

// HTTPImageFetcher implements ImageFetcher with retries on transient errors
type HTTPImageFetcher struct {
	client   *http.Client
	backoff  time.Duration
	maxBytes int64
}

// FetcherOption customises an HTTPImageFetcher
type FetcherOption func(*HTTPImageFetcher)

// WithTimeout bounds each attempt
func WithTimeout(d time.Duration) FetcherOption {
	return func(h *HTTPImageFetcher) {
		h.client.Timeout = d
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*base
func WithBackoff(d time.Duration) FetcherOption {
	return func(h *HTTPImageFetcher) {
		h.backoff = d
	}
}

// WithMaxBytes caps the response body
func WithMaxBytes(n int64) FetcherOption {
	return func(h *HTTPImageFetcher) {
		h.maxBytes = n
	}
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts ...FetcherOption) *HTTPImageFetcher {
	// Transport configuration for single image downloads
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	h := &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		backoff:  time.Second,
		maxBytes: defaultMaxImageSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req.Header.Set("Accept", "image/png, image/jpeg, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "PixelCheck/1.0")

	// Retry logic (3 attempts) - only retry on transient errors
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		img, retry, err := h.attempt(req)
		if err == nil {
			img.SourceURL = imageURL
			return img, nil
		}
		lastErr = err
		if !retry {
			break
		}

		// Sleep before next retry (not on last attempt)
		if attempt < fetchAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * h.backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

// attempt performs one request. retry reports whether a failure is transient.
func (h *HTTPImageFetcher) attempt(req *http.Request) (img *FetchedImage, retry bool, err error) {
	resp, err := h.client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, false, req.Context().Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// 4xx client errors are non-retryable
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, false, fmt.Errorf("image exceeds %d bytes", h.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &FetchedImage{Data: data, ContentType: contentType}, false, nil
}
