// Package fetcher downloads remote images with retries and infers the
// file extension from the HTTP response.
package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultUserAgent  = "md-image-localizer/1.0"
)

// extByContentType maps recognized image MIME types to file extensions.
// The declared content type wins over the URL suffix.
var extByContentType = map[string]string{
	"image/jpeg":    "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
	"image/x-icon":  "ico",
}

// urlExts are URL path suffixes accepted when the response carries no
// usable content type.
var urlExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"webp": true, "svg": true, "ico": true, "bmp": true, "avif": true,
}

// Options configures a Fetcher. Zero values fall back to the defaults.
type Options struct {
	Timeout    time.Duration // per attempt, not per download
	MaxRetries int
	RetryDelay time.Duration // 0 means immediate retry
	UserAgent  string
	Logger     *slog.Logger
}

type Fetcher struct {
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	logger     *slog.Logger
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		userAgent:  opts.UserAgent,
		logger:     opts.Logger,
	}
}

// MaxRetries reports the attempt limit actually in effect, after the
// zero-value fallback.
func (f *Fetcher) MaxRetries() int {
	return f.maxRetries
}

// Download holds the outcome of a successful fetch.
type Download struct {
	Path        string // final file path, targetBase plus inferred extension
	ContentType string
	SizeBytes   int64
	ContentHash string // hex SHA256 of the body
	Attempts    int
}

// Download fetches rawURL and writes the body to targetBase.<ext>.
// It makes up to maxRetries sequential attempts; an attempt fails on a
// transport error, a non-2xx status, or a non-image content type. The
// file is written through a temp file and renamed, so a failed run never
// leaves a partial entry behind.
func (f *Fetcher) Download(ctx context.Context, rawURL, targetBase string) (*Download, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 1 && f.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.retryDelay):
			}
		}

		dl, err := f.fetchOnce(ctx, rawURL, targetBase)
		if err == nil {
			dl.Attempts = attempt
			f.logger.Debug("Download attempt succeeded", "url", rawURL, "attempt", attempt, "size", dl.SizeBytes)
			return dl, nil
		}
		f.logger.Warn("Download attempt failed", "url", rawURL, "attempt", attempt, "max_retries", f.maxRetries, "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("download failed after %d attempts: %w", f.maxRetries, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL, targetBase string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch image, status code: %d", resp.StatusCode)
	}

	contentType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("response is not an image, content type: %s", contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	finalPath := targetBase + "." + inferExtension(contentType, rawURL)
	if err := writeAtomic(finalPath, body); err != nil {
		return nil, err
	}

	return &Download{
		Path:        finalPath,
		ContentType: contentType,
		SizeBytes:   int64(len(body)),
		ContentHash: fmt.Sprintf("%x", sha256.Sum256(body)),
	}, nil
}

// inferExtension picks the cache entry extension: recognized content type
// first, then the URL path suffix, then jpg.
func inferExtension(contentType, rawURL string) string {
	if ext, ok := extByContentType[contentType]; ok {
		return ext
	}
	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		if urlExts[ext] {
			return ext
		}
	}
	return "jpg"
}

func writeAtomic(finalPath string, data []byte) error {
	tmp := finalPath + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp, finalPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize image file: %w", err)
	}
	return nil
}
