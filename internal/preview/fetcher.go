// Package preview resolves a pasted video URL into playable media metadata
// via the platform backend's preview endpoint.
package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/domain"
	"github.com/vidgrab/vidgrab/internal/platform"
)

// Fetcher performs one-shot preview requests against platform backends.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	probeMedia bool
	logger     *slog.Logger
}

// NewFetcher creates a preview fetcher.
func NewFetcher(cfg config.DownloadConfig) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.PreviewTimeout,
		},
		userAgent:  cfg.UserAgent,
		probeMedia: cfg.ProbeMedia,
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger used for probe diagnostics.
func (f *Fetcher) SetLogger(logger *slog.Logger) {
	f.logger = logger
}

type previewRequest struct {
	URL string `json:"url"`
}

type previewResponse struct {
	VideoURL  string `json:"videoUrl"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Error     string `json:"error"`
}

// Fetch submits a validated URL to the platform's preview endpoint.
// Success requires a 2xx response AND a non-empty media URL; when the
// media probe is enabled, the resolved media URL must also answer a HEAD
// request.
func (f *Fetcher) Fetch(ctx context.Context, rule platform.Rule, videoURL string) (*domain.PreviewMedia, error) {
	body, err := json.Marshal(previewRequest{URL: videoURL})
	if err != nil {
		return nil, fmt.Errorf("marshal preview request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rule.PreviewURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create preview request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPreviewTransport, err)
	}
	defer resp.Body.Close()

	var payload previewResponse
	// A failed backend may still answer with a structured error body; decode
	// best-effort so its message reaches the user.
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || payload.VideoURL == "" {
		if payload.Error != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoMedia, payload.Error)
		}
		if decodeErr != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return nil, fmt.Errorf("decode preview response: %w", decodeErr)
		}
		return nil, fmt.Errorf("%w (status %d)", domain.ErrNoMedia, resp.StatusCode)
	}

	if f.probeMedia {
		if err := f.probe(ctx, payload.VideoURL); err != nil {
			f.logger.Warn("media probe failed",
				"media_url", payload.VideoURL,
				"error", err,
			)
			return nil, fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
		}
	}

	title := payload.Title
	if title == "" {
		title = "Untitled"
	}

	return &domain.PreviewMedia{
		MediaURL:     payload.VideoURL,
		Title:        title,
		ThumbnailURL: payload.Thumbnail,
	}, nil
}

// probe checks media URL accessibility without downloading content.
func (f *Fetcher) probe(ctx context.Context, mediaURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, mediaURL, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status code %d", resp.StatusCode)
	}
	return nil
}
