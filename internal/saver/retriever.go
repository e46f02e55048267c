package saver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/domain"
	"github.com/vidgrab/vidgrab/internal/platform"
)

// Retriever performs the follow-up file request after the stream announces
// completion, and hands the bytes to a FileSaver.
type Retriever struct {
	client    *http.Client
	userAgent string
	saver     FileSaver
	logger    *slog.Logger
}

// NewRetriever creates a retriever. The HTTP client has no overall timeout;
// retrieved files can be large.
func NewRetriever(cfg config.DownloadConfig, fs FileSaver) *Retriever {
	return &Retriever{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.StreamHeaderTimeout,
			},
		},
		userAgent: cfg.UserAgent,
		saver:     fs,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for retrieval diagnostics.
func (r *Retriever) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// Retrieve fetches the completed file identified by fileID from the
// platform backend and saves it under that name.
func (r *Retriever) Retrieve(ctx context.Context, rule platform.Rule, fileID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rule.FileURL(fileID), nil)
	if err != nil {
		return "", fmt.Errorf("create file request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", domain.ErrFileNotFound, fileID)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("fetch file: unexpected status code %d", resp.StatusCode)
	}

	path, err := r.saver.Save(ctx, fileID, resp.Body)
	if err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}

	r.logger.Info("file saved",
		"file_id", fileID,
		"path", path,
		"size", resp.ContentLength,
	)
	return path, nil
}
