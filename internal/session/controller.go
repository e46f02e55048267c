// Package session implements the download session state machine: one user
// interaction cycle of validate -> preview -> download for a single
// platform. The controller is the only mutator of session state; everything
// else sees snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/domain"
	"github.com/vidgrab/vidgrab/internal/history"
	"github.com/vidgrab/vidgrab/internal/platform"
)

// PreviewFetcher resolves a validated URL into playable media metadata.
type PreviewFetcher interface {
	Fetch(ctx context.Context, rule platform.Rule, videoURL string) (*domain.PreviewMedia, error)
}

// StreamHandle is one open progress stream connection.
type StreamHandle interface {
	Events() <-chan domain.StreamEvent
	Close()
	Err() error
}

// StreamOpener opens progress stream connections.
type StreamOpener interface {
	Open(ctx context.Context, streamURL string) (StreamHandle, error)
}

// FileRetriever fetches a completed file and persists it locally.
type FileRetriever interface {
	Retrieve(ctx context.Context, rule platform.Rule, fileID string) (string, error)
}

// ClipboardReader is a host capability for the paste flow.
type ClipboardReader interface {
	Read() (string, error)
}

// Deps bundles the collaborators a controller drives.
type Deps struct {
	Previewer PreviewFetcher
	Streams   StreamOpener
	Retriever FileRetriever
	History   history.Store // nil disables history recording
	Logger    *slog.Logger
}

// Controller owns one Session and drives it through its state machine.
type Controller struct {
	rule platform.Rule
	cfg  config.DownloadConfig
	deps Deps

	mu           sync.Mutex
	sess         domain.Session
	handle       StreamHandle
	previewToken string
	videoURL     string
	closed       bool

	// gen invalidates an in-flight download cycle. Reset bumps it so a
	// download waiting out a reconnect delay does not reopen the stream
	// for a session the user already reset.
	gen uint64

	subMu       sync.Mutex
	subscribers map[uint64]chan domain.StreamEvent
	subSeq      uint64
}

// New creates a controller in the Idle state.
func New(cfg config.DownloadConfig, rule platform.Rule, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Controller{
		rule: rule,
		cfg:  cfg,
		deps: deps,
		sess: domain.Session{
			ID:        domain.SessionID(uuid.New().String()),
			Platform:  rule.Platform,
			State:     domain.StateIdle,
			CreatedAt: time.Now(),
		},
		subscribers: make(map[uint64]chan domain.StreamEvent),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() domain.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.ID
}

// Session returns a snapshot of the current session state.
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Snapshot()
}

// Validate reports whether raw is a well-formed URL for this session's
// platform. Cheap; suitable for per-keystroke calls.
func (c *Controller) Validate(raw string) bool {
	return c.rule.Validate(raw)
}

// Preview validates raw and resolves it through the preview endpoint.
// A later Preview call supersedes an earlier in-flight one: the stale
// result is discarded by freshness-token comparison, never applied.
func (c *Controller) Preview(ctx context.Context, raw string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}

	videoURL, err := c.rule.Parse(raw)
	if err != nil {
		// Validation errors stay inline: editable input, no state change.
		c.mu.Unlock()
		return domain.NewSessionError(c.sess.ID, "preview", err)
	}

	token := uuid.New().String()
	c.previewToken = token
	c.sess.RawInput = raw
	c.sess.PreviewMedia = nil
	c.sess.LastError = ""
	c.sess.FallbackURL = ""
	c.sess.State = domain.StatePreviewing
	c.videoURL = videoURL
	id := c.sess.ID
	c.mu.Unlock()

	media, fetchErr := c.deps.Previewer.Fetch(ctx, c.rule, videoURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.previewToken != token {
		// Superseded or torn down while in flight; discard quietly.
		return nil
	}

	if fetchErr != nil {
		c.sess.State = domain.StateFailed
		c.sess.LastError = fetchErr.Error()
		return domain.NewSessionError(id, "preview", fetchErr)
	}

	c.sess.PreviewMedia = media
	c.sess.State = domain.StatePreviewed
	c.deps.Logger.Info("preview resolved",
		"session_id", id,
		"platform", c.sess.Platform,
		"title", media.Title,
	)
	return nil
}

// Download runs the progress stream for the previewed URL to completion,
// applying the reconnect policy on transport breaks. It blocks until the
// cycle reaches Done or Failed. Starting a download closes any stream left
// open by a prior one and resets the retry counter.
func (c *Controller) Download(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if c.sess.PreviewMedia == nil {
		c.mu.Unlock()
		return domain.NewSessionError(c.sess.ID, "download", domain.ErrNoPreview)
	}
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
	c.sess.State = domain.StateDownloading
	c.sess.ProgressPercent = 0
	c.sess.RetryCount = 0
	c.sess.LastError = ""
	c.sess.FallbackURL = ""
	c.gen++
	gen := c.gen
	videoURL := c.videoURL
	id := c.sess.ID
	c.mu.Unlock()

	streamURL := c.rule.StreamURL(videoURL)

	for {
		done, err := c.runStreamAttempt(ctx, streamURL, gen)
		if done {
			return err
		}

		// Transport break below 100%: exactly one delayed reopen per break,
		// bounded by the attempt budget.
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return domain.ErrSessionClosed
		}
		if c.gen != gen {
			// Reset during the attempt; the cycle is void.
			c.mu.Unlock()
			return nil
		}
		if c.sess.RetryCount >= c.cfg.MaxReconnects {
			c.sess.State = domain.StateFailed
			c.sess.LastError = domain.ErrRetriesExhausted.Error()
			c.mu.Unlock()
			c.broadcast(domain.StreamEvent{Kind: domain.StreamFailed, Message: domain.ErrRetriesExhausted.Error()})
			return domain.NewSessionError(id, "download", domain.ErrRetriesExhausted)
		}
		c.sess.RetryCount++
		attempt := c.sess.RetryCount
		c.mu.Unlock()

		c.deps.Logger.Warn("lost connection to download stream, reconnecting",
			"session_id", id,
			"attempt", attempt,
			"delay", c.cfg.ReconnectDelay,
		)

		select {
		case <-ctx.Done():
			c.fail(ctx.Err())
			return domain.NewSessionError(id, "download", ctx.Err())
		case <-time.After(c.cfg.ReconnectDelay):
		}

		c.mu.Lock()
		stale := c.closed || c.gen != gen
		wasClosed := c.closed
		c.mu.Unlock()
		if stale {
			// Reset or Close while waiting out the delay; do not reopen.
			if wasClosed {
				return domain.ErrSessionClosed
			}
			return nil
		}
	}
}

// runStreamAttempt opens the stream once and consumes it. done=false means
// the connection broke below 100% and the reconnect policy applies.
func (c *Controller) runStreamAttempt(ctx context.Context, streamURL string, gen uint64) (done bool, err error) {
	id := c.ID()

	h, err := c.deps.Streams.Open(ctx, streamURL)
	if err != nil {
		if errors.Is(err, domain.ErrStreamInterrupted) {
			return false, nil
		}
		c.fail(err)
		return true, domain.NewSessionError(id, "download", err)
	}

	c.mu.Lock()
	if c.closed || c.gen != gen {
		wasClosed := c.closed
		c.mu.Unlock()
		h.Close()
		if wasClosed {
			return true, domain.ErrSessionClosed
		}
		return true, nil
	}
	c.handle = h
	c.mu.Unlock()

	// Progress may not decrease within one attempt; a fresh attempt starts
	// over.
	attemptPercent := 0

	for ev := range h.Events() {
		switch ev.Kind {
		case domain.StreamProgress:
			if ev.Percent < attemptPercent {
				continue
			}
			attemptPercent = ev.Percent
			c.setProgress(ev.Percent)
			c.broadcast(ev)

		case domain.StreamCompleted:
			h.Close()
			c.setProgress(100)
			return true, c.complete(ctx, ev)

		case domain.StreamFailed:
			h.Close()
			c.mu.Lock()
			c.sess.State = domain.StateFailed
			c.sess.LastError = ev.Message
			c.handle = nil
			c.mu.Unlock()
			c.broadcast(ev)
			return true, domain.NewSessionError(id, "download", fmt.Errorf("server reported: %s", ev.Message))

		case domain.StreamFallback:
			// Server could not download; the user finishes manually at the
			// external URL. The cycle ends without a file.
			h.Close()
			c.mu.Lock()
			c.sess.State = domain.StateDone
			c.sess.FallbackURL = ev.FallbackURL
			c.handle = nil
			c.mu.Unlock()
			c.broadcast(ev)
			c.deps.Logger.Info("fallback to manual download",
				"session_id", id,
				"fallback_url", ev.FallbackURL,
			)
			return true, nil
		}
	}

	// Stream ended without a terminal event.
	c.mu.Lock()
	c.handle = nil
	closed := c.closed
	percent := c.sess.ProgressPercent
	c.mu.Unlock()

	if closed {
		return true, domain.ErrSessionClosed
	}
	if h.Err() == nil {
		// Closed locally (Reset or a superseding download).
		return true, nil
	}
	if percent >= 100 {
		// Break after 100%: presumed complete, never retried. No DONE_
		// frame arrived, so there is no file identifier to retrieve.
		c.mu.Lock()
		c.sess.State = domain.StateDone
		c.mu.Unlock()
		c.broadcast(domain.StreamEvent{Kind: domain.StreamCompleted, Percent: 100})
		c.deps.Logger.Warn("stream broke after 100%, presuming complete", "session_id", id)
		return true, nil
	}
	return false, nil
}

// complete performs the follow-up file retrieval and finalizes the cycle.
func (c *Controller) complete(ctx context.Context, ev domain.StreamEvent) error {
	c.mu.Lock()
	c.handle = nil
	id := c.sess.ID
	media := c.sess.PreviewMedia
	rawURL := c.sess.RawInput
	c.mu.Unlock()

	path, err := c.deps.Retriever.Retrieve(ctx, c.rule, ev.FileID)
	if err != nil {
		c.fail(err)
		c.broadcast(domain.StreamEvent{Kind: domain.StreamFailed, Message: err.Error()})
		return domain.NewSessionError(id, "save", err)
	}

	c.mu.Lock()
	c.sess.State = domain.StateDone
	c.sess.FileID = ev.FileID
	c.sess.SavedPath = path
	c.mu.Unlock()
	c.broadcast(ev)

	c.deps.Logger.Info("download complete",
		"session_id", id,
		"file_id", ev.FileID,
		"path", path,
	)

	c.recordHistory(ctx, rawURL, media)
	return nil
}

// recordHistory appends a completed download to the history store. Failures
// are logged and swallowed: the download already succeeded.
func (c *Controller) recordHistory(ctx context.Context, rawURL string, media *domain.PreviewMedia) {
	if c.deps.History == nil {
		return
	}
	entry := domain.HistoryEntry{
		ID:       uuid.New().String(),
		Platform: c.rule.Platform,
		URL:      rawURL,
		Title:    "Untitled",
		SavedAt:  time.Now(),
	}
	if media != nil {
		entry.Title = media.Title
		entry.MediaURL = media.MediaURL
	}
	if err := c.deps.History.Append(ctx, entry); err != nil {
		c.deps.Logger.Warn("failed to record download history",
			"session_id", c.ID(),
			"error", err,
		)
	}
}

// Reset returns the session to Idle, clearing input, preview, progress and
// error, and closing any open stream. The "another video" action.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
	c.gen++
	c.previewToken = ""
	c.videoURL = ""
	c.sess.RawInput = ""
	c.sess.State = domain.StateIdle
	c.sess.PreviewMedia = nil
	c.sess.ProgressPercent = 0
	c.sess.RetryCount = 0
	c.sess.LastError = ""
	c.sess.FallbackURL = ""
	c.sess.FileID = ""
	c.sess.SavedPath = ""
}

// Close tears the session down: the stream connection is closed and no
// further event delivery or retry scheduling happens. Safe to call
// repeatedly.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
	c.mu.Unlock()

	c.subMu.Lock()
	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
	c.subMu.Unlock()
}

func (c *Controller) setProgress(percent int) {
	c.mu.Lock()
	if percent > c.sess.ProgressPercent {
		c.sess.ProgressPercent = percent
	}
	c.mu.Unlock()
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.sess.State = domain.StateFailed
	c.sess.LastError = err.Error()
	c.handle = nil
	c.mu.Unlock()
}

// Subscribe registers for the session's decoded stream events (progress,
// completion, failure, fallback). The returned cancel removes the
// subscription; the channel closes on cancel or session Close.
func (c *Controller) Subscribe() (<-chan domain.StreamEvent, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.subSeq++
	id := c.subSeq
	ch := make(chan domain.StreamEvent, 16)
	c.subscribers[id] = ch

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			close(sub)
			delete(c.subscribers, id)
		}
	}
	return ch, cancel
}

// broadcast fans an event out to subscribers. Slow subscribers drop events
// rather than stall the session.
func (c *Controller) broadcast(ev domain.StreamEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
