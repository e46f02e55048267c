// Package stream consumes the backend's download progress stream: a
// server-sent-event channel whose data payloads carry a small prefix-framed
// text protocol (PROGRESS_, DONE_, ERROR_, FALLBACK_). Payloads are decoded
// into tagged events at this boundary; nothing above it sees the wire form.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/domain"
)

// Wire prefixes of the progress protocol. These must match the backend
// byte-for-byte.
const (
	prefixProgress = "PROGRESS_"
	prefixDone     = "DONE_"
	prefixError    = "ERROR_"
	prefixFallback = "FALLBACK_"
)

// Client opens progress stream connections.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a stream client. The underlying HTTP client has no
// overall timeout; the connection stays open for the whole download, with
// only the response headers bounded.
func NewClient(cfg config.DownloadConfig) *Client {
	headerTimeout := cfg.StreamHeaderTimeout
	if headerTimeout <= 0 {
		headerTimeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: headerTimeout,
			},
		},
		userAgent: cfg.UserAgent,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for stream diagnostics.
func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// Open connects to a progress stream endpoint and starts delivering decoded
// events. The returned handle owns the connection; the caller must drain
// Events or call Close.
func (c *Client) Open(ctx context.Context, streamURL string) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", domain.ErrStreamInterrupted, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: status code %d", domain.ErrStreamInterrupted, resp.StatusCode)
	}

	h := &Handle{
		events: make(chan domain.StreamEvent),
		done:   make(chan struct{}),
		cancel: cancel,
		logger: c.logger,
	}
	go h.consume(resp)
	return h, nil
}

// Handle is one open progress stream connection.
type Handle struct {
	events chan domain.StreamEvent
	done   chan struct{}
	cancel context.CancelFunc
	logger *slog.Logger

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// Events returns the decoded event channel. The channel is closed when the
// stream ends for any reason; Err then reports whether the end was clean.
func (h *Handle) Events() <-chan domain.StreamEvent {
	return h.events
}

// Close terminates the connection immediately. Idempotent; after Close no
// further events are delivered.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.cancel()
	})
}

// Err reports why the stream ended. It is meaningful once Events is closed:
// nil for a clean end (terminal event observed or Close called),
// domain.ErrStreamInterrupted for a transport break.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// consume reads SSE frames off the response body until a terminal event,
// a transport error, or Close.
func (h *Handle) consume(resp *http.Response) {
	// Runs last: releases the request context once the end of the stream
	// has been judged, whatever path got us there.
	defer h.Close()
	defer close(h.events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var data []string
	dispatch := func() bool {
		if len(data) == 0 {
			return false
		}
		payload := strings.Join(data, "\n")
		data = data[:0]

		ev, ok := decodePayload(payload)
		if !ok {
			// Unknown prefix: forward-compatible no-op.
			h.logger.Debug("ignoring unknown stream payload", "payload", payload)
			return false
		}

		select {
		case h.events <- ev:
		case <-h.done:
			return true
		}
		return ev.Terminal()
	}

	for scanner.Scan() {
		select {
		case <-h.done:
			return
		default:
		}

		line := scanner.Text()
		switch {
		case line == "":
			if dispatch() {
				h.Close()
				return
			}
		case strings.HasPrefix(line, ":"):
			// SSE comment / keep-alive.
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event:/id:/retry: fields are not part of this protocol.
		}
	}

	// The server may end the body right after the last frame without a
	// trailing blank line; dispatch what is buffered before judging the end.
	if dispatch() {
		h.Close()
		return
	}

	select {
	case <-h.done:
		// Closed locally; not an error.
	default:
		if err := scanner.Err(); err != nil {
			h.setErr(fmt.Errorf("%w: %v", domain.ErrStreamInterrupted, err))
		} else {
			h.setErr(domain.ErrStreamInterrupted)
		}
	}
}

// decodePayload translates one wire payload into a tagged event. Unknown
// prefixes and malformed progress values yield ok=false.
func decodePayload(payload string) (domain.StreamEvent, bool) {
	switch {
	case strings.HasPrefix(payload, prefixProgress):
		n, err := strconv.Atoi(strings.TrimPrefix(payload, prefixProgress))
		if err != nil {
			return domain.StreamEvent{}, false
		}
		return domain.StreamEvent{Kind: domain.StreamProgress, Percent: n}, true

	case strings.HasPrefix(payload, prefixDone):
		return domain.StreamEvent{
			Kind:    domain.StreamCompleted,
			FileID:  strings.TrimPrefix(payload, prefixDone),
			Percent: 100,
		}, true

	case strings.HasPrefix(payload, prefixError):
		return domain.StreamEvent{
			Kind:    domain.StreamFailed,
			Message: strings.TrimPrefix(payload, prefixError),
		}, true

	case strings.HasPrefix(payload, prefixFallback):
		return domain.StreamEvent{
			Kind:        domain.StreamFallback,
			FallbackURL: strings.TrimPrefix(payload, prefixFallback),
		}, true
	}
	return domain.StreamEvent{}, false
}

// EncodePayload produces the wire form of an event. Used by the local API
// server to relay session progress with the same framing the backends emit.
func EncodePayload(ev domain.StreamEvent) string {
	switch ev.Kind {
	case domain.StreamProgress:
		return prefixProgress + strconv.Itoa(ev.Percent)
	case domain.StreamCompleted:
		return prefixDone + ev.FileID
	case domain.StreamFailed:
		return prefixError + ev.Message
	case domain.StreamFallback:
		return prefixFallback + ev.FallbackURL
	}
	return ""
}
