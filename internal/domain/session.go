package domain

import (
	"time"
)

// SessionID is a unique identifier for a download session.
type SessionID string

// String returns the string representation of the SessionID.
func (id SessionID) String() string {
	return string(id)
}

// SessionState represents the current phase of a download session.
type SessionState string

const (
	StateIdle        SessionState = "idle"
	StatePreviewing  SessionState = "previewing"
	StatePreviewed   SessionState = "previewed"
	StateDownloading SessionState = "downloading"
	StateDone        SessionState = "done"
	StateFailed      SessionState = "failed"
)

// String returns the string representation of the SessionState.
func (s SessionState) String() string {
	return string(s)
}

// IsActive reports whether the session has in-flight work.
func (s SessionState) IsActive() bool {
	return s == StatePreviewing || s == StateDownloading
}

// IsTerminal reports whether the cycle has finished. Terminal states are
// user-recoverable via Reset, not final for the session object.
func (s SessionState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// PreviewMedia is the resolved result of a preview fetch.
type PreviewMedia struct {
	MediaURL     string `json:"media_url"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Session is one user interaction cycle (input -> preview -> download) for
// a single platform. All mutation goes through the session controller.
type Session struct {
	ID              SessionID
	Platform        Platform
	RawInput        string
	State           SessionState
	PreviewMedia    *PreviewMedia
	ProgressPercent int
	RetryCount      int
	LastError       string
	FallbackURL     string
	FileID          string
	SavedPath       string
	CreatedAt       time.Time
}

// Snapshot returns a copy safe to hand to callers while the controller
// keeps mutating the original.
func (s *Session) Snapshot() Session {
	out := *s
	if s.PreviewMedia != nil {
		pm := *s.PreviewMedia
		out.PreviewMedia = &pm
	}
	return out
}
