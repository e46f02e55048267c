package domain

import "errors"

// Domain errors.
var (
	// ErrUnknownPlatform is returned for a platform with no configuration.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrInvalidURL is returned when the pasted string is not a valid
	// video URL for the requested platform.
	ErrInvalidURL = errors.New("invalid video URL")

	// ErrNoMedia is returned when the preview endpoint answers without a
	// usable media URL.
	ErrNoMedia = errors.New("no media found for URL")

	// ErrMediaUnavailable is returned when the resolved media URL fails
	// its liveness probe.
	ErrMediaUnavailable = errors.New("media URL is not reachable")

	// ErrPreviewTransport is returned when the preview request itself
	// fails at the transport level.
	ErrPreviewTransport = errors.New("preview request failed")

	// ErrStreamClosed is returned when reading from a closed stream handle.
	ErrStreamClosed = errors.New("progress stream closed")

	// ErrStreamInterrupted is returned when the stream connection breaks
	// before completion was observed.
	ErrStreamInterrupted = errors.New("lost connection to download stream")

	// ErrRetriesExhausted is returned when the reconnect budget for one
	// download attempt has been spent.
	ErrRetriesExhausted = errors.New("download stream retries exhausted")

	// ErrSessionBusy is returned when a command is rejected because the
	// session is not in a state that allows it.
	ErrSessionBusy = errors.New("session has an operation in flight")

	// ErrSessionClosed is returned when commanding a torn-down session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrNoPreview is returned when a download is requested before a
	// successful preview.
	ErrNoPreview = errors.New("no previewed media to download")

	// ErrFileNotFound is returned when the file-retrieval endpoint does
	// not know the completed file identifier.
	ErrFileNotFound = errors.New("downloaded file not found on server")
)

// SessionError wraps an error with session context.
type SessionError struct {
	SessionID SessionID
	Op        string
	Err       error
}

func (e *SessionError) Error() string {
	if e.SessionID != "" {
		return e.Op + " [" + e.SessionID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new SessionError.
func NewSessionError(id SessionID, op string, err error) *SessionError {
	return &SessionError{SessionID: id, Op: op, Err: err}
}
