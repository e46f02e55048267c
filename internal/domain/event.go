package domain

// StreamEventKind discriminates decoded progress-stream events.
type StreamEventKind string

const (
	StreamProgress  StreamEventKind = "progress"
	StreamCompleted StreamEventKind = "completed"
	StreamFailed    StreamEventKind = "failed"
	StreamFallback  StreamEventKind = "fallback"
)

// StreamEvent is a single decoded event from the download progress stream.
// Exactly one payload field is meaningful per Kind:
//
//	Progress  -> Percent
//	Completed -> FileID (server-side file identifier; implies Percent=100)
//	Failed    -> Message
//	Fallback  -> FallbackURL
type StreamEvent struct {
	Kind        StreamEventKind
	Percent     int
	FileID      string
	Message     string
	FallbackURL string
}

// Terminal reports whether no further events follow this one on the stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == StreamCompleted || e.Kind == StreamFailed || e.Kind == StreamFallback
}
