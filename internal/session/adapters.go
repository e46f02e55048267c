package session

import (
	"context"

	"github.com/vidgrab/vidgrab/internal/stream"
)

// StreamClient adapts *stream.Client to the StreamOpener interface.
type StreamClient struct {
	Client *stream.Client
}

// Open opens a progress stream connection.
func (s StreamClient) Open(ctx context.Context, streamURL string) (StreamHandle, error) {
	h, err := s.Client.Open(ctx, streamURL)
	if err != nil {
		return nil, err
	}
	return h, nil
}
