// Package transport defines the duplex text channel a sync session runs over.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrUnexpectedFrame is returned by ReadText when the peer sent a non-text frame.
	ErrUnexpectedFrame = errors.New("unexpected non-text frame")
	// ErrClosed is returned when the peer disconnected or the channel is otherwise unusable.
	ErrClosed = errors.New("channel closed")
)

// TextConn sends and receives UTF-8 text frames.
type TextConn interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
}
