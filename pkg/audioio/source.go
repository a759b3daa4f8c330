package audioio

import (
	"context"
	"errors"
	"io"
)

// ErrNotStarted is returned by Read or Write before Start.
var ErrNotStarted = errors.New("audioio: not started")

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	Start(ctx context.Context) error

	// Read returns the next buffer of stream-rate PCM16 bytes, blocking if
	// necessary. It returns io.EOF when the source has ended or was closed.
	Read(ctx context.Context) ([]byte, error)

	// Name returns the backend name (e.g., "exec", "mock").
	Name() string

	// Close releases all resources. After Close, the source cannot be
	// restarted.
	io.Closer
}

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Start prepares the device.
	Start(ctx context.Context) error

	// Write plays stream-rate PCM16 bytes. It may block while the device
	// buffer is full.
	Write(ctx context.Context, pcm []byte) error

	// Clear discards audio the device has buffered but not played yet.
	Clear() error

	// Name returns the backend name.
	Name() string

	// Close releases all resources.
	io.Closer
}

// SourceStats contains statistics about an audio source.
type SourceStats struct {
	ChunksRead int64  `json:"chunks_read"`
	BytesRead  int64  `json:"bytes_read"`
	Running    bool   `json:"running"`
	Backend    string `json:"backend"`
}

// SinkStats contains statistics about an audio sink.
type SinkStats struct {
	ChunksWritten int64  `json:"chunks_written"`
	BytesWritten  int64  `json:"bytes_written"`
	Clears        int64  `json:"clears"`
	Running       bool   `json:"running"`
	Backend       string `json:"backend"`
}
