// Package audioio captures and plays raw PCM16 little-endian audio.
//
// Backends:
//   - exec: pipes audio through an external recorder and player
//     (arecord/aplay on Linux, sox rec/play on macOS)
//   - mock: synthetic or scripted audio for tests and dry runs
//
// The backend is selected from configuration; "auto" picks exec when the
// platform's recorder is installed and falls back to mock otherwise.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects exec when available, else mock.
	BackendAuto Backend = "auto"
	// BackendExec pipes through an external process.
	BackendExec Backend = "exec"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds one direction's audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	Backend Backend `json:"backend"`

	// SampleRate is the stream sample rate in Hz, the rate the session
	// sends or receives.
	SampleRate int `json:"sample_rate"`

	// DeviceRate is the rate the device runs at. Audio is resampled between
	// DeviceRate and SampleRate when they differ. 0 means SampleRate.
	DeviceRate int `json:"device_rate"`

	// Channels is the number of audio channels.
	Channels int `json:"channels"`

	// FramesPerBuffer is the number of frames per read or sub-chunk write.
	FramesPerBuffer int `json:"frames_per_buffer"`

	// Device is the platform device identifier, e.g. "plughw:1,0".
	// Empty uses the system default.
	Device string `json:"device"`

	// Command overrides the recorder or player command line.
	Command []string `json:"command"`
}

// CaptureConfig returns microphone defaults: 16 kHz mono, 1024 frames.
func CaptureConfig() Config {
	return Config{
		Backend:         BackendAuto,
		SampleRate:      16000,
		Channels:        1,
		FramesPerBuffer: 1024,
	}
}

// PlaybackConfig returns speaker defaults: 24 kHz mono, 1024 frames.
func PlaybackConfig() Config {
	return Config{
		Backend:         BackendAuto,
		SampleRate:      24000,
		Channels:        1,
		FramesPerBuffer: 1024,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.DeviceRate < 0 {
		return fmt.Errorf("device_rate must not be negative, got %d", c.DeviceRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("frames_per_buffer must be positive, got %d", c.FramesPerBuffer)
	}
	switch c.Backend {
	case "", BackendAuto, BackendExec, BackendMock:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	return nil
}

// Rate returns the device rate.
func (c *Config) Rate() int {
	if c.DeviceRate > 0 {
		return c.DeviceRate
	}
	return c.SampleRate
}

// BufferBytes returns the size of one stream-rate buffer in bytes.
func (c *Config) BufferBytes() int {
	return c.FramesPerBuffer * c.Channels * 2
}

// BufferDuration returns the play time of one buffer.
func (c *Config) BufferDuration() time.Duration {
	return time.Duration(c.FramesPerBuffer) * time.Second / time.Duration(c.SampleRate)
}

// deviceBufferBytes is the device-rate read size holding one stream buffer.
func (c *Config) deviceBufferBytes() int {
	frames := c.FramesPerBuffer * c.Rate() / c.SampleRate
	if frames < 1 {
		frames = 1
	}
	return frames * c.Channels * 2
}
