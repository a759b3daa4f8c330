// Package audio runs the microphone and speaker loops of a voice session.
//
// Capture forwards device buffers to the session without blocking; the
// session drops what it cannot queue. Playback drains the session's output
// queue in bounded sub-chunks and flushes everything queued when the user
// barges in.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-caddy/internal/log"
	"github.com/teslashibe/go-caddy/pkg/audioio"
)

// Uplink accepts microphone audio.
type Uplink interface {
	AddAudio(pcm []byte) bool
}

// Downlink supplies assistant audio and the barge-in flag.
type Downlink interface {
	Output() <-chan []byte
	BargeIn() bool
	ClearBargeIn()
}

// Session is both directions of a voice session. *sonic.Session
// implements it.
type Session interface {
	Uplink
	Downlink
}

// Config tunes the loops.
type Config struct {
	// PollInterval bounds each wait on the output queue so barge-in is
	// noticed while idle.
	PollInterval time.Duration

	// SubChunkBytes is the largest single device write.
	SubChunkBytes int

	// Yield is the pause between sub-chunk writes.
	Yield time.Duration

	// FlushPause is the pause after a barge-in flush.
	FlushPause time.Duration

	// ErrorBackoff is the pause after a failed device write.
	ErrorBackoff time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns 100ms polling, 1024-byte sub-chunks, 1ms yields
// and 50ms pauses.
func DefaultConfig() Config {
	return Config{
		PollInterval:  100 * time.Millisecond,
		SubChunkBytes: 1024,
		Yield:         time.Millisecond,
		FlushPause:    50 * time.Millisecond,
		ErrorBackoff:  50 * time.Millisecond,
	}
}

// Option configures a Streamer.
type Option func(*Config)

// WithPollInterval sets the output queue wait bound.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

// WithSubChunkBytes sets the device write size. It is rounded down to
// whole samples.
func WithSubChunkBytes(n int) Option {
	return func(c *Config) { c.SubChunkBytes = n }
}

// WithPauses sets the yield, flush and error pauses.
func WithPauses(yield, flush, backoff time.Duration) Option {
	return func(c *Config) {
		c.Yield = yield
		c.FlushPause = flush
		c.ErrorBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Stats are loop counters.
type Stats struct {
	ChunksCaptured int64 `json:"chunks_captured"`
	CaptureDropped int64 `json:"capture_dropped"`
	ChunksPlayed   int64 `json:"chunks_played"`
	ChunksFlushed  int64 `json:"chunks_flushed"`
	Flushes        int64 `json:"flushes"`
	WriteErrors    int64 `json:"write_errors"`
}

// Streamer connects a Source and a Sink to a Session.
type Streamer struct {
	src     audioio.Source
	sink    audioio.Sink
	session Session
	cfg     Config
	logger  *slog.Logger

	captured    atomic.Int64
	dropped     atomic.Int64
	played      atomic.Int64
	flushed     atomic.Int64
	flushes     atomic.Int64
	writeErrors atomic.Int64
}

// NewStreamer returns a Streamer. src or sink may be nil to run only one
// direction.
func NewStreamer(src audioio.Source, sink audioio.Sink, session Session, opts ...Option) *Streamer {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	cfg.SubChunkBytes -= cfg.SubChunkBytes % 2
	if cfg.SubChunkBytes <= 0 {
		cfg.SubChunkBytes = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = log.For(log.ComponentAudio)
	}
	return &Streamer{src: src, sink: sink, session: session, cfg: cfg, logger: cfg.Logger}
}

// Run starts the devices and both loops, and blocks until ctx is done or a
// device fails. Devices are closed on return. A capture source that ends
// stops capture only.
func (s *Streamer) Run(ctx context.Context) error {
	if s.src != nil {
		if err := s.src.Start(ctx); err != nil {
			return fmt.Errorf("start capture: %w", err)
		}
		defer s.src.Close()
	}
	if s.sink != nil {
		if err := s.sink.Start(ctx); err != nil {
			return fmt.Errorf("start playback: %w", err)
		}
		defer s.sink.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.src != nil {
		g.Go(func() error { return s.capture(gctx) })
	}
	if s.sink != nil {
		g.Go(func() error { return s.playback(gctx) })
	}
	err := g.Wait()

	st := s.Stats()
	s.logger.Info("audio stopped",
		"captured", st.ChunksCaptured,
		"capture_dropped", st.CaptureDropped,
		"played", st.ChunksPlayed,
		"flushed", st.ChunksFlushed,
		"flushes", st.Flushes,
	)
	return err
}

// Stats returns loop counters.
func (s *Streamer) Stats() Stats {
	return Stats{
		ChunksCaptured: s.captured.Load(),
		CaptureDropped: s.dropped.Load(),
		ChunksPlayed:   s.played.Load(),
		ChunksFlushed:  s.flushed.Load(),
		Flushes:        s.flushes.Load(),
		WriteErrors:    s.writeErrors.Load(),
	}
}

func (s *Streamer) capture(ctx context.Context) error {
	for {
		pcm, err := s.src.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF):
				s.logger.Info("capture source ended")
				return nil
			default:
				return fmt.Errorf("capture: %w", err)
			}
		}
		if len(pcm) == 0 {
			continue
		}
		s.captured.Add(1)
		if !s.session.AddAudio(pcm) {
			s.dropped.Add(1)
		}
	}
}

func (s *Streamer) playback(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	for {
		if s.session.BargeIn() {
			s.flush()
			if sleep(ctx, s.cfg.FlushPause) != nil {
				return nil
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.cfg.PollInterval)

		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case pcm, ok := <-s.session.Output():
			if !ok {
				return nil
			}
			s.play(ctx, pcm)
		}
	}
}

// play writes pcm in sub-chunks, stopping early on barge-in.
func (s *Streamer) play(ctx context.Context, pcm []byte) {
	for off := 0; off < len(pcm); off += s.cfg.SubChunkBytes {
		if ctx.Err() != nil || s.session.BargeIn() {
			return
		}
		end := min(off+s.cfg.SubChunkBytes, len(pcm))
		if err := s.sink.Write(ctx, pcm[off:end]); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.writeErrors.Add(1)
			s.logger.Warn("playback write failed", "error", err)
			_ = sleep(ctx, s.cfg.ErrorBackoff)
			return
		}
		_ = sleep(ctx, s.cfg.Yield)
	}
	s.played.Add(1)
}

// flush discards queued output, clears the device and resets the flag.
func (s *Streamer) flush() {
	n := 0
	out := s.session.Output()
drain:
	for {
		select {
		case _, ok := <-out:
			if !ok {
				break drain
			}
			n++
		default:
			break drain
		}
	}
	if err := s.sink.Clear(); err != nil {
		s.logger.Warn("playback clear failed", "error", err)
	}
	s.session.ClearBargeIn()
	s.flushed.Add(int64(n))
	s.flushes.Add(1)
	s.logger.Debug("playback flushed on barge-in", "chunks", n)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
