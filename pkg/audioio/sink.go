package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
)

// ExecSink plays audio by writing it to a player process's stdin. Clear
// kills the player so its buffered audio is dropped; the next Write starts
// a fresh one.
type ExecSink struct {
	cfg    Config
	argv   []string
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	closed bool

	chunksWritten atomic.Int64
	bytesWritten  atomic.Int64
	clears        atomic.Int64
}

// NewExecSink returns a sink running argv for playback.
func NewExecSink(cfg Config, argv []string, logger *slog.Logger) (*ExecSink, error) {
	if len(argv) == 0 {
		return nil, errors.New("audioio: empty player command")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecSink{cfg: cfg, argv: argv, logger: logger}, nil
}

// Start starts the player. Players started later by Write reuse ctx.
func (s *ExecSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.ctx = ctx
	return s.startLocked()
}

func (s *ExecSink) startLocked() error {
	if s.cmd != nil {
		return nil
	}
	cmd := exec.CommandContext(s.ctx, s.argv[0], s.argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.argv[0], err)
	}
	s.cmd, s.stdin = cmd, stdin
	s.logger.Debug("player started", "command", s.argv[0], "pid", cmd.Process.Pid)
	return nil
}

func (s *ExecSink) stopLocked() {
	if s.cmd == nil {
		return
	}
	_ = s.stdin.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd, s.stdin = nil, nil
}

// Write sends pcm to the player, restarting it if it was cleared or died.
func (s *ExecSink) Write(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.ctx == nil {
		return ErrNotStarted
	}
	if err := s.startLocked(); err != nil {
		return err
	}

	data := ResampleBytes(pcm, s.cfg.SampleRate, s.cfg.Rate())
	if _, err := s.stdin.Write(data); err != nil {
		s.stopLocked()
		return fmt.Errorf("write to player: %w", err)
	}
	s.chunksWritten.Add(1)
	s.bytesWritten.Add(int64(len(pcm)))
	return nil
}

// Clear stops the player, discarding whatever it buffered.
func (s *ExecSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.clears.Add(1)
	return nil
}

// Name returns "exec".
func (s *ExecSink) Name() string { return string(BackendExec) }

// Close stops the player.
func (s *ExecSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopLocked()
	return nil
}

// Stats returns sink statistics.
func (s *ExecSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.cmd != nil
	s.mu.Unlock()
	return SinkStats{
		ChunksWritten: s.chunksWritten.Load(),
		BytesWritten:  s.bytesWritten.Load(),
		Clears:        s.clears.Load(),
		Running:       running,
		Backend:       s.Name(),
	}
}
