package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrNoBackend means the platform has no default recorder or player.
var ErrNoBackend = errors.New("audioio: no exec backend for this platform")

// CaptureCommand returns the default recorder command line for goos.
func CaptureCommand(goos string, cfg Config) ([]string, error) {
	rate, ch := strconv.Itoa(cfg.Rate()), strconv.Itoa(cfg.Channels)
	switch goos {
	case "linux":
		argv := []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch}
		if cfg.Device != "" {
			argv = append(argv, "-D", cfg.Device)
		}
		return argv, nil
	case "darwin":
		return []string{"rec", "-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-r", rate, "-c", ch, "-"}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, goos)
	}
}

// PlaybackCommand returns the default player command line for goos.
func PlaybackCommand(goos string, cfg Config) ([]string, error) {
	rate, ch := strconv.Itoa(cfg.Rate()), strconv.Itoa(cfg.Channels)
	switch goos {
	case "linux":
		argv := []string{"aplay", "-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch}
		if cfg.Device != "" {
			argv = append(argv, "-D", cfg.Device)
		}
		return argv, nil
	case "darwin":
		return []string{"play", "-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-r", rate, "-c", ch, "-"}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, goos)
	}
}

// ExecSource captures audio from a recorder process's stdout.
type ExecSource struct {
	cfg    Config
	argv   []string
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	out    *os.File
	closed bool

	chunksRead atomic.Int64
	bytesRead  atomic.Int64
}

// NewExecSource returns a source running argv for capture.
func NewExecSource(cfg Config, argv []string, logger *slog.Logger) (*ExecSource, error) {
	if len(argv) == 0 {
		return nil, errors.New("audioio: empty recorder command")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecSource{cfg: cfg, argv: argv, logger: logger}, nil
}

// Start runs the recorder until ctx is done or Close.
func (s *ExecSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.cmd != nil {
		return nil
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("recorder pipe: %w", err)
	}
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("start %s: %w", s.argv[0], err)
	}
	pw.Close()
	s.cmd, s.out = cmd, pr
	s.logger.Info("recorder started",
		"command", s.argv[0],
		"rate", s.cfg.Rate(),
		"channels", s.cfg.Channels,
	)
	return nil
}

// Read returns one buffer. A short final buffer is returned before io.EOF.
func (s *ExecSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := s.out
	s.mu.Unlock()
	if out == nil {
		return nil, ErrNotStarted
	}

	buf := make([]byte, s.cfg.deviceBufferBytes())
	n, err := io.ReadFull(out, buf)
	n -= n % 2
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
			err = io.EOF
		}
		return nil, err
	}
	s.chunksRead.Add(1)
	s.bytesRead.Add(int64(n))
	return ResampleBytes(buf[:n], s.cfg.Rate(), s.cfg.SampleRate), nil
}

// Name returns "exec".
func (s *ExecSource) Name() string { return string(BackendExec) }

// Close kills the recorder. Pending reads return io.EOF.
func (s *ExecSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cmd == nil {
		return nil
	}
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	return s.out.Close()
}

// Stats returns source statistics.
func (s *ExecSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.cmd != nil && !s.closed
	s.mu.Unlock()
	return SourceStats{
		ChunksRead: s.chunksRead.Load(),
		BytesRead:  s.bytesRead.Load(),
		Running:    running,
		Backend:    s.Name(),
	}
}
