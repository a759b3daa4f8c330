package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// NewSource creates a capture source for cfg. BackendAuto uses the exec
// recorder when it is installed, or a silent mock otherwise.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	argv := cfg.Command
	if len(argv) == 0 && cfg.Backend != BackendMock {
		var err error
		if argv, err = CaptureCommand(runtime.GOOS, cfg); err != nil && cfg.Backend == BackendExec {
			return nil, err
		}
	}
	backend := resolve(cfg.Backend, argv, logger)

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"device_rate", cfg.Rate(),
		"channels", cfg.Channels,
		"frames", cfg.FramesPerBuffer,
	)

	switch backend {
	case BackendExec:
		return NewExecSource(cfg, argv, logger)
	default:
		return NewMockSource(cfg, logger), nil
	}
}

// NewSink creates a playback sink for cfg, resolving BackendAuto like
// NewSource.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	argv := cfg.Command
	if len(argv) == 0 && cfg.Backend != BackendMock {
		var err error
		if argv, err = PlaybackCommand(runtime.GOOS, cfg); err != nil && cfg.Backend == BackendExec {
			return nil, err
		}
	}
	backend := resolve(cfg.Backend, argv, logger)

	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"device_rate", cfg.Rate(),
		"channels", cfg.Channels,
	)

	switch backend {
	case BackendExec:
		return NewExecSink(cfg, argv, logger)
	default:
		return NewMockSink(cfg, logger), nil
	}
}

func resolve(b Backend, argv []string, logger *slog.Logger) Backend {
	switch b {
	case BackendExec, BackendMock:
		return b
	}
	if len(argv) == 0 {
		return BackendMock
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		logger.Warn("audio command not found, using mock backend", "command", argv[0])
		return BackendMock
	}
	return BackendExec
}

// AvailableBackends returns the backends usable on this platform.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	argv, err := CaptureCommand(runtime.GOOS, CaptureConfig())
	if err != nil {
		return backends
	}
	if _, err := exec.LookPath(argv[0]); err == nil {
		backends = append(backends, BackendExec)
	}
	return backends
}
