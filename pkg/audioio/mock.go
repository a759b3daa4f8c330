package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing. It either replays
// scripted chunks and then ends, or generates silence or a sine wave at
// the real-time buffer rate until closed.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan []byte
	stopCh   chan struct{}

	chunksRead atomic.Int64
	bytesRead  atomic.Int64

	script    [][]byte
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithScript makes the mock return chunks in order, then io.EOF.
func WithScript(chunks ...[]byte) MockSourceOption {
	return func(m *MockSource) {
		m.script = chunks
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan []byte, 10)

	if m.script != nil {
		go m.replay(ctx, m.streamCh, m.stopCh)
	} else {
		go m.generateLoop(ctx, m.streamCh, m.stopCh)
	}
	m.logger.Debug("mock audio source started", "sample_rate", m.cfg.SampleRate, "scripted", m.script != nil)
	return nil
}

// replay and generateLoop own streamCh and close it on exit.
func (m *MockSource) replay(ctx context.Context, out chan<- []byte, stop <-chan struct{}) {
	defer close(out)
	for _, chunk := range m.script {
		select {
		case out <- chunk:
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}

func (m *MockSource) generateLoop(ctx context.Context, out chan<- []byte, stop <-chan struct{}) {
	defer close(out)
	ticker := time.NewTicker(m.cfg.BufferDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			select {
			case out <- m.generateChunk():
			default:
				m.logger.Debug("mock source: buffer full, dropping chunk")
			}
		}
	}
}

func (m *MockSource) generateChunk() []byte {
	frames := m.cfg.FramesPerBuffer
	samples := make([]int16, frames*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < frames; i++ {
			v := int16(m.amplitude * 32767 * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = v
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}
	return SamplesToBytes(samples)
}

// Read reads the next audio chunk.
func (m *MockSource) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	ch := m.streamCh
	m.mu.Unlock()
	if ch == nil {
		return nil, ErrNotStarted
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return nil, io.EOF
		}
		m.chunksRead.Add(1)
		m.bytesRead.Add(int64(len(chunk)))
		return chunk, nil
	}
}

// Name returns "mock".
func (m *MockSource) Name() string { return string(BackendMock) }

// Close stops generation. Reads drain buffered chunks, then return io.EOF.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.running {
		m.running = false
		close(m.stopCh)
	}
	return nil
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return SourceStats{
		ChunksRead: m.chunksRead.Load(),
		BytesRead:  m.bytesRead.Load(),
		Running:    running,
		Backend:    m.Name(),
	}
}

// MockSink is a mock audio sink for testing. It records every write.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	written [][]byte
	delay   time.Duration

	chunksWritten atomic.Int64
	bytesWritten  atomic.Int64
	clears        atomic.Int64
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// SetWriteDelay makes each Write block for d, like a device at capacity.
func (m *MockSink) SetWriteDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Write accepts an audio chunk.
func (m *MockSink) Write(ctx context.Context, pcm []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	if !m.running {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.written = append(m.written, append([]byte(nil), pcm...))
	delay := m.delay
	m.mu.Unlock()

	m.chunksWritten.Add(1)
	m.bytesWritten.Add(int64(len(pcm)))

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Clear counts the flush.
func (m *MockSink) Clear() error {
	m.clears.Add(1)
	return nil
}

// Written returns a copy of every chunk written, in order.
func (m *MockSink) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

// Bytes returns everything written, concatenated.
func (m *MockSink) Bytes() []byte {
	var out []byte
	for _, c := range m.Written() {
		out = append(out, c...)
	}
	return out
}

// Name returns "mock".
func (m *MockSink) Name() string { return string(BackendMock) }

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return SinkStats{
		ChunksWritten: m.chunksWritten.Load(),
		BytesWritten:  m.bytesWritten.Load(),
		Clears:        m.clears.Load(),
		Running:       running,
		Backend:       m.Name(),
	}
}
