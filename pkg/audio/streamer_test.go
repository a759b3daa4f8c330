package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-caddy/pkg/audioio"
)

type fakeSession struct {
	mu      sync.Mutex
	added   [][]byte
	limit   int
	out     chan []byte
	bargeIn atomic.Bool
}

func newFakeSession(limit int) *fakeSession {
	return &fakeSession{limit: limit, out: make(chan []byte, 16)}
}

func (f *fakeSession) AddAudio(pcm []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limit > 0 && len(f.added) >= f.limit {
		return false
	}
	f.added = append(f.added, pcm)
	return true
}

func (f *fakeSession) Output() <-chan []byte { return f.out }
func (f *fakeSession) BargeIn() bool         { return f.bargeIn.Load() }
func (f *fakeSession) ClearBargeIn()         { f.bargeIn.Store(false) }

func (f *fakeSession) addedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}

type failingSource struct{}

func (failingSource) Start(context.Context) error { return nil }
func (failingSource) Read(context.Context) ([]byte, error) {
	return nil, errors.New("device unplugged")
}
func (failingSource) Close() error { return nil }
func (failingSource) Name() string { return "failing" }

func fastOpts() []Option {
	return []Option{
		WithPollInterval(5 * time.Millisecond),
		WithPauses(0, time.Millisecond, time.Millisecond),
	}
}

func runStreamer(t *testing.T, s *Streamer) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-errc:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return")
			return nil
		}
	}
}

func TestCaptureForwardsAndCountsDrops(t *testing.T) {
	src := audioio.NewMockSource(audioio.CaptureConfig(), nil,
		audioio.WithScript([]byte{1, 2}, []byte{3, 4}, nil, []byte{5, 6}))
	sess := newFakeSession(2)
	s := NewStreamer(src, nil, sess, fastOpts()...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx), "a finished source ends capture cleanly")

	assert.Equal(t, 2, sess.addedCount())
	st := s.Stats()
	assert.EqualValues(t, 3, st.ChunksCaptured, "empty buffers are skipped")
	assert.EqualValues(t, 1, st.CaptureDropped)
}

func TestCaptureErrorStopsPlayback(t *testing.T) {
	sink := audioio.NewMockSink(audioio.PlaybackConfig(), nil)
	s := NewStreamer(failingSource{}, sink, newFakeSession(0), fastOpts()...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
	assert.NoError(t, ctx.Err(), "Run returned because of the device, not the deadline")
}

func TestRunStartError(t *testing.T) {
	src := audioio.NewMockSource(audioio.CaptureConfig(), nil)
	require.NoError(t, src.Close())

	err := NewStreamer(src, nil, newFakeSession(0)).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start capture")
}

func TestPlaybackWritesSubChunks(t *testing.T) {
	sink := audioio.NewMockSink(audioio.PlaybackConfig(), nil)
	sess := newFakeSession(0)
	s := NewStreamer(nil, sink, sess, append(fastOpts(), WithSubChunkBytes(5))...)
	stop := runStreamer(t, s)

	sess.out <- []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	sess.out <- []byte{10, 11}

	require.Eventually(t, func() bool { return len(sink.Bytes()) == 12 }, time.Second, 2*time.Millisecond)
	require.NoError(t, stop())

	var sizes []int
	for _, c := range sink.Written() {
		sizes = append(sizes, len(c))
	}
	assert.Equal(t, []int{4, 4, 2, 2}, sizes, "sub-chunks are whole samples")
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, sink.Bytes())
	assert.EqualValues(t, 2, s.Stats().ChunksPlayed)
}

func TestPlaybackFlushesOnBargeIn(t *testing.T) {
	sink := audioio.NewMockSink(audioio.PlaybackConfig(), nil)
	sess := newFakeSession(0)
	for i := byte(0); i < 3; i++ {
		sess.out <- []byte{i, i}
	}
	sess.bargeIn.Store(true)

	s := NewStreamer(nil, sink, sess, fastOpts()...)
	stop := runStreamer(t, s)

	require.Eventually(t, func() bool { return s.Stats().Flushes == 1 }, time.Second, 2*time.Millisecond)
	assert.False(t, sess.BargeIn(), "flag cleared after flush")
	assert.EqualValues(t, 3, s.Stats().ChunksFlushed)
	assert.Empty(t, sink.Written(), "nothing queued before the barge-in is played")
	assert.EqualValues(t, 1, sink.Stats().Clears)

	sess.out <- []byte{7, 7}
	require.Eventually(t, func() bool { return len(sink.Bytes()) == 2 }, time.Second, 2*time.Millisecond)
	require.NoError(t, stop())
}

func TestPlaybackStopsMidChunkOnBargeIn(t *testing.T) {
	sink := audioio.NewMockSink(audioio.PlaybackConfig(), nil)
	sink.SetWriteDelay(10 * time.Millisecond)
	sess := newFakeSession(0)
	s := NewStreamer(nil, sink, sess, append(fastOpts(), WithSubChunkBytes(2))...)
	stop := runStreamer(t, s)

	sess.out <- make([]byte, 200)
	sess.out <- make([]byte, 200)
	require.Eventually(t, func() bool { return len(sink.Written()) >= 2 }, time.Second, time.Millisecond)
	sess.bargeIn.Store(true)

	require.Eventually(t, func() bool { return s.Stats().Flushes == 1 }, time.Second, 2*time.Millisecond)
	require.NoError(t, stop())

	assert.Less(t, len(sink.Written()), 100, "the interrupted chunk was not played out")
	assert.EqualValues(t, 1, s.Stats().ChunksFlushed, "the second chunk was discarded")
	assert.EqualValues(t, 0, s.Stats().ChunksPlayed)
}

func TestNewStreamerDefaults(t *testing.T) {
	s := NewStreamer(nil, nil, newFakeSession(0), WithSubChunkBytes(7), WithPollInterval(0))
	assert.Equal(t, 6, s.cfg.SubChunkBytes)
	assert.Equal(t, 100*time.Millisecond, s.cfg.PollInterval)

	s = NewStreamer(nil, nil, newFakeSession(0), WithSubChunkBytes(1))
	assert.Equal(t, 1024, s.cfg.SubChunkBytes)
}
