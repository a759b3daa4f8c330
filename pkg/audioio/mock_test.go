package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func fastConfig() Config {
	cfg := CaptureConfig()
	cfg.FramesPerBuffer = 160 // 10ms at 16kHz
	return cfg
}

func TestMockSource_StartClose(t *testing.T) {
	src := NewMockSource(fastConfig(), nil)
	ctx := context.Background()

	if _, err := src.Read(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Read before Start: %v", err)
	}
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if err := src.Start(ctx); err != io.ErrClosedPipe {
		t.Errorf("Expected ErrClosedPipe after close, got: %v", err)
	}

	// Reads drain and then end.
	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("Read did not end after Close")
		default:
		}
		if _, err := src.Read(ctx); err == io.EOF {
			break
		}
	}
}

func TestMockSource_Read(t *testing.T) {
	cfg := fastConfig()
	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(chunk) != cfg.BufferBytes() {
		t.Errorf("Expected %d bytes, got %d", cfg.BufferBytes(), len(chunk))
	}
	for _, b := range chunk {
		if b != 0 {
			t.Fatal("Expected silence by default")
		}
	}
	if stats := src.Stats(); stats.ChunksRead != 1 || stats.Backend != "mock" || !stats.Running {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestMockSource_SineWave(t *testing.T) {
	src := NewMockSource(fastConfig(), nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	hasNonZero := false
	for _, s := range BytesToSamples(chunk) {
		if s != 0 {
			hasNonZero = true
			break
		}
	}
	if !hasNonZero {
		t.Error("Expected non-zero samples from sine wave generator")
	}
}

func TestMockSource_Script(t *testing.T) {
	src := NewMockSource(fastConfig(), nil, WithScript([]byte{1, 2}, []byte{3, 4}))
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, want := range [][]byte{{1, 2}, {3, 4}} {
		got, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if string(got) != string(want) {
			t.Errorf("Read = %v, want %v", got, want)
		}
	}
	if _, err := src.Read(ctx); err != io.EOF {
		t.Errorf("Expected EOF after script, got %v", err)
	}
}

func TestMockSource_ContextCancelEndsStream(t *testing.T) {
	src := NewMockSource(fastConfig(), nil)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()
	_, err := src.Read(context.Background())
	for err == nil {
		_, err = src.Read(context.Background())
	}
	if err != io.EOF {
		t.Errorf("Expected EOF after cancel, got %v", err)
	}
}

func TestMockSink_WriteClear(t *testing.T) {
	sink := NewMockSink(PlaybackConfig(), nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Write(ctx, []byte{1}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Write before Start: %v", err)
	}
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	buf := []byte{1, 2, 3, 4}
	if err := sink.Write(ctx, buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	buf[0] = 9
	if err := sink.Write(ctx, []byte{5, 6}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := sink.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if got := string(sink.Bytes()); got != string([]byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Bytes = %v", []byte(got))
	}
	stats := sink.Stats()
	if stats.ChunksWritten != 2 || stats.BytesWritten != 6 || stats.Clears != 1 {
		t.Errorf("Stats = %+v", stats)
	}

	sink.Close()
	if err := sink.Write(ctx, buf); err != io.ErrClosedPipe {
		t.Errorf("Expected ErrClosedPipe after close, got %v", err)
	}
}

func TestMockSink_WriteDelayHonorsContext(t *testing.T) {
	sink := NewMockSink(PlaybackConfig(), nil)
	sink.SetWriteDelay(time.Hour)
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sink.Write(ctx, []byte{1, 2}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Write error = %v, want deadline exceeded", err)
	}
}
