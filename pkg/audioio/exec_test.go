package audioio

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCaptureCommand(t *testing.T) {
	cfg := CaptureConfig()
	cfg.Device = "plughw:1,0"

	got, err := CaptureCommand("linux", cfg)
	if err != nil {
		t.Fatalf("CaptureCommand: %v", err)
	}
	want := []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", "16000", "-c", "1", "-D", "plughw:1,0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("linux = %v", got)
	}

	cfg.DeviceRate = 48000
	got, _ = PlaybackCommand("darwin", cfg)
	if got[0] != "play" || !strings.Contains(strings.Join(got, " "), "-r 48000") {
		t.Errorf("darwin = %v", got)
	}

	if _, err := CaptureCommand("plan9", cfg); !errors.Is(err, ErrNoBackend) {
		t.Errorf("plan9 error = %v", err)
	}
}

func TestExecSource(t *testing.T) {
	requireShell(t)
	cfg := CaptureConfig()
	cfg.FramesPerBuffer = 4
	// 8 bytes per buffer; 20 bytes gives two full buffers and a short one.
	src, err := NewExecSource(cfg, []string{"sh", "-c", "printf 'aabbccddeeffgghhiijj'"}, nil)
	if err != nil {
		t.Fatalf("NewExecSource: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []string
	for {
		chunk, err := src.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, string(chunk))
	}
	want := []string{"aabbccdd", "eeffgghh", "iijj"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunks = %q, want %q", got, want)
	}
	if stats := src.Stats(); stats.ChunksRead != 3 || stats.BytesRead != 20 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestExecSource_Resamples(t *testing.T) {
	requireShell(t)
	cfg := CaptureConfig()
	cfg.DeviceRate = 32000
	cfg.FramesPerBuffer = 2
	// One device buffer is 4 frames (8 bytes) and becomes 2 stream frames.
	src, err := NewExecSource(cfg, []string{"sh", "-c", "printf 'aabbccdd'"}, nil)
	if err != nil {
		t.Fatalf("NewExecSource: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(chunk) != 4 {
		t.Errorf("len = %d, want 4", len(chunk))
	}
}

func TestExecSource_CloseUnblocksRead(t *testing.T) {
	requireShell(t)
	src, err := NewExecSource(CaptureConfig(), []string{"sh", "-c", "exec sleep 30"}, nil)
	if err != nil {
		t.Fatalf("NewExecSource: %v", err)
	}
	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := src.Read(ctx)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	src.Close()

	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("Read after Close = %v, want EOF", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Read still blocked after Close")
	}
}

func TestExecSink(t *testing.T) {
	requireShell(t)
	out := filepath.Join(t.TempDir(), "played.raw")
	sink, err := NewExecSink(PlaybackConfig(), []string{"sh", "-c", "exec cat >> " + out}, nil)
	if err != nil {
		t.Fatalf("NewExecSink: %v", err)
	}

	ctx := context.Background()
	if err := sink.Write(ctx, []byte("xx")); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Write before Start = %v", err)
	}
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sink.Write(ctx, []byte("aabb")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if sink.Stats().Running {
		t.Error("player still running after Clear")
	}
	if err := sink.Write(ctx, []byte("ccdd")); err != nil {
		t.Fatalf("Write after Clear: %v", err)
	}
	if !sink.Stats().Running {
		t.Error("player not restarted by Write")
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stats := sink.Stats()
	if stats.ChunksWritten != 2 || stats.Clears != 1 {
		t.Errorf("Stats = %+v", stats)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("player output missing: %v", err)
	}
	if err := sink.Write(ctx, []byte("ee")); err != io.ErrClosedPipe {
		t.Errorf("Write after Close = %v", err)
	}
}

func TestFactory(t *testing.T) {
	cfg := CaptureConfig()
	cfg.Backend = BackendMock
	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if src.Name() != "mock" {
		t.Errorf("Name = %s", src.Name())
	}

	cfg = PlaybackConfig()
	cfg.Backend = BackendAuto
	cfg.Command = []string{"definitely-not-a-player-binary"}
	sink, err := NewSink(cfg, nil)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if sink.Name() != "mock" {
		t.Errorf("auto with a missing command = %s, want mock", sink.Name())
	}

	cfg.Backend = "pulse"
	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestConfig(t *testing.T) {
	cfg := CaptureConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.BufferBytes() != 2048 {
		t.Errorf("BufferBytes = %d", cfg.BufferBytes())
	}
	if cfg.BufferDuration() != 64*time.Millisecond {
		t.Errorf("BufferDuration = %v", cfg.BufferDuration())
	}
	if cfg.Rate() != 16000 {
		t.Errorf("Rate = %d", cfg.Rate())
	}
	cfg.DeviceRate = 48000
	if cfg.deviceBufferBytes() != 6144 {
		t.Errorf("deviceBufferBytes = %d", cfg.deviceBufferBytes())
	}

	for _, bad := range []func(*Config){
		func(c *Config) { c.SampleRate = 0 },
		func(c *Config) { c.Channels = 0 },
		func(c *Config) { c.FramesPerBuffer = 0 },
		func(c *Config) { c.DeviceRate = -1 },
	} {
		c := CaptureConfig()
		bad(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("Validate accepted %+v", c)
		}
	}
}
