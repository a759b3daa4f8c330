package sonic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTaskSet(t *testing.T) {
	var (
		mu     sync.Mutex
		failed = map[string]string{}
	)
	ts := NewTaskSet(context.Background(), func(key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed[key] = err.Error()
	})

	release := make(chan struct{})
	if !ts.Go("slow", func(ctx context.Context) error { <-release; return nil }) {
		t.Fatal("Go(slow) refused")
	}
	if ts.Go("slow", func(context.Context) error { return nil }) {
		t.Error("duplicate key accepted")
	}
	ts.Go("err", func(context.Context) error { return errors.New("boom") })
	ts.Go("panic", func(context.Context) error { panic("kaboom") })

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ts.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if n := ts.Len(); n != 0 {
		t.Errorf("Len() = %d after completion", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if failed["err"] != "boom" {
		t.Errorf("err task reported %q", failed["err"])
	}
	if failed["panic"] != "sonic: task panicked: kaboom" {
		t.Errorf("panic task reported %q", failed["panic"])
	}
	if _, ok := failed["slow"]; ok {
		t.Error("successful task reported an error")
	}
}

func TestTaskSetCancel(t *testing.T) {
	ts := NewTaskSet(context.Background(), nil)
	stopped := make(chan error, 1)
	ts.Go("wait", func(ctx context.Context) error {
		<-ctx.Done()
		stopped <- ctx.Err()
		return ctx.Err()
	})

	ts.Cancel()
	select {
	case err := <-stopped:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("task ctx error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("task not cancelled")
	}
	if ts.Go("late", func(context.Context) error { return nil }) {
		t.Error("Go accepted work after Cancel")
	}
}

func TestTaskSetWaitTimeout(t *testing.T) {
	ts := NewTaskSet(context.Background(), nil)
	block := make(chan struct{})
	defer close(block)
	ts.Go("stuck", func(context.Context) error { <-block; return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := ts.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
	if ts.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ts.Len())
	}
}
