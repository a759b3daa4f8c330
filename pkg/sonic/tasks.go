package sonic

import (
	"context"
	"fmt"
	"sync"
)

// TaskSet supervises concurrent work keyed by name. Entries are removed
// when their work returns; errors and panics go to a single handler.
type TaskSet struct {
	ctx     context.Context
	cancel  context.CancelFunc
	onError func(key string, err error)

	mu     sync.Mutex
	tasks  map[string]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewTaskSet returns a TaskSet whose tasks run under ctx. onError may be nil.
func NewTaskSet(ctx context.Context, onError func(key string, err error)) *TaskSet {
	ctx, cancel := context.WithCancel(ctx)
	if onError == nil {
		onError = func(string, error) {}
	}
	return &TaskSet{
		ctx:     ctx,
		cancel:  cancel,
		onError: onError,
		tasks:   make(map[string]context.CancelFunc),
	}
}

// Go runs fn under key. It returns false if the set is cancelled or key is
// already running.
func (t *TaskSet) Go(key string, fn func(ctx context.Context) error) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	if _, dup := t.tasks[key]; dup {
		t.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(t.ctx)
	t.tasks[key] = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer t.remove(key)
		defer func() {
			if r := recover(); r != nil {
				t.onError(key, fmt.Errorf("sonic: task panicked: %v", r))
			}
		}()
		if err := fn(ctx); err != nil {
			t.onError(key, err)
		}
	}()
	return true
}

func (t *TaskSet) remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.tasks[key]; ok {
		cancel()
		delete(t.tasks, key)
	}
}

// Len returns the number of running tasks.
func (t *TaskSet) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// Cancel cancels every running task and refuses new ones.
func (t *TaskSet) Cancel() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cancel()
}

// Wait blocks until all tasks return or ctx is done.
func (t *TaskSet) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
