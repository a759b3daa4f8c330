package sonic

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// MockTransport is an in-memory Transport for tests and dry runs. Events
// pushed with Push are returned by Recv; sent events are recorded.
type MockTransport struct {
	mu     sync.Mutex
	sent   [][]byte
	notify chan struct{}

	inbox  chan []byte
	closed chan struct{}
	once   sync.Once

	// SendFunc, when set, is called before an event is recorded. A non-nil
	// error fails the send.
	SendFunc func(event []byte) error

	// RecvErr, when set, is returned by Recv once the inbox is drained.
	RecvErr error
}

// NewMockTransport returns an empty mock.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		notify: make(chan struct{}, 1),
		inbox:  make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

// Send records event.
func (m *MockTransport) Send(ctx context.Context, event []byte) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "send", Cause: err}
	}
	select {
	case <-m.closed:
		return &TransportError{Op: "send", Cause: io.ErrClosedPipe}
	default:
	}
	if m.SendFunc != nil {
		if err := m.SendFunc(event); err != nil {
			return &TransportError{Op: "send", Cause: err}
		}
	}
	m.mu.Lock()
	m.sent = append(m.sent, append([]byte(nil), event...))
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Recv returns the next pushed event. After EndStream it returns RecvErr or
// io.EOF once the inbox is empty.
func (m *MockTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case b, ok := <-m.inbox:
		if ok {
			return b, nil
		}
		if m.RecvErr != nil {
			return nil, m.RecvErr
		}
		return nil, io.EOF
	case <-m.closed:
		return nil, io.EOF
	}
}

// Close marks the mock closed.
func (m *MockTransport) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Push queues a raw inbound event.
func (m *MockTransport) Push(event []byte) {
	m.inbox <- event
}

// PushEvent queues {"event": {name: body}}.
func (m *MockTransport) PushEvent(name string, body any) {
	b, err := json.Marshal(map[string]any{"event": map[string]any{name: body}})
	if err != nil {
		panic(err)
	}
	m.Push(b)
}

// EndStream makes Recv report the end of the stream after queued events.
func (m *MockTransport) EndStream() {
	close(m.inbox)
}

// Sent returns a copy of the recorded events.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentNames returns the event name of each recorded event, in order.
func (m *MockTransport) SentNames() []string {
	sent := m.Sent()
	names := make([]string, 0, len(sent))
	for _, b := range sent {
		names = append(names, EventName(b))
	}
	return names
}

// WaitSent blocks until at least n events were sent or ctx is done.
func (m *MockTransport) WaitSent(ctx context.Context, n int) bool {
	for {
		m.mu.Lock()
		count := len(m.sent)
		m.mu.Unlock()
		if count >= n {
			return true
		}
		select {
		case <-m.notify:
		case <-ctx.Done():
			return false
		}
	}
}

// EventName returns the single key of an event envelope, or "".
func EventName(event []byte) string {
	var env struct {
		Event map[string]json.RawMessage `json:"event"`
	}
	if json.Unmarshal(event, &env) != nil {
		return ""
	}
	for k := range env.Event {
		return k
	}
	return ""
}
