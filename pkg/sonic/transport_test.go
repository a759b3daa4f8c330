package sonic

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu     sync.Mutex
	sent   [][]byte
	events chan types.InvokeModelWithBidirectionalStreamOutput
	err    error
	closed int
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan types.InvokeModelWithBidirectionalStreamOutput, 8)}
}

func (f *fakeStream) Send(_ context.Context, ev types.InvokeModelWithBidirectionalStreamInput) error {
	chunk, ok := ev.(*types.InvokeModelWithBidirectionalStreamInputMemberChunk)
	if !ok {
		return errors.New("unexpected member")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, chunk.Value.Bytes)
	return nil
}

func (f *fakeStream) Events() <-chan types.InvokeModelWithBidirectionalStreamOutput { return f.events }

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeStream) Err() error { return f.err }

func chunkOut(b string) types.InvokeModelWithBidirectionalStreamOutput {
	return &types.InvokeModelWithBidirectionalStreamOutputMemberChunk{
		Value: types.BidirectionalOutputPayloadPart{Bytes: []byte(b)},
	}
}

func TestBedrockTransport(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStream()
	tr := NewBedrockTransport(fs)

	require.NoError(t, tr.Send(ctx, []byte(`{"event":{"sessionEnd":{}}}`)))
	assert.Equal(t, [][]byte{[]byte(`{"event":{"sessionEnd":{}}}`)}, fs.sent)

	fs.events <- &types.UnknownUnionMember{Tag: "future"}
	fs.events <- chunkOut(`{"event":{"completionStart":{}}}`)
	got, err := tr.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"event":{"completionStart":{}}}`, string(got))

	close(fs.events)
	_, err = tr.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, 1, fs.closed)
}

func TestBedrockTransportStreamError(t *testing.T) {
	fs := newFakeStream()
	fs.err = errors.New("ModelStreamErrorException")
	close(fs.events)

	_, err := NewBedrockTransport(fs).Recv(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Contains(t, err.Error(), "ModelStreamErrorException")
}

func TestBedrockTransportRecvContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBedrockTransport(newFakeStream()).Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeBidiAPI struct {
	err error
}

func (f fakeBidiAPI) InvokeModelWithBidirectionalStream(context.Context, *bedrockruntime.InvokeModelWithBidirectionalStreamInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithBidirectionalStreamOutput, error) {
	return nil, f.err
}

func TestOpenBedrockErrors(t *testing.T) {
	_, err := OpenBedrock(context.Background(), fakeBidiAPI{}, "")
	assert.ErrorIs(t, err, ErrMissingModel)

	_, err = OpenBedrock(context.Background(), fakeBidiAPI{err: errors.New("AccessDeniedException")}, DefaultModelID)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

// echoServer upgrades and echoes every message. A message "bye" makes it
// close the connection normally.
func echoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "bye" {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := DialWebSocket(ctx, echoServer(t), nil)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Send(ctx, []byte(`{"event":{"completionStart":{}}}`)))
	got, err := tr.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"event":{"completionStart":{}}}`, string(got))

	require.NoError(t, tr.Send(ctx, []byte("bye")))
	_, err = tr.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWebSocketTransportClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := DialWebSocket(ctx, echoServer(t), nil)
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	_, err = tr.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Error(t, tr.Send(ctx, []byte("late")))
}

func TestWebSocketTransportDialError(t *testing.T) {
	_, err := DialWebSocket(context.Background(), "ws://127.0.0.1:1/none", nil)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestSessionOverWebSocket(t *testing.T) {
	// The echo server reflects our own events back; the session must treat
	// them as unknown or benign and keep running.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := DialWebSocket(ctx, echoServer(t), nil)
	require.NoError(t, err)
	s := NewSession(tr, nil, WithInitPacing(0), WithCloseTimeout(time.Second))
	require.NoError(t, s.Start(ctx))
	assert.Eventually(t, func() bool { return s.Stats().EventsReceived >= 6 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.IsActive())
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
}
