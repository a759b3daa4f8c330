package sonic

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/gorilla/websocket"
)

// Transport is a duplex stream of JSON event payloads. Send is called
// under the session's send lock. Recv is called from a single goroutine and
// returns io.EOF when the remote side ends the stream.
type Transport interface {
	Send(ctx context.Context, event []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// BidiStreamAPI is the subset of the Bedrock runtime client used to open a stream.
type BidiStreamAPI interface {
	InvokeModelWithBidirectionalStream(ctx context.Context, in *bedrockruntime.InvokeModelWithBidirectionalStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithBidirectionalStreamOutput, error)
}

// BidiStream is an open Bedrock event stream.
// *bedrockruntime.InvokeModelWithBidirectionalStreamEventStream implements it.
type BidiStream interface {
	Send(ctx context.Context, event types.InvokeModelWithBidirectionalStreamInput) error
	Events() <-chan types.InvokeModelWithBidirectionalStreamOutput
	Close() error
	Err() error
}

// BedrockTransport carries events over InvokeModelWithBidirectionalStream.
type BedrockTransport struct {
	stream    BidiStream
	closeOnce sync.Once
	closeErr  error
}

// OpenBedrock starts a bidirectional stream with modelID.
func OpenBedrock(ctx context.Context, client BidiStreamAPI, modelID string) (*BedrockTransport, error) {
	if modelID == "" {
		return nil, ErrMissingModel
	}
	out, err := client.InvokeModelWithBidirectionalStream(ctx, &bedrockruntime.InvokeModelWithBidirectionalStreamInput{
		ModelId: aws.String(modelID),
	})
	if err != nil {
		return nil, &TransportError{Op: "open", Cause: err}
	}
	return NewBedrockTransport(out.GetStream()), nil
}

// NewBedrockTransport wraps an open stream.
func NewBedrockTransport(stream BidiStream) *BedrockTransport {
	return &BedrockTransport{stream: stream}
}

// Send writes one event chunk.
func (t *BedrockTransport) Send(ctx context.Context, event []byte) error {
	err := t.stream.Send(ctx, &types.InvokeModelWithBidirectionalStreamInputMemberChunk{
		Value: types.BidirectionalInputPayloadPart{Bytes: event},
	})
	if err != nil {
		return &TransportError{Op: "send", Cause: err}
	}
	return nil
}

// Recv returns the next event chunk. Non-chunk stream members are skipped.
func (t *BedrockTransport) Recv(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-t.stream.Events():
			if !ok {
				if err := t.stream.Err(); err != nil {
					return nil, &TransportError{Op: "recv", Cause: err}
				}
				return nil, io.EOF
			}
			if chunk, ok := ev.(*types.InvokeModelWithBidirectionalStreamOutputMemberChunk); ok {
				return chunk.Value.Bytes, nil
			}
		}
	}
}

// Close closes the input side and the stream.
func (t *BedrockTransport) Close() error {
	t.closeOnce.Do(func() {
		if err := t.stream.Close(); err != nil {
			t.closeErr = &TransportError{Op: "close", Cause: err}
		}
	})
	return t.closeErr
}

// WebSocketTransport carries events as WebSocket text messages, one event
// per message. It talks to local bridges and test servers.
type WebSocketTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	msgs    chan []byte
	done    chan struct{}

	errMu   sync.Mutex
	readErr error

	closeOnce sync.Once
}

// DialWebSocket connects to url.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocketTransport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &TransportError{Op: "open", Cause: err}
	}
	return NewWebSocketTransport(conn), nil
}

// NewWebSocketTransport wraps an established connection and starts reading it.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	t := &WebSocketTransport{
		conn: conn,
		msgs: make(chan []byte, 64),
		done: make(chan struct{}),
	}
	go t.readPump()
	return t
}

func (t *WebSocketTransport) readPump() {
	defer close(t.msgs)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.errMu.Lock()
				t.readErr = err
				t.errMu.Unlock()
			}
			return
		}
		select {
		case t.msgs <- data:
		case <-t.done:
			return
		}
	}
}

// Send writes one event as a text message.
func (t *WebSocketTransport) Send(ctx context.Context, event []byte) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "send", Cause: err}
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(dl)
	} else {
		_ = t.conn.SetWriteDeadline(time.Time{})
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, event); err != nil {
		return &TransportError{Op: "send", Cause: err}
	}
	return nil
}

// Recv returns the next message.
func (t *WebSocketTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-t.msgs:
		if ok {
			return data, nil
		}
	}
	t.errMu.Lock()
	err := t.readErr
	t.errMu.Unlock()
	if err != nil {
		select {
		case <-t.done:
			return nil, io.EOF
		default:
		}
		return nil, &TransportError{Op: "recv", Cause: err}
	}
	return nil, io.EOF
}

// Close sends a close frame and closes the connection.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		t.writeMu.Unlock()
		if cerr := t.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = &TransportError{Op: "close", Cause: cerr}
		}
	})
	return err
}
