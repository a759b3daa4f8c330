package sonic

import "context"

// State is the session lifecycle state.
type State int32

const (
	// StateInit is a session that has not been started.
	StateInit State = iota
	// StateActive is a streaming session.
	StateActive
	// StateClosing is a session sending its end events.
	StateClosing
	// StateClosed is a finished session.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Content roles.
const (
	RoleSystem    = "SYSTEM"
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
	RoleTool      = "TOOL"
)

// Content block types.
const (
	ContentAudio = "AUDIO"
	ContentText  = "TEXT"
	ContentTool  = "TOOL"
)

// ToolSpec declares a tool in promptStart.
type ToolSpec struct {
	Name        string
	Description string

	// InputSchema is the JSON Schema of the input, as a JSON string.
	InputSchema string
}

// ToolExecutor runs tool calls requested by the model. content is the raw
// JSON argument string. The result is sent back JSON-encoded.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name, content string) (any, error)
}

// UserTextObserver is implemented by executors that want user transcripts.
type UserTextObserver interface {
	ObserveUserText(text string)
}

// Transcript is a line of displayed conversation text.
type Transcript struct {
	Role string
	Text string
}

// Stats counts session traffic.
type Stats struct {
	AudioChunksSent    int64
	AudioInputDropped  int64
	AudioOutputDropped int64
	EventsReceived     int64
	ToolCalls          int64
	ToolFailures       int64
}
