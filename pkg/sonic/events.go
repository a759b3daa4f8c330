package sonic

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	mediaText  = "text/plain"
	mediaAudio = "audio/lpcm"
	mediaJSON  = "application/json"

	// interruptedMarker in assistant text means the user barged in.
	interruptedMarker = `{ "interrupted" : true }`

	stageSpeculative = "SPECULATIVE"
)

// Outbound wire types.

type outbound struct {
	Event outEvent `json:"event"`
}

type outEvent struct {
	SessionStart *sessionStart   `json:"sessionStart,omitempty"`
	PromptStart  *promptStart    `json:"promptStart,omitempty"`
	ContentStart *contentStart   `json:"contentStart,omitempty"`
	TextInput    *contentPayload `json:"textInput,omitempty"`
	AudioInput   *contentPayload `json:"audioInput,omitempty"`
	ToolResult   *contentPayload `json:"toolResult,omitempty"`
	ContentEnd   *contentRef     `json:"contentEnd,omitempty"`
	PromptEnd    *promptRef      `json:"promptEnd,omitempty"`
	SessionEnd   *struct{}       `json:"sessionEnd,omitempty"`
}

type sessionStart struct {
	InferenceConfiguration inference `json:"inferenceConfiguration"`
}

type inference struct {
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
	Temperature float64 `json:"temperature"`
}

type promptStart struct {
	PromptName                 string            `json:"promptName"`
	TextOutputConfiguration    mediaConfig       `json:"textOutputConfiguration"`
	AudioOutputConfiguration   audioConfig       `json:"audioOutputConfiguration"`
	ToolUseOutputConfiguration mediaConfig       `json:"toolUseOutputConfiguration"`
	ToolConfiguration          toolConfiguration `json:"toolConfiguration"`
}

type mediaConfig struct {
	MediaType string `json:"mediaType"`
}

type audioConfig struct {
	MediaType       string `json:"mediaType"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	SampleSizeBits  int    `json:"sampleSizeBits"`
	ChannelCount    int    `json:"channelCount"`
	VoiceID         string `json:"voiceId,omitempty"`
	Encoding        string `json:"encoding"`
	AudioType       string `json:"audioType"`
}

type toolConfiguration struct {
	Tools []toolEntry `json:"tools"`
}

type toolEntry struct {
	ToolSpec toolSpecWire `json:"toolSpec"`
}

type toolSpecWire struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	JSON string `json:"json"`
}

type contentStart struct {
	PromptName                   string            `json:"promptName"`
	ContentName                  string            `json:"contentName"`
	Type                         string            `json:"type"`
	Interactive                  bool              `json:"interactive"`
	Role                         string            `json:"role"`
	AudioInputConfiguration      *audioConfig      `json:"audioInputConfiguration,omitempty"`
	TextInputConfiguration       *mediaConfig      `json:"textInputConfiguration,omitempty"`
	ToolResultInputConfiguration *toolResultConfig `json:"toolResultInputConfiguration,omitempty"`
}

type toolResultConfig struct {
	ToolUseID              string      `json:"toolUseId"`
	Type                   string      `json:"type"`
	TextInputConfiguration mediaConfig `json:"textInputConfiguration"`
}

type contentPayload struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
	Content     string `json:"content"`
}

type contentRef struct {
	PromptName  string `json:"promptName"`
	ContentName string `json:"contentName"`
}

type promptRef struct {
	PromptName string `json:"promptName"`
}

// encoder builds the outbound events of one prompt.
type encoder struct {
	promptName string
	cfg        *Config
}

func (e *encoder) marshal(ev outEvent) []byte {
	b, err := json.Marshal(outbound{Event: ev})
	if err != nil {
		// Only plain strings and numbers are encoded.
		panic(fmt.Sprintf("sonic: encode event: %v", err))
	}
	return b
}

func (e *encoder) sessionStart() []byte {
	return e.marshal(outEvent{SessionStart: &sessionStart{
		InferenceConfiguration: inference{
			MaxTokens:   e.cfg.MaxTokens,
			TopP:        e.cfg.TopP,
			Temperature: e.cfg.Temperature,
		},
	}})
}

func (e *encoder) promptStart() []byte {
	tools := make([]toolEntry, len(e.cfg.Tools))
	for i, t := range e.cfg.Tools {
		tools[i] = toolEntry{ToolSpec: toolSpecWire{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: inputSchema{JSON: t.InputSchema},
		}}
	}
	return e.marshal(outEvent{PromptStart: &promptStart{
		PromptName:              e.promptName,
		TextOutputConfiguration: mediaConfig{MediaType: mediaText},
		AudioOutputConfiguration: audioConfig{
			MediaType:       mediaAudio,
			SampleRateHertz: e.cfg.OutputSampleRate,
			SampleSizeBits:  16,
			ChannelCount:    1,
			VoiceID:         e.cfg.VoiceID,
			Encoding:        "base64",
			AudioType:       "SPEECH",
		},
		ToolUseOutputConfiguration: mediaConfig{MediaType: mediaJSON},
		ToolConfiguration:          toolConfiguration{Tools: tools},
	}})
}

func (e *encoder) textContentStart(contentName, role string) []byte {
	return e.marshal(outEvent{ContentStart: &contentStart{
		PromptName:             e.promptName,
		ContentName:            contentName,
		Type:                   ContentText,
		Interactive:            false,
		Role:                   role,
		TextInputConfiguration: &mediaConfig{MediaType: mediaText},
	}})
}

func (e *encoder) textInput(contentName, text string) []byte {
	return e.marshal(outEvent{TextInput: &contentPayload{
		PromptName:  e.promptName,
		ContentName: contentName,
		Content:     text,
	}})
}

func (e *encoder) audioContentStart(contentName string) []byte {
	return e.marshal(outEvent{ContentStart: &contentStart{
		PromptName:  e.promptName,
		ContentName: contentName,
		Type:        ContentAudio,
		Interactive: true,
		Role:        RoleUser,
		AudioInputConfiguration: &audioConfig{
			MediaType:       mediaAudio,
			SampleRateHertz: e.cfg.InputSampleRate,
			SampleSizeBits:  16,
			ChannelCount:    1,
			Encoding:        "base64",
			AudioType:       "SPEECH",
		},
	}})
}

func (e *encoder) audioInput(contentName string, pcm []byte) []byte {
	return e.marshal(outEvent{AudioInput: &contentPayload{
		PromptName:  e.promptName,
		ContentName: contentName,
		Content:     base64.StdEncoding.EncodeToString(pcm),
	}})
}

func (e *encoder) toolContentStart(contentName, toolUseID string) []byte {
	return e.marshal(outEvent{ContentStart: &contentStart{
		PromptName:  e.promptName,
		ContentName: contentName,
		Type:        ContentTool,
		Interactive: false,
		Role:        RoleTool,
		ToolResultInputConfiguration: &toolResultConfig{
			ToolUseID:              toolUseID,
			Type:                   ContentText,
			TextInputConfiguration: mediaConfig{MediaType: mediaText},
		},
	}})
}

func (e *encoder) toolResult(contentName string, result []byte) []byte {
	return e.marshal(outEvent{ToolResult: &contentPayload{
		PromptName:  e.promptName,
		ContentName: contentName,
		Content:     string(result),
	}})
}

func (e *encoder) contentEnd(contentName string) []byte {
	return e.marshal(outEvent{ContentEnd: &contentRef{PromptName: e.promptName, ContentName: contentName}})
}

func (e *encoder) promptEnd() []byte {
	return e.marshal(outEvent{PromptEnd: &promptRef{PromptName: e.promptName}})
}

func (e *encoder) sessionEnd() []byte {
	return e.marshal(outEvent{SessionEnd: &struct{}{}})
}

// EventKind identifies an inbound event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCompletionStart
	EventContentStart
	EventTextOutput
	EventAudioOutput
	EventToolUse
	EventContentEnd
	EventCompletionEnd
	EventUsage
)

var kindNames = map[EventKind]string{
	EventUnknown:         "unknown",
	EventCompletionStart: "completionStart",
	EventContentStart:    "contentStart",
	EventTextOutput:      "textOutput",
	EventAudioOutput:     "audioOutput",
	EventToolUse:         "toolUse",
	EventContentEnd:      "contentEnd",
	EventCompletionEnd:   "completionEnd",
	EventUsage:           "usageEvent",
}

// String returns the wire name of the event.
func (k EventKind) String() string {
	return kindNames[k]
}

// Event is a decoded inbound event. Fields not carried by Kind are zero.
type Event struct {
	Kind EventKind

	// Role is set for contentStart and textOutput.
	Role string

	// ContentType is set for contentStart and contentEnd.
	ContentType string

	// GenerationStage is the contentStart stage, "FINAL" or "SPECULATIVE".
	GenerationStage string

	// Text is the textOutput content.
	Text string

	// Audio is the decoded audioOutput PCM.
	Audio []byte

	// ToolName, ToolUseID and ToolContent are set for toolUse.
	ToolName    string
	ToolUseID   string
	ToolContent string

	// StopReason is set for contentEnd and completionEnd.
	StopReason string
}

// Interrupted reports whether a textOutput carries the barge-in marker.
func (e Event) Interrupted() bool {
	return e.Kind == EventTextOutput && strings.Contains(e.Text, interruptedMarker)
}

// Speculative reports whether a contentStart opens speculative text.
func (e Event) Speculative() bool {
	return e.GenerationStage == stageSpeculative
}

type inbound struct {
	Event *struct {
		CompletionStart *json.RawMessage `json:"completionStart"`
		ContentStart    *struct {
			Role                  string `json:"role"`
			Type                  string `json:"type"`
			AdditionalModelFields string `json:"additionalModelFields"`
		} `json:"contentStart"`
		TextOutput *struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"textOutput"`
		AudioOutput *struct {
			Content string `json:"content"`
		} `json:"audioOutput"`
		ToolUse *struct {
			ToolName  string `json:"toolName"`
			ToolUseID string `json:"toolUseId"`
			Content   string `json:"content"`
		} `json:"toolUse"`
		ContentEnd *struct {
			Type       string `json:"type"`
			StopReason string `json:"stopReason"`
		} `json:"contentEnd"`
		CompletionEnd *struct {
			StopReason string `json:"stopReason"`
		} `json:"completionEnd"`
		UsageEvent *json.RawMessage `json:"usageEvent"`
	} `json:"event"`
}

// DecodeEvent parses one inbound event. Payloads without an "event" object,
// malformed JSON and bad base64 audio are errors wrapping ErrInvalidEvent.
// Unrecognized event names decode as EventUnknown. Unparseable
// additionalModelFields leave GenerationStage empty.
func DecodeEvent(b []byte) (Event, error) {
	var in inbound
	if err := json.Unmarshal(b, &in); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	ev := in.Event
	if ev == nil {
		return Event{}, fmt.Errorf("%w: missing event", ErrInvalidEvent)
	}

	switch {
	case ev.CompletionStart != nil:
		return Event{Kind: EventCompletionStart}, nil

	case ev.ContentStart != nil:
		cs := ev.ContentStart
		out := Event{Kind: EventContentStart, Role: cs.Role, ContentType: cs.Type}
		if cs.AdditionalModelFields != "" {
			var fields struct {
				GenerationStage string `json:"generationStage"`
			}
			if json.Unmarshal([]byte(cs.AdditionalModelFields), &fields) == nil {
				out.GenerationStage = fields.GenerationStage
			}
		}
		return out, nil

	case ev.TextOutput != nil:
		return Event{Kind: EventTextOutput, Role: ev.TextOutput.Role, Text: ev.TextOutput.Content}, nil

	case ev.AudioOutput != nil:
		pcm, err := base64.StdEncoding.DecodeString(ev.AudioOutput.Content)
		if err != nil {
			return Event{}, fmt.Errorf("%w: audio: %v", ErrInvalidEvent, err)
		}
		return Event{Kind: EventAudioOutput, Audio: pcm}, nil

	case ev.ToolUse != nil:
		tu := ev.ToolUse
		return Event{Kind: EventToolUse, ToolName: tu.ToolName, ToolUseID: tu.ToolUseID, ToolContent: tu.Content}, nil

	case ev.ContentEnd != nil:
		return Event{Kind: EventContentEnd, ContentType: ev.ContentEnd.Type, StopReason: ev.ContentEnd.StopReason}, nil

	case ev.CompletionEnd != nil:
		return Event{Kind: EventCompletionEnd, StopReason: ev.CompletionEnd.StopReason}, nil

	case ev.UsageEvent != nil:
		return Event{Kind: EventUsage}, nil
	}
	return Event{Kind: EventUnknown}, nil
}
