package sonic

import (
	"log/slog"
	"time"
)

// DefaultModelID is the Nova Sonic model.
const DefaultModelID = "amazon.nova-sonic-v1:0"

// Config holds session configuration.
type Config struct {
	// SystemPrompt is sent as the SYSTEM text block at start.
	SystemPrompt string

	// Tools are declared in promptStart.
	Tools []ToolSpec

	// MaxTokens, TopP and Temperature form the inference configuration.
	MaxTokens   int
	TopP        float64
	Temperature float64

	// VoiceID is the output voice.
	VoiceID string

	// InputSampleRate and OutputSampleRate are in Hz. Audio is 16-bit mono PCM.
	InputSampleRate  int
	OutputSampleRate int

	// InitPacing is the pause after each initialization event.
	InitPacing time.Duration

	// InputQueueSize bounds microphone chunks waiting to be sent.
	InputQueueSize int

	// OutputQueueSize bounds decoded audio waiting to be played.
	OutputQueueSize int

	// CloseTimeout bounds each step of Close.
	CloseTimeout time.Duration

	// OnTranscript receives displayed text. Nil means log it.
	OnTranscript func(Transcript)

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns the stock session configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxTokens:        1024,
		TopP:             0.9,
		Temperature:      0.7,
		VoiceID:          "tiffany",
		InputSampleRate:  16000,
		OutputSampleRate: 24000,
		InitPacing:       100 * time.Millisecond,
		InputQueueSize:   256,
		OutputQueueSize:  512,
		CloseTimeout:     2 * time.Second,
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Option configures a Session.
type Option func(*Config)

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) { c.SystemPrompt = prompt }
}

// WithTools sets the declared tools.
func WithTools(tools ...ToolSpec) Option {
	return func(c *Config) { c.Tools = tools }
}

// WithInference sets the inference configuration.
func WithInference(maxTokens int, topP, temperature float64) Option {
	return func(c *Config) {
		c.MaxTokens = maxTokens
		c.TopP = topP
		c.Temperature = temperature
	}
}

// WithVoice sets the output voice.
func WithVoice(voiceID string) Option {
	return func(c *Config) { c.VoiceID = voiceID }
}

// WithSampleRates sets the input and output sample rates.
func WithSampleRates(input, output int) Option {
	return func(c *Config) {
		c.InputSampleRate = input
		c.OutputSampleRate = output
	}
}

// WithInitPacing sets the pause between initialization events.
func WithInitPacing(d time.Duration) Option {
	return func(c *Config) { c.InitPacing = d }
}

// WithQueueSizes sets the audio queue bounds.
func WithQueueSizes(input, output int) Option {
	return func(c *Config) {
		c.InputQueueSize = input
		c.OutputQueueSize = output
	}
}

// WithCloseTimeout bounds each step of Close.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Config) { c.CloseTimeout = d }
}

// WithTranscriptHandler sets the displayed-text callback.
func WithTranscriptHandler(fn func(Transcript)) Option {
	return func(c *Config) { c.OnTranscript = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
