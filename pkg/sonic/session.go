// Package sonic manages a Nova Sonic speech-to-speech session: one duplex
// event stream carrying microphone audio up, and voice, text and tool calls
// down, with tool calls executed concurrently.
package sonic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-caddy/internal/log"
)

// Session is one conversation with the model.
type Session struct {
	cfg       *Config
	transport Transport
	tools     ToolExecutor
	observer  UserTextObserver
	enc       *encoder
	logger    *slog.Logger

	promptName       string
	contentName      string
	audioContentName string

	state   atomic.Int32
	startMu sync.Mutex
	started bool
	sendMu  sync.Mutex

	audioIn  chan []byte
	audioOut chan []byte
	bargeIn  atomic.Bool

	// Read loop state, touched only by readLoop.
	role        string
	displayText bool
	pending     toolUse

	ctx        context.Context
	cancel     context.CancelFunc
	tasks      *TaskSet
	readerDone chan struct{}
	inputDone  chan struct{}
	done       chan struct{}
	closeOnce  sync.Once

	errMu sync.Mutex
	err   error

	audioSent      atomic.Int64
	inputDropped   atomic.Int64
	outputDropped  atomic.Int64
	eventsReceived atomic.Int64
	toolCalls      atomic.Int64
	toolFailures   atomic.Int64
}

type toolUse struct {
	name    string
	id      string
	content string
}

// NewSession returns a session over transport. tools may be nil, in which
// case every tool call is answered with an error result. If tools
// implements UserTextObserver it also receives user transcripts.
func NewSession(transport Transport, tools ToolExecutor, opts ...Option) *Session {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = log.For(log.ComponentSonic)
	}
	if cfg.InputQueueSize <= 0 {
		cfg.InputQueueSize = 1
	}
	if cfg.OutputQueueSize <= 0 {
		cfg.OutputQueueSize = 1
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 2 * time.Second
	}

	s := &Session{
		cfg:              cfg,
		transport:        transport,
		tools:            tools,
		logger:           cfg.Logger,
		promptName:       uuid.NewString(),
		contentName:      uuid.NewString(),
		audioContentName: uuid.NewString(),
		audioIn:          make(chan []byte, cfg.InputQueueSize),
		audioOut:         make(chan []byte, cfg.OutputQueueSize),
		displayText:      true,
		readerDone:       make(chan struct{}),
		inputDone:        make(chan struct{}),
		done:             make(chan struct{}),
	}
	if obs, ok := tools.(UserTextObserver); ok {
		s.observer = obs
	}
	s.enc = &encoder{promptName: s.promptName, cfg: cfg}
	return s
}

// PromptName returns the prompt identifier.
func (s *Session) PromptName() string { return s.promptName }

// State returns the lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// IsActive reports whether the session is streaming.
func (s *Session) IsActive() bool { return s.State() == StateActive }

// Done is closed when the session has fully stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the session, or nil.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Start sends sessionStart, promptStart and the system prompt, then starts
// the read and audio-input loops and opens the audio content block.
// The session runs until Close or a stream failure; ctx only bounds Start.
func (s *Session) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.State() != StateInit || s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	events := [][]byte{
		s.enc.sessionStart(),
		s.enc.promptStart(),
		s.enc.textContentStart(s.contentName, RoleSystem),
		s.enc.textInput(s.contentName, s.cfg.SystemPrompt),
		s.enc.contentEnd(s.contentName),
	}
	for _, ev := range events {
		err := s.send(ctx, ev)
		if err == nil {
			err = sleepCtx(ctx, s.cfg.InitPacing)
		}
		if err != nil {
			s.setErr(err)
			s.closeOnce.Do(s.abortStart)
			return err
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.tasks = NewTaskSet(s.ctx, func(key string, err error) {
		s.logger.Warn("tool task failed", "content", key, "error", err)
	})
	s.state.Store(int32(StateActive))
	go s.readLoop()
	go s.inputLoop()

	if err := s.send(ctx, s.enc.audioContentStart(s.audioContentName)); err != nil {
		s.fail(err)
		return err
	}
	s.logger.Debug("stream initialized", "prompt", s.promptName, "tools", len(s.cfg.Tools))
	return nil
}

func (s *Session) abortStart() {
	s.state.Store(int32(StateClosed))
	_ = s.transport.Close()
	close(s.readerDone)
	close(s.inputDone)
	close(s.done)
}

// AddAudio queues a microphone chunk without blocking. It reports false if
// the session is not active or the queue is full; full-queue drops are
// counted. pcm is copied.
func (s *Session) AddAudio(pcm []byte) bool {
	if !s.IsActive() || len(pcm) == 0 {
		return false
	}
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	select {
	case s.audioIn <- chunk:
		return true
	default:
		s.inputDropped.Add(1)
		return false
	}
}

// Output returns decoded assistant audio in arrival order.
func (s *Session) Output() <-chan []byte { return s.audioOut }

// BargeIn reports whether the user interrupted the assistant since the
// flag was last cleared.
func (s *Session) BargeIn() bool { return s.bargeIn.Load() }

// ClearBargeIn resets the barge-in flag after playback has been flushed.
func (s *Session) ClearBargeIn() { s.bargeIn.Store(false) }

// Stats returns traffic counters.
func (s *Session) Stats() Stats {
	return Stats{
		AudioChunksSent:    s.audioSent.Load(),
		AudioInputDropped:  s.inputDropped.Load(),
		AudioOutputDropped: s.outputDropped.Load(),
		EventsReceived:     s.eventsReceived.Load(),
		ToolCalls:          s.toolCalls.Load(),
		ToolFailures:       s.toolFailures.Load(),
	}
}

// Close cancels pending tool calls and the read loop, sends audio
// contentEnd, promptEnd and sessionEnd, and closes the transport. It is
// safe to call more than once and after the stream has failed.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.shutdown(true) })
	<-s.done
	return err
}

func (s *Session) fail(err error) {
	s.setErr(err)
	go s.closeOnce.Do(func() { _ = s.shutdown(false) })
}

func (s *Session) shutdown(graceful bool) error {
	s.startMu.Lock()
	state := s.State()
	s.startMu.Unlock()

	switch state {
	case StateInit:
		s.abortStart()
		return nil
	case StateClosed:
		return nil
	}
	s.state.Store(int32(StateClosing))
	defer close(s.done)

	s.tasks.Cancel()
	s.cancel()

	if err := s.bounded(s.tasks.Wait); err != nil {
		s.logger.Warn("tool tasks still running at close", "count", s.tasks.Len())
	}
	_ = s.bounded(func(ctx context.Context) error { return waitChan(ctx, s.inputDone) })

	var errs []error
	if graceful {
		err := s.bounded(func(ctx context.Context) error {
			for _, ev := range [][]byte{
				s.enc.contentEnd(s.audioContentName),
				s.enc.promptEnd(),
				s.enc.sessionEnd(),
			} {
				if err := s.send(ctx, ev); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.bounded(func(ctx context.Context) error { return waitChan(ctx, s.readerDone) }); err != nil {
		s.logger.Warn("read loop did not stop")
	}

	s.state.Store(int32(StateClosed))
	st := s.Stats()
	s.logger.Info("session closed",
		"audio_sent", st.AudioChunksSent,
		"audio_in_dropped", st.AudioInputDropped,
		"audio_out_dropped", st.AudioOutputDropped,
		"events", st.EventsReceived,
		"tool_calls", st.ToolCalls,
	)
	return errors.Join(errs...)
}

// bounded runs fn with a CloseTimeout deadline.
func (s *Session) bounded(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CloseTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Session) send(ctx context.Context, ev []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.transport.Send(ctx, ev)
}

func (s *Session) inputLoop() {
	defer close(s.inputDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case pcm := <-s.audioIn:
			if err := s.send(s.ctx, s.enc.audioInput(s.audioContentName, pcm)); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Debug("audio send failed", "error", err)
				continue
			}
			s.audioSent.Add(1)
		}
	}
}

func (s *Session) readLoop() {
	defer close(s.readerDone)
	for {
		b, err := s.transport.Recv(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				s.logger.Info("stream ended by remote")
				s.fail(ErrStreamClosed)
			} else {
				s.logger.Error("stream receive failed", "error", err)
				s.fail(err)
			}
			return
		}
		s.eventsReceived.Add(1)

		ev, err := DecodeEvent(b)
		if err != nil {
			s.logger.Error("stream event decode failed", "error", err)
			s.fail(err)
			return
		}
		s.handle(ev)
	}
}

func (s *Session) handle(ev Event) {
	switch ev.Kind {
	case EventCompletionStart:
		s.logger.Debug("completion start")

	case EventContentStart:
		s.role = ev.Role
		s.displayText = !ev.Speculative()

	case EventTextOutput:
		if ev.Interrupted() {
			s.logger.Debug("barge-in detected")
			s.bargeIn.Store(true)
			return
		}
		switch {
		case s.role == RoleAssistant && s.displayText:
			s.transcript(RoleAssistant, ev.Text)
		case s.role == RoleUser:
			s.transcript(RoleUser, ev.Text)
			if s.observer != nil {
				s.observer.ObserveUserText(ev.Text)
			}
		}

	case EventAudioOutput:
		select {
		case s.audioOut <- ev.Audio:
		default:
			s.outputDropped.Add(1)
		}

	case EventToolUse:
		s.pending = toolUse{name: ev.ToolName, id: ev.ToolUseID, content: ev.ToolContent}
		s.logger.Debug("tool use", "tool", ev.ToolName, "id", ev.ToolUseID)

	case EventContentEnd:
		if ev.ContentType == ContentTool {
			use := s.pending
			s.pending = toolUse{}
			contentName := uuid.NewString()
			s.toolCalls.Add(1)
			if !s.tasks.Go(contentName, func(ctx context.Context) error {
				return s.runTool(ctx, contentName, use)
			}) {
				s.logger.Warn("tool call dropped, session closing", "tool", use.name)
			}
		}

	case EventCompletionEnd:
		s.logger.Debug("completion end", "reason", ev.StopReason)
	}
}

func (s *Session) transcript(role, text string) {
	if s.cfg.OnTranscript != nil {
		s.cfg.OnTranscript(Transcript{Role: role, Text: text})
		return
	}
	s.logger.Info("transcript", "role", role, "text", text)
}

// runTool executes one tool call and sends its start, result and end
// events back to back.
func (s *Session) runTool(ctx context.Context, contentName string, use toolUse) error {
	started := time.Now()
	result, execErr := s.execute(ctx, use)

	payload, err := json.Marshal(result)
	if err != nil {
		execErr = fmt.Errorf("encode result: %w", err)
		payload, _ = json.Marshal(toolError(execErr))
	}
	if execErr != nil {
		s.toolFailures.Add(1)
		s.logger.Warn("tool failed", "tool", use.name, "error", execErr)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	for _, ev := range [][]byte{
		s.enc.toolContentStart(contentName, use.id),
		s.enc.toolResult(contentName, payload),
		s.enc.contentEnd(contentName),
	} {
		if err := s.transport.Send(ctx, ev); err != nil {
			return fmt.Errorf("send %s result: %w", use.name, err)
		}
	}
	s.logger.Debug("tool result sent", "tool", use.name, "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

// execute runs the executor, turning errors and panics into error results.
func (s *Session) execute(ctx context.Context, use toolUse) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			result = toolError(err)
		}
	}()
	if s.tools == nil {
		err = errors.New("no tool executor")
		return toolError(err), err
	}
	result, err = s.tools.ExecuteTool(ctx, use.name, use.content)
	if err != nil {
		return toolError(err), err
	}
	return result, nil
}

func toolError(err error) map[string]string {
	return map[string]string{"error": "Tool execution failed: " + err.Error()}
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func waitChan(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
