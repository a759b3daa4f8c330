package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-caddy/internal/log"
	"github.com/teslashibe/go-caddy/pkg/audio"
	"github.com/teslashibe/go-caddy/pkg/audioio"
	"github.com/teslashibe/go-caddy/pkg/scoring"
	"github.com/teslashibe/go-caddy/pkg/sonic"
	"github.com/teslashibe/go-caddy/pkg/tools"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		mockAudio bool
		duration  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a voice session",
		Long: "Open a speech-to-speech session, stream the microphone to the model and play its replies. " +
			"Speaking over the assistant interrupts it. Stop with Ctrl+C.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			backend := ""
			if mockAudio {
				backend = string(audioio.BackendMock)
			}
			return a.runSession(ctx, cmd.OutOrStdout(), backend)
		},
	}
	cmd.Flags().BoolVar(&mockAudio, "mock-audio", false, "use silent mock audio devices")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func (a *app) runSession(ctx context.Context, out io.Writer, backend string) error {
	logger := log.For(log.ComponentSonic)

	v := a.cfg.Validate()
	for _, w := range v.Warnings {
		logger.Warn("configuration warning", "warning", w)
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := a.openStore(ctx, a)
	if err != nil {
		return fmt.Errorf("open score store: %w", err)
	}
	defer store.Close()

	kb, err := a.knowledge(ctx)
	if err != nil {
		return err
	}

	tracker := scoring.NewTracker(store, a.scoringConfig(), scoring.WithLogger(log.For(log.ComponentScoring)))
	dispatcher := tools.NewDispatcher(tools.Deps{
		Weather: a.weather(),
		Course:  kb,
		Scorer:  tracker,
		Names:   tools.NewPatternExtractor(),
	})

	transport, err := a.openTransport(ctx, a)
	if err != nil {
		return fmt.Errorf("open model stream: %w", err)
	}

	opts := append(a.sessionOptions(), sonic.WithTranscriptHandler(func(t sonic.Transcript) {
		fmt.Fprintf(out, "%s: %s\n", speaker(t.Role), t.Text)
	}))
	session := sonic.NewSession(transport, dispatcher, opts...)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.Close()

	captureCfg, playbackCfg := a.audioConfigs(backend)
	audioLog := log.For(log.ComponentAudio)
	src, err := audioio.NewSource(captureCfg, audioLog)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	sink, err := audioio.NewSink(playbackCfg, audioLog)
	if err != nil {
		src.Close()
		return fmt.Errorf("open speaker: %w", err)
	}

	fmt.Fprintf(out, "%s ready at %s. Start talking; Ctrl+C to stop.\n", a.cfg.App.Name, a.cfg.App.ClubName)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-session.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	streamErr := audio.NewStreamer(src, sink, session, audio.WithLogger(audioLog)).Run(runCtx)
	closeErr := session.Close()

	stats := session.Stats()
	logger.Info("session finished",
		"audio_chunks_sent", stats.AudioChunksSent,
		"tool_calls", stats.ToolCalls,
		"tool_failures", stats.ToolFailures,
	)

	switch err := session.Err(); {
	case errors.Is(err, sonic.ErrStreamClosed):
		fmt.Fprintln(out, "Session ended by the model.")
	case err != nil && !errors.Is(err, context.Canceled):
		return fmt.Errorf("session: %w", err)
	}
	if streamErr != nil {
		return fmt.Errorf("audio: %w", streamErr)
	}
	return closeErr
}

func speaker(role string) string {
	if role == sonic.RoleUser {
		return "User"
	}
	return "Assistant"
}
