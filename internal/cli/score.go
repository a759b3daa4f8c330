package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-caddy/internal/log"
	"github.com/teslashibe/go-caddy/pkg/scoring"
)

func newScoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Inspect recorded rounds",
	}
	cmd.AddCommand(newScoreSummaryCmd(a))
	return cmd
}

func newScoreSummaryCmd(a *app) *cobra.Command {
	var player, sessionID string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize a round, or list a player's resumable rounds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name := scoring.NormalizeName(player)
			if name == "" {
				return errors.New("--player is required")
			}
			ctx := cmd.Context()
			store, err := a.openStore(ctx, a)
			if err != nil {
				return fmt.Errorf("open score store: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if sessionID != "" {
				s, err := scoring.Summarize(ctx, store, name, sessionID)
				if err != nil {
					return err
				}
				return printJSON(out, s)
			}

			tracker := scoring.NewTracker(store, a.scoringConfig(), scoring.WithLogger(log.For(log.ComponentScoring)))
			rounds, err := tracker.ActiveRounds(ctx, name)
			if err != nil {
				return err
			}
			if len(rounds) == 0 {
				fmt.Fprintf(out, "No active rounds for %s.\n", name)
				return nil
			}
			return printJSON(out, rounds)
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "player first name")
	cmd.Flags().StringVar(&sessionID, "session", "", "round session ID")
	return cmd
}
