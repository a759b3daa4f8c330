// Package cli implements the caddy command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-caddy/internal/config"
	"github.com/teslashibe/go-caddy/internal/log"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// Execute runs the root command under ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := newApp(opts...)

	root := &cobra.Command{
		Use:   "caddy",
		Short: "Voice golf caddy on Amazon Nova Sonic",
		Long: "caddy is a hands-free golf assistant: talk to it on the course for hole strategy, " +
			"golf-specific weather and score keeping.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./caddy.toml or ~/.config/caddy/caddy.toml)")
	flags.BoolVar(&a.debug, "debug", false, "enable debug output for components switched on in app.debug_for")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newVersionCmd(a),
		newRunCmd(a),
		newConfigCmd(a),
		newCourseCmd(a),
		newScoreCmd(a),
		newLocationCmd(a),
		newWeatherCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (build %s)\n", a.cfg.App.Name, a.cfg.App.Version, Version)
			return err
		},
	}
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{File: a.cfgFile, EnvFiles: a.envFiles})
	if err != nil {
		return err
	}
	if a.debug {
		cfg.App.Debug = true
	}
	if a.logLevel != "" {
		cfg.App.LogLevel = a.logLevel
	}
	log.Setup(log.Options{
		Level:      cfg.App.LogLevel,
		Debug:      cfg.App.Debug,
		Components: cfg.App.DebugFor.Map(),
		Output:     cmd.ErrOrStderr(),
	})
	log.SetDebug(cfg.App.Debug, cfg.App.DebugFor.Map())
	a.cfg = cfg
	return nil
}
