package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigValidateCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				b   []byte
				err error
			)
			if summary {
				b, err = toml.Marshal(a.cfg.Summary())
			} else {
				b, err = a.cfg.TOML()
			}
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print a short summary with secrets masked")
	return cmd
}

func newConfigValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			v := a.cfg.Validate()
			for _, w := range v.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if v.OK() {
				fmt.Fprintln(out, "configuration OK")
				return nil
			}
			for _, e := range v.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			return errors.New("configuration is invalid")
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
