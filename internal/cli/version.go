package cli

import (
	"encoding/json"
	"fmt"

	"github.com/scaff-cli/scaff/internal/branding"
	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	var short, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, a.build.version)
				return nil
			}

			if asJSON {
				info := map[string]string{
					"version": a.build.version,
					"commit":  a.build.commit,
					"date":    a.build.date,
				}
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling version info: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "%s version %s (commit: %s, built: %s)\n", branding.CLIName(), a.build.version, a.build.commit, a.build.date)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print version number only")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version info as JSON")
	return cmd
}
