package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWhichCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "which <command>",
		Short: "Show which package version a command runs",
		Long: `Resolve a command to its package and print the version, location and
entry file that would run, without installing anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := a.dispatcher.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "package:   %s\n", pkg.String())
			fmt.Fprintf(out, "path:      %s\n", pkg.LocalPath)

			if !pkg.Local && !a.cache.Exists(pkg) {
				fmt.Fprintln(out, "installed: no (installed on first run)")
				return nil
			}
			if !pkg.Local {
				fmt.Fprintln(out, "installed: yes")
			}
			entry, err := a.cache.Entry(pkg)
			if err != nil {
				return err
			}
			if entry == nil {
				fmt.Fprintln(out, "entry:     none")
				return nil
			}
			fmt.Fprintf(out, "entry:     %s\n", entry.Path)
			return nil
		},
	}
}
