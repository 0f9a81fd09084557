package cli

import (
	"fmt"
	"strings"

	"github.com/scaff-cli/scaff/internal/branding"
	"github.com/scaff-cli/scaff/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user settings",
		Long: `Read and write settings stored at ~/` + branding.HomeDir() + `/config.yaml.

Known keys: ` + strings.Join(config.Keys, ", ") + `.
Each key can also be set with the environment variable ` + branding.EnvPrefix() + `_<KEY>.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := config.Set(a.cfg.HomePath, key, value); err != nil {
				return fmt.Errorf("setting config key %q: %w", key, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := config.Get(a.v, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	})
	return cmd
}
