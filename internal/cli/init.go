package cli

import (
	"github.com/scaff-cli/scaff/internal/dispatch"
	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		force          bool
		template       string
		projectVersion string
	)

	cmd := &cobra.Command{
		Use:   "init <project-name>",
		Short: "Create a project in the current directory",
		Long: `Create a project in the current directory from a template package.

If the directory is not empty you are asked before anything is deleted;
--force skips the first question but the deletion is still confirmed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := map[string]any{
				"force": force,
			}
			if template != "" {
				opts["template"] = template
			}
			if projectVersion != "" {
				opts["version"] = projectVersion
			}
			opts["parent"] = a.rootOptions()
			opts["_command"] = cmd.Name()

			code, err := a.dispatcher.Dispatch(cmd.Context(), dispatch.Invocation{
				Command: cmd.Name(),
				Args:    args,
				Options: opts,
			})
			a.exitCode = code
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Empty a non-empty directory without asking first")
	cmd.Flags().StringVarP(&template, "template", "t", "", "Template package, optionally with @<version>")
	cmd.Flags().StringVar(&projectVersion, "project-version", "", "Initial project version (default 1.0.0)")
	return cmd
}

// rootOptions mirrors the root flags into the options object the way
// dispatched commands receive their parent command's state.
func (a *app) rootOptions() map[string]any {
	return map[string]any{
		"debug":      a.debug,
		"targetPath": a.cfg.TargetPath,
		"registry":   a.cfg.RegistryURL(),
	}
}
