package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/scaff-cli/scaff/internal/pkgcache"
	"github.com/scaff-cli/scaff/internal/registry"
	"github.com/spf13/cobra"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the package cache",
	}
	cmd.AddCommand(newCacheListCmd(a), newCacheCleanCmd(a))
	return cmd
}

// caches returns the command package cache and the template cache.
func (a *app) caches() map[string]*pkgcache.Cache {
	return map[string]*pkgcache.Cache{
		"command":  a.cache,
		"template": pkgcache.New(a.cfg.TemplateCacheDir(), a.client, nil),
	}
}

type cacheListEntry struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Path    string `json:"path"`
}

func newCacheListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed command and template packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []cacheListEntry
			for _, kind := range []string{"command", "template"} {
				list, err := a.caches()[kind].List()
				if err != nil {
					return err
				}
				for _, e := range list {
					entries = append(entries, cacheListEntry{Kind: kind, Name: e.Name, Version: e.Version, Path: e.Path})
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if entries == nil {
					entries = []cacheListEntry{}
				}
				data, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling cache entries: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "No packages cached yet.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, headerStyle.Render("KIND")+"\t"+headerStyle.Render("NAME")+"\t"+headerStyle.Render("VERSION"))
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Kind, e.Name, e.Version)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newCacheCleanCmd(a *app) *cobra.Command {
	var (
		templates bool
		keep      bool
	)

	cmd := &cobra.Command{
		Use:   "clean [command]",
		Short: "Remove cached packages",
		Long: `Remove cached command packages, or only those of one command.
With --keep-latest the newest cached version of each package is kept.
With --templates the template cache is cleaned as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			only := ""
			if len(args) == 1 {
				pkg, err := a.dispatcher.PackageName(args[0])
				if err != nil {
					return err
				}
				only = pkg
			}

			kinds := []string{"command"}
			if templates {
				kinds = append(kinds, "template")
			}

			removed := 0
			for _, kind := range kinds {
				c := a.caches()[kind]
				list, err := c.List()
				if err != nil {
					return err
				}
				newest := newestVersions(list)
				for _, e := range list {
					if only != "" && e.Name != only {
						continue
					}
					if keep && newest[e.Name] == e.Version {
						continue
					}
					if err := c.Remove(e); err != nil {
						return err
					}
					a.logger.Debug("removed cache entry", "package", e.Name, "version", e.Version)
					removed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached package(s).\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&templates, "templates", false, "Also clean the template cache")
	cmd.Flags().BoolVar(&keep, "keep-latest", false, "Keep the newest cached version of each package")
	return cmd
}

// newestVersions maps each package name to its highest cached version.
func newestVersions(entries []pkgcache.CacheEntry) map[string]string {
	byName := make(map[string][]string)
	for _, e := range entries {
		byName[e.Name] = append(byName[e.Name], e.Version)
	}
	newest := make(map[string]string, len(byName))
	for name, versions := range byName {
		if v, ok := registry.Latest(versions); ok {
			newest[name] = v
		}
	}
	return newest
}
