package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/scaff-cli/scaff/internal/branding"
	"github.com/scaff-cli/scaff/internal/config"
	"github.com/scaff-cli/scaff/internal/dispatch"
	"github.com/scaff-cli/scaff/internal/pkgcache"
	"github.com/scaff-cli/scaff/internal/registry"
	"github.com/scaff-cli/scaff/internal/updater"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// buildInfo is injected via ldflags at build time.
type buildInfo struct {
	version string
	commit  string
	date    string
}

// app carries the state shared by the commands of one invocation.
type app struct {
	build  buildInfo
	v      *viper.Viper
	logger *log.Logger
	debug  bool

	cfg        *config.Config
	client     *registry.Client
	cache      *pkgcache.Cache
	dispatcher *dispatch.Dispatcher

	// exitCode is set by dispatched commands to the child's exit status.
	exitCode int
}

func newApp(build buildInfo, stderr io.Writer) *app {
	return &app{
		build:  build,
		v:      config.New(),
		logger: log.NewWithOptions(stderr, log.Options{Prefix: branding.CLIName()}),
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   branding.CLIName(),
		Short: branding.Description(),
		Long: branding.DisplayName() + ` creates projects and components from templates published to an npm registry.

Commands such as init are themselves packages: on first use the matching
package is downloaded into ~/` + branding.HomeDir() + ` and then run in a child process.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(a.v, cmd.Root().PersistentFlags()); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			// The version command must work offline and print nothing else.
			if cmd.Name() != "version" {
				a.notifyUpdate(cmd.Context(), cmd.ErrOrStderr())
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	flags.String("target-path", "", "Run commands from a local package directory instead of the registry")
	flags.String("registry", "", "Registry base URL (default "+registry.MirrorRegistry+")")
	flags.Bool("upstream", false, "Use "+registry.UpstreamRegistry+" instead of the mirror")
	flags.String("home", "", "CLI home directory (default ~/"+branding.HomeDir()+")")

	root.AddCommand(
		newInitCmd(a),
		newVersionCmd(a),
		newWhichCmd(a),
		newCacheCmd(a),
		newConfigCmd(a),
	)
	return root
}

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"target-path": config.KeyTargetPath,
	"registry":    config.KeyRegistry,
	"upstream":    config.KeyUpstream,
	"home":        config.KeyHome,
}

// bindFlags lets the persistent flags override config file and environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(flagKeys)) {
		if err := v.BindPFlag(flagKeys[name], flags.Lookup(name)); err != nil {
			errs = append(errs, fmt.Errorf("binding --%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// setup loads configuration and wires the components every command uses.
func (a *app) setup() error {
	if err := config.LoadDotEnv(); err != nil {
		a.logger.Warn("ignoring ~/.env", "err", err)
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		a.logger.SetLevel(lvl)
	}
	if os.Geteuid() == 0 {
		a.logger.Warn("running as root; files under the CLI home will be owned by root", "home", cfg.HomePath)
	}
	if err := config.EnsureDirs(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	a.client = registry.New(
		registry.WithLogger(a.logger),
		registry.WithUserAgent(branding.CLIName()+"/"+a.build.version),
		registry.WithDefaultRegistry(cfg.RegistryURL()),
	)
	a.cache = pkgcache.New(cfg.CacheDir(), a.client,
		pkgcache.NewTarballInstaller(a.client, pkgcache.WithInstallerLogger(a.logger)),
		pkgcache.WithRegistry(cfg.RegistryURL()),
		pkgcache.WithLogger(a.logger),
	)
	a.dispatcher = dispatch.New(cfg, a.cache, dispatch.WithLogger(a.logger))

	a.logger.Debug("configuration loaded", "home", cfg.HomePath, "registry", cfg.RegistryURL(), "target", cfg.TargetPath)
	return nil
}

func (a *app) notifyUpdate(ctx context.Context, w io.Writer) {
	u := updater.New(a.build.version, a.client,
		updater.WithRegistry(a.cfg.RegistryURL()),
		updater.WithLogger(a.logger),
	)
	u.CheckAndPrint(ctx, w, a.cfg.HomePath)
}

// Execute runs the CLI with build info injected via ldflags and returns the
// process exit code.
func Execute(version, commit, date string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, buildInfo{version: version, commit: commit, date: date}, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, build buildInfo, args []string, stdout, stderr io.Writer) int {
	a := newApp(build, stderr)
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		a.logger.Error(err.Error())
		if a.exitCode != 0 {
			return a.exitCode
		}
		return 1
	}
	return a.exitCode
}
