package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/scaff-cli/scaff/internal/branding"
	"github.com/scaff-cli/scaff/internal/config"
	"github.com/scaff-cli/scaff/internal/manifest"
	"github.com/scaff-cli/scaff/internal/pkgcache"
	"github.com/scaff-cli/scaff/internal/runtime"
)

var (
	// ErrUnknownCommand indicates a command name with no package mapping.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrEntryNotFound indicates a resolved package without a main entry.
	ErrEntryNotFound = errors.New("entry file not found")
	// ErrLaunch indicates the child process could not be started.
	ErrLaunch = errors.New("launch failed")
)

// DefaultCommands maps each built-in command to its package.
func DefaultCommands() map[string]string {
	return map[string]string{
		"init": branding.CommandPackage("init"),
	}
}

// Invocation is one command as parsed by the CLI front-end.
type Invocation struct {
	Command string
	Args    []string
	// Options holds the command's flags. Keys starting with "_" and the
	// "parent" key carry front-end state and are never forwarded.
	Options map[string]any
}

// PackageCache is the subset of pkgcache.Cache the dispatcher uses.
type PackageCache interface {
	Resolve(ctx context.Context, spec pkgcache.PackageSpec) (*pkgcache.ResolvedPackage, error)
	Exists(pkg *pkgcache.ResolvedPackage) bool
	Install(ctx context.Context, pkg *pkgcache.ResolvedPackage) error
	Entry(pkg *pkgcache.ResolvedPackage) (*pkgcache.Entry, error)
}

// RuntimeSelector picks the runtime for an entry file.
type RuntimeSelector func(m *manifest.Package, entry string) runtime.Runtime

// Dispatcher runs commands through their packages.
type Dispatcher struct {
	cfg      *config.Config
	cache    PackageCache
	commands map[string]string
	runtimes RuntimeSelector
	logger   *log.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCommands replaces the command table.
func WithCommands(commands map[string]string) Option {
	return func(d *Dispatcher) {
		d.commands = commands
	}
}

// WithRuntimeSelector replaces runtime.Select.
func WithRuntimeSelector(s RuntimeSelector) Option {
	return func(d *Dispatcher) {
		d.runtimes = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a Dispatcher.
func New(cfg *config.Config, cache PackageCache, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		cache:    cache,
		commands: DefaultCommands(),
		runtimes: runtime.Select,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Commands returns the known command names, sorted.
func (d *Dispatcher) Commands() []string {
	return slices.Sorted(maps.Keys(d.commands))
}

// PackageName returns the package a command runs.
func (d *Dispatcher) PackageName(command string) (string, error) {
	name, ok := d.commands[command]
	if !ok {
		return "", fmt.Errorf("%w %q: known commands are %s", ErrUnknownCommand, command, strings.Join(d.Commands(), ", "))
	}
	return name, nil
}

// Resolve maps a command to its package and pins the version without
// installing anything. With a configured target path the package is the
// local checkout.
func (d *Dispatcher) Resolve(ctx context.Context, command string) (*pkgcache.ResolvedPackage, error) {
	name, err := d.PackageName(command)
	if err != nil {
		return nil, err
	}

	if d.cfg.TargetPath != "" {
		d.logger.Debug("using local package", "package", name, "path", d.cfg.TargetPath)
		return d.cache.Resolve(ctx, pkgcache.NewLocalSpec(name, d.cfg.TargetPath))
	}

	spec, err := pkgcache.NewSpec(name, pkgcache.Latest)
	if err != nil {
		return nil, err
	}
	return d.cache.Resolve(ctx, spec)
}

// Dispatch runs inv and returns the exit code the process should exit with.
// The error is non-nil whenever the command could not be run; a command that
// ran and exited non-zero is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) (int, error) {
	pkg, err := d.Resolve(ctx, inv.Command)
	if err != nil {
		return 1, err
	}

	if !pkg.Local && !d.cache.Exists(pkg) {
		if err := d.cache.Install(ctx, pkg); err != nil {
			return 1, err
		}
	}
	d.logger.Debug("package ready", "package", pkg.String(), "path", pkg.LocalPath)

	entry, err := d.cache.Entry(pkg)
	if err != nil {
		return 1, fmt.Errorf("reading manifest of %s: %w", pkg.String(), err)
	}
	if entry == nil {
		return 1, fmt.Errorf("%w: %s has no matching manifest with a main file at %s", ErrEntryNotFound, pkg.String(), pkg.LocalPath)
	}

	payload, err := EncodePayload(inv.Args, SanitizeOptions(inv.Options))
	if err != nil {
		return 1, err
	}

	d.logger.Debug("launching command", "command", inv.Command, "entry", entry.Path)
	res, err := d.runtimes(entry.Manifest, entry.Path).Launch(ctx, runtime.LaunchRequest{
		Entry:   entry.Path,
		Payload: payload,
		Env:     d.childEnv(),
	})
	if err != nil {
		d.logger.Error("command failed to start", "command", inv.Command, "err", err)
		return 1, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	return res.ExitCode, nil
}

// childEnv passes the resolved settings on so command packages use the same
// home, caches and registry as the parent.
func (d *Dispatcher) childEnv() []string {
	env := []string{
		branding.EnvVar(config.KeyHome) + "=" + d.cfg.HomePath,
		branding.EnvVar(config.KeyCacheDir) + "=" + d.cfg.CacheDirName,
		branding.EnvVar(config.KeyTemplateCacheDir) + "=" + d.cfg.TemplateCacheDirName,
		branding.EnvVar(config.KeyRegistry) + "=" + d.cfg.RegistryURL(),
	}
	if d.cfg.LogLevel != "" {
		env = append(env, branding.EnvVar(config.KeyLogLevel)+"="+d.cfg.LogLevel)
	}
	return env
}

// SanitizeOptions returns a copy of opts without front-end state: keys
// starting with "_" and the "parent" key. The result is never nil.
func SanitizeOptions(opts map[string]any) map[string]any {
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		if strings.HasPrefix(k, "_") || k == "parent" {
			continue
		}
		out[k] = v
	}
	return out
}

// EncodePayload builds the argument array handed to the child:
// the positionals followed by the options object.
func EncodePayload(args []string, opts map[string]any) ([]byte, error) {
	raw := make([]any, 0, len(args)+1)
	for _, a := range args {
		raw = append(raw, a)
	}
	if opts == nil {
		opts = map[string]any{}
	}
	raw = append(raw, opts)
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding command arguments: %w", err)
	}
	return payload, nil
}
