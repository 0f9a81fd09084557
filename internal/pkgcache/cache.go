package pkgcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/scaff-cli/scaff/internal/manifest"
	"github.com/scaff-cli/scaff/internal/registry"
)

var (
	// ErrNoVersionsFound indicates "latest" could not be resolved because the
	// registry knows no versions of the package (or could not be reached).
	ErrNoVersionsFound = errors.New("no versions found")
	// ErrInstall wraps every installer failure.
	ErrInstall = errors.New("install failed")
)

// VersionResolver resolves "latest" against a registry.
type VersionResolver interface {
	ResolveLatest(ctx context.Context, name, registryURL string) (string, bool)
}

// Entry is the executable entry point of an installed package.
type Entry struct {
	// Path is the absolute path of the declared main file.
	Path string
	// Root is the package root directory holding the manifest.
	Root     string
	Manifest *manifest.Package
}

// CacheEntry describes one installed package directory.
type CacheEntry struct {
	Key     string
	Name    string
	Version string
	Path    string
}

// Cache resolves specs and manages the package directories under one cache
// directory. It is safe for concurrent use.
type Cache struct {
	dir         string
	registryURL string
	resolver    VersionResolver
	installer   Installer
	logger      *log.Logger

	mu     sync.Mutex
	latest map[string]string
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for progress and debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithRegistry sets the registry URL passed to the resolver and installer.
// An empty URL lets them fall back to their default registry.
func WithRegistry(url string) Option {
	return func(c *Cache) {
		c.registryURL = url
	}
}

// New creates a Cache rooted at dir. The directory is expected to exist;
// it is created by the CLI's startup sequence.
func New(dir string, resolver VersionResolver, installer Installer, opts ...Option) *Cache {
	c := &Cache{
		dir:       dir,
		resolver:  resolver,
		installer: installer,
		logger:    log.New(io.Discard),
		latest:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// ResolveVersion pins the requested version. Exact versions are returned as-is
// without contacting the registry. "latest" is looked up once per Cache and
// package name; later calls reuse the first answer.
func (c *Cache) ResolveVersion(ctx context.Context, spec PackageSpec) (string, error) {
	if !spec.IsLatest() {
		return spec.Version(), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.latest[spec.Name()]; ok {
		return v, nil
	}
	v, ok := c.resolver.ResolveLatest(ctx, spec.Name(), c.registryURL)
	if !ok {
		return "", fmt.Errorf("%w for package %s", ErrNoVersionsFound, spec.Name())
	}
	c.logger.Debug("resolved latest version", "package", spec.Name(), "version", v)
	c.latest[spec.Name()] = v
	return v, nil
}

// LocalPath returns where the given version of spec lives on disk: the
// spec's local override when present, otherwise its cache directory.
func (c *Cache) LocalPath(spec PackageSpec, version string) string {
	if spec.LocalPath() != "" {
		return spec.LocalPath()
	}
	return filepath.Join(c.dir, CacheKey(spec.Name(), version))
}

// Resolve pins the requested version and computes its cache key and location.
// Local specs resolve without any registry access.
func (c *Cache) Resolve(ctx context.Context, spec PackageSpec) (*ResolvedPackage, error) {
	if spec.LocalPath() != "" {
		return &ResolvedPackage{
			Name:      spec.Name(),
			Version:   spec.Version(),
			CacheKey:  CacheKey(spec.Name(), spec.Version()),
			LocalPath: spec.LocalPath(),
			Local:     true,
		}, nil
	}

	version, err := c.ResolveVersion(ctx, spec)
	if err != nil {
		return nil, err
	}
	return &ResolvedPackage{
		Name:      spec.Name(),
		Version:   version,
		CacheKey:  CacheKey(spec.Name(), version),
		LocalPath: c.LocalPath(spec, version),
	}, nil
}

// Exists reports whether the package is present. A cache entry counts only
// when its manifest sits at the root of its directory, so a directory left
// empty or half-written is installed over. Any error while checking counts
// as absent.
func (c *Cache) Exists(pkg *ResolvedPackage) bool {
	if pkg.Local {
		_, err := os.Stat(pkg.LocalPath)
		return err == nil
	}
	info, err := os.Stat(filepath.Join(pkg.LocalPath, manifest.FileName))
	return err == nil && info.Mode().IsRegular()
}

// Install asks the installer to place pkg into its cache directory.
// It may be called over a directory left behind by an interrupted install;
// the installer replaces it.
func (c *Cache) Install(ctx context.Context, pkg *ResolvedPackage) error {
	if pkg.Local {
		return fmt.Errorf("%w: %s is a local package at %s", ErrInstall, pkg.Name, pkg.LocalPath)
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("%w: creating cache directory %s: %v", ErrInstall, c.dir, err)
	}

	c.logger.Info("installing package", "package", pkg.String())
	err := c.installer.Install(ctx, InstallRequest{
		Name:     pkg.Name,
		Version:  pkg.Version,
		Registry: c.registryURL,
		CacheDir: c.dir,
		Target:   pkg.LocalPath,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInstall, pkg.String(), err)
	}
	return nil
}

// Entry locates the package root and its declared main file. A local
// package's root is the nearest directory at or above its path holding a
// manifest; a cache entry's root is its own directory, and its manifest
// must name the resolved package and version. Entry returns nil without
// error when there is no root, no main entry, or a mismatched manifest.
func (c *Cache) Entry(pkg *ResolvedPackage) (*Entry, error) {
	if _, err := os.Stat(pkg.LocalPath); err != nil {
		return nil, nil
	}
	root := pkg.LocalPath
	if pkg.Local {
		var ok bool
		if root, ok = manifest.FindRoot(pkg.LocalPath); !ok {
			return nil, nil
		}
	} else if _, err := os.Stat(filepath.Join(root, manifest.FileName)); err != nil {
		return nil, nil
	}

	m, err := manifest.Load(filepath.Join(root, manifest.FileName))
	if err != nil {
		return nil, err
	}
	if !pkg.Local && (m.Name != pkg.Name || m.Version != pkg.Version) {
		c.logger.Warn("package manifest does not match cache entry",
			"want", pkg.String(), "got", m.Name+"@"+m.Version, "root", root)
		return nil, nil
	}
	path := m.EntryPath(root)
	if path == "" {
		return nil, nil
	}
	return &Entry{Path: path, Root: root, Manifest: m}, nil
}

// EntryFile returns the absolute path of the package's main file, or ""
// when none is declared.
func (c *Cache) EntryFile(pkg *ResolvedPackage) (string, error) {
	e, err := c.Entry(pkg)
	if err != nil || e == nil {
		return "", err
	}
	return e.Path, nil
}

// List returns the installed packages, sorted by name and version.
// Staging directories of in-flight installs are skipped.
func (c *Cache) List() ([]CacheEntry, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}

	var out []CacheEntry
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name, version, ok := ParseCacheKey(e.Name())
		if !ok {
			continue
		}
		out = append(out, CacheEntry{
			Key:     e.Name(),
			Name:    name,
			Version: version,
			Path:    filepath.Join(c.dir, e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		cmp, err := registry.CompareVersions(out[i].Version, out[j].Version)
		if err != nil || cmp == 0 {
			return out[i].Version < out[j].Version
		}
		return cmp < 0
	})
	return out, nil
}

// Remove deletes an installed cache entry. Local packages are never removed.
func (c *Cache) Remove(entry CacheEntry) error {
	if filepath.Dir(entry.Path) != filepath.Clean(c.dir) {
		return fmt.Errorf("refusing to remove %s: not inside cache directory %s", entry.Path, c.dir)
	}
	if err := os.RemoveAll(entry.Path); err != nil {
		return fmt.Errorf("removing %s: %w", entry.Key, err)
	}
	return nil
}
