package pkgcache

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/scaff-cli/scaff/internal/registry"
)

// Latest is the version request that resolves to the newest published version.
const Latest = "latest"

// ErrInvalidSpec indicates a package name or version that cannot be cached.
var ErrInvalidSpec = errors.New("invalid package spec")

// npm package names: optional @scope/, lowercase URL-safe characters.
var namePattern = regexp.MustCompile(`^(@[a-z0-9-~][a-z0-9-._~]*/)?[a-z0-9-~][a-z0-9-._~]*$`)

const maxNameLength = 214

// PackageSpec identifies what to resolve. Construct it with NewSpec.
type PackageSpec struct {
	name      string
	version   string
	localPath string
}

// NewSpec validates name and version and returns a spec. version must be
// Latest or a strict semantic version; an empty version means Latest.
func NewSpec(name, version string) (PackageSpec, error) {
	if version == "" {
		version = Latest
	}
	if len(name) > maxNameLength || !namePattern.MatchString(name) {
		return PackageSpec{}, fmt.Errorf("%w: package name %q", ErrInvalidSpec, name)
	}
	if version != Latest && !registry.IsValidVersion(version) {
		return PackageSpec{}, fmt.Errorf("%w: version %q of %s is neither %q nor an exact semantic version", ErrInvalidSpec, version, name, Latest)
	}
	return PackageSpec{name: name, version: version}, nil
}

// NewLocalSpec returns a spec served from a local directory instead of the
// cache. Local specs never touch the registry or the installer.
func NewLocalSpec(name, path string) PackageSpec {
	return PackageSpec{name: name, version: Latest, localPath: path}
}

// Name returns the registry package name.
func (s PackageSpec) Name() string { return s.name }

// Version returns the requested version, possibly Latest.
func (s PackageSpec) Version() string { return s.version }

// LocalPath returns the local override directory, if any.
func (s PackageSpec) LocalPath() string { return s.localPath }

// IsLatest reports whether s asks for the newest version.
func (s PackageSpec) IsLatest() bool { return s.version == Latest }

func (s PackageSpec) String() string {
	if s.localPath != "" {
		return s.name + " (" + s.localPath + ")"
	}
	return s.name + "@" + s.version
}

// ResolvedPackage is a spec with its version pinned and its location known.
type ResolvedPackage struct {
	Name      string
	Version   string
	CacheKey  string
	LocalPath string
	// Local is set for local overrides, which are never installed or removed.
	Local bool
}

func (r *ResolvedPackage) String() string {
	return r.Name + "@" + r.Version
}

// CacheKey returns the cache directory name for a package version:
// _<name with / as _>@<version>@<name with / as %2F>. The first copy of the
// name keeps the directory readable, the second keeps it exactly reversible.
// The key never contains a path separator.
func CacheKey(name, version string) string {
	return "_" + strings.ReplaceAll(name, "/", "_") + "@" + version + "@" + strings.ReplaceAll(name, "/", "%2F")
}

// ParseCacheKey recovers the package name and version from a key built by
// CacheKey. It returns false for anything else.
func ParseCacheKey(key string) (name, version string, ok bool) {
	rest, found := strings.CutPrefix(key, "_")
	if !found {
		return "", "", false
	}
	for i := strings.LastIndex(rest, "@"); i > 0; i = strings.LastIndex(rest[:i], "@") {
		name = strings.ReplaceAll(rest[i+1:], "%2F", "/")
		prefix := strings.ReplaceAll(name, "/", "_") + "@"
		if name == "" || !strings.HasPrefix(rest, prefix) || len(prefix) >= i {
			continue
		}
		version = rest[len(prefix):i]
		if CacheKey(name, version) == key {
			return name, version, true
		}
	}
	return "", "", false
}
