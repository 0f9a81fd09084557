package initcmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/scaff-cli/scaff/internal/pkgcache"
)

// TemplateSource makes a template package available on disk.
type TemplateSource interface {
	// Fetch returns the root directory of the installed package.
	Fetch(ctx context.Context, spec pkgcache.PackageSpec) (string, error)
}

// CacheTemplates installs template packages into a package cache.
type CacheTemplates struct {
	cache *pkgcache.Cache
}

// NewCacheTemplates returns a TemplateSource backed by cache.
func NewCacheTemplates(cache *pkgcache.Cache) *CacheTemplates {
	return &CacheTemplates{cache: cache}
}

// Fetch implements TemplateSource.
func (c *CacheTemplates) Fetch(ctx context.Context, spec pkgcache.PackageSpec) (string, error) {
	pkg, err := c.cache.Resolve(ctx, spec)
	if err != nil {
		return "", err
	}
	if !pkg.Local && !c.cache.Exists(pkg) {
		if err := c.cache.Install(ctx, pkg); err != nil {
			return "", err
		}
	}
	return pkg.LocalPath, nil
}

// ParseTemplate splits "name" or "name@version" into a package spec.
// The leading @ of a scoped name is not a version separator.
func ParseTemplate(s string) (pkgcache.PackageSpec, error) {
	name, version := s, ""
	if i := strings.LastIndex(s, "@"); i > 0 {
		name, version = s[:i], s[i+1:]
		if version == "" {
			return pkgcache.PackageSpec{}, fmt.Errorf("%w: empty version in %q", pkgcache.ErrInvalidSpec, s)
		}
	}
	return pkgcache.NewSpec(name, version)
}
