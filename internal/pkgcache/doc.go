// Package pkgcache maps registry packages onto a flat on-disk cache.
//
// A PackageSpec names a package and either an exact version or "latest".
// Resolving it pins the version (asking the registry only for "latest") and
// derives a cache key, a directory name that is a pure function of name and
// version. Each cache directory is written once by an Installer and never
// modified afterwards; a new version gets a new directory.
package pkgcache
