// Package manifest reads the package.json manifest shipped inside every
// command and template package. Manifests are validated against an embedded
// JSON Schema before they are decoded, and FindRoot locates the package root
// a manifest belongs to.
package manifest
