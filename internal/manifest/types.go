package manifest

// FileName is the manifest file name at a package root.
const FileName = "package.json"

// Supported values of the optional runtime field.
const (
	RuntimeNode   = "node"
	RuntimeBinary = "binary"
)

// Package is the subset of package.json the CLI cares about.
type Package struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Main         string            `json:"main,omitempty"`
	Runtime      string            `json:"runtime,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HasDependencies reports whether the package declares runtime dependencies.
func (p *Package) HasDependencies() bool {
	return len(p.Dependencies) > 0
}
