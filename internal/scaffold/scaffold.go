package scaffold

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/scaff-cli/scaff/internal/manifest"
)

// DefaultProjectVersion is the version a new project starts at.
const DefaultProjectVersion = "1.0.0"

// Data holds all template variables available to project templates.
type Data struct {
	ProjectName    string // e.g., "my-app"
	ProjectVersion string // Semver, e.g., "1.0.0"
	Year           int    // Current year
}

// NewData creates Data for a project, defaulting the version.
func NewData(name, version string) *Data {
	if version == "" {
		version = DefaultProjectVersion
	}
	return &Data{
		ProjectName:    name,
		ProjectVersion: version,
		Year:           time.Now().Year(),
	}
}

// Options tunes a Render.
type Options struct {
	// Ignore lists slash-separated glob patterns, matched against paths
	// relative to the template root, that are copied without rendering.
	Ignore []string
}

// Result holds the outcome of a render.
type Result struct {
	OutputDir string
	// Files lists the written files relative to OutputDir, in walk order.
	Files    []string
	Warnings []string
}

// Render copies the template tree at srcDir into destDir, executing each file
// as a text/template with data. A ".tmpl" suffix is dropped from output names.
// Existing files in destDir are overwritten.
func Render(srcDir, destDir string, data any, opts Options) (*Result, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, fmt.Errorf("template directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template path %s is not a directory", srcDir)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	result := &Result{OutputDir: destDir}
	root := os.DirFS(srcDir)

	err = fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" {
				return fs.SkipDir
			}
			return os.MkdirAll(filepath.Join(destDir, filepath.FromSlash(p)), 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		content, err := fs.ReadFile(root, p)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", p, err)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		outRel := strings.TrimSuffix(p, ".tmpl")
		outPath := filepath.Join(destDir, filepath.FromSlash(outRel))

		if shouldRender(p, content, opts.Ignore) {
			content, err = execute(p, content, data)
			if err != nil {
				return err
			}
		}

		if err := os.WriteFile(outPath, content, info.Mode().Perm()|0600); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		result.Files = append(result.Files, outRel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Validate the generated package.json against the manifest schema.
	manifestFile := filepath.Join(destDir, manifest.FileName)
	if raw, err := os.ReadFile(manifestFile); err == nil {
		valResult, valErr := manifest.Validate(raw)
		if valErr != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Could not validate %s: %v", manifest.FileName, valErr))
		} else if !valResult.Valid {
			result.Warnings = append(result.Warnings, manifest.FileName+": "+valResult.String())
		}
	}

	return result, nil
}

// shouldRender reports whether a template file goes through text/template.
// Handlebars (.hbs) files use {{ }} syntax that conflicts with Go's
// text/template and binary files are never templates.
func shouldRender(p string, content []byte, ignore []string) bool {
	if strings.HasSuffix(p, ".hbs") || bytes.IndexByte(content, 0) >= 0 {
		return false
	}
	for _, pattern := range ignore {
		if ok, _ := path.Match(pattern, p); ok {
			return false
		}
		if ok, _ := path.Match(pattern, path.Base(p)); ok {
			return false
		}
	}
	return true
}

func execute(name string, content []byte, data any) ([]byte, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
