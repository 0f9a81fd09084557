package initcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/scaff-cli/scaff/internal/branding"
	"github.com/scaff-cli/scaff/internal/command"
	"github.com/scaff-cli/scaff/internal/pkgcache"
	"github.com/scaff-cli/scaff/internal/registry"
	"github.com/scaff-cli/scaff/internal/scaffold"
)

// TemplateDir is the directory inside a template package holding the
// project files.
const TemplateDir = "template"

// ErrInvalidProjectName indicates a project name init refuses to use.
var ErrInvalidProjectName = errors.New("invalid project name")

// Project names start with a letter; "-" and "_" must each be followed by a
// letter.
var projectNamePattern = regexp.MustCompile(`^[a-zA-Z]+([-][a-zA-Z][a-zA-Z0-9]*|[_][a-zA-Z][a-zA-Z0-9]*|[a-zA-Z0-9])*$`)

// DefaultTemplate is the template package used without --template.
func DefaultTemplate() string {
	return branding.CommandPackage("template-default")
}

// ValidProjectName reports whether name is an acceptable project name.
func ValidProjectName(name string) bool {
	return projectNamePattern.MatchString(name)
}

// Command is the init command.
type Command struct {
	// Dir is the directory the project is created in; empty means the
	// working directory.
	Dir       string
	Prompter  Prompter
	Templates TemplateSource
	Logger    *log.Logger

	data     *scaffold.Data
	template pkgcache.PackageSpec
}

// New creates the init command.
func New(templates TemplateSource, prompter Prompter, logger *log.Logger) *Command {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Command{Prompter: prompter, Templates: templates, Logger: logger}
}

// Setup validates the project name, version and template, and makes sure the
// target directory may be written, emptying it after confirmation.
func (c *Command) Setup(ctx context.Context, inv *command.Invocation) error {
	name := inv.Arg(0)
	if !ValidProjectName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidProjectName, name)
	}

	version := inv.String("version")
	if version == "" {
		version = scaffold.DefaultProjectVersion
	}
	if !registry.IsValidVersion(version) {
		return fmt.Errorf("invalid project version %q", version)
	}

	tmpl := inv.String("template")
	if tmpl == "" {
		tmpl = DefaultTemplate()
	}
	spec, err := ParseTemplate(tmpl)
	if err != nil {
		return err
	}

	if c.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		c.Dir = wd
	}
	if err := c.prepareDir(inv.Bool("force")); err != nil {
		return err
	}

	c.data = scaffold.NewData(name, version)
	c.template = spec
	return nil
}

// prepareDir empties a non-empty target directory. Without force the user
// must first agree to overwrite it; either way the deletion itself is
// confirmed separately.
func (c *Command) prepareDir(force bool) error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", c.Dir, err)
	}
	if len(entries) == 0 {
		return nil
	}

	if !force {
		ok, err := c.Prompter.Confirm(fmt.Sprintf("%s is not empty. Create the project here anyway?", c.Dir))
		if err != nil {
			return err
		}
		if !ok {
			return command.ErrAborted
		}
	}
	ok, err := c.Prompter.Confirm(fmt.Sprintf("All %d entries in %s will be deleted. Continue?", len(entries), c.Dir))
	if err != nil {
		return err
	}
	if !ok {
		return command.ErrAborted
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.Dir, e.Name())); err != nil {
			return fmt.Errorf("emptying %s: %w", c.Dir, err)
		}
	}
	c.Logger.Debug("emptied directory", "dir", c.Dir, "entries", len(entries))
	return nil
}

// Run fetches the template package and renders it into the directory.
func (c *Command) Run(ctx context.Context, inv *command.Invocation) error {
	c.Logger.Info("fetching template", "package", c.template.String())
	root, err := c.Templates.Fetch(ctx, c.template)
	if err != nil {
		return fmt.Errorf("fetching template %s: %w", c.template.String(), err)
	}

	res, err := scaffold.Render(filepath.Join(root, TemplateDir), c.Dir, c.data, scaffold.Options{})
	if err != nil {
		return fmt.Errorf("rendering template: %w", err)
	}
	for _, w := range res.Warnings {
		c.Logger.Warn(w)
	}
	c.Logger.Info("project created", "name", c.data.ProjectName, "dir", c.Dir, "files", len(res.Files))
	return nil
}
