//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/scaff-cli/scaff/internal/branding"
	"github.com/scaff-cli/scaff/internal/command"
	"github.com/scaff-cli/scaff/internal/dispatch"
	"github.com/scaff-cli/scaff/internal/initcmd"
	"github.com/scaff-cli/scaff/internal/pkgcache"
	"github.com/scaff-cli/scaff/internal/registry"
)

// recordingCommand is a binary command package that writes the payload it
// received into the scaff home and exits with $EXIT_CODE.
var recordingCommand = map[string]tarFile{
	"package.json": {body: `{"name": "@scaff-cli/init", "version": "1.2.0", "main": "bin/init", "runtime": "binary"}`},
	"bin/init": {
		body: "#!/bin/sh\nprintf '%s' \"$1\" > \"$SCAFF_HOME/payload.json\"\nexit ${EXIT_CODE:-0}\n",
		mode: 0755,
	},
}

func newDispatcher(t *testing.T, reg *fakeRegistry) (*dispatch.Dispatcher, *pkgcache.Cache, string) {
	t.Helper()
	return newDispatcherAt(t, reg, t.TempDir())
}

// newDispatcherAt wires a dispatcher the way the CLI does, over the home
// directory home.
func newDispatcherAt(t *testing.T, reg *fakeRegistry, home string) (*dispatch.Dispatcher, *pkgcache.Cache, string) {
	t.Helper()
	cfg := newConfig(t, home, reg.URL())
	client := registry.New(registry.WithDefaultRegistry(reg.URL()))
	installer := pkgcache.NewTarballInstaller(client, pkgcache.WithDependencyInstaller(nil))
	cache := pkgcache.New(cfg.CacheDir(), client, installer, pkgcache.WithRegistry(cfg.RegistryURL()))
	return dispatch.New(cfg, cache), cache, home
}

// TestDispatchInstallsOnceAndRuns covers the full path of a command: version
// resolution against the registry, tarball install, entry lookup, and the
// child process receiving the JSON payload.
func TestDispatchInstallsOnceAndRuns(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("binary command packages are shell scripts")
	}
	reg := newFakeRegistry(t)
	reg.publish(t, "@scaff-cli/init", "1.0.0", recordingCommand)
	reg.publish(t, "@scaff-cli/init", "1.2.0", recordingCommand)
	ctx := context.Background()

	d, cache, home := newDispatcher(t, reg)
	inv := dispatch.Invocation{
		Command: "init",
		Args:    []string{"myapp"},
		Options: map[string]any{"force": true, "parent": map[string]any{"debug": true}, "_command": "init"},
	}

	code, err := d.Dispatch(ctx, inv)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	data, err := os.ReadFile(filepath.Join(home, "payload.json"))
	if err != nil {
		t.Fatalf("reading payload: %v", err)
	}
	var payload []any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("payload %q is not a JSON array: %v", data, err)
	}
	if len(payload) != 2 || payload[0] != "myapp" {
		t.Fatalf("payload = %v, want [myapp {force:true}]", payload)
	}
	opts, _ := payload[1].(map[string]any)
	if len(opts) != 1 || opts["force"] != true {
		t.Errorf("options = %v, want only force", opts)
	}

	entries, err := cache.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Version != "1.2.0" {
		t.Fatalf("cache entries = %+v, want only 1.2.0", entries)
	}

	// A second process finds the package already installed.
	d2, _, _ := newDispatcherAt(t, reg, home)
	if _, err := d2.Dispatch(ctx, inv); err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
	if n := reg.Downloads("@scaff-cli/init"); n != 1 {
		t.Errorf("tarball downloads = %d, want 1", n)
	}
}

func TestDispatchPropagatesExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("binary command packages are shell scripts")
	}
	reg := newFakeRegistry(t)
	reg.publish(t, "@scaff-cli/init", "1.2.0", recordingCommand)
	t.Setenv("EXIT_CODE", "3")

	d, _, _ := newDispatcher(t, reg)
	code, err := d.Dispatch(context.Background(), dispatch.Invocation{Command: "init", Args: []string{"myapp"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestDispatchUnpublishedCommand(t *testing.T) {
	reg := newFakeRegistry(t)
	d, cache, _ := newDispatcher(t, reg)

	code, err := d.Dispatch(context.Background(), dispatch.Invocation{Command: "init", Args: []string{"myapp"}})
	if err == nil {
		t.Fatal("expected error for a package with no versions")
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if dirs := cacheDirs(t, cache.Dir()); len(dirs) != 0 {
		t.Errorf("cache = %v, want empty", dirs)
	}
	if n := reg.Downloads(branding.CommandPackage("init")); n != 0 {
		t.Errorf("tarball downloads = %d, want 0", n)
	}
}

// TestInitFromRegistryTemplate installs a template package from the registry
// and renders it into an empty directory.
func TestInitFromRegistryTemplate(t *testing.T) {
	reg := newFakeRegistry(t)
	reg.publish(t, initcmd.DefaultTemplate(), "2.0.0", map[string]tarFile{
		"package.json":               {body: `{"name": "@scaff-cli/template-default", "version": "2.0.0"}`},
		"template/package.json":      {body: `{"name": "{{.ProjectName}}", "version": "{{.ProjectVersion}}"}`},
		"template/src/index.js.tmpl": {body: "console.log('{{.ProjectName}}')\n"},
		"template/README.hbs":        {body: "# {{name}}\n"},
	})
	cfg := newConfig(t, t.TempDir(), reg.URL())
	client := registry.New(registry.WithDefaultRegistry(reg.URL()))
	installer := pkgcache.NewTarballInstaller(client, pkgcache.WithDependencyInstaller(nil))
	templates := pkgcache.New(cfg.TemplateCacheDir(), client, installer, pkgcache.WithRegistry(cfg.RegistryURL()))

	cmd := initcmd.New(initcmd.NewCacheTemplates(templates), initcmd.NewLinePrompter(strings.NewReader(""), io.Discard), log.New(io.Discard))
	cmd.Dir = filepath.Join(t.TempDir(), "myapp")

	raw := []any{"myapp", map[string]any{"version": "0.1.0"}}
	if err := command.Execute(context.Background(), raw, cmd); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	assertFileContains(t, filepath.Join(cmd.Dir, "package.json"), `"name": "myapp"`)
	assertFileContains(t, filepath.Join(cmd.Dir, "package.json"), `"version": "0.1.0"`)
	assertFileContains(t, filepath.Join(cmd.Dir, "src", "index.js"), "console.log('myapp')")
	assertFileContains(t, filepath.Join(cmd.Dir, "README.hbs"), "{{name}}")
	assertFileNotExists(t, filepath.Join(cmd.Dir, "src", "index.js.tmpl"))

	installed := cacheDirs(t, cfg.TemplateCacheDir())
	if len(installed) != 1 || installed[0] != pkgcache.CacheKey(initcmd.DefaultTemplate(), "2.0.0") {
		t.Errorf("template cache = %v", installed)
	}
	assertFileExists(t, filepath.Join(cfg.TemplateCacheDir(), installed[0], "template", "package.json"))
}
