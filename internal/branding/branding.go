// Package branding provides compile-time identity values for the CLI.
//
// The values live in branding.yaml next to this file and are baked into the
// binary with //go:embed, so a fork only has to edit one file.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName      string `yaml:"cli_name"`
	DisplayName  string `yaml:"display_name"`
	Description  string `yaml:"description"`
	HomeDir      string `yaml:"home_dir"`
	EnvPrefix    string `yaml:"env_prefix"`
	GoModule     string `yaml:"go_module"`
	PackageName  string `yaml:"package_name"`
	CommandScope string `yaml:"command_scope"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing or empty.
		defaults = brand{
			CLIName:      "scaff",
			DisplayName:  "Scaff",
			Description:  "Bootstrap projects and components from remote templates",
			HomeDir:      ".scaff",
			EnvPrefix:    "SCAFF",
			GoModule:     "github.com/scaff-cli/scaff",
			PackageName:  "@scaff-cli/core",
			CommandScope: "@scaff-cli",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "scaff").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name (e.g., "Scaff").
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".scaff").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "SCAFF").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// PackageName returns the registry name the CLI itself is published under.
// The update notice compares the running version against it.
func PackageName() string { load(); return defaults.PackageName }

// CommandPackage returns the registry package implementing a subcommand,
// e.g. CommandPackage("init") → "@scaff-cli/init".
func CommandPackage(command string) string {
	load()
	return defaults.CommandScope + "/" + command
}

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "SCAFF_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
