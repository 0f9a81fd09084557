// Package dispatch turns a CLI command into a run of its command package.
//
// Each command name maps to a registry package. Dispatch resolves that
// package through the package cache (or a local checkout when a target path
// is configured), installs it on first use, and launches its entry file in
// a child process with the command's positionals and sanitized options.
package dispatch
