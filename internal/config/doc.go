// Package config builds the explicit Config value the CLI is wired with.
// Settings come, in increasing precedence, from built-in defaults,
// ~/.scaff/config.yaml, SCAFF_* environment variables (after ~/.env has been
// loaded) and command-line flags bound by the cli package.
package config
