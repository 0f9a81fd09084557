// Package updater tells the user when a newer release of the CLI itself has
// been published to the registry. The latest version is looked up at most
// once a day and remembered in version-check.json under the CLI home.
package updater
