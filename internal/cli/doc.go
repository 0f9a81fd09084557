// Package cli defines the Cobra command tree for the scaff CLI. The root
// command loads configuration and wires the registry client, package cache
// and dispatcher; dispatched commands such as init hand their arguments to
// the dispatcher, while maintenance commands (version, which, cache, config)
// run in-process.
package cli
