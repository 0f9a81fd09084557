// Package runtime launches a command package's entry file in a child process.
//
// The child receives the JSON argument array as its last argv element and
// shares the parent's working directory, environment and standard streams.
// Select picks NodeRuntime or BinaryRuntime from the package manifest.
package runtime
