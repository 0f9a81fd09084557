package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"syscall"
	"time"

	"github.com/scaff-cli/scaff/internal/manifest"
)

// Runtime launches a command entry file.
type Runtime interface {
	// Launch runs the entry to completion. A non-zero exit status of the child
	// is reported in Result, not as an error.
	Launch(ctx context.Context, req LaunchRequest) (*Result, error)
}

// LaunchRequest describes one child process.
type LaunchRequest struct {
	// Entry is the absolute path of the file to run.
	Entry string
	// Dir is the child's working directory; empty inherits the parent's.
	Dir string
	// Payload is the JSON-encoded argument array.
	Payload []byte
	// Env is added to the inherited environment.
	Env []string
}

// Result reports how the child exited.
type Result struct {
	ExitCode int
}

// Supported runtime identifiers.
const (
	RuntimeNode   = manifest.RuntimeNode
	RuntimeBinary = manifest.RuntimeBinary
)

// Select returns the runtime for a package entry. The manifest's runtime
// field wins; otherwise JavaScript files run under node and anything else is
// executed directly.
func Select(m *manifest.Package, entry string) Runtime {
	name := ""
	if m != nil {
		name = m.Runtime
	}
	if name == "" {
		switch strings.ToLower(filepath.Ext(entry)) {
		case ".js", ".cjs", ".mjs":
			name = RuntimeNode
		default:
			name = RuntimeBinary
		}
	}
	return ByName(name)
}

// ByName returns the runtime for an identifier. Unknown identifiers yield a
// runtime whose every launch fails.
func ByName(name string) Runtime {
	switch name {
	case RuntimeNode:
		return &NodeRuntime{}
	case RuntimeBinary:
		return &BinaryRuntime{}
	default:
		return &unknownRuntime{name: name}
	}
}

type unknownRuntime struct {
	name string
}

func (u *unknownRuntime) Launch(context.Context, LaunchRequest) (*Result, error) {
	return nil, fmt.Errorf("unknown runtime %q: supported runtimes are %q and %q", u.name, RuntimeNode, RuntimeBinary)
}

// interruptGrace is how long a cancelled child may take to exit after
// being interrupted before it is killed.
const interruptGrace = 5 * time.Second

// newCommand builds a child process that is interrupted, not killed, when
// ctx is cancelled, so the command can run its own shutdown path.
func newCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		if goruntime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = interruptGrace
	return cmd
}

// wait runs cmd and converts its exit status into a Result.
func wait(cmd *exec.Cmd) (*Result, error) {
	err := cmd.Run()
	if err == nil {
		return &Result{ExitCode: 0}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Result{ExitCode: exitCode(exitErr.ProcessState)}, nil
	}
	// A child that exits cleanly after an interrupt is reported through the
	// context error; its own status still decides the result.
	if cmd.ProcessState != nil {
		return &Result{ExitCode: exitCode(cmd.ProcessState)}, nil
	}
	return nil, err
}

// exitCode maps a child terminated by a signal to 128+signal, as shells do.
func exitCode(ps *os.ProcessState) int {
	if code := ps.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

// setEnv sets or replaces an environment variable in the env slice.
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

// mergeEnv overlays KEY=VALUE pairs onto base.
func mergeEnv(base, extra []string) []string {
	env := append([]string(nil), base...)
	for _, kv := range extra {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env = setEnv(env, key, value)
	}
	return env
}
