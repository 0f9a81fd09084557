package runtime

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/scaff-cli/scaff/internal/platform"
)

// BinaryRuntime executes the entry file directly, for command packages
// shipping a compiled executable.
type BinaryRuntime struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Launch runs `<entry> <payload>`, marking the entry executable first if the
// tarball did not preserve its mode.
func (b *BinaryRuntime) Launch(ctx context.Context, req LaunchRequest) (*Result, error) {
	if err := platform.EnsureExecutable(req.Entry); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("entry point not found at %s: %w", req.Entry, err)
		}
		return nil, err
	}

	cmd := newCommand(ctx, req.Entry, string(req.Payload))
	cmd.Dir = req.Dir
	cmd.Env = mergeEnv(os.Environ(), req.Env)
	attachStdio(cmd, b.Stdin, b.Stdout, b.Stderr)

	res, err := wait(cmd)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", req.Entry, err)
	}
	return res, nil
}
