package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// nodeBootstrap loads the entry module and calls its exported function (or
// its default export) with the decoded argument array.
const nodeBootstrap = `
const { pathToFileURL } = require('url');
const [entry, payload] = process.argv.slice(1);
import(pathToFileURL(entry).href).then(async (mod) => {
  let fn = mod.default;
  if (fn && typeof fn !== 'function' && typeof fn.default === 'function') fn = fn.default;
  if (typeof fn !== 'function') throw new Error(entry + ' does not export a function');
  await fn(JSON.parse(payload));
}).catch((err) => {
  console.error(err && err.stack ? err.stack : err);
  process.exit(1);
});
`

// NodeRuntime runs JavaScript entries with Node.js.
type NodeRuntime struct {
	// Stdin, Stdout and Stderr can be set for testing; they default to the
	// parent's streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Launch runs `node -e <bootstrap> <entry> <payload>`.
func (n *NodeRuntime) Launch(ctx context.Context, req LaunchRequest) (*Result, error) {
	nodeBin, err := exec.LookPath("node")
	if err != nil {
		return nil, fmt.Errorf("node runtime requires Node.js: %w", err)
	}
	if _, err := os.Stat(req.Entry); err != nil {
		return nil, fmt.Errorf("entry point not found at %s: %w", req.Entry, err)
	}

	cmd := newCommand(ctx, nodeBin, "-e", nodeBootstrap, req.Entry, string(req.Payload))
	cmd.Dir = req.Dir
	cmd.Env = mergeEnv(os.Environ(), req.Env)
	attachStdio(cmd, n.Stdin, n.Stdout, n.Stderr)

	res, err := wait(cmd)
	if err != nil {
		return nil, fmt.Errorf("executing node entry %s: %w", req.Entry, err)
	}
	return res, nil
}

func attachStdio(cmd *exec.Cmd, stdin io.Reader, stdout, stderr io.Writer) {
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
}
