package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/scaff-cli/scaff/internal/branding"
)

var (
	// ErrArgument indicates a malformed argument array.
	ErrArgument = errors.New("invalid command arguments")
	// ErrAborted may be returned from Setup to stop before Run without
	// failing, e.g. when the user declines a confirmation.
	ErrAborted = errors.New("aborted")
)

// Command is implemented by every dispatched command.
type Command interface {
	// Setup validates the invocation and prepares Run. It runs before any
	// side effect.
	Setup(ctx context.Context, inv *Invocation) error
	Run(ctx context.Context, inv *Invocation) error
}

// Execute drives cmd through its lifecycle: validate, capture, setup, run.
// The first failing stage stops the lifecycle and its error is returned.
func Execute(ctx context.Context, raw []any, cmd Command) error {
	if len(raw) < 2 {
		return fmt.Errorf("validate: %w: expected at least 2 elements, got %d", ErrArgument, len(raw))
	}

	inv, err := capture(raw)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	if err := cmd.Setup(ctx, inv); err != nil {
		if errors.Is(err, ErrAborted) {
			return nil
		}
		return fmt.Errorf("setup: %w", err)
	}

	if err := cmd.Run(ctx, inv); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

func capture(raw []any) (*Invocation, error) {
	last := raw[len(raw)-1]
	opts, ok := last.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: last element must be an options object, got %T", ErrArgument, last)
	}
	positionals := make([]any, len(raw)-1)
	copy(positionals, raw[:len(raw)-1])
	return &Invocation{Positionals: positionals, Options: opts}, nil
}

// DecodePayload decodes the argument array the dispatcher passes as the
// last element of argv.
func DecodePayload(argv []string) ([]any, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: no payload", ErrArgument)
	}
	var raw []any
	if err := json.Unmarshal([]byte(argv[len(argv)-1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrArgument, err)
	}
	return raw, nil
}

// NewLogger returns the stderr logger command executables share with the
// CLI, honouring the log level the dispatcher passes down.
func NewLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: branding.CLIName()})
	if lvl, err := log.ParseLevel(os.Getenv(branding.EnvVar("LOG_LEVEL"))); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// Main runs cmd as the entry point of a command executable and exits the
// process. It returns only when the command succeeds.
func Main(cmd Command, logger *log.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	raw, err := DecodePayload(os.Args[1:])
	if err == nil {
		err = Execute(ctx, raw, cmd)
	}
	if err != nil {
		logger.Error(err.Error())
		stop()
		os.Exit(1)
	}
}
