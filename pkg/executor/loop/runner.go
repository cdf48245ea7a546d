package loop

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// RunOptions holds optional parameters for a subprocess
type RunOptions struct {
	Dir    string    // working directory
	Output io.Writer // receives combined stdout and stderr; nil discards
}

// Runner starts a subprocess and waits for it.
//
// Run returns the exit code when the process ran, even when it exited non-zero.
// It returns an error only when the process could not be started or the
// context was canceled.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts RunOptions) (int, error)
}

// ExecRunner is the os/exec implementation of Runner. It applies no timeout.
type ExecRunner struct{}

// Run executes the command and streams its output
func (ExecRunner) Run(ctx context.Context, name string, args []string, opts RunOptions) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir

	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}
