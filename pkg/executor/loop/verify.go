package loop

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
)

// CommandVerifier runs the configured verification command through a shell.
// Its result is advisory: the driver logs it and carries on either way.
type CommandVerifier struct {
	command string
	runner  Runner
}

// NewCommandVerifier creates a verifier, or returns nil when command is blank
func NewCommandVerifier(command string, runner Runner) *CommandVerifier {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	return &CommandVerifier{command: command, runner: runner}
}

// Command returns the shell command string
func (v *CommandVerifier) Command() string {
	return v.command
}

// Execute runs the command in workspaceDir. Output is copied to output and
// also kept on the returned error when the command fails.
func (v *CommandVerifier) Execute(ctx context.Context, workspaceDir string, output io.Writer) error {
	var captured bytes.Buffer
	w := io.Writer(&captured)
	if output != nil {
		w = io.MultiWriter(&captured, output)
	}

	code, err := v.runner.Run(ctx, "sh", []string{"-c", v.command}, RunOptions{
		Dir:    workspaceDir,
		Output: w,
	})
	if err != nil {
		return &VerificationError{
			Command:  v.command,
			Output:   captured.String(),
			ExitCode: -1,
			Err:      err,
		}
	}
	if code != 0 {
		return &VerificationError{
			Command:  v.command,
			Output:   captured.String(),
			ExitCode: code,
			Err:      fmt.Errorf("exit status %d", code),
		}
	}
	return nil
}

// VerificationError represents a failed verification run
type VerificationError struct {
	Command  string
	Output   string
	ExitCode int
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification '%s' failed: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error
func (e *VerificationError) Unwrap() error {
	return e.Err
}
