package analyzer

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Exit codes the adapter classifies specially. The runner reports a timeout
// as 124 and a missing executable as 127, mirroring shell conventions.
const (
	exitTimeout  = 124
	exitNotFound = 127
)

// runResult holds the outcome of one analyzer subprocess invocation.
type runResult struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// run executes a command with the context's deadline, capturing output and
// duration. The subprocess working directory is set to dir so the analyzer
// can resolve imports relative to the contract file.
func run(ctx context.Context, name string, args []string, dir string) runResult {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := runResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = 1
		}

		if ctx.Err() == context.DeadlineExceeded {
			res.ExitCode = exitTimeout
		} else if errors.Is(err, exec.ErrNotFound) {
			res.ExitCode = exitNotFound
		}
	}

	return res
}
