// Package converter runs the external shapefile to KML converter and
// classifies what it reports.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrExecutionFailed means the converter process could not be started or read from.
	ErrExecutionFailed = errors.New("converter execution failed")
	// ErrTimeout means the converter ran longer than its configured budget.
	ErrTimeout = errors.New("converter timed out")
)

// waitDelay bounds how long Wait keeps reading pipes after the process is killed.
const waitDelay = 5 * time.Second

type Options struct {
	// Command is the argv prefix, e.g. python3 -u scripts/shapefile_to_kml.py.
	Command          []string
	NameField        string
	DescriptionField string
	Timeout          time.Duration
}

// Invoker runs one converter process per call.
type Invoker struct {
	opts Options
}

func NewInvoker(opts Options) *Invoker {
	return &Invoker{opts: opts}
}

// Args returns the full argv for one run.
func (i *Invoker) Args(inputDir, outputDir string) []string {
	args := make([]string, 0, len(i.opts.Command)+8)
	args = append(args, i.opts.Command...)
	return append(args,
		"--input_path", inputDir,
		"--output_path", outputDir,
		"--name_field", i.opts.NameField,
		"--description_field", i.opts.DescriptionField,
	)
}

// Convert runs the converter against inputDir, writing into outputDir, and returns
// the diagnostic blob: stdout lines joined by newlines, then the stderr buffer.
// The process exit status is not an error; only failing to run it is.
func (i *Invoker) Convert(ctx context.Context, inputDir, outputDir string) (string, error) {
	if len(i.opts.Command) == 0 {
		return "", fmt.Errorf("%w: no command configured", ErrExecutionFailed)
	}
	if i.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.opts.Timeout)
		defer cancel()
	}

	argv := i.Args(inputDir, outputDir)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("%w after %s", ErrTimeout, i.opts.Timeout)
	case ctx.Err() != nil:
		return "", ctx.Err()
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return "", fmt.Errorf("%w: %v", ErrExecutionFailed, runErr)
		}
	}

	lines := splitLines(stdout.String())
	return strings.Join(append(lines, stderr.String()), "\n"), nil
}

// splitLines mirrors line-mode reading of a stream: a trailing newline does not
// start an empty line and CRLF endings are dropped.
func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for n, l := range lines {
		lines[n] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
