package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Cmd describes one external process invocation.
type Cmd struct {
	Argv []string
	Dir  string
	Env  []string // appended to the inherited environment
	// Stdin, if non-empty, is fed to the process.
	Stdin string
}

// Result captures a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands. Providers depend on this seam instead
// of os/exec directly so their convergence logic is testable without a live
// host.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// System is the Runner backed by os/exec.
type System struct{}

func NewSystem() *System {
	return &System{}
}

func (s *System) Run(ctx context.Context, cmd Cmd) (Result, error) {
	if len(cmd.Argv) == 0 {
		return Result{}, errors.New("empty command")
	}

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		// Non-zero exit is a result, not a transport failure; callers decide
		// what each exit code means.
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, fmt.Errorf("exec %s: %w", cmd.Argv[0], err)
	}
}

// Failed reports whether the process exited non-zero.
func (r Result) Failed() bool {
	return r.ExitCode != 0
}

// Err converts a non-zero exit into an error carrying stderr context.
func (r Result) Err(argv []string) error {
	if !r.Failed() {
		return nil
	}
	msg := strings.TrimSpace(r.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(r.Stdout)
	}
	return fmt.Errorf("%s exited %d: %s", strings.Join(argv, " "), r.ExitCode, msg)
}
