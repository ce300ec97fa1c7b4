// Package runner spawns external tools with an explicit working directory
// and reports their exit codes.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Command is one external invocation
type Command struct {
	Name string
	Args []string
	Dir  string
}

// Argv returns the program followed by its arguments
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command as a shell-quoted line
func (c Command) String() string {
	argv := c.Argv()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// Runner executes commands and returns their exit code. A non-zero exit is
// a result, not an error; errors mean the command could not be run.
type Runner interface {
	Run(ctx context.Context, cmd Command) (int, error)
}

// ExecConfig configures the process runner
type ExecConfig struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// Exec runs commands as child processes
type Exec struct {
	config ExecConfig
	logger *zap.Logger
}

// NewExec creates a process runner. Nil writers discard output.
func NewExec(config ExecConfig) *Exec {
	if config.Stdout == nil {
		config.Stdout = io.Discard
	}
	if config.Stderr == nil {
		config.Stderr = io.Discard
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exec{config: config, logger: logger.Named("runner")}
}

// Run executes cmd and waits for it to exit
func (e *Exec) Run(ctx context.Context, c Command) (int, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}

	e.logger.Debug("starting command", zap.String("cmd", c.String()), zap.String("dir", c.Dir))
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("starting %s: %w", c.Name, err)
	}
	e.logger.Debug("command started", zap.Int("pid", cmd.Process.Pid))

	var g errgroup.Group
	g.Go(func() error { return streamOutput(stdout, e.config.Stdout) })
	g.Go(func() error { return streamOutput(stderr, e.config.Stderr) })
	streamErr := g.Wait()

	err = cmd.Wait()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return -1, fmt.Errorf("%s failed: %w", c.Name, err)
		}
		if ctx.Err() != nil {
			return -1, fmt.Errorf("%s interrupted: %w", c.Name, ctx.Err())
		}
		exitCode = exitErr.ExitCode()
	}
	if streamErr != nil {
		e.logger.Warn("output stream error", zap.String("cmd", c.Name), zap.Error(streamErr))
	}

	e.logger.Debug("command finished",
		zap.String("cmd", c.Name),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", time.Since(start)))
	return exitCode, nil
}

func streamOutput(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if _, err := io.WriteString(w, scanner.Text()+"\n"); err != nil {
			// Keep draining so the child never blocks on a full pipe
			w = io.Discard
		}
	}
	return scanner.Err()
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
