package execs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helmfile2compose/kubernetes2simple/pkg/log"
)

var (
	// ErrCommandExecution is returned when command execution fails.
	ErrCommandExecution = errors.New("run")

	// ErrEmptyCommand is returned when a command is empty.
	ErrEmptyCommand = errors.New("empty command")
)

// essentialVars are always inherited from the caller environment.
var essentialVars = []string{"PATH", "HOME", "USER", "TERM", "COLORTERM"}

// Result represents the result of a command execution.
type Result struct {
	Stdout string
	Stderr string
}

// Command manages common command execution properties. The subprocess
// environment starts from an essential-variable allowlist; additional
// variables are inherited via passthrough patterns or set explicitly.
type Command struct {
	baseEnv     map[string]string
	env         map[string]string
	passthrough []*regexp.Regexp

	// Command is the executable to run, by name or path.
	Command string
	// Args contains the command line arguments.
	Args []string
}

// CommandOpt is a functional option for configuring a [Command].
type CommandOpt func(*Command)

// NewCommand creates a new [Command] with the caller's environment as base.
func NewCommand(command string, opts ...CommandOpt) Command {
	c := Command{
		Command: command,
		env:     map[string]string{},
	}
	c.SetBaseEnv(os.Environ())

	for _, opt := range opts {
		opt(&c)
	}

	return c
}

// WithArgs sets the command arguments.
func WithArgs(args ...string) CommandOpt {
	return func(c *Command) {
		c.Args = args
	}
}

// WithEnv sets a single environment variable for the subprocess.
func WithEnv(name, value string) CommandOpt {
	return func(c *Command) {
		c.env[name] = value
	}
}

// WithPassthrough inherits caller environment variables whose names match
// any of the given patterns. Patterns are fixed at the call site, so a bad
// pattern is a programming error.
func WithPassthrough(patterns ...string) CommandOpt {
	return func(c *Command) {
		for _, p := range patterns {
			c.passthrough = append(c.passthrough, regexp.MustCompile(p))
		}
	}
}

// SetBaseEnv replaces the base environment, usually from [os.Environ].
func (c *Command) SetBaseEnv(baseEnv []string) {
	c.baseEnv = make(map[string]string)
	for _, envVar := range baseEnv {
		if eqIdx := strings.Index(envVar, "="); eqIdx != -1 {
			c.baseEnv[envVar[:eqIdx]] = envVar[eqIdx+1:]
		}
	}
}

// Environ constructs the environment for command execution.
func (c *Command) Environ() []string {
	envMap := make(map[string]string)

	for key, value := range c.baseEnv {
		if slices.Contains(essentialVars, key) {
			envMap[key] = value
		}

		for _, pattern := range c.passthrough {
			if pattern.MatchString(key) {
				envMap[key] = value

				break
			}
		}
	}

	for key, value := range c.env {
		envMap[key] = value
	}

	env := make([]string, 0, len(envMap))
	for key, value := range envMap {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}

// Exec runs the command in the given directory, blocking until it exits.
// On failure the [Result] is still returned when the tool produced output,
// so callers can surface its diagnostics.
func (c *Command) Exec(ctx context.Context, dir string) (*Result, error) {
	if c.Command == "" {
		return nil, ErrEmptyCommand
	}

	ctx, span := otel.Tracer("execs").Start(ctx, "exec")
	defer span.End()

	span.SetAttributes(
		attribute.String("command", c.Command),
		attribute.String("dir", dir),
	)

	//nolint:gosec // G204: Subprocess launched with a potential tainted input or cmd arguments.
	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Dir = dir
	cmd.Env = c.Environ()

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if stdout.Len() > 0 || stderr.Len() > 0 {
			return result, fmt.Errorf("%w: %w", ErrCommandExecution, err)
		}

		return nil, fmt.Errorf("%w: %w", ErrCommandExecution, err)
	}

	log.WithContext(ctx).DebugContext(ctx, "command executed successfully")

	return result, nil
}

func (c *Command) String() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", c.Command, strings.Join(c.Args, " ")))
}

// LookPath reports the resolved path of an executable on the ambient search
// path, if any.
func LookPath(name string) (string, bool) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}

	return path, true
}
