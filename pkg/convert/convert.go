// Package convert invokes the conversion script that turns rendered
// Kubernetes manifests into a local compose project.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/helmfile2compose/kubernetes2simple/pkg/execs"
	"github.com/helmfile2compose/kubernetes2simple/pkg/log"
)

// ErrConversionFailure is returned when the conversion script exits
// non-zero.
var ErrConversionFailure = errors.New("conversion")

// Request describes one conversion. SourceDir holds the plain manifests to
// convert, either a rendered target or the working directory itself.
type Request struct {
	SourceDir   string
	OutputDir   string
	Environment string
}

// Invoker runs the conversion script through a resolved interpreter.
// Command may be overridden from the config file; when empty, the default
// is the resolved interpreter running the cached script.
type Invoker struct {
	Python  string
	Script  string
	Command []string
}

// Run converts the request's manifests. Only the exit status decides the
// outcome; both streams are captured, and stderr is attached to the error
// when the script fails.
func (iv *Invoker) Run(ctx context.Context, req Request) error {
	ctx, span := otel.Tracer("convert").Start(ctx, "run", trace.WithAttributes(
		attribute.String("source", req.SourceDir),
		attribute.String("output", req.OutputDir),
	))
	defer span.End()

	argv := iv.Command
	if len(argv) == 0 {
		argv = []string{iv.Python, iv.Script}
	}

	args := append([]string{}, argv[1:]...)
	args = append(args, req.SourceDir, "--output-dir", req.OutputDir)
	if req.Environment != "" {
		args = append(args, "--env", req.Environment)
	}

	cmd := execs.NewCommand(argv[0], execs.WithArgs(args...))

	log.WithContext(ctx).DebugContext(ctx, "converting",
		slog.String("command", cmd.String()),
	)

	if res, err := cmd.Exec(ctx, ""); err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return fmt.Errorf("%w: %w: %s", ErrConversionFailure, err, strings.TrimSpace(res.Stderr))
		}

		return fmt.Errorf("%w: %w", ErrConversionFailure, err)
	}

	return nil
}
