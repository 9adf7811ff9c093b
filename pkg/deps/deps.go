package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/helmfile2compose/kubernetes2simple/pkg/log"
)

var (
	// ErrToolAcquisition is returned when a dependency could not be made
	// usable: tag resolution, download, or extraction failed.
	ErrToolAcquisition = errors.New("tool acquisition")

	// ErrMissingPrerequisite is returned when a dependency this core cannot
	// install itself is absent or unusable.
	ErrMissingPrerequisite = errors.New("missing prerequisite")
)

// Dependency describes one external dependency: how to find a usable copy,
// and how to make one if none exists. Probes report the resolved path.
type Dependency struct {
	// ProbeSystem checks the ambient search path, or for library-style
	// dependencies, importability in the ambient runtime. Nil skips the tier.
	ProbeSystem func(ctx context.Context) (string, bool)

	// ProbeCache checks the private cache root for a still-functional copy.
	// Nil skips the tier.
	ProbeCache func(ctx context.Context) (string, bool)

	// Install produces a usable copy inside the private cache root. Nil
	// marks the dependency as not installable by this core.
	Install func(ctx context.Context) (string, error)

	// Name identifies the dependency in logs and errors.
	Name string
}

// Ensure resolves a dependency, trying the tiers in their fixed order and
// short-circuiting on the first success. The resolved path is immutable for
// the remainder of the run.
func Ensure(ctx context.Context, d Dependency) (string, error) {
	ctx, span := otel.Tracer("deps").Start(ctx, "ensure", trace.WithAttributes(
		attribute.String("name", d.Name),
	))
	defer span.End()

	logger := log.WithContext(ctx)

	if d.ProbeSystem != nil {
		if path, ok := d.ProbeSystem(ctx); ok {
			logger.DebugContext(ctx, "adopted system install",
				slog.String("name", d.Name),
				slog.String("path", path),
			)

			return path, nil
		}
	}

	if d.ProbeCache != nil {
		if path, ok := d.ProbeCache(ctx); ok {
			logger.DebugContext(ctx, "adopted cached install",
				slog.String("name", d.Name),
				slog.String("path", path),
			)

			return path, nil
		}
	}

	if d.Install == nil {
		return "", fmt.Errorf("%w: %s not found", ErrMissingPrerequisite, d.Name)
	}

	logger.InfoContext(ctx, "installing", slog.String("name", d.Name))

	path, err := d.Install(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrToolAcquisition, d.Name, err)
	}

	logger.InfoContext(ctx, "installed",
		slog.String("name", d.Name),
		slog.String("path", path),
	)

	return path, nil
}
