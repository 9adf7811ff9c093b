// Package render turns a classified source directory into a directory of
// plain Kubernetes manifests for the converter to consume.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/helmfile2compose/kubernetes2simple/pkg/cache"
	"github.com/helmfile2compose/kubernetes2simple/pkg/execs"
	"github.com/helmfile2compose/kubernetes2simple/pkg/log"
	"github.com/helmfile2compose/kubernetes2simple/pkg/manifest"
	"github.com/helmfile2compose/kubernetes2simple/pkg/source"
)

// ErrRenderFailure is returned when a render tool exits non-zero.
var ErrRenderFailure = errors.New("render")

// manifestFileName is the single file rendered output is written to.
const manifestFileName = "manifests.yaml"

// helmEnvPassthrough inherits helm and helmfile configuration from the
// caller environment.
const helmEnvPassthrough = `^HELM(FILE)?_.+`

// Tools holds the resolved render tool paths a request may need. Unused
// entries stay empty; plain manifest sources need none.
type Tools struct {
	Helm     string
	Helmfile string
}

// Request describes one render of a classified source directory.
type Request struct {
	Mode        source.Mode
	SourceDir   string
	Environment string
	Tools       Tools
}

// Result reports where the rendered manifests ended up. For plain manifest
// sources Dir is the source directory itself.
type Result struct {
	Dir string
}

// Render produces plain manifests for the request, dispatching on the source
// mode. The render target under the cache root is recreated from scratch on
// every call, so stale output from earlier runs never leaks through.
func Render(ctx context.Context, root *cache.Root, req Request) (*Result, error) {
	ctx, span := otel.Tracer("render").Start(ctx, "render", trace.WithAttributes(
		attribute.String("mode", req.Mode.String()),
	))
	defer span.End()

	switch req.Mode {
	case source.ModeHelmfile:
		return renderToTarget(ctx, root, req, helmfileCommand)

	case source.ModeChart:
		return renderChart(ctx, root, req)

	case source.ModeManifests:
		return &Result{Dir: req.SourceDir}, nil

	case source.ModeUnknown:
		return nil, source.ErrUnsupportedSource

	default:
		return nil, fmt.Errorf("%w: mode %d", source.ErrUnsupportedSource, req.Mode)
	}
}

// renderToTarget recreates the render target, runs one manifest-producing
// command, and writes its stdout to the target's manifest file.
func renderToTarget(
	ctx context.Context,
	root *cache.Root,
	req Request,
	build func(req Request) (execs.Command, error),
) (*Result, error) {
	cmd, err := build(req)
	if err != nil {
		return nil, err
	}

	if err := root.RecreateRendered(); err != nil {
		return nil, fmt.Errorf("recreate render target: %w", err)
	}

	res, err := cmd.Exec(ctx, req.SourceDir)
	if err != nil {
		return nil, renderError(cmd.String(), res, err)
	}

	path := filepath.Join(root.RenderedDir(), manifestFileName)
	if err := os.WriteFile(path, []byte(res.Stdout), 0o644); err != nil {
		return nil, fmt.Errorf("write rendered manifests: %w", err)
	}

	log.WithContext(ctx).InfoContext(ctx, "rendered manifests",
		slog.String("kinds", manifest.Summary(manifest.Kinds([]byte(res.Stdout)))),
	)

	return &Result{Dir: root.RenderedDir()}, nil
}

func helmfileCommand(req Request) (execs.Command, error) {
	desc, ok := source.FindDescriptor(req.SourceDir, source.HelmfileNames)
	if !ok {
		return execs.Command{}, fmt.Errorf("%w: helmfile descriptor disappeared from %s",
			ErrRenderFailure, req.SourceDir)
	}

	args := []string{"--file", desc}

	// helmfile shells out to helm by name; point it at the resolved binary,
	// which may live in the cache and off the subprocess search path.
	if req.Tools.Helm != "" {
		args = append(args, "--helm-binary", req.Tools.Helm)
	}

	args = append(args, "template")
	if req.Environment != "" {
		args = append(args, "--environment", req.Environment)
	}

	return execs.NewCommand(req.Tools.Helmfile,
		execs.WithArgs(args...),
		execs.WithPassthrough(helmEnvPassthrough),
	), nil
}

func renderChart(ctx context.Context, root *cache.Root, req Request) (*Result, error) {
	if chartHasLockedDeps(req.SourceDir) {
		cmd := execs.NewCommand(req.Tools.Helm,
			execs.WithArgs("dependency", "build"),
			execs.WithPassthrough(helmEnvPassthrough),
		)

		if res, err := cmd.Exec(ctx, req.SourceDir); err != nil {
			return nil, renderError(cmd.String(), res, err)
		}
	}

	return renderToTarget(ctx, root, req, chartTemplateCommand)
}

func chartTemplateCommand(req Request) (execs.Command, error) {
	args := []string{"template", "."}

	// Fixed precedence: values.yaml first, values.yml second, so the latter
	// wins where both define a key.
	for _, name := range []string{"values.yaml", "values.yml"} {
		if _, err := os.Stat(filepath.Join(req.SourceDir, name)); err == nil {
			args = append(args, "--values", name)
		}
	}

	return execs.NewCommand(req.Tools.Helm,
		execs.WithArgs(args...),
		execs.WithPassthrough(helmEnvPassthrough),
	), nil
}

// chartHasLockedDeps reports whether the chart declares dependencies that
// must be fetched before templating.
func chartHasLockedDeps(dir string) bool {
	for _, name := range []string{"Chart.lock", "requirements.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}

	return false
}

func renderError(cmdline string, res *execs.Result, err error) error {
	if res != nil && strings.TrimSpace(res.Stderr) != "" {
		return fmt.Errorf("%w: %s: %w: %s",
			ErrRenderFailure, cmdline, err, strings.TrimSpace(res.Stderr))
	}

	return fmt.Errorf("%w: %s: %w", ErrRenderFailure, cmdline, err)
}
