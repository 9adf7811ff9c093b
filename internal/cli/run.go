package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/helmfile2compose/kubernetes2simple/pkg/cache"
	"github.com/helmfile2compose/kubernetes2simple/pkg/config"
	"github.com/helmfile2compose/kubernetes2simple/pkg/convert"
	"github.com/helmfile2compose/kubernetes2simple/pkg/deps"
	"github.com/helmfile2compose/kubernetes2simple/pkg/platform"
	"github.com/helmfile2compose/kubernetes2simple/pkg/render"
	"github.com/helmfile2compose/kubernetes2simple/pkg/source"
)

const cmdExamples = `  # Convert the current directory:
  k2s

  # Convert a helmfile project for a specific environment:
  k2s ./deploy -e staging

  # Convert a chart into a separate compose directory:
  k2s ./chart --output-dir ./compose

  # Discard all cached tools and start fresh:
  k2s --clean`

type RunArgs struct {
	*RootArgs

	Path        string
	OutputDir   string
	Environment string
	CacheDir    string
	ConfigPath  string
	Clean       bool
}

func NewRunArgs(rootArgs *RootArgs) *RunArgs {
	return &RunArgs{
		RootArgs: rootArgs,
	}
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ra.OutputDir, "output-dir", ".", "Directory the compose project is written to")
	cmd.Flags().StringVarP(&ra.Environment, "env", "e", "", "Helmfile environment selector")
	cmd.Flags().StringVar(&ra.CacheDir, "cache-dir", "", "Private cache directory for tools and rendered output")
	cmd.Flags().StringVar(&ra.ConfigPath, "config", "", "Path to the k2s configuration file")
	cmd.Flags().BoolVar(&ra.Clean, "clean", false, "Remove the cache before running")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}

	err = cmd.MarkFlagDirname("output-dir")
	if err != nil {
		panic(fmt.Errorf("mark output-dir flag: %w", err))
	}
}

func NewRunCmd(ra *RunArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "run [path]",
		Short:             "Default command, can be used explicitly if the path is ambiguous",
		Example:           cmdExamples,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: runCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			ra.Path = "."
			if len(args) > 0 {
				ra.Path = args[0]
			}

			return run(cmd, ra)
		},
	}
	ra.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runCompletion(
	_ *cobra.Command, args []string, _ string,
) ([]cobra.Completion, cobra.ShellCompDirective) {
	// First argument: path completion.
	if len(args) == 0 {
		return nil, cobra.ShellCompDirectiveFilterDirs
	}

	// No more arguments accepted.
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func run(cmd *cobra.Command, ra *RunArgs) error {
	ctx, span := otel.Tracer(cmdName).Start(cmd.Context(), "run")
	defer span.End()

	srcDir, err := resolveSourceDir(ra.Path)
	if err != nil {
		return err
	}

	outDir, err := filepath.Abs(ra.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}

	cfg, err := loadConfig(ra.ConfigPath)
	if err != nil {
		return err
	}

	root, err := cacheRoot(ra.CacheDir)
	if err != nil {
		return err
	}

	if ra.Clean {
		slog.InfoContext(ctx, "cleaning cache", slog.String("dir", root.Dir()))

		if err := root.Clean(); err != nil {
			return fmt.Errorf("clean cache: %w", err)
		}
	}

	tag, err := platform.Resolve()
	if err != nil {
		return err
	}

	mode, err := classify(ctx, srcDir)
	if err != nil {
		return err
	}

	span.SetAttributes(
		attribute.String("source", srcDir),
		attribute.String("mode", mode.String()),
	)

	tools, iv, err := bootstrap(ctx, mode, cfg, root, tag)
	if err != nil {
		return err
	}

	res, err := render.Render(ctx, root, render.Request{
		Mode:        mode,
		SourceDir:   srcDir,
		Environment: ra.Environment,
		Tools:       tools,
	})
	if err != nil {
		return err
	}

	err = iv.Run(ctx, convert.Request{
		SourceDir:   res.Dir,
		OutputDir:   outDir,
		Environment: ra.Environment,
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "conversion complete", slog.String("output", outDir))

	return nil
}

func resolveSourceDir(path string) (string, error) {
	srcDir, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(srcDir)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("source %q is not a directory", srcDir)
	}

	return srcDir, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}

	return cfg, nil
}

func cacheRoot(dir string) (*cache.Root, error) {
	if dir == "" {
		var err error

		dir, err = cache.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache directory: %w", err)
		}
	}

	return cache.New(dir), nil
}

func classify(ctx context.Context, srcDir string) (source.Mode, error) {
	_, span := otel.Tracer(cmdName).Start(ctx, "classify")
	defer span.End()

	mode, err := source.NewClassifier().Classify(srcDir)
	if err != nil {
		return source.ModeUnknown, fmt.Errorf("classify source: %w", err)
	}

	if mode == source.ModeUnknown {
		return source.ModeUnknown, fmt.Errorf(
			"%w: %s contains no helmfile descriptor, no chart descriptor, "+
				"and no manifest with a top-level kind field; "+
				"expected one of %v, one of %v, or plain Kubernetes manifests",
			source.ErrUnsupportedSource, srcDir, source.HelmfileNames, source.ChartNames)
	}

	slog.InfoContext(ctx, "classified source",
		slog.String("dir", srcDir),
		slog.String("mode", mode.String()),
	)

	return mode, nil
}

// bootstrap resolves every tool the classified mode needs, in a fixed order.
// Modes that skip rendering never touch helm or helmfile.
func bootstrap(
	ctx context.Context,
	mode source.Mode,
	cfg *config.Config,
	root *cache.Root,
	tag platform.Tag,
) (render.Tools, *convert.Invoker, error) {
	ctx, span := otel.Tracer(cmdName).Start(ctx, "bootstrap", trace.WithAttributes(
		attribute.String("mode", mode.String()),
	))
	defer span.End()

	var tools render.Tools

	python, err := deps.EnsureRuntime(ctx)
	if err != nil {
		return tools, nil, err
	}

	packages := &deps.PackageSet{
		Root:     root,
		Python:   python,
		Packages: cfg.Packages,
	}

	converterPython, err := deps.Ensure(ctx, packages.Dependency())
	if err != nil {
		return tools, nil, err
	}

	ts := &deps.Toolset{
		Index:    deps.NewIndexClient(),
		Root:     root,
		Config:   cfg,
		Platform: tag,
	}

	script, err := deps.Ensure(ctx, ts.Converter())
	if err != nil {
		return tools, nil, err
	}

	if mode == source.ModeChart || mode == source.ModeHelmfile {
		tools.Helm, err = deps.Ensure(ctx, ts.Helm())
		if err != nil {
			return tools, nil, err
		}
	}

	if mode == source.ModeHelmfile {
		tools.Helmfile, err = deps.Ensure(ctx, ts.Helmfile())
		if err != nil {
			return tools, nil, err
		}
	}

	command, err := cfg.ConverterCommand()
	if err != nil {
		return tools, nil, fmt.Errorf("converter command override: %w", err)
	}

	iv := &convert.Invoker{
		Python:  converterPython,
		Script:  script,
		Command: command,
	}

	return tools, iv, nil
}
