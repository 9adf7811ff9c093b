package deps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/helmfile2compose/kubernetes2simple/pkg/cache"
	"github.com/helmfile2compose/kubernetes2simple/pkg/execs"
	"github.com/helmfile2compose/kubernetes2simple/pkg/log"
)

// MinPythonVersion is the oldest interpreter the converter supports.
const MinPythonVersion = "v3.9.0"

// pythonNames are the interpreter spellings probed on the search path, in
// preference order.
var pythonNames = []string{"python3", "python"}

// importAliases maps distribution names to the module name they install
// under, for the few packages where the two differ.
var importAliases = map[string]string{
	"pyyaml": "yaml",
}

// EnsureRuntime locates a usable system interpreter and verifies it meets
// the version floor. The interpreter is never installed; an absent or
// too-old one is a prerequisite failure the user must resolve.
func EnsureRuntime(ctx context.Context) (string, error) {
	for _, name := range pythonNames {
		path, ok := execs.LookPath(name)
		if !ok {
			continue
		}

		ver, err := interpreterVersion(ctx, path)
		if err != nil {
			log.WithContext(ctx).DebugContext(ctx, "skipping interpreter",
				slog.String("path", path),
				slog.Any("error", err),
			)

			continue
		}

		if semver.Compare(ver, MinPythonVersion) < 0 {
			return "", fmt.Errorf("%w: %s is python %s, need %s or newer",
				ErrMissingPrerequisite, path,
				strings.TrimPrefix(ver, "v"), strings.TrimPrefix(MinPythonVersion, "v"))
		}

		log.WithContext(ctx).DebugContext(ctx, "adopted system install",
			slog.String("name", "python"),
			slog.String("path", path),
			slog.String("version", strings.TrimPrefix(ver, "v")),
		)

		return path, nil
	}

	return "", fmt.Errorf("%w: no python interpreter found on PATH, install python %s or newer",
		ErrMissingPrerequisite, strings.TrimPrefix(MinPythonVersion, "v"))
}

// interpreterVersion runs the interpreter's version report and returns the
// version in canonical "vX.Y.Z" form.
func interpreterVersion(ctx context.Context, path string) (string, error) {
	cmd := execs.NewCommand(path, execs.WithArgs("--version"))

	res, err := cmd.Exec(ctx, "")
	if err != nil {
		return "", err
	}

	// Old interpreters print the version on stderr.
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		out = strings.TrimSpace(res.Stderr)
	}

	rest, ok := strings.CutPrefix(out, "Python ")
	if !ok || strings.TrimSpace(rest) == "" {
		return "", fmt.Errorf("unexpected version output %q", out)
	}

	ver := "v" + strings.TrimSuffix(strings.Fields(rest)[0], "+")
	if !semver.IsValid(ver) {
		return "", fmt.Errorf("unexpected version output %q", out)
	}

	return semver.Canonical(ver), nil
}

// PackageSet resolves the converter's library dependencies as one unit:
// either every package is importable or the set is installed into a private
// virtual environment.
type PackageSet struct {
	Root     *cache.Root
	Python   string
	Packages []string
}

// Dependency adapts the set to the generic resolver. The resolved path is
// the interpreter the converter must run under: the system interpreter when
// the ambient site already satisfies the set, otherwise the venv one.
func (ps *PackageSet) Dependency() Dependency {
	return Dependency{
		Name: "python packages",
		ProbeSystem: func(ctx context.Context) (string, bool) {
			if err := ps.verifyImports(ctx, ps.Python); err != nil {
				return "", false
			}

			return ps.Python, true
		},
		ProbeCache: func(ctx context.Context) (string, bool) {
			venvPython := ps.Root.VenvPython()
			if err := ps.verifyImports(ctx, venvPython); err != nil {
				return "", false
			}

			return venvPython, true
		},
		Install: ps.install,
	}
}

func (ps *PackageSet) install(ctx context.Context) (string, error) {
	venvPython := ps.Root.VenvPython()

	venv := execs.NewCommand(ps.Python, execs.WithArgs("-m", "venv", ps.Root.VenvDir()))
	if res, err := venv.Exec(ctx, ""); err != nil {
		return "", commandError("create virtual environment", res, err)
	}

	installer := ps.installer(venvPython)
	if res, err := installer.Exec(ctx, ""); err != nil {
		return "", commandError("install packages", res, err)
	}

	if err := ps.verifyImports(ctx, venvPython); err != nil {
		return "", fmt.Errorf("verify installed packages: %w", err)
	}

	return venvPython, nil
}

// installer prefers uv when it is on the search path, falling back to the
// venv's bundled pip.
func (ps *PackageSet) installer(venvPython string) execs.Command {
	if uv, ok := execs.LookPath("uv"); ok {
		args := append([]string{"pip", "install", "--python", venvPython}, ps.Packages...)

		return execs.NewCommand(uv, execs.WithArgs(args...))
	}

	args := append([]string{"-m", "pip", "install", "--quiet"}, ps.Packages...)

	return execs.NewCommand(venvPython, execs.WithArgs(args...))
}

// verifyImports checks importability of every package in the set under the
// given interpreter with a single interpreter invocation.
func (ps *PackageSet) verifyImports(ctx context.Context, python string) error {
	modules := make([]string, len(ps.Packages))
	for i, pkg := range ps.Packages {
		modules[i] = importName(pkg)
	}

	cmd := execs.NewCommand(python, execs.WithArgs("-c", "import "+strings.Join(modules, ", ")))
	if res, err := cmd.Exec(ctx, ""); err != nil {
		return commandError("import check", res, err)
	}

	return nil
}

func importName(pkg string) string {
	if alias, ok := importAliases[pkg]; ok {
		return alias
	}

	return strings.ReplaceAll(pkg, "-", "_")
}

func commandError(action string, res *execs.Result, err error) error {
	if res != nil && strings.TrimSpace(res.Stderr) != "" {
		return fmt.Errorf("%s: %w: %s", action, err, strings.TrimSpace(res.Stderr))
	}

	return fmt.Errorf("%s: %w", action, err)
}
