package deps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/helmfile2compose/kubernetes2simple/pkg/cache"
	"github.com/helmfile2compose/kubernetes2simple/pkg/config"
	"github.com/helmfile2compose/kubernetes2simple/pkg/execs"
	"github.com/helmfile2compose/kubernetes2simple/pkg/platform"
)

// Toolset builds [Dependency] values for the external tools a run may need,
// sharing one release index client, cache root, and platform tag.
type Toolset struct {
	Index    *IndexClient
	Root     *cache.Root
	Config   *config.Config
	Platform platform.Tag
}

// Helm resolves the helm binary.
func (ts *Toolset) Helm() Dependency {
	return Dependency{
		Name:        "helm",
		ProbeSystem: probePath("helm"),
		ProbeCache:  ts.probeCachedBinary("helm"),
		Install: func(ctx context.Context) (string, error) {
			tag, err := ts.resolveTag(ctx, "helm", "helm", "helm")
			if err != nil {
				return "", err
			}

			url := fmt.Sprintf("https://get.helm.sh/helm-%s-%s.tar.gz", tag, ts.Platform)
			member := fmt.Sprintf("%s/helm", ts.Platform)

			return ts.installArchiveBinary(ctx, "helm", url, member)
		},
	}
}

// Helmfile resolves the helmfile binary.
func (ts *Toolset) Helmfile() Dependency {
	return Dependency{
		Name:        "helmfile",
		ProbeSystem: probePath("helmfile"),
		ProbeCache:  ts.probeCachedBinary("helmfile"),
		Install: func(ctx context.Context) (string, error) {
			tag, err := ts.resolveTag(ctx, "helmfile", "helmfile", "helmfile")
			if err != nil {
				return "", err
			}

			url := fmt.Sprintf(
				"https://github.com/helmfile/helmfile/releases/download/%s/helmfile_%s_%s_%s.tar.gz",
				tag, strings.TrimPrefix(tag, "v"), ts.Platform.OS, ts.Platform.Arch,
			)

			return ts.installArchiveBinary(ctx, "helmfile", url, "helmfile")
		},
	}
}

// Converter resolves the converter script. The script never exists on the
// ambient system, so resolution goes straight to the cache.
func (ts *Toolset) Converter() Dependency {
	return Dependency{
		Name: "converter",
		ProbeCache: func(_ context.Context) (string, bool) {
			path := ts.Root.ConverterPath()

			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
				return "", false
			}

			return path, true
		},
		Install: func(ctx context.Context) (string, error) {
			dest := ts.Root.ConverterPath()

			if err := ts.Index.DownloadFile(ctx, ts.Config.Converter.URL, dest, 0o755); err != nil {
				return "", err
			}

			return dest, nil
		},
	}
}

// resolveTag returns the release tag to install: the configured pin when one
// is set, otherwise the latest published tag. Pins are normalized to carry a
// leading "v".
func (ts *Toolset) resolveTag(ctx context.Context, owner, repo, tool string) (string, error) {
	if pin := ts.Config.ToolVersion(tool); pin != "" {
		if !strings.HasPrefix(pin, "v") {
			pin = "v" + pin
		}

		return pin, nil
	}

	tag, err := ts.Index.LatestTag(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("resolve %s version: %w", tool, err)
	}

	return tag, nil
}

func (ts *Toolset) installArchiveBinary(ctx context.Context, name, url, member string) (string, error) {
	if err := ts.Root.EnsureBin(); err != nil {
		return "", err
	}

	dest := filepath.Join(ts.Root.BinDir(), name)
	if err := ts.Index.DownloadArchiveBinary(ctx, url, member, dest); err != nil {
		return "", err
	}

	return dest, nil
}

func (ts *Toolset) probeCachedBinary(name string) func(context.Context) (string, bool) {
	return func(_ context.Context) (string, bool) {
		path := filepath.Join(ts.Root.BinDir(), name)

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Mode()&0o111 == 0 {
			return "", false
		}

		return path, true
	}
}

func probePath(name string) func(context.Context) (string, bool) {
	return func(_ context.Context) (string, bool) {
		return execs.LookPath(name)
	}
}
