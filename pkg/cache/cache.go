// Package cache owns the private cache root: installed tool binaries, the
// isolated interpreter environment, the cached converter artifact, and the
// render output directory. Deleting the root makes the next run behave as a
// first run.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	binDirName      = "bin"
	venvDirName     = "venv"
	renderedDirName = "rendered"
	converterName   = "helmfile2compose.py"
	defaultDirName  = "kubernetes2simple"
	dirPermissions  = 0o755
)

// Root is the private cache root. All paths below it are owned exclusively
// by this tool; no other process may assume they are stable across a reset.
type Root struct {
	dir string
}

// New creates a [Root] at the given directory. Nothing is created on disk
// until a component asks for it, so an aborted run leaves no trace.
func New(dir string) *Root {
	return &Root{dir: dir}
}

// DefaultDir returns the default cache root location.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache directory: %w", err)
	}

	return filepath.Join(base, defaultDirName), nil
}

func (r *Root) Dir() string {
	return r.dir
}

// BinDir returns the directory holding installed CLI tools.
func (r *Root) BinDir() string {
	return filepath.Join(r.dir, binDirName)
}

// VenvDir returns the isolated interpreter environment directory.
func (r *Root) VenvDir() string {
	return filepath.Join(r.dir, venvDirName)
}

// VenvPython returns the interpreter inside the cached environment.
func (r *Root) VenvPython() string {
	return filepath.Join(r.VenvDir(), "bin", "python")
}

// ConverterPath returns the cached converter artifact location.
func (r *Root) ConverterPath() string {
	return filepath.Join(r.dir, converterName)
}

// RenderedDir returns the render output directory. It is recreated at the
// start of every render, never merged.
func (r *Root) RenderedDir() string {
	return filepath.Join(r.dir, renderedDirName)
}

// EnsureBin creates the binaries directory.
func (r *Root) EnsureBin() error {
	if err := os.MkdirAll(r.BinDir(), dirPermissions); err != nil {
		return fmt.Errorf("create bin directory: %w", err)
	}

	return nil
}

// RecreateRendered discards any previous render output and creates a fresh,
// empty render directory. Re-runs must never mix stale and fresh output.
func (r *Root) RecreateRendered() error {
	dir := r.RenderedDir()

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("discard previous render output: %w", err)
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("create render directory: %w", err)
	}

	return nil
}

// Clean removes the whole cache root. The next run is indistinguishable
// from a first-ever run.
func (r *Root) Clean() error {
	if err := os.RemoveAll(r.dir); err != nil {
		return fmt.Errorf("remove cache root: %w", err)
	}

	return nil
}
