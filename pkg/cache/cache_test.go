package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmfile2compose/kubernetes2simple/pkg/cache"
)

func TestNewCreatesNothing(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "cache")
	root := cache.New(dir)

	_ = root.BinDir()
	_ = root.VenvDir()
	_ = root.ConverterPath()
	_ = root.RenderedDir()

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "cache root must not exist before bootstrap")
}

func TestLayout(t *testing.T) {
	t.Parallel()

	root := cache.New("/srv/cache")

	assert.Equal(t, "/srv/cache", root.Dir())
	assert.Equal(t, "/srv/cache/bin", root.BinDir())
	assert.Equal(t, "/srv/cache/venv", root.VenvDir())
	assert.Equal(t, "/srv/cache/venv/bin/python", root.VenvPython())
	assert.Equal(t, "/srv/cache/helmfile2compose.py", root.ConverterPath())
	assert.Equal(t, "/srv/cache/rendered", root.RenderedDir())
}

func TestRecreateRenderedDiscardsStaleFiles(t *testing.T) {
	t.Parallel()

	root := cache.New(t.TempDir())

	require.NoError(t, root.RecreateRendered())
	stale := filepath.Join(root.RenderedDir(), "stale.yaml")
	require.NoError(t, os.WriteFile(stale, []byte("kind: Old\n"), 0o600))

	require.NoError(t, root.RecreateRendered())

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale render output must not survive")

	entries, err := os.ReadDir(root.RenderedDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClean(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "cache")
	root := cache.New(dir)

	require.NoError(t, root.EnsureBin())
	require.NoError(t, root.RecreateRendered())

	require.NoError(t, root.Clean())

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	// Cleaning an absent root is not an error.
	require.NoError(t, root.Clean())
}
