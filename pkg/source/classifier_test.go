package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmfile2compose/kubernetes2simple/pkg/source"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return dir
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string]string
		want  source.Mode
	}{
		{
			name: "helmfile descriptor",
			files: map[string]string{
				"helmfile.yaml": "releases:\n  - name: app\n",
			},
			want: source.ModeHelmfile,
		},
		{
			name: "helmfile yml variant",
			files: map[string]string{
				"helmfile.yml": "releases: []\n",
			},
			want: source.ModeHelmfile,
		},
		{
			name: "helmfile gotmpl variant",
			files: map[string]string{
				"helmfile.yaml.gotmpl": "releases: []\n",
			},
			want: source.ModeHelmfile,
		},
		{
			name: "chart descriptor",
			files: map[string]string{
				"Chart.yaml":  "apiVersion: v2\nname: app\n",
				"values.yaml": "replicas: 1\n",
			},
			want: source.ModeChart,
		},
		{
			name: "helmfile wins over chart",
			files: map[string]string{
				"helmfile.yaml": "releases: []\n",
				"Chart.yaml":    "apiVersion: v2\nname: app\n",
			},
			want: source.ModeHelmfile,
		},
		{
			name: "plain manifests",
			files: map[string]string{
				"deployment.yaml": "apiVersion: apps/v1\nkind: Deployment\n",
			},
			want: source.ModeManifests,
		},
		{
			name: "yaml without kind is not manifests",
			files: map[string]string{
				"values.yaml": "replicas: 1\n",
			},
			want: source.ModeUnknown,
		},
		{
			name:  "empty directory",
			files: map[string]string{},
			want:  source.ModeUnknown,
		},
		{
			name: "nested descriptors are not scanned",
			files: map[string]string{
				"charts/app/Chart.yaml": "apiVersion: v2\nname: app\n",
				"readme.md":             "docs\n",
			},
			want: source.ModeUnknown,
		},
		{
			name: "kind in yml extension",
			files: map[string]string{
				"svc.yml": "kind: Service\n",
			},
			want: source.ModeManifests,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			dir := writeFiles(t, test.files)

			mode, err := source.NewClassifier().Classify(dir)
			require.NoError(t, err)
			assert.Equal(t, test.want, mode)
		})
	}
}

func TestClassifyMissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := source.NewClassifier().Classify(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestClassifyIsDeterministic(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"helmfile.yaml": "releases: []\n",
		"Chart.yaml":    "apiVersion: v2\n",
	})

	c := source.NewClassifier()
	for range 3 {
		mode, err := c.Classify(dir)
		require.NoError(t, err)
		assert.Equal(t, source.ModeHelmfile, mode)
	}
}

func TestFindDescriptor(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"helmfile.yml": "releases: []\n",
	})

	path, ok := source.FindDescriptor(dir, source.HelmfileNames)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "helmfile.yml"), path)

	_, ok = source.FindDescriptor(dir, source.ChartNames)
	assert.False(t, ok)
}

func TestModeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "helmfile", source.ModeHelmfile.String())
	assert.Equal(t, "chart", source.ModeChart.String())
	assert.Equal(t, "manifests", source.ModeManifests.String())
	assert.Equal(t, "unknown", source.ModeUnknown.String())
	assert.Equal(t, "unknown", source.Mode(42).String())
}
