package expr_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helmfile2compose/kubernetes2simple/pkg/expr"
)

func TestFilepathFunctions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		expression string
		files      []string
		expected   bool
	}{
		{
			name:       "pathBase with in operator",
			expression: `files.exists(f, pathBase(f) in ["Chart.yaml", "Chart.yml"])`,
			files:      []string{"/k8s/Chart.yaml", "/k8s/values.yaml"},
			expected:   true,
		},
		{
			name:       "pathExt with in operator",
			expression: `files.exists(f, pathExt(f) in [".yaml", ".yml"])`,
			files:      []string{"/k8s/deployment.json", "/k8s/service.yml"},
			expected:   true,
		},
		{
			name:       "pathDir with contains",
			expression: `files.exists(f, pathDir(f).contains("/templates"))`,
			files:      []string{"/k8s/templates/deployment.yaml"},
			expected:   true,
		},
		{
			name:       "no matches",
			expression: `files.exists(f, pathBase(f) == "helmfile.yaml")`,
			files:      []string{"/k8s/deployment.yaml"},
			expected:   false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			env, err := expr.CreateEnvironment()
			require.NoError(t, err)

			program, err := env.Compile(test.expression)
			require.NoError(t, err)

			result, _, err := program.Eval(map[string]any{
				"files": test.files,
				"dir":   "/k8s",
			})
			require.NoError(t, err)
			require.Equal(t, test.expected, result.Value())
		})
	}
}

func TestHasRootField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		field    string
		expected bool
	}{
		{
			name:     "top-level kind",
			content:  "apiVersion: apps/v1\nkind: Deployment\n",
			field:    "kind",
			expected: true,
		},
		{
			name:     "indented kind does not count",
			content:  "spec:\n  kind: nested\n",
			field:    "kind",
			expected: false,
		},
		{
			name:     "prefix without colon does not count",
			content:  "kindness is a virtue\n",
			field:    "kind",
			expected: false,
		},
		{
			name:     "field without value",
			content:  "kind:\n",
			field:    "kind",
			expected: true,
		},
		{
			name:     "missing field",
			content:  "releases:\n  - name: app\n",
			field:    "kind",
			expected: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "input.yaml")
			require.NoError(t, os.WriteFile(path, []byte(test.content), 0o600))

			env, err := expr.CreateEnvironment()
			require.NoError(t, err)

			program, err := env.Compile(`files.exists(f, hasRootField(f, "` + test.field + `"))`)
			require.NoError(t, err)

			result, _, err := program.Eval(map[string]any{
				"files": []string{path},
				"dir":   filepath.Dir(path),
			})
			require.NoError(t, err)
			require.Equal(t, test.expected, result.Value())
		})
	}
}

func TestHasRootFieldUnreadableFile(t *testing.T) {
	t.Parallel()

	env, err := expr.CreateEnvironment()
	require.NoError(t, err)

	program, err := env.Compile(`files.exists(f, hasRootField(f, "kind"))`)
	require.NoError(t, err)

	result, _, err := program.Eval(map[string]any{
		"files": []string{"/nonexistent/deployment.yaml"},
		"dir":   "/nonexistent",
	})
	require.NoError(t, err)
	require.Equal(t, false, result.Value())
}
