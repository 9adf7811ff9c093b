package execs_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmfile2compose/kubernetes2simple/pkg/execs"
)

func TestCommandEnviron(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmd     func() execs.Command
		baseEnv []string
		want    []string
		exclude []string
	}{
		{
			name: "essential variables only",
			cmd: func() execs.Command {
				return execs.NewCommand("helm")
			},
			baseEnv: []string{"PATH=/usr/bin", "SECRET=hunter2"},
			want:    []string{"PATH=/usr/bin"},
			exclude: []string{"SECRET=hunter2"},
		},
		{
			name: "passthrough pattern",
			cmd: func() execs.Command {
				return execs.NewCommand("helm", execs.WithPassthrough("^HELM_.+"))
			},
			baseEnv: []string{"PATH=/usr/bin", "HELM_CACHE_HOME=/tmp/helm", "HELMISH=no"},
			want:    []string{"PATH=/usr/bin", "HELM_CACHE_HOME=/tmp/helm"},
			exclude: []string{"HELMISH=no"},
		},
		{
			name: "explicit variable wins",
			cmd: func() execs.Command {
				return execs.NewCommand("helm", execs.WithEnv("HOME", "/srv/cache"))
			},
			baseEnv: []string{"HOME=/root"},
			want:    []string{"HOME=/srv/cache"},
			exclude: []string{"HOME=/root"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			cmd := test.cmd()
			cmd.SetBaseEnv(test.baseEnv)

			env := cmd.Environ()
			for _, want := range test.want {
				assert.True(t, slices.Contains(env, want), "missing %q in %v", want, env)
			}
			for _, exclude := range test.exclude {
				assert.False(t, slices.Contains(env, exclude), "unexpected %q in %v", exclude, env)
			}
		})
	}
}

func TestCommandExec(t *testing.T) {
	t.Parallel()

	cmd := execs.NewCommand("sh", execs.WithArgs("-c", "echo out; echo err >&2"))

	result, err := cmd.Exec(t.Context(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
}

func TestCommandExecFailureKeepsOutput(t *testing.T) {
	t.Parallel()

	cmd := execs.NewCommand("sh", execs.WithArgs("-c", "echo broken >&2; exit 3"))

	result, err := cmd.Exec(t.Context(), t.TempDir())
	require.ErrorIs(t, err, execs.ErrCommandExecution)
	require.NotNil(t, result)
	assert.Equal(t, "broken\n", result.Stderr)
}

func TestCommandExecEmpty(t *testing.T) {
	t.Parallel()

	cmd := execs.Command{}

	_, err := cmd.Exec(t.Context(), t.TempDir())
	require.ErrorIs(t, err, execs.ErrEmptyCommand)
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	cmd := execs.NewCommand("helmfile", execs.WithArgs("--file", "helmfile.yaml", "template"))
	assert.Equal(t, "helmfile --file helmfile.yaml template", cmd.String())

	bare := execs.NewCommand("helm")
	assert.Equal(t, "helm", bare.String())
}

func TestLookPath(t *testing.T) {
	t.Parallel()

	path, ok := execs.LookPath("sh")
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(path, "/sh"))

	_, ok = execs.LookPath("definitely-not-a-real-binary")
	assert.False(t, ok)
}
