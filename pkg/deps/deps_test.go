package deps_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmfile2compose/kubernetes2simple/pkg/deps"
)

func TestEnsure(t *testing.T) {
	t.Parallel()

	installErr := errors.New("download failed")

	tests := []struct {
		name      string
		dep       deps.Dependency
		want      string
		wantErr   error
		wantCalls []string
	}{
		{
			name: "system probe wins",
			dep: deps.Dependency{
				Name:        "tool",
				ProbeSystem: probeHit("/usr/bin/tool"),
				ProbeCache:  probeHit("/cache/bin/tool"),
				Install:     installHit("/cache/bin/tool"),
			},
			want:      "/usr/bin/tool",
			wantCalls: []string{"system"},
		},
		{
			name: "cache probe after system miss",
			dep: deps.Dependency{
				Name:        "tool",
				ProbeSystem: probeMiss(),
				ProbeCache:  probeHit("/cache/bin/tool"),
				Install:     installHit("/cache/bin/tool"),
			},
			want:      "/cache/bin/tool",
			wantCalls: []string{"system", "cache"},
		},
		{
			name: "install after both probes miss",
			dep: deps.Dependency{
				Name:        "tool",
				ProbeSystem: probeMiss(),
				ProbeCache:  probeMiss(),
				Install:     installHit("/cache/bin/tool"),
			},
			want:      "/cache/bin/tool",
			wantCalls: []string{"system", "cache", "install"},
		},
		{
			name: "nil probes skip straight to install",
			dep: deps.Dependency{
				Name:    "tool",
				Install: installHit("/cache/helmfile2compose.py"),
			},
			want:      "/cache/helmfile2compose.py",
			wantCalls: []string{"install"},
		},
		{
			name: "not installable is a prerequisite failure",
			dep: deps.Dependency{
				Name:        "python",
				ProbeSystem: probeMiss(),
			},
			wantErr:   deps.ErrMissingPrerequisite,
			wantCalls: []string{"system"},
		},
		{
			name: "install failure is an acquisition failure",
			dep: deps.Dependency{
				Name:        "tool",
				ProbeSystem: probeMiss(),
				ProbeCache:  probeMiss(),
				Install: func(_ context.Context) (string, error) {
					return "", installErr
				},
			},
			wantErr:   deps.ErrToolAcquisition,
			wantCalls: []string{"system", "cache", "install"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls []string

			dep := tc.dep
			if dep.ProbeSystem != nil {
				dep.ProbeSystem = recordProbe(&calls, "system", tc.dep.ProbeSystem)
			}
			if dep.ProbeCache != nil {
				dep.ProbeCache = recordProbe(&calls, "cache", tc.dep.ProbeCache)
			}
			if dep.Install != nil {
				inner := tc.dep.Install
				dep.Install = func(ctx context.Context) (string, error) {
					calls = append(calls, "install")

					return inner(ctx)
				}
			}

			got, err := deps.Ensure(t.Context(), dep)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}

			assert.Equal(t, tc.wantCalls, calls)
		})
	}
}

func TestEnsureInstallErrorNamesDependency(t *testing.T) {
	t.Parallel()

	_, err := deps.Ensure(t.Context(), deps.Dependency{
		Name: "helmfile",
		Install: func(_ context.Context) (string, error) {
			return "", errors.New("status 503")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "helmfile")
	assert.Contains(t, err.Error(), "status 503")
}

func probeHit(path string) func(context.Context) (string, bool) {
	return func(_ context.Context) (string, bool) {
		return path, true
	}
}

func probeMiss() func(context.Context) (string, bool) {
	return func(_ context.Context) (string, bool) {
		return "", false
	}
}

func installHit(path string) func(context.Context) (string, error) {
	return func(_ context.Context) (string, error) {
		return path, nil
	}
}

func recordProbe(
	calls *[]string, tier string, inner func(context.Context) (string, bool),
) func(context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		*calls = append(*calls, tier)

		return inner(ctx)
	}
}
