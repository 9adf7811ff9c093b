// Package platform maps the host OS and CPU architecture to the vocabulary
// used by tool release artifacts.
package platform

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupportedPlatform is returned when the host OS/arch pair has no
// release artifacts.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// archAliases normalizes architecture names reported outside of the Go
// toolchain vocabulary, e.g. by configuration overrides.
var archAliases = map[string]string{
	"x86_64":  "amd64",
	"aarch64": "arm64",
}

// Tag identifies a supported OS/architecture pair. It is computed once per
// run and never mutated.
type Tag struct {
	OS   string
	Arch string
}

// Resolve computes the [Tag] for the current host.
func Resolve() (Tag, error) {
	return FromPair(runtime.GOOS, runtime.GOARCH)
}

// FromPair validates and normalizes an OS/architecture pair.
func FromPair(goos, goarch string) (Tag, error) {
	if alias, ok := archAliases[goarch]; ok {
		goarch = alias
	}

	switch goos {
	case "linux", "darwin":
	default:
		return Tag{}, fmt.Errorf("%w: os %q", ErrUnsupportedPlatform, goos)
	}

	switch goarch {
	case "amd64", "arm64":
	default:
		return Tag{}, fmt.Errorf("%w: architecture %q", ErrUnsupportedPlatform, goarch)
	}

	return Tag{OS: goos, Arch: goarch}, nil
}

func (t Tag) String() string {
	return t.OS + "-" + t.Arch
}
