package source

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrUnsupportedSource is returned when a directory contains no recognized
// source form.
var ErrUnsupportedSource = errors.New("unsupported source")

const (
	existsHelmfileProject = `files.exists(f,
  pathBase(f) in ["helmfile.yaml", "helmfile.yml", "helmfile.yaml.gotmpl"])`

	existsChartProject = `files.exists(f,
  pathBase(f) in ["Chart.yaml", "Chart.yml"])`

	existsPlainManifests = `files.exists(f,
  pathExt(f) in [".yaml", ".yml"] && hasRootField(f, "kind"))`
)

// defaultRules are evaluated in order; the first match wins. The ordering is
// a contract: a chart vendored inside a multi-release working tree must
// classify as helmfile.
var defaultRules = []*Rule{
	MustNewRule(ModeHelmfile, existsHelmfileProject),
	MustNewRule(ModeChart, existsChartProject),
	MustNewRule(ModeManifests, existsPlainManifests),
}

// Classifier assigns a [Mode] to a working directory.
type Classifier struct {
	rules []*Rule
}

// NewClassifier creates a classifier with the given ordered rules. With no
// rules it uses the defaults.
func NewClassifier(rules ...*Rule) *Classifier {
	if len(rules) == 0 {
		rules = defaultRules
	}

	return &Classifier{rules: rules}
}

// Classify inspects the directory's top level and returns exactly one
// [Mode]. It has no side effects and is deterministic: rules are evaluated
// in their fixed order, and no rule matching yields [ModeUnknown].
func (c *Classifier) Classify(dir string) (Mode, error) {
	files, err := topLevelFiles(dir)
	if err != nil {
		return ModeUnknown, err
	}

	for _, r := range c.rules {
		if r.MatchFiles(dir, files) {
			slog.Debug("classified source",
				slog.String("dir", dir),
				slog.String("mode", r.Mode.String()),
			)

			return r.Mode, nil
		}
	}

	return ModeUnknown, nil
}

// FindDescriptor returns the first existing file from names in dir.
func FindDescriptor(dir string, names []string) (string, bool) {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}

	return "", false
}

func topLevelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %q: %w", dir, err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		files = append(files, filepath.Join(dir, entry.Name()))
	}

	return files, nil
}
