// Package config loads the optional user configuration file, which can pin
// tool versions and override the converter artifact or command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	shellwords "github.com/mattn/go-shellwords"
)

const (
	configDirName  = "k2s"
	configFileName = "config.yaml"

	// DefaultConverterURL is the fixed download location of the converter
	// artifact. It is fetched once and cached.
	DefaultConverterURL = "https://raw.githubusercontent.com/helmfile2compose/helmfile2compose/main/helmfile2compose.py"
)

// DefaultPackages is the interpreter package set the converter needs.
var DefaultPackages = []string{"pyyaml", "jinja2"}

// Config defines the user-tunable configuration.
type Config struct {
	// Tools pins release versions per tool name, bypassing tag resolution.
	Tools map[string]ToolConfig `json:"tools,omitempty"`
	// Converter overrides the converter artifact or invocation.
	Converter ConverterConfig `json:"converter,omitempty"`
	// Packages overrides the interpreter package set.
	Packages []string `json:"packages,omitempty"`
}

// ToolConfig configures a single external tool.
type ToolConfig struct {
	// Version pins the release tag, e.g. "v3.16.2".
	Version string `json:"version,omitempty"`
}

// ConverterConfig configures the external converter.
type ConverterConfig struct {
	// URL overrides the artifact download location.
	URL string `json:"url,omitempty"`
	// Command overrides the full converter command line. The source and
	// output directory arguments are always appended.
	Command string `json:"command,omitempty"`
}

// GetPath returns the default configuration file location.
func GetPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDirName, configFileName)
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(base, configDirName, configFileName)
}

// Load reads the configuration file at path. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	c := &Config{}

	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied config path.
	if errors.Is(err, os.ErrNotExist) || path == "" {
		c.EnsureDefaults()

		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	c.EnsureDefaults()

	return c, nil
}

func (c *Config) EnsureDefaults() {
	if c.Converter.URL == "" {
		c.Converter.URL = DefaultConverterURL
	}
	if len(c.Packages) == 0 {
		c.Packages = DefaultPackages
	}
}

// ToolVersion returns the pinned version for a tool, if any.
func (c *Config) ToolVersion(name string) string {
	return c.Tools[name].Version
}

// ConverterCommand returns the override command line, shellwords-parsed.
// An empty override yields nil.
func (c *Config) ConverterCommand() ([]string, error) {
	if c.Converter.Command == "" {
		return nil, nil
	}

	argv, err := shellwords.Parse(c.Converter.Command)
	if err != nil {
		return nil, fmt.Errorf("parse converter command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("converter command is empty")
	}

	return argv, nil
}
