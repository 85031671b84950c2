package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file looked up in the current directory.
const DefaultConfigFile = ".spidercrab.yaml"

// Duration is a time.Duration written as a string ("10s", "1m30s") in YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// File represents the structure of the .spidercrab.yaml configuration file.
// Pointer fields distinguish "not set" from the zero value.
type File struct {
	// Depth is the maximum crawl depth. -1 is unbounded.
	Depth *int `yaml:"depth,omitempty"`

	// Workers is the number of concurrent fetches.
	Workers *int `yaml:"workers,omitempty"`

	// Timeout bounds each request.
	Timeout *Duration `yaml:"timeout,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Headers are custom HTTP headers to include in every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Hosts are parsed in addition to the seed host.
	Hosts []string `yaml:"hosts,omitempty"`

	// DisabledRules are never reported.
	DisabledRules []string `yaml:"disabledRules,omitempty"`

	// Exclude are URL path patterns that are never fetched.
	// Patterns are matched against the URL path using glob syntax.
	Exclude []string `yaml:"exclude,omitempty"`

	// RequestsPerSecond limits requests per host.
	RequestsPerSecond *float64 `yaml:"requestsPerSecond,omitempty"`

	// MaxPages caps the number of fetched URLs.
	MaxPages *int `yaml:"maxPages,omitempty"`

	// IgnoreFile is the path of the ignore file.
	IgnoreFile string `yaml:"ignoreFile,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cf, nil
}

// Apply copies every value set in the file onto c.
func (cf *File) Apply(c *Config) {
	if cf.Depth != nil {
		c.Depth = *cf.Depth
	}
	if cf.Workers != nil {
		c.Workers = *cf.Workers
	}
	if cf.Timeout != nil {
		c.Timeout = cf.Timeout.Duration
	}
	if cf.UserAgent != "" {
		c.UserAgent = cf.UserAgent
	}
	if len(cf.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(cf.Headers))
		}
		for k, v := range cf.Headers {
			c.Headers[k] = v
		}
	}
	if len(cf.Hosts) > 0 {
		c.Hosts = append(c.Hosts, cf.Hosts...)
	}
	if len(cf.DisabledRules) > 0 {
		c.DisabledRules = append(c.DisabledRules, cf.DisabledRules...)
	}
	if len(cf.Exclude) > 0 {
		c.ExcludePatterns = append(c.ExcludePatterns, cf.Exclude...)
	}
	if cf.RequestsPerSecond != nil {
		c.RequestsPerSecond = *cf.RequestsPerSecond
	}
	if cf.MaxPages != nil {
		c.MaxPages = *cf.MaxPages
	}
	if cf.IgnoreFile != "" {
		c.IgnoreFile = cf.IgnoreFile
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .spidercrab.yaml in the current directory
// 3. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}
	return ""
}
