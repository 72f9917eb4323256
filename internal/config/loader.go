package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".depwatch"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .depwatch configuration file.
// Every field is optional; CLI flags override anything set here.
type File struct {
	// Toolkit is the "owner/name" of the tracked toolkit.
	Toolkit string `yaml:"toolkit,omitempty"`

	// PackagePatterns are manifest search terms for the code search collector.
	PackagePatterns []string `yaml:"packagePatterns,omitempty"`

	// APIBaseURL overrides the REST API base URL (GitHub Enterprise).
	APIBaseURL string `yaml:"apiBaseURL,omitempty"`

	// MaxPages limits result pages per collector per run.
	MaxPages int `yaml:"maxPages,omitempty"`

	// RequestDelay is the pause between requests, as a Go duration string.
	RequestDelay string `yaml:"requestDelay,omitempty"`

	// EnrichConcurrency is the enrichment worker count.
	EnrichConcurrency int `yaml:"enrichConcurrency,omitempty"`

	// Collectors toggles individual collectors. A missing entry leaves
	// the collector enabled.
	Collectors struct {
		RESTSearch    *bool `yaml:"restSearch,omitempty"`
		GraphQLSearch *bool `yaml:"graphqlSearch,omitempty"`
		Dependents    *bool `yaml:"dependents,omitempty"`
	} `yaml:"collectors,omitempty"`

	// ListenAddr is the dashboard listen address.
	ListenAddr string `yaml:"listenAddr,omitempty"`

	// DBDir is the database directory.
	DBDir string `yaml:"dbDir,omitempty"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound. Callers
// should handle this error based on whether the path was explicitly
// specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. If configPath is specified, use it directly
//  2. Look for .depwatch in the current directory
//  3. Look for .depwatch in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply copies the file's settings onto cfg.
// Only fields actually set in the file are applied, so flag-derived
// values survive unless the file overrides them. The CLI applies
// explicitly-set flags after Apply, giving flags the final word.
func (cf *File) Apply(cfg *Config) error {
	if cf.Toolkit != "" {
		cfg.Toolkit = cf.Toolkit
	}
	if len(cf.PackagePatterns) > 0 {
		cfg.PackagePatterns = cf.PackagePatterns
	}
	if cf.APIBaseURL != "" {
		cfg.APIBaseURL = cf.APIBaseURL
	}
	if cf.MaxPages > 0 {
		cfg.MaxPages = cf.MaxPages
	}
	if cf.RequestDelay != "" {
		d, err := time.ParseDuration(cf.RequestDelay)
		if err != nil {
			return err
		}
		cfg.RequestDelay = d
	}
	if cf.EnrichConcurrency > 0 {
		cfg.EnrichConcurrency = cf.EnrichConcurrency
	}
	if cf.Collectors.RESTSearch != nil {
		cfg.EnableRESTSearch = *cf.Collectors.RESTSearch
	}
	if cf.Collectors.GraphQLSearch != nil {
		cfg.EnableGraphQLSearch = *cf.Collectors.GraphQLSearch
	}
	if cf.Collectors.Dependents != nil {
		cfg.EnableDependents = *cf.Collectors.Dependents
	}
	if cf.ListenAddr != "" {
		cfg.ListenAddr = cf.ListenAddr
	}
	if cf.DBDir != "" {
		cfg.DBDir = cf.DBDir
	}
	return nil
}
