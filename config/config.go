// Package config provides configuration loading and management for osfipm.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/osfipm/export"
)

// Config represents the complete osfipm configuration
type Config struct {
	OSF     OSFConfig     `yaml:"osf"`
	Mapping MappingConfig `yaml:"mapping"`
	Export  ExportConfig  `yaml:"export"`
	Package PackageConfig `yaml:"package"`
	NATS    NATSConfig    `yaml:"nats"`
}

// OSFConfig configures the OSF API client and fetcher
type OSFConfig struct {
	// BaseURL is the API root (default: https://api.osf.io/v2/)
	BaseURL string `yaml:"base_url"`
	// Token is a personal access token; usually supplied via OSF_TOKEN
	Token string `yaml:"token,omitempty"`
	// PageSize is the page[size] requested for list endpoints
	PageSize int `yaml:"page_size"`
	// Timeout bounds a single HTTP request
	Timeout time.Duration `yaml:"timeout"`
	// ChildDepth limits component recursion (-1 = unbounded)
	ChildDepth int `yaml:"child_depth"`
	// FileDepth limits folder recursion (-1 = unbounded)
	FileDepth int         `yaml:"file_depth"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig configures request retries
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// MappingConfig configures the object-to-RDF mapper
type MappingConfig struct {
	// Workers bounds parallel walks (0 = one per CPU)
	Workers int `yaml:"workers"`
	// ContinueOnError logs and skips unmappable objects
	ContinueOnError bool `yaml:"continue_on_error"`
}

// ExportConfig configures RDF serialization
type ExportConfig struct {
	// Format is turtle, ntriples or jsonld
	Format string `yaml:"format"`
	// Profile is minimal or owl
	Profile string `yaml:"profile"`
}

// PackageConfig configures BagIt packaging
type PackageConfig struct {
	// Include and Exclude are doublestar patterns over payload paths
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	// Download fetches OSF files into the payload
	Download bool `yaml:"download"`
	// Concurrency bounds parallel payload writes
	Concurrency        int    `yaml:"concurrency"`
	SourceOrganization string `yaml:"source_organization"`
}

// NATSConfig configures package announcements, the package ledger and
// graph ingestion
type NATSConfig struct {
	// URL is the NATS server URL (empty = do not announce)
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	// Ledger records package runs in a JetStream KV bucket
	Ledger bool `yaml:"ledger"`
	// Ingest publishes mapped entities to graph.ingest.entity
	Ingest bool `yaml:"ingest"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OSF: OSFConfig{
			BaseURL:    "https://api.osf.io/v2/",
			PageSize:   100,
			Timeout:    60 * time.Second,
			ChildDepth: -1,
			FileDepth:  -1,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
		},
		Mapping: MappingConfig{
			Workers: 0,
		},
		Export: ExportConfig{
			Format:  string(export.FormatTurtle),
			Profile: string(export.ProfileMinimal),
		},
		Package: PackageConfig{
			Download:           true,
			Concurrency:        4,
			SourceOrganization: "Center for Open Science",
		},
		NATS: NATSConfig{
			URL:     "",
			Subject: "osfipm.package.created",
			Ledger:  true,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.OSF.BaseURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("osf.base_url must be an absolute URL")
	}
	if c.OSF.PageSize < 1 || c.OSF.PageSize > 100 {
		return fmt.Errorf("osf.page_size must be between 1 and 100")
	}
	if c.OSF.Retry.MaxAttempts < 1 {
		return fmt.Errorf("osf.retry.max_attempts must be at least 1")
	}
	if c.OSF.Retry.InitialDelay < time.Millisecond {
		return fmt.Errorf("osf.retry.initial_delay must be at least 1ms")
	}
	if c.OSF.Retry.MaxDelay < c.OSF.Retry.InitialDelay {
		return fmt.Errorf("osf.retry.max_delay must not be less than initial_delay")
	}
	if c.Mapping.Workers < 0 {
		return fmt.Errorf("mapping.workers must not be negative")
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	if _, err := export.ParseProfile(c.Export.Profile); err != nil {
		return fmt.Errorf("export.profile: %w", err)
	}
	for _, p := range append(append([]string(nil), c.Package.Include...), c.Package.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("package pattern %q is not a valid glob", p)
		}
	}
	if c.Package.Concurrency < 1 {
		return fmt.Errorf("package.concurrency must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := loadInto(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

// loadInto decodes a YAML file over an existing config; keys absent from the
// file keep their current values.
func loadInto(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file. The token is never written.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	out.OSF.Token = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// OSF
	if other.OSF.BaseURL != "" {
		c.OSF.BaseURL = other.OSF.BaseURL
	}
	if other.OSF.Token != "" {
		c.OSF.Token = other.OSF.Token
	}
	if other.OSF.PageSize != 0 {
		c.OSF.PageSize = other.OSF.PageSize
	}
	if other.OSF.Timeout != 0 {
		c.OSF.Timeout = other.OSF.Timeout
	}
	if other.OSF.ChildDepth != 0 {
		c.OSF.ChildDepth = other.OSF.ChildDepth
	}
	if other.OSF.FileDepth != 0 {
		c.OSF.FileDepth = other.OSF.FileDepth
	}
	if other.OSF.Retry.MaxAttempts != 0 {
		c.OSF.Retry.MaxAttempts = other.OSF.Retry.MaxAttempts
	}
	if other.OSF.Retry.InitialDelay != 0 {
		c.OSF.Retry.InitialDelay = other.OSF.Retry.InitialDelay
	}
	if other.OSF.Retry.MaxDelay != 0 {
		c.OSF.Retry.MaxDelay = other.OSF.Retry.MaxDelay
	}

	// Mapping
	if other.Mapping.Workers != 0 {
		c.Mapping.Workers = other.Mapping.Workers
	}
	if other.Mapping.ContinueOnError {
		c.Mapping.ContinueOnError = true
	}

	// Export
	if other.Export.Format != "" {
		c.Export.Format = other.Export.Format
	}
	if other.Export.Profile != "" {
		c.Export.Profile = other.Export.Profile
	}

	// Package
	if len(other.Package.Include) > 0 {
		c.Package.Include = other.Package.Include
	}
	if len(other.Package.Exclude) > 0 {
		c.Package.Exclude = other.Package.Exclude
	}
	if other.Package.Concurrency != 0 {
		c.Package.Concurrency = other.Package.Concurrency
	}
	if other.Package.SourceOrganization != "" {
		c.Package.SourceOrganization = other.Package.SourceOrganization
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}
	if other.NATS.Ingest {
		c.NATS.Ingest = true
	}
}
