// Package config holds the immutable run configuration for a comparison.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// --- Configuration Struct ---

// Config is the full configuration of one comparison run. It is built once
// by the CLI and passed into the orchestrator's constructor; nothing mutates
// it after validation.
type Config struct {
	// Address is the store base URL, e.g. http://localhost:9200.
	Address string `mapstructure:"address" yaml:"address"`

	// CollectionA and CollectionB are the two collections to compare.
	// They must be distinct.
	CollectionA string `mapstructure:"collection_a" yaml:"collection_a"`
	CollectionB string `mapstructure:"collection_b" yaml:"collection_b"`

	// DocType is the document type tag used in store request paths.
	DocType string `mapstructure:"doc_type" yaml:"doc_type"`

	// PageSize is the number of documents per scroll batch. Larger pages
	// amortize round trips but raise peak memory and payload size.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// Lease is the scroll lease duration: an integer with an s/m/h suffix.
	Lease string `mapstructure:"lease" yaml:"lease"`

	// ExcludePaths are field paths excluded from comparison, in dot
	// notation with "*" wildcards, e.g. "metadata.updated_at".
	ExcludePaths []string `mapstructure:"exclude_paths" yaml:"exclude_paths"`

	// OutputPath is the result destination. Empty means a generated
	// timestamp-and-collection-derived name.
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`

	// OutputFormat selects the sink: csv, json, arrow, parquet.
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`

	// ReportPath, when set, is where the JSON run report is written.
	ReportPath string `mapstructure:"report_path" yaml:"report_path"`

	// StatusAddr, when set, serves the live status API on this address.
	StatusAddr string `mapstructure:"status_addr" yaml:"status_addr"`
}

// --- Load Configuration ---

// Load reads a YAML configuration file.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills in unset optional fields.
func (c *Config) ApplyDefaults(now time.Time) {
	if c.DocType == "" {
		c.DocType = "_doc"
	}
	if c.PageSize == 0 {
		c.PageSize = 1000
	}
	if c.Lease == "" {
		c.Lease = "2m"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "csv"
	}
	if c.OutputPath == "" {
		c.OutputPath = c.defaultOutputPath(now)
	}
}

var nonWord = regexp.MustCompile(`\W+`)

// defaultOutputPath derives "<timestamp>-<a>-by-<b>.<ext>" with collection
// names sanitized for the filesystem.
func (c *Config) defaultOutputPath(now time.Time) string {
	ts := now.Format("2006-01-02_15-04-05")
	a := nonWord.ReplaceAllString(c.CollectionA, "_")
	b := nonWord.ReplaceAllString(c.CollectionB, "_")
	ext := c.OutputFormat
	if ext == "" {
		ext = "csv"
	}
	return fmt.Sprintf("%s-%s-by-%s.%s", ts, a, b, ext)
}

// --- Validation ---

var leasePattern = regexp.MustCompile(`^(\d+)([smh])$`)

var schemePattern = regexp.MustCompile(`^https?://`)

var outputFormats = map[string]bool{
	"csv":     true,
	"json":    true,
	"arrow":   true,
	"parquet": true,
}

// validate is a helper function to reduce repetition.
func validate(condition bool, format string, a ...any) error {
	if !condition {
		return fmt.Errorf(format, a...)
	}
	return nil
}

// Validate checks the configuration before any network call is made.
func (c *Config) Validate() error {
	if err := validate(c.Address != "", "store address is required"); err != nil {
		return err
	}
	if err := validate(schemePattern.MatchString(c.Address), "store address must start with http:// or https://"); err != nil {
		return err
	}
	if err := validate(c.CollectionA != "", "collection A is required"); err != nil {
		return err
	}
	if err := validate(c.CollectionB != "", "collection B is required"); err != nil {
		return err
	}
	if err := validate(c.CollectionA != c.CollectionB, "collection A and collection B must be different"); err != nil {
		return err
	}
	if err := validate(c.PageSize > 0, "page size must be a positive integer"); err != nil {
		return err
	}
	if err := validate(leasePattern.MatchString(c.Lease), "lease must be in a format like '2m', '30s', or '1h'"); err != nil {
		return err
	}
	if d, err := c.LeaseDuration(); err != nil || d <= 0 {
		return fmt.Errorf("lease must be a positive duration")
	}
	if err := validate(outputFormats[c.OutputFormat], "unknown output format %q", c.OutputFormat); err != nil {
		return err
	}
	return nil
}

// LeaseDuration parses the lease into a time.Duration.
func (c *Config) LeaseDuration() (time.Duration, error) {
	m := leasePattern.FindStringSubmatch(c.Lease)
	if m == nil {
		return 0, fmt.Errorf("invalid lease %q", c.Lease)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid lease %q: %w", c.Lease, err)
	}
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	default:
		return time.Duration(n) * time.Hour, nil
	}
}
