// Package config loads the optional YAML configuration consumed by the
// command line tools. The library packages take everything explicitly
// and never read configuration.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config holds tool-level settings. Command line flags override any
// value set here.
type Config struct {
	// KeyringPath points at a legacy keyring_file for decryption.
	KeyringPath string `yaml:"keyring_path"`

	// PageSize forces a page size instead of inferring it from page 0.
	// Zero means infer.
	PageSize uint32 `yaml:"page_size"`

	// ExportFormat selects the default output format: text or json.
	ExportFormat string `yaml:"export_format"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{ExportFormat: "text"}
}

// Load reads a YAML config file. A missing file yields the defaults;
// a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if cfg.ExportFormat == "" {
		cfg.ExportFormat = "text"
	}
	return cfg, nil
}
