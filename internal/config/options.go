package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// OptionsFile is the on-disk run-options document accepted via --options.
// Fields are pointers so absent keys leave the corresponding defaults alone.
type OptionsFile struct {
	WorksetOpeningMode   string   `yaml:"worksetOpeningMode"`
	Worksets             []string `yaml:"worksets"`
	LinkReloadDelayMs    *int     `yaml:"linkReloadDelayMs"`
	MaxConcurrentSyncs   *int     `yaml:"maxConcurrentSyncs"`
	DiscoveryConcurrency *int     `yaml:"discoveryConcurrency"`
	MaxRetryAttempts     *int     `yaml:"maxRetryAttempts"`
	RetryBackoffBaseMs   *int     `yaml:"retryBackoffBaseMs"`
}

// ApplyOptionsFile reads a YAML run-options file and merges it into c's Sync
// section. Flag values set after this call still win: the CLI loads the file
// before copying flag overrides.
func ApplyOptionsFile(c *Config, path string) error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read options file: %w", err)
	}

	var opts OptionsFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return fmt.Errorf("parse options file %s: %w", path, err)
	}

	if opts.WorksetOpeningMode != "" {
		c.Sync.WorksetMode = opts.WorksetOpeningMode
	}
	if len(opts.Worksets) > 0 {
		c.Sync.Worksets = opts.Worksets
	}
	if opts.LinkReloadDelayMs != nil {
		if *opts.LinkReloadDelayMs < 0 {
			return fmt.Errorf("options file: linkReloadDelayMs must be >= 0")
		}
		c.Sync.LinkReloadDelay = time.Duration(*opts.LinkReloadDelayMs) * time.Millisecond
	}
	if opts.MaxConcurrentSyncs != nil {
		if *opts.MaxConcurrentSyncs < 1 {
			return fmt.Errorf("options file: maxConcurrentSyncs must be >= 1")
		}
		c.Sync.Concurrency = *opts.MaxConcurrentSyncs
	}
	if opts.DiscoveryConcurrency != nil {
		if *opts.DiscoveryConcurrency < 1 {
			return fmt.Errorf("options file: discoveryConcurrency must be >= 1")
		}
		c.Sync.DiscoveryConcurrency = *opts.DiscoveryConcurrency
	}
	if opts.MaxRetryAttempts != nil {
		if *opts.MaxRetryAttempts < 0 {
			return fmt.Errorf("options file: maxRetryAttempts must be >= 0")
		}
		c.Sync.MaxRetryAttempts = *opts.MaxRetryAttempts
	}
	if opts.RetryBackoffBaseMs != nil {
		if *opts.RetryBackoffBaseMs < 0 {
			return fmt.Errorf("options file: retryBackoffBaseMs must be >= 0")
		}
		c.Sync.RetryBackoffBase = time.Duration(*opts.RetryBackoffBaseMs) * time.Millisecond
	}

	return nil
}
