package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect run
	// behavior, keep the CLI flags in internal/cli/sync.go in sync.
	Targeting Targeting
	Selection Selection
	Sync      Sync
	Output    Output
	Runtime   Runtime
}

type Targeting struct {
	// Region is the cloud data center hosting the root model (see --region).
	// Allowed values: US, EMEA, AUS (EU and APAC are accepted aliases).
	Region string

	// ProjectGUID is the root model's project GUID (see --project).
	ProjectGUID string

	// ModelGUID is the root model's model GUID (see --model).
	ModelGUID string

	// Name is a display name for the root model (see --name).
	Name string
}

type Selection struct {
	// Models is an explicit list of model GUIDs to sync (see --select).
	// Empty means every discovered model. Dependencies of a selected model
	// are always included, flagged implicit.
	Models []string
}

type Sync struct {
	// WorksetMode controls which worksets the host opens (see --worksets).
	// Allowed values: all, last-viewed, specify.
	WorksetMode string

	// Worksets names the worksets to open when WorksetMode is "specify"
	// (see --workset).
	Worksets []string

	// LinkReloadDelay is the pause between opening a model and syncing it,
	// giving the host time to re-resolve freshly-synced child links
	// (see --link-delay).
	LinkReloadDelay time.Duration

	// Concurrency bounds simultaneous full opens during sync (see --concurrency).
	// Cloud document hosts throttle simultaneous opens, so the default is low.
	Concurrency int

	// DiscoveryConcurrency bounds simultaneous detached opens during
	// discovery (see --discovery-concurrency).
	DiscoveryConcurrency int

	// MaxRetryAttempts is how many times a transient failure is retried per
	// task (see --retries). 0 disables retries.
	MaxRetryAttempts int

	// RetryBackoffBase is the first retry backoff; it doubles per attempt
	// (see --backoff).
	RetryBackoffBase time.Duration
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// Report writes a Markdown run report to this path (see --report).
	Report string

	// Out writes structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out
	// file extension.
	OutFormat string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool
}

type Runtime struct {
	// Timeout is the global deadline for the run (see --timeout).
	// Must be > 0.
	Timeout time.Duration

	// DryRun discovers and plans, prints the tree and sync order, and stops
	// before opening anything in full mode (see --dry-run).
	DryRun bool

	// Verbose enables more detailed diagnostics (prints every host API call
	// and full error details).
	Verbose bool
}

func New() *Config {
	return &Config{
		Sync: Sync{
			WorksetMode:          "all",
			LinkReloadDelay:      2 * time.Second,
			Concurrency:          2,
			DiscoveryConcurrency: 4,
			MaxRetryAttempts:     2,
			RetryBackoffBase:     500 * time.Millisecond,
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Timeout: 2 * time.Hour,
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Selection.Models = splitCommaList(c.Selection.Models)
	c.Sync.Worksets = splitCommaList(c.Sync.Worksets)

	// Targeting validation
	if strings.TrimSpace(c.Targeting.Region) == "" {
		return errors.New("--region is required")
	}
	if strings.TrimSpace(c.Targeting.ProjectGUID) == "" {
		return errors.New("--project is required")
	}
	if strings.TrimSpace(c.Targeting.ModelGUID) == "" {
		return errors.New("--model is required")
	}

	// Sync validation
	c.Sync.WorksetMode = normalizeEnumValue(c.Sync.WorksetMode)
	if c.Sync.WorksetMode == "" {
		c.Sync.WorksetMode = "all"
	}
	if c.Sync.WorksetMode != "all" && c.Sync.WorksetMode != "last-viewed" && c.Sync.WorksetMode != "specify" {
		return fmt.Errorf("unsupported --worksets: %s (must be one of: all, last-viewed, specify)", c.Sync.WorksetMode)
	}
	if c.Sync.WorksetMode == "specify" && len(c.Sync.Worksets) == 0 {
		return errors.New("--worksets specify requires at least one --workset")
	}
	if c.Sync.WorksetMode != "specify" && len(c.Sync.Worksets) > 0 {
		return errors.New("--workset is only valid with --worksets specify")
	}
	if c.Sync.LinkReloadDelay < 0 {
		return errors.New("--link-delay must be >= 0")
	}
	if c.Sync.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Sync.DiscoveryConcurrency <= 0 {
		return errors.New("--discovery-concurrency must be >= 1")
	}
	if c.Sync.MaxRetryAttempts < 0 {
		return errors.New("--retries must be >= 0")
	}
	if c.Sync.RetryBackoffBase < 0 {
		return errors.New("--backoff must be >= 0")
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		c.Output.ConsoleFormat = "text"
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else {
			if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
				return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
			}
		}
	}

	// Runtime validation
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
