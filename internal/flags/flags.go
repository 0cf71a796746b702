package flags

// Package flags defines canonical CLI flag names shared across the CLI.
// Keeping these as constants helps avoid drift between Cobra flag wiring and
// other code paths that need to reference flags by name.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Targeting.Region, flags.FlagRegion, "", "...")
//	arg := "--" + flags.FlagRegion
const (
	// Targeting
	FlagRegion  = "region"
	FlagProject = "project"
	FlagModel   = "model"
	FlagName    = "name"

	// Selection
	FlagSelect = "select"

	// Sync
	FlagWorksets             = "worksets"
	FlagWorkset              = "workset"
	FlagLinkDelay            = "link-delay"
	FlagConcurrency          = "concurrency"
	FlagDiscoveryConcurrency = "discovery-concurrency"
	FlagRetries              = "retries"
	FlagBackoff              = "backoff"
	FlagOptions              = "options"

	// Output
	FlagConsoleFormat = "console-format"
	FlagReport        = "report"
	FlagOut           = "out"
	FlagOutFormat     = "out-format"
	FlagNoConsole     = "no-console"

	// Runtime
	FlagTimeout = "timeout"
	FlagDryRun  = "dry-run"
	FlagToken   = "token"
)
