package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modelsync/internal/acc"
	"modelsync/internal/config"
	"modelsync/internal/engine"
	"modelsync/internal/flags"
)

var cfg = config.New()

var (
	syncOptionsFile string
	syncToken       string
)

const syncHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	ModelSync authenticates to the cloud document host using an access token.

	Sources (in order):
	1) --token flag
	2) ACC_TOKEN environment variable (static bearer token)
	3) ACC_CLIENT_ID + ACC_CLIENT_SECRET (two-legged client-credentials flow)

  Examples:
    # macOS/Linux
    export ACC_TOKEN="<your_token>"
    modelsync sync --region US --project <guid> --model <guid>

    # App credentials
    export ACC_CLIENT_ID="<id>"
    export ACC_CLIENT_SECRET="<secret>"
    modelsync sync --region EMEA --project <guid> --model <guid>

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Discover a model's dependency tree and sync it bottom-up",
	Long: `Discover the full link-dependency tree of a cloud-hosted model, derive a
leaf-first sync order, and sync every model in it.

A model is only opened for sync once all of its dependencies have synced.
If a dependency fails, its dependents are skipped (never synced against a
stale child) and the rest of the tree still proceeds.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
	- --report: write a Markdown run report
	- --no-console: suppress the console sink (use with --out/--report)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events
	with a "type" field (run.started, model.discovered, plan.created,
	task.state, run.finished).

Exit codes:
	0 = every planned model synced
	1 = some models failed or were skipped
	2 = run cancelled
	3 = fatal error (run did not complete)

Examples:
  # Sync a tree with app credentials
  export ACC_CLIENT_ID="<id>" ACC_CLIENT_SECRET="<secret>"
  modelsync sync --region US --project 11111111-2222-3333-4444-555555555555 \
    --model aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee

  # Preview without opening anything for edit
  modelsync sync --region US --project <guid> --model <guid> --dry-run

  # Sync only two models (their dependencies come along implicitly)
  modelsync sync --region US --project <guid> --model <guid> \
    --select <model-guid>,<model-guid>
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}

		if syncOptionsFile != "" {
			if err := config.ApplyOptionsFile(cfg, syncOptionsFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(3)
			}
			applyFlagOverrides(cmd, cfg)
		}

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
		defer cancel()

		source, _, err := acc.ResolveTokenSource(syncToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to resolve host credentials: %v\n", err)
			os.Exit(3)
		}
		if source == nil {
			fmt.Fprintln(os.Stderr, "Error: host credentials are required (set ACC_TOKEN, or ACC_CLIENT_ID and ACC_CLIENT_SECRET)")
			os.Exit(3)
		}

		client, err := acc.NewClient(ctx, source, acc.WithVerbose(cfg.Runtime.Verbose, nil))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create host client: %v\n", err)
			os.Exit(3)
		}
		eng := engine.NewEngine(client)
		os.Exit(eng.Run(ctx, cfg))
	},
}

// applyFlagOverrides re-copies values for flags the user set explicitly, so
// CLI flags always beat the --options file.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd == nil {
		return
	}
	fs := cmd.Flags()
	if fs.Changed(flags.FlagWorksets) {
		cfg.Sync.WorksetMode, _ = fs.GetString(flags.FlagWorksets)
	}
	if fs.Changed(flags.FlagWorkset) {
		cfg.Sync.Worksets, _ = fs.GetStringSlice(flags.FlagWorkset)
	}
	if fs.Changed(flags.FlagLinkDelay) {
		cfg.Sync.LinkReloadDelay, _ = fs.GetDuration(flags.FlagLinkDelay)
	}
	if fs.Changed(flags.FlagConcurrency) {
		cfg.Sync.Concurrency, _ = fs.GetInt(flags.FlagConcurrency)
	}
	if fs.Changed(flags.FlagDiscoveryConcurrency) {
		cfg.Sync.DiscoveryConcurrency, _ = fs.GetInt(flags.FlagDiscoveryConcurrency)
	}
	if fs.Changed(flags.FlagRetries) {
		cfg.Sync.MaxRetryAttempts, _ = fs.GetInt(flags.FlagRetries)
	}
	if fs.Changed(flags.FlagBackoff) {
		cfg.Sync.RetryBackoffBase, _ = fs.GetDuration(flags.FlagBackoff)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.SetHelpTemplate(syncHelpTemplate)

	// Targeting
	syncCmd.Flags().StringVar(&cfg.Targeting.Region, flags.FlagRegion, "", "Cloud data center hosting the root model: US|EMEA|AUS (required)")
	syncCmd.Flags().StringVar(&cfg.Targeting.ProjectGUID, flags.FlagProject, "", "Root model's project GUID (required)")
	syncCmd.Flags().StringVar(&cfg.Targeting.ModelGUID, flags.FlagModel, "", "Root model's model GUID (required)")
	syncCmd.Flags().StringVar(&cfg.Targeting.Name, flags.FlagName, "", "Display name for the root model (default: ROOT)")

	// Selection
	syncCmd.Flags().StringSliceVar(&cfg.Selection.Models, flags.FlagSelect, nil, "Model GUIDs to sync (repeatable; comma-separated accepted). Dependencies of a selected model are always included. Empty = whole tree")

	// Sync behavior
	syncCmd.Flags().StringVar(&cfg.Sync.WorksetMode, flags.FlagWorksets, cfg.Sync.WorksetMode, "Workset opening mode: all|last-viewed|specify (default: all)")
	syncCmd.Flags().StringSliceVar(&cfg.Sync.Worksets, flags.FlagWorkset, nil, "Workset name(s) to open with --worksets specify (repeatable; comma-separated accepted)")
	syncCmd.Flags().DurationVar(&cfg.Sync.LinkReloadDelay, flags.FlagLinkDelay, cfg.Sync.LinkReloadDelay, "Pause between opening a model and syncing it (default: 2s)")
	syncCmd.Flags().IntVar(&cfg.Sync.Concurrency, flags.FlagConcurrency, cfg.Sync.Concurrency, "Concurrent full opens during sync (default: 2)")
	syncCmd.Flags().IntVar(&cfg.Sync.DiscoveryConcurrency, flags.FlagDiscoveryConcurrency, cfg.Sync.DiscoveryConcurrency, "Concurrent detached opens during discovery (default: 4)")
	syncCmd.Flags().IntVar(&cfg.Sync.MaxRetryAttempts, flags.FlagRetries, cfg.Sync.MaxRetryAttempts, "Retries per task for transient failures (default: 2; 0 disables)")
	syncCmd.Flags().DurationVar(&cfg.Sync.RetryBackoffBase, flags.FlagBackoff, cfg.Sync.RetryBackoffBase, "First retry backoff, doubling per attempt (default: 500ms)")
	syncCmd.Flags().StringVar(&syncOptionsFile, flags.FlagOptions, "", "YAML run-options file (flags set on the command line still win)")

	// Output
	syncCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, "text", "Console output format: text|json|ndjson (default: text)")
	syncCmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	syncCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	syncCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	syncCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --out/--report)")

	// Runtime
	syncCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout (default: 2h)")
	syncCmd.Flags().BoolVar(&cfg.Runtime.DryRun, flags.FlagDryRun, false, "Discover and plan, print tree and sync order, sync nothing (still requires credentials)")
	syncCmd.Flags().StringVar(&syncToken, flags.FlagToken, "", "Host access token (overrides ACC_TOKEN)")
}
