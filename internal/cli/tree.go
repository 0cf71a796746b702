package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modelsync/internal/acc"
	"modelsync/internal/engine"
	"modelsync/internal/flags"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print a model's dependency tree and sync order without syncing",
	Long: `Discover the full link-dependency tree of a cloud-hosted model and print
it together with the leaf-first sync order. Every model is opened detached
(read-only); nothing is synced.

Examples:
  modelsync tree --region US --project <guid> --model <guid>
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
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
		g, order, err := eng.Discover(ctx, cfg, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}
		plan, err := engine.BuildPlan(g, order, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}
		engine.WriteTreePreview(os.Stdout, g, order, plan)
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)

	treeCmd.Flags().StringVar(&cfg.Targeting.Region, flags.FlagRegion, "", "Cloud data center hosting the root model: US|EMEA|AUS (required)")
	treeCmd.Flags().StringVar(&cfg.Targeting.ProjectGUID, flags.FlagProject, "", "Root model's project GUID (required)")
	treeCmd.Flags().StringVar(&cfg.Targeting.ModelGUID, flags.FlagModel, "", "Root model's model GUID (required)")
	treeCmd.Flags().StringVar(&cfg.Targeting.Name, flags.FlagName, "", "Display name for the root model (default: ROOT)")
	treeCmd.Flags().IntVar(&cfg.Sync.DiscoveryConcurrency, flags.FlagDiscoveryConcurrency, cfg.Sync.DiscoveryConcurrency, "Concurrent detached opens during discovery (default: 4)")
	treeCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout (default: 2h)")
	treeCmd.Flags().StringVar(&syncToken, flags.FlagToken, "", "Host access token (overrides ACC_TOKEN)")
}
