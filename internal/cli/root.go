package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "modelsync",
	Short: "Sync cloud-hosted model trees bottom-up, dependencies first",
	Long: `ModelSync discovers the full link-dependency tree of a cloud-hosted model
and syncs every model in it bottom-up, so parents always sync against
freshly-synced children.

Examples:
	# Show available commands and global flags
	modelsync --help

	# Sync a model and its whole dependency tree
	modelsync sync --region US --project <guid> --model <guid>

	# Print the dependency tree without syncing
	modelsync tree --region US --project <guid> --model <guid>

	# Print build info
	modelsync version

Output:
	By default, commands write human-readable output to stdout.
	Structured output is available via --console-format, --out and --report
	(see each command's --help).`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, "verbose", false, "Enable verbose logging (prints every host API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
