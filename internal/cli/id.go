package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"modelsync/internal/flags"
	"modelsync/internal/model"
)

var idName string

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Validate a model identity and print its CSV record",
	Long: `Validate a region/project/model identity and print it as a CSV record
(NAME,REGION,PROJECT_GUID,MODEL_GUID), the interchange format used to pass
model lists between tools.

Examples:
  modelsync id --region US --project <guid> --model <guid> --name Tower-A
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}

		id, err := model.NewIdentity(cfg.Targeting.Region, cfg.Targeting.ProjectGUID, cfg.Targeting.ModelGUID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}
		name := strings.TrimSpace(idName)
		if name == "" {
			name = "MODEL"
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.Record(name))
	},
}

func init() {
	rootCmd.AddCommand(idCmd)

	idCmd.Flags().StringVar(&cfg.Targeting.Region, flags.FlagRegion, "", "Cloud data center: US|EMEA|AUS (required)")
	idCmd.Flags().StringVar(&cfg.Targeting.ProjectGUID, flags.FlagProject, "", "Project GUID (required)")
	idCmd.Flags().StringVar(&cfg.Targeting.ModelGUID, flags.FlagModel, "", "Model GUID (required)")
	idCmd.Flags().StringVar(&idName, flags.FlagName, "", "Display name for the record (default: MODEL)")
}
