package main

import (
	"encoding/json"
	"fmt"

	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/rgehrsitz/benadmin/internal/importer"
	"github.com/rgehrsitz/benadmin/internal/output"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a CSV or XLSX enrollment sheet",
		Long: "Import a group, medicare or dependents sheet. Rows are processed in order; " +
			"row failures are reported and do not stop the run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			format, err := importer.ParseFormat(formatName)
			if err != nil {
				return err
			}

			batch, err := importer.ReadFile(args[0], format)
			if err != nil {
				return batchFailure(cmd, err)
			}
			batch.GroupName, _ = cmd.Flags().GetString("group")
			batch.PlanStartDate, _ = cmd.Flags().GetString("plan-start-date")

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			u := enrollment.NewUpserter(s)
			u.SetLogger(engineLogger())
			im := importer.NewImporter(u)
			im.SetLogger(engineLogger())
			im.MaxRows = cfg.Import.MaxRows

			report, err := im.Run(cmd.Context(), batch)
			if err != nil {
				if importer.IsBatchError(err) {
					return batchFailure(cmd, err)
				}
				return err
			}

			if save, _ := cmd.Flags().GetString("save"); save != "" {
				if err := output.SaveReport(report, save); err != nil {
					return err
				}
			}
			return output.WriteReport(cmd.OutOrStdout(), report, outputFormat(cmd))
		},
	}
	cmd.Flags().StringP("format", "f", "group", "sheet format: group, medicare or dependents")
	cmd.Flags().StringP("group", "g", "", "group name (group format)")
	cmd.Flags().String("plan-start-date", "", "plan start date applied to rows without one (group format)")
	cmd.Flags().String("save", "", "save the report as JSON for benadmin-tui")
	return cmd
}

// batchFailure prints the failure payload for json output and returns the error
func batchFailure(cmd *cobra.Command, err error) error {
	if outputFormat(cmd) == "json" {
		data, merr := json.MarshalIndent(importer.FailurePayload(err), "", "  ")
		if merr == nil {
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}
	}
	return fmt.Errorf("import rejected: %w", err)
}
