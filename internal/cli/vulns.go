package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dependency-metrics/internal/app"
)

func newVulnsCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "vulns",
		Short: "Build the cached vulnerability table from OSV advisories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := newAppService()
			if err != nil {
				return err
			}
			result, err := service.Vulns(app.VulnsRequest{
				Output: resolveString(cmd, output, "vulns_output", "output"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote vulnerability table: %s (%d rows, npm %d, pypi %d)\n",
				result.OutputPath, result.Records, result.NpmRecords, result.PyPIRecords)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "osv_table.yaml", "Output table path")
	_ = viper.BindPFlag("vulns_output", cmd.Flags().Lookup("output"))
	return cmd
}
