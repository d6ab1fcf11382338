package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dependency-metrics/internal/app"
)

const defaultBatchOutputDir = "out"

type batchOptions struct {
	Input     string
	OutputDir string
	StartDate string
	Workers   int
	Weighting weightingFlags
}

func newBatchCommand() *cobra.Command {
	opts := batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Analyze every package listed in a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Input CSV (ecosystem,package_name,end_date[,start_date])")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Directory for summary files (default \"out\")")
	cmd.Flags().StringVar(&opts.StartDate, "start-date", app.DefaultStartDate, "Start date for rows without one")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Parallel package workers (0 = min(8, CPUs))")
	bindWeightingFlags(cmd, &opts.Weighting)

	_ = viper.BindPFlag("input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("output_dir", cmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("start_date", cmd.Flags().Lookup("start-date"))
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runBatch(ctx context.Context, cmd *cobra.Command, opts batchOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	// output_dir is shared with analyze, where empty means no files.
	outputDir := resolveString(cmd, opts.OutputDir, "output_dir", "output-dir")
	if outputDir == "" {
		outputDir = defaultBatchOutputDir
	}
	result, err := service.Batch(ctx, app.BatchRequest{
		InputPath: resolveString(cmd, opts.Input, "input", "input"),
		OutputDir: outputDir,
		StartDate: resolveString(cmd, opts.StartDate, "start_date", "start-date"),
		Weighting: resolveWeighting(cmd, opts.Weighting),
		Workers:   resolveInt(cmd, opts.Workers, "workers", "workers"),
	})
	if err != nil {
		return err
	}
	printBatchResult(cmd.OutOrStdout(), result)
	return nil
}

func printBatchResult(w io.Writer, result app.BatchResult) {
	fmt.Fprintf(w, "rows: %d (failed %d, duplicates removed %d)\n", len(result.Summaries), result.Failed, result.Duplicates)
	for _, summary := range result.Summaries {
		if summary.Error != "" {
			fmt.Fprintf(w, "  row %d %s/%s: %s\n", summary.RowNum, summary.Ecosystem, summary.Package, summary.Error)
		}
	}
	if result.SummaryPath != "" {
		fmt.Fprintf(w, "wrote: %s\n", result.SummaryPath)
	}
	if result.DependenciesPath != "" {
		fmt.Fprintf(w, "wrote: %s\n", result.DependenciesPath)
	}
}
