package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dependency-metrics/internal/app"
)

type analyzeOptions struct {
	Ecosystem         string
	Package           string
	StartDate         string
	EndDate           string
	OutputDir         string
	WriteDependencies bool
	WriteOSV          bool
	Weighting         weightingFlags
}

func newAnalyzeCommand() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute TTU and TTR for one package",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Ecosystem, "ecosystem", "e", "", "Package ecosystem (npm|pypi)")
	cmd.Flags().StringVarP(&opts.Package, "package", "p", "", "Package name")
	cmd.Flags().StringVar(&opts.StartDate, "start-date", app.DefaultStartDate, "Window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EndDate, "end-date", "", "Window end (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Directory for result files")
	cmd.Flags().BoolVar(&opts.WriteDependencies, "dependencies-csv", true, "Write the per-interval dependency CSV")
	cmd.Flags().BoolVar(&opts.WriteOSV, "osv-csv", false, "Write the matched vulnerability CSV")
	bindWeightingFlags(cmd, &opts.Weighting)

	_ = viper.BindPFlag("start_date", cmd.Flags().Lookup("start-date"))
	_ = viper.BindPFlag("end_date", cmd.Flags().Lookup("end-date"))
	_ = viper.BindPFlag("output_dir", cmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("dependencies_csv", cmd.Flags().Lookup("dependencies-csv"))
	_ = viper.BindPFlag("osv_csv", cmd.Flags().Lookup("osv-csv"))

	return cmd
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, opts analyzeOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.Analyze(ctx, app.AnalyzeRequest{
		Ecosystem:         opts.Ecosystem,
		Package:           opts.Package,
		StartDate:         resolveString(cmd, opts.StartDate, "start_date", "start-date"),
		EndDate:           resolveString(cmd, opts.EndDate, "end_date", "end-date"),
		Weighting:         resolveWeighting(cmd, opts.Weighting),
		OutputDir:         resolveString(cmd, opts.OutputDir, "output_dir", "output-dir"),
		WriteDependencies: resolveBool(cmd, opts.WriteDependencies, "dependencies_csv", "dependencies-csv"),
		WriteOSV:          resolveBool(cmd, opts.WriteOSV, "osv_csv", "osv-csv"),
	})
	if err != nil {
		return err
	}
	printAnalyzeResult(cmd.OutOrStdout(), result)
	return nil
}

func printAnalyzeResult(w io.Writer, res app.AnalyzeResult) {
	result := res.Result
	fmt.Fprintf(w, "package: %s %s@%s\n", result.Ecosystem, result.Package, result.Version)
	fmt.Fprintf(w, "window: %s to %s\n", result.Window.Start.Format("2006-01-02"), result.Window.End.Format("2006-01-02"))
	fmt.Fprintf(w, "dependencies: %d\n", result.NumDependencies)
	fmt.Fprintf(w, "mttu: %.2f days\n", result.TTU)
	fmt.Fprintf(w, "mttr: %.2f days\n", result.TTR)
	if len(result.Failed) > 0 {
		names := make([]string, 0, len(result.Failed))
		for name := range result.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "failed dependencies: %d\n", len(names))
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %s\n", name, result.Failed[name])
		}
	}
	for _, path := range []string{res.ResultsPath, res.DependenciesPath, res.OSVPath} {
		if path != "" {
			fmt.Fprintf(w, "wrote: %s\n", path)
		}
	}
}
