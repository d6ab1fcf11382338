package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"dependency-metrics/internal/adapters"
	"dependency-metrics/internal/types"
)

func (s Service) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	ecosystem, ok := types.ParseEcosystem(req.Ecosystem)
	if !ok {
		return AnalyzeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported ecosystem %q, use npm or pypi", req.Ecosystem))
	}
	pkg := strings.TrimSpace(req.Package)
	if pkg == "" {
		return AnalyzeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package name is required")
	}
	window, err := s.window(req.StartDate, req.EndDate)
	if err != nil {
		return AnalyzeResult{}, err
	}

	result, err := s.analyzer().Analyze(ctx, types.AnalyzeRequest{
		Ecosystem: ecosystem,
		Package:   pkg,
		Window:    window,
		Weighting: req.Weighting,
	})
	if err != nil {
		return AnalyzeResult{}, err
	}

	out := AnalyzeResult{Result: result}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" || s.Reports == nil {
		return out, nil
	}
	reports := s.Reports(outputDir)
	if out.ResultsPath, err = reports.WriteResults(result); err != nil {
		return AnalyzeResult{}, err
	}
	if req.WriteDependencies && len(result.Timelines) > 0 {
		if out.DependenciesPath, err = reports.WriteDependencyRecords(pkg, result.Timelines); err != nil {
			return AnalyzeResult{}, err
		}
	}
	if req.WriteOSV && len(result.Vulnerabilities) > 0 {
		if out.OSVPath, err = reports.WriteVulnerabilities(pkg, result.Vulnerabilities); err != nil {
			return AnalyzeResult{}, err
		}
	}
	return out, nil
}

// window parses the request dates. An empty start means DefaultStartDate
// and an empty end means today.
func (s Service) window(start string, end string) (types.AnalysisWindow, error) {
	if strings.TrimSpace(start) == "" {
		start = DefaultStartDate
	}
	startAt, err := adapters.ParseDate(start, "start_date")
	if err != nil {
		return types.AnalysisWindow{}, err
	}
	endAt := s.today()
	if strings.TrimSpace(end) != "" {
		endAt, err = adapters.ParseDate(end, "end_date")
		if err != nil {
			return types.AnalysisWindow{}, err
		}
	}
	return types.AnalysisWindow{Start: startAt, End: endAt}, nil
}

func (s Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
