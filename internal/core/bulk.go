package core

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"dependency-metrics/internal/policies"
	"dependency-metrics/internal/shared"
	"dependency-metrics/internal/types"
)

// BulkAnalyzer runs several windows of one package against a single
// dependency set. Resolvers produced by the factory share one cache, so
// histories and per-date resolutions are fetched once per batch.
type BulkAnalyzer struct {
	Analyzer
}

func NewBulkAnalyzer(analyzer Analyzer) BulkAnalyzer {
	return BulkAnalyzer{Analyzer: analyzer}
}

// AnalyzeBulk returns one result per window, in request order. The analyzed
// dependency set is the one declared by the package version current at the
// latest window end; per-interval constraints still follow history. A
// failing window is reported in its result and does not stop the others.
func (b BulkAnalyzer) AnalyzeBulk(ctx context.Context, req types.BulkRequest) ([]types.WindowResult, error) {
	if len(req.Windows) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("bulk analysis requires at least one window")
	}
	latest := req.Windows[0]
	for _, window := range req.Windows[1:] {
		if window.End.After(latest.End) {
			latest = window
		}
	}
	if err := validateRequest(b.Analyzer, req.Ecosystem, req.Package, latest); err != nil {
		return nil, err
	}

	resolver, err := b.Resolvers.New(req.Ecosystem, req.Package, latest)
	if err != nil {
		return nil, err
	}
	parent, err := resolver.FetchPackageMetadata(ctx, req.Package)
	if err != nil {
		return nil, err
	}
	_, data, err := resolver.PackageVersionAtDate(ctx, parent)
	if err != nil {
		return nil, err
	}
	dependencies := resolver.ExtractDependencies(data)
	names := sortedNames(dependencies)
	log.Info().Str("package", req.Package).Int("dependencies", len(names)).Int("windows", len(req.Windows)).Msg("bulk analysis")

	records, err := b.vulnerabilityRows(req.Ecosystem)
	if err != nil {
		return nil, err
	}

	results := make([]types.WindowResult, 0, len(req.Windows))
	for _, window := range req.Windows {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := b.analyzeWindow(ctx, req, window, names, records)
		if err != nil {
			log.Error().Err(err).Str("package", req.Package).Time("end", window.End).Msg("window analysis failed")
			results = append(results, types.WindowResult{
				Window: window,
				Status: types.RowStatusError,
				Error:  shared.ErrorMessage(err),
			})
			continue
		}
		results = append(results, types.WindowResult{
			Window: window,
			Result: result,
			Status: types.RowStatusOK,
		})
	}
	return results, nil
}

func (b BulkAnalyzer) analyzeWindow(ctx context.Context, req types.BulkRequest, window types.AnalysisWindow, names []string, records []types.VulnerabilityRecord) (types.AnalysisResult, error) {
	if err := validateRequest(b.Analyzer, req.Ecosystem, req.Package, window); err != nil {
		return types.AnalysisResult{}, err
	}
	weighting, err := policies.NewWeightingPolicy(req.Weighting, window)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	resolver, err := b.Resolvers.New(req.Ecosystem, req.Package, window)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	parent, err := resolver.FetchPackageMetadata(ctx, req.Package)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	version, _, err := resolver.PackageVersionAtDate(ctx, parent)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	result := newResult(req.Ecosystem, req.Package, version, window, req.Weighting)
	result.NumDependencies = len(names)
	if len(names) == 0 {
		return result, nil
	}
	run := dependencyRun{
		resolver:  resolver,
		weighting: weighting,
		records:   records,
		pkg:       req.Package,
		window:    window,
	}
	if err := run.analyze(ctx, parent, names, &result); err != nil {
		return types.AnalysisResult{}, err
	}
	return result, nil
}
