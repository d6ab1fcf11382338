package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"dependency-metrics/internal/policies"
	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/shared"
	"dependency-metrics/internal/types"
)

// Analyzer computes TTU and TTR for a package and its direct dependencies.
type Analyzer struct {
	Resolvers       ports.ResolverFactoryPort
	Vulnerabilities ports.VulnerabilityPort
}

func NewAnalyzer(resolvers ports.ResolverFactoryPort, vulnerabilities ports.VulnerabilityPort) Analyzer {
	return Analyzer{
		Resolvers:       resolvers,
		Vulnerabilities: vulnerabilities,
	}
}

func (a Analyzer) Analyze(ctx context.Context, req types.AnalyzeRequest) (types.AnalysisResult, error) {
	if err := validateRequest(a, req.Ecosystem, req.Package, req.Window); err != nil {
		return types.AnalysisResult{}, err
	}
	weighting, err := policies.NewWeightingPolicy(req.Weighting, req.Window)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	resolver, err := a.Resolvers.New(req.Ecosystem, req.Package, req.Window)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	log.Info().Str("ecosystem", string(req.Ecosystem)).Str("package", req.Package).Msg("fetching package metadata")
	parent, err := resolver.FetchPackageMetadata(ctx, req.Package)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	version, data, err := resolver.PackageVersionAtDate(ctx, parent)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	assert.NotEmpty(ctx, version, "package version at window end must be set")
	dependencies := resolver.ExtractDependencies(data)
	log.Info().Str("package", req.Package).Str("version", version).Int("dependencies", len(dependencies)).Msg("analyzing package version")

	result := newResult(req.Ecosystem, req.Package, version, req.Window, req.Weighting)
	result.NumDependencies = len(dependencies)
	if len(dependencies) == 0 {
		return result, nil
	}

	records, err := a.vulnerabilityRows(req.Ecosystem)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	run := dependencyRun{
		resolver:  resolver,
		weighting: weighting,
		records:   records,
		pkg:       req.Package,
		window:    req.Window,
	}
	if err := run.analyze(ctx, parent, sortedNames(dependencies), &result); err != nil {
		return types.AnalysisResult{}, err
	}
	return result, nil
}

func (a Analyzer) vulnerabilityRows(ecosystem types.Ecosystem) ([]types.VulnerabilityRecord, error) {
	if a.Vulnerabilities == nil {
		return nil, nil
	}
	return a.Vulnerabilities.Vulnerabilities(ecosystem)
}

// dependencyRun holds what every dependency of one analysis shares.
type dependencyRun struct {
	resolver  ports.ResolverPort
	weighting ports.WeightingPort
	records   []types.VulnerabilityRecord
	pkg       string
	window    types.AnalysisWindow
}

// analyze fills timelines, failures and package means into result. Only a
// parent timeline failure is returned; dependency failures are recorded.
func (r dependencyRun) analyze(ctx context.Context, parent types.PackageMetadata, names []string, result *types.AnalysisResult) error {
	ordering := NewVersionOrdering(r.resolver.Ecosystem())
	checker := NewRemediationChecker(ordering, r.records)
	timelines := TimelineResolver{
		Resolver:    r.resolver,
		Weighting:   r.weighting,
		Remediation: checker,
		Ordering:    ordering,
		Package:     r.pkg,
		Window:      r.window,
	}

	var ttus, ttrs []float64
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := log.With().Str("package", r.pkg).Str("dependency", name).Logger()
		logger.Debug().Msg("analyzing dependency")

		depMeta, err := r.resolver.FetchPackageMetadata(ctx, name)
		if err != nil {
			logger.Error().Err(err).Msg("dependency metadata fetch failed")
			result.Failed[name] = shared.ErrorMessage(err)
			continue
		}
		records, err := timelines.Resolve(ctx, name, parent, depMeta)
		if err != nil {
			if errors.Is(err, ErrParentTimeline) {
				return errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("analysis of %s aborted: %v", r.pkg, err)).
					WithCause(err)
			}
			logger.Error().Err(err).Msg("dependency analysis failed")
			result.Failed[name] = shared.ErrorMessage(err)
			continue
		}

		ttu, ttr := Aggregate(records, r.weighting.Disabled())
		ttus = append(ttus, ttu)
		ttrs = append(ttrs, ttr)
		result.Timelines = append(result.Timelines, types.DependencyTimeline{
			Dependency: name,
			Records:    records,
			TTU:        ttu,
			TTR:        ttr,
		})
		result.Vulnerabilities = append(result.Vulnerabilities, checker.Rows(name)...)
	}
	result.TTU = Mean(ttus)
	result.TTR = Mean(ttrs)
	return nil
}

func newResult(ecosystem types.Ecosystem, pkg string, version string, window types.AnalysisWindow, weighting types.WeightingConfig) types.AnalysisResult {
	return types.AnalysisResult{
		Ecosystem: ecosystem,
		Package:   pkg,
		Version:   version,
		Window:    window,
		Weighting: weighting,
		Failed:    map[string]string{},
	}
}

func validateRequest(a Analyzer, ecosystem types.Ecosystem, pkg string, window types.AnalysisWindow) error {
	if a.Resolvers == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("analyzer requires a resolver factory")
	}
	if _, ok := types.ParseEcosystem(string(ecosystem)); !ok {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported ecosystem: %s", ecosystem))
	}
	if strings.TrimSpace(pkg) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package name is required")
	}
	if !window.Start.Before(window.End) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("start date %s must be before end date %s",
				window.Start.Format("2006-01-02"), window.End.Format("2006-01-02")))
	}
	return nil
}

func sortedNames(deps map[string]string) []string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

