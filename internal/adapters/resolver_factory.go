package adapters

import (
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

type ResolverFactoryConfig struct {
	NpmRegistry  string
	PyPIRegistry string
	NpmMode      types.NpmResolverMode
	NpmBinary    string
}

// ResolverFactory builds per-package resolvers that share one HTTP client
// and one cache.
type ResolverFactory struct {
	npmFetcher  NpmRegistryAdapter
	pypiFetcher PyPIRegistryAdapter
	npmResolve  ports.ConstraintResolverPort
	pypiResolve ports.ConstraintResolverPort
	cache       *ResolverCache
}

func NewResolverFactory(cfg ResolverFactoryConfig, client *RegistryClient, cache *ResolverCache) (ResolverFactory, error) {
	if client == nil {
		client = NewRegistryClient(0, 0, 0)
	}
	if cache == nil {
		cache = NewResolverCache()
	}
	npmFetcher := NewNpmRegistryAdapter(cfg.NpmRegistry, client)
	pypiFetcher := NewPyPIRegistryAdapter(cfg.PyPIRegistry, client)

	var npmResolve ports.ConstraintResolverPort
	switch cfg.NpmMode {
	case "", types.NpmResolverRegistry:
		npmResolve = NewNpmRegistryResolver(npmFetcher, cache)
	case types.NpmResolverCLI:
		npmResolve = NewNpmViewResolver(cfg.NpmBinary)
	default:
		return ResolverFactory{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported npm resolver %q, use registry or cli", cfg.NpmMode))
	}

	return ResolverFactory{
		npmFetcher:  npmFetcher,
		pypiFetcher: pypiFetcher,
		npmResolve:  npmResolve,
		pypiResolve: NewPyPIIndexResolver(pypiFetcher, cache),
		cache:       cache,
	}, nil
}

func (f ResolverFactory) New(ecosystem types.Ecosystem, pkg string, window types.AnalysisWindow) (ports.ResolverPort, error) {
	switch ecosystem {
	case types.EcosystemNpm:
		return NewNpmResolver(pkg, window, f.npmFetcher, f.npmResolve, f.cache), nil
	case types.EcosystemPyPI:
		return NewPyPIResolver(pkg, window, f.pypiFetcher, f.pypiResolve, f.cache), nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported ecosystem: %s", ecosystem))
	}
}

func (f ResolverFactory) Cache() *ResolverCache {
	return f.cache
}

var _ ports.ResolverFactoryPort = ResolverFactory{}
