package app

import (
	"time"

	"dependency-metrics/internal/adapters"
	"dependency-metrics/internal/core"
	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

// Config carries the adapter settings resolved by the CLI.
type Config struct {
	NpmRegistry      string
	PyPIRegistry     string
	NpmResolver      types.NpmResolverMode
	NpmBinary        string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
	OSVDir           string
	OSVTable         string
	UserAgent        string
}

type Service struct {
	Resolvers       ports.ResolverFactoryPort
	Vulnerabilities ports.VulnerabilityPort
	TableWriter     ports.VulnerabilityTableWriterPort
	BatchInput      ports.BatchInputPort
	Reports         func(dir string) ports.ReportPort
	Cache           *adapters.ResolverCache
	Clock           func() time.Time
}

func NewService(cfg Config) (Service, error) {
	var opts []adapters.RegistryClientOption
	if cfg.UserAgent != "" {
		opts = append(opts, adapters.WithUserAgent(cfg.UserAgent))
	}
	client := adapters.NewRegistryClient(cfg.HTTPTimeoutSec, cfg.HTTPRetries, cfg.HTTPRetryDelayMs, opts...)
	cache := adapters.NewResolverCache()
	factory, err := adapters.NewResolverFactory(adapters.ResolverFactoryConfig{
		NpmRegistry:  cfg.NpmRegistry,
		PyPIRegistry: cfg.PyPIRegistry,
		NpmMode:      cfg.NpmResolver,
		NpmBinary:    cfg.NpmBinary,
	}, client, cache)
	if err != nil {
		return Service{}, err
	}
	table := adapters.NewOSVTableAdapter(cfg.OSVDir, cfg.OSVTable)
	return Service{
		Resolvers:       factory,
		Vulnerabilities: table,
		TableWriter:     table,
		BatchInput:      adapters.NewBatchInputAdapter(),
		Reports:         newReportWriter,
		Cache:           cache,
		Clock:           time.Now,
	}, nil
}

func newReportWriter(dir string) ports.ReportPort {
	return adapters.NewReportFileAdapter(dir)
}

func (s Service) analyzer() core.Analyzer {
	return core.NewAnalyzer(s.Resolvers, s.Vulnerabilities)
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}
