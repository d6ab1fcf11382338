package app

import (
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"dependency-metrics/internal/types"
)

// Vulns loads the vulnerability table for both ecosystems and persists it
// as a cached table file.
func (s Service) Vulns(req VulnsRequest) (VulnsResult, error) {
	output := strings.TrimSpace(req.Output)
	if output == "" {
		return VulnsResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("vulnerability table output path is required")
	}
	if s.Vulnerabilities == nil || s.TableWriter == nil {
		return VulnsResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("vulnerability source is not configured")
	}
	npmRows, err := s.Vulnerabilities.Vulnerabilities(types.EcosystemNpm)
	if err != nil {
		return VulnsResult{}, err
	}
	pypiRows, err := s.Vulnerabilities.Vulnerabilities(types.EcosystemPyPI)
	if err != nil {
		return VulnsResult{}, err
	}
	records := append(append([]types.VulnerabilityRecord(nil), npmRows...), pypiRows...)
	if err := s.TableWriter.WriteTable(output, records); err != nil {
		return VulnsResult{}, err
	}
	return VulnsResult{
		OutputPath:  output,
		Records:     len(records),
		NpmRecords:  len(npmRows),
		PyPIRecords: len(pypiRows),
	}, nil
}
