package ports

import "dependency-metrics/internal/types"

type VulnerabilityPort interface {
	Vulnerabilities(ecosystem types.Ecosystem) ([]types.VulnerabilityRecord, error)
}

type VulnerabilityTableWriterPort interface {
	WriteTable(path string, records []types.VulnerabilityRecord) error
}
