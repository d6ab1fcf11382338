package ports

import "dependency-metrics/internal/types"

type ReportPort interface {
	WriteResults(result types.AnalysisResult) (string, error)
	WriteDependencyRecords(name string, timelines []types.DependencyTimeline) (string, error)
	WriteVulnerabilities(name string, records []types.VulnerabilityRecord) (string, error)
	WriteBatchSummary(name string, rows []types.BatchSummary) (string, error)
}

type BatchInputPort interface {
	ReadRows(path string) ([]types.BatchRow, error)
}
