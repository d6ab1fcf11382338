package app

import "dependency-metrics/internal/types"

// DefaultStartDate is used when neither the request nor a batch row names
// a start date.
const DefaultStartDate = "1900-01-01"

type AnalyzeRequest struct {
	Ecosystem         string
	Package           string
	StartDate         string
	EndDate           string
	Weighting         types.WeightingConfig
	OutputDir         string
	WriteDependencies bool
	WriteOSV          bool
}

type AnalyzeResult struct {
	Result           types.AnalysisResult
	ResultsPath      string
	DependenciesPath string
	OSVPath          string
}

type BatchRequest struct {
	InputPath string
	OutputDir string
	StartDate string
	Weighting types.WeightingConfig
	Workers   int
}

type BatchResult struct {
	Summaries        []types.BatchSummary
	Duplicates       int
	Failed           int
	SummaryPath      string
	DependenciesPath string
}

type VulnsRequest struct {
	Output string
}

type VulnsResult struct {
	OutputPath  string
	Records     int
	NpmRecords  int
	PyPIRecords int
}
