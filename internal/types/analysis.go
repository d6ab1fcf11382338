package types

type WeightingConfig struct {
	Type     WeightingType `json:"weighting_type"`
	HalfLife *float64      `json:"half_life,omitempty"`
}

type AnalyzeRequest struct {
	Ecosystem Ecosystem
	Package   string
	Window    AnalysisWindow
	Weighting WeightingConfig
}

type AnalysisResult struct {
	Ecosystem       Ecosystem             `json:"ecosystem"`
	Package         string                `json:"package"`
	Version         string                `json:"version"`
	Window          AnalysisWindow        `json:"window"`
	Weighting       WeightingConfig       `json:"weighting"`
	TTU             float64               `json:"ttu"`
	TTR             float64               `json:"ttr"`
	NumDependencies int                   `json:"num_dependencies"`
	Timelines       []DependencyTimeline  `json:"dependency_data,omitempty"`
	Failed          map[string]string     `json:"failed_dependencies,omitempty"`
	Vulnerabilities []VulnerabilityRecord `json:"osv_data,omitempty"`
}

type BulkRequest struct {
	Ecosystem Ecosystem
	Package   string
	Windows   []AnalysisWindow
	Weighting WeightingConfig
}

type WindowResult struct {
	Window AnalysisWindow
	Result AnalysisResult
	Status RowStatus
	Error  string
}
