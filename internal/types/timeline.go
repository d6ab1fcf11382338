package types

import "time"

type AnalysisWindow struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"interval_start"`
	End   time.Time `json:"interval_end"`
}

func (i Interval) DurationDays() float64 {
	return i.End.Sub(i.Start).Hours() / 24
}

type DependencyIntervalRecord struct {
	Ecosystem       Ecosystem `json:"ecosystem"`
	Package         string    `json:"package"`
	PackageVersion  string    `json:"package_version"`
	Dependency      string    `json:"dependency"`
	Constraint      string    `json:"dependency_constraint"`
	ResolvedVersion string    `json:"dependency_version"`
	HighestVersion  string    `json:"dependency_highest_version"`
	Interval        Interval  `json:"interval"`
	Updated         bool      `json:"updated"`
	Remediated      bool      `json:"remediated"`
	DurationDays    float64   `json:"interval_duration"`
	AgeDays         float64   `json:"age_of_interval"`
	Weight          float64   `json:"weight"`
}

type DependencyTimeline struct {
	Dependency string                     `json:"dependency"`
	Records    []DependencyIntervalRecord `json:"records"`
	TTU        float64                    `json:"ttu"`
	TTR        float64                    `json:"ttr"`
}
