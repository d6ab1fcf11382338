package types

type BatchRow struct {
	RowNum    int
	Ecosystem string
	Package   string
	StartDate string
	EndDate   string
}

type BatchSummary struct {
	RowNum          int
	Ecosystem       string
	Package         string
	StartDate       string
	EndDate         string
	MTTU            float64
	MTTR            float64
	NumDependencies int
	Status          RowStatus
	Error           string
}
