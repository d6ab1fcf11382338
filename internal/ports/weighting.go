package ports

type WeightingPort interface {
	Weight(ageDays float64) float64
	Disabled() bool
}
