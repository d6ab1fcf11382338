package types

import "strings"

type Ecosystem string

const (
	EcosystemNpm  Ecosystem = "npm"
	EcosystemPyPI Ecosystem = "pypi"
)

// ParseEcosystem lowercases and validates an ecosystem name.
func ParseEcosystem(value string) (Ecosystem, bool) {
	switch Ecosystem(strings.ToLower(strings.TrimSpace(value))) {
	case EcosystemNpm:
		return EcosystemNpm, true
	case EcosystemPyPI:
		return EcosystemPyPI, true
	default:
		return "", false
	}
}

// OSVName is the ecosystem label used by the vulnerability table.
func (e Ecosystem) OSVName() string {
	return strings.ToUpper(string(e))
}

type WeightingType string

const (
	WeightingDisable     WeightingType = "disable"
	WeightingLinear      WeightingType = "linear"
	WeightingExponential WeightingType = "exponential"
	WeightingInverse     WeightingType = "inverse"
)

type RowStatus string

const (
	RowStatusOK    RowStatus = "ok"
	RowStatusError RowStatus = "error"
)

type NpmResolverMode string

const (
	NpmResolverRegistry NpmResolverMode = "registry"
	NpmResolverCLI      NpmResolverMode = "cli"
)
