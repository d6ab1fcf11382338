package types

import "time"

// PackageMetadata is the registry history of one package, normalized across
// ecosystems. Release timestamps are kept as published so that resolvers can
// decide how to treat values they cannot parse.
type PackageMetadata struct {
	Ecosystem Ecosystem
	Name      string
	Versions  map[string]VersionData
}

type VersionData struct {
	Version      string
	Published    string
	Dependencies map[string]string
	RequiresDist []string
	Yanked       bool
}

type PackageVersion struct {
	Name       string
	Version    string
	ReleasedAt time.Time
}

type DependencyConstraint struct {
	Name       string
	Constraint string
}
