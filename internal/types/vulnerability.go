package types

type VulnerabilityRecord struct {
	ID         string `yaml:"id" json:"vul_id"`
	Ecosystem  string `yaml:"ecosystem" json:"ecosystem"`
	Package    string `yaml:"package" json:"package"`
	Introduced string `yaml:"introduced" json:"vul_introduced"`
	Fixed      string `yaml:"fixed" json:"vul_fixed"`
}

type VulnerabilityTableFile struct {
	Records []VulnerabilityRecord `yaml:"records"`
}
