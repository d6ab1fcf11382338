package adapters

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/osv-scanner/pkg/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"dependency-metrics/internal/core"
	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

// OSVTableAdapter serves vulnerability rows from either a cached table
// (YAML) or an extracted OSV export directory. A cached table wins when
// both are configured. With neither, the table is empty.
type OSVTableAdapter struct {
	Dir       string
	TablePath string

	mu     sync.Mutex
	cached []types.VulnerabilityRecord
	loaded bool
}

func NewOSVTableAdapter(dir string, tablePath string) *OSVTableAdapter {
	return &OSVTableAdapter{Dir: dir, TablePath: tablePath}
}

func (a *OSVTableAdapter) Vulnerabilities(ecosystem types.Ecosystem) ([]types.VulnerabilityRecord, error) {
	records, err := a.load()
	if err != nil {
		return nil, err
	}
	label := ecosystem.OSVName()
	var out []types.VulnerabilityRecord
	for _, record := range records {
		if record.Ecosystem == label {
			out = append(out, record)
		}
	}
	return out, nil
}

func (a *OSVTableAdapter) load() ([]types.VulnerabilityRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return a.cached, nil
	}
	var (
		records []types.VulnerabilityRecord
		err     error
	)
	switch {
	case strings.TrimSpace(a.TablePath) != "" && fileExists(a.TablePath):
		records, err = readVulnerabilityTable(a.TablePath)
	case strings.TrimSpace(a.Dir) != "":
		records, err = parseOSVDir(a.Dir)
	default:
		log.Warn().Msg("no vulnerability data configured, every interval counts as remediated")
	}
	if err != nil {
		return nil, err
	}
	a.cached = records
	a.loaded = true
	return records, nil
}

func (a *OSVTableAdapter) WriteTable(path string, records []types.VulnerabilityRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create vulnerability table directory").
			WithCause(err)
	}
	data, err := yaml.Marshal(types.VulnerabilityTableFile{Records: records})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode vulnerability table").
			WithCause(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write vulnerability table").
			WithCause(err)
	}
	return nil
}

func readVulnerabilityTable(path string) ([]types.VulnerabilityRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("vulnerability table not found").
			WithCause(err)
	}
	var table types.VulnerabilityTableFile
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid vulnerability table format").
			WithCause(err)
	}
	return table.Records, nil
}

// parseOSVDir decodes every *.json advisory below dir. Files that fail to
// decode are logged and skipped.
func parseOSVDir(dir string) ([]types.VulnerabilityRecord, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("osv directory not found").
			WithCause(err)
	}
	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan osv directory").
			WithCause(err)
	}
	sort.Strings(files)

	var records []types.VulnerabilityRecord
	skipped := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping unreadable advisory")
			skipped++
			continue
		}
		var vuln models.Vulnerability
		if err := json.Unmarshal(data, &vuln); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping malformed advisory")
			skipped++
			continue
		}
		records = append(records, advisoryRecords(vuln)...)
	}
	log.Info().Int("files", len(files)).Int("skipped", skipped).Int("records", len(records)).Msg("parsed osv advisories")
	return records, nil
}

// advisoryRecords flattens range events into (introduced, fixed) rows. A
// fixed event pairs with the latest introduced event seen before it.
func advisoryRecords(vuln models.Vulnerability) []types.VulnerabilityRecord {
	var records []types.VulnerabilityRecord
	for _, affected := range vuln.Affected {
		name := affected.Package.Name
		if name == "" {
			continue
		}
		ecosystem := strings.ToUpper(string(affected.Package.Ecosystem))
		for _, vrange := range affected.Ranges {
			introduced := ""
			seen := false
			for _, event := range vrange.Events {
				switch {
				case event.Introduced != "":
					introduced = event.Introduced
					seen = true
				case event.Fixed != "" && seen:
					records = append(records, types.VulnerabilityRecord{
						ID:         vuln.ID,
						Ecosystem:  ecosystem,
						Package:    name,
						Introduced: core.NormalizeVersion(introduced),
						Fixed:      core.NormalizeVersion(event.Fixed),
					})
				}
			}
		}
	}
	return records
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var (
	_ ports.VulnerabilityPort            = (*OSVTableAdapter)(nil)
	_ ports.VulnerabilityTableWriterPort = (*OSVTableAdapter)(nil)
)
