package adapters

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/package-url/packageurl-go"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

// ReportFileAdapter writes analysis artifacts below Dir. Every writer
// returns the path it wrote.
type ReportFileAdapter struct {
	Dir string
}

func NewReportFileAdapter(dir string) ReportFileAdapter {
	return ReportFileAdapter{Dir: dir}
}

var dependencyHeader = []string{
	"ecosystem",
	"package",
	"package_version",
	"dependency",
	"purl",
	"dependency_constraint",
	"dependency_version",
	"dependency_highest_version",
	"interval_start",
	"interval_end",
	"updated",
	"remediated",
	"interval_duration",
	"age_of_interval",
	"weight",
}

var vulnerabilityHeader = []string{"vul_id", "ecosystem", "package", "vul_introduced", "vul_fixed"}

var summaryHeader = []string{
	"ecosystem",
	"package_name",
	"start_date",
	"end_date",
	"mttu",
	"mttr",
	"num_dependencies",
	"status",
	"error",
}

func (a ReportFileAdapter) WriteResults(result types.AnalysisResult) (string, error) {
	path, err := a.ensurePath(reportFileName(result.Package) + "_results.json")
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode results").
			WithCause(err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", writeFailed(path, err)
	}
	return path, nil
}

// WriteDependencyRecords writes one row per interval record, ordered by
// package, dependency and interval start.
func (a ReportFileAdapter) WriteDependencyRecords(name string, timelines []types.DependencyTimeline) (string, error) {
	path, err := a.ensurePath(reportFileName(name) + "_dependencies.csv")
	if err != nil {
		return "", err
	}
	var records []types.DependencyIntervalRecord
	for _, timeline := range timelines {
		records = append(records, timeline.Records...)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Package != records[j].Package {
			return records[i].Package < records[j].Package
		}
		if records[i].Dependency != records[j].Dependency {
			return records[i].Dependency < records[j].Dependency
		}
		return records[i].Interval.Start.Before(records[j].Interval.Start)
	})
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, dependencyHeader)
	for _, record := range records {
		rows = append(rows, []string{
			string(record.Ecosystem),
			record.Package,
			record.PackageVersion,
			record.Dependency,
			dependencyPURL(record.Ecosystem, record.Dependency, record.ResolvedVersion),
			record.Constraint,
			record.ResolvedVersion,
			record.HighestVersion,
			record.Interval.Start.UTC().Format("2006-01-02T15:04:05Z07:00"),
			record.Interval.End.UTC().Format("2006-01-02T15:04:05Z07:00"),
			strconv.FormatBool(record.Updated),
			strconv.FormatBool(record.Remediated),
			formatFloat(record.DurationDays),
			formatFloat(record.AgeDays),
			formatFloat(record.Weight),
		})
	}
	return path, writeCSV(path, rows)
}

func (a ReportFileAdapter) WriteVulnerabilities(name string, records []types.VulnerabilityRecord) (string, error) {
	path, err := a.ensurePath(reportFileName(name) + "_osv.csv")
	if err != nil {
		return "", err
	}
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, vulnerabilityHeader)
	for _, record := range records {
		rows = append(rows, []string{record.ID, record.Ecosystem, record.Package, record.Introduced, record.Fixed})
	}
	return path, writeCSV(path, rows)
}

// WriteBatchSummary keeps input order (row number).
func (a ReportFileAdapter) WriteBatchSummary(name string, summaries []types.BatchSummary) (string, error) {
	path, err := a.ensurePath(reportFileName(name) + "_summary.csv")
	if err != nil {
		return "", err
	}
	ordered := append([]types.BatchSummary(nil), summaries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RowNum < ordered[j].RowNum
	})
	rows := make([][]string, 0, len(ordered)+1)
	rows = append(rows, summaryHeader)
	for _, summary := range ordered {
		rows = append(rows, []string{
			summary.Ecosystem,
			summary.Package,
			summary.StartDate,
			summary.EndDate,
			formatFloat(summary.MTTU),
			formatFloat(summary.MTTR),
			strconv.Itoa(summary.NumDependencies),
			string(summary.Status),
			summary.Error,
		})
	}
	return path, writeCSV(path, rows)
}

func (a ReportFileAdapter) ensurePath(filename string) (string, error) {
	if a.Dir == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output directory is empty")
	}
	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create output directory").
			WithCause(err)
	}
	return filepath.Join(a.Dir, filename), nil
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return writeFailed(path, err)
	}
	return writeRows(path, file, rows)
}

// writeRows closes out on every path and reports the close error too.
func writeRows(path string, out io.WriteCloser, rows [][]string) error {
	writer := csv.NewWriter(out)
	if err := writer.WriteAll(rows); err != nil {
		_ = out.Close()
		return writeFailed(path, err)
	}
	if err := out.Close(); err != nil {
		return writeFailed(path, err)
	}
	return nil
}

func writeFailed(path string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("failed to write %s", filepath.Base(path))).
		WithCause(err)
}

// reportFileName keeps scoped npm names in one path segment.
func reportFileName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "@", "")
	cleaned := replacer.Replace(strings.TrimSpace(name))
	if cleaned == "" {
		return "report"
	}
	return cleaned
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// dependencyPURL renders pkg:npm/... or pkg:pypi/... for the resolved
// version. Unresolved rows get a version-less purl.
func dependencyPURL(ecosystem types.Ecosystem, name string, version string) string {
	purlType := packageurl.TypeNPM
	namespace := ""
	if ecosystem == types.EcosystemPyPI {
		purlType = packageurl.TypePyPi
		name = strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	} else if strings.HasPrefix(name, "@") {
		if idx := strings.Index(name, "/"); idx > 0 {
			namespace = name[:idx]
			name = name[idx+1:]
		}
	}
	return packageurl.NewPackageURL(purlType, namespace, name, version, nil, "").ToString()
}

var _ ports.ReportPort = ReportFileAdapter{}
