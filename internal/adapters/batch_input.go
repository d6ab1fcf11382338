package adapters

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"dependency-metrics/internal/ports"
	"dependency-metrics/internal/types"
)

var requiredBatchColumns = []string{"ecosystem", "package_name", "end_date"}

// BatchInputAdapter reads the batch CSV. Headers are matched
// case-insensitively; the delimiter is sniffed from the header line.
type BatchInputAdapter struct{}

func NewBatchInputAdapter() BatchInputAdapter {
	return BatchInputAdapter{}
}

func (a BatchInputAdapter) ReadRows(path string) ([]types.BatchRow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("input CSV not found: %s", path)).
			WithCause(err)
	}
	return parseBatchCSV(raw)
}

func parseBatchCSV(raw []byte) ([]types.BatchRow, error) {
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`{\rtf`)) {
		return nil, invalidBatchInput("input file appears to be RTF, export it as CSV")
	}
	text := decodeBatchText(raw)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, invalidBatchInput("input CSV contains no data rows")
	}
	if err != nil {
		return nil, invalidBatchInput(fmt.Sprintf("failed to parse CSV: %v", err))
	}

	columns := map[string]int{}
	var found []string
	for idx, name := range header {
		cleaned := strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		found = append(found, cleaned)
		if _, ok := columns[strings.ToLower(cleaned)]; !ok {
			columns[strings.ToLower(cleaned)] = idx
		}
	}
	var missing []string
	for _, column := range requiredBatchColumns {
		if _, ok := columns[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		available := strings.Join(found, ", ")
		if available == "" {
			available = "none"
		}
		return nil, invalidBatchInput(fmt.Sprintf("input CSV missing required columns: %s. Found columns: %s", strings.Join(missing, ", "), available))
	}

	field := func(record []string, column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []types.BatchRow
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalidBatchInput(fmt.Sprintf("failed to parse CSV: %v", err))
		}
		if blankRecord(record) {
			continue
		}
		rowNum++
		rows = append(rows, types.BatchRow{
			RowNum:    rowNum,
			Ecosystem: field(record, "ecosystem"),
			Package:   field(record, "package_name"),
			StartDate: field(record, "start_date"),
			EndDate:   field(record, "end_date"),
		})
	}
	if len(rows) == 0 {
		return nil, invalidBatchInput("input CSV contains no data rows")
	}
	return rows, nil
}

// decodeBatchText strips a UTF-8 BOM and reads non-UTF-8 input as Latin-1.
func decodeBatchText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

func sniffDelimiter(text string) rune {
	line := text
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		line = text[:idx]
	}
	best := ','
	bestCount := strings.Count(line, ",")
	for _, candidate := range []rune{';', '\t', '|'} {
		if count := strings.Count(line, string(candidate)); count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}

func blankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func invalidBatchInput(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg)
}

var _ ports.BatchInputPort = BatchInputAdapter{}
