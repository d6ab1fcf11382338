package app

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"dependency-metrics/internal/adapters"
	"dependency-metrics/internal/core"
	"dependency-metrics/internal/policies"
	"dependency-metrics/internal/shared"
	"dependency-metrics/internal/types"
)

const maxDefaultBatchWorkers = 8

type batchGroup struct {
	ecosystem string
	pkg       string
	rows      []types.BatchRow
}

type rowOutcome struct {
	summary   types.BatchSummary
	timelines []types.DependencyTimeline
}

// Batch analyzes every row of the input CSV. Rows of the same package run
// sequentially through one bulk analysis; packages run in parallel. A
// failing row is reported in the summary and never stops the batch.
func (s Service) Batch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	if s.BatchInput == nil {
		return BatchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("batch input reader is not configured")
	}
	defaultStart := strings.TrimSpace(req.StartDate)
	if defaultStart == "" {
		defaultStart = DefaultStartDate
	}
	if _, err := adapters.ParseDate(defaultStart, "start_date"); err != nil {
		return BatchResult{}, err
	}
	probe := types.AnalysisWindow{Start: time.Unix(0, 0).UTC(), End: s.today()}
	if _, err := policies.NewWeightingPolicy(req.Weighting, probe); err != nil {
		return BatchResult{}, err
	}

	rows, err := s.BatchInput.ReadRows(req.InputPath)
	if err != nil {
		return BatchResult{}, err
	}
	rows, duplicates := dedupeBatchRows(rows)
	if duplicates > 0 {
		log.Info().Int("duplicates", duplicates).Msg("removed duplicate input rows")
	}
	groups := groupBatchRows(rows)

	workerCount := req.Workers
	if workerCount <= 0 {
		workerCount = min(maxDefaultBatchWorkers, runtime.NumCPU())
	}
	if len(groups) < workerCount {
		workerCount = len(groups)
	}
	log.Info().Int("rows", len(rows)).Int("packages", len(groups)).Int("workers", workerCount).Msg("starting batch")

	tasks := make(chan batchGroup)
	results := make(chan []rowOutcome, len(groups))
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range tasks {
				results <- s.processGroup(ctx, group, defaultStart, req.Weighting)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	for _, group := range groups {
		tasks <- group
	}
	close(tasks)

	var outcomes []rowOutcome
	processed := 0
	for groupOutcomes := range results {
		for _, outcome := range groupOutcomes {
			processed++
			log.Info().
				Int("row", outcome.summary.RowNum).
				Str("package", outcome.summary.Package).
				Str("status", string(outcome.summary.Status)).
				Msgf("processed row %d/%d", processed, len(rows))
		}
		outcomes = append(outcomes, groupOutcomes...)
	}
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].summary.RowNum < outcomes[j].summary.RowNum
	})

	result := BatchResult{Duplicates: duplicates}
	var timelines []types.DependencyTimeline
	for _, outcome := range outcomes {
		result.Summaries = append(result.Summaries, outcome.summary)
		if outcome.summary.Status == types.RowStatusError {
			result.Failed++
		}
		timelines = append(timelines, outcome.timelines...)
	}
	if s.Cache != nil {
		log.Debug().Interface("cache", s.Cache.Stats()).Msg("resolver cache usage")
	}

	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" || s.Reports == nil {
		return result, nil
	}
	reports := s.Reports(outputDir)
	name := strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
	if result.SummaryPath, err = reports.WriteBatchSummary(name, result.Summaries); err != nil {
		return BatchResult{}, err
	}
	if len(timelines) > 0 {
		if result.DependenciesPath, err = reports.WriteDependencyRecords(name, timelines); err != nil {
			return BatchResult{}, err
		}
	}
	return result, nil
}

// processGroup validates each row, then runs the valid ones as windows of a
// single bulk analysis.
func (s Service) processGroup(ctx context.Context, group batchGroup, defaultStart string, weighting types.WeightingConfig) []rowOutcome {
	rows := append([]types.BatchRow(nil), group.rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		endI := parseDateOrZero(rows[i].EndDate)
		endJ := parseDateOrZero(rows[j].EndDate)
		if !endI.Equal(endJ) {
			return endI.Before(endJ)
		}
		return rows[i].StartDate < rows[j].StartDate
	})

	outcomes := make([]rowOutcome, len(rows))
	var windows []types.AnalysisWindow
	var windowRows []int
	ecosystem := types.Ecosystem(group.ecosystem)
	for idx, row := range rows {
		start := row.StartDate
		if strings.TrimSpace(start) == "" {
			start = defaultStart
		}
		outcomes[idx].summary = s.baseSummary(row, group.ecosystem, start)
		window, err := s.rowWindow(row, start)
		if err != nil {
			markFailed(&outcomes[idx], err)
			continue
		}
		windows = append(windows, window)
		windowRows = append(windowRows, idx)
	}
	if len(windows) == 0 {
		return outcomes
	}

	bulk := core.NewBulkAnalyzer(s.analyzer())
	windowResults, err := bulk.AnalyzeBulk(ctx, types.BulkRequest{
		Ecosystem: ecosystem,
		Package:   group.pkg,
		Windows:   windows,
		Weighting: weighting,
	})
	if err != nil {
		log.Error().Err(err).Str("ecosystem", group.ecosystem).Str("package", group.pkg).Msg("package analysis failed")
		for _, idx := range windowRows {
			markFailed(&outcomes[idx], err)
		}
		return outcomes
	}
	for i, windowResult := range windowResults {
		outcome := &outcomes[windowRows[i]]
		if windowResult.Status == types.RowStatusError {
			markFailed(outcome, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(windowResult.Error))
			continue
		}
		outcome.summary.MTTU = windowResult.Result.TTU
		outcome.summary.MTTR = windowResult.Result.TTR
		outcome.summary.NumDependencies = windowResult.Result.NumDependencies
		outcome.summary.Status = types.RowStatusOK
		outcome.timelines = windowResult.Result.Timelines
	}
	return outcomes
}

// baseSummary fills the descriptive columns. Dates that fail to parse fall
// back to the default start and today.
func (s Service) baseSummary(row types.BatchRow, ecosystem string, start string) types.BatchSummary {
	startDate := DefaultStartDate
	if parsed, err := adapters.ParseDate(start, "start_date"); err == nil {
		startDate = adapters.FormatDate(parsed)
	}
	endDate := adapters.FormatDate(s.today())
	if parsed, err := adapters.ParseDate(row.EndDate, "end_date"); err == nil {
		endDate = adapters.FormatDate(parsed)
	}
	return types.BatchSummary{
		RowNum:    row.RowNum,
		Ecosystem: ecosystem,
		Package:   strings.TrimSpace(row.Package),
		StartDate: startDate,
		EndDate:   endDate,
		Status:    types.RowStatusOK,
	}
}

func (s Service) rowWindow(row types.BatchRow, start string) (types.AnalysisWindow, error) {
	if strings.TrimSpace(row.Ecosystem) == "" || strings.TrimSpace(row.Package) == "" || strings.TrimSpace(row.EndDate) == "" {
		return types.AnalysisWindow{}, rowError(row, "ecosystem, package_name and end_date are required")
	}
	if _, ok := types.ParseEcosystem(row.Ecosystem); !ok {
		return types.AnalysisWindow{}, rowError(row, fmt.Sprintf("unsupported ecosystem: %s", row.Ecosystem))
	}
	startAt, err := adapters.ParseDate(start, "start_date")
	if err != nil {
		return types.AnalysisWindow{}, rowError(row, shared.ErrorMessage(err))
	}
	endAt, err := adapters.ParseDate(row.EndDate, "end_date")
	if err != nil {
		return types.AnalysisWindow{}, rowError(row, shared.ErrorMessage(err))
	}
	if !startAt.Before(endAt) {
		return types.AnalysisWindow{}, rowError(row, "start_date must be before end_date")
	}
	return types.AnalysisWindow{Start: startAt, End: endAt}, nil
}

func rowError(row types.BatchRow, msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("row %d: %s", row.RowNum, msg))
}

func markFailed(outcome *rowOutcome, err error) {
	outcome.summary.Status = types.RowStatusError
	outcome.summary.Error = shared.ErrorMessage(err)
	outcome.summary.MTTU = -1
	outcome.summary.MTTR = -1
	outcome.summary.NumDependencies = 0
	outcome.timelines = nil
}

// dedupeBatchRows keeps the first row of each (ecosystem, package, end)
// triple; ecosystem and package compare case-insensitively.
func dedupeBatchRows(rows []types.BatchRow) ([]types.BatchRow, int) {
	seen := map[string]struct{}{}
	out := make([]types.BatchRow, 0, len(rows))
	duplicates := 0
	for _, row := range rows {
		key := strings.Join([]string{
			strings.ToLower(strings.TrimSpace(row.Ecosystem)),
			strings.ToLower(strings.TrimSpace(row.Package)),
			strings.TrimSpace(row.EndDate),
		}, "\x00")
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out, duplicates
}

// groupBatchRows groups by (ecosystem, package) in first-seen order. The
// package keeps the spelling of its first row.
func groupBatchRows(rows []types.BatchRow) []batchGroup {
	index := map[string]int{}
	var groups []batchGroup
	for _, row := range rows {
		ecosystem := strings.ToLower(strings.TrimSpace(row.Ecosystem))
		key := ecosystem + "\x00" + strings.ToLower(strings.TrimSpace(row.Package))
		idx, ok := index[key]
		if !ok {
			idx = len(groups)
			index[key] = idx
			groups = append(groups, batchGroup{ecosystem: ecosystem, pkg: strings.TrimSpace(row.Package)})
		}
		groups[idx].rows = append(groups[idx].rows, row)
	}
	return groups
}

func parseDateOrZero(value string) time.Time {
	parsed, err := adapters.ParseDate(value, "end_date")
	if err != nil {
		return time.Time{}
	}
	return parsed
}
