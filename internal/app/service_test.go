package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dependency-metrics/internal/types"
	"dependency-metrics/tests/testutil"
)

func scenarioPackages() map[string][]testutil.NpmRelease {
	return map[string][]testutil.NpmRelease{
		"app": {
			{Version: "1.0.0", At: testutil.Day(0), Deps: map[string]string{"lib": ">=1.0.0"}},
			{Version: "1.1.0", At: testutil.Day(5), Deps: map[string]string{"lib": ">=1.0.0"}},
		},
		"lib": {
			{Version: "1.0.0", At: testutil.Day(-1)},
			{Version: "1.1.0", At: testutil.Day(3)},
		},
	}
}

func newTestService(t *testing.T) Service {
	t.Helper()
	npm := testutil.NewNpmRegistry(t, scenarioPackages())
	pypi := testutil.NewPyPIRegistry(t, map[string][]testutil.PyPIRelease{})
	svc, err := NewService(Config{
		NpmRegistry:      npm.URL,
		PyPIRegistry:     pypi.URL,
		HTTPTimeoutSec:   5,
		HTTPRetries:      1,
		HTTPRetryDelayMs: 1,
	})
	require.NoError(t, err)
	svc.Clock = func() time.Time { return testutil.Day(30).Add(15 * time.Hour) }
	return svc
}

func TestServiceAnalyze(t *testing.T) {
	svc := newTestService(t)
	out := t.TempDir()

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Ecosystem:         "NPM",
		Package:           "app",
		StartDate:         "2024-01-01",
		EndDate:           "2024-01-11",
		Weighting:         types.WeightingConfig{Type: types.WeightingDisable},
		OutputDir:         out,
		WriteDependencies: true,
		WriteOSV:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", res.Result.Version)
	assert.Equal(t, 1, res.Result.NumDependencies)
	assert.Equal(t, 0.0, res.Result.TTU)
	assert.Equal(t, 0.0, res.Result.TTR)
	require.Len(t, res.Result.Timelines, 1)
	assert.Len(t, res.Result.Timelines[0].Records, 3)

	assert.FileExists(t, res.ResultsPath)
	assert.FileExists(t, res.DependenciesPath)
	assert.Empty(t, res.OSVPath, "no vulnerability rows, no osv file")
	assert.Equal(t, filepath.Join(out, "app_results.json"), res.ResultsPath)
}

func TestServiceAnalyzeDefaultsEndToToday(t *testing.T) {
	svc := newTestService(t)
	res, err := svc.Analyze(context.Background(), AnalyzeRequest{Ecosystem: "npm", Package: "app"})
	require.NoError(t, err)
	want := types.AnalysisWindow{
		Start: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   testutil.Day(30),
	}
	if diff := cmp.Diff(want, res.Result.Window); diff != "" {
		t.Fatalf("unexpected window (-want +got):\n%s", diff)
	}
}

func TestServiceAnalyzeRejectsInput(t *testing.T) {
	svc := newTestService(t)
	cases := []AnalyzeRequest{
		{Ecosystem: "cargo", Package: "serde"},
		{Ecosystem: "npm", Package: " "},
		{Ecosystem: "npm", Package: "app", EndDate: "01/02/2024"},
		{Ecosystem: "npm", Package: "app", Weighting: types.WeightingConfig{Type: types.WeightingExponential}},
	}
	for _, req := range cases {
		_, err := svc.Analyze(context.Background(), req)
		require.Error(t, err, "%+v", req)
		assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err), "%+v", req)
	}
}

func TestServiceBatch(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "packages.csv")
	content := "ecosystem,package_name,end_date,start_date\n" +
		"npm,app,2024-01-11,2024-01-01\n" +
		"NPM,App,2024-01-11,2024-01-01\n" +
		"npm,app,2024-01-04,2024-01-01\n" +
		"pypi,missing,2024-01-11,\n" +
		"cargo,serde,2024-01-11,\n" +
		"npm,app,not-a-date,\n"
	require.NoError(t, os.WriteFile(input, []byte(content), 0644))

	res, err := svc.Batch(context.Background(), BatchRequest{
		InputPath: input,
		OutputDir: filepath.Join(dir, "out"),
		Workers:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 3, res.Failed)

	want := []types.BatchSummary{
		{RowNum: 2, Ecosystem: "npm", Package: "app", StartDate: "2024-01-01", EndDate: "2024-01-11", NumDependencies: 1, Status: types.RowStatusOK},
		{RowNum: 4, Ecosystem: "npm", Package: "app", StartDate: "2024-01-01", EndDate: "2024-01-04", NumDependencies: 1, Status: types.RowStatusOK},
		{RowNum: 5, Ecosystem: "pypi", Package: "missing", StartDate: "1900-01-01", EndDate: "2024-01-11", MTTU: -1, MTTR: -1, Status: types.RowStatusError},
		{RowNum: 6, Ecosystem: "cargo", Package: "serde", StartDate: "1900-01-01", EndDate: "2024-01-11", MTTU: -1, MTTR: -1, Status: types.RowStatusError},
		{RowNum: 7, Ecosystem: "npm", Package: "app", StartDate: "1900-01-01", EndDate: "2024-01-31", MTTU: -1, MTTR: -1, Status: types.RowStatusError},
	}
	if diff := cmp.Diff(want, res.Summaries, cmpopts.IgnoreFields(types.BatchSummary{}, "Error")); diff != "" {
		t.Fatalf("unexpected summaries (-want +got):\n%s", diff)
	}
	for _, summary := range res.Summaries {
		if summary.Status == types.RowStatusError {
			assert.NotEmpty(t, summary.Error, "row %d", summary.RowNum)
		}
	}
	assert.Contains(t, res.Summaries[3].Error, "unsupported ecosystem")

	assert.Equal(t, filepath.Join(dir, "out", "packages_summary.csv"), res.SummaryPath)
	assert.FileExists(t, res.SummaryPath)
	assert.FileExists(t, res.DependenciesPath)
}

func TestServiceBatchRejectsBadWeighting(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Batch(context.Background(), BatchRequest{
		InputPath: "unused.csv",
		Weighting: types.WeightingConfig{Type: "cubic"},
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestDedupeAndGroupBatchRows(t *testing.T) {
	rows := []types.BatchRow{
		{RowNum: 2, Ecosystem: "npm", Package: "A", EndDate: "2024-01-01"},
		{RowNum: 3, Ecosystem: "NPM", Package: "a", EndDate: "2024-01-01"},
		{RowNum: 4, Ecosystem: "npm", Package: "a", EndDate: "2024-02-01"},
		{RowNum: 5, Ecosystem: "pypi", Package: "a", EndDate: "2024-01-01"},
	}
	deduped, duplicates := dedupeBatchRows(rows)
	assert.Equal(t, 1, duplicates)
	require.Len(t, deduped, 3)

	groups := groupBatchRows(deduped)
	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].pkg)
	assert.Len(t, groups[0].rows, 2)
	assert.Equal(t, "pypi", groups[1].ecosystem)
}
