package cli

import (
	"bytes"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dependency-metrics/internal/app"
	"dependency-metrics/internal/types"
	"dependency-metrics/tests/testutil"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"analyze", "batch", "vulns"} {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestRootPersistentFlags(t *testing.T) {
	root := newRootCommand()
	flags := []string{
		"config", "log-level", "npm-registry", "pypi-registry",
		"npm-resolver", "npm-binary", "http-timeout", "http-retries",
		"http-retry-delay-ms", "osv-dir", "osv-table",
	}
	for _, name := range flags {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag: %s", name)
	}
}

func TestAnalyzeCommandFlags(t *testing.T) {
	cmd := newAnalyzeCommand()
	flags := []string{
		"ecosystem", "package", "start-date", "end-date", "output-dir",
		"dependencies-csv", "osv-csv", "weighting-type", "half-life",
	}
	for _, name := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestBatchCommandFlags(t *testing.T) {
	cmd := newBatchCommand()
	for _, name := range []string{"input", "output-dir", "start-date", "workers", "weighting-type", "half-life"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	assert.Equal(t, "explicit", resolveString(nil, "explicit", "test_key", "test-flag"))
	assert.Equal(t, "", resolveString(nil, "", "test_key", "test-flag"))
}

func TestResolveScalars(t *testing.T) {
	assert.True(t, resolveBool(nil, true, "test_key", "test-flag"))
	assert.False(t, resolveBool(nil, false, "test_key", "test-flag"))
	assert.Equal(t, 42, resolveInt(nil, 42, "test_key", "test-flag"))
	assert.Equal(t, 1.5, resolveFloat(nil, 1.5, "test_key", "test-flag"))
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")

	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

func TestResolveWeightingHalfLife(t *testing.T) {
	cmd := newAnalyzeCommand()
	opts := weightingFlags{Type: "exponential", HalfLife: 30}
	require.NoError(t, cmd.Flags().Set("weighting-type", "exponential"))
	require.NoError(t, cmd.Flags().Set("half-life", "30"))

	cfg := resolveWeighting(cmd, opts)
	assert.Equal(t, types.WeightingExponential, cfg.Type)
	require.NotNil(t, cfg.HalfLife)
	assert.Equal(t, 30.0, *cfg.HalfLife)
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("unsupported ecosystem: cargo"),
			expected: 2,
		},
		{
			name: "permission denied",
			err: errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg("nope"),
			expected: 3,
		},
		{
			name: "not found",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("no versions found before 2020-01-01"),
			expected: 4,
		},
		{
			name: "failed precondition",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("batch input reader is not configured"),
			expected: 4,
		},
		{
			name: "internal error",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("cannot order versions of lib"),
			expected: 5,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCodeForError(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := errbuilder.New().WithCode(errbuilder.CodeInternal).WithMsg("something broke")
	assert.Equal(t, "something broke", errorMessage(err))
	assert.Equal(t, assert.AnError.Error(), errorMessage(assert.AnError))
}

// ---------- Output tests ----------

func TestPrintAnalyzeResult(t *testing.T) {
	var buf bytes.Buffer
	printAnalyzeResult(&buf, app.AnalyzeResult{
		Result: types.AnalysisResult{
			Ecosystem:       types.EcosystemNpm,
			Package:         "app",
			Version:         "1.1.0",
			Window:          types.AnalysisWindow{Start: testutil.Day(0), End: testutil.Day(10)},
			TTU:             1.5,
			NumDependencies: 2,
			Failed:          map[string]string{"ghost": "package not found"},
		},
		ResultsPath: "out/app_results.json",
	})
	out := buf.String()
	assert.Contains(t, out, "package: npm app@1.1.0")
	assert.Contains(t, out, "window: 2024-01-01 to 2024-01-11")
	assert.Contains(t, out, "mttu: 1.50 days")
	assert.Contains(t, out, "ghost: package not found")
	assert.Contains(t, out, "wrote: out/app_results.json")
}

func TestAnalyzeCommandRuns(t *testing.T) {
	registry := testutil.NewNpmRegistry(t, map[string][]testutil.NpmRelease{
		"app": {{Version: "1.0.0", At: testutil.Day(0), Deps: map[string]string{"lib": "^1.0.0"}}},
		"lib": {
			{Version: "1.0.0", At: testutil.Day(-1)},
			{Version: "1.1.0", At: testutil.Day(3)},
		},
	})
	root := newRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{
		"analyze",
		"--ecosystem", "npm",
		"--package", "app",
		"--start-date", "2024-01-01",
		"--end-date", "2024-01-11",
		"--npm-registry", registry.URL,
		"--http-retries", "1",
		"--log-level", "error",
	})
	require.NoError(t, root.Execute())

	out := buf.String()
	assert.Contains(t, out, "package: npm app@1.0.0")
	assert.Contains(t, out, "dependencies: 1")
	assert.Contains(t, out, "mttu: 0.00 days")
}
