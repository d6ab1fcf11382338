package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dependency-metrics/internal/app"
	"dependency-metrics/internal/types"
)

const defaultNpmResolver = types.NpmResolverRegistry

func newAppService() (app.Service, error) {
	return app.NewService(serviceConfig())
}

// serviceConfig reads the adapter settings shared by every command.
func serviceConfig() app.Config {
	return app.Config{
		NpmRegistry:      viper.GetString("npm_registry"),
		PyPIRegistry:     viper.GetString("pypi_registry"),
		NpmResolver:      types.NpmResolverMode(strings.ToLower(strings.TrimSpace(viper.GetString("npm_resolver")))),
		NpmBinary:        viper.GetString("npm_binary"),
		HTTPTimeoutSec:   viper.GetInt("http_timeout"),
		HTTPRetries:      viper.GetInt("http_retries"),
		HTTPRetryDelayMs: viper.GetInt("http_retry_delay_ms"),
		OSVDir:           viper.GetString("osv_dir"),
		OSVTable:         viper.GetString("osv_table"),
		UserAgent:        "dependency-metrics/" + version,
	}
}

// weightingFlags is shared by analyze and batch.
type weightingFlags struct {
	Type     string
	HalfLife float64
}

func bindWeightingFlags(cmd *cobra.Command, opts *weightingFlags) {
	cmd.Flags().StringVar(&opts.Type, "weighting-type", string(types.WeightingDisable), "Interval weighting (disable|linear|exponential|inverse)")
	cmd.Flags().Float64Var(&opts.HalfLife, "half-life", 0, "Half-life in days for exponential weighting")
	_ = viper.BindPFlag("weighting_type", cmd.Flags().Lookup("weighting-type"))
	_ = viper.BindPFlag("half_life", cmd.Flags().Lookup("half-life"))
}

// resolveWeighting leaves HalfLife nil unless it was set, so exponential
// weighting without one is rejected downstream.
func resolveWeighting(cmd *cobra.Command, opts weightingFlags) types.WeightingConfig {
	cfg := types.WeightingConfig{
		Type: types.WeightingType(resolveString(cmd, opts.Type, "weighting_type", "weighting-type")),
	}
	if flagChanged(cmd, "half-life") || viper.IsSet("half_life") {
		halfLife := resolveFloat(cmd, opts.HalfLife, "half_life", "half-life")
		cfg.HalfLife = &halfLife
	}
	return cfg
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func resolveFloat(cmd *cobra.Command, value float64, key string, flagName string) float64 {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetFloat64(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
