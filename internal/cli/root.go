package cli

import (
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dependency-metrics/internal/shared"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "DEPENDENCY_METRICS"

type RootConfig struct {
	ConfigFile       string
	LogLevel         string
	NpmRegistry      string
	PyPIRegistry     string
	NpmResolver      string
	NpmBinary        string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
	OSVDir           string
	OSVTable         string
}

func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:          "dependency-metrics",
		Short:        "Time-to-update and time-to-remediate metrics for npm and PyPI packages",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	flags.StringVar(&cfg.NpmRegistry, "npm-registry", "", "npm registry base URL")
	flags.StringVar(&cfg.PyPIRegistry, "pypi-registry", "", "PyPI base URL")
	flags.StringVar(&cfg.NpmResolver, "npm-resolver", string(defaultNpmResolver), "npm constraint resolver (registry|cli)")
	flags.StringVar(&cfg.NpmBinary, "npm-binary", "npm", "npm executable for the cli resolver")
	flags.IntVar(&cfg.HTTPTimeoutSec, "http-timeout", 30, "HTTP timeout in seconds")
	flags.IntVar(&cfg.HTTPRetries, "http-retries", 3, "HTTP retry count")
	flags.IntVar(&cfg.HTTPRetryDelayMs, "http-retry-delay-ms", 200, "Base HTTP retry delay in milliseconds")
	flags.StringVar(&cfg.OSVDir, "osv-dir", "", "Directory of OSV advisory JSON files")
	flags.StringVar(&cfg.OSVTable, "osv-table", "", "Cached vulnerability table (YAML)")

	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("npm_registry", flags.Lookup("npm-registry"))
	_ = viper.BindPFlag("pypi_registry", flags.Lookup("pypi-registry"))
	_ = viper.BindPFlag("npm_resolver", flags.Lookup("npm-resolver"))
	_ = viper.BindPFlag("npm_binary", flags.Lookup("npm-binary"))
	_ = viper.BindPFlag("http_timeout", flags.Lookup("http-timeout"))
	_ = viper.BindPFlag("http_retries", flags.Lookup("http-retries"))
	_ = viper.BindPFlag("http_retry_delay_ms", flags.Lookup("http-retry-delay-ms"))
	_ = viper.BindPFlag("osv_dir", flags.Lookup("osv-dir"))
	_ = viper.BindPFlag("osv_table", flags.Lookup("osv-table"))

	cmd.AddCommand(newAnalyzeCommand())
	cmd.AddCommand(newBatchCommand())
	cmd.AddCommand(newVulnsCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("dependency-metrics")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/dependency-metrics")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	log.Debug().Str("config", viper.ConfigFileUsed()).Msg("loaded config file")
	return nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func exitCodeForError(err error) int {
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodePermissionDenied:
		return 3
	case errbuilder.CodeNotFound, errbuilder.CodeFailedPrecondition:
		return 4
	case errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func errorMessage(err error) string {
	return shared.ErrorMessage(err)
}
