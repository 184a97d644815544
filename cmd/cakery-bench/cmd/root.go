package cmd

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cakery-bench/internal/logger"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "CAKERY"

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "Scenario file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

var rootCmd = &cobra.Command{
	Use:   "cakery-bench",
	Short: "Load driver for cache servers",
	Long: `
Load driver for cache servers.

Each worker owns one connection to the backend. The first worker to start
loads the dataset (warm-up), after which every worker reads random entries
until the run ends. Supported backends are binary (RESP), text (memcached),
http (REST or OData), script (an external search executable) and memory.

Every flag can also be set through the environment, e.g. CAKERY_WORKERS=16
or CAKERY_BINARY_ADDR=cache:6379. Precedence is flags and environment, then
the --config file, then the preset, then built-in defaults.
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	level, err := logger.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		log.Warn(err)
	}
	logger.Default.SetLevel(level)
}
