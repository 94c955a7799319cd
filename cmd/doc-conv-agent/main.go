// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the doc-conv-agent CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the doc-conv-agent CLI.
var rootCmd = &cobra.Command{
	Use:   "doc-conv-agent",
	Short: "Convert documents dropped into a directory through a remote sandbox",
	Long: `doc-conv-agent watches a target directory for files whose producer has
written a matching .eof marker, submits each file to a remote analysis sandbox
for conversion, and writes the converted payload or an error code to the
result directory. Originals of failed tasks are kept in the error directory.

Use run to start the agent; status, release, and recover inspect and repair
the marker files while it is stopped or running.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log")
		setLogLevel(level)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./doc-conv-agent.yaml or ~/.config/doc-conv-agent/config.yaml)")
	rootCmd.PersistentFlags().StringP("log", "l", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of credential files")
	rootCmd.PersistentFlags().String("target-dir", "", "directory producers drop files into")
	rootCmd.PersistentFlags().String("result-dir", "", "directory for converted files and outcome markers")
	rootCmd.PersistentFlags().String("error-dir", "", "directory for originals of failed tasks")

	viper.BindPFlag("secrets_dir", rootCmd.PersistentFlags().Lookup("secrets-dir"))
	viper.BindPFlag("paths.target_dir", rootCmd.PersistentFlags().Lookup("target-dir"))
	viper.BindPFlag("paths.result_dir", rootCmd.PersistentFlags().Lookup("result-dir"))
	viper.BindPFlag("paths.error_dir", rootCmd.PersistentFlags().Lookup("error-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("doc-conv-agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "doc-conv-agent"))
		}
	}

	viper.SetEnvPrefix("DOC_CONV_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	}
}

func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func setLogLevel(level string) {
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

func main() {
	setupLogger()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
