// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/penny-vault/pv-factors/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     common.ProgramName,
	Version: common.CurrentVersion.String(),
	Short:   "pvfactors builds Fama-French style factor datasets",
	Long: `pvfactors downloads daily prices, valuations and financial reports for an
equity universe, aggregates them into a monthly panel, derives style factors
for every security-month and forms annually rebalanced long/short portfolios
(SMB, HML, RMW, CMA, UMD) whose monthly returns can be used for asset pricing
regressions.

The stages can be run one at a time (fetch, process, factors, rebalance) or
all together with run.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		log.Panic().Err(err).Str("Flag", flag).Msg("BindPFlag failed")
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches /etc/pvfactors, $HOME/.config/pvfactors and . for pvfactors.toml)")

	// Tushare
	if err := viper.BindEnv("tushare.token", "TUSHARE_TOKEN"); err != nil {
		log.Panic().Err(err).Msg("BindEnv failed")
	}

	// Logging configuration
	if err := viper.BindEnv("log.level", "PVFACTORS_LOG_LEVEL"); err != nil {
		log.Panic().Err(err).Msg("BindEnv failed")
	}
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	bindFlag("log.level", "log-level")

	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	bindFlag("log.output", "log-output")

	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	bindFlag("log.report_caller", "log-report-caller")

	rootCmd.PersistentFlags().Bool("log-pretty", true, "Format logs for humans")
	bindFlag("log.pretty", "log-pretty")

	// Storage
	rootCmd.PersistentFlags().String("data-dir", "data", "Directory of raw provider CSV files")
	bindFlag("data.dir", "data-dir")

	rootCmd.PersistentFlags().String("output-dir", "data_processed", "Directory for the panel, factor table and factor returns")
	bindFlag("output.dir", "output-dir")

	rootCmd.PersistentFlags().String("month-dir", "data_month", "Directory for the per-security monthly tables")
	bindFlag("output.month_dir", "month-dir")

	rootCmd.PersistentFlags().Int("workers", 1, "Number of securities aggregated concurrently")
	bindFlag("pipeline.workers", "workers")

	// Tracing
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OpenTelemetry collector to send traces to; tracing is disabled when blank")
	bindFlag("otlp.endpoint", "otlp-endpoint")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	common.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(common.ProgramName)
		viper.SetConfigType("toml")
		viper.AddConfigPath("/etc/pvfactors/")
		viper.AddConfigPath("$HOME/.config/pvfactors")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("PVFACTORS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	common.SetupLogging()

	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal().Err(err).Str("ConfigFN", cfgFile).Msg("could not read config file")
		}
		log.Debug().Msg("no config file found; using defaults")
		return
	}

	log.Info().Str("ConfigFN", viper.ConfigFileUsed()).Msg("using config file")
}
