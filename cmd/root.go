// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/penny-vault/esgfactor/data"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "esgfactor",
	Short: "esgfactor studies the relationship between ESG ratings and equity risk",
	Long: `esgfactor is a command line utility that builds an empirical dataset
linking company ESG ratings to stock market performance and runs the
cross-sectional regressions that test whether sustainability scores explain
returns, risk-adjusted returns, or volatility.

The pipeline has four stages, each writing CSV artifacts the next stage
reads:

	* download  - fetch the ESG/price dataset, benchmark index, company
	              profiles, and the risk-free rate series
	* process   - clean the raw data, derive daily returns, and merge
	              everything into a master panel
	* features  - collapse the panel into per-company performance, risk,
	              and control variables
	* analyze   - fit the regressions, run specification diagnostics, and
	              write the results reports

Run each stage individually or the whole chain with "esgfactor pipeline".`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.esgfactor.toml)")

	viper.SetDefault("rawDir", filepath.Join("data", "raw"))
	viper.SetDefault("processedDir", filepath.Join("data", "processed"))
	viper.SetDefault("finalDir", filepath.Join("data", "final"))
	viper.SetDefault("reportDir", "reports")

	viper.SetDefault("startDate", "2023-09-01")
	viper.SetDefault("endDate", "2024-08-31")
	viper.SetDefault("returnType", "simple")

	viper.SetDefault("fredSeries", "DGS3MO")
	viper.SetDefault("kaggleDataset", "rikinzala/s-and-p-500-esg-and-stocks-data-2023-24")
	viper.SetDefault("marketIndex", "^GSPC")
	viper.SetDefault("infoRateLimit", 60)

	if err := viper.BindEnv("fredAPIKey", "FRED_API_KEY"); err != nil {
		log.Panic().Err(err).Msg("BindEnv for fredAPIKey failed")
	}

	if err := viper.BindEnv("kaggleUsername", "KAGGLE_USERNAME"); err != nil {
		log.Panic().Err(err).Msg("BindEnv for kaggleUsername failed")
	}

	if err := viper.BindEnv("kaggleKey", "KAGGLE_KEY"); err != nil {
		log.Panic().Err(err).Msg("BindEnv for kaggleKey failed")
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".esgfactor" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".esgfactor")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("ConfigFN", viper.ConfigFileUsed()).Msg("Using config file")
	}
}

func rawPath(name string) string {
	return filepath.Join(viper.GetString("rawDir"), name)
}

func processedPath(name string) string {
	return filepath.Join(viper.GetString("processedDir"), name)
}

func finalPath(name string) string {
	return filepath.Join(viper.GetString("finalDir"), name)
}

// analysisWindow parses the configured start and end dates; a malformed
// configuration is fatal.
func analysisWindow() (data.Date, data.Date) {
	startDate, err := data.ParseDate(viper.GetString("startDate"))
	if err != nil {
		log.Fatal().Err(err).Str("startDate", viper.GetString("startDate")).Msg("invalid start date")
	}

	endDate, err := data.ParseDate(viper.GetString("endDate"))
	if err != nil {
		log.Fatal().Err(err).Str("endDate", viper.GetString("endDate")).Msg("invalid end date")
	}

	if endDate.Before(startDate.Time) {
		log.Fatal().Str("startDate", viper.GetString("startDate")).
			Str("endDate", viper.GetString("endDate")).Msg("end date precedes start date")
	}

	return startDate, endDate
}
