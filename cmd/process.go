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
	"github.com/penny-vault/esgfactor/data"
	"github.com/penny-vault/esgfactor/process"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Clean the raw data, derive returns, and build the master dataset",
	Long: `The process sub-command cleans the raw ESG and price exports, derives
daily stock and benchmark returns, converts the annualized risk-free rate to
a per-trading-day rate, and merges everything into the master panel the
feature stage consumes.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runProcess(); err != nil {
			log.Fatal().Err(err).Msg("process failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess() error {
	startDate, endDate := analysisWindow()

	if _, err := process.CleanEsg(rawPath(data.RawEsgFile), processedPath(data.EsgCleanedFile)); err != nil {
		return err
	}

	if _, err := process.CleanPrices(rawPath(data.RawPriceFile),
		processedPath(data.PricesCleanedFile), startDate, endDate); err != nil {
		return err
	}

	returnType := process.ReturnType(viper.GetString("returnType"))

	if _, err := process.CalculateReturns(processedPath(data.PricesCleanedFile),
		processedPath(data.ReturnsFile), returnType); err != nil {
		return err
	}

	if _, err := process.CalculateMarketReturns(rawPath(data.RawIndexFile),
		processedPath(data.MarketReturnsFile)); err != nil {
		return err
	}

	// risk-free is optional: the merge falls back to a zero rate
	if _, err := process.ProcessRiskFree(rawPath(data.RawRiskFreeFile),
		processedPath(data.ReturnsFile), processedPath(data.RiskFreeRateFile)); err != nil {
		log.Warn().Err(err).Msg("risk-free rate unavailable, merge will assume a zero rate")
	}

	if _, err := process.MergeAll(process.MergeInputs{
		ReturnsFile:      processedPath(data.ReturnsFile),
		EsgFile:          processedPath(data.EsgCleanedFile),
		RiskFreeFile:     processedPath(data.RiskFreeRateFile),
		MarketFile:       processedPath(data.MarketReturnsFile),
		CompanyInfoFile:  rawPath(data.RawCompanyInfoFile),
		MasterOutputFile: finalPath(data.MasterDatasetFile),
	}); err != nil {
		return err
	}

	log.Info().Str("MasterDataset", finalPath(data.MasterDatasetFile)).Msg("process complete")

	return nil
}
