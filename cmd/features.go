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
	"github.com/penny-vault/esgfactor/features"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// featuresCmd represents the features command
var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Compute per-company performance, risk, and control variables",
	Long: `The features sub-command collapses the daily master panel into one row
per company: performance metrics (Sharpe ratio, annualized returns), risk
metrics (volatility, beta, drawdown, value at risk), and regression controls
(firm size, sector dummies). The result is the cross-sectional analysis
dataset the regressions run on.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runFeatures(); err != nil {
			log.Fatal().Err(err).Msg("features failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}

func runFeatures() error {
	masterFile := finalPath(data.MasterDatasetFile)

	if _, err := features.ComputePerformance(masterFile, processedPath(data.PerformanceFile)); err != nil {
		return err
	}

	if _, err := features.ComputeRisk(masterFile, processedPath(data.RiskFile)); err != nil {
		return err
	}

	if _, err := features.BuildAnalysisDataset(masterFile,
		processedPath(data.PerformanceFile), processedPath(data.RiskFile),
		finalPath(data.AnalysisDatasetFile)); err != nil {
		return err
	}

	log.Info().Str("AnalysisDataset", finalPath(data.AnalysisDatasetFile)).Msg("features complete")

	return nil
}
