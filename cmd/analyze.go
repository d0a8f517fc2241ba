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
	"github.com/penny-vault/esgfactor/analysis"
	"github.com/penny-vault/esgfactor/data"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Fit the regressions and write the results reports",
	Long: `The analyze sub-command fits the cross-sectional regressions: composite
ESG against the Sharpe ratio and against volatility, then the pillar
decomposition of each. Each model gets heteroskedasticity,
normality, and multicollinearity diagnostics; when heteroskedasticity is
detected the inference is refit with HC3 robust errors. One results file is
written per question plus an overall findings summary.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAnalyze(); err != nil {
			log.Fatal().Err(err).Msg("analyze failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze() error {
	ds, err := analysis.LoadDataset(finalPath(data.AnalysisDatasetFile))
	if err != nil {
		return err
	}

	results, err := analysis.RunResearchQuestions(ds)
	if err != nil {
		return err
	}

	if err := analysis.WriteReports(results, viper.GetString("reportDir")); err != nil {
		return err
	}

	for _, qr := range results.All() {
		log.Info().Str("Question", qr.ID).Bool("Significant", qr.Significant()).
			Float64("RSquared", qr.Model.RSquared).Int("N", qr.Model.N).Msg("research question result")
	}

	log.Info().Str("ReportDir", viper.GetString("reportDir")).Msg("analyze complete")

	return nil
}
