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
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run every stage in sequence: download, process, features, analyze",
	Long: `The pipeline sub-command runs the full study end to end. Each stage
writes its artifacts before the next begins, so a failed run can be resumed
from the stage that broke by invoking it directly.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())
		started := time.Now()

		stages := []struct {
			name string
			run  func() error
		}{
			{"download", func() error { return runDownload(ctx) }},
			{"process", runProcess},
			{"features", runFeatures},
			{"analyze", runAnalyze},
		}

		for _, stage := range stages {
			stageStart := time.Now()
			log.Info().Str("Stage", stage.name).Msg("stage starting")

			if err := stage.run(); err != nil {
				log.Fatal().Err(err).Str("Stage", stage.name).Msg("pipeline failed")
			}

			log.Info().Str("Stage", stage.name).
				Str("Elapsed", time.Since(stageStart).Round(time.Millisecond).String()).
				Msg("stage complete")
		}

		log.Info().Str("Elapsed", time.Since(started).Round(time.Millisecond).String()).
			Msg("pipeline complete")
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}
