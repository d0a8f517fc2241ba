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

	"github.com/penny-vault/esgfactor/data"
	"github.com/penny-vault/esgfactor/provider"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the raw datasets into the raw data directory",
	Long: `The download sub-command fetches every raw input the pipeline needs:
the ESG scores and price history dataset from Kaggle, daily bars for the
benchmark index, per-company profiles, and the risk-free rate series from
FRED. Fetchers that need credentials accept a manually downloaded file in
the raw directory instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())
		if err := runDownload(ctx); err != nil {
			log.Fatal().Err(err).Msg("download failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(ctx context.Context) error {
	startDate, endDate := analysisWindow()

	if err := provider.DownloadKaggleDataset(ctx,
		viper.GetString("kaggleUsername"), viper.GetString("kaggleKey"),
		viper.GetString("kaggleDataset"), viper.GetString("rawDir"),
		[]string{data.RawEsgFile, data.RawPriceFile}); err != nil {
		return err
	}

	if err := provider.FetchIndex(ctx, viper.GetString("marketIndex"),
		startDate, endDate, rawPath(data.RawIndexFile)); err != nil {
		return err
	}

	if err := provider.FetchRiskFreeRate(ctx, viper.GetString("fredAPIKey"),
		viper.GetString("fredSeries"), viper.GetString("startDate"),
		viper.GetString("endDate"), rawPath(data.RawRiskFreeFile)); err != nil {
		return err
	}

	tickers, err := provider.LoadTickers(rawPath(data.RawEsgFile))
	if err != nil {
		return err
	}

	log.Info().Int("Tickers", len(tickers)).Msg("fetching company profiles")

	if _, err := provider.FetchCompanyProfiles(ctx, tickers,
		viper.GetInt("infoRateLimit"), rawPath(data.RawCompanyInfoFile)); err != nil {
		return err
	}

	log.Info().Str("RawDir", viper.GetString("rawDir")).Msg("download complete")

	return nil
}
