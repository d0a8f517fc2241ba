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

// Package provider downloads the raw inputs: the ESG/price dataset from
// Kaggle, the benchmark index and company profiles from the Yahoo Finance
// API, and the risk-free rate series from FRED. Every fetcher degrades
// gracefully when credentials are missing: it logs how to obtain them and
// accepts a manually placed file instead.
package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/penny-vault/esgfactor/table"
	"github.com/rs/zerolog"
)

var ErrNoCredentials = errors.New("missing API credentials")

const fredObservationsURL = "https://api.stlouisfed.org/fred/series/observations"

type fredResponse struct {
	ObservationStart string            `json:"observation_start"`
	ObservationEnd   string            `json:"observation_end"`
	Units            string            `json:"units"`
	Count            int               `json:"count"`
	Observations     []fredObservation `json:"observations"`
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// FetchRiskFreeRate downloads one FRED series over the analysis window and
// writes it as a two-column CSV (DATE, <series>). FRED publishes "." for
// market holidays; the value is written verbatim and handled downstream.
// Without an API key an already-present file is accepted as-is.
func FetchRiskFreeRate(ctx context.Context, apiKey, seriesID, startDate, endDate, outputFile string) error {
	logger := zerolog.Ctx(ctx)

	if apiKey == "" {
		if _, err := os.Stat(outputFile); err == nil {
			logger.Info().Str("File", outputFile).
				Msg("no FRED api key configured, using the existing rate file")
			return nil
		}

		logger.Error().Str("Series", seriesID).
			Msg("no FRED api key configured; create a free key at https://fred.stlouisfed.org/docs/api/api_key.html and set FRED_API_KEY, or download the series CSV manually")

		return fmt.Errorf("%w: FRED api key", ErrNoCredentials)
	}

	var resp fredResponse

	client := resty.New().SetQueryParam("api_key", apiKey)
	req, err := client.R().
		SetContext(ctx).
		SetQueryParam("file_type", "json").
		SetQueryParam("series_id", seriesID).
		SetQueryParam("observation_start", startDate).
		SetQueryParam("observation_end", endDate).
		SetQueryParam("sort_order", "asc").
		SetResult(&resp).
		Get(fredObservationsURL)

	if err != nil {
		logger.Error().Err(err).Str("Series", seriesID).Msg("downloading rate series failed")
		return err
	}

	if req.StatusCode() >= 300 {
		logger.Error().Int("StatusCode", req.StatusCode()).Str("Series", seriesID).
			Msg("rate series request returned error status code")
		return fmt.Errorf("fred returned status %d for series %s", req.StatusCode(), seriesID)
	}

	tbl := table.New([]string{"DATE", seriesID})
	for _, obs := range resp.Observations {
		if err := tbl.AppendRow([]string{obs.Date, obs.Value}); err != nil {
			return err
		}
	}

	if err := tbl.WriteCSV(outputFile); err != nil {
		return err
	}

	logger.Info().Str("Series", seriesID).Int("Observations", len(resp.Observations)).
		Str("OutputFile", outputFile).Msg("rate series downloaded")

	return nil
}
