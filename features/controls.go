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
package features

import (
	"math"
	"sort"
	"strings"

	"github.com/penny-vault/esgfactor/data"
	"github.com/rs/zerolog/log"
)

// ComputeControls extracts the static regression controls (firm size and
// sector) from the master panel, one row per ticker.
func ComputeControls(masterFile string) ([]*data.ControlVariables, error) {
	records, err := data.LoadCSV[data.MasterRecord](masterFile)
	if err != nil {
		return nil, err
	}

	controls := []*data.ControlVariables{}
	seen := map[string]bool{}
	missingCap := 0

	for _, rec := range records {
		if seen[rec.Ticker] {
			continue
		}
		seen[rec.Ticker] = true

		ctrl := &data.ControlVariables{
			Ticker:            rec.Ticker,
			MarketCapBillions: data.MissingFloat(),
			LogMarketCap:      data.MissingFloat(),
			Sector:            rec.Sector,
		}

		if ctrl.Sector == "" {
			ctrl.Sector = "Unknown"
		}

		if !rec.MarketCap.IsNaN() {
			billions := float64(rec.MarketCap) / 1e9
			ctrl.MarketCapBillions = data.Float(billions)

			logCap := math.Log(billions)
			if math.IsInf(logCap, 0) {
				logCap = math.NaN()
			}

			ctrl.LogMarketCap = data.Float(logCap)
		}

		if ctrl.LogMarketCap.IsNaN() {
			missingCap++
		}

		controls = append(controls, ctrl)
	}

	sort.Slice(controls, func(ii, jj int) bool { return controls[ii].Ticker < controls[jj].Ticker })

	if missingCap > 0 {
		log.Warn().Int("Tickers", missingCap).Msg("tickers without a usable market cap; size control missing")
	}

	log.Info().Int("Tickers", len(controls)).Msg("control variables computed")

	return controls, nil
}

// SectorDummies one-hot encodes a categorical sector column, dropping the
// alphabetically first category as the regression baseline.
type SectorDummies struct {
	// Baseline is the dropped reference category.
	Baseline string

	// Columns are the generated dummy column names, Sector_<name> with
	// spaces replaced by underscores, in sorted category order.
	Columns []string

	categories []string
}

// EncodeSectorDummies builds the dummy design for the distinct sectors
// present. At least two categories are required for any dummy to exist.
func EncodeSectorDummies(sectors []string) *SectorDummies {
	distinct := map[string]bool{}
	for _, sector := range sectors {
		distinct[sector] = true
	}

	categories := make([]string, 0, len(distinct))
	for sector := range distinct {
		categories = append(categories, sector)
	}

	sort.Strings(categories)

	dummies := &SectorDummies{categories: categories}
	if len(categories) < 2 {
		return dummies
	}

	dummies.Baseline = categories[0]
	for _, sector := range categories[1:] {
		dummies.Columns = append(dummies.Columns, "Sector_"+strings.ReplaceAll(sector, " ", "_"))
	}

	return dummies
}

// Row returns the dummy indicator values for one sector, aligned with
// Columns.
func (sd *SectorDummies) Row(sector string) []float64 {
	row := make([]float64, len(sd.Columns))
	if len(sd.categories) < 2 {
		return row
	}

	for ii, category := range sd.categories[1:] {
		if sector == category {
			row[ii] = 1
		}
	}

	return row
}
