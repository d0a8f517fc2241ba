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

// Package process implements the cleaning, return-derivation and merge
// stages of the pipeline. Every stage reads the previous stage's CSV
// artifact and writes a new one; nothing is mutated in place.
package process

import (
	"math"
	"sort"
	"strings"

	"github.com/penny-vault/esgfactor/data"
	"github.com/penny-vault/esgfactor/schema"
	"github.com/penny-vault/esgfactor/table"
	"github.com/rs/zerolog/log"
)

// missingImputeThreshold is the fraction of rows with any missing pillar
// score above which imputation is preferred over dropping rows.
const missingImputeThreshold = 0.05

var esgFields = []schema.Field{
	{
		Name:    "ticker",
		Aliases: []string{"Ticker", "Symbol", "ticker", "symbol", "TICKER", "SYMBOL"},
	},
	{
		Name:     "esg_score",
		Aliases:  []string{"totalEsg", "ESG_Score", "esg_score", "Total ESG Score"},
		Patterns: [][]string{{"esg", "score"}, {"esg", "rating"}, {"total", "esg"}},
	},
	{
		Name:     "environment_score",
		Aliases:  []string{"environmentScore", "Environment_Score", "E_Score"},
		Patterns: [][]string{{"environment", "score"}, {"environment", "rating"}},
	},
	{
		Name:     "social_score",
		Aliases:  []string{"socialScore", "Social_Score", "S_Score"},
		Patterns: [][]string{{"social", "score"}, {"social", "rating"}},
	},
	{
		Name:     "governance_score",
		Aliases:  []string{"governanceScore", "Governance_Score", "G_Score"},
		Patterns: [][]string{{"governance", "score"}, {"governance", "rating"}},
	},
	{
		Name:     "sector",
		Aliases:  []string{"Sector", "sector", "SECTOR", "GICS Sector", "Industry", "industry"},
		Optional: true,
	},
}

// CleanEsg loads a raw ESG vendor export, standardizes tickers, removes
// duplicates, applies the missing-score policy and writes the canonical
// cleaned file. The vendor's column names are resolved through the alias
// table; any unmatched required field aborts the stage.
func CleanEsg(inputFile, outputFile string) ([]*data.EsgRecord, error) {
	log.Info().Str("InputFile", inputFile).Msg("cleaning ESG data")

	tbl, err := table.ReadCSV(inputFile)
	if err != nil {
		return nil, err
	}

	log.Info().Int("Records", tbl.NumRows()).Strs("Columns", tbl.Columns).Msg("loaded raw ESG data")

	res, err := schema.Resolve(tbl.Columns, esgFields)
	if err != nil {
		return nil, err
	}

	tickers, _ := tbl.Strings(res.Column("ticker"))

	scoreCols := []string{"esg_score", "environment_score", "social_score", "governance_score"}
	scores := make(map[string][]float64, len(scoreCols))

	for _, field := range scoreCols {
		vals, err := tbl.Floats(res.Column(field))
		if err != nil {
			return nil, err
		}

		scores[field] = vals
	}

	var sectors []string
	if col := res.Column("sector"); col != "" {
		sectors, _ = tbl.Strings(col)
	}

	originalCount := len(tickers)

	// standardize tickers and drop duplicates keeping the first occurrence
	keep := make([]int, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	duplicates := 0

	for ii := range tickers {
		tickers[ii] = strings.ToUpper(strings.TrimSpace(tickers[ii]))
		if seen[tickers[ii]] {
			duplicates++
			continue
		}

		seen[tickers[ii]] = true
		keep = append(keep, ii)
	}

	if duplicates > 0 {
		log.Info().Int("Duplicates", duplicates).Msg("removed duplicate tickers, keeping first occurrence")
	}

	tickers = selectStrings(tickers, keep)
	if sectors != nil {
		sectors = selectStrings(sectors, keep)
	}

	for _, field := range scoreCols {
		scores[field] = selectFloats(scores[field], keep)
	}

	// missing-value policy: impute when the share of incomplete rows is at
	// or above the threshold, otherwise drop the incomplete rows
	missingRows := 0
	for ii := range tickers {
		for _, field := range scoreCols {
			if math.IsNaN(scores[field][ii]) {
				missingRows++
				break
			}
		}
	}

	missingPct := float64(missingRows) / float64(len(tickers))
	log.Info().Int("MissingRows", missingRows).Float64("MissingPct", missingPct*100).
		Msg("rows with any missing ESG score")

	if missingRows > 0 {
		if missingPct < missingImputeThreshold {
			log.Info().Msg("dropping rows with missing scores (below impute threshold)")

			keep = keep[:0]
			for ii := range tickers {
				complete := true
				for _, field := range scoreCols {
					if math.IsNaN(scores[field][ii]) {
						complete = false
						break
					}
				}

				if complete {
					keep = append(keep, ii)
				}
			}

			tickers = selectStrings(tickers, keep)
			if sectors != nil {
				sectors = selectStrings(sectors, keep)
			}
			for _, field := range scoreCols {
				scores[field] = selectFloats(scores[field], keep)
			}
		} else if sectors != nil {
			log.Info().Msg("imputing missing scores with sector medians")

			for _, field := range scoreCols {
				imputeGroupMedian(scores[field], sectors)
			}
		} else {
			log.Info().Msg("no sector column found, imputing missing scores with global medians")

			for _, field := range scoreCols {
				imputeMedian(scores[field])
			}
		}
	}

	// validate score ranges; values outside 0-100 are flagged, not removed
	for _, field := range scoreCols {
		minVal, maxVal := rangeOf(scores[field])
		log.Info().Str("Field", field).Float64("Min", minVal).Float64("Max", maxVal).Msg("score range")

		if minVal < 0 || maxVal > 100 {
			log.Warn().Str("Field", field).Msg("scores outside the typical 0-100 range")
		}
	}

	// assemble records; rows with infinite scores, or still missing after a
	// failed group imputation, are dropped
	records := make([]*data.EsgRecord, 0, len(tickers))
	droppedBad := 0

	for ii := range tickers {
		bad := false
		for _, field := range scoreCols {
			val := scores[field][ii]
			if math.IsNaN(val) || math.IsInf(val, 0) {
				bad = true
				break
			}
		}

		if bad {
			droppedBad++
			continue
		}

		rec := &data.EsgRecord{
			Ticker:           tickers[ii],
			EsgScore:         scores["esg_score"][ii],
			EnvironmentScore: scores["environment_score"][ii],
			SocialScore:      scores["social_score"][ii],
			GovernanceScore:  scores["governance_score"][ii],
		}

		if sectors != nil {
			rec.Sector = sectors[ii]
		}

		records = append(records, rec)
	}

	if droppedBad > 0 {
		log.Info().Int("Dropped", droppedBad).Msg("removed rows with infinite or unimputable scores")
	}

	log.Info().Int("OriginalRecords", originalCount).Int("FinalRecords", len(records)).
		Int("Removed", originalCount-len(records)).Msg("ESG cleaning summary")

	if err := data.SaveCSV(outputFile, records); err != nil {
		return nil, err
	}

	log.Info().Str("OutputFile", outputFile).Msg("cleaned ESG data saved")

	return records, nil
}

func selectStrings(vals []string, keep []int) []string {
	out := make([]string, len(keep))
	for ii, idx := range keep {
		out[ii] = vals[idx]
	}

	return out
}

func selectFloats(vals []float64, keep []int) []float64 {
	out := make([]float64, len(keep))
	for ii, idx := range keep {
		out[ii] = vals[idx]
	}

	return out
}

func rangeOf(vals []float64) (float64, float64) {
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)

	for _, val := range vals {
		if math.IsNaN(val) {
			continue
		}

		minVal = math.Min(minVal, val)
		maxVal = math.Max(maxVal, val)
	}

	return minVal, maxVal
}

// median returns the linear-interpolated median of the non-missing values,
// or NaN when none exist.
func median(vals []float64) float64 {
	clean := make([]float64, 0, len(vals))
	for _, val := range vals {
		if !math.IsNaN(val) {
			clean = append(clean, val)
		}
	}

	if len(clean) == 0 {
		return math.NaN()
	}

	sort.Float64s(clean)

	nn := len(clean)
	if nn%2 == 1 {
		return clean[nn/2]
	}

	return (clean[nn/2-1] + clean[nn/2]) / 2
}

func imputeMedian(vals []float64) {
	med := median(vals)
	for ii, val := range vals {
		if math.IsNaN(val) {
			vals[ii] = med
		}
	}
}

// imputeGroupMedian fills missing values with the median of the value's
// group; groups whose members are all missing stay missing.
func imputeGroupMedian(vals []float64, groups []string) {
	groupVals := map[string][]float64{}
	for ii, group := range groups {
		groupVals[group] = append(groupVals[group], vals[ii])
	}

	medians := make(map[string]float64, len(groupVals))
	for group, members := range groupVals {
		medians[group] = median(members)
	}

	for ii, val := range vals {
		if math.IsNaN(val) {
			vals[ii] = medians[groups[ii]]
		}
	}
}
