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
package process

import (
	"math"
	"sort"

	"github.com/penny-vault/esgfactor/data"
	"github.com/penny-vault/esgfactor/schema"
	"github.com/penny-vault/esgfactor/table"
	"github.com/rs/zerolog/log"
)

var riskFreeFields = []schema.Field{
	{
		Name:     "date",
		Aliases:  []string{"DATE", "Date", "date", "observation_date"},
		Patterns: [][]string{{"date"}},
		Optional: true,
	},
	{
		Name:     "rate",
		Aliases:  []string{"DGS3MO", "VALUE", "Value", "value"},
		Patterns: [][]string{{"dgs"}, {"rate"}},
		Optional: true,
	},
}

// ProcessRiskFree converts an annualized benchmark rate series (quoted in
// percent, e.g. 5.0 for 5%) into a per-trading-day rate aligned to the
// trading calendar observed in the returns file. Missing rate observations
// are forward-filled, then the series is back-filled so the first trading
// days are covered too.
func ProcessRiskFree(inputFile, returnsFile, outputFile string) ([]*data.RiskFreeRateObservation, error) {
	log.Info().Str("InputFile", inputFile).Msg("processing risk-free rate")

	tbl, err := table.ReadCSV(inputFile)
	if err != nil {
		return nil, err
	}

	res, err := schema.Resolve(tbl.Columns, riskFreeFields)
	if err != nil {
		return nil, err
	}

	dateCol := res.Column("date")
	rateCol := res.Column("rate")

	// some exports use opaque headers; fall back to positional columns
	if dateCol == "" || rateCol == "" {
		if len(tbl.Columns) < 2 {
			return nil, schema.NewResolutionError([]string{"date", "rate"}, tbl.Columns)
		}

		dateCol = tbl.Columns[0]
		rateCol = tbl.Columns[1]

		log.Warn().Str("DateColumn", dateCol).Str("RateColumn", rateCol).
			Msg("rate header not recognized, assuming first column is the date and second is the rate")
	}

	dateStrs, err := tbl.Strings(dateCol)
	if err != nil {
		return nil, err
	}

	rates, err := tbl.Floats(rateCol)
	if err != nil {
		return nil, err
	}

	type rateRow struct {
		date data.Date
		rate float64
	}

	rows := make([]rateRow, 0, len(dateStrs))
	for ii := range dateStrs {
		date, err := data.ParseDate(dateStrs[ii])
		if err != nil {
			return nil, err
		}

		rows = append(rows, rateRow{date: date, rate: rates[ii]})
	}

	sort.Slice(rows, func(ii, jj int) bool { return rows[ii].date.Before(rows[jj].date.Time) })

	series := make([]float64, len(rows))
	missing := 0

	for ii, rr := range rows {
		series[ii] = rr.rate
		if math.IsNaN(rr.rate) {
			missing++
		}
	}

	if missing > 0 {
		log.Info().Int("Missing", missing).Int("Total", len(series)).
			Msg("filling missing rate observations (market holidays)")
	}

	forwardFill(series, 0)
	backwardFill(series)

	// align to the trading calendar: the rate in effect on a trading day is
	// the last published value on or before that day
	tradingDays, err := tradingCalendar(returnsFile)
	if err != nil {
		return nil, err
	}

	observations := make([]*data.RiskFreeRateObservation, 0, len(tradingDays))
	dropped := 0
	cursor := 0
	lastRate := math.NaN()

	for _, day := range tradingDays {
		for cursor < len(rows) && !rows[cursor].date.After(day.Time) {
			lastRate = series[cursor]
			cursor++
		}

		if math.IsNaN(lastRate) {
			dropped++
			continue
		}

		observations = append(observations, &data.RiskFreeRateObservation{
			Date:        day,
			DailyRFRate: dailyRate(lastRate),
			AnnualRate:  lastRate,
		})
	}

	if dropped > 0 {
		log.Warn().Int("Dropped", dropped).Msg("trading days before the first rate observation dropped")
	}

	if len(observations) > 0 {
		meanDaily := 0.0
		for _, obs := range observations {
			meanDaily += obs.DailyRFRate
		}
		meanDaily /= float64(len(observations))

		// re-annualize as a sanity check; should be close to the quoted rate
		log.Info().
			Float64("MeanDailyRate", meanDaily).
			Float64("ReannualizedPct", (math.Pow(1+meanDaily, data.TradingDaysPerYear)-1)*100).
			Int("TradingDays", len(observations)).
			Msg("risk-free rate summary")
	}

	if err := data.SaveCSV(outputFile, observations); err != nil {
		return nil, err
	}

	log.Info().Str("OutputFile", outputFile).Int("Records", len(observations)).Msg("risk-free rate saved")

	return observations, nil
}

// dailyRate converts an annualized percent rate to a per-trading-day rate by
// compound deannualization: (1+annual/100)^(1/252) - 1.
func dailyRate(annualPct float64) float64 {
	return math.Pow(1+annualPct/100, 1.0/data.TradingDaysPerYear) - 1
}

// backwardFill replaces leading NaNs with the first non-missing value.
func backwardFill(vals []float64) {
	next := math.NaN()
	for ii := len(vals) - 1; ii >= 0; ii-- {
		if math.IsNaN(vals[ii]) {
			vals[ii] = next
			continue
		}

		next = vals[ii]
	}
}

// tradingCalendar extracts the sorted distinct dates present in a returns
// file.
func tradingCalendar(returnsFile string) ([]data.Date, error) {
	returns, err := data.LoadCSV[data.ReturnObservation](returnsFile)
	if err != nil {
		return nil, err
	}

	seen := map[int64]data.Date{}
	for _, obs := range returns {
		seen[obs.Date.Unix()] = obs.Date
	}

	days := make([]data.Date, 0, len(seen))
	for _, day := range seen {
		days = append(days, day)
	}

	sort.Slice(days, func(ii, jj int) bool { return days[ii].Before(days[jj].Time) })

	return days, nil
}
