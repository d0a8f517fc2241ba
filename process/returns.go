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
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/penny-vault/esgfactor/data"
	"github.com/penny-vault/esgfactor/schema"
	"github.com/penny-vault/esgfactor/table"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// ReturnType selects the return formula.
type ReturnType string

const (
	SimpleReturns ReturnType = "simple"
	LogReturns    ReturnType = "log"
)

var ErrUnknownReturnType = errors.New("unknown return type")

// extremeReturnThreshold flags simple returns beyond +/-100%. Flag only:
// legitimate shocks stay in the data, likely split errors get surfaced for
// review.
const extremeReturnThreshold = 1.0

var returnsInputFields = []schema.Field{
	{
		Name:    "date",
		Aliases: []string{"Date", "date", "DATE"},
	},
	{
		Name:    "ticker",
		Aliases: []string{"Ticker", "Symbol", "ticker", "symbol"},
	},
	{
		Name:     "close",
		Aliases:  []string{"Close", "Adj Close", "close", "adj_close", "Price"},
		Patterns: [][]string{{"close"}, {"price"}},
	},
}

var marketInputFields = []schema.Field{
	{
		Name:     "date",
		Aliases:  []string{"Date", "date", "DATE"},
		Patterns: [][]string{{"date"}},
	},
	{
		Name:    "close",
		Aliases: []string{"Close", "Adj Close", "close", "adj_close"},
	},
}

// CalculateReturns derives a daily return series per ticker from the cleaned
// price file. The first observation of every ticker has no prior close and
// is dropped, infinities are removed, and extreme simple returns are counted
// and reported but kept.
func CalculateReturns(inputFile, outputFile string, returnType ReturnType) ([]*data.ReturnObservation, error) {
	log.Info().Str("InputFile", inputFile).Str("ReturnType", string(returnType)).Msg("calculating daily returns")

	if returnType != SimpleReturns && returnType != LogReturns {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReturnType, returnType)
	}

	tbl, err := table.ReadCSV(inputFile)
	if err != nil {
		return nil, err
	}

	res, err := schema.Resolve(tbl.Columns, returnsInputFields)
	if err != nil {
		return nil, err
	}

	dateStrs, _ := tbl.Strings(res.Column("date"))
	tickers, _ := tbl.Strings(res.Column("ticker"))

	closes, err := tbl.Floats(res.Column("close"))
	if err != nil {
		return nil, err
	}

	type priceRow struct {
		date  data.Date
		close float64
	}

	byTicker := map[string][]priceRow{}
	for ii := range dateStrs {
		date, err := data.ParseDate(dateStrs[ii])
		if err != nil {
			return nil, err
		}

		byTicker[tickers[ii]] = append(byTicker[tickers[ii]], priceRow{date: date, close: closes[ii]})
	}

	tickerNames := make([]string, 0, len(byTicker))
	for ticker := range byTicker {
		tickerNames = append(tickerNames, ticker)
	}

	sort.Strings(tickerNames)

	observations := []*data.ReturnObservation{}
	infinities := 0
	extremes := 0

	for _, ticker := range tickerNames {
		rows := byTicker[ticker]
		sort.Slice(rows, func(ii, jj int) bool { return rows[ii].date.Before(rows[jj].date.Time) })

		for ii := 1; ii < len(rows); ii++ {
			ret := dailyReturn(rows[ii-1].close, rows[ii].close, returnType)

			if math.IsInf(ret, 0) || math.IsNaN(ret) {
				infinities++
				continue
			}

			if returnType == SimpleReturns && math.Abs(ret) > extremeReturnThreshold {
				extremes++
			}

			observations = append(observations, &data.ReturnObservation{
				Date:   rows[ii].date,
				Ticker: ticker,
				Close:  rows[ii].close,
				Return: ret,
			})
		}
	}

	if infinities > 0 {
		log.Warn().Int("Count", infinities).Msg("removed infinite or undefined returns")
	}

	if extremes > 0 {
		log.Warn().Int("Count", extremes).Msg("extreme returns above 100% kept; possible splits or data errors")
	}

	logReturnStats(observations)

	if err := data.SaveCSV(outputFile, observations); err != nil {
		return nil, err
	}

	log.Info().Str("OutputFile", outputFile).Int("Records", len(observations)).
		Int("Tickers", len(tickerNames)).Msg("returns saved")

	return observations, nil
}

func dailyReturn(prev, cur float64, returnType ReturnType) float64 {
	if returnType == LogReturns {
		return math.Log(cur / prev)
	}

	return cur/prev - 1
}

func logReturnStats(observations []*data.ReturnObservation) {
	if len(observations) == 0 {
		return
	}

	returns := make([]float64, len(observations))
	for ii, obs := range observations {
		returns[ii] = obs.Return
	}

	minRet := returns[0]
	maxRet := returns[0]

	for _, ret := range returns {
		minRet = math.Min(minRet, ret)
		maxRet = math.Max(maxRet, ret)
	}

	log.Info().
		Float64("Mean", stat.Mean(returns, nil)).
		Float64("Median", median(returns)).
		Float64("StdDev", stat.StdDev(returns, nil)).
		Float64("Min", minRet).
		Float64("Max", maxRet).
		Msg("return statistics")
}

// CalculateMarketReturns derives the benchmark index's daily simple return
// series from its raw OHLCV file.
func CalculateMarketReturns(inputFile, outputFile string) ([]*data.MarketReturnObservation, error) {
	log.Info().Str("InputFile", inputFile).Msg("calculating market returns")

	tbl, err := table.ReadCSV(inputFile)
	if err != nil {
		return nil, err
	}

	res, err := schema.Resolve(tbl.Columns, marketInputFields)
	if err != nil {
		return nil, err
	}

	dateStrs, _ := tbl.Strings(res.Column("date"))

	closes, err := tbl.Floats(res.Column("close"))
	if err != nil {
		return nil, err
	}

	type indexRow struct {
		date  data.Date
		close float64
	}

	rows := make([]indexRow, 0, len(dateStrs))
	for ii := range dateStrs {
		date, err := data.ParseDate(dateStrs[ii])
		if err != nil {
			// vendor files sometimes carry a second header row; skip
			continue
		}

		if math.IsNaN(closes[ii]) {
			continue
		}

		rows = append(rows, indexRow{date: date, close: closes[ii]})
	}

	sort.Slice(rows, func(ii, jj int) bool { return rows[ii].date.Before(rows[jj].date.Time) })

	observations := make([]*data.MarketReturnObservation, 0, len(rows))
	for ii := 1; ii < len(rows); ii++ {
		ret := rows[ii].close/rows[ii-1].close - 1
		if math.IsInf(ret, 0) || math.IsNaN(ret) {
			continue
		}

		observations = append(observations, &data.MarketReturnObservation{
			Date:         rows[ii].date,
			MarketReturn: ret,
		})
	}

	if len(observations) > 0 {
		returns := make([]float64, len(observations))
		for ii, obs := range observations {
			returns[ii] = obs.MarketReturn
		}

		mean := stat.Mean(returns, nil)
		log.Info().
			Float64("MeanDaily", mean).
			Float64("StdDev", stat.StdDev(returns, nil)).
			Float64("AnnualizedReturn", math.Pow(1+mean, data.TradingDaysPerYear)-1).
			Float64("AnnualizedVolatility", stat.StdDev(returns, nil)*math.Sqrt(data.TradingDaysPerYear)).
			Msg("market return statistics")
	}

	if err := data.SaveCSV(outputFile, observations); err != nil {
		return nil, err
	}

	log.Info().Str("OutputFile", outputFile).Int("Records", len(observations)).Msg("market returns saved")

	return observations, nil
}
