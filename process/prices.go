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

const (
	// maxGapPct is the largest share of the analysis window a ticker may be
	// missing before it is dropped entirely.
	maxGapPct = 0.10

	// ffillLimit caps how many consecutive missing observations are bridged
	// by forward fill (weekends/holidays in sparse feeds).
	ffillLimit = 5
)

var priceFields = []schema.Field{
	{
		Name:    "date",
		Aliases: []string{"Date", "date", "DATE", "Timestamp", "timestamp"},
	},
	{
		Name:     "ticker",
		Aliases:  []string{"Ticker", "Symbol", "ticker", "symbol"},
		Optional: true,
	},
	{
		Name:     "close",
		Aliases:  []string{"Close", "Adj Close", "close", "adj_close", "Price"},
		Patterns: [][]string{{"close"}, {"price"}},
		Optional: true,
	},
	{
		Name:     "open",
		Aliases:  []string{"Open", "open"},
		Optional: true,
	},
	{
		Name:     "high",
		Aliases:  []string{"High", "high"},
		Optional: true,
	},
	{
		Name:     "low",
		Aliases:  []string{"Low", "low"},
		Optional: true,
	},
	{
		Name:     "volume",
		Aliases:  []string{"Volume", "volume"},
		Optional: true,
	},
}

// CleanPrices loads a raw price export, filters it to the analysis window,
// audits and repairs per-ticker gaps and writes the canonical long-format
// file. Both layouts seen in the wild are accepted: long (one row per
// ticker-date) and wide (one date column plus one price column per ticker).
func CleanPrices(inputFile, outputFile string, startDate, endDate data.Date) ([]*data.PriceObservation, error) {
	log.Info().Str("InputFile", inputFile).
		Str("StartDate", startDate.Format("2006-01-02")).
		Str("EndDate", endDate.Format("2006-01-02")).
		Msg("cleaning price data")

	tbl, err := table.ReadCSV(inputFile)
	if err != nil {
		return nil, err
	}

	log.Info().Int("Records", tbl.NumRows()).Strs("Columns", tbl.Columns).Msg("loaded raw price data")

	res, err := schema.Resolve(tbl.Columns, priceFields)
	if err != nil {
		return nil, err
	}

	var observations []*data.PriceObservation

	if res.Column("ticker") != "" && res.Column("close") != "" {
		log.Info().Msg("detected long format (one row per ticker-date)")

		observations, err = cleanLongPrices(tbl, res, startDate, endDate)
	} else {
		log.Info().Msg("detected wide format (one price column per ticker), melting to long")

		observations, err = cleanWidePrices(tbl, res.Column("date"), startDate, endDate)
	}

	if err != nil {
		return nil, err
	}

	sort.SliceStable(observations, func(ii, jj int) bool {
		if observations[ii].Ticker != observations[jj].Ticker {
			return observations[ii].Ticker < observations[jj].Ticker
		}

		return observations[ii].Date.Before(observations[jj].Date.Time)
	})

	// enforce one observation per (ticker, date)
	deduped := observations[:0]
	seen := map[string]map[int64]bool{}
	duplicates := 0

	for _, obs := range observations {
		dates, ok := seen[obs.Ticker]
		if !ok {
			dates = map[int64]bool{}
			seen[obs.Ticker] = dates
		}

		key := obs.Date.Unix()
		if dates[key] {
			duplicates++
			continue
		}

		dates[key] = true
		deduped = append(deduped, obs)
	}

	observations = deduped

	if duplicates > 0 {
		log.Info().Int("Duplicates", duplicates).Msg("removed duplicate ticker-date rows")
	}

	tickerSet := map[string]bool{}
	dateSet := map[int64]bool{}

	for _, obs := range observations {
		tickerSet[obs.Ticker] = true
		dateSet[obs.Date.Unix()] = true
	}

	log.Info().Int("Records", len(observations)).Int("Tickers", len(tickerSet)).
		Int("TradingDays", len(dateSet)).Msg("price cleaning summary")

	if err := data.SaveCSV(outputFile, observations); err != nil {
		return nil, err
	}

	log.Info().Str("OutputFile", outputFile).Msg("cleaned price data saved")

	return observations, nil
}

func cleanLongPrices(tbl *table.Table, res schema.Resolution, startDate, endDate data.Date) ([]*data.PriceObservation, error) {
	dateStrs, _ := tbl.Strings(res.Column("date"))
	tickers, _ := tbl.Strings(res.Column("ticker"))

	closes, err := tbl.Floats(res.Column("close"))
	if err != nil {
		return nil, err
	}

	optional := map[string][]float64{}
	for _, field := range []string{"open", "high", "low", "volume"} {
		if col := res.Column(field); col != "" {
			vals, err := tbl.Floats(col)
			if err != nil {
				return nil, err
			}

			optional[field] = vals
		}
	}

	type row struct {
		date   data.Date
		ticker string
		open   float64
		high   float64
		low    float64
		close  float64
		volume float64
	}

	byTicker := map[string][]*row{}
	parseFailures := 0
	kept := 0

	for ii := range dateStrs {
		date, err := data.ParseDate(dateStrs[ii])
		if err != nil {
			parseFailures++
			continue
		}

		if date.Before(startDate.Time) || date.After(endDate.Time) {
			continue
		}

		rr := &row{
			date:   date,
			ticker: tickers[ii],
			close:  closes[ii],
			open:   optionalAt(optional, "open", ii),
			high:   optionalAt(optional, "high", ii),
			low:    optionalAt(optional, "low", ii),
			volume: optionalAt(optional, "volume", ii),
		}

		byTicker[rr.ticker] = append(byTicker[rr.ticker], rr)
		kept++
	}

	if parseFailures > 0 {
		log.Warn().Int("Failures", parseFailures).Msg("rows with unparseable dates skipped")
	}

	log.Info().Int("Kept", kept).Int("Total", tbl.NumRows()).Msg("filtered to analysis window")
	log.Info().Int("Tickers", len(byTicker)).Msg("analyzing per-ticker coverage")

	// drop tickers missing too much of the window
	expectedDays := int(endDate.Sub(startDate.Time).Hours() / 24)
	badTickers := []string{}

	for ticker, rows := range byTicker {
		missingPct := float64(expectedDays-len(rows)) / float64(expectedDays)
		if missingPct > maxGapPct {
			badTickers = append(badTickers, ticker)
		}
	}

	if len(badTickers) > 0 {
		sort.Strings(badTickers)
		log.Warn().Int("Count", len(badTickers)).Strs("Sample", sampleOf(badTickers, 10)).
			Msg("dropping tickers with excessive missing data")

		for _, ticker := range badTickers {
			delete(byTicker, ticker)
		}
	}

	observations := []*data.PriceObservation{}
	droppedNaN := 0

	for _, rows := range byTicker {
		sort.Slice(rows, func(ii, jj int) bool { return rows[ii].date.Before(rows[jj].date.Time) })

		closes := make([]float64, len(rows))
		for ii, rr := range rows {
			closes[ii] = rr.close
		}

		forwardFill(closes, ffillLimit)

		for ii, rr := range rows {
			if math.IsNaN(closes[ii]) {
				droppedNaN++
				continue
			}

			observations = append(observations, &data.PriceObservation{
				Date:   rr.date,
				Ticker: rr.ticker,
				Open:   data.Float(rr.open),
				High:   data.Float(rr.high),
				Low:    data.Float(rr.low),
				Close:  closes[ii],
				Volume: data.Float(rr.volume),
			})
		}
	}

	if droppedNaN > 0 {
		log.Info().Int("Dropped", droppedNaN).Msg("dropped rows still missing a close after forward fill")
	}

	return observations, nil
}

// cleanWidePrices melts a date-indexed table with one column per ticker into
// (date, ticker, close) rows.
func cleanWidePrices(tbl *table.Table, dateCol string, startDate, endDate data.Date) ([]*data.PriceObservation, error) {
	dateStrs, _ := tbl.Strings(dateCol)

	dates := make([]data.Date, 0, len(dateStrs))
	keep := make([]int, 0, len(dateStrs))

	for ii, str := range dateStrs {
		date, err := data.ParseDate(str)
		if err != nil {
			continue
		}

		if date.Before(startDate.Time) || date.After(endDate.Time) {
			continue
		}

		dates = append(dates, date)
		keep = append(keep, ii)
	}

	observations := []*data.PriceObservation{}
	droppedTickers := 0

	for _, col := range tbl.Columns {
		if col == dateCol {
			continue
		}

		vals, err := tbl.Floats(col)
		if err != nil {
			return nil, err
		}

		series := make([]float64, len(keep))
		for ii, idx := range keep {
			val := vals[idx]
			if math.IsInf(val, 0) {
				val = math.NaN()
			}

			series[ii] = val
		}

		forwardFill(series, ffillLimit)

		missing := 0
		for _, val := range series {
			if math.IsNaN(val) {
				missing++
			}
		}

		if len(series) == 0 || float64(missing)/float64(len(series)) > maxGapPct {
			droppedTickers++
			continue
		}

		for ii, val := range series {
			if math.IsNaN(val) {
				continue
			}

			observations = append(observations, &data.PriceObservation{
				Date:   dates[ii],
				Ticker: col,
				Open:   data.MissingFloat(),
				High:   data.MissingFloat(),
				Low:    data.MissingFloat(),
				Close:  val,
				Volume: data.MissingFloat(),
			})
		}
	}

	if droppedTickers > 0 {
		log.Warn().Int("Count", droppedTickers).Msg("dropping ticker columns with excessive missing data")
	}

	return observations, nil
}

func optionalAt(cols map[string][]float64, field string, idx int) float64 {
	if vals, ok := cols[field]; ok {
		return vals[idx]
	}

	return math.NaN()
}

// forwardFill replaces NaN runs with the last seen value, up to limit
// consecutive fills. Leading NaNs stay missing.
func forwardFill(vals []float64, limit int) {
	last := math.NaN()
	run := 0

	for ii, val := range vals {
		if math.IsNaN(val) {
			if !math.IsNaN(last) && (limit <= 0 || run < limit) {
				vals[ii] = last
				run++
			}

			continue
		}

		last = val
		run = 0
	}
}

func sampleOf(vals []string, n int) []string {
	if len(vals) <= n {
		return vals
	}

	return vals[:n]
}
