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

// Package features collapses the daily master panel into per-ticker
// regression variables: performance metrics, risk metrics and control
// variables, then assembles the cross-sectional analysis dataset.
package features

import (
	"math"
	"sort"

	"github.com/penny-vault/esgfactor/data"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// MinObservations is the smallest daily sample a ticker needs before its
// annualized statistics are considered meaningful.
const MinObservations = 200

// TickerSeries is one ticker's daily history pulled out of the master panel,
// already sorted by date.
type TickerSeries struct {
	Ticker        string
	Returns       []float64
	ExcessReturns []float64
	MarketReturns []float64
	RFRates       []float64
}

// GroupByTicker splits master records into per-ticker series sorted by date.
// Market returns carry NaN where the benchmark had no observation.
func GroupByTicker(records []*data.MasterRecord) []*TickerSeries {
	byTicker := map[string]*TickerSeries{}

	sorted := make([]*data.MasterRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(ii, jj int) bool {
		if sorted[ii].Ticker != sorted[jj].Ticker {
			return sorted[ii].Ticker < sorted[jj].Ticker
		}

		return sorted[ii].Date.Before(sorted[jj].Date.Time)
	})

	for _, rec := range sorted {
		series, ok := byTicker[rec.Ticker]
		if !ok {
			series = &TickerSeries{Ticker: rec.Ticker}
			byTicker[rec.Ticker] = series
		}

		series.Returns = append(series.Returns, rec.Return)
		series.ExcessReturns = append(series.ExcessReturns, rec.ExcessReturn)
		series.MarketReturns = append(series.MarketReturns, float64(rec.MarketReturn))
		series.RFRates = append(series.RFRates, rec.DailyRFRate)
	}

	out := make([]*TickerSeries, 0, len(byTicker))
	for _, series := range byTicker {
		out = append(out, series)
	}

	sort.Slice(out, func(ii, jj int) bool { return out[ii].Ticker < out[jj].Ticker })

	return out
}

// ComputePerformance reduces each ticker's daily series to performance
// statistics. Tickers with fewer than MinObservations days are skipped.
func ComputePerformance(masterFile, outputFile string) ([]*data.PerformanceMetrics, error) {
	records, err := data.LoadCSV[data.MasterRecord](masterFile)
	if err != nil {
		return nil, err
	}

	grouped := GroupByTicker(records)
	log.Info().Int("Tickers", len(grouped)).Msg("computing performance metrics")

	metrics := make([]*data.PerformanceMetrics, 0, len(grouped))
	skipped := 0

	for _, series := range grouped {
		if len(series.Returns) < MinObservations {
			skipped++
			log.Debug().Str("Ticker", series.Ticker).Int("Days", len(series.Returns)).
				Msg("skipping ticker with insufficient history")
			continue
		}

		metrics = append(metrics, performanceFor(series))
	}

	if skipped > 0 {
		log.Warn().Int("Skipped", skipped).Int("MinDays", MinObservations).
			Msg("tickers below the minimum-sample gate excluded")
	}

	log.Info().Int("Tickers", len(metrics)).Msg("performance metrics computed")

	if err := data.SaveCSV(outputFile, metrics); err != nil {
		return nil, err
	}

	log.Info().Str("OutputFile", outputFile).Msg("performance metrics saved")

	return metrics, nil
}

func performanceFor(series *TickerSeries) *data.PerformanceMetrics {
	nn := float64(len(series.Returns))

	meanExcess := stat.Mean(series.ExcessReturns, nil)
	meanReturn := stat.Mean(series.Returns, nil)

	cumulative := 1.0
	for _, ret := range series.Returns {
		cumulative *= 1 + ret
	}
	cumulative -= 1

	return &data.PerformanceMetrics{
		Ticker:                 series.Ticker,
		TradingDays:            len(series.Returns),
		MeanDailyExcessReturn:  meanExcess,
		AnnualizedExcessReturn: meanExcess * data.TradingDaysPerYear,
		SharpeRatio:            SharpeRatio(series.ExcessReturns, series.Ticker),
		CumulativeReturn:       cumulative,
		AnnualizedReturn:       math.Pow(1+cumulative, data.TradingDaysPerYear/nn) - 1,
		MeanDailyReturn:        meanReturn,
	}
}

// SharpeRatio annualizes the mean-to-volatility ratio of daily excess
// returns. A flat series has no meaningful risk-adjusted return and scores 0.
func SharpeRatio(excessReturns []float64, ticker string) float64 {
	if len(excessReturns) < 2 {
		return 0
	}

	sd := stat.StdDev(excessReturns, nil)
	if sd == 0 || math.IsNaN(sd) {
		log.Warn().Str("Ticker", ticker).Msg("zero-variance excess returns, Sharpe ratio set to 0")
		return 0
	}

	return stat.Mean(excessReturns, nil) / sd * math.Sqrt(data.TradingDaysPerYear)
}
