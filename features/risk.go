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

	"github.com/penny-vault/esgfactor/data"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// minBetaPairs is the smallest number of paired stock/market observations
// needed before a beta estimate is reported.
const minBetaPairs = 100

// ComputeRisk reduces each ticker's daily series to risk statistics, applying
// the same minimum-sample gate as the performance stage so the two files
// cover the same tickers.
func ComputeRisk(masterFile, outputFile string) ([]*data.RiskMetrics, error) {
	records, err := data.LoadCSV[data.MasterRecord](masterFile)
	if err != nil {
		return nil, err
	}

	grouped := GroupByTicker(records)
	log.Info().Int("Tickers", len(grouped)).Msg("computing risk metrics")

	metrics := make([]*data.RiskMetrics, 0, len(grouped))
	skipped := 0
	missingBeta := 0

	for _, series := range grouped {
		if len(series.Returns) < MinObservations {
			skipped++
			continue
		}

		mm := riskFor(series)
		if mm.Beta.IsNaN() {
			missingBeta++
		}

		metrics = append(metrics, mm)
	}

	if skipped > 0 {
		log.Warn().Int("Skipped", skipped).Int("MinDays", MinObservations).
			Msg("tickers below the minimum-sample gate excluded")
	}

	if missingBeta > 0 {
		log.Warn().Int("Tickers", missingBeta).Int("MinPairs", minBetaPairs).
			Msg("beta unavailable for tickers with too few paired market observations")
	}

	log.Info().Int("Tickers", len(metrics)).Msg("risk metrics computed")

	if err := data.SaveCSV(outputFile, metrics); err != nil {
		return nil, err
	}

	log.Info().Str("OutputFile", outputFile).Msg("risk metrics saved")

	return metrics, nil
}

func riskFor(series *TickerSeries) *data.RiskMetrics {
	return &data.RiskMetrics{
		Ticker:            series.Ticker,
		Volatility:        stat.StdDev(series.Returns, nil) * math.Sqrt(data.TradingDaysPerYear),
		Beta:              Beta(series.Returns, series.MarketReturns),
		DownsideDeviation: DownsideDeviation(series.Returns),
		ExcessReturnStd:   stat.StdDev(series.ExcessReturns, nil) * math.Sqrt(data.TradingDaysPerYear),
		VaR5:              Percentile(series.Returns, 0.05),
		MaxDrawdown:       MaxDrawdown(series.Returns),
	}
}

// Beta regresses a ticker's returns against paired market returns:
// cov(r, m) / var(m). Days where the market return is missing are excluded
// from the pairing; too few pairs or a flat market yields a missing beta.
func Beta(returns, marketReturns []float64) data.Float {
	stock := make([]float64, 0, len(returns))
	market := make([]float64, 0, len(returns))

	for ii := range returns {
		if math.IsNaN(marketReturns[ii]) || math.IsNaN(returns[ii]) {
			continue
		}

		stock = append(stock, returns[ii])
		market = append(market, marketReturns[ii])
	}

	if len(stock) < minBetaPairs {
		return data.MissingFloat()
	}

	marketVar := stat.Variance(market, nil)
	if marketVar == 0 {
		return data.MissingFloat()
	}

	return data.Float(stat.Covariance(stock, market, nil) / marketVar)
}

// DownsideDeviation is the annualized standard deviation of the negative
// daily returns only. The sample deviation needs at least two losing days;
// below that the statistic is undefined and reported as missing.
func DownsideDeviation(returns []float64) data.Float {
	downside := make([]float64, 0, len(returns))
	for _, ret := range returns {
		if ret < 0 {
			downside = append(downside, ret)
		}
	}

	if len(downside) < 2 {
		return data.MissingFloat()
	}

	return data.Float(stat.StdDev(downside, nil) * math.Sqrt(data.TradingDaysPerYear))
}

// Percentile returns the linearly interpolated p-quantile (0 < p < 1) of the
// values, matching the interpolation most statistics packages default to.
func Percentile(vals []float64, p float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))

	if lo == hi {
		return sorted[lo]
	}

	frac := pos - float64(lo)

	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// MaxDrawdown walks the compounding wealth path and returns the deepest
// peak-to-trough decline as a negative fraction.
func MaxDrawdown(returns []float64) float64 {
	wealth := 1.0
	peak := 1.0
	maxDD := 0.0

	for _, ret := range returns {
		wealth *= 1 + ret
		if wealth > peak {
			peak = wealth
		}

		dd := wealth/peak - 1
		if dd < maxDD {
			maxDD = dd
		}
	}

	return maxDD
}
