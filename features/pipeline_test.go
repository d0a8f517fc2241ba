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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/penny-vault/esgfactor/data"
	"github.com/penny-vault/esgfactor/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainDays = 253 // 252 daily returns per ticker

// chainReturn is the synthetic daily return for observation idx: alternating
// around a fixed mean so every aggregate statistic has a closed form.
func chainReturn(base, dev float64, idx int) float64 {
	if idx%2 == 1 {
		return base + dev
	}

	return base - dev
}

// writeChainFixtures builds the raw inputs for a two-ticker synthetic year:
// a long-format price file, a benchmark index tracking the first ticker, a
// zero risk-free rate, and ESG scores for both tickers.
func writeChainFixtures(t *testing.T, dir string) (start, end data.Date) {
	t.Helper()

	start = data.NewDate(2024, time.January, 1)
	dates := make([]data.Date, chainDays)
	for ii := range dates {
		dates[ii] = data.Date{Time: start.AddDate(0, 0, ii)}
	}

	var prices strings.Builder
	prices.WriteString("Date,Ticker,Close\n")

	marketPath := make([]float64, chainDays)

	for _, tc := range []struct {
		ticker string
		base   float64
		dev    float64
	}{
		{"AAA", 0.01, 0.002},
		{"BBB", 0.005, 0.001},
	} {
		price := 100.0
		for ii := 0; ii < chainDays; ii++ {
			if ii > 0 {
				price *= 1 + chainReturn(tc.base, tc.dev, ii)
			}

			if tc.ticker == "AAA" {
				marketPath[ii] = price
			}

			prices.WriteString(dates[ii].Format("2006-01-02") + "," + tc.ticker + "," +
				strconv.FormatFloat(price, 'f', -1, 64) + "\n")
		}
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, data.RawPriceFile), []byte(prices.String()), 0o644))

	var index strings.Builder
	index.WriteString("Date,Close\n")
	for ii := 0; ii < chainDays; ii++ {
		index.WriteString(dates[ii].Format("2006-01-02") + "," +
			strconv.FormatFloat(marketPath[ii], 'f', -1, 64) + "\n")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, data.RawIndexFile), []byte(index.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, data.RawRiskFreeFile),
		[]byte("DATE,DGS3MO\n2024-01-01,0.0\n"), 0o644))

	require.NoError(t, data.SaveCSV(filepath.Join(dir, data.EsgCleanedFile), []*data.EsgRecord{
		{Ticker: "AAA", EsgScore: 70, EnvironmentScore: 25, SocialScore: 25, GovernanceScore: 20, Sector: "Technology"},
		{Ticker: "BBB", EsgScore: 40, EnvironmentScore: 10, SocialScore: 15, GovernanceScore: 15, Sector: "Energy"},
	}))

	return start, dates[chainDays-1]
}

// runStageChain executes the processing and feature stages over the fixtures
// in dir and returns the aggregated metrics plus every output file written.
func runStageChain(t *testing.T, dir string, start, end data.Date) ([]*data.PerformanceMetrics, []*data.RiskMetrics, []string) {
	t.Helper()

	pricesCleaned := filepath.Join(dir, data.PricesCleanedFile)
	_, err := process.CleanPrices(filepath.Join(dir, data.RawPriceFile), pricesCleaned, start, end)
	require.NoError(t, err)

	returnsFile := filepath.Join(dir, data.ReturnsFile)
	returns, err := process.CalculateReturns(pricesCleaned, returnsFile, process.SimpleReturns)
	require.NoError(t, err)
	require.Len(t, returns, 2*(chainDays-1))

	marketFile := filepath.Join(dir, data.MarketReturnsFile)
	_, err = process.CalculateMarketReturns(filepath.Join(dir, data.RawIndexFile), marketFile)
	require.NoError(t, err)

	rfFile := filepath.Join(dir, data.RiskFreeRateFile)
	_, err = process.ProcessRiskFree(filepath.Join(dir, data.RawRiskFreeFile), returnsFile, rfFile)
	require.NoError(t, err)

	masterFile := filepath.Join(dir, data.MasterDatasetFile)
	master, err := process.MergeAll(process.MergeInputs{
		ReturnsFile:      returnsFile,
		EsgFile:          filepath.Join(dir, data.EsgCleanedFile),
		RiskFreeFile:     rfFile,
		MarketFile:       marketFile,
		CompanyInfoFile:  filepath.Join(dir, data.RawCompanyInfoFile),
		MasterOutputFile: masterFile,
	})
	require.NoError(t, err)
	require.Len(t, master, 2*(chainDays-1))

	performanceFile := filepath.Join(dir, data.PerformanceFile)
	performance, err := ComputePerformance(masterFile, performanceFile)
	require.NoError(t, err)

	riskFile := filepath.Join(dir, data.RiskFile)
	risk, err := ComputeRisk(masterFile, riskFile)
	require.NoError(t, err)

	outputs := []string{pricesCleaned, returnsFile, marketFile, rfFile, masterFile, performanceFile, riskFile}

	return performance, risk, outputs
}

// TestStageChainKnownMetrics runs the real processing stages over a synthetic
// two-ticker year and checks the aggregated metrics against values derived by
// hand. The risk-free rate is zero and the market follows the first ticker
// exactly.
func TestStageChainKnownMetrics(t *testing.T) {
	dir := t.TempDir()
	start, end := writeChainFixtures(t, dir)

	performance, risk, _ := runStageChain(t, dir, start, end)
	require.Len(t, performance, 2)
	require.Len(t, risk, 2)

	byTicker := map[string]*data.PerformanceMetrics{}
	for _, pm := range performance {
		byTicker[pm.Ticker] = pm
	}

	riskByTicker := map[string]*data.RiskMetrics{}
	for _, rm := range risk {
		riskByTicker[rm.Ticker] = rm
	}

	// sample std of n alternating deviations +/-d around the mean is
	// d*sqrt(n/(n-1)); the risk-free rate is zero so excess equals return
	nn := float64(chainDays - 1)
	annualize := math.Sqrt(data.TradingDaysPerYear)

	for _, want := range []struct {
		ticker string
		mean   float64
		dev    float64
	}{
		{"AAA", 0.01, 0.002},
		{"BBB", 0.005, 0.001},
	} {
		pm := byTicker[want.ticker]
		require.NotNil(t, pm, want.ticker)

		rm := riskByTicker[want.ticker]
		require.NotNil(t, rm, want.ticker)

		sampleStd := want.dev * math.Sqrt(nn/(nn-1))

		assert.InDelta(t, want.mean, pm.MeanDailyExcessReturn, 1e-9, want.ticker)
		assert.InDelta(t, want.mean*data.TradingDaysPerYear, pm.AnnualizedExcessReturn, 1e-6, want.ticker)
		assert.InDelta(t, want.mean/sampleStd*annualize, pm.SharpeRatio, 1e-6, want.ticker)
		assert.InDelta(t, sampleStd*annualize, rm.Volatility, 1e-9, want.ticker)

		// zero risk-free rate: the annualized excess deviation equals the
		// annualized total deviation
		assert.InDelta(t, rm.Volatility, rm.ExcessReturnStd, 1e-12, want.ticker)

		// every return is positive, so the low leg is the 5th percentile,
		// the wealth path never draws down, and downside deviation has no
		// sample to estimate from
		assert.InDelta(t, want.mean-want.dev, rm.VaR5, 1e-9, want.ticker)
		assert.Zero(t, rm.MaxDrawdown, want.ticker)
		assert.True(t, rm.DownsideDeviation.IsNaN(), want.ticker)
	}

	// the market is the first ticker's path, so betas are exact
	assert.InDelta(t, 1.0, float64(riskByTicker["AAA"].Beta), 1e-6)
	assert.InDelta(t, 0.5, float64(riskByTicker["BBB"].Beta), 1e-6)

	wantCumulative := math.Pow((1+0.01+0.002)*(1+0.01-0.002), nn/2) - 1
	assert.InDelta(t, wantCumulative, byTicker["AAA"].CumulativeReturn, 1e-6)
}

// TestStageChainIdempotent reruns the full chain against unchanged raw inputs
// and verifies every output file is byte-identical to the first run.
func TestStageChainIdempotent(t *testing.T) {
	dir := t.TempDir()
	start, end := writeChainFixtures(t, dir)

	_, _, outputs := runStageChain(t, dir, start, end)

	firstRun := map[string][]byte{}
	for _, path := range outputs {
		contents, err := os.ReadFile(path)
		require.NoError(t, err, path)
		firstRun[path] = contents
	}

	_, _, outputs = runStageChain(t, dir, start, end)

	for _, path := range outputs {
		contents, err := os.ReadFile(path)
		require.NoError(t, err, path)
		assert.Equal(t, firstRun[path], contents, filepath.Base(path))
	}
}
