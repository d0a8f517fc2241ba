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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetaOfScaledMarket(t *testing.T) {
	// a stock that always moves twice the market has beta 2
	market := make([]float64, minBetaPairs+20)
	stock := make([]float64, minBetaPairs+20)

	for ii := range market {
		market[ii] = 0.001 * float64(ii%7-3)
		stock[ii] = 2 * market[ii]
	}

	beta := Beta(stock, market)
	require.False(t, beta.IsNaN())
	assert.InDelta(t, 2.0, float64(beta), 1e-9)
}

func TestBetaTooFewPairs(t *testing.T) {
	market := make([]float64, minBetaPairs-1)
	stock := make([]float64, minBetaPairs-1)

	for ii := range market {
		market[ii] = 0.001 * float64(ii%5)
		stock[ii] = market[ii]
	}

	assert.True(t, Beta(stock, market).IsNaN())
}

func TestBetaSkipsMissingMarketDays(t *testing.T) {
	nn := minBetaPairs + 50
	market := make([]float64, nn)
	stock := make([]float64, nn)

	for ii := range market {
		if ii%3 == 0 {
			market[ii] = math.NaN()
			stock[ii] = 0.5
			continue
		}

		market[ii] = 0.001 * float64(ii%7-3)
		stock[ii] = 1.5 * market[ii]
	}

	beta := Beta(stock, market)
	require.False(t, beta.IsNaN())
	assert.InDelta(t, 1.5, float64(beta), 1e-9)
}

func TestBetaFlatMarket(t *testing.T) {
	market := make([]float64, minBetaPairs)
	stock := make([]float64, minBetaPairs)

	for ii := range stock {
		stock[ii] = 0.001 * float64(ii%5)
	}

	assert.True(t, Beta(stock, market).IsNaN())
}

func TestDownsideDeviationUndefinedBelowTwoLosses(t *testing.T) {
	assert.True(t, DownsideDeviation([]float64{0.01, 0.02, 0.005}).IsNaN())
	assert.True(t, DownsideDeviation([]float64{0.01, -0.02, 0.005}).IsNaN())
}

func TestDownsideDeviationIgnoresGains(t *testing.T) {
	withGains := DownsideDeviation([]float64{-0.01, 0.05, -0.03, 0.08, -0.02})
	lossesOnly := DownsideDeviation([]float64{-0.01, -0.03, -0.02})

	assert.InDelta(t, float64(lossesOnly), float64(withGains), 1e-12)
	assert.Positive(t, float64(withGains))
}

func TestPercentileLinearInterpolation(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	// pos = 0.05 * 9 = 0.45 between the first and second order statistics
	assert.InDelta(t, 1.45, Percentile(vals, 0.05), 1e-12)
	assert.InDelta(t, 5.5, Percentile(vals, 0.5), 1e-12)
	assert.InDelta(t, 10, Percentile(vals, 1.0), 1e-12)
}

func TestPercentileUnsortedInputUnchanged(t *testing.T) {
	vals := []float64{9, 1, 5}

	assert.InDelta(t, 5, Percentile(vals, 0.5), 1e-12)
	assert.Equal(t, []float64{9, 1, 5}, vals)
}

func TestPercentileEdgeCases(t *testing.T) {
	assert.True(t, math.IsNaN(Percentile(nil, 0.05)))
	assert.InDelta(t, 7, Percentile([]float64{7}, 0.05), 1e-12)
}

func TestMaxDrawdown(t *testing.T) {
	// wealth path: 1.10, 0.55, 0.66 with peak 1.10
	assert.InDelta(t, -0.5, MaxDrawdown([]float64{0.1, -0.5, 0.2}), 1e-12)
}

func TestMaxDrawdownMonotonicGains(t *testing.T) {
	assert.Zero(t, MaxDrawdown([]float64{0.01, 0.02, 0.03}))
}

func TestRiskForVolatilityAnnualized(t *testing.T) {
	series := &TickerSeries{
		Ticker:        "TEST",
		Returns:       []float64{0.01, -0.01, 0.02, -0.02},
		ExcessReturns: []float64{0.009, -0.011, 0.019, -0.021},
		MarketReturns: []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()},
	}

	metrics := riskFor(series)

	assert.True(t, metrics.Beta.IsNaN())
	assert.Positive(t, metrics.Volatility)
	assert.Negative(t, metrics.VaR5)
	assert.Negative(t, metrics.MaxDrawdown)

	// sample variance of {0.009, -0.011, 0.019, -0.021} is 0.001/3; the
	// daily deviation is reported annualized
	wantStd := math.Sqrt(0.001/3) * math.Sqrt(252)
	assert.InDelta(t, wantStd, metrics.ExcessReturnStd, 1e-12)
}
