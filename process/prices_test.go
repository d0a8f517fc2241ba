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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/penny-vault/esgfactor/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardFill(t *testing.T) {
	nan := math.NaN()

	vals := []float64{nan, 1, nan, nan, nan, 5}
	forwardFill(vals, 2)

	assert.True(t, math.IsNaN(vals[0]), "leading missing values stay missing")
	assert.Equal(t, 1.0, vals[1])
	assert.Equal(t, 1.0, vals[2])
	assert.Equal(t, 1.0, vals[3])
	assert.True(t, math.IsNaN(vals[4]), "fill limit reached")
	assert.Equal(t, 5.0, vals[5])
}

func TestForwardFillUnlimited(t *testing.T) {
	nan := math.NaN()

	vals := []float64{2, nan, nan, nan}
	forwardFill(vals, 0)

	assert.Equal(t, []float64{2, 2, 2, 2}, vals)
}

func TestCleanPricesWideFormat(t *testing.T) {
	dir := t.TempDir()
	inputFile := filepath.Join(dir, data.RawPriceFile)

	// BBB is missing more than 10% of the window and gets dropped
	csv := "Date,AAA,BBB\n" +
		"2024-01-02,100,50\n" +
		"2024-01-03,101,\n" +
		"2024-01-04,102,\n" +
		"2024-01-05,103,\n" +
		"2024-01-08,104,\n" +
		"2024-01-09,105,\n" +
		"2024-01-10,106,\n" +
		"2024-01-11,107,\n" +
		"2024-01-12,108,\n" +
		"2024-01-15,109,\n"
	require.NoError(t, os.WriteFile(inputFile, []byte(csv), 0o644))

	outputFile := filepath.Join(dir, data.PricesCleanedFile)

	observations, err := CleanPrices(inputFile, outputFile,
		data.NewDate(2024, time.January, 1), data.NewDate(2024, time.January, 31))
	require.NoError(t, err)

	tickers := map[string]int{}
	for _, obs := range observations {
		tickers[obs.Ticker]++
	}

	assert.Equal(t, 10, tickers["AAA"])
	assert.Zero(t, tickers["BBB"])
}

func TestCleanPricesLongFormatWindowAndDedupe(t *testing.T) {
	dir := t.TempDir()
	inputFile := filepath.Join(dir, data.RawPriceFile)

	csv := "Date,Ticker,Close\n" +
		"2023-12-29,AAPL,99\n" + // before the window
		"2024-01-02,AAPL,100\n" +
		"2024-01-02,AAPL,200\n" + // duplicate, first occurrence wins
		"2024-01-03,AAPL,101\n"
	require.NoError(t, os.WriteFile(inputFile, []byte(csv), 0o644))

	outputFile := filepath.Join(dir, data.PricesCleanedFile)

	observations, err := CleanPrices(inputFile, outputFile,
		data.NewDate(2024, time.January, 1), data.NewDate(2024, time.January, 3))
	require.NoError(t, err)
	require.Len(t, observations, 2)

	assert.Equal(t, 100.0, observations[0].Close)
	assert.Equal(t, 101.0, observations[1].Close)
}

func TestCleanPricesSortsByTickerThenDate(t *testing.T) {
	dir := t.TempDir()
	inputFile := filepath.Join(dir, data.RawPriceFile)

	csv := "Date,Ticker,Close\n" +
		"2024-01-03,MSFT,51\n" +
		"2024-01-02,MSFT,50\n" +
		"2024-01-03,AAPL,101\n" +
		"2024-01-02,AAPL,100\n"
	require.NoError(t, os.WriteFile(inputFile, []byte(csv), 0o644))

	observations, err := CleanPrices(inputFile, filepath.Join(dir, data.PricesCleanedFile),
		data.NewDate(2024, time.January, 2), data.NewDate(2024, time.January, 4))
	require.NoError(t, err)
	require.Len(t, observations, 4)

	assert.Equal(t, "AAPL", observations[0].Ticker)
	assert.Equal(t, data.NewDate(2024, time.January, 2), observations[0].Date)
	assert.Equal(t, data.NewDate(2024, time.January, 3), observations[1].Date)
	assert.Equal(t, "MSFT", observations[2].Ticker)
	assert.Equal(t, data.NewDate(2024, time.January, 2), observations[2].Date)
}
