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
	"path/filepath"
	"testing"
	"time"

	"github.com/penny-vault/esgfactor/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mergeFixture(t *testing.T) (MergeInputs, string) {
	t.Helper()

	dir := t.TempDir()

	returns := []*data.ReturnObservation{
		{Date: data.NewDate(2024, time.January, 3), Ticker: "AAPL", Close: 101, Return: 0.01},
		{Date: data.NewDate(2024, time.January, 4), Ticker: "AAPL", Close: 102, Return: 0.0099},
		{Date: data.NewDate(2024, time.January, 3), Ticker: "ZZZZ", Close: 10, Return: 0.02},
	}
	require.NoError(t, data.SaveCSV(filepath.Join(dir, data.ReturnsFile), returns))

	esg := []*data.EsgRecord{
		{Ticker: "AAPL", EsgScore: 72.1, EnvironmentScore: 20.5, SocialScore: 25.3, GovernanceScore: 26.3, Sector: "Technology"},
	}
	require.NoError(t, data.SaveCSV(filepath.Join(dir, data.EsgCleanedFile), esg))

	rf := []*data.RiskFreeRateObservation{
		{Date: data.NewDate(2024, time.January, 3), DailyRFRate: 0.0002, AnnualRate: 5.0},
	}
	require.NoError(t, data.SaveCSV(filepath.Join(dir, data.RiskFreeRateFile), rf))

	market := []*data.MarketReturnObservation{
		{Date: data.NewDate(2024, time.January, 3), MarketReturn: 0.005},
	}
	require.NoError(t, data.SaveCSV(filepath.Join(dir, data.MarketReturnsFile), market))

	info := []*data.CompanyInfo{
		{Ticker: "AAPL", CompanyName: "Apple Inc.", Sector: "Technology", Industry: "Consumer Electronics", MarketCap: data.Float(3e12), Country: "United States"},
	}
	require.NoError(t, data.SaveCSV(filepath.Join(dir, data.RawCompanyInfoFile), info))

	return MergeInputs{
		ReturnsFile:      filepath.Join(dir, data.ReturnsFile),
		EsgFile:          filepath.Join(dir, data.EsgCleanedFile),
		RiskFreeFile:     filepath.Join(dir, data.RiskFreeRateFile),
		MarketFile:       filepath.Join(dir, data.MarketReturnsFile),
		CompanyInfoFile:  filepath.Join(dir, data.RawCompanyInfoFile),
		MasterOutputFile: filepath.Join(dir, data.MasterDatasetFile),
	}, dir
}

func TestMergeAllInnerJoinsEsg(t *testing.T) {
	inputs, _ := mergeFixture(t)

	records, err := MergeAll(inputs)
	require.NoError(t, err)
	require.Len(t, records, 2, "ZZZZ has no ESG rating and is dropped")

	for _, rec := range records {
		assert.Equal(t, "AAPL", rec.Ticker)
		assert.InDelta(t, 72.1, rec.EsgScore, 1e-12)
	}
}

func TestMergeAllExcessReturn(t *testing.T) {
	inputs, _ := mergeFixture(t)

	records, err := MergeAll(inputs)
	require.NoError(t, err)

	first := records[0]
	assert.Equal(t, data.NewDate(2024, time.January, 3), first.Date)
	assert.InDelta(t, 0.01-0.0002, first.ExcessReturn, 1e-12)
	assert.InDelta(t, 0.005, float64(first.MarketReturn), 1e-12)
	assert.Equal(t, "Apple Inc.", first.CompanyName)

	// the second day has no risk-free observation, so the rate defaults to 0
	second := records[1]
	assert.InDelta(t, second.Return, second.ExcessReturn, 1e-12)
	assert.True(t, second.MarketReturn.IsNaN(), "no market observation on the second day")
}

func TestMergeAllMissingOptionalFiles(t *testing.T) {
	inputs, dir := mergeFixture(t)
	inputs.RiskFreeFile = filepath.Join(dir, "missing_rf.csv")
	inputs.MarketFile = filepath.Join(dir, "missing_market.csv")
	inputs.CompanyInfoFile = filepath.Join(dir, "missing_info.csv")

	records, err := MergeAll(inputs)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Zero(t, first.DailyRFRate)
	assert.InDelta(t, first.Return, first.ExcessReturn, 1e-12)
	assert.True(t, first.MarketReturn.IsNaN())
	assert.Equal(t, "Unknown", first.CompanyName)
	assert.Equal(t, "Technology", first.Sector, "sector falls back to the ESG file")
	assert.True(t, first.MarketCap.IsNaN())
}

func TestMergeAllRequiredFilesMissing(t *testing.T) {
	inputs, dir := mergeFixture(t)
	inputs.EsgFile = filepath.Join(dir, "missing_esg.csv")

	_, err := MergeAll(inputs)
	require.ErrorIs(t, err, data.ErrMissingFile)
}
