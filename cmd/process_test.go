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
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/penny-vault/esgfactor/data"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunProcessWithoutRiskFreeRate verifies the process stage completes when
// the rate series was never downloaded: the risk-free step fails with a
// missing-file error and the merge falls back to a zero daily rate.
func TestRunProcessWithoutRiskFreeRate(t *testing.T) {
	dir := t.TempDir()
	rawDir := filepath.Join(dir, "raw")
	require.NoError(t, os.MkdirAll(rawDir, 0o755))

	viper.Set("rawDir", rawDir)
	viper.Set("processedDir", filepath.Join(dir, "processed"))
	viper.Set("finalDir", filepath.Join(dir, "final"))
	viper.Set("startDate", "2024-01-01")
	viper.Set("endDate", "2024-01-10")
	viper.Set("returnType", "simple")

	esg := "Symbol,totalEsg,environmentScore,socialScore,governanceScore,Sector\n" +
		"AAA,70,25,25,20,Technology\n" +
		"BBB,40,10,15,15,Energy\n"
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, data.RawEsgFile), []byte(esg), 0o644))

	var prices, index strings.Builder
	prices.WriteString("Date,Ticker,Close\n")
	index.WriteString("Date,Close\n")

	for day := 1; day <= 10; day++ {
		date := fmt.Sprintf("2024-01-%02d", day)
		prices.WriteString(fmt.Sprintf("%s,AAA,%d\n", date, 100+day))
		prices.WriteString(fmt.Sprintf("%s,BBB,%d\n", date, 50+day))
		index.WriteString(fmt.Sprintf("%s,%d\n", date, 1000+day))
	}

	require.NoError(t, os.WriteFile(filepath.Join(rawDir, data.RawPriceFile), []byte(prices.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, data.RawIndexFile), []byte(index.String()), 0o644))

	// no rate file in rawDir: the risk-free step fails, the stage continues
	require.NoError(t, runProcess())

	master, err := data.LoadCSV[data.MasterRecord](finalPath(data.MasterDatasetFile))
	require.NoError(t, err)
	require.Len(t, master, 18)

	for _, rec := range master {
		assert.Zero(t, rec.DailyRFRate, rec.Ticker)
		assert.InDelta(t, rec.Return, rec.ExcessReturn, 1e-15, rec.Ticker)
	}
}
