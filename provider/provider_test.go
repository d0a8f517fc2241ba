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
package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/penny-vault/esgfactor/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTickers(t *testing.T) {
	path := filepath.Join(t.TempDir(), data.RawEsgFile)
	csv := "Symbol,totalEsg\n aapl ,72\nAAPL,72\nmsft,68\n,50\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	tickers, err := LoadTickers(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
}

func TestLoadTickersMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), data.RawEsgFile)
	require.NoError(t, os.WriteFile(path, []byte("Name,Score\nApple,72\n"), 0o644))

	_, err := LoadTickers(path)
	require.Error(t, err)
}

func TestFetchRiskFreeRateWithoutKeyUsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	outputFile := filepath.Join(dir, data.RawRiskFreeFile)
	require.NoError(t, os.WriteFile(outputFile, []byte("DATE,DGS3MO\n2024-01-02,5.0\n"), 0o644))

	err := FetchRiskFreeRate(context.Background(), "", "DGS3MO", "2023-09-01", "2024-08-31", outputFile)
	assert.NoError(t, err)
}

func TestFetchRiskFreeRateWithoutKeyOrFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), data.RawRiskFreeFile)

	err := FetchRiskFreeRate(context.Background(), "", "DGS3MO", "2023-09-01", "2024-08-31", outputFile)
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestDownloadKaggleDatasetWithoutCredentials(t *testing.T) {
	dir := t.TempDir()
	expected := []string{data.RawEsgFile, data.RawPriceFile}

	err := DownloadKaggleDataset(context.Background(), "", "", "owner/dataset", dir, expected)
	require.ErrorIs(t, err, ErrNoCredentials)

	// with the files already in place the stage proceeds
	for _, name := range expected {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("a,b\n1,2\n"), 0o644))
	}

	err = DownloadKaggleDataset(context.Background(), "", "", "owner/dataset", dir, expected)
	assert.NoError(t, err)
}

func TestHaveAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.csv"), []byte("x"), 0o644))

	assert.True(t, haveAll(dir, []string{"one.csv"}))
	assert.False(t, haveAll(dir, []string{"one.csv", "two.csv"}))
	assert.False(t, haveAll(dir, nil))
}
