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
package data

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

var (
	ErrMissingFile     = errors.New("required input file is missing")
	ErrUnparseableDate = errors.New("could not parse date")
)

// Conventional file names for each stage artifact. Stages always read the
// prior stage's output under these names.
const (
	RawEsgFile         = "sp500_esg_data.csv"
	RawPriceFile       = "sp500_price_data.csv"
	RawIndexFile       = "sp500_index.csv"
	RawRiskFreeFile    = "DGS3MO.csv"
	RawCompanyInfoFile = "company_info.csv"

	EsgCleanedFile    = "esg_cleaned.csv"
	PricesCleanedFile = "prices_cleaned.csv"
	ReturnsFile       = "returns.csv"
	MarketReturnsFile = "market_returns.csv"
	RiskFreeRateFile  = "risk_free_rate.csv"
	PerformanceFile   = "performance_metrics.csv"
	RiskFile          = "risk_metrics.csv"

	MasterDatasetFile   = "master_dataset.csv"
	AnalysisDatasetFile = "analysis_dataset.csv"
)

// LoadCSV reads a whole typed CSV file. A missing file is reported as
// ErrMissingFile so callers can distinguish "run the earlier stage first"
// from a malformed file.
func LoadCSV[T any](path string) ([]*T, error) {
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}

		return nil, err
	}
	defer fh.Close()

	records := []*T{}
	if err := gocsv.UnmarshalFile(fh, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return records, nil
}

// SaveCSV writes a typed CSV file, creating parent directories as needed.
func SaveCSV[T any](path string, records []*T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	return gocsv.MarshalFile(&records, fh)
}
