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
	"errors"
	"math"
	"sort"

	"github.com/penny-vault/esgfactor/data"
	"github.com/rs/zerolog/log"
)

// MergeInputs names the stage artifacts combined into the master dataset.
// Returns and ESG are required; the remaining files degrade to documented
// fallbacks when absent.
type MergeInputs struct {
	ReturnsFile      string
	EsgFile          string
	RiskFreeFile     string
	MarketFile       string
	CompanyInfoFile  string
	MasterOutputFile string
}

// MergeAll joins the per-stage artifacts into one (ticker, date) panel:
// returns inner-joined with ESG scores on ticker, then left-joined with the
// risk-free rate, market return and company profile. Excess return is
// computed last so it reflects whatever risk-free series was available.
func MergeAll(inputs MergeInputs) ([]*data.MasterRecord, error) {
	returns, err := data.LoadCSV[data.ReturnObservation](inputs.ReturnsFile)
	if err != nil {
		return nil, err
	}

	esgRecords, err := data.LoadCSV[data.EsgRecord](inputs.EsgFile)
	if err != nil {
		return nil, err
	}

	log.Info().Int("ReturnRows", len(returns)).Int("EsgCompanies", len(esgRecords)).
		Msg("merging datasets")

	esgByTicker := make(map[string]*data.EsgRecord, len(esgRecords))
	for _, rec := range esgRecords {
		if _, ok := esgByTicker[rec.Ticker]; !ok {
			esgByTicker[rec.Ticker] = rec
		}
	}

	rfByDate, err := loadRiskFree(inputs.RiskFreeFile)
	if err != nil {
		return nil, err
	}

	marketByDate, err := loadMarketReturns(inputs.MarketFile)
	if err != nil {
		return nil, err
	}

	infoByTicker, err := loadCompanyInfo(inputs.CompanyInfoFile)
	if err != nil {
		return nil, err
	}

	records := make([]*data.MasterRecord, 0, len(returns))
	droppedNoEsg := 0
	missingRF := 0
	missingMarket := 0
	missingInfo := 0

	for _, obs := range returns {
		esg, ok := esgByTicker[obs.Ticker]
		if !ok {
			droppedNoEsg++
			continue
		}

		rec := &data.MasterRecord{
			Ticker:           obs.Ticker,
			Date:             obs.Date,
			Close:            obs.Close,
			Return:           obs.Return,
			EsgScore:         esg.EsgScore,
			EnvironmentScore: esg.EnvironmentScore,
			SocialScore:      esg.SocialScore,
			GovernanceScore:  esg.GovernanceScore,
			CompanyName:      "Unknown",
			Sector:           esg.Sector,
			Industry:         "Unknown",
			MarketCap:        data.MissingFloat(),
			MarketReturn:     data.MissingFloat(),
		}

		if rec.Sector == "" {
			rec.Sector = "Unknown"
		}

		if rf, ok := rfByDate[obs.Date.Unix()]; ok {
			rec.DailyRFRate = rf
		} else {
			missingRF++
		}

		if mkt, ok := marketByDate[obs.Date.Unix()]; ok {
			rec.MarketReturn = data.Float(mkt)
		} else {
			missingMarket++
		}

		if info, ok := infoByTicker[obs.Ticker]; ok {
			if info.CompanyName != "" {
				rec.CompanyName = info.CompanyName
			}
			if info.Sector != "" {
				rec.Sector = info.Sector
			}
			if info.Industry != "" {
				rec.Industry = info.Industry
			}
			rec.MarketCap = info.MarketCap
		} else {
			missingInfo++
		}

		rec.ExcessReturn = rec.Return - rec.DailyRFRate

		records = append(records, rec)
	}

	if droppedNoEsg > 0 {
		log.Info().Int("Dropped", droppedNoEsg).Msg("return rows without an ESG rating dropped (inner join)")
	}

	if missingRF > 0 {
		log.Warn().Int("Rows", missingRF).Msg("rows without a risk-free observation default to a zero rate")
	}

	if missingMarket > 0 {
		log.Warn().Int("Rows", missingMarket).Msg("rows without a market return stay missing")
	}

	if missingInfo > 0 {
		log.Warn().Int("Rows", missingInfo).Msg("rows without a company profile carry Unknown placeholders")
	}

	// drop rows carrying infinities before anything downstream consumes them
	clean := records[:0]
	droppedInf := 0

	for _, rec := range records {
		if math.IsInf(rec.Return, 0) || math.IsInf(rec.ExcessReturn, 0) || math.IsInf(rec.Close, 0) {
			droppedInf++
			continue
		}

		clean = append(clean, rec)
	}

	records = clean

	if droppedInf > 0 {
		log.Info().Int("Dropped", droppedInf).Msg("removed rows with infinite values")
	}

	sort.SliceStable(records, func(ii, jj int) bool {
		if records[ii].Ticker != records[jj].Ticker {
			return records[ii].Ticker < records[jj].Ticker
		}

		return records[ii].Date.Before(records[jj].Date.Time)
	})

	// one row per (ticker, date)
	deduped := records[:0]
	seen := map[string]map[int64]bool{}
	duplicates := 0

	for _, rec := range records {
		dates, ok := seen[rec.Ticker]
		if !ok {
			dates = map[int64]bool{}
			seen[rec.Ticker] = dates
		}

		key := rec.Date.Unix()
		if dates[key] {
			duplicates++
			continue
		}

		dates[key] = true
		deduped = append(deduped, rec)
	}

	records = deduped

	if duplicates > 0 {
		log.Info().Int("Duplicates", duplicates).Msg("removed duplicate ticker-date rows")
	}

	tickerSet := map[string]bool{}
	for _, rec := range records {
		tickerSet[rec.Ticker] = true
	}

	log.Info().Int("Records", len(records)).Int("Tickers", len(tickerSet)).Msg("master dataset assembled")

	if err := data.SaveCSV(inputs.MasterOutputFile, records); err != nil {
		return nil, err
	}

	log.Info().Str("OutputFile", inputs.MasterOutputFile).Msg("master dataset saved")

	return records, nil
}

func loadRiskFree(path string) (map[int64]float64, error) {
	observations, err := data.LoadCSV[data.RiskFreeRateObservation](path)
	if err != nil {
		if errors.Is(err, data.ErrMissingFile) {
			log.Warn().Str("File", path).Msg("risk-free rate file missing, assuming a zero rate")
			return map[int64]float64{}, nil
		}

		return nil, err
	}

	byDate := make(map[int64]float64, len(observations))
	for _, obs := range observations {
		byDate[obs.Date.Unix()] = obs.DailyRFRate
	}

	return byDate, nil
}

func loadMarketReturns(path string) (map[int64]float64, error) {
	observations, err := data.LoadCSV[data.MarketReturnObservation](path)
	if err != nil {
		if errors.Is(err, data.ErrMissingFile) {
			log.Warn().Str("File", path).Msg("market return file missing, beta will be unavailable")
			return map[int64]float64{}, nil
		}

		return nil, err
	}

	byDate := make(map[int64]float64, len(observations))
	for _, obs := range observations {
		byDate[obs.Date.Unix()] = obs.MarketReturn
	}

	return byDate, nil
}

func loadCompanyInfo(path string) (map[string]*data.CompanyInfo, error) {
	infos, err := data.LoadCSV[data.CompanyInfo](path)
	if err != nil {
		if errors.Is(err, data.ErrMissingFile) {
			log.Warn().Str("File", path).Msg("company profile file missing, size and sector controls will be incomplete")
			return map[string]*data.CompanyInfo{}, nil
		}

		return nil, err
	}

	byTicker := make(map[string]*data.CompanyInfo, len(infos))
	for _, info := range infos {
		if _, ok := byTicker[info.Ticker]; !ok {
			byTicker[info.Ticker] = info
		}
	}

	return byTicker, nil
}
