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
	"strconv"

	"github.com/penny-vault/esgfactor/data"
	"github.com/penny-vault/esgfactor/table"
	"github.com/rs/zerolog/log"
)

// AnalysisRow is one ticker's complete cross-sectional record: ESG scores,
// performance and risk statistics, and controls. The sector dummy columns
// are generated per run, so the assembled dataset is written through the
// dynamic table rather than a fixed struct.
type AnalysisRow struct {
	Ticker      string
	Esg         *data.EsgScores
	Performance *data.PerformanceMetrics
	Risk        *data.RiskMetrics
	Controls    *data.ControlVariables
}

// BuildAnalysisDataset inner-joins the per-ticker ESG scores from the master
// panel with the performance metrics, risk metrics and controls, one-hot
// encodes the sector, and writes the regression-ready cross-section.
func BuildAnalysisDataset(masterFile, performanceFile, riskFile, outputFile string) ([]*AnalysisRow, error) {
	records, err := data.LoadCSV[data.MasterRecord](masterFile)
	if err != nil {
		return nil, err
	}

	performance, err := data.LoadCSV[data.PerformanceMetrics](performanceFile)
	if err != nil {
		return nil, err
	}

	risk, err := data.LoadCSV[data.RiskMetrics](riskFile)
	if err != nil {
		return nil, err
	}

	controls, err := ComputeControls(masterFile)
	if err != nil {
		return nil, err
	}

	esgByTicker := map[string]*data.EsgScores{}
	for _, rec := range records {
		if _, ok := esgByTicker[rec.Ticker]; ok {
			continue
		}

		esgByTicker[rec.Ticker] = &data.EsgScores{
			EsgScore:         rec.EsgScore,
			EnvironmentScore: rec.EnvironmentScore,
			SocialScore:      rec.SocialScore,
			GovernanceScore:  rec.GovernanceScore,
		}
	}

	riskByTicker := make(map[string]*data.RiskMetrics, len(risk))
	for _, mm := range risk {
		riskByTicker[mm.Ticker] = mm
	}

	controlsByTicker := make(map[string]*data.ControlVariables, len(controls))
	for _, ctrl := range controls {
		controlsByTicker[ctrl.Ticker] = ctrl
	}

	// performance drives the join; it already carries the minimum-sample gate
	rows := make([]*AnalysisRow, 0, len(performance))
	droppedIncomplete := 0

	for _, perf := range performance {
		esg, hasEsg := esgByTicker[perf.Ticker]
		rm, hasRisk := riskByTicker[perf.Ticker]
		ctrl, hasCtrl := controlsByTicker[perf.Ticker]

		if !hasEsg || !hasRisk || !hasCtrl {
			droppedIncomplete++
			continue
		}

		rows = append(rows, &AnalysisRow{
			Ticker:      perf.Ticker,
			Esg:         esg,
			Performance: perf,
			Risk:        rm,
			Controls:    ctrl,
		})
	}

	if droppedIncomplete > 0 {
		log.Info().Int("Dropped", droppedIncomplete).
			Msg("tickers missing from one of the joined files excluded")
	}

	sectors := make([]string, len(rows))
	for ii, row := range rows {
		sectors[ii] = row.Controls.Sector
	}

	dummies := EncodeSectorDummies(sectors)
	if dummies.Baseline != "" {
		log.Info().Str("Baseline", dummies.Baseline).Int("DummyColumns", len(dummies.Columns)).
			Msg("sector one-hot encoding")
	}

	columns := []string{
		"Ticker",
		"ESG_Score", "Environment_Score", "Social_Score", "Governance_Score",
		"Trading_Days",
		"Mean_Daily_Excess_Return", "Annualized_Excess_Return", "Sharpe_Ratio",
		"Cumulative_Return", "Annualized_Return", "Mean_Daily_Return",
		"Volatility", "Beta", "Downside_Deviation", "Excess_Return_Std",
		"VaR_5pct", "Max_Drawdown",
		"Market_Cap_Billions", "Log_Market_Cap", "Sector",
	}
	columns = append(columns, dummies.Columns...)

	tbl := table.New(columns)

	for _, row := range rows {
		fields := []string{
			row.Ticker,
			table.FormatFloat(row.Esg.EsgScore),
			table.FormatFloat(row.Esg.EnvironmentScore),
			table.FormatFloat(row.Esg.SocialScore),
			table.FormatFloat(row.Esg.GovernanceScore),
			strconv.Itoa(row.Performance.TradingDays),
			table.FormatFloat(row.Performance.MeanDailyExcessReturn),
			table.FormatFloat(row.Performance.AnnualizedExcessReturn),
			table.FormatFloat(row.Performance.SharpeRatio),
			table.FormatFloat(row.Performance.CumulativeReturn),
			table.FormatFloat(row.Performance.AnnualizedReturn),
			table.FormatFloat(row.Performance.MeanDailyReturn),
			table.FormatFloat(row.Risk.Volatility),
			table.FormatFloat(float64(row.Risk.Beta)),
			table.FormatFloat(float64(row.Risk.DownsideDeviation)),
			table.FormatFloat(row.Risk.ExcessReturnStd),
			table.FormatFloat(row.Risk.VaR5),
			table.FormatFloat(row.Risk.MaxDrawdown),
			table.FormatFloat(float64(row.Controls.MarketCapBillions)),
			table.FormatFloat(float64(row.Controls.LogMarketCap)),
			row.Controls.Sector,
		}

		for _, val := range dummies.Row(row.Controls.Sector) {
			fields = append(fields, table.FormatFloat(val))
		}

		if err := tbl.AppendRow(fields); err != nil {
			return nil, err
		}
	}

	if err := tbl.WriteCSV(outputFile); err != nil {
		return nil, err
	}

	log.Info().Str("OutputFile", outputFile).Int("Tickers", len(rows)).
		Int("Columns", len(columns)).Msg("analysis dataset saved")

	return rows, nil
}
