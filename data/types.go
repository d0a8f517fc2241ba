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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TradingDaysPerYear is the annualization constant used throughout the
// pipeline. Fixed, not configurable.
const TradingDaysPerYear = 252

// Date is a calendar date carried through CSV files as YYYY-MM-DD. All dates
// are normalized to UTC midnight on load.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"01/02/2006",
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts the ISO-style encodings seen across the source files and
// normalizes to UTC midnight.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
		}
	}

	return Date{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
}

func (d Date) MarshalCSV() (string, error) {
	return d.Format("2006-01-02"), nil
}

func (d *Date) UnmarshalCSV(field string) error {
	parsed, err := ParseDate(field)
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// Float is a nullable numeric CSV field. Missing values round-trip as empty
// strings; FRED's "." sentinel also reads as missing.
type Float float64

func (f Float) IsNaN() bool {
	return math.IsNaN(float64(f))
}

func (f Float) MarshalCSV() (string, error) {
	if f.IsNaN() {
		return "", nil
	}

	return strconv.FormatFloat(float64(f), 'f', -1, 64), nil
}

func (f *Float) UnmarshalCSV(field string) error {
	field = strings.TrimSpace(field)
	if field == "" || field == "." {
		*f = Float(math.NaN())
		return nil
	}

	val, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return err
	}

	*f = Float(val)

	return nil
}

// MissingFloat returns the Float encoding of a missing observation.
func MissingFloat() Float {
	return Float(math.NaN())
}

// EsgRecord holds one company's cleaned ESG ratings. Ticker is unique within
// a cleaned file.
type EsgRecord struct {
	Ticker           string  `csv:"Ticker"`
	EsgScore         float64 `csv:"ESG_Score"`
	EnvironmentScore float64 `csv:"Environment_Score"`
	SocialScore      float64 `csv:"Social_Score"`
	GovernanceScore  float64 `csv:"Governance_Score"`
	Sector           string  `csv:"Sector"`
}

// EsgScores is the rating block shared by a company's records once the
// identity columns are stripped away.
type EsgScores struct {
	EsgScore         float64 `csv:"ESG_Score"`
	EnvironmentScore float64 `csv:"Environment_Score"`
	SocialScore      float64 `csv:"Social_Score"`
	GovernanceScore  float64 `csv:"Governance_Score"`
}

// PriceObservation is one ticker's prices on one trading day. Sources that
// only publish a closing price leave the remaining fields missing.
type PriceObservation struct {
	Date   Date    `csv:"Date"`
	Ticker string  `csv:"Ticker"`
	Open   Float   `csv:"Open"`
	High   Float   `csv:"High"`
	Low    Float   `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume Float   `csv:"Volume"`
}

// ReturnObservation is a daily return derived from consecutive closes. The
// first observation of each ticker's series has no prior close and is never
// written.
type ReturnObservation struct {
	Date   Date    `csv:"Date"`
	Ticker string  `csv:"Ticker"`
	Close  float64 `csv:"Close"`
	Return float64 `csv:"Return"`
}

// MarketReturnObservation is the benchmark index return for one trading day.
type MarketReturnObservation struct {
	Date         Date    `csv:"Date"`
	MarketReturn float64 `csv:"Market_Return"`
}

// RiskFreeRateObservation pairs the annualized benchmark rate with its
// trading-day equivalent: daily = (1+annual/100)^(1/252) - 1.
type RiskFreeRateObservation struct {
	Date        Date    `csv:"Date"`
	DailyRFRate float64 `csv:"Daily_RF_Rate"`
	AnnualRate  float64 `csv:"Annual_Rate"`
}

// CompanyInfo carries the per-ticker profile fetched from the market-data
// API. Fetch failures leave "Unknown" placeholders and a missing market cap.
type CompanyInfo struct {
	Ticker      string `csv:"Ticker"`
	CompanyName string `csv:"Company_Name"`
	Sector      string `csv:"Sector"`
	Industry    string `csv:"Industry"`
	MarketCap   Float  `csv:"Market_Cap"`
	Country     string `csv:"Country"`
}

// MasterRecord is the wide (ticker, date) row produced by the merge stage.
type MasterRecord struct {
	Ticker           string  `csv:"Ticker"`
	Date             Date    `csv:"Date"`
	Close            float64 `csv:"Close"`
	Return           float64 `csv:"Return"`
	EsgScore         float64 `csv:"ESG_Score"`
	EnvironmentScore float64 `csv:"Environment_Score"`
	SocialScore      float64 `csv:"Social_Score"`
	GovernanceScore  float64 `csv:"Governance_Score"`
	DailyRFRate      float64 `csv:"Daily_RF_Rate"`
	MarketReturn     Float   `csv:"Market_Return"`
	CompanyName      string  `csv:"Company_Name"`
	Sector           string  `csv:"Sector"`
	Industry         string  `csv:"Industry"`
	MarketCap        Float   `csv:"Market_Cap"`
	ExcessReturn     float64 `csv:"Excess_Return"`
}

// PerformanceMetrics collapses one ticker's daily series into performance
// statistics. Only tickers passing the minimum-sample gate appear.
type PerformanceMetrics struct {
	Ticker                 string  `csv:"Ticker"`
	TradingDays            int     `csv:"Trading_Days"`
	MeanDailyExcessReturn  float64 `csv:"Mean_Daily_Excess_Return"`
	AnnualizedExcessReturn float64 `csv:"Annualized_Excess_Return"`
	SharpeRatio            float64 `csv:"Sharpe_Ratio"`
	CumulativeReturn       float64 `csv:"Cumulative_Return"`
	AnnualizedReturn       float64 `csv:"Annualized_Return"`
	MeanDailyReturn        float64 `csv:"Mean_Daily_Return"`
}

// RiskMetrics collapses one ticker's daily series into risk statistics. Beta
// is missing when fewer than 100 paired market observations exist, downside
// deviation when the series has fewer than two losing days.
type RiskMetrics struct {
	Ticker            string  `csv:"Ticker"`
	Volatility        float64 `csv:"Volatility"`
	Beta              Float   `csv:"Beta"`
	DownsideDeviation Float   `csv:"Downside_Deviation"`
	ExcessReturnStd   float64 `csv:"Excess_Return_Std"`
	VaR5              float64 `csv:"VaR_5pct"`
	MaxDrawdown       float64 `csv:"Max_Drawdown"`
}

// ControlVariables carries the static regression controls for one ticker.
// Sector stays categorical here; one-hot encoding happens when the analysis
// dataset is assembled.
type ControlVariables struct {
	Ticker            string `csv:"Ticker"`
	MarketCapBillions Float  `csv:"Market_Cap_Billions"`
	LogMarketCap      Float  `csv:"Log_Market_Cap"`
	Sector            string `csv:"Sector"`
}
