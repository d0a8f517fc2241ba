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
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/penny-vault/esgfactor/data"
	"github.com/penny-vault/esgfactor/schema"
	"github.com/penny-vault/esgfactor/table"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	yahooChartURL        = "https://query1.finance.yahoo.com/v8/finance/chart/%s"
	yahooQuoteSummaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary/%s"

	yahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
)

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []json.RawMessage `json:"result"`
		Error  *yahooError       `json:"error"`
	} `json:"quoteSummary"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type quoteSummaryModules struct {
	AssetProfile struct {
		Sector   string `json:"sector"`
		Industry string `json:"industry"`
		Country  string `json:"country"`
	} `json:"assetProfile"`
	Price struct {
		LongName  string `json:"longName"`
		ShortName string `json:"shortName"`
		MarketCap struct {
			Raw float64 `json:"raw"`
		} `json:"marketCap"`
	} `json:"price"`
}

// FetchIndex downloads daily OHLCV bars for the benchmark index over the
// analysis window and writes them as a raw CSV.
func FetchIndex(ctx context.Context, symbol string, startDate, endDate data.Date, outputFile string) error {
	logger := zerolog.Ctx(ctx)

	var resp chartResponse

	client := resty.New().SetHeader("User-Agent", yahooUserAgent)
	req, err := client.R().
		SetContext(ctx).
		SetQueryParam("period1", fmt.Sprintf("%d", startDate.Unix())).
		SetQueryParam("period2", fmt.Sprintf("%d", endDate.Add(24*time.Hour).Unix())).
		SetQueryParam("interval", "1d").
		SetQueryParam("events", "history").
		SetResult(&resp).
		Get(fmt.Sprintf(yahooChartURL, symbol))

	if err != nil {
		logger.Error().Err(err).Str("Symbol", symbol).Msg("downloading index history failed")
		return err
	}

	if req.StatusCode() >= 300 {
		logger.Error().Int("StatusCode", req.StatusCode()).Str("Symbol", symbol).
			Msg("index history request returned error status code")
		return fmt.Errorf("chart api returned status %d for %s", req.StatusCode(), symbol)
	}

	if resp.Chart.Error != nil {
		logger.Error().Str("Code", resp.Chart.Error.Code).Str("Description", resp.Chart.Error.Description).
			Msg("chart api returned an error")
		return fmt.Errorf("chart api error for %s: %s", symbol, resp.Chart.Error.Code)
	}

	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return fmt.Errorf("chart api returned no data for %s", symbol)
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	tbl := table.New([]string{"Date", "Open", "High", "Low", "Close", "Volume"})
	for ii, ts := range result.Timestamp {
		day := time.Unix(ts, 0).UTC().Format("2006-01-02")

		if err := tbl.AppendRow([]string{
			day,
			formatOptional(quote.Open, ii),
			formatOptional(quote.High, ii),
			formatOptional(quote.Low, ii),
			formatOptional(quote.Close, ii),
			formatOptional(quote.Volume, ii),
		}); err != nil {
			return err
		}
	}

	if err := tbl.WriteCSV(outputFile); err != nil {
		return err
	}

	logger.Info().Str("Symbol", symbol).Int("Bars", tbl.NumRows()).
		Str("OutputFile", outputFile).Msg("index history downloaded")

	return nil
}

func formatOptional(vals []*float64, idx int) string {
	if idx >= len(vals) || vals[idx] == nil {
		return ""
	}

	return table.FormatFloat(*vals[idx])
}

// FetchCompanyProfiles downloads each ticker's profile (name, sector,
// industry, market cap, country). Failed tickers get an Unknown placeholder
// row so the merge stage still finds every ticker. rateLimit is requests per
// minute.
func FetchCompanyProfiles(ctx context.Context, tickers []string, rateLimit int, outputFile string) ([]*data.CompanyInfo, error) {
	logger := zerolog.Ctx(ctx)

	client := resty.New().SetHeader("User-Agent", yahooUserAgent)
	limiter := rate.NewLimiter(rate.Limit(float64(rateLimit)/float64(61)), 1)
	sometimes := rate.Sometimes{Interval: 15 * time.Second}
	started := time.Now()

	infos := make([]*data.CompanyInfo, 0, len(tickers))
	failures := 0

	for idx, ticker := range tickers {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		info, err := fetchCompanyProfile(ctx, client, ticker)
		if err != nil {
			logger.Warn().Err(err).Str("Ticker", ticker).Msg("profile fetch failed, writing placeholder")

			failures++
			info = &data.CompanyInfo{
				Ticker:      ticker,
				CompanyName: "Unknown",
				Sector:      "Unknown",
				Industry:    "Unknown",
				MarketCap:   data.MissingFloat(),
				Country:     "Unknown",
			}
		}

		infos = append(infos, info)

		sometimes.Do(func() {
			perItem := time.Since(started) / time.Duration(idx+1)
			timeLeft := perItem * time.Duration(len(tickers)-idx)
			logger.Info().Int("Completed", idx+1).Int("Remaining", len(tickers)-idx-1).
				Str("ETA", timeLeft.Round(time.Second).String()).Msg("company profile progress")
		})
	}

	if failures > 0 {
		logger.Warn().Int("Failures", failures).Int("Total", len(tickers)).
			Msg("some company profiles could not be fetched")
	}

	if err := data.SaveCSV(outputFile, infos); err != nil {
		return nil, err
	}

	logger.Info().Str("OutputFile", outputFile).Int("Profiles", len(infos)).Msg("company profiles saved")

	return infos, nil
}

func fetchCompanyProfile(ctx context.Context, client *resty.Client, ticker string) (*data.CompanyInfo, error) {
	var resp quoteSummaryResponse

	req, err := client.R().
		SetContext(ctx).
		SetQueryParam("modules", "assetProfile,price").
		SetResult(&resp).
		Get(fmt.Sprintf(yahooQuoteSummaryURL, ticker))

	if err != nil {
		return nil, err
	}

	if req.StatusCode() >= 300 {
		return nil, fmt.Errorf("quote summary returned status %d", req.StatusCode())
	}

	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quote summary error: %s", resp.QuoteSummary.Error.Code)
	}

	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("quote summary returned no result")
	}

	var modules quoteSummaryModules
	if err := json.Unmarshal(resp.QuoteSummary.Result[0], &modules); err != nil {
		return nil, err
	}

	info := &data.CompanyInfo{
		Ticker:      ticker,
		CompanyName: modules.Price.LongName,
		Sector:      modules.AssetProfile.Sector,
		Industry:    modules.AssetProfile.Industry,
		MarketCap:   data.MissingFloat(),
		Country:     modules.AssetProfile.Country,
	}

	if info.CompanyName == "" {
		info.CompanyName = modules.Price.ShortName
	}

	if info.CompanyName == "" {
		info.CompanyName = "Unknown"
	}

	if info.Sector == "" {
		info.Sector = "Unknown"
	}

	if info.Industry == "" {
		info.Industry = "Unknown"
	}

	if info.Country == "" {
		info.Country = "Unknown"
	}

	if modules.Price.MarketCap.Raw > 0 {
		info.MarketCap = data.Float(modules.Price.MarketCap.Raw)
	}

	return info, nil
}

var tickerOnlyFields = []schema.Field{
	{
		Name:    "ticker",
		Aliases: []string{"Ticker", "Symbol", "ticker", "symbol", "TICKER", "SYMBOL"},
	},
}

// LoadTickers extracts the distinct tickers from a raw ESG export so the
// profile fetcher knows which companies the analysis covers.
func LoadTickers(esgFile string) ([]string, error) {
	tbl, err := table.ReadCSV(esgFile)
	if err != nil {
		return nil, err
	}

	res, err := schema.Resolve(tbl.Columns, tickerOnlyFields)
	if err != nil {
		return nil, err
	}

	raw, err := tbl.Strings(res.Column("ticker"))
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	tickers := []string{}

	for _, ticker := range raw {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" || seen[ticker] {
			continue
		}

		seen[ticker] = true
		tickers = append(tickers, ticker)
	}

	return tickers, nil
}
