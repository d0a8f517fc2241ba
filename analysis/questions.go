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
package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/penny-vault/esgfactor/table"
	"github.com/rs/zerolog/log"
)

// SignificanceLevel is the two-sided threshold used for all hypothesis tests.
const SignificanceLevel = 0.05

// Dataset is the loaded cross-sectional analysis file: one row per ticker
// with numeric regression variables and the per-run sector dummy columns.
type Dataset struct {
	Tickers      []string
	DummyColumns []string

	columns map[string][]float64
}

// nonNumericColumns are analysis-dataset columns never used as regression
// inputs.
var nonNumericColumns = map[string]bool{
	"Ticker": true,
	"Sector": true,
}

// LoadDataset reads the analysis file and parses every numeric column,
// discovering the sector dummy columns from the header.
func LoadDataset(path string) (*Dataset, error) {
	tbl, err := table.ReadCSV(path)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{columns: map[string][]float64{}}

	ds.Tickers, err = tbl.Strings("Ticker")
	if err != nil {
		return nil, err
	}

	for _, col := range tbl.Columns {
		if nonNumericColumns[col] {
			continue
		}

		vals, err := tbl.Floats(col)
		if err != nil {
			return nil, err
		}

		ds.columns[col] = vals

		if strings.HasPrefix(col, "Sector_") {
			ds.DummyColumns = append(ds.DummyColumns, col)
		}
	}

	log.Info().Str("File", path).Int("Tickers", len(ds.Tickers)).
		Int("SectorDummies", len(ds.DummyColumns)).Msg("analysis dataset loaded")

	return ds, nil
}

// Column returns a numeric column by name, or nil.
func (ds *Dataset) Column(name string) []float64 {
	return ds.columns[name]
}

// completeCases extracts the rows where the dependent and every predictor
// are present, returning the filtered vectors and the number dropped.
func (ds *Dataset) completeCases(dependent string, predictors []string) (y []float64, columns [][]float64, dropped int, err error) {
	depVals := ds.columns[dependent]
	if depVals == nil {
		return nil, nil, 0, fmt.Errorf("dependent column %s not in dataset", dependent)
	}

	predVals := make([][]float64, len(predictors))
	for jj, name := range predictors {
		predVals[jj] = ds.columns[name]
		if predVals[jj] == nil {
			return nil, nil, 0, fmt.Errorf("predictor column %s not in dataset", name)
		}
	}

	columns = make([][]float64, len(predictors))

	for ii := range depVals {
		complete := !math.IsNaN(depVals[ii])
		for _, vals := range predVals {
			if math.IsNaN(vals[ii]) {
				complete = false
				break
			}
		}

		if !complete {
			dropped++
			continue
		}

		y = append(y, depVals[ii])
		for jj := range predictors {
			columns[jj] = append(columns[jj], predVals[jj][ii])
		}
	}

	return y, columns, dropped, nil
}

// QuestionResult is one research question's fitted model plus its
// diagnostics and, when heteroskedasticity was detected, a robust refit.
type QuestionResult struct {
	ID    string
	Title string

	Model       *Model
	Robust      *Model
	Diagnostics *Diagnostics

	// KeyTerms are the hypothesis terms, excluding controls.
	KeyTerms []string

	Dropped int
}

// Significant reports whether any key term is significant, preferring the
// robust p-values when a robust refit exists.
func (qr *QuestionResult) Significant() bool {
	for _, term := range qr.KeyTerms {
		if _, pValue, ok := qr.inference().Coefficient(term); ok && pValue < SignificanceLevel {
			return true
		}
	}

	return false
}

// inference returns the model whose standard errors should be trusted.
func (qr *QuestionResult) inference() *Model {
	if qr.Robust != nil {
		return qr.Robust
	}

	return qr.Model
}

// DominantTerm returns the key term with the largest absolute coefficient.
func (qr *QuestionResult) DominantTerm() string {
	dominant := ""
	best := math.Inf(-1)

	for _, term := range qr.KeyTerms {
		if coef, _, ok := qr.Model.Coefficient(term); ok && math.Abs(coef) > best {
			best = math.Abs(coef)
			dominant = term
		}
	}

	return dominant
}

// Results collects every research question's outcome.
type Results struct {
	RQ1           *QuestionResult
	RQ2           *QuestionResult
	RQ3Sharpe     *QuestionResult
	RQ3Volatility *QuestionResult
}

// All returns the results in report order.
func (r *Results) All() []*QuestionResult {
	return []*QuestionResult{r.RQ1, r.RQ2, r.RQ3Sharpe, r.RQ3Volatility}
}

// RunResearchQuestions fits the four regressions: composite ESG against
// risk-adjusted performance, composite ESG against total risk, and the
// pillar decomposition of each. Controls are firm size and sector dummies
// throughout.
func RunResearchQuestions(ds *Dataset) (*Results, error) {
	controls := append([]string{"Log_Market_Cap"}, ds.DummyColumns...)
	pillars := []string{"Environment_Score", "Social_Score", "Governance_Score"}

	rq1, err := runQuestion(ds, "RQ1",
		"Does the composite ESG score explain risk-adjusted performance?",
		"Sharpe_Ratio", []string{"ESG_Score"}, controls)
	if err != nil {
		return nil, err
	}

	rq2, err := runQuestion(ds, "RQ2",
		"Does the composite ESG score explain total risk?",
		"Volatility", []string{"ESG_Score"}, controls)
	if err != nil {
		return nil, err
	}

	rq3s, err := runQuestion(ds, "RQ3-Sharpe",
		"Which ESG pillar drives risk-adjusted performance?",
		"Sharpe_Ratio", pillars, controls)
	if err != nil {
		return nil, err
	}

	rq3v, err := runQuestion(ds, "RQ3-Volatility",
		"Which ESG pillar drives total risk?",
		"Volatility", pillars, controls)
	if err != nil {
		return nil, err
	}

	return &Results{RQ1: rq1, RQ2: rq2, RQ3Sharpe: rq3s, RQ3Volatility: rq3v}, nil
}

func runQuestion(ds *Dataset, id, title, dependent string, keyTerms, controls []string) (*QuestionResult, error) {
	predictors := append(append([]string{}, keyTerms...), controls...)

	y, columns, dropped, err := ds.completeCases(dependent, predictors)
	if err != nil {
		return nil, err
	}

	if dropped > 0 {
		log.Info().Str("Question", id).Int("Dropped", dropped).
			Msg("rows with missing variables excluded from the regression")
	}

	model, err := FitOLS(fmt.Sprintf("%s: %s ~ %s", id, dependent, strings.Join(keyTerms, " + ")),
		dependent, y, predictors, columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}

	diag, err := RunDiagnostics(model)
	if err != nil {
		return nil, fmt.Errorf("%s diagnostics: %w", id, err)
	}

	result := &QuestionResult{
		ID:          id,
		Title:       title,
		Model:       model,
		Diagnostics: diag,
		KeyTerms:    keyTerms,
		Dropped:     dropped,
	}

	if diag.Heteroskedastic {
		result.Robust, err = model.WithRobustErrors(HC3)
		if err != nil {
			return nil, fmt.Errorf("%s robust refit: %w", id, err)
		}

		log.Info().Str("Question", id).Msg("heteroskedastic residuals, inference uses HC3 errors")
	}

	for _, term := range keyTerms {
		coef, pValue, _ := result.inference().Coefficient(term)
		log.Info().Str("Question", id).Str("Term", term).
			Float64("Coefficient", coef).Float64("PValue", pValue).
			Bool("Significant", pValue < SignificanceLevel).
			Msg("hypothesis term")
	}

	return result, nil
}
