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

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// vifProblematic flags predictors whose variance inflation indicates
	// serious multicollinearity; vifCaution marks the watch zone below it.
	vifProblematic = 10.0
	vifCaution     = 5.0
)

// VIFResult pairs a predictor with its variance inflation factor.
type VIFResult struct {
	Term string
	VIF  float64
}

// Diagnostics bundles the specification checks run on a fitted model.
type Diagnostics struct {
	ModelName string

	BreuschPaganLM     float64
	BreuschPaganPValue float64
	Heteroskedastic    bool

	JarqueBera       float64
	JarqueBeraPValue float64
	NonNormal        bool

	VIFs []VIFResult

	Recommendations []string
}

// BreuschPagan tests the residuals for heteroskedasticity by regressing the
// squared residuals on the original design. The LM statistic n*R² is
// chi-squared with one degree of freedom per predictor.
func BreuschPagan(m *Model) (lm, pValue float64, err error) {
	kk := len(m.Terms) - 1
	if kk < 1 {
		return 0, 1, fmt.Errorf("%w: no predictors to test", ErrTooFewObservations)
	}

	sqResiduals := make([]float64, m.N)
	for ii, resid := range m.Residuals {
		sqResiduals[ii] = resid * resid
	}

	columns := make([][]float64, kk)
	for jj := 0; jj < kk; jj++ {
		col := make([]float64, m.N)
		for ii := 0; ii < m.N; ii++ {
			col[ii] = m.design.At(ii, jj+1)
		}

		columns[jj] = col
	}

	aux, err := FitOLS("breusch-pagan auxiliary", "squared residuals", sqResiduals, m.Terms[1:], columns)
	if err != nil {
		return 0, 0, err
	}

	lm = float64(m.N) * aux.RSquared
	chi := distuv.ChiSquared{K: float64(kk)}

	return lm, chi.Survival(lm), nil
}

// JarqueBera tests the residuals for normality from their sample skewness
// and kurtosis. The statistic is chi-squared with two degrees of freedom.
func JarqueBera(residuals []float64) (jb, pValue float64) {
	nn := float64(len(residuals))
	if nn < 3 {
		return 0, 1
	}

	mean := 0.0
	for _, val := range residuals {
		mean += val
	}
	mean /= nn

	var m2, m3, m4 float64
	for _, val := range residuals {
		dd := val - mean
		m2 += dd * dd
		m3 += dd * dd * dd
		m4 += dd * dd * dd * dd
	}

	m2 /= nn
	m3 /= nn
	m4 /= nn

	if m2 == 0 {
		return 0, 1
	}

	skew := m3 / math.Pow(m2, 1.5)
	kurt := m4 / (m2 * m2)

	jb = nn / 6 * (skew*skew + (kurt-3)*(kurt-3)/4)
	chi := distuv.ChiSquared{K: 2}

	return jb, chi.Survival(jb)
}

// VIF computes the variance inflation factor of every predictor in the model
// by regressing it on the remaining predictors. A perfectly collinear
// predictor reports +Inf.
func VIF(m *Model) ([]VIFResult, error) {
	kk := len(m.Terms) - 1
	if kk < 2 {
		return nil, nil
	}

	columns := make([][]float64, kk)
	for jj := 0; jj < kk; jj++ {
		col := make([]float64, m.N)
		for ii := 0; ii < m.N; ii++ {
			col[ii] = m.design.At(ii, jj+1)
		}

		columns[jj] = col
	}

	results := make([]VIFResult, 0, kk)

	for jj := 0; jj < kk; jj++ {
		others := make([][]float64, 0, kk-1)
		names := make([]string, 0, kk-1)

		for ll := 0; ll < kk; ll++ {
			if ll == jj {
				continue
			}

			others = append(others, columns[ll])
			names = append(names, m.Terms[ll+1])
		}

		aux, err := FitOLS("vif auxiliary", m.Terms[jj+1], columns[jj], names, others)
		if err != nil {
			return nil, err
		}

		vif := math.Inf(1)
		if aux.RSquared < 1 {
			vif = 1 / (1 - aux.RSquared)
		}

		results = append(results, VIFResult{Term: m.Terms[jj+1], VIF: vif})
	}

	return results, nil
}

// RunDiagnostics executes the full specification check battery on a fitted
// model and derives the remediation recommendations.
func RunDiagnostics(m *Model) (*Diagnostics, error) {
	diag := &Diagnostics{ModelName: m.Name}

	lm, pValue, err := BreuschPagan(m)
	if err != nil {
		return nil, err
	}

	diag.BreuschPaganLM = lm
	diag.BreuschPaganPValue = pValue
	diag.Heteroskedastic = pValue < SignificanceLevel

	diag.JarqueBera, diag.JarqueBeraPValue = JarqueBera(m.Residuals)
	diag.NonNormal = diag.JarqueBeraPValue < SignificanceLevel

	diag.VIFs, err = VIF(m)
	if err != nil {
		return nil, err
	}

	if diag.Heteroskedastic {
		diag.Recommendations = append(diag.Recommendations,
			"Residuals are heteroskedastic (Breusch-Pagan p < 0.05); report HC1 or HC3 robust standard errors.")
	}

	if diag.NonNormal {
		diag.Recommendations = append(diag.Recommendations,
			"Residuals depart from normality (Jarque-Bera p < 0.05); with this sample size the coefficient inference remains usable, but treat marginal p-values with care.")
	}

	for _, vif := range diag.VIFs {
		switch {
		case vif.VIF > vifProblematic:
			diag.Recommendations = append(diag.Recommendations,
				fmt.Sprintf("%s has VIF %.1f (> %.0f): serious multicollinearity; consider dropping or combining predictors.", vif.Term, vif.VIF, vifProblematic))
		case vif.VIF > vifCaution:
			diag.Recommendations = append(diag.Recommendations,
				fmt.Sprintf("%s has VIF %.1f (%.0f-%.0f): moderate multicollinearity worth monitoring.", vif.Term, vif.VIF, vifCaution, vifProblematic))
		}
	}

	if len(diag.Recommendations) == 0 {
		diag.Recommendations = append(diag.Recommendations, "No specification problems detected.")
	}

	log.Info().Str("Model", m.Name).
		Float64("BreuschPaganP", diag.BreuschPaganPValue).
		Float64("JarqueBeraP", diag.JarqueBeraPValue).
		Bool("Heteroskedastic", diag.Heteroskedastic).
		Msg("diagnostics complete")

	return diag, nil
}

// Summary renders the diagnostics as a text block for the results files.
func (diag *Diagnostics) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Diagnostics: %s\n", diag.ModelName)
	fmt.Fprintf(&sb, "%s\n", strings.Repeat("-", 78))
	fmt.Fprintf(&sb, "Breusch-Pagan LM: %.4f (p=%.4g)  heteroskedastic: %t\n",
		diag.BreuschPaganLM, diag.BreuschPaganPValue, diag.Heteroskedastic)
	fmt.Fprintf(&sb, "Jarque-Bera: %.4f (p=%.4g)  non-normal residuals: %t\n",
		diag.JarqueBera, diag.JarqueBeraPValue, diag.NonNormal)

	if len(diag.VIFs) > 0 {
		sb.WriteString("Variance inflation factors:\n")
		for _, vif := range diag.VIFs {
			fmt.Fprintf(&sb, "  %-28s %8.2f\n", vif.Term, vif.VIF)
		}
	}

	sb.WriteString("Recommendations:\n")
	for _, rec := range diag.Recommendations {
		fmt.Fprintf(&sb, "  - %s\n", rec)
	}

	return sb.String()
}
