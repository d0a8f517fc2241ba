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

// Package analysis fits the cross-sectional regressions that answer the
// research questions and runs the specification diagnostics on them.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrTooFewObservations = errors.New("not enough observations for the requested model")
	ErrSingularDesign     = errors.New("design matrix is singular or near-singular")
)

// Model holds a fitted ordinary least squares regression. The first
// coefficient is always the intercept.
type Model struct {
	Name      string
	Dependent string

	// Terms are the coefficient labels, "const" first.
	Terms        []string
	Coefficients []float64
	StdErrors    []float64
	TStats       []float64
	PValues      []float64

	N           int
	DFResidual  int
	RSquared    float64
	AdjRSquared float64
	FStat       float64
	FPValue     float64

	Fitted    []float64
	Residuals []float64

	design *mat.Dense
	xtxInv *mat.Dense
	y      []float64
}

// FitOLS regresses y on the named predictor columns with an intercept.
// Standard errors are the classical homoskedastic ones; FitRobust refits
// them with a sandwich estimator.
func FitOLS(name, dependent string, y []float64, predictors []string, columns [][]float64) (*Model, error) {
	nn := len(y)
	kk := len(predictors)
	pp := kk + 1

	if nn <= pp {
		return nil, fmt.Errorf("%w: %d observations for %d parameters", ErrTooFewObservations, nn, pp)
	}

	for _, col := range columns {
		if len(col) != nn {
			return nil, fmt.Errorf("predictor length %d does not match %d observations", len(col), nn)
		}
	}

	design := mat.NewDense(nn, pp, nil)
	for ii := 0; ii < nn; ii++ {
		design.Set(ii, 0, 1)
		for jj, col := range columns {
			design.Set(ii, jj+1, col[ii])
		}
	}

	var xtx mat.Dense
	xtx.Mul(design.T(), design)

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSingularDesign, err)
	}

	yVec := mat.NewVecDense(nn, y)

	var xty mat.VecDense
	xty.MulVec(design.T(), yVec)

	var beta mat.VecDense
	beta.MulVec(&xtxInv, &xty)

	var fittedVec mat.VecDense
	fittedVec.MulVec(design, &beta)

	fitted := make([]float64, nn)
	residuals := make([]float64, nn)
	rss := 0.0

	for ii := 0; ii < nn; ii++ {
		fitted[ii] = fittedVec.AtVec(ii)
		residuals[ii] = y[ii] - fitted[ii]
		rss += residuals[ii] * residuals[ii]
	}

	meanY := 0.0
	for _, val := range y {
		meanY += val
	}
	meanY /= float64(nn)

	tss := 0.0
	for _, val := range y {
		tss += (val - meanY) * (val - meanY)
	}

	dfResid := nn - pp
	sigma2 := rss / float64(dfResid)

	model := &Model{
		Name:         name,
		Dependent:    dependent,
		Terms:        append([]string{"const"}, predictors...),
		Coefficients: make([]float64, pp),
		StdErrors:    make([]float64, pp),
		TStats:       make([]float64, pp),
		PValues:      make([]float64, pp),
		N:            nn,
		DFResidual:   dfResid,
		Fitted:       fitted,
		Residuals:    residuals,
		design:       design,
		xtxInv:       &xtxInv,
		y:            y,
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dfResid)}

	for jj := 0; jj < pp; jj++ {
		model.Coefficients[jj] = beta.AtVec(jj)
		model.StdErrors[jj] = math.Sqrt(sigma2 * xtxInv.At(jj, jj))
		model.TStats[jj] = model.Coefficients[jj] / model.StdErrors[jj]
		model.PValues[jj] = 2 * tDist.Survival(math.Abs(model.TStats[jj]))
	}

	if tss > 0 {
		model.RSquared = 1 - rss/tss
	}

	model.AdjRSquared = 1 - (1-model.RSquared)*float64(nn-1)/float64(dfResid)

	if kk > 0 && model.RSquared < 1 {
		model.FStat = (model.RSquared / float64(kk)) / ((1 - model.RSquared) / float64(dfResid))
		fDist := distuv.F{D1: float64(kk), D2: float64(dfResid)}
		model.FPValue = fDist.Survival(model.FStat)
	}

	return model, nil
}

// Coefficient returns the estimate and p-value for a named term.
func (m *Model) Coefficient(term string) (coef, pValue float64, ok bool) {
	for ii, name := range m.Terms {
		if name == term {
			return m.Coefficients[ii], m.PValues[ii], true
		}
	}

	return 0, 0, false
}

// Leverages returns the hat-matrix diagonal h_ii = x_i (X'X)^-1 x_i'.
func (m *Model) Leverages() []float64 {
	nn := m.N
	pp := len(m.Terms)
	leverages := make([]float64, nn)

	for ii := 0; ii < nn; ii++ {
		row := m.design.RawRowView(ii)

		hii := 0.0
		for aa := 0; aa < pp; aa++ {
			for bb := 0; bb < pp; bb++ {
				hii += row[aa] * m.xtxInv.At(aa, bb) * row[bb]
			}
		}

		leverages[ii] = hii
	}

	return leverages
}

// RobustKind selects the heteroskedasticity-consistent covariance estimator.
type RobustKind string

const (
	// HC1 applies the n/(n-p) small-sample correction to White's estimator.
	HC1 RobustKind = "HC1"

	// HC3 weights each squared residual by 1/(1-h_ii)^2, the most
	// conservative of the common variants.
	HC3 RobustKind = "HC3"
)

// WithRobustErrors returns a copy of the model whose standard errors, t
// statistics and p-values use a sandwich covariance estimator. Coefficients
// and fit statistics are unchanged.
func (m *Model) WithRobustErrors(kind RobustKind) (*Model, error) {
	pp := len(m.Terms)

	weights := make([]float64, m.N)

	switch kind {
	case HC1:
		scale := float64(m.N) / float64(m.DFResidual)
		for ii, resid := range m.Residuals {
			weights[ii] = scale * resid * resid
		}
	case HC3:
		leverages := m.Leverages()
		for ii, resid := range m.Residuals {
			denom := 1 - leverages[ii]
			if denom <= 0 {
				return nil, fmt.Errorf("%w: leverage at or above 1", ErrSingularDesign)
			}

			weights[ii] = resid * resid / (denom * denom)
		}
	default:
		return nil, fmt.Errorf("unknown robust covariance kind %q", kind)
	}

	// meat = X' diag(w) X
	meat := mat.NewDense(pp, pp, nil)
	for ii := 0; ii < m.N; ii++ {
		row := m.design.RawRowView(ii)
		for aa := 0; aa < pp; aa++ {
			for bb := 0; bb < pp; bb++ {
				meat.Set(aa, bb, meat.At(aa, bb)+weights[ii]*row[aa]*row[bb])
			}
		}
	}

	var sandwich, tmp mat.Dense
	tmp.Mul(m.xtxInv, meat)
	sandwich.Mul(&tmp, m.xtxInv)

	robust := *m
	robust.Name = m.Name + " (" + string(kind) + ")"
	robust.StdErrors = make([]float64, pp)
	robust.TStats = make([]float64, pp)
	robust.PValues = make([]float64, pp)

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(m.DFResidual)}

	for jj := 0; jj < pp; jj++ {
		robust.StdErrors[jj] = math.Sqrt(sandwich.At(jj, jj))
		robust.TStats[jj] = robust.Coefficients[jj] / robust.StdErrors[jj]
		robust.PValues[jj] = 2 * tDist.Survival(math.Abs(robust.TStats[jj]))
	}

	return &robust, nil
}

// Summary renders the fit as a fixed-width text block suitable for the
// results files.
func (m *Model) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n", m.Name)
	fmt.Fprintf(&sb, "%s\n", strings.Repeat("=", 78))
	fmt.Fprintf(&sb, "Dependent variable: %s\n", m.Dependent)
	fmt.Fprintf(&sb, "Observations: %d    Df residuals: %d\n", m.N, m.DFResidual)
	fmt.Fprintf(&sb, "R-squared: %.4f    Adj. R-squared: %.4f\n", m.RSquared, m.AdjRSquared)
	fmt.Fprintf(&sb, "F-statistic: %.4f    Prob (F-statistic): %.4g\n", m.FStat, m.FPValue)
	fmt.Fprintf(&sb, "%s\n", strings.Repeat("-", 78))
	fmt.Fprintf(&sb, "%-28s %12s %12s %10s %10s\n", "", "coef", "std err", "t", "P>|t|")

	for ii, term := range m.Terms {
		fmt.Fprintf(&sb, "%-28s %12.6f %12.6f %10.4f %10.4f\n",
			term, m.Coefficients[ii], m.StdErrors[ii], m.TStats[ii], m.PValues[ii])
	}

	fmt.Fprintf(&sb, "%s\n", strings.Repeat("=", 78))

	return sb.String()
}
