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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyLine builds y = intercept + slope*x with small alternating residuals
// so the fit is well determined but not degenerate.
func noisyLine(nn int, intercept, slope float64) (x, y []float64) {
	x = make([]float64, nn)
	y = make([]float64, nn)

	for ii := 0; ii < nn; ii++ {
		x[ii] = float64(ii)

		noise := 0.05
		if ii%2 == 1 {
			noise = -0.05
		}

		y[ii] = intercept + slope*x[ii] + noise
	}

	return x, y
}

func TestFitOLSRecoversLine(t *testing.T) {
	x, y := noisyLine(40, 1.0, 2.0)

	model, err := FitOLS("test", "y", y, []string{"x"}, [][]float64{x})
	require.NoError(t, err)

	require.Equal(t, []string{"const", "x"}, model.Terms)
	assert.InDelta(t, 1.0, model.Coefficients[0], 0.1)
	assert.InDelta(t, 2.0, model.Coefficients[1], 0.01)

	assert.Greater(t, model.RSquared, 0.999)
	assert.Less(t, model.PValues[1], 0.001)
	assert.Positive(t, model.FStat)
	assert.Less(t, model.FPValue, 0.001)

	assert.Equal(t, 40, model.N)
	assert.Equal(t, 38, model.DFResidual)
	assert.Len(t, model.Residuals, 40)
}

func TestFitOLSTooFewObservations(t *testing.T) {
	_, err := FitOLS("test", "y", []float64{1, 2}, []string{"a", "b"},
		[][]float64{{1, 2}, {3, 4}})
	require.ErrorIs(t, err, ErrTooFewObservations)
}

func TestFitOLSSingularDesign(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	dup := []float64{2, 4, 6, 8, 10, 12}
	y := []float64{1, 2, 3, 4, 5, 6}

	_, err := FitOLS("test", "y", y, []string{"x", "dup"}, [][]float64{x, dup})
	require.ErrorIs(t, err, ErrSingularDesign)
}

func TestCoefficientLookup(t *testing.T) {
	x, y := noisyLine(30, 0.5, -1.0)

	model, err := FitOLS("test", "y", y, []string{"x"}, [][]float64{x})
	require.NoError(t, err)

	coef, pValue, ok := model.Coefficient("x")
	require.True(t, ok)
	assert.InDelta(t, -1.0, coef, 0.01)
	assert.Less(t, pValue, 0.001)

	_, _, ok = model.Coefficient("missing")
	assert.False(t, ok)
}

func TestWithRobustErrorsKeepsCoefficients(t *testing.T) {
	x, y := noisyLine(40, 1.0, 2.0)

	model, err := FitOLS("test", "y", y, []string{"x"}, [][]float64{x})
	require.NoError(t, err)

	for _, kind := range []RobustKind{HC1, HC3} {
		robust, err := model.WithRobustErrors(kind)
		require.NoError(t, err)

		assert.Equal(t, model.Coefficients, robust.Coefficients)
		assert.Equal(t, model.RSquared, robust.RSquared)
		assert.NotEqual(t, model.StdErrors[1], robust.StdErrors[1])
		assert.Positive(t, robust.StdErrors[1])
		assert.Contains(t, robust.Name, string(kind))
	}

	_, err = model.WithRobustErrors(RobustKind("HC9"))
	require.Error(t, err)
}

func TestLeveragesSumToParameterCount(t *testing.T) {
	x, y := noisyLine(25, 0.0, 1.0)

	model, err := FitOLS("test", "y", y, []string{"x"}, [][]float64{x})
	require.NoError(t, err)

	total := 0.0
	for _, hii := range model.Leverages() {
		assert.GreaterOrEqual(t, hii, 0.0)
		total += hii
	}

	// trace of the hat matrix equals the number of parameters
	assert.InDelta(t, 2.0, total, 1e-9)
}

func TestSummaryContainsTerms(t *testing.T) {
	x, y := noisyLine(30, 1.0, 2.0)

	model, err := FitOLS("excess return model", "Annualized_Excess_Return", y, []string{"ESG_Score"}, [][]float64{x})
	require.NoError(t, err)

	summary := model.Summary()
	assert.Contains(t, summary, "excess return model")
	assert.Contains(t, summary, "Annualized_Excess_Return")
	assert.Contains(t, summary, "ESG_Score")
	assert.Contains(t, summary, "R-squared")
}
