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

func TestBreuschPaganDetectsHeteroskedasticity(t *testing.T) {
	// residual magnitude grows with x, the textbook case
	nn := 60
	x := make([]float64, nn)
	y := make([]float64, nn)

	for ii := 0; ii < nn; ii++ {
		x[ii] = float64(ii + 1)

		scale := 0.1
		if ii%2 == 1 {
			scale = -0.1
		}

		y[ii] = 1 + 0.5*x[ii] + scale*x[ii]
	}

	model, err := FitOLS("hetero", "y", y, []string{"x"}, [][]float64{x})
	require.NoError(t, err)

	lm, pValue, err := BreuschPagan(model)
	require.NoError(t, err)

	assert.Positive(t, lm)
	assert.Less(t, pValue, SignificanceLevel)
}

func TestBreuschPaganHomoskedastic(t *testing.T) {
	nn := 60
	x := make([]float64, nn)
	y := make([]float64, nn)

	for ii := 0; ii < nn; ii++ {
		x[ii] = float64(ii + 1)

		noise := 0.1
		if ii%2 == 1 {
			noise = -0.1
		}

		y[ii] = 1 + 0.5*x[ii] + noise
	}

	model, err := FitOLS("homo", "y", y, []string{"x"}, [][]float64{x})
	require.NoError(t, err)

	_, pValue, err := BreuschPagan(model)
	require.NoError(t, err)

	assert.Greater(t, pValue, SignificanceLevel)
}

func TestJarqueBeraSymmetricShortTails(t *testing.T) {
	// a symmetric, light-tailed sample should not reject normality strongly
	residuals := []float64{}
	for ii := 0; ii < 5; ii++ {
		residuals = append(residuals, -2, -1, 0, 1, 2)
	}

	jb, pValue := JarqueBera(residuals)

	assert.GreaterOrEqual(t, jb, 0.0)
	assert.Greater(t, pValue, SignificanceLevel)
}

func TestJarqueBeraSkewedSample(t *testing.T) {
	// one extreme outlier in an otherwise tight sample
	residuals := make([]float64, 100)
	for ii := range residuals {
		residuals[ii] = 0.01 * float64(ii%3-1)
	}
	residuals[99] = 50

	jb, pValue := JarqueBera(residuals)

	assert.Greater(t, jb, 10.0)
	assert.Less(t, pValue, SignificanceLevel)
}

func TestJarqueBeraDegenerate(t *testing.T) {
	jb, pValue := JarqueBera([]float64{0, 0, 0})
	assert.Zero(t, jb)
	assert.Equal(t, 1.0, pValue)
}

func TestVIFFlagsCollinearPredictors(t *testing.T) {
	nn := 40
	x1 := make([]float64, nn)
	x2 := make([]float64, nn)
	x3 := make([]float64, nn)
	y := make([]float64, nn)

	for ii := 0; ii < nn; ii++ {
		x1[ii] = float64(ii)

		jitter := 0.01
		if ii%2 == 1 {
			jitter = -0.01
		}

		x2[ii] = 2*x1[ii] + jitter
		x3[ii] = float64(ii % 5)
		y[ii] = x1[ii] + x3[ii] + jitter
	}

	model, err := FitOLS("collinear", "y", y, []string{"x1", "x2", "x3"}, [][]float64{x1, x2, x3})
	require.NoError(t, err)

	vifs, err := VIF(model)
	require.NoError(t, err)
	require.Len(t, vifs, 3)

	byTerm := map[string]float64{}
	for _, vif := range vifs {
		byTerm[vif.Term] = vif.VIF
	}

	assert.Greater(t, byTerm["x1"], vifProblematic)
	assert.Greater(t, byTerm["x2"], vifProblematic)
	assert.Less(t, byTerm["x3"], vifCaution)
}

func TestRunDiagnosticsRecommendations(t *testing.T) {
	nn := 60
	x := make([]float64, nn)
	y := make([]float64, nn)

	for ii := 0; ii < nn; ii++ {
		x[ii] = float64(ii + 1)

		scale := 0.1
		if ii%2 == 1 {
			scale = -0.1
		}

		y[ii] = 1 + 0.5*x[ii] + scale*x[ii]
	}

	model, err := FitOLS("hetero", "y", y, []string{"x"}, [][]float64{x})
	require.NoError(t, err)

	diag, err := RunDiagnostics(model)
	require.NoError(t, err)

	assert.True(t, diag.Heteroskedastic)
	require.NotEmpty(t, diag.Recommendations)
	assert.Contains(t, diag.Recommendations[0], "robust")

	summary := diag.Summary()
	assert.Contains(t, summary, "Breusch-Pagan")
	assert.Contains(t, summary, "Jarque-Bera")
}
