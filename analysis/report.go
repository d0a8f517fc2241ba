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
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Report file names written under the report directory.
const (
	RQ1ResultsFile           = "rq1_results.txt"
	RQ2ResultsFile           = "rq2_results.txt"
	RQ3SharpeResultsFile     = "rq3_sharpe_results.txt"
	RQ3VolatilityResultsFile = "rq3_volatility_results.txt"
	SummaryFile              = "analysis_summary.txt"
)

// WriteReports renders one results file per research question plus the
// overall findings summary into reportDir.
func WriteReports(results *Results, reportDir string) error {
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return err
	}

	files := map[string]*QuestionResult{
		RQ1ResultsFile:           results.RQ1,
		RQ2ResultsFile:           results.RQ2,
		RQ3SharpeResultsFile:     results.RQ3Sharpe,
		RQ3VolatilityResultsFile: results.RQ3Volatility,
	}

	for name, qr := range files {
		path := filepath.Join(reportDir, name)
		if err := os.WriteFile(path, []byte(renderQuestion(qr)), 0o644); err != nil {
			return err
		}

		log.Info().Str("File", path).Msg("results written")
	}

	path := filepath.Join(reportDir, SummaryFile)
	if err := os.WriteFile(path, []byte(renderSummary(results)), 0o644); err != nil {
		return err
	}

	log.Info().Str("File", path).Msg("summary written")

	return nil
}

func renderQuestion(qr *QuestionResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s: %s\n\n", qr.ID, qr.Title)
	sb.WriteString(qr.Model.Summary())
	sb.WriteString("\n")

	if qr.Robust != nil {
		sb.WriteString("Heteroskedasticity detected; inference below uses HC3 robust errors.\n\n")
		sb.WriteString(qr.Robust.Summary())
		sb.WriteString("\n")
	}

	sb.WriteString(qr.Diagnostics.Summary())

	if qr.Dropped > 0 {
		fmt.Fprintf(&sb, "\nRows excluded for missing variables: %d\n", qr.Dropped)
	}

	return sb.String()
}

func renderSummary(results *Results) string {
	var sb strings.Builder

	sb.WriteString("ESG and Equity Risk: Findings Summary\n")
	sb.WriteString(strings.Repeat("=", 78) + "\n\n")

	for _, qr := range results.All() {
		fmt.Fprintf(&sb, "%s: %s\n", qr.ID, qr.Title)

		inference := qr.Model
		if qr.Robust != nil {
			inference = qr.Robust
		}

		for _, term := range qr.KeyTerms {
			coef, pValue, ok := inference.Coefficient(term)
			if !ok {
				continue
			}

			verdict := "not significant"
			if pValue < SignificanceLevel {
				verdict = "SIGNIFICANT"
				if coef > 0 {
					verdict += " (positive)"
				} else {
					verdict += " (negative)"
				}
			}

			fmt.Fprintf(&sb, "  %-24s coef=%+.6f  p=%.4f  %s\n", term, coef, pValue, verdict)
		}

		if len(qr.KeyTerms) > 1 {
			fmt.Fprintf(&sb, "  Largest pillar effect: %s\n", qr.DominantTerm())
		}

		fmt.Fprintf(&sb, "  N=%d  R-squared=%.4f  Adj=%.4f\n", qr.Model.N, qr.Model.RSquared, qr.Model.AdjRSquared)

		if qr.Robust != nil {
			sb.WriteString("  Inference uses HC3 robust standard errors.\n")
		}

		sb.WriteString("\n")
	}

	sb.WriteString("Interpretation notes:\n")
	sb.WriteString("  - Coefficients are cross-sectional associations, not causal effects.\n")
	sb.WriteString("  - Controls: log market cap and sector fixed effects (one-hot, first sector as baseline).\n")
	fmt.Fprintf(&sb, "  - Significance threshold: p < %.2f (two-sided).\n", SignificanceLevel)

	return sb.String()
}
