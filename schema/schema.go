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

// Package schema maps vendor-specific column names onto the pipeline's
// logical fields. Each logical field declares an ordered alias list checked
// by exact match first, then a set of lower-cased substring patterns. All
// required fields are validated in one pass so the error names every column
// that could not be found, and a pattern that matches more than one column
// is an error rather than a silent first-wins pick.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Field declares how one logical field is located in a vendor header.
type Field struct {
	// Name is the logical field name used by the calling stage.
	Name string

	// Aliases are exact header matches tried in order.
	Aliases []string

	// Patterns are alternative substring sets; a column matches a pattern
	// when its lower-cased name contains every substring in the set.
	Patterns [][]string

	// Optional fields resolve to "" instead of failing the whole header.
	Optional bool
}

// Resolution maps logical field names to the actual column names found.
// Optional fields that did not resolve are absent from the map.
type Resolution map[string]string

// Column returns the resolved column for a logical field, or "".
func (res Resolution) Column(field string) string {
	return res[field]
}

// ResolutionError reports every required field that could not be bound,
// together with the header that was searched.
type ResolutionError struct {
	Missing   []string
	Ambiguous map[string][]string
	Available []string
}

func (err *ResolutionError) Error() string {
	var sb strings.Builder

	sb.WriteString("schema resolution failed:")

	if len(err.Missing) > 0 {
		fmt.Fprintf(&sb, " unmatched fields [%s]", strings.Join(err.Missing, ", "))
	}

	for _, field := range sortedKeys(err.Ambiguous) {
		fmt.Fprintf(&sb, " field %s matches multiple columns [%s]", field, strings.Join(err.Ambiguous[field], ", "))
	}

	fmt.Fprintf(&sb, "; available columns [%s]", strings.Join(err.Available, ", "))

	return sb.String()
}

// NewResolutionError reports fields a caller could not bind itself, for
// stages that add their own positional fallback on top of Resolve.
func NewResolutionError(missing, available []string) *ResolutionError {
	return &ResolutionError{
		Missing:   missing,
		Ambiguous: map[string][]string{},
		Available: available,
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Resolve binds every field against the header. It returns a
// *ResolutionError listing all unmatched required fields and all ambiguous
// pattern matches at once, so a mis-shaped vendor file is diagnosed in a
// single run.
func Resolve(columns []string, fields []Field) (Resolution, error) {
	res := make(Resolution, len(fields))
	resErr := &ResolutionError{
		Ambiguous: map[string][]string{},
		Available: columns,
	}

	for _, field := range fields {
		col, matches := resolveField(columns, field)

		switch {
		case len(matches) > 1:
			resErr.Ambiguous[field.Name] = matches
		case col != "":
			res[field.Name] = col
		case !field.Optional:
			resErr.Missing = append(resErr.Missing, field.Name)
		}
	}

	if len(resErr.Missing) > 0 || len(resErr.Ambiguous) > 0 {
		return nil, resErr
	}

	return res, nil
}

// resolveField returns the bound column name, or the full list of candidate
// columns when a pattern matched ambiguously.
func resolveField(columns []string, field Field) (string, []string) {
	for _, alias := range field.Aliases {
		for _, col := range columns {
			if col == alias {
				return col, nil
			}
		}
	}

	matches := []string{}
	for _, col := range columns {
		if matchesAny(col, field.Patterns) {
			matches = append(matches, col)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}

	if len(matches) > 1 {
		return "", matches
	}

	return "", nil
}

func matchesAny(column string, patterns [][]string) bool {
	lower := strings.ToLower(column)

	for _, pattern := range patterns {
		matched := len(pattern) > 0
		for _, substr := range pattern {
			if !strings.Contains(lower, substr) {
				matched = false
				break
			}
		}

		if matched {
			return true
		}
	}

	return false
}
