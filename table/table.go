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

// Package table holds a minimal column-named string matrix for CSV files
// whose schema is only known at runtime: raw vendor exports before the
// column resolver has run, and the analysis dataset with its per-run sector
// dummy columns. Fixed-schema artifacts use typed records instead.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrMissingFile   = errors.New("required input file is missing")
	ErrEmptyFile     = errors.New("file has no header row")
	ErrUnknownColumn = errors.New("unknown column")
	ErrRaggedRow     = errors.New("row length does not match header")
)

type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

func New(columns []string) *Table {
	return &Table{
		Columns: columns,
		Rows:    [][]string{},
		index:   buildIndex(columns),
	}
}

func buildIndex(columns []string) map[string]int {
	idx := make(map[string]int, len(columns))
	for ii, col := range columns {
		if _, ok := idx[col]; !ok {
			idx[col] = ii
		}
	}

	return idx
}

// ReadCSV loads an entire CSV file, header row first.
func ReadCSV(path string) (*Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}

		return nil, err
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	tbl := New(records[0])
	for _, row := range records[1:] {
		if len(row) != len(tbl.Columns) {
			// pad short rows; vendor exports sometimes truncate trailing
			// empty fields
			if len(row) < len(tbl.Columns) {
				padded := make([]string, len(tbl.Columns))
				copy(padded, row)
				row = padded
			} else {
				return nil, fmt.Errorf("%w: got %d fields, want %d", ErrRaggedRow, len(row), len(tbl.Columns))
			}
		}

		tbl.Rows = append(tbl.Rows, row)
	}

	return tbl, nil
}

// WriteCSV writes the table, creating parent directories as needed.
func (tbl *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	writer := csv.NewWriter(fh)
	if err := writer.Write(tbl.Columns); err != nil {
		return err
	}

	if err := writer.WriteAll(tbl.Rows); err != nil {
		return err
	}

	writer.Flush()

	return writer.Error()
}

func (tbl *Table) NumRows() int {
	return len(tbl.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (tbl *Table) ColumnIndex(name string) int {
	if tbl.index == nil {
		tbl.index = buildIndex(tbl.Columns)
	}

	if ii, ok := tbl.index[name]; ok {
		return ii
	}

	return -1
}

func (tbl *Table) HasColumn(name string) bool {
	return tbl.ColumnIndex(name) >= 0
}

// Strings returns the named column's raw values.
func (tbl *Table) Strings(name string) ([]string, error) {
	ii := tbl.ColumnIndex(name)
	if ii < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}

	vals := make([]string, len(tbl.Rows))
	for jj, row := range tbl.Rows {
		vals[jj] = row[ii]
	}

	return vals, nil
}

// Floats returns the named column parsed as float64. Empty fields and the
// FRED "." sentinel become NaN; any other unparseable value is an error.
func (tbl *Table) Floats(name string) ([]float64, error) {
	ii := tbl.ColumnIndex(name)
	if ii < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}

	vals := make([]float64, len(tbl.Rows))
	for jj, row := range tbl.Rows {
		field := strings.TrimSpace(row[ii])
		if field == "" || field == "." {
			vals[jj] = math.NaN()
			continue
		}

		val, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %w", name, jj, err)
		}

		vals[jj] = val
	}

	return vals, nil
}

// AppendRow adds a row; it must match the header width.
func (tbl *Table) AppendRow(row []string) error {
	if len(row) != len(tbl.Columns) {
		return fmt.Errorf("%w: got %d fields, want %d", ErrRaggedRow, len(row), len(tbl.Columns))
	}

	tbl.Rows = append(tbl.Rows, row)

	return nil
}

// FormatFloat renders a float the way the table stores numerics: NaN becomes
// an empty field.
func FormatFloat(val float64) string {
	if math.IsNaN(val) {
		return ""
	}

	return strconv.FormatFloat(val, 'f', -1, 64)
}
