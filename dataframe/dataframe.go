// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package dataframe

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

// AsMap creates a map with the index as the key and the specified column as the value
func (df *DataFrame[T]) AsMap(colName string) map[T]float64 {
	res := make(map[T]float64, df.Len())
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		// column does not exist, return empty map
		return res
	}

	for idx, rowKey := range df.Index {
		res[rowKey] = df.Vals[colIdx][idx]
	}

	return res
}

// Col returns the values of the named column or nil if the column doesn't exist
func (df *DataFrame[T]) Col(colName string) []float64 {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return nil
	}
	return df.Vals[colIdx]
}

// ColIndex returns the index of the specified column; -1 if column doesn't exist
func (df *DataFrame[T]) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}

	return -1
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame[T]) ColCount() int {
	return len(df.ColNames)
}

// Drop removes every row that contains `val` in any column. Passing NaN
// removes rows with a missing value.
func (df *DataFrame[T]) Drop(val float64) *DataFrame[T] {
	isNA := math.IsNaN(val)
	matches := func(x float64) bool {
		if isNA {
			return math.IsNaN(x)
		}
		return x == val
	}

	newVals := make([][]float64, len(df.Vals))
	newIndex := make([]T, 0, len(df.Index))

	for rowIdx, rowKey := range df.Index {
		keep := true
		for _, col := range df.Vals {
			if matches(col[rowIdx]) {
				keep = false
				break
			}
		}

		if keep {
			newIndex = append(newIndex, rowKey)
			for colIdx, col := range df.Vals {
				newVals[colIdx] = append(newVals[colIdx], col[rowIdx])
			}
		}
	}

	df.Vals = newVals
	df.Index = newIndex
	return df
}

// Start returns the first date of the dataframe; the zero time if the index is not a date
func (df *DataFrame[T]) Start() time.Time {
	if len(df.Index) == 0 {
		return time.Time{}
	}

	dt, _ := indexTime(df.Index[0])
	return dt
}

// End returns the last date of the dataframe; the zero time if the index is not a date
func (df *DataFrame[T]) End() time.Time {
	if len(df.Index) == 0 {
		return time.Time{}
	}

	dt, _ := indexTime(df.Index[len(df.Index)-1])
	return dt
}

// checkOrder panics if idx is a date that is not after the last date in the dataframe
func (df *DataFrame[T]) checkOrder(idx T) {
	if len(df.Index) == 0 {
		return
	}

	if last, ok := indexTime(df.Index[len(df.Index)-1]); ok {
		newDate, _ := indexTime(idx)
		if !last.Before(newDate) {
			log.Panic().Time("LastDate", last).Time("NewDate", newDate).Msg("new date must be after last date")
		}
	}
}

// InsertRow adds a new row to the dataframe. Dates must be increasing and vals must equal the number
// of columns. If either of these conditions are not met then panic
func (df *DataFrame[T]) InsertRow(idx T, vals ...float64) *DataFrame[T] {
	df.checkOrder(idx)

	if len(vals) != len(df.ColNames) {
		log.Panic().Int("NumValsPassed", len(vals)).Int("NumColumns", len(df.ColNames)).Msg("number of vals passed must equal number of columns")
	}

	df.Index = append(df.Index, idx)
	for colIdx := range df.ColNames {
		df.Vals[colIdx] = append(df.Vals[colIdx], vals[colIdx])
	}

	return df
}

// InsertMap adds a new row to the dataframe. Dates must be increasing otherwise panic.
// Columns missing from vals are filled with NaN and keys that are not columns are ignored
func (df *DataFrame[T]) InsertMap(idx T, vals map[string]float64) *DataFrame[T] {
	df.checkOrder(idx)

	df.Index = append(df.Index, idx)
	for colIdx, colName := range df.ColNames {
		if val, ok := vals[colName]; ok {
			df.Vals[colIdx] = append(df.Vals[colIdx], val)
		} else {
			df.Vals[colIdx] = append(df.Vals[colIdx], math.NaN())
		}
	}

	return df
}

// Len returns the number of rows in the dataframe
func (df *DataFrame[T]) Len() int {
	return len(df.Index)
}

func formatIndex[T comparable](val T) string {
	switch v := any(val).(type) {
	case time.Time:
		return v.Format("2006-01-02")
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Table renders the dataframe as an ASCII formatted table. Missing values are printed as NA
func (df *DataFrame[T]) Table() string {
	if len(df.Index) == 0 {
		return "<NO DATA>"
	}

	tableCols := make([]string, 0, df.ColCount()+1)
	tableCols = append(tableCols, "Index")
	tableCols = append(tableCols, df.ColNames...)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	if len(footer) > 1 {
		footer[1] = fmt.Sprintf("%d", df.Len())
	}
	table.SetFooter(footer)
	table.SetBorder(false)

	for idx, rowIdx := range df.Index {
		row := make([]string, 0, len(df.Vals)+1)
		row = append(row, formatIndex(rowIdx))

		for _, col := range df.Vals {
			if math.IsNaN(col[idx]) {
				row = append(row, "NA")
			} else {
				row = append(row, fmt.Sprintf("%.4f", col[idx]))
			}
		}

		table.Append(row)
	}

	table.Render()
	return s.String()
}

// Trim the dataframe to the specified date range (inclusive). The returned
// dataframe shares storage with df.
// NOTE: If T is not time.Time then the dataframe is returned unchanged
func (df *DataFrame[T]) Trim(begin, end time.Time) *DataFrame[T] {
	df2 := &DataFrame[T]{
		ColNames: df.ColNames,
		Index:    df.Index,
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(df2.Vals, df.Vals)

	empty := func() *DataFrame[T] {
		df2.Index = []T{}
		for colIdx := range df2.Vals {
			df2.Vals[colIdx] = []float64{}
		}
		return df2
	}

	if end.Before(begin) {
		return empty()
	}

	if df.Len() == 0 {
		return df2
	}

	if _, ok := indexTime(df.Index[0]); !ok {
		return df2
	}

	at := func(i int) time.Time {
		dt, _ := indexTime(df.Index[i])
		return dt
	}

	// first row on or after begin; first row after end
	beginIdx := sort.Search(len(df.Index), func(i int) bool {
		return !at(i).Before(begin)
	})
	endIdx := sort.Search(len(df.Index), func(i int) bool {
		return at(i).After(end)
	})

	if beginIdx >= endIdx {
		return empty()
	}

	df2.Index = df.Index[beginIdx:endIdx]
	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = col[beginIdx:endIdx]
	}

	return df2
}
