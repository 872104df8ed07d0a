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

import "time"

// DataFrame stores a table of values organized by an index (usually a date)
// the vals array is column major - e.g.,
// SMB  HML
// 1    4
// 2    5
// 3    6
//
// Vals[0][0] = 1
// Vals[0][1] = 2
type DataFrame[T comparable] struct {
	Index    []T
	ColNames []string
	Vals     [][]float64
}

// New creates an empty dataframe with the given columns
func New[T comparable](colNames ...string) *DataFrame[T] {
	names := make([]string, len(colNames))
	copy(names, colNames)

	return &DataFrame[T]{
		Index:    []T{},
		ColNames: names,
		Vals:     make([][]float64, len(colNames)),
	}
}

// indexTime returns the index value as a time if the index is date based
func indexTime[T comparable](val T) (time.Time, bool) {
	dt, ok := any(val).(time.Time)
	return dt, ok
}
