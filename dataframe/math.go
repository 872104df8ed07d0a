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
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary statistic row labels produced by Describe
const (
	StatCount      = "count"
	StatMean       = "mean"
	StatStdDev     = "std"
	StatCumulative = "cumulative"
)

// dropNaN returns the non-NaN values of vals
func dropNaN(vals []float64) []float64 {
	res := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			res = append(res, v)
		}
	}
	return res
}

// Describe summarizes every column, ignoring missing values: number of
// observations, mean, sample standard deviation and the compounded return
// assuming each value is a periodic return
func (df *DataFrame[T]) Describe() *DataFrame[string] {
	summary := &DataFrame[string]{
		Index:    []string{StatCount, StatMean, StatStdDev, StatCumulative},
		ColNames: make([]string, len(df.ColNames)),
		Vals:     make([][]float64, len(df.ColNames)),
	}
	copy(summary.ColNames, df.ColNames)

	for colIdx, col := range df.Vals {
		vals := dropNaN(col)
		mean := Mean(col)
		std, cumulative := math.NaN(), math.NaN()
		if len(vals) > 0 {
			growth := make([]float64, len(vals))
			copy(growth, vals)
			floats.AddConst(1, growth)
			cumulative = floats.Prod(growth) - 1
		}
		if len(vals) > 1 {
			std = stat.StdDev(vals, nil)
		}
		summary.Vals[colIdx] = []float64{float64(len(vals)), mean, std, cumulative}
	}

	return summary
}

// Mean returns the mean of the values in col that are not NaN; NaN if there are none
func Mean(col []float64) float64 {
	vals := dropNaN(col)
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}
