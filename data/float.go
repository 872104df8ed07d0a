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

package data

import (
	"math"
	"strconv"
	"strings"
)

// Float is a float64 that is serialized to CSV with 4 decimal places. Empty
// cells and NaN-like strings decode to NaN and NaN encodes to an empty cell.
type Float float64

// NA returns a missing Float
func NA() Float {
	return Float(math.NaN())
}

// MarshalCSV implements gocsv.TypeMarshaller
func (f Float) MarshalCSV() (string, error) {
	return FormatFloat(float64(f)), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller
func (f *Float) UnmarshalCSV(s string) error {
	val, err := ParseFloat(s)
	if err != nil {
		return err
	}
	*f = Float(val)
	return nil
}

// FormatFloat formats val with 4 decimal places or returns an empty string if val is NaN
func FormatFloat(val float64) string {
	if math.IsNaN(val) {
		return ""
	}
	return strconv.FormatFloat(val, 'f', 4, 64)
}

// ParseFloat parses a CSV cell; empty, "nan", "null" and "none" are read as NaN
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
