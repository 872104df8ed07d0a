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
package rebalance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/penny-vault/pv-factors/factor"
)

// Side is the bucket a security belongs to for a factor
type Side int8

const (
	Bottom Side = -1
	Top    Side = 1
)

func (s Side) String() string {
	switch s {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	}
	return "none"
}

// Direction is the order in which a cross-section is sorted before bucketing;
// the first securities after sorting form the top bucket
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// ParseDirection converts a configuration string into a Direction
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Ascending, "asc":
		return Ascending, nil
	case Descending, "desc":
		return Descending, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Mode controls how a formation treats the previous assignment
type Mode string

const (
	// Cumulative starts from the previous assignment; securities that are not
	// re-bucketed keep their old side
	Cumulative Mode = "cumulative"

	// Replace discards the previous assignment
	Replace Mode = "replace"
)

// ParseMode converts a configuration string into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Cumulative:
		return Cumulative, nil
	case Replace:
		return Replace, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// FactorSpec describes a long/short factor portfolio
type FactorSpec struct {
	Name      string
	Field     factor.Field
	Direction Direction
	Ratio     float64
}

// Validate checks the ratio and direction of the spec
func (spec FactorSpec) Validate() error {
	if !(spec.Ratio > 0 && spec.Ratio <= 0.5) {
		return fmt.Errorf("%w: %s has ratio %v", ErrInvalidRatio, spec.Name, spec.Ratio)
	}
	if spec.Direction != Ascending && spec.Direction != Descending {
		return fmt.Errorf("%w: %s", ErrInvalidDirection, spec.Name)
	}
	if _, err := factor.ParseField(string(spec.Field)); err != nil {
		return err
	}
	return nil
}

// DefaultSpecs returns the five Fama-French style factors
func DefaultSpecs() []FactorSpec {
	return []FactorSpec{
		{Name: "SMB", Field: factor.FieldSize, Direction: Ascending, Ratio: 0.3},
		{Name: "HML", Field: factor.FieldValue, Direction: Descending, Ratio: 0.3},
		{Name: "RMW", Field: factor.FieldProfitability, Direction: Descending, Ratio: 0.3},
		{Name: "CMA", Field: factor.FieldInvestment, Direction: Descending, Ratio: 0.3},
		{Name: "UMD", Field: factor.FieldMomentum, Direction: Descending, Ratio: 0.3},
	}
}

// Assignment maps factor name -> security ID -> side. It is treated as an
// immutable value; formations produce a new Assignment.
type Assignment map[string]map[string]Side

// Clone returns a deep copy of the assignment
func (a Assignment) Clone() Assignment {
	res := make(Assignment, len(a))
	for name, sides := range a {
		cp := make(map[string]Side, len(sides))
		for id, side := range sides {
			cp[id] = side
		}
		res[name] = cp
	}
	return res
}

// Side returns the side of securityID for the named factor
func (a Assignment) Side(name, securityID string) (Side, bool) {
	side, ok := a[name][securityID]
	return side, ok
}

// Members returns the sorted IDs of the securities on side of the named factor
func (a Assignment) Members(name string, side Side) []string {
	res := make([]string, 0, len(a[name]))
	for id, s := range a[name] {
		if s == side {
			res = append(res, id)
		}
	}
	sort.Strings(res)
	return res
}
