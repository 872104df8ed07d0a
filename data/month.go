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
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout     = "20060102"
	isoDateLayout  = "2006-01-02"
	monthKeyLayout = "20060102"
)

// Month is a calendar month. It is used as the join key of every monthly
// table and is always rendered as the first day of the month.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth returns the month with the given year and month, normalizing
// out-of-range months (e.g., month 13 is January of the following year)
func NewMonth(year int, month time.Month) Month {
	return MonthOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// MonthOf returns the calendar month containing t
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Date returns midnight UTC on the requested day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses dates formatted as YYYYMMDD or YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := dateLayout
	if strings.Contains(s, "-") {
		layout = isoDateLayout
	}

	// pandas sometimes writes integer columns as floats, e.g. 20200102.0
	s = strings.TrimSuffix(s, ".0")

	dt, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	return dt, nil
}

// FormatDate formats t as YYYYMMDD
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseMonth parses a month key (YYYYMMDD or YYYY-MM-DD); the day is ignored
func ParseMonth(s string) (Month, error) {
	dt, err := ParseDate(s)
	if err != nil {
		return Month{}, err
	}
	return MonthOf(dt), nil
}

// Start returns midnight UTC on the first day of the month
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the last calendar day of the month
func (m Month) End() time.Time {
	return m.AddMonths(1).Start().AddDate(0, 0, -1)
}

// AddMonths returns the month n months after m (n may be negative)
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.Start().AddDate(0, n, 0))
}

// Contains reports whether the calendar date of t falls inside the month
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

// Before reports whether m is earlier than other
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// After reports whether m is later than other
func (m Month) After(other Month) bool {
	return other.Before(m)
}

// IsZero reports whether the month is unset
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// String formats the month as the first day of the month: YYYYMM01
func (m Month) String() string {
	return m.Start().Format(monthKeyLayout)
}

// MonthRange returns every month from begin through end inclusive
func MonthRange(begin, end Month) []Month {
	if end.Before(begin) {
		return []Month{}
	}

	months := make([]Month, 0, (end.Year-begin.Year+1)*12)
	for m := begin; !m.After(end); m = m.AddMonths(1) {
		months = append(months, m)
	}

	return months
}

// YearGrid returns January of startYear through December of endYear
func YearGrid(startYear, endYear int) []Month {
	return MonthRange(NewMonth(startYear, time.January), NewMonth(endYear, time.December))
}
