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
package monthly

import (
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/pv-factors/data"
)

// LookupMode selects which annual report is in effect for a month
type LookupMode string

const (
	// LookupSource uses the report for December 31 of the current year from
	// April onward and the previous year's report for January through March
	LookupSource LookupMode = "source"

	// LookupLagged uses the report for December 31 of the previous year from
	// April onward and the report from two years prior for January through March
	LookupLagged LookupMode = "lagged"
)

// ParseLookupMode converts a configuration string into a LookupMode
func ParseLookupMode(s string) (LookupMode, error) {
	switch LookupMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", LookupSource:
		return LookupSource, nil
	case LookupLagged:
		return LookupLagged, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLookupMode, s)
}

// FiscalPeriodEnd returns the fiscal period end of the report used for month m
func (mode LookupMode) FiscalPeriodEnd(m data.Month) time.Time {
	year := m.Year
	if m.Month <= time.March {
		year--
	}
	if mode == LookupLagged {
		year--
	}
	return data.Date(year, time.December, 31)
}

// Fundamentals assigns the report in effect to every month of the grid.
// Months whose report is missing are omitted. Reports must be sorted by
// fiscal period end with at most one report per period.
func (agg *Aggregator) Fundamentals(security *data.Security, reports []*data.FundamentalReport, grid []data.Month) []*SecurityMonthFundamental {
	byPeriod := make(map[string]*data.FundamentalReport, len(reports))
	for _, report := range reports {
		key := data.FormatDate(report.FiscalPeriodEnd)
		if _, ok := byPeriod[key]; !ok {
			byPeriod[key] = report
		}
	}

	res := make([]*SecurityMonthFundamental, 0, len(grid))
	for _, m := range grid {
		report, ok := byPeriod[data.FormatDate(agg.Lookup.FiscalPeriodEnd(m))]
		if !ok {
			continue
		}

		res = append(res, &SecurityMonthFundamental{
			SecurityID:        security.ID,
			Name:              security.Name,
			Month:             m,
			ROE:               report.ROE,
			ROA:               report.ROA,
			NetProfitToAssets: report.NetProfitToAssets,
			AssetsYoYGrowth:   report.AssetsYoYGrowth,
			BookValuePerShare: report.BookValuePerShare,
			DebtToAssets:      report.DebtToAssets,
		})
	}

	return res
}
