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
	"context"
	"sort"
	"time"
)

// Dataset identifies one kind of artifact supplied by the data provider
type Dataset string

const (
	DatasetUniverse    Dataset = "universe"
	DatasetCalendar    Dataset = "trade_cal"
	DatasetDaily       Dataset = "daily"
	DatasetValuation   Dataset = "daily_basic"
	DatasetFundamental Dataset = "financial"
	DatasetIndex       Dataset = "index"
)

// Store provides read-only access to the raw market data used to build the
// monthly panel. Series are returned sorted by date ascending. Implementations
// return an error wrapping ErrNotFound when a series is unavailable.
type Store interface {
	Universe(ctx context.Context) ([]*Security, error)
	TradingDays(ctx context.Context) ([]time.Time, error)
	DailyBars(ctx context.Context, securityID string) ([]*DailyBar, error)
	DailyValuations(ctx context.Context, securityID string) ([]*DailyValuation, error)
	Fundamentals(ctx context.Context, securityID string) ([]*FundamentalReport, error)
	IndexBars(ctx context.Context, indexID string) ([]*DailyBar, error)
}

// Writer persists data retrieved from a provider
type Writer interface {
	// Has reports whether the dataset for id has already been saved; id is
	// ignored for the universe and calendar datasets
	Has(ctx context.Context, dataset Dataset, id string) bool
	SaveUniverse(ctx context.Context, securities []*Security) error
	SaveTradingDays(ctx context.Context, days []time.Time) error
	SaveDailyBars(ctx context.Context, securityID string, bars []*DailyBar) error
	SaveDailyValuations(ctx context.Context, securityID string, vals []*DailyValuation) error
	SaveFundamentals(ctx context.Context, securityID string, reports []*FundamentalReport) error
	SaveIndexBars(ctx context.Context, indexID string, bars []*DailyBar) error
}

// SortBars orders bars by trade date ascending
func SortBars(bars []*DailyBar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].TradeDate.Before(bars[j].TradeDate)
	})
}

// SortValuations orders valuations by trade date ascending
func SortValuations(vals []*DailyValuation) {
	sort.SliceStable(vals, func(i, j int) bool {
		return vals[i].TradeDate.Before(vals[j].TradeDate)
	})
}

// SortFundamentals orders reports by fiscal period end ascending and keeps
// only the first report for each fiscal period end
func SortFundamentals(reports []*FundamentalReport) []*FundamentalReport {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].FiscalPeriodEnd.Before(reports[j].FiscalPeriodEnd)
	})

	res := make([]*FundamentalReport, 0, len(reports))
	for _, report := range reports {
		if len(res) > 0 && res[len(res)-1].FiscalPeriodEnd.Equal(report.FiscalPeriodEnd) {
			continue
		}
		res = append(res, report)
	}
	return res
}

// SortSecurities orders securities by ID
func SortSecurities(securities []*Security) {
	sort.SliceStable(securities, func(i, j int) bool {
		return securities[i].ID < securities[j].ID
	})
}

func sortTimes(days []time.Time) {
	sort.Slice(days, func(i, j int) bool {
		return days[i].Before(days[j])
	})
}
