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
	"math"
	"sort"
	"time"

	"github.com/penny-vault/pv-factors/data"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Window configures the trailing lookback used for volatility and momentum
type Window struct {
	Months      int
	TradingDays float64
}

// DefaultWindow is a 6 month lookback annualized with 220 trading days
var DefaultWindow = Window{Months: 6, TradingDays: 220}

// Validate checks that the window is usable
func (w Window) Validate() error {
	if w.Months <= 0 || w.TradingDays <= 0 {
		return ErrInvalidWindow
	}
	return nil
}

// Bounds returns the half open interval [start, end) of the trailing window for month m
func (w Window) Bounds(m data.Month) (time.Time, time.Time) {
	return m.AddMonths(-w.Months).Start(), m.Start()
}

// barRange returns bars with TradeDate in [begin, end); bars must be sorted by date
func barRange(bars []*data.DailyBar, begin, end time.Time) []*data.DailyBar {
	lo := sort.Search(len(bars), func(i int) bool {
		return !bars[i].TradeDate.Before(begin)
	})
	hi := sort.Search(len(bars), func(i int) bool {
		return !bars[i].TradeDate.Before(end)
	})
	if lo >= hi {
		return nil
	}
	return bars[lo:hi]
}

// monthBars returns the bars that fall on a calendar day of m
func monthBars(bars []*data.DailyBar, m data.Month) []*data.DailyBar {
	return barRange(bars, m.Start(), m.AddMonths(1).Start())
}

// dropMissing removes bars without a percent change
func dropMissing(bars []*data.DailyBar) []*data.DailyBar {
	res := make([]*data.DailyBar, 0, len(bars))
	for _, bar := range bars {
		if !math.IsNaN(bar.PctChange) {
			res = append(res, bar)
		}
	}
	return res
}

// logReturns converts percent changes to log returns: ln(1 + pct/100)
func logReturns(bars []*data.DailyBar) []float64 {
	res := make([]float64, len(bars))
	for idx, bar := range bars {
		res[idx] = math.Log1p(bar.PctChange / 100)
	}
	return res
}

// CompoundReturn geometrically links daily percent changes: exp(Σ ln(1 + pct/100)) − 1.
// Returns NaN when bars is empty.
func CompoundReturn(bars []*data.DailyBar) float64 {
	if len(bars) == 0 {
		return math.NaN()
	}
	return math.Expm1(floats.Sum(logReturns(bars)))
}

// Volatility is the sample standard deviation of daily returns divided by
// the number of observations and scaled by the trading days per year.
// Fewer than two observations yields NaN.
func (w Window) Volatility(bars []*data.DailyBar) float64 {
	if len(bars) < 2 {
		return math.NaN()
	}

	returns := make([]float64, len(bars))
	for idx, bar := range bars {
		returns[idx] = bar.PctChange / 100
	}

	return stat.StdDev(returns, nil) / float64(len(returns)) * w.TradingDays
}

// Momentum annualizes the geometric mean daily return: exp(mean(ln(1 + pct/100)) × tradingDays) − 1.
// Returns NaN when bars is empty.
func (w Window) Momentum(bars []*data.DailyBar) float64 {
	if len(bars) == 0 {
		return math.NaN()
	}
	return math.Expm1(stat.Mean(logReturns(bars), nil) * w.TradingDays)
}

// Trailing returns the bars of the trailing window before m with missing percent changes removed
func (w Window) Trailing(bars []*data.DailyBar, m data.Month) []*data.DailyBar {
	begin, end := w.Bounds(m)
	return dropMissing(barRange(bars, begin, end))
}
