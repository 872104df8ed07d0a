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
// Package monthly maps daily price, valuation and fundamental series onto a
// monthly calendar and joins them into a per-security panel.
package monthly

import (
	"github.com/penny-vault/pv-factors/data"
)

// SecurityMonthRecord holds the price derived statistics of a security for a month
type SecurityMonthRecord struct {
	SecurityID string
	Name       string
	Month      data.Month
	Open       float64
	Close      float64
	Return     float64
	Volatility float64
	Momentum   float64
}

// SecurityMonthValuation is the first valuation snapshot of a month
type SecurityMonthValuation struct {
	SecurityID       string
	Name             string
	Month            data.Month
	TotalShare       float64
	TotalMarketValue float64
	PB               float64
	PETTM            float64
}

// SecurityMonthFundamental holds the fundamental ratios in effect during a month
type SecurityMonthFundamental struct {
	SecurityID        string
	Name              string
	Month             data.Month
	ROE               float64
	ROA               float64
	NetProfitToAssets float64
	AssetsYoYGrowth   float64
	BookValuePerShare float64
	DebtToAssets      float64
}

// CombinedRecord is a SecurityMonthRecord left joined with the valuation and
// fundamental records of the same security and month. Fields of a missing
// side are NaN.
type CombinedRecord struct {
	SecurityMonthRecord

	TotalShare       float64
	TotalMarketValue float64
	PB               float64
	PETTM            float64

	ROE               float64
	ROA               float64
	NetProfitToAssets float64
	AssetsYoYGrowth   float64
	BookValuePerShare float64
	DebtToAssets      float64
}

// SecurityPanel is every monthly table built for a single security
type SecurityPanel struct {
	Security     *data.Security
	Records      []*SecurityMonthRecord
	Valuations   []*SecurityMonthValuation
	Fundamentals []*SecurityMonthFundamental
	Combined     []*CombinedRecord
}

type panelKey struct {
	SecurityID string
	Month      data.Month
}
