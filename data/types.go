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
	"time"
)

// Security is a member of the investable universe
type Security struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Industry        string `json:"industry"`
	HasFundamentals bool   `json:"hasFundamentals"`
}

// DailyBar is a single trading day for a security or index. PctChange is
// expressed in percent and is NaN on days the security did not trade.
type DailyBar struct {
	SecurityID string
	TradeDate  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	PctChange  float64
	Volume     float64
	Amount     float64
}

// DailyValuation holds the valuation metrics published for a security on a trading day
type DailyValuation struct {
	SecurityID             string
	TradeDate              time.Time
	TurnoverRate           float64
	VolumeRatio            float64
	PE                     float64
	PETTM                  float64
	PB                     float64
	DividendYield          float64
	DividendYieldTTM       float64
	TotalShare             float64
	FloatShare             float64
	TotalMarketValue       float64
	CirculatingMarketValue float64
}

// FundamentalReport is a snapshot of the financial indicators reported for the
// fiscal period ending on FiscalPeriodEnd (June 30 or December 31)
type FundamentalReport struct {
	SecurityID        string
	AnnouncementDate  time.Time
	FiscalPeriodEnd   time.Time
	ROE               float64
	ROA               float64
	NetProfitToAssets float64
	AssetsYoYGrowth   float64
	BookValuePerShare float64
	DebtToAssets      float64
}

// IsNA reports whether a value is missing
func IsNA(val float64) bool {
	return math.IsNaN(val)
}

// AnyNA reports whether any of the values are missing
func AnyNA(vals ...float64) bool {
	for _, val := range vals {
		if math.IsNaN(val) {
			return true
		}
	}
	return false
}
