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
)

// Combine left joins records with the valuation and fundamental tables on
// (SecurityID, Month). Every record produces exactly one CombinedRecord and
// fields of a missing side are NaN. The result is sorted by month then security.
func Combine(records []*SecurityMonthRecord, vals []*SecurityMonthValuation, funds []*SecurityMonthFundamental) []*CombinedRecord {
	valMap := make(map[panelKey]*SecurityMonthValuation, len(vals))
	for _, val := range vals {
		valMap[panelKey{SecurityID: val.SecurityID, Month: val.Month}] = val
	}

	fundMap := make(map[panelKey]*SecurityMonthFundamental, len(funds))
	for _, fund := range funds {
		fundMap[panelKey{SecurityID: fund.SecurityID, Month: fund.Month}] = fund
	}

	res := make([]*CombinedRecord, 0, len(records))
	for _, record := range records {
		key := panelKey{SecurityID: record.SecurityID, Month: record.Month}
		combined := &CombinedRecord{
			SecurityMonthRecord: *record,
			TotalShare:          math.NaN(),
			TotalMarketValue:    math.NaN(),
			PB:                  math.NaN(),
			PETTM:               math.NaN(),
			ROE:                 math.NaN(),
			ROA:                 math.NaN(),
			NetProfitToAssets:   math.NaN(),
			AssetsYoYGrowth:     math.NaN(),
			BookValuePerShare:   math.NaN(),
			DebtToAssets:        math.NaN(),
		}

		if val, ok := valMap[key]; ok {
			combined.TotalShare = val.TotalShare
			combined.TotalMarketValue = val.TotalMarketValue
			combined.PB = val.PB
			combined.PETTM = val.PETTM
		}

		if fund, ok := fundMap[key]; ok {
			combined.ROE = fund.ROE
			combined.ROA = fund.ROA
			combined.NetProfitToAssets = fund.NetProfitToAssets
			combined.AssetsYoYGrowth = fund.AssetsYoYGrowth
			combined.BookValuePerShare = fund.BookValuePerShare
			combined.DebtToAssets = fund.DebtToAssets
		}

		res = append(res, combined)
	}

	SortCombined(res)
	return res
}

// SortCombined orders records by month then security ID
func SortCombined(records []*CombinedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Month != b.Month {
			return a.Month.Before(b.Month)
		}
		return a.SecurityID < b.SecurityID
	})
}
