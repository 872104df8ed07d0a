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
// Package factor derives the style factor exposures of every security-month.
package factor

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/dataframe"
	"github.com/penny-vault/pv-factors/monthly"
	"github.com/rs/zerolog/log"
)

// Field names a column of a FactorRecord
type Field string

const (
	FieldReturn        Field = "return"
	FieldSize          Field = "size"
	FieldValue         Field = "value"
	FieldProfitability Field = "profitability"
	FieldInvestment    Field = "investment"
	FieldMomentum      Field = "momentum"
	FieldMarket        Field = "market"
)

// ParseField converts a configuration string into a Field
func ParseField(s string) (Field, error) {
	field := Field(strings.ToLower(strings.TrimSpace(s)))
	switch field {
	case FieldReturn, FieldSize, FieldValue, FieldProfitability, FieldInvestment, FieldMomentum, FieldMarket:
		return field, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Record holds the factor exposures of a security for a month. A Record
// never contains NaN.
type Record struct {
	SecurityID    string
	Name          string
	Month         data.Month
	Return        float64
	Size          float64
	Value         float64
	Profitability float64
	Investment    float64
	Momentum      float64
	Market        float64
}

// Get returns the value of field
func (r *Record) Get(field Field) float64 {
	switch field {
	case FieldReturn:
		return r.Return
	case FieldSize:
		return r.Size
	case FieldValue:
		return r.Value
	case FieldProfitability:
		return r.Profitability
	case FieldInvestment:
		return r.Investment
	case FieldMomentum:
		return r.Momentum
	case FieldMarket:
		return r.Market
	}
	return math.NaN()
}

// Deriver converts combined monthly records into factor records
type Deriver struct {
	// SizeUnit divides total market value to compute size
	SizeUnit float64

	// PercentFundamentals indicates profitability and investment are
	// reported in percent and must be divided by 100
	PercentFundamentals bool
}

// NewDeriver creates a deriver
func NewDeriver(sizeUnit float64, percentFundamentals bool) (*Deriver, error) {
	if sizeUnit <= 0 || math.IsNaN(sizeUnit) {
		return nil, ErrInvalidSizeUnit
	}
	return &Deriver{
		SizeUnit:            sizeUnit,
		PercentFundamentals: percentFundamentals,
	}, nil
}

// Value is the book to market ratio: 1 / pb. Non-positive pb is undefined.
func Value(pb float64) float64 {
	if math.IsNaN(pb) || pb <= 0 {
		return math.NaN()
	}
	return 1.0 / pb
}

// Derive joins combined records with the market series and computes the
// style exposures. Rows with any undefined exposure are dropped. The market
// exposure is the market series' annualized return for the same month. The
// result is sorted by month then security.
func (d *Deriver) Derive(combined []*monthly.CombinedRecord, market *dataframe.DataFrame[time.Time]) []*Record {
	marketMap := market.AsMap(monthly.MarketReturnAnnualized)

	scale := 1.0
	if d.PercentFundamentals {
		scale = 100.0
	}

	res := make([]*Record, 0, len(combined))
	dropped := 0
	for _, row := range combined {
		marketReturn, ok := marketMap[row.Month.Start()]
		if !ok {
			marketReturn = math.NaN()
		}

		record := &Record{
			SecurityID:    row.SecurityID,
			Name:          row.Name,
			Month:         row.Month,
			Return:        row.Return,
			Size:          row.TotalMarketValue / d.SizeUnit,
			Value:         Value(row.PB),
			Profitability: row.NetProfitToAssets / scale,
			Investment:    row.AssetsYoYGrowth / scale,
			Momentum:      row.Momentum,
			Market:        marketReturn,
		}

		if data.AnyNA(record.Return, record.Size, record.Value, record.Profitability,
			record.Investment, record.Momentum, record.Market) {
			dropped++
			continue
		}

		res = append(res, record)
	}

	Sort(res)

	log.Info().Int("NumRecords", len(res)).Int("NumDropped", dropped).Msg("derived factor records")
	return res
}

// Sort orders records by month then security ID
func Sort(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Month != b.Month {
			return a.Month.Before(b.Month)
		}
		return a.SecurityID < b.SecurityID
	})
}

// CrossSections groups records by month. The months are returned in
// ascending order and records within a month are sorted by security ID.
func CrossSections(records []*Record) ([]data.Month, map[data.Month][]*Record) {
	sections := make(map[data.Month][]*Record)
	for _, record := range records {
		sections[record.Month] = append(sections[record.Month], record)
	}

	months := make([]data.Month, 0, len(sections))
	for m, section := range sections {
		months = append(months, m)
		Sort(section)
	}

	sort.Slice(months, func(i, j int) bool {
		return months[i].Before(months[j])
	})

	return months, sections
}
