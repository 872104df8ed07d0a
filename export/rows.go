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
package export

import (
	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/factor"
	"github.com/penny-vault/pv-factors/monthly"
)

type monthRow struct {
	Code       string     `csv:"code"`
	Name       string     `csv:"name"`
	Date       string     `csv:"date"`
	Open       data.Float `csv:"open"`
	Close      data.Float `csv:"close"`
	Return     data.Float `csv:"return"`
	Volatility data.Float `csv:"vol"`
	Momentum   data.Float `csv:"momentum"`
}

type basicMonthRow struct {
	Code       string     `csv:"code"`
	Name       string     `csv:"name"`
	Date       string     `csv:"date"`
	TotalShare data.Float `csv:"total_share"`
	TotalMV    data.Float `csv:"t_mv"`
	PB         data.Float `csv:"t_pb"`
	PETTM      data.Float `csv:"t_pe"`
}

type finMonthRow struct {
	Code         string     `csv:"code"`
	Name         string     `csv:"name"`
	Date         string     `csv:"date"`
	ROE          data.Float `csv:"roe"`
	ROA          data.Float `csv:"roa"`
	NPTA         data.Float `csv:"npta"`
	AssetsYoY    data.Float `csv:"assets_yoy"`
	BPS          data.Float `csv:"bps"`
	DebtToAssets data.Float `csv:"debt_to_assets"`
}

type combinedRow struct {
	Code         string     `csv:"code"`
	Name         string     `csv:"name"`
	Date         string     `csv:"date"`
	Open         data.Float `csv:"open"`
	Close        data.Float `csv:"close"`
	Return       data.Float `csv:"return"`
	Volatility   data.Float `csv:"vol"`
	Momentum     data.Float `csv:"momentum"`
	TotalShare   data.Float `csv:"total_share"`
	TotalMV      data.Float `csv:"t_mv"`
	PB           data.Float `csv:"t_pb"`
	PETTM        data.Float `csv:"t_pe"`
	ROE          data.Float `csv:"roe"`
	ROA          data.Float `csv:"roa"`
	NPTA         data.Float `csv:"npta"`
	AssetsYoY    data.Float `csv:"assets_yoy"`
	BPS          data.Float `csv:"bps"`
	DebtToAssets data.Float `csv:"debt_to_assets"`
}

type factorRow struct {
	Code          string     `csv:"code"`
	Name          string     `csv:"name"`
	Date          string     `csv:"date"`
	Return        data.Float `csv:"return"`
	Size          data.Float `csv:"size"`
	Value         data.Float `csv:"value"`
	Profitability data.Float `csv:"profitability"`
	Investment    data.Float `csv:"investment"`
	Momentum      data.Float `csv:"momentum"`
	Market        data.Float `csv:"market"`
}

func toMonthRows(records []*monthly.SecurityMonthRecord) []*monthRow {
	rows := make([]*monthRow, len(records))
	for idx, r := range records {
		rows[idx] = &monthRow{
			Code:       r.SecurityID,
			Name:       r.Name,
			Date:       r.Month.String(),
			Open:       data.Float(r.Open),
			Close:      data.Float(r.Close),
			Return:     data.Float(r.Return),
			Volatility: data.Float(r.Volatility),
			Momentum:   data.Float(r.Momentum),
		}
	}
	return rows
}

func toBasicMonthRows(vals []*monthly.SecurityMonthValuation) []*basicMonthRow {
	rows := make([]*basicMonthRow, len(vals))
	for idx, v := range vals {
		rows[idx] = &basicMonthRow{
			Code:       v.SecurityID,
			Name:       v.Name,
			Date:       v.Month.String(),
			TotalShare: data.Float(v.TotalShare),
			TotalMV:    data.Float(v.TotalMarketValue),
			PB:         data.Float(v.PB),
			PETTM:      data.Float(v.PETTM),
		}
	}
	return rows
}

func toFinMonthRows(funds []*monthly.SecurityMonthFundamental) []*finMonthRow {
	rows := make([]*finMonthRow, len(funds))
	for idx, f := range funds {
		rows[idx] = &finMonthRow{
			Code:         f.SecurityID,
			Name:         f.Name,
			Date:         f.Month.String(),
			ROE:          data.Float(f.ROE),
			ROA:          data.Float(f.ROA),
			NPTA:         data.Float(f.NetProfitToAssets),
			AssetsYoY:    data.Float(f.AssetsYoYGrowth),
			BPS:          data.Float(f.BookValuePerShare),
			DebtToAssets: data.Float(f.DebtToAssets),
		}
	}
	return rows
}

func toCombinedRows(records []*monthly.CombinedRecord) []*combinedRow {
	rows := make([]*combinedRow, len(records))
	for idx, r := range records {
		rows[idx] = &combinedRow{
			Code:         r.SecurityID,
			Name:         r.Name,
			Date:         r.Month.String(),
			Open:         data.Float(r.Open),
			Close:        data.Float(r.Close),
			Return:       data.Float(r.Return),
			Volatility:   data.Float(r.Volatility),
			Momentum:     data.Float(r.Momentum),
			TotalShare:   data.Float(r.TotalShare),
			TotalMV:      data.Float(r.TotalMarketValue),
			PB:           data.Float(r.PB),
			PETTM:        data.Float(r.PETTM),
			ROE:          data.Float(r.ROE),
			ROA:          data.Float(r.ROA),
			NPTA:         data.Float(r.NetProfitToAssets),
			AssetsYoY:    data.Float(r.AssetsYoYGrowth),
			BPS:          data.Float(r.BookValuePerShare),
			DebtToAssets: data.Float(r.DebtToAssets),
		}
	}
	return rows
}

func (row *combinedRow) record() (*monthly.CombinedRecord, error) {
	m, err := data.ParseMonth(row.Date)
	if err != nil {
		return nil, err
	}

	return &monthly.CombinedRecord{
		SecurityMonthRecord: monthly.SecurityMonthRecord{
			SecurityID: row.Code,
			Name:       row.Name,
			Month:      m,
			Open:       float64(row.Open),
			Close:      float64(row.Close),
			Return:     float64(row.Return),
			Volatility: float64(row.Volatility),
			Momentum:   float64(row.Momentum),
		},
		TotalShare:        float64(row.TotalShare),
		TotalMarketValue:  float64(row.TotalMV),
		PB:                float64(row.PB),
		PETTM:             float64(row.PETTM),
		ROE:               float64(row.ROE),
		ROA:               float64(row.ROA),
		NetProfitToAssets: float64(row.NPTA),
		AssetsYoYGrowth:   float64(row.AssetsYoY),
		BookValuePerShare: float64(row.BPS),
		DebtToAssets:      float64(row.DebtToAssets),
	}, nil
}

// factorParquetRow mirrors factorRow; factor records never hold NaN
type factorParquetRow struct {
	Code          string  `parquet:"name=code, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Name          string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Date          string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Return        float64 `parquet:"name=return, type=DOUBLE"`
	Size          float64 `parquet:"name=size, type=DOUBLE"`
	Value         float64 `parquet:"name=value, type=DOUBLE"`
	Profitability float64 `parquet:"name=profitability, type=DOUBLE"`
	Investment    float64 `parquet:"name=investment, type=DOUBLE"`
	Momentum      float64 `parquet:"name=momentum, type=DOUBLE"`
	Market        float64 `parquet:"name=market, type=DOUBLE"`
}

func toFactorRows(records []*factor.Record) []*factorRow {
	rows := make([]*factorRow, len(records))
	for idx, r := range records {
		rows[idx] = &factorRow{
			Code:          r.SecurityID,
			Name:          r.Name,
			Date:          r.Month.String(),
			Return:        data.Float(r.Return),
			Size:          data.Float(r.Size),
			Value:         data.Float(r.Value),
			Profitability: data.Float(r.Profitability),
			Investment:    data.Float(r.Investment),
			Momentum:      data.Float(r.Momentum),
			Market:        data.Float(r.Market),
		}
	}
	return rows
}

func (row *factorRow) record() (*factor.Record, error) {
	m, err := data.ParseMonth(row.Date)
	if err != nil {
		return nil, err
	}

	return &factor.Record{
		SecurityID:    row.Code,
		Name:          row.Name,
		Month:         m,
		Return:        float64(row.Return),
		Size:          float64(row.Size),
		Value:         float64(row.Value),
		Profitability: float64(row.Profitability),
		Investment:    float64(row.Investment),
		Momentum:      float64(row.Momentum),
		Market:        float64(row.Market),
	}, nil
}
