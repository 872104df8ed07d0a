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
package tushare

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/penny-vault/pv-factors/data"
	"github.com/rs/zerolog/log"
)

const (
	barFields       = "ts_code,trade_date,open,high,low,close,pct_chg,vol,amount"
	valuationFields = "ts_code,trade_date,turnover_rate,volume_ratio,pe,pe_ttm,pb,dv_ratio,dv_ttm,total_share,float_share,total_mv,circ_mv"
	financialFields = "ts_code,ann_date,end_date,roe,roa,npta,assets_yoy,bps,debt_to_assets"
)

// StockBasic lists every listed security with its industry
func (c *Client) StockBasic(ctx context.Context) ([]*data.Security, error) {
	table, err := c.Query(ctx, "stock_basic", map[string]string{
		"exchange":    "",
		"list_status": "L",
	}, "ts_code,symbol,name,area,industry,list_date")
	if err != nil {
		return nil, err
	}

	res := make([]*data.Security, 0, table.Len())
	for row := 0; row < table.Len(); row++ {
		res = append(res, &data.Security{
			ID:       table.String(row, "ts_code"),
			Name:     table.String(row, "name"),
			Industry: table.String(row, "industry"),
		})
	}

	return res, nil
}

// TradeCalendar returns the open trading days between start and end (YYYYMMDD) sorted ascending
func (c *Client) TradeCalendar(ctx context.Context, start, end string) ([]time.Time, error) {
	table, err := c.Query(ctx, "trade_cal", map[string]string{
		"start_date": start,
		"end_date":   end,
		"is_open":    "1",
	}, "cal_date,is_open")
	if err != nil {
		return nil, err
	}

	days := make([]time.Time, 0, table.Len())
	for row := 0; row < table.Len(); row++ {
		if table.String(row, "is_open") != "1" {
			continue
		}
		dt, err := table.Date(row, "cal_date")
		if err != nil {
			log.Warn().Err(err).Int("Row", row).Msg("skipping calendar row with malformed date")
			continue
		}
		days = append(days, dt)
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Before(days[j])
	})

	return days, nil
}

// IndexWeight returns the constituents of indexCode on tradeDate
func (c *Client) IndexWeight(ctx context.Context, indexCode string, tradeDate time.Time) ([]string, error) {
	table, err := c.Query(ctx, "index_weight", map[string]string{
		"index_code": indexCode,
		"trade_date": data.FormatDate(tradeDate),
	}, "index_code,con_code,trade_date,weight")
	if err != nil {
		return nil, err
	}

	res := make([]string, 0, table.Len())
	for row := 0; row < table.Len(); row++ {
		if code := table.String(row, "con_code"); code != "" {
			res = append(res, code)
		}
	}

	return res, nil
}

func (c *Client) bars(ctx context.Context, apiName, code, start, end string) ([]*data.DailyBar, error) {
	table, err := c.Query(ctx, apiName, map[string]string{
		"ts_code":    code,
		"start_date": start,
		"end_date":   end,
	}, barFields)
	if err != nil {
		return nil, err
	}

	bars := make([]*data.DailyBar, 0, table.Len())
	for row := 0; row < table.Len(); row++ {
		dt, err := table.Date(row, "trade_date")
		if err != nil {
			log.Warn().Err(err).Str("SecurityID", code).Int("Row", row).Msg("skipping bar with malformed date")
			continue
		}

		bars = append(bars, &data.DailyBar{
			SecurityID: code,
			TradeDate:  dt,
			Open:       table.Float(row, "open"),
			High:       table.Float(row, "high"),
			Low:        table.Float(row, "low"),
			Close:      table.Float(row, "close"),
			PctChange:  table.Float(row, "pct_chg"),
			Volume:     table.Float(row, "vol"),
			Amount:     table.Float(row, "amount"),
		})
	}

	data.SortBars(bars)
	return bars, nil
}

// Daily returns the daily bars of a security
func (c *Client) Daily(ctx context.Context, code, start, end string) ([]*data.DailyBar, error) {
	return c.bars(ctx, "daily", code, start, end)
}

// IndexDaily returns the daily bars of an index
func (c *Client) IndexDaily(ctx context.Context, code, start, end string) ([]*data.DailyBar, error) {
	return c.bars(ctx, "index_daily", code, start, end)
}

// DailyBasic returns the daily valuation metrics of a security
func (c *Client) DailyBasic(ctx context.Context, code, start, end string) ([]*data.DailyValuation, error) {
	table, err := c.Query(ctx, "daily_basic", map[string]string{
		"ts_code":    code,
		"start_date": start,
		"end_date":   end,
	}, valuationFields)
	if err != nil {
		return nil, err
	}

	vals := make([]*data.DailyValuation, 0, table.Len())
	for row := 0; row < table.Len(); row++ {
		dt, err := table.Date(row, "trade_date")
		if err != nil {
			log.Warn().Err(err).Str("SecurityID", code).Int("Row", row).Msg("skipping valuation with malformed date")
			continue
		}

		vals = append(vals, &data.DailyValuation{
			SecurityID:             code,
			TradeDate:              dt,
			TurnoverRate:           table.Float(row, "turnover_rate"),
			VolumeRatio:            table.Float(row, "volume_ratio"),
			PE:                     table.Float(row, "pe"),
			PETTM:                  table.Float(row, "pe_ttm"),
			PB:                     table.Float(row, "pb"),
			DividendYield:          table.Float(row, "dv_ratio"),
			DividendYieldTTM:       table.Float(row, "dv_ttm"),
			TotalShare:             table.Float(row, "total_share"),
			FloatShare:             table.Float(row, "float_share"),
			TotalMarketValue:       table.Float(row, "total_mv"),
			CirculatingMarketValue: table.Float(row, "circ_mv"),
		})
	}

	data.SortValuations(vals)
	return vals, nil
}

// FinaIndicator returns the report of code for period (YYYYMMDD). When the
// provider returns several rows the one with the earliest end date is kept;
// nil is returned when there is no report.
func (c *Client) FinaIndicator(ctx context.Context, code, period string) (*data.FundamentalReport, error) {
	table, err := c.Query(ctx, "fina_indicator", map[string]string{
		"ts_code": code,
		"period":  period,
	}, financialFields)
	if err != nil {
		return nil, err
	}

	var res *data.FundamentalReport
	for row := 0; row < table.Len(); row++ {
		end, err := table.Date(row, "end_date")
		if err != nil {
			log.Warn().Err(err).Str("SecurityID", code).Str("Period", period).Msg("skipping report with malformed end date")
			continue
		}

		if res != nil && !end.Before(res.FiscalPeriodEnd) {
			continue
		}

		// announcement date is informational only
		ann, _ := table.Date(row, "ann_date")

		res = &data.FundamentalReport{
			SecurityID:        strings.TrimSpace(code),
			AnnouncementDate:  ann,
			FiscalPeriodEnd:   end,
			ROE:               table.Float(row, "roe"),
			ROA:               table.Float(row, "roa"),
			NetProfitToAssets: table.Float(row, "npta"),
			AssetsYoYGrowth:   table.Float(row, "assets_yoy"),
			BookValuePerShare: table.Float(row, "bps"),
			DebtToAssets:      table.Float(row, "debt_to_assets"),
		}
	}

	return res, nil
}
