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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
)

type securityRow struct {
	Code     string `csv:"code"`
	Name     string `csv:"name"`
	Industry string `csv:"industry"`
}

type calendarRow struct {
	CalDate string `csv:"cal_date"`
	IsOpen  int    `csv:"is_open"`
}

type barRow struct {
	TsCode    string `csv:"ts_code"`
	TradeDate string `csv:"trade_date"`
	Open      Float  `csv:"open"`
	High      Float  `csv:"high"`
	Low       Float  `csv:"low"`
	Close     Float  `csv:"close"`
	PctChg    Float  `csv:"pct_chg"`
	Vol       Float  `csv:"vol"`
	Amount    Float  `csv:"amount"`
}

type valuationRow struct {
	TsCode       string `csv:"ts_code"`
	TradeDate    string `csv:"trade_date"`
	TurnoverRate Float  `csv:"turnover_rate"`
	VolumeRatio  Float  `csv:"volume_ratio"`
	PE           Float  `csv:"pe"`
	PETTM        Float  `csv:"pe_ttm"`
	PB           Float  `csv:"pb"`
	DvRatio      Float  `csv:"dv_ratio"`
	DvTTM        Float  `csv:"dv_ttm"`
	TotalShare   Float  `csv:"total_share"`
	FloatShare   Float  `csv:"float_share"`
	TotalMV      Float  `csv:"total_mv"`
	CircMV       Float  `csv:"circ_mv"`
}

type fundamentalRow struct {
	TsCode       string `csv:"ts_code"`
	AnnDate      string `csv:"ann_date"`
	EndDate      string `csv:"end_date"`
	ROE          Float  `csv:"roe"`
	ROA          Float  `csv:"roa"`
	NPTA         Float  `csv:"npta"`
	AssetsYoY    Float  `csv:"assets_yoy"`
	BPS          Float  `csv:"bps"`
	DebtToAssets Float  `csv:"debt_to_assets"`
}

// CsvStore reads and writes the provider CSV files kept in a single
// directory. Decoded series are held in an LRU cache keyed by file name.
type CsvStore struct {
	Dir   string
	cache *lru.Cache
}

// NewCsvStore creates a store rooted at dir; cacheSize is the number of
// decoded files to keep in memory
func NewCsvStore(dir string, cacheSize int) (*CsvStore, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return nil, err
	}

	return &CsvStore{
		Dir:   dir,
		cache: cache,
	}, nil
}

// FileName returns the name of the file holding the dataset for id
func FileName(dataset Dataset, id string) string {
	switch dataset {
	case DatasetUniverse:
		return "universe.csv"
	case DatasetCalendar:
		return "trade_cal.csv"
	case DatasetDaily:
		return fmt.Sprintf("%s.csv", id)
	case DatasetValuation:
		return fmt.Sprintf("%s_basic.csv", id)
	case DatasetFundamental:
		return fmt.Sprintf("%s_financial.csv", id)
	case DatasetIndex:
		return fmt.Sprintf("index_%s.csv", id)
	}
	return ""
}

func (store *CsvStore) path(dataset Dataset, id string) string {
	return filepath.Join(store.Dir, FileName(dataset, id))
}

// load decodes fn into out (a pointer to a slice of rows), consulting the cache first
func (store *CsvStore) load(fn string, out interface{}) (interface{}, error) {
	if val, ok := store.cache.Get(fn); ok {
		return val, nil
	}

	fh, err := os.Open(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(fn))
		}
		log.Error().Err(err).Str("FileName", fn).Msg("could not open file")
		return nil, err
	}
	defer fh.Close()

	if err := gocsv.UnmarshalFile(fh, out); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not decode csv file")
		return nil, err
	}

	return out, nil
}

func (store *CsvStore) save(fn string, rows interface{}) error {
	store.cache.Remove(fn)

	if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not create directory")
		return err
	}

	fh, err := os.Create(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not create file")
		return err
	}
	defer fh.Close()

	if err := gocsv.MarshalFile(rows, fh); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not write csv file")
		return err
	}

	return nil
}

func (store *CsvStore) Has(ctx context.Context, dataset Dataset, id string) bool {
	_, err := os.Stat(store.path(dataset, id))
	return err == nil
}

func (store *CsvStore) Universe(ctx context.Context) ([]*Security, error) {
	fn := store.path(DatasetUniverse, "")
	val, err := store.load(fn, &[]*securityRow{})
	if err != nil {
		return nil, err
	}

	rows := *(val.(*[]*securityRow))
	store.cache.Add(fn, val)

	res := make([]*Security, 0, len(rows))
	for _, row := range rows {
		code := strings.TrimSpace(row.Code)
		if code == "" {
			continue
		}
		res = append(res, &Security{
			ID:              code,
			Name:            row.Name,
			Industry:        row.Industry,
			HasFundamentals: store.Has(ctx, DatasetFundamental, code),
		})
	}

	return res, nil
}

func (store *CsvStore) TradingDays(ctx context.Context) ([]time.Time, error) {
	fn := store.path(DatasetCalendar, "")
	val, err := store.load(fn, &[]*calendarRow{})
	if err != nil {
		return nil, err
	}

	rows := *(val.(*[]*calendarRow))
	store.cache.Add(fn, val)

	days := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		if row.IsOpen != 1 {
			continue
		}
		dt, err := ParseDate(row.CalDate)
		if err != nil {
			log.Warn().Err(err).Str("FileName", fn).Str("CalDate", row.CalDate).Msg("skipping calendar row")
			continue
		}
		days = append(days, dt)
	}

	if len(days) == 0 {
		return nil, ErrNoTradingDays
	}

	sortTimes(days)
	return days, nil
}

func (store *CsvStore) readBars(fn, id string) ([]*DailyBar, error) {
	val, err := store.load(fn, &[]*barRow{})
	if err != nil {
		return nil, err
	}

	if bars, ok := val.([]*DailyBar); ok {
		return bars, nil
	}

	rows := *(val.(*[]*barRow))
	bars := make([]*DailyBar, 0, len(rows))
	for _, row := range rows {
		dt, err := ParseDate(row.TradeDate)
		if err != nil {
			log.Warn().Err(err).Str("FileName", fn).Str("TradeDate", row.TradeDate).Msg("skipping malformed row")
			continue
		}
		bars = append(bars, &DailyBar{
			SecurityID: id,
			TradeDate:  dt,
			Open:       float64(row.Open),
			High:       float64(row.High),
			Low:        float64(row.Low),
			Close:      float64(row.Close),
			PctChange:  float64(row.PctChg),
			Volume:     float64(row.Vol),
			Amount:     float64(row.Amount),
		})
	}

	SortBars(bars)
	store.cache.Add(fn, bars)
	return bars, nil
}

func (store *CsvStore) DailyBars(ctx context.Context, securityID string) ([]*DailyBar, error) {
	return store.readBars(store.path(DatasetDaily, securityID), securityID)
}

func (store *CsvStore) IndexBars(ctx context.Context, indexID string) ([]*DailyBar, error) {
	return store.readBars(store.path(DatasetIndex, indexID), indexID)
}

func (store *CsvStore) DailyValuations(ctx context.Context, securityID string) ([]*DailyValuation, error) {
	fn := store.path(DatasetValuation, securityID)
	val, err := store.load(fn, &[]*valuationRow{})
	if err != nil {
		return nil, err
	}

	if vals, ok := val.([]*DailyValuation); ok {
		return vals, nil
	}

	rows := *(val.(*[]*valuationRow))
	vals := make([]*DailyValuation, 0, len(rows))
	for _, row := range rows {
		dt, err := ParseDate(row.TradeDate)
		if err != nil {
			log.Warn().Err(err).Str("FileName", fn).Str("TradeDate", row.TradeDate).Msg("skipping malformed row")
			continue
		}
		vals = append(vals, &DailyValuation{
			SecurityID:             securityID,
			TradeDate:              dt,
			TurnoverRate:           float64(row.TurnoverRate),
			VolumeRatio:            float64(row.VolumeRatio),
			PE:                     float64(row.PE),
			PETTM:                  float64(row.PETTM),
			PB:                     float64(row.PB),
			DividendYield:          float64(row.DvRatio),
			DividendYieldTTM:       float64(row.DvTTM),
			TotalShare:             float64(row.TotalShare),
			FloatShare:             float64(row.FloatShare),
			TotalMarketValue:       float64(row.TotalMV),
			CirculatingMarketValue: float64(row.CircMV),
		})
	}

	SortValuations(vals)
	store.cache.Add(fn, vals)
	return vals, nil
}

func (store *CsvStore) Fundamentals(ctx context.Context, securityID string) ([]*FundamentalReport, error) {
	fn := store.path(DatasetFundamental, securityID)
	val, err := store.load(fn, &[]*fundamentalRow{})
	if err != nil {
		return nil, err
	}

	if reports, ok := val.([]*FundamentalReport); ok {
		return reports, nil
	}

	rows := *(val.(*[]*fundamentalRow))
	reports := make([]*FundamentalReport, 0, len(rows))
	for _, row := range rows {
		endDate, err := ParseDate(row.EndDate)
		if err != nil {
			log.Warn().Err(err).Str("FileName", fn).Str("EndDate", row.EndDate).Msg("skipping malformed row")
			continue
		}

		// announcement date is informational only
		annDate, _ := ParseDate(row.AnnDate)

		reports = append(reports, &FundamentalReport{
			SecurityID:        securityID,
			AnnouncementDate:  annDate,
			FiscalPeriodEnd:   endDate,
			ROE:               float64(row.ROE),
			ROA:               float64(row.ROA),
			NetProfitToAssets: float64(row.NPTA),
			AssetsYoYGrowth:   float64(row.AssetsYoY),
			BookValuePerShare: float64(row.BPS),
			DebtToAssets:      float64(row.DebtToAssets),
		})
	}

	reports = SortFundamentals(reports)
	store.cache.Add(fn, reports)
	return reports, nil
}

func (store *CsvStore) SaveUniverse(ctx context.Context, securities []*Security) error {
	rows := make([]*securityRow, len(securities))
	for idx, security := range securities {
		rows[idx] = &securityRow{
			Code:     security.ID,
			Name:     security.Name,
			Industry: security.Industry,
		}
	}
	return store.save(store.path(DatasetUniverse, ""), &rows)
}

func (store *CsvStore) SaveTradingDays(ctx context.Context, days []time.Time) error {
	rows := make([]*calendarRow, len(days))
	for idx, day := range days {
		rows[idx] = &calendarRow{
			CalDate: FormatDate(day),
			IsOpen:  1,
		}
	}
	return store.save(store.path(DatasetCalendar, ""), &rows)
}

func barsToRows(bars []*DailyBar) []*barRow {
	rows := make([]*barRow, len(bars))
	for idx, bar := range bars {
		rows[idx] = &barRow{
			TsCode:    bar.SecurityID,
			TradeDate: FormatDate(bar.TradeDate),
			Open:      Float(bar.Open),
			High:      Float(bar.High),
			Low:       Float(bar.Low),
			Close:     Float(bar.Close),
			PctChg:    Float(bar.PctChange),
			Vol:       Float(bar.Volume),
			Amount:    Float(bar.Amount),
		}
	}
	return rows
}

func (store *CsvStore) SaveDailyBars(ctx context.Context, securityID string, bars []*DailyBar) error {
	SortBars(bars)
	rows := barsToRows(bars)
	return store.save(store.path(DatasetDaily, securityID), &rows)
}

func (store *CsvStore) SaveIndexBars(ctx context.Context, indexID string, bars []*DailyBar) error {
	SortBars(bars)
	rows := barsToRows(bars)
	return store.save(store.path(DatasetIndex, indexID), &rows)
}

func (store *CsvStore) SaveDailyValuations(ctx context.Context, securityID string, vals []*DailyValuation) error {
	SortValuations(vals)
	rows := make([]*valuationRow, len(vals))
	for idx, val := range vals {
		rows[idx] = &valuationRow{
			TsCode:       val.SecurityID,
			TradeDate:    FormatDate(val.TradeDate),
			TurnoverRate: Float(val.TurnoverRate),
			VolumeRatio:  Float(val.VolumeRatio),
			PE:           Float(val.PE),
			PETTM:        Float(val.PETTM),
			PB:           Float(val.PB),
			DvRatio:      Float(val.DividendYield),
			DvTTM:        Float(val.DividendYieldTTM),
			TotalShare:   Float(val.TotalShare),
			FloatShare:   Float(val.FloatShare),
			TotalMV:      Float(val.TotalMarketValue),
			CircMV:       Float(val.CirculatingMarketValue),
		}
	}
	return store.save(store.path(DatasetValuation, securityID), &rows)
}

func (store *CsvStore) SaveFundamentals(ctx context.Context, securityID string, reports []*FundamentalReport) error {
	reports = SortFundamentals(reports)
	rows := make([]*fundamentalRow, len(reports))
	for idx, report := range reports {
		annDate := ""
		if !report.AnnouncementDate.IsZero() {
			annDate = FormatDate(report.AnnouncementDate)
		}
		rows[idx] = &fundamentalRow{
			TsCode:       report.SecurityID,
			AnnDate:      annDate,
			EndDate:      FormatDate(report.FiscalPeriodEnd),
			ROE:          Float(report.ROE),
			ROA:          Float(report.ROA),
			NPTA:         Float(report.NetProfitToAssets),
			AssetsYoY:    Float(report.AssetsYoYGrowth),
			BPS:          Float(report.BookValuePerShare),
			DebtToAssets: Float(report.DebtToAssets),
		}
	}
	return store.save(store.path(DatasetFundamental, securityID), &rows)
}
