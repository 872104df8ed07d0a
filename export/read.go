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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/dataframe"
	"github.com/penny-vault/pv-factors/factor"
	"github.com/penny-vault/pv-factors/monthly"
	"github.com/rs/zerolog/log"
)

func readCSV(fn string, out interface{}) error {
	fh, err := os.Open(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", data.ErrNotFound, fn)
		}
		return err
	}
	defer fh.Close()

	if err := gocsv.UnmarshalFile(fh, out); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not decode csv")
		return err
	}
	return nil
}

// ReadCombinedAll loads the combined panel written by WriteCombinedAll
func ReadCombinedAll(dir string) ([]*monthly.CombinedRecord, error) {
	rows := []*combinedRow{}
	if err := readCSV(filepath.Join(dir, CombinedAllFile), &rows); err != nil {
		return nil, err
	}

	records := make([]*monthly.CombinedRecord, 0, len(rows))
	for idx, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", ErrMalformedRow, idx+2, err.Error())
		}
		records = append(records, rec)
	}

	return records, nil
}

// ReadFactors loads the factor table written by WriteFactors
func ReadFactors(dir string) ([]*factor.Record, error) {
	rows := []*factorRow{}
	if err := readCSV(filepath.Join(dir, StockFactorsFile), &rows); err != nil {
		return nil, err
	}

	records := make([]*factor.Record, 0, len(rows))
	for idx, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", ErrMalformedRow, idx+2, err.Error())
		}
		records = append(records, rec)
	}

	return records, nil
}

// ReadMarket loads the market return series written by WriteMarket
func ReadMarket(dir string) (*dataframe.DataFrame[time.Time], error) {
	return readFrame(filepath.Join(dir, MarketFile))
}

// ReadFactorReturns loads the factor return series written by WriteFactorReturns
func ReadFactorReturns(dir string) (*dataframe.DataFrame[time.Time], error) {
	return readFrame(filepath.Join(dir, FactorReturnsFile))
}

func readFrame(fn string) (*dataframe.DataFrame[time.Time], error) {
	fh, err := os.Open(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", data.ErrNotFound, fn)
		}
		return nil, err
	}
	defer fh.Close()

	reader := gocsv.DefaultCSVReader(fh)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s has no header", ErrMalformedRow, fn)
		}
		return nil, err
	}

	if len(header) < 1 {
		return nil, fmt.Errorf("%w: %s has no index column", ErrMalformedRow, fn)
	}

	df := dataframe.New[time.Time](header[1:]...)
	lineNum := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", ErrMalformedRow, lineNum, err.Error())
		}

		dt, err := data.ParseDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", ErrMalformedRow, lineNum, err.Error())
		}

		if df.Len() > 0 && !df.End().Before(dt) {
			return nil, fmt.Errorf("%w: line %d: dates out of order", ErrMalformedRow, lineNum)
		}

		vals := make([]float64, len(row)-1)
		for idx, cell := range row[1:] {
			if vals[idx], err = data.ParseFloat(cell); err != nil {
				return nil, fmt.Errorf("%w: line %d: %s", ErrMalformedRow, lineNum, err.Error())
			}
		}

		df.InsertRow(dt, vals...)
	}

	return df, nil
}
