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
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/dataframe"
	"github.com/penny-vault/pv-factors/factor"
	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const parquetParallelism = 4

func (e *Exporter) writeFactorsParquet(fn string, records []*factor.Record) error {
	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create local file")
		return err
	}

	pw, err := writer.NewParquetWriter(fh, new(factorParquetRow), parquetParallelism)
	if err != nil {
		fh.Close()
		log.Error().Str("OriginalError", err.Error()).Msg("parquet write failed")
		return err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, r := range records {
		row := &factorParquetRow{
			Code:          r.SecurityID,
			Name:          r.Name,
			Date:          r.Month.String(),
			Return:        r.Return,
			Size:          r.Size,
			Value:         r.Value,
			Profitability: r.Profitability,
			Investment:    r.Investment,
			Momentum:      r.Momentum,
			Market:        r.Market,
		}
		if err = pw.Write(row); err != nil {
			log.Error().Str("OriginalError", err.Error()).Str("SecurityID", r.SecurityID).
				Stringer("Month", r.Month).Msg("parquet write failed for record")
		}
	}

	return e.finishParquet(fn, fh, pw.WriteStop())
}

// writeFrameParquet writes a date indexed dataframe; NaN values are stored as nulls
func (e *Exporter) writeFrameParquet(fn string, df *dataframe.DataFrame[time.Time]) error {
	md := make([]string, 0, len(df.ColNames)+1)
	md = append(md, "name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY")
	for _, col := range df.ColNames {
		md = append(md, fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", strings.ToLower(col)))
	}

	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create local file")
		return err
	}

	pw, err := writer.NewCSVWriter(md, fh, parquetParallelism)
	if err != nil {
		fh.Close()
		log.Error().Str("OriginalError", err.Error()).Msg("parquet write failed")
		return err
	}

	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for idx, dt := range df.Index {
		rec := make([]interface{}, 0, len(df.ColNames)+1)
		rec = append(rec, data.FormatDate(dt))
		for _, col := range df.Vals {
			if math.IsNaN(col[idx]) {
				rec = append(rec, nil)
			} else {
				rec = append(rec, col[idx])
			}
		}
		if err = pw.Write(rec); err != nil {
			log.Error().Str("OriginalError", err.Error()).Time("Date", dt).Msg("parquet write failed for row")
		}
	}

	return e.finishParquet(fn, fh, pw.WriteStop())
}

type closer interface {
	Close() error
}

func (e *Exporter) finishParquet(fn string, fh closer, stopErr error) error {
	closeErr := fh.Close()

	if stopErr != nil {
		log.Error().Err(stopErr).Str("FileName", fn).Msg("parquet write failed")
		return stopErr
	}

	if closeErr != nil {
		log.Error().Err(closeErr).Str("FileName", fn).Msg("could not close parquet file")
		return closeErr
	}

	digest, err := FileDigest(fn)
	if err != nil {
		return err
	}

	e.record(fn, digest)
	log.Info().Str("FileName", fn).Msg("parquet write finished")
	return nil
}
