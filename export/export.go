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
// Package export writes the monthly panel, factor table and factor returns
// to disk and keeps a manifest of their blake3 digests.
package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/dataframe"
	"github.com/penny-vault/pv-factors/factor"
	"github.com/penny-vault/pv-factors/monthly"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// File names of the artifacts written to the output directory
const (
	MarketFile        = "market_month.csv"
	CombinedAllFile   = "combined_all.csv"
	StockFactorsFile  = "stock_factors.csv"
	FactorReturnsFile = "factor_returns.csv"
	ManifestFile      = "MANIFEST"
)

// Exporter writes artifacts to Dir (and per-security tables to MonthDir)
// and records the digest of everything it writes
type Exporter struct {
	Dir      string
	MonthDir string
	Parquet  bool

	locker   sync.Mutex
	manifest map[string]string
}

// New creates an exporter
func New(dir, monthDir string, writeParquet bool) *Exporter {
	return &Exporter{
		Dir:      dir,
		MonthDir: monthDir,
		Parquet:  writeParquet,
		manifest: make(map[string]string),
	}
}

// Digest returns the hex encoded blake3 digest of contents
func Digest(contents []byte) string {
	sum := blake3.Sum256(contents)
	return hex.EncodeToString(sum[:])
}

// FileDigest returns the hex encoded blake3 digest of the file fn
func FileDigest(fn string) (string, error) {
	contents, err := os.ReadFile(fn)
	if err != nil {
		return "", err
	}
	return Digest(contents), nil
}

// record adds fn to the manifest
func (e *Exporter) record(fn, digest string) {
	name, err := filepath.Rel(e.Dir, fn)
	if err != nil {
		name = fn
	}

	e.locker.Lock()
	defer e.locker.Unlock()
	e.manifest[filepath.ToSlash(name)] = digest
}

func (e *Exporter) writeFile(fn string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not create output directory")
		return err
	}

	if err := os.WriteFile(fn, contents, 0o644); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not write output file")
		return err
	}

	e.record(fn, Digest(contents))
	log.Debug().Str("FileName", fn).Int("Bytes", len(contents)).Msg("wrote file")
	return nil
}

func (e *Exporter) writeCSV(fn string, rows interface{}) error {
	buf := &bytes.Buffer{}
	if err := gocsv.Marshal(rows, buf); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not encode csv")
		return err
	}
	return e.writeFile(fn, buf.Bytes())
}

// writeFrame writes a date indexed dataframe as CSV with the index in the first column
func (e *Exporter) writeFrame(fn string, df *dataframe.DataFrame[time.Time]) error {
	buf := &bytes.Buffer{}
	w := gocsv.NewSafeCSVWriter(csv.NewWriter(buf))

	if err := w.Write(append([]string{"date"}, df.ColNames...)); err != nil {
		return err
	}

	for idx, dt := range df.Index {
		row := make([]string, 0, len(df.ColNames)+1)
		row = append(row, data.FormatDate(dt))
		for _, col := range df.Vals {
			row = append(row, data.FormatFloat(col[idx]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not encode csv")
		return err
	}

	return e.writeFile(fn, buf.Bytes())
}

// WriteSecurityPanel writes the month, valuation, fundamental and combined
// tables of a single security to MonthDir
func (e *Exporter) WriteSecurityPanel(panel *monthly.SecurityPanel) error {
	id := panel.Security.ID

	monthRows := toMonthRows(panel.Records)
	if err := e.writeCSV(filepath.Join(e.MonthDir, fmt.Sprintf("%s_month.csv", id)), &monthRows); err != nil {
		return err
	}

	basicRows := toBasicMonthRows(panel.Valuations)
	if err := e.writeCSV(filepath.Join(e.MonthDir, fmt.Sprintf("%s_basic_month.csv", id)), &basicRows); err != nil {
		return err
	}

	finRows := toFinMonthRows(panel.Fundamentals)
	if err := e.writeCSV(filepath.Join(e.MonthDir, fmt.Sprintf("%s_fin_month.csv", id)), &finRows); err != nil {
		return err
	}

	combinedRows := toCombinedRows(panel.Combined)
	return e.writeCSV(filepath.Join(e.MonthDir, fmt.Sprintf("%s_combined.csv", id)), &combinedRows)
}

// WriteCombinedAll writes the combined panel of every security
func (e *Exporter) WriteCombinedAll(records []*monthly.CombinedRecord) error {
	rows := toCombinedRows(records)
	return e.writeCSV(filepath.Join(e.Dir, CombinedAllFile), &rows)
}

// WriteMarket writes the market return series
func (e *Exporter) WriteMarket(market *dataframe.DataFrame[time.Time]) error {
	return e.writeFrame(filepath.Join(e.Dir, MarketFile), market)
}

// WriteFactors writes the factor table and, if enabled, its parquet twin
func (e *Exporter) WriteFactors(records []*factor.Record) error {
	fn := filepath.Join(e.Dir, StockFactorsFile)
	rows := toFactorRows(records)
	if err := e.writeCSV(fn, &rows); err != nil {
		return err
	}

	if e.Parquet {
		return e.writeFactorsParquet(parquetName(fn), records)
	}
	return nil
}

// WriteFactorReturns writes the factor return series and, if enabled, its parquet twin
func (e *Exporter) WriteFactorReturns(df *dataframe.DataFrame[time.Time]) error {
	fn := filepath.Join(e.Dir, FactorReturnsFile)
	if err := e.writeFrame(fn, df); err != nil {
		return err
	}

	if e.Parquet {
		return e.writeFrameParquet(parquetName(fn), df)
	}
	return nil
}

func parquetName(fn string) string {
	return strings.TrimSuffix(fn, filepath.Ext(fn)) + ".parquet"
}

// Manifest returns a copy of the digests recorded so far keyed by path relative to Dir
func (e *Exporter) Manifest() map[string]string {
	e.locker.Lock()
	defer e.locker.Unlock()

	res := make(map[string]string, len(e.manifest))
	for k, v := range e.manifest {
		res[k] = v
	}
	return res
}

// ReadManifest parses a manifest file; a missing file is an empty manifest
func ReadManifest(fn string) (map[string]string, error) {
	res := make(map[string]string)

	fh, err := os.Open(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return nil, err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		res[fields[1]] = fields[0]
	}

	return res, scanner.Err()
}

// WriteManifest merges the digests written by this exporter into the
// manifest in Dir. Lines are sorted by path.
func (e *Exporter) WriteManifest() error {
	fn := filepath.Join(e.Dir, ManifestFile)

	manifest, err := ReadManifest(fn)
	if err != nil {
		log.Warn().Err(err).Str("FileName", fn).Msg("could not read existing manifest; replacing it")
		manifest = make(map[string]string)
	}

	for k, v := range e.Manifest() {
		manifest[k] = v
	}

	names := make([]string, 0, len(manifest))
	for name := range manifest {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	for _, name := range names {
		fmt.Fprintf(buf, "%s  %s\n", manifest[name], name)
	}

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(fn, buf.Bytes(), 0o644); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not write manifest")
		return err
	}

	log.Info().Str("FileName", fn).Int("NumArtifacts", len(names)).Msg("wrote manifest")
	return nil
}
