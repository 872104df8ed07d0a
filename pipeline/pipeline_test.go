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
package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/export"
	"github.com/penny-vault/pv-factors/monthly"
	"github.com/penny-vault/pv-factors/pipeline"
	"github.com/penny-vault/pv-factors/rebalance"
)

const numSecurities = 10

func weekdays(begin, end time.Time) []time.Time {
	days := []time.Time{}
	for dt := begin; !dt.After(end); dt = dt.AddDate(0, 0, 1) {
		if dt.Weekday() == time.Saturday || dt.Weekday() == time.Sunday {
			continue
		}
		days = append(days, dt)
	}
	return days
}

func dailyBars(id string, days []time.Time, pct float64) []*data.DailyBar {
	bars := make([]*data.DailyBar, len(days))
	price := 10.0
	for idx, dt := range days {
		open := price
		price *= 1 + pct/100
		bars[idx] = &data.DailyBar{SecurityID: id, TradeDate: dt, Open: open, Close: price, PctChange: pct}
	}
	return bars
}

// seedStore fills a store with numSecurities securities whose return, size and
// value all increase with their index
func seedStore(ctx context.Context) *data.MemoryStore {
	store := data.NewMemoryStore()
	days := weekdays(data.Date(2019, time.July, 1), data.Date(2021, time.December, 31))

	securities := []*data.Security{}
	for idx := 0; idx < numSecurities; idx++ {
		id := fmt.Sprintf("%06d.SZ", idx+1)
		securities = append(securities, &data.Security{ID: id, Name: fmt.Sprintf("Security %d", idx)})

		Expect(store.SaveDailyBars(ctx, id, dailyBars(id, days, 0.01*float64(idx+1)))).To(Succeed())

		vals := make([]*data.DailyValuation, len(days))
		for dayIdx, dt := range days {
			vals[dayIdx] = &data.DailyValuation{
				SecurityID:       id,
				TradeDate:        dt,
				PB:               1 + 0.1*float64(idx),
				PETTM:            15,
				TotalShare:       1e4,
				TotalMarketValue: float64(idx+1) * 1e9,
			}
		}
		Expect(store.SaveDailyValuations(ctx, id, vals)).To(Succeed())

		reports := []*data.FundamentalReport{}
		for year := 2019; year <= 2021; year++ {
			reports = append(reports, &data.FundamentalReport{
				SecurityID:        id,
				AnnouncementDate:  data.Date(year+1, time.March, 20),
				FiscalPeriodEnd:   data.Date(year, time.December, 31),
				ROE:               10,
				ROA:               5,
				NetProfitToAssets: float64(idx + 1),
				AssetsYoYGrowth:   float64(10 - idx),
				BookValuePerShare: 3,
				DebtToAssets:      40,
			})
		}
		Expect(store.SaveFundamentals(ctx, id, reports)).To(Succeed())
	}

	// no fundamentals
	securities = append(securities, &data.Security{ID: "999999.SZ", Name: "No Reports"})
	Expect(store.SaveDailyBars(ctx, "999999.SZ", dailyBars("999999.SZ", days, 0.5))).To(Succeed())

	// fundamentals but no price history
	securities = append(securities, &data.Security{ID: "888888.SZ", Name: "No Prices"})
	Expect(store.SaveFundamentals(ctx, "888888.SZ", []*data.FundamentalReport{
		{SecurityID: "888888.SZ", FiscalPeriodEnd: data.Date(2019, time.December, 31), NetProfitToAssets: 1},
	})).To(Succeed())

	Expect(store.SaveUniverse(ctx, securities)).To(Succeed())
	Expect(store.SaveIndexBars(ctx, "000001.SH", dailyBars("000001.SH", days, 0.02))).To(Succeed())

	return store
}

func testConfig(dir string, workers int) pipeline.Config {
	return pipeline.Config{
		Workers:             workers,
		StartYear:           2020,
		EndYear:             2021,
		Window:              monthly.DefaultWindow,
		Lookup:              monthly.LookupSource,
		Benchmark:           "000001.SH",
		SizeUnit:            1e8,
		PercentFundamentals: true,
		Rebalance: rebalance.Config{
			Schedule:  rebalance.DefaultSchedule,
			FirstYear: 2020,
			Mode:      rebalance.Cumulative,
			Factors:   rebalance.DefaultSpecs(),
		},
		OutputDir: dir,
		MonthDir:  filepath.Join(dir, "month"),
	}
}

var _ = Describe("Pipeline", func() {
	var (
		ctx   context.Context
		store *data.MemoryStore
		dir   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = seedStore(ctx)
		dir = GinkgoT().TempDir()
	})

	Context("when configured", func() {
		It("rejects an inverted grid", func() {
			cfg := testConfig(dir, 1)
			cfg.StartYear = 2022
			_, err := pipeline.New(cfg, store)
			Expect(errors.Is(err, pipeline.ErrInvalidGrid)).To(BeTrue())
		})

		It("rejects a bad rebalance schedule", func() {
			cfg := testConfig(dir, 1)
			cfg.Rebalance.Schedule = "every april"
			_, err := pipeline.New(cfg, store)
			Expect(errors.Is(err, rebalance.ErrInvalidSchedule)).To(BeTrue())
		})

		It("requires an output directory", func() {
			cfg := testConfig("", 1)
			_, err := pipeline.New(cfg, store)
			Expect(errors.Is(err, pipeline.ErrMissingOutput)).To(BeTrue())
		})
	})

	Context("when processing", func() {
		It("skips securities without fundamentals or prices", func() {
			p, err := pipeline.New(testConfig(dir, 1), store)
			Expect(err).To(BeNil())

			panel, err := p.Process(ctx)
			Expect(err).To(BeNil())
			Expect(panel.Skipped).To(Equal([]string{"888888.SZ"}))
			Expect(panel.Combined).To(HaveLen(numSecurities * 24))
			for _, record := range panel.Combined {
				Expect(record.SecurityID).ToNot(Equal("999999.SZ"))
			}
			Expect(panel.Market.Len()).To(Equal(24))

			Expect(filepath.Join(dir, "month", "000001.SZ_combined.csv")).To(BeAnExistingFile())
			Expect(filepath.Join(dir, "month", "999999.SZ_month.csv")).ToNot(BeAnExistingFile())
			Expect(filepath.Join(dir, export.CombinedAllFile)).To(BeAnExistingFile())
			Expect(filepath.Join(dir, export.MarketFile)).To(BeAnExistingFile())
		})

		It("fails when no security has fundamentals", func() {
			empty := data.NewMemoryStore()
			Expect(empty.SaveUniverse(ctx, []*data.Security{{ID: "000001.SZ"}})).To(Succeed())
			p, err := pipeline.New(testConfig(dir, 1), empty)
			Expect(err).To(BeNil())

			_, err = p.Process(ctx)
			Expect(errors.Is(err, pipeline.ErrNoSecurities)).To(BeTrue())
		})

		It("fails when the benchmark is missing", func() {
			cfg := testConfig(dir, 1)
			cfg.Benchmark = "399999.SZ"
			p, err := pipeline.New(cfg, store)
			Expect(err).To(BeNil())

			_, err = p.Process(ctx)
			Expect(errors.Is(err, data.ErrNotFound)).To(BeTrue())
		})
	})

	Context("when running every stage", func() {
		It("produces factor returns from the first formation onward", func() {
			p, err := pipeline.New(testConfig(dir, 2), store)
			Expect(err).To(BeNil())

			df, err := p.Run(ctx)
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"SMB", "HML", "RMW", "CMA", "UMD", rebalance.MarketReturnColumn}))
			Expect(df.Len()).To(Equal(21))
			Expect(df.Start()).To(Equal(data.Date(2020, time.April, 1)))
			Expect(df.End()).To(Equal(data.Date(2021, time.December, 1)))

			// small and cheap securities have the lowest returns in the fixture
			for _, val := range df.Col("SMB") {
				Expect(val).To(BeNumerically("<", 0))
			}
			for _, val := range df.Col(rebalance.MarketReturnColumn) {
				Expect(val).To(BeNumerically(">", 0))
			}

			for _, fn := range []string{export.StockFactorsFile, export.FactorReturnsFile, export.ManifestFile} {
				Expect(filepath.Join(dir, fn)).To(BeAnExistingFile())
			}

			manifest, err := export.ReadManifest(filepath.Join(dir, export.ManifestFile))
			Expect(err).To(BeNil())
			Expect(manifest).To(HaveKey(export.FactorReturnsFile))
			Expect(manifest).To(HaveKey("month/000001.SZ_month.csv"))
		})

		It("writes the same bytes regardless of the number of workers", func() {
			other := GinkgoT().TempDir()

			p1, err := pipeline.New(testConfig(dir, 1), store)
			Expect(err).To(BeNil())
			_, err = p1.Run(ctx)
			Expect(err).To(BeNil())

			p2, err := pipeline.New(testConfig(other, 4), store)
			Expect(err).To(BeNil())
			_, err = p2.Run(ctx)
			Expect(err).To(BeNil())

			for _, fn := range []string{export.CombinedAllFile, export.StockFactorsFile, export.FactorReturnsFile, export.ManifestFile} {
				first, err := os.ReadFile(filepath.Join(dir, fn))
				Expect(err).To(BeNil())
				second, err := os.ReadFile(filepath.Join(other, fn))
				Expect(err).To(BeNil())
				Expect(second).To(Equal(first), fn)
			}
		})

		It("resumes from files written by earlier stages", func() {
			p, err := pipeline.New(testConfig(dir, 1), store)
			Expect(err).To(BeNil())

			_, err = p.Process(ctx)
			Expect(err).To(BeNil())

			panel, err := p.LoadPanel()
			Expect(err).To(BeNil())
			Expect(panel.Combined).To(HaveLen(numSecurities * 24))

			records, err := p.Factors(ctx, panel)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(numSecurities * 24))

			loaded, market, err := p.LoadFactors()
			Expect(err).To(BeNil())
			Expect(loaded).To(HaveLen(len(records)))

			df, err := p.Rebalance(ctx, loaded, market)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(21))
			Expect(p.Finish()).To(Succeed())
		})

		It("writes the same bytes as the staged commands", func() {
			staged := GinkgoT().TempDir()

			p, err := pipeline.New(testConfig(dir, 1), store)
			Expect(err).To(BeNil())
			_, err = p.Run(ctx)
			Expect(err).To(BeNil())

			s, err := pipeline.New(testConfig(staged, 1), store)
			Expect(err).To(BeNil())
			_, err = s.Process(ctx)
			Expect(err).To(BeNil())
			Expect(s.Finish()).To(Succeed())

			s, err = pipeline.New(testConfig(staged, 1), store)
			Expect(err).To(BeNil())
			panel, err := s.LoadPanel()
			Expect(err).To(BeNil())
			_, err = s.Factors(ctx, panel)
			Expect(err).To(BeNil())
			Expect(s.Finish()).To(Succeed())

			s, err = pipeline.New(testConfig(staged, 1), store)
			Expect(err).To(BeNil())
			records, market, err := s.LoadFactors()
			Expect(err).To(BeNil())
			_, err = s.Rebalance(ctx, records, market)
			Expect(err).To(BeNil())
			Expect(s.Finish()).To(Succeed())

			for _, fn := range []string{export.CombinedAllFile, export.MarketFile, export.StockFactorsFile, export.FactorReturnsFile, export.ManifestFile} {
				first, err := os.ReadFile(filepath.Join(dir, fn))
				Expect(err).To(BeNil())
				second, err := os.ReadFile(filepath.Join(staged, fn))
				Expect(err).To(BeNil())
				Expect(second).To(Equal(first), fn)
			}
		})

		It("writes only grid months when the factor table covers more years", func() {
			p, err := pipeline.New(testConfig(dir, 1), store)
			Expect(err).To(BeNil())
			full, err := p.Run(ctx)
			Expect(err).To(BeNil())

			cfg := testConfig(dir, 1)
			cfg.StartYear = 2021
			narrow, err := pipeline.New(cfg, store)
			Expect(err).To(BeNil())

			records, market, err := narrow.LoadFactors()
			Expect(err).To(BeNil())
			df, err := narrow.Rebalance(ctx, records, market)
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(12))
			Expect(df.Start()).To(Equal(data.Date(2021, time.January, 1)))
			Expect(df.Col("SMB")).To(Equal(full.Col("SMB")[9:]))
		})
	})
})
