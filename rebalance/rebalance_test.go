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
package rebalance_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/dataframe"
	"github.com/penny-vault/pv-factors/factor"
	"github.com/penny-vault/pv-factors/monthly"
	"github.com/penny-vault/pv-factors/rebalance"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// crossSection builds n securities whose size is their position and whose
// return is 1% times their position
func crossSection(m data.Month, n int) []*factor.Record {
	res := make([]*factor.Record, n)
	for idx := range res {
		res[idx] = &factor.Record{
			SecurityID: fmt.Sprintf("S%02d", idx),
			Month:      m,
			Return:     float64(idx) / 100,
			Size:       float64(idx),
			Value:      float64(idx),
			Momentum:   float64(n - idx),
		}
	}
	return res
}

// yearOfRecords builds a cross-section for every month of year except skip
func yearOfRecords(year int, n int, skip time.Month) []*factor.Record {
	records := make([]*factor.Record, 0)
	for _, m := range data.YearGrid(year, year) {
		if m.Month == skip {
			continue
		}
		records = append(records, crossSection(m, n)...)
	}
	return records
}

func sizeOnly(ratio float64, mode rebalance.Mode) *rebalance.Rebalancer {
	r, err := rebalance.New(rebalance.Config{
		Schedule:  rebalance.DefaultSchedule,
		FirstYear: 2001,
		Mode:      mode,
		Factors: []rebalance.FactorSpec{
			{Name: "SMB", Field: factor.FieldSize, Direction: rebalance.Ascending, Ratio: ratio},
		},
	})
	Expect(err).To(BeNil())
	return r
}

var _ = Describe("Rebalancer", func() {
	var (
		april data.Month
	)

	BeforeEach(func() {
		april = data.NewMonth(2001, time.April)
	})

	Context("when configured", func() {
		DescribeTable("rejects invalid factor specs",
			func(spec rebalance.FactorSpec, expected error) {
				_, err := rebalance.New(rebalance.Config{Factors: []rebalance.FactorSpec{spec}})
				Expect(errors.Is(err, expected)).To(BeTrue())
			},
			Entry("zero ratio", rebalance.FactorSpec{Name: "SMB", Field: factor.FieldSize, Direction: rebalance.Ascending, Ratio: 0}, rebalance.ErrInvalidRatio),
			Entry("ratio above one half", rebalance.FactorSpec{Name: "SMB", Field: factor.FieldSize, Direction: rebalance.Ascending, Ratio: 0.6}, rebalance.ErrInvalidRatio),
			Entry("bad direction", rebalance.FactorSpec{Name: "SMB", Field: factor.FieldSize, Direction: "sideways", Ratio: 0.3}, rebalance.ErrInvalidDirection),
			Entry("bad field", rebalance.FactorSpec{Name: "SMB", Field: "beta", Direction: rebalance.Ascending, Ratio: 0.3}, factor.ErrUnknownField),
		)

		It("rejects unknown modes", func() {
			_, err := rebalance.New(rebalance.Config{Mode: "sometimes", Factors: rebalance.DefaultSpecs()})
			Expect(errors.Is(err, rebalance.ErrUnknownMode)).To(BeTrue())
		})

		It("rejects duplicate factors", func() {
			specs := append(rebalance.DefaultSpecs(), rebalance.DefaultSpecs()[0])
			_, err := rebalance.New(rebalance.Config{Factors: specs})
			Expect(errors.Is(err, rebalance.ErrDuplicateFactor)).To(BeTrue())
		})

		It("requires at least one factor", func() {
			_, err := rebalance.New(rebalance.Config{})
			Expect(errors.Is(err, rebalance.ErrNoFactors)).To(BeTrue())
		})

		It("accepts the defaults", func() {
			r, err := rebalance.New(rebalance.Config{Factors: rebalance.DefaultSpecs()})
			Expect(err).To(BeNil())
			Expect(r.Mode).To(Equal(rebalance.Cumulative))
			Expect(r.ColumnNames()).To(Equal([]string{"SMB", "HML", "RMW", "CMA", "UMD", "market_return"}))
		})
	})

	DescribeTable("sizes buckets as floor(ratio × N)",
		func(ratio float64, n int, expected int) {
			Expect(rebalance.BucketSize(ratio, n)).To(Equal(expected))
		},
		Entry("20% of 10", 0.2, 10, 2),
		Entry("30% of 7", 0.3, 7, 2),
		Entry("30% of 1", 0.3, 1, 0),
		Entry("50% of 5", 0.5, 5, 2),
		Entry("29% of 100 counts whole members", 0.29, 100, 29),
		Entry("57% of 100 is capped at half", 0.57, 100, 50),
		Entry("empty cross-section", 0.3, 0, 0),
	)

	Context("when forming portfolios", func() {
		It("sizes buckets with floor(ratio × N)", func() {
			r := sizeOnly(0.2, rebalance.Cumulative)
			assignment := r.Form(nil, crossSection(april, 10))
			Expect(assignment.Members("SMB", rebalance.Top)).To(Equal([]string{"S00", "S01"}))
			Expect(assignment.Members("SMB", rebalance.Bottom)).To(Equal([]string{"S08", "S09"}))
		})

		It("rounds bucket sizes down", func() {
			r := sizeOnly(0.3, rebalance.Cumulative)
			assignment := r.Form(nil, crossSection(april, 7))
			Expect(assignment.Members("SMB", rebalance.Top)).To(HaveLen(2))
			Expect(assignment.Members("SMB", rebalance.Bottom)).To(HaveLen(2))
		})

		It("never overlaps buckets", func() {
			r := sizeOnly(0.5, rebalance.Cumulative)
			assignment := r.Form(nil, crossSection(april, 5))
			top := assignment.Members("SMB", rebalance.Top)
			bottom := assignment.Members("SMB", rebalance.Bottom)
			Expect(top).To(HaveLen(2))
			Expect(bottom).To(HaveLen(2))
			for _, id := range top {
				Expect(bottom).NotTo(ContainElement(id))
			}
		})

		It("sorts descending factors from high to low", func() {
			r, err := rebalance.New(rebalance.Config{Factors: []rebalance.FactorSpec{
				{Name: "UMD", Field: factor.FieldMomentum, Direction: rebalance.Descending, Ratio: 0.2},
			}})
			Expect(err).To(BeNil())

			// momentum is highest for S00
			assignment := r.Form(nil, crossSection(april, 10))
			Expect(assignment.Members("UMD", rebalance.Top)).To(Equal([]string{"S00", "S01"}))
		})

		It("breaks ties by security ID", func() {
			r := sizeOnly(0.2, rebalance.Cumulative)
			section := crossSection(april, 10)
			for _, record := range section {
				record.Size = 1
			}
			assignment := r.Form(nil, section)
			Expect(assignment.Members("SMB", rebalance.Top)).To(Equal([]string{"S00", "S01"}))
			Expect(assignment.Members("SMB", rebalance.Bottom)).To(Equal([]string{"S08", "S09"}))
		})

		It("keeps old tags in cumulative mode without modifying the previous assignment", func() {
			r := sizeOnly(0.2, rebalance.Cumulative)
			first := r.Form(nil, crossSection(april, 10))

			// reverse the ranking so S00 and S01 move to the bottom
			next := crossSection(data.NewMonth(2002, time.April), 10)
			for _, record := range next {
				record.Size = -record.Size
			}
			second := r.Form(first, next)

			Expect(second.Members("SMB", rebalance.Top)).To(Equal([]string{"S08", "S09"}))
			Expect(second.Members("SMB", rebalance.Bottom)).To(Equal([]string{"S00", "S01"}))
			Expect(first.Members("SMB", rebalance.Top)).To(Equal([]string{"S00", "S01"}))

			third := r.Form(second, crossSection(data.NewMonth(2003, time.April), 20))
			Expect(third.Members("SMB", rebalance.Top)).To(Equal([]string{"S00", "S01", "S02", "S03", "S08", "S09"}))
		})

		It("starts over in replace mode", func() {
			r := sizeOnly(0.2, rebalance.Replace)
			first := r.Form(nil, crossSection(april, 20))
			second := r.Form(first, crossSection(data.NewMonth(2002, time.April), 10))
			Expect(second.Members("SMB", rebalance.Top)).To(Equal([]string{"S00", "S01"}))
			Expect(second.Members("SMB", rebalance.Bottom)).To(Equal([]string{"S08", "S09"}))
		})
	})

	Context("when evaluating portfolios", func() {
		It("computes the difference of the side means", func() {
			r := sizeOnly(0.2, rebalance.Cumulative)
			section := crossSection(april, 10)
			assignment := r.Form(nil, section)

			res := r.Evaluate(assignment, section)
			Expect(res.Month).To(Equal(april))
			Expect(res.Returns["SMB"]).To(BeNumerically("~", 0.005-0.085, 1e-12))
		})

		It("uses only members present in the cross-section", func() {
			r := sizeOnly(0.2, rebalance.Cumulative)
			assignment := r.Form(nil, crossSection(april, 10))

			section := crossSection(april, 10)[1:9]
			res := r.Evaluate(assignment, section)
			Expect(res.Returns["SMB"]).To(BeNumerically("~", 0.01-0.08, 1e-12))
		})

		It("is undefined when a side is empty", func() {
			r := sizeOnly(0.2, rebalance.Cumulative)
			assignment := r.Form(nil, crossSection(april, 10))

			res := r.Evaluate(assignment, crossSection(april, 10)[:5])
			Expect(math.IsNaN(res.Returns["SMB"])).To(BeTrue())
		})
	})

	Context("when running over a year", func() {
		It("skips months before the first formation", func() {
			r := sizeOnly(0.2, rebalance.Cumulative)

			market := dataframe.New[time.Time](monthly.MarketReturnAnnualized, monthly.MarketReturnMonth)
			records := make([]*factor.Record, 0)
			for _, m := range data.YearGrid(2001, 2001) {
				records = append(records, crossSection(m, 10)...)
				if m.Month != time.June {
					market.InsertRow(m.Start(), 0.1, float64(m.Month)/100)
				}
			}

			results, final := r.Run(context.Background(), records, market)
			Expect(results).To(HaveLen(9))
			Expect(results[0].Month).To(Equal(april))
			Expect(results[8].Month).To(Equal(data.NewMonth(2001, time.December)))
			Expect(results[0].MarketReturn).To(BeNumerically("~", 0.04, 1e-12))
			Expect(math.IsNaN(results[2].MarketReturn)).To(BeTrue())
			Expect(final.Members("SMB", rebalance.Top)).To(HaveLen(2))

			df := r.Frame(results)
			Expect(df.Len()).To(Equal(9))
			Expect(df.ColNames).To(Equal([]string{"SMB", "market_return"}))
			Expect(df.Start()).To(Equal(april.Start()))
		})

		It("emits a row for a held month without records", func() {
			r := sizeOnly(0.2, rebalance.Cumulative)

			market := dataframe.New[time.Time](monthly.MarketReturnAnnualized, monthly.MarketReturnMonth)
			for _, m := range data.YearGrid(2001, 2001) {
				market.InsertRow(m.Start(), 0.1, float64(m.Month)/100)
			}

			results, _ := r.Run(context.Background(), yearOfRecords(2001, 10, time.June), market)
			Expect(results).To(HaveLen(9))

			june := results[2]
			Expect(june.Month).To(Equal(data.NewMonth(2001, time.June)))
			Expect(math.IsNaN(june.Returns["SMB"])).To(BeTrue())
			Expect(june.MarketReturn).To(BeNumerically("~", 0.06, 1e-12))
			Expect(results[3].Returns["SMB"]).To(BeNumerically("~", 0.005-0.085, 1e-12))

			df := r.Frame(results)
			Expect(df.Len()).To(Equal(9))
			Expect(math.IsNaN(df.Col("SMB")[2])).To(BeTrue())
		})

		It("keeps the previous portfolios when a scheduled month has no records", func() {
			var buf bytes.Buffer
			log.Logger = zerolog.New(&buf)
			DeferCleanup(func() {
				log.Logger = log.Output(GinkgoWriter)
			})

			r := sizeOnly(0.2, rebalance.Cumulative)

			// 2002 ranks size in reverse; a formation would flip the buckets
			records := yearOfRecords(2001, 10, 0)
			for _, record := range yearOfRecords(2002, 10, time.April) {
				record.Size = -record.Size
				records = append(records, record)
			}

			results, final := r.Run(context.Background(), records, dataframe.New[time.Time]())
			Expect(results).To(HaveLen(21))
			Expect(results[12].Month).To(Equal(data.NewMonth(2002, time.April)))
			Expect(math.IsNaN(results[12].Returns["SMB"])).To(BeTrue())
			Expect(results[13].Returns["SMB"]).To(BeNumerically("~", 0.005-0.085, 1e-12))
			Expect(final.Members("SMB", rebalance.Top)).To(Equal([]string{"S00", "S01"}))

			Expect(buf.String()).To(ContainSubstring("no factor records in rebalance month"))
			Expect(buf.String()).To(ContainSubstring(`"level":"warn"`))
			Expect(buf.String()).To(ContainSubstring(`"Month":"20020401"`))
		})

		It("produces nothing when the schedule never triggers", func() {
			r := sizeOnly(0.2, rebalance.Cumulative)
			records := crossSection(data.NewMonth(2000, time.April), 10)
			results, final := r.Run(context.Background(), records, dataframe.New[time.Time]())
			Expect(results).To(BeEmpty())
			Expect(final).To(BeNil())
		})
	})
})
