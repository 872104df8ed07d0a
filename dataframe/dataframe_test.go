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
package dataframe_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-factors/dataframe"
)

func monthStart(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("DataFrame", func() {
	Context("with no values", func() {
		var (
			df *dataframe.DataFrame[time.Time]
		)

		BeforeEach(func() {
			df = dataframe.New[time.Time]("market_return_ann", "market_return_month")
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
		})

		It("keeps its columns", func() {
			Expect(df.ColCount()).To(Equal(2))
		})

		It("does not error on drop", func() {
			df = df.Drop(math.NaN())
			Expect(df.Len()).To(Equal(0))
		})

		It("does not error on trim", func() {
			df = df.Trim(monthStart(2021, 1), monthStart(2022, 1))
			Expect(df.Len()).To(Equal(0))
		})

		It("prints a placeholder table", func() {
			Expect(df.Table()).To(Equal("<NO DATA>"))
		})

		It("has zero start and end", func() {
			Expect(df.Start().IsZero()).To(BeTrue())
			Expect(df.End().IsZero()).To(BeTrue())
		})
	})

	Context("with 2 years of monthly values", func() {
		var (
			df *dataframe.DataFrame[time.Time]
		)

		BeforeEach(func() {
			df = dataframe.New[time.Time]("Col1")
			dt := monthStart(2020, 1)
			for idx := 0; idx < 24; idx++ {
				df.InsertRow(dt, float64(idx))
				dt = dt.AddDate(0, 1, 0)
			}
		})

		It("has length", func() {
			Expect(df.Len()).To(Equal(24))
			Expect(df.Start()).To(Equal(monthStart(2020, 1)))
			Expect(df.End()).To(Equal(monthStart(2021, 12)))
		})

		It("can remove all 0s with drop", func() {
			df = df.Drop(0)
			Expect(df.Len()).To(Equal(23))
			Expect(df.Vals[0][0]).To(BeNumerically("==", 1.0))
		})

		It("panics when rows are inserted out of order", func() {
			Expect(func() { df.InsertRow(monthStart(2020, 6), 1.0) }).To(Panic())
		})

		It("panics when the number of values does not match", func() {
			Expect(func() { df.InsertRow(monthStart(2022, 1), 1.0, 2.0) }).To(Panic())
		})

		It("maps the index to a column", func() {
			m := df.AsMap("Col1")
			Expect(m).To(HaveLen(24))
			Expect(m[monthStart(2020, 3)]).To(Equal(2.0))
			Expect(df.AsMap("missing")).To(BeEmpty())
		})

		DescribeTable("trims values by date range", func(a, b time.Time, expectedLen int, expectedA, expectedB time.Time) {
			df = df.Trim(a, b)
			Expect(df.Len()).To(Equal(expectedLen))
			Expect(df.Vals[0]).To(HaveLen(expectedLen))
			if expectedLen > 0 {
				Expect(df.Index[0]).To(Equal(expectedA), "expected begin date")
				Expect(df.Index[len(df.Index)-1]).To(Equal(expectedB), "expected end date")
			}
		},
			Entry("whole range", monthStart(2020, 1), monthStart(2021, 12), 24, monthStart(2020, 1), monthStart(2021, 12)),
			Entry("range before the dataframe", monthStart(2018, 1), monthStart(2019, 12), 0, time.Time{}, time.Time{}),
			Entry("range after the dataframe", monthStart(2022, 1), monthStart(2023, 12), 0, time.Time{}, time.Time{}),
			Entry("range in the middle", monthStart(2020, 6), monthStart(2020, 8), 3, monthStart(2020, 6), monthStart(2020, 8)),
			Entry("range between rows", monthStart(2020, 6).AddDate(0, 0, 2), monthStart(2020, 8).AddDate(0, 0, 2), 2, monthStart(2020, 7), monthStart(2020, 8)),
			Entry("range that extends beyond the end", monthStart(2021, 11), monthStart(2022, 6), 2, monthStart(2021, 11), monthStart(2021, 12)),
			Entry("single date", monthStart(2020, 1), monthStart(2020, 1), 1, monthStart(2020, 1), monthStart(2020, 1)),
			Entry("inverted range", monthStart(2021, 1), monthStart(2020, 1), 0, time.Time{}, time.Time{}),
		)

		It("trims without modifying the original", func() {
			trimmed := df.Trim(monthStart(2020, 6), monthStart(2020, 8))
			Expect(trimmed.Len()).To(Equal(3))
			Expect(df.Len()).To(Equal(24))
			Expect(df.Vals[0]).To(HaveLen(24))
		})
	})

	Context("multi-column with NaN values in dataframe", func() {
		var (
			df *dataframe.DataFrame[time.Time]
		)

		BeforeEach(func() {
			df = dataframe.New[time.Time]("Col1", "Col2")
			dt := monthStart(2020, 1)
			for idx := 0; idx < 10; idx++ {
				vals := map[string]float64{}
				if idx < 5 {
					vals["Col1"] = float64(idx)
				}
				if idx < 6 {
					vals["Col2"] = float64(idx)
				}
				df.InsertMap(dt, vals)
				dt = dt.AddDate(0, 1, 0)
			}
		})

		It("fills missing columns with NaN", func() {
			Expect(df.Len()).To(Equal(10))
			Expect(math.IsNaN(df.Vals[0][5])).To(BeTrue())
			Expect(df.Vals[1][5]).To(Equal(5.0))
		})

		It("drops NaNs", func() {
			df = df.Drop(math.NaN())
			Expect(df.Len()).To(Equal(5), "length")
			Expect(df.ColCount()).To(Equal(2), "col count")
			Expect(df.Vals[0]).To(Equal([]float64{0.0, 1.0, 2.0, 3.0, 4.0}), "vals1")
			Expect(df.Vals[1]).To(Equal([]float64{0.0, 1.0, 2.0, 3.0, 4.0}), "vals2")
			Expect(df.Index[4]).To(Equal(monthStart(2020, 5)))
		})

		It("returns columns by name", func() {
			Expect(df.Col("Col2")).To(HaveLen(10))
			Expect(df.Col("Col3")).To(BeNil())
		})

		It("renders missing values as NA", func() {
			table := df.Table()
			Expect(table).To(ContainSubstring("2020-01-01"))
			Expect(table).To(ContainSubstring("NA"))
			Expect(table).To(ContainSubstring("4.0000"))
		})
	})
})
