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

package data_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-factors/data"
)

var _ = Describe("Month", func() {
	Context("when parsing dates", func() {
		It("accepts compact dates", func() {
			dt, err := data.ParseDate("20200401")
			Expect(err).To(BeNil())
			Expect(dt).To(Equal(time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)))
		})

		It("accepts ISO dates", func() {
			dt, err := data.ParseDate("2020-04-01")
			Expect(err).To(BeNil())
			Expect(dt).To(Equal(time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)))
		})

		It("accepts dates written as floats", func() {
			dt, err := data.ParseDate("20200401.0")
			Expect(err).To(BeNil())
			Expect(dt).To(Equal(time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)))
		})

		It("rejects garbage", func() {
			_, err := data.ParseDate("April 1st")
			Expect(errors.Is(err, data.ErrInvalidDate)).To(BeTrue())
		})
	})

	Context("with calendar boundaries", func() {
		DescribeTable("finds the last day of the month",
			func(year int, month time.Month, lastDay int) {
				m := data.NewMonth(year, month)
				Expect(m.End()).To(Equal(data.Date(year, month, lastDay)))
			},
			Entry("January", 2021, time.January, 31),
			Entry("February in a leap year", 2020, time.February, 29),
			Entry("February", 2021, time.February, 28),
			Entry("April", 2021, time.April, 30),
			Entry("December", 2021, time.December, 31),
		)

		It("normalizes out of range months", func() {
			Expect(data.NewMonth(2020, 13)).To(Equal(data.NewMonth(2021, time.January)))
			Expect(data.NewMonth(2020, 0)).To(Equal(data.NewMonth(2019, time.December)))
		})

		It("adds months across years", func() {
			m := data.NewMonth(2020, time.March)
			Expect(m.AddMonths(-6)).To(Equal(data.NewMonth(2019, time.September)))
			Expect(m.AddMonths(10)).To(Equal(data.NewMonth(2021, time.January)))
		})

		It("contains every day of the month", func() {
			m := data.NewMonth(2020, time.February)
			Expect(m.Contains(data.Date(2020, 2, 1))).To(BeTrue())
			Expect(m.Contains(data.Date(2020, 2, 29))).To(BeTrue())
			Expect(m.Contains(data.Date(2020, 3, 1))).To(BeFalse())
			Expect(m.Contains(data.Date(2019, 2, 15))).To(BeFalse())
		})

		It("orders months", func() {
			a := data.NewMonth(2019, time.December)
			b := data.NewMonth(2020, time.January)
			Expect(a.Before(b)).To(BeTrue())
			Expect(b.After(a)).To(BeTrue())
			Expect(a.Before(a)).To(BeFalse())
		})

		It("formats as the first day of the month", func() {
			Expect(data.NewMonth(2020, time.April).String()).To(Equal("20200401"))
		})
	})

	Context("when building a grid", func() {
		It("spans whole years", func() {
			grid := data.YearGrid(2000, 2001)
			Expect(grid).To(HaveLen(24))
			Expect(grid[0]).To(Equal(data.NewMonth(2000, time.January)))
			Expect(grid[23]).To(Equal(data.NewMonth(2001, time.December)))
		})

		It("is empty when the range is reversed", func() {
			Expect(data.MonthRange(data.NewMonth(2001, 1), data.NewMonth(2000, 1))).To(BeEmpty())
		})
	})
})

var _ = Describe("Float", func() {
	DescribeTable("parsing cells",
		func(cell string, expected float64) {
			var f data.Float
			Expect(f.UnmarshalCSV(cell)).To(Succeed())
			if math.IsNaN(expected) {
				Expect(math.IsNaN(float64(f))).To(BeTrue())
			} else {
				Expect(float64(f)).To(BeNumerically("~", expected, 1e-12))
			}
		},
		Entry("empty", "", math.NaN()),
		Entry("nan", "NaN", math.NaN()),
		Entry("null", "null", math.NaN()),
		Entry("number", "1.2345", 1.2345),
		Entry("negative", " -3.5 ", -3.5),
	)

	It("writes 4 decimal places", func() {
		cell, err := data.Float(1.0 / 3.0).MarshalCSV()
		Expect(err).To(BeNil())
		Expect(cell).To(Equal("0.3333"))
	})

	It("writes NaN as an empty cell", func() {
		cell, err := data.NA().MarshalCSV()
		Expect(err).To(BeNil())
		Expect(cell).To(Equal(""))
	})
})
