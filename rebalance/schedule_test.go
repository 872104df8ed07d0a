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
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/rebalance"
)

var _ = Describe("Schedule", func() {
	It("triggers in April by default", func() {
		schedule, err := rebalance.NewSchedule("", 2001)
		Expect(err).To(BeNil())
		Expect(schedule.ScheduleString).To(Equal(rebalance.DefaultSchedule))

		for _, m := range data.YearGrid(2001, 2002) {
			Expect(schedule.IsRebalanceMonth(m)).To(Equal(m.Month == time.April), m.String())
		}
	})

	It("never triggers before the first year", func() {
		schedule, err := rebalance.NewSchedule(rebalance.DefaultSchedule, 2005)
		Expect(err).To(BeNil())
		Expect(schedule.IsRebalanceMonth(data.NewMonth(2004, time.April))).To(BeFalse())
		Expect(schedule.IsRebalanceMonth(data.NewMonth(2005, time.April))).To(BeTrue())
	})

	It("supports quarterly schedules", func() {
		schedule, err := rebalance.NewSchedule("0 0 1 1,4,7,10 *", 2000)
		Expect(err).To(BeNil())

		cnt := 0
		for _, m := range data.YearGrid(2000, 2000) {
			if schedule.IsRebalanceMonth(m) {
				cnt++
			}
		}
		Expect(cnt).To(Equal(4))
	})

	It("does not trigger when the day of month never falls on the first", func() {
		schedule, err := rebalance.NewSchedule("0 0 15 4 *", 2000)
		Expect(err).To(BeNil())
		Expect(schedule.IsRebalanceMonth(data.NewMonth(2001, time.April))).To(BeFalse())
	})

	It("rejects malformed specs", func() {
		_, err := rebalance.NewSchedule("every april", 2000)
		Expect(errors.Is(err, rebalance.ErrInvalidSchedule)).To(BeTrue())
	})
})
