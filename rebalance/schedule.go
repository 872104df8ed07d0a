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
package rebalance

import (
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/pv-factors/data"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule rebalances on the first of April
const DefaultSchedule = "0 0 1 4 *"

// Schedule decides which months trigger a portfolio formation. It supports
// the standard CRON format of: Minutes(Min) Hours(H) DayOfMonth(DoM) Month(M) DayOfWeek(DoW)
// and is evaluated at midnight UTC on the first day of each month.
//
// Examples:
//   - every April: 0 0 1 4 *
//   - every quarter: 0 0 1 1,4,7,10 *
//   - every month: 0 0 1 * *
type Schedule struct {
	Schedule       cron.Schedule
	ScheduleString string
	FirstYear      int
}

// NewSchedule parses cronSpec; months before January of firstYear never trigger
func NewSchedule(cronSpec string, firstYear int) (*Schedule, error) {
	specParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	scheduleStr := strings.TrimSpace(cronSpec)
	if scheduleStr == "" {
		scheduleStr = DefaultSchedule
	}

	schedule, err := specParser.Parse(scheduleStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %s", ErrInvalidSchedule, cronSpec, err.Error())
	}

	return &Schedule{
		Schedule:       schedule,
		ScheduleString: scheduleStr,
		FirstYear:      firstYear,
	}, nil
}

// IsRebalanceMonth reports whether the first instant of m matches the schedule
func (s *Schedule) IsRebalanceMonth(m data.Month) bool {
	if m.Year < s.FirstYear {
		return false
	}

	start := m.Start()
	return s.Schedule.Next(start.Add(-time.Second)).Equal(start)
}
