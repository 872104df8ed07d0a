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
// Package rebalance forms long/short factor portfolios on a schedule and
// computes their monthly returns.
package rebalance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/penny-vault/pv-factors/common"
	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/dataframe"
	"github.com/penny-vault/pv-factors/factor"
	"github.com/penny-vault/pv-factors/monthly"
	"github.com/penny-vault/pv-factors/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/stat"
)

// MarketReturnColumn is the name of the market return column of the factor return series
const MarketReturnColumn = "market_return"

// Config configures a Rebalancer
type Config struct {
	Schedule  string
	FirstYear int
	Mode      Mode
	Factors   []FactorSpec
}

// Rebalancer forms factor portfolios and evaluates their returns
type Rebalancer struct {
	Schedule *Schedule
	Mode     Mode
	Factors  []FactorSpec
}

// FactorReturns are the long/short returns of every factor for a month
type FactorReturns struct {
	Month        data.Month
	Returns      map[string]float64
	MarketReturn float64
}

// New validates the configuration and creates a rebalancer
func New(cfg Config) (*Rebalancer, error) {
	schedule, err := NewSchedule(cfg.Schedule, cfg.FirstYear)
	if err != nil {
		return nil, err
	}

	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}

	if len(cfg.Factors) == 0 {
		return nil, ErrNoFactors
	}

	names := make(map[string]bool, len(cfg.Factors))
	for _, spec := range cfg.Factors {
		if names[spec.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFactor, spec.Name)
		}
		names[spec.Name] = true

		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}

	log.Debug().Str("Schedule", schedule.ScheduleString).Int("FirstYear", schedule.FirstYear).Str("Mode", string(mode)).Int("NumFactors", len(cfg.Factors)).Msg("configured rebalancer")

	return &Rebalancer{
		Schedule: schedule,
		Mode:     mode,
		Factors:  cfg.Factors,
	}, nil
}

// BucketSize returns floor(ratio × n), never more than half of n. The
// product is nudged by 1e-9 before flooring so that decimal ratios count
// whole members exactly: 0.29 × 100 is 29, not 28.
func BucketSize(ratio float64, n int) int {
	k := int(math.Floor(ratio*float64(n) + 1e-9))
	if 2*k > n {
		k = n / 2
	}
	return k
}

// rank sorts the cross-section by field; ties are ordered by security ID
func rank(spec FactorSpec, crossSection []*factor.Record) []string {
	pairs := make(common.PairList, 0, len(crossSection))
	for _, record := range crossSection {
		val := record.Get(spec.Field)
		if data.IsNA(val) {
			continue
		}
		if spec.Direction == Descending {
			val = -val
		}
		pairs = append(pairs, common.Pair{Key: record.SecurityID, Value: val})
	}

	sort.Sort(pairs)

	ids := make([]string, len(pairs))
	for idx, pair := range pairs {
		ids[idx] = pair.Key
	}
	return ids
}

// Form buckets the cross-section for every factor. In cumulative mode the
// result starts from a copy of prev; in replace mode it starts empty. prev
// is never modified.
func (r *Rebalancer) Form(prev Assignment, crossSection []*factor.Record) Assignment {
	var next Assignment
	if r.Mode == Cumulative && prev != nil {
		next = prev.Clone()
	} else {
		next = make(Assignment, len(r.Factors))
	}

	for _, spec := range r.Factors {
		sides, ok := next[spec.Name]
		if !ok {
			sides = make(map[string]Side)
			next[spec.Name] = sides
		}

		ids := rank(spec, crossSection)
		k := BucketSize(spec.Ratio, len(ids))

		for _, id := range ids[:k] {
			sides[id] = Top
		}
		for _, id := range ids[len(ids)-k:] {
			sides[id] = Bottom
		}

		log.Debug().Str("Factor", spec.Name).Int("N", len(ids)).Int("BucketSize", k).Msg("formed factor portfolio")
	}

	return next
}

// Evaluate computes the return of every factor for the cross-section: the
// mean return of the top members present minus the mean return of the
// bottom members present. A factor with an empty side is NaN.
func (r *Rebalancer) Evaluate(assignment Assignment, crossSection []*factor.Record) *FactorReturns {
	res := &FactorReturns{
		Returns:      make(map[string]float64, len(r.Factors)),
		MarketReturn: math.NaN(),
	}

	if len(crossSection) > 0 {
		res.Month = crossSection[0].Month
	}

	for _, spec := range r.Factors {
		top := make([]float64, 0)
		bottom := make([]float64, 0)

		for _, record := range crossSection {
			side, ok := assignment.Side(spec.Name, record.SecurityID)
			if !ok {
				continue
			}
			switch side {
			case Top:
				top = append(top, record.Return)
			case Bottom:
				bottom = append(bottom, record.Return)
			}
		}

		if len(top) == 0 || len(bottom) == 0 {
			res.Returns[spec.Name] = math.NaN()
			continue
		}

		res.Returns[spec.Name] = stat.Mean(top, nil) - stat.Mean(bottom, nil)
	}

	return res
}

// Run walks every calendar month from the first to the last month of records,
// forming portfolios on scheduled months and evaluating the held portfolios
// every month. Months before the first formation produce no result; a held
// month without records produces a row of NaN factor returns. A scheduled
// month without records keeps the previous portfolios. The market return of
// each month is taken from the market series' monthly return.
func (r *Rebalancer) Run(ctx context.Context, records []*factor.Record, market *dataframe.DataFrame[time.Time]) ([]*FactorReturns, Assignment) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "rebalance.Run")
	defer span.End()

	marketMap := market.AsMap(monthly.MarketReturnMonth)
	months, sections := factor.CrossSections(records)

	var current Assignment
	formations := 0
	results := make([]*FactorReturns, 0, len(months))

	if len(months) == 0 {
		return results, current
	}

	for _, m := range data.MonthRange(months[0], months[len(months)-1]) {
		section := sections[m]

		if r.Schedule.IsRebalanceMonth(m) {
			if len(section) == 0 {
				log.Warn().Stringer("Month", m).Bool("Holding", current != nil).Msg("no factor records in rebalance month; keeping previous portfolios")
			} else {
				current = r.Form(current, section)
				formations++
				log.Info().Stringer("Month", m).Int("NumSecurities", len(section)).Msg("rebalanced factor portfolios")
			}
		}

		if current == nil {
			continue
		}

		res := r.Evaluate(current, section)
		res.Month = m
		if val, ok := marketMap[m.Start()]; ok {
			res.MarketReturn = val
		}
		results = append(results, res)
	}

	span.SetAttributes(attribute.Int("formations", formations), attribute.Int("months", len(results)))
	return results, current
}

// ColumnNames returns the columns of the factor return series
func (r *Rebalancer) ColumnNames() []string {
	cols := make([]string, 0, len(r.Factors)+1)
	for _, spec := range r.Factors {
		cols = append(cols, spec.Name)
	}
	return append(cols, MarketReturnColumn)
}

// Frame converts results into a dataframe indexed by the first day of each month
func (r *Rebalancer) Frame(results []*FactorReturns) *dataframe.DataFrame[time.Time] {
	df := dataframe.New[time.Time](r.ColumnNames()...)
	for _, res := range results {
		vals := make(map[string]float64, len(res.Returns)+1)
		for name, val := range res.Returns {
			vals[name] = val
		}
		vals[MarketReturnColumn] = res.MarketReturn
		df.InsertMap(res.Month.Start(), vals)
	}
	return df
}
