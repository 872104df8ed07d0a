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
package monthly

import (
	"context"
	"sort"

	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Aggregator builds monthly records from daily series
type Aggregator struct {
	Window Window
	Lookup LookupMode
}

// NewAggregator validates the configuration and creates an aggregator
func NewAggregator(window Window, lookup LookupMode) (*Aggregator, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	lookup, err := ParseLookupMode(string(lookup))
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		Window: window,
		Lookup: lookup,
	}, nil
}

// Returns computes the monthly return, trailing volatility and momentum for
// every month of the grid in which the security has at least one bar with a
// percent change. Bars must be sorted by trade date.
func (agg *Aggregator) Returns(security *data.Security, bars []*data.DailyBar, grid []data.Month) []*SecurityMonthRecord {
	res := make([]*SecurityMonthRecord, 0, len(grid))

	for _, m := range grid {
		current := dropMissing(monthBars(bars, m))
		if len(current) == 0 {
			continue
		}

		trailing := agg.Window.Trailing(bars, m)

		res = append(res, &SecurityMonthRecord{
			SecurityID: security.ID,
			Name:       security.Name,
			Month:      m,
			Open:       current[0].Open,
			Close:      current[len(current)-1].Close,
			Return:     CompoundReturn(current),
			Volatility: agg.Window.Volatility(trailing),
			Momentum:   agg.Window.Momentum(trailing),
		})
	}

	return res
}

// Valuations takes the first valuation snapshot of each month that has a
// SecurityMonthRecord. Valuations must be sorted by trade date.
func (agg *Aggregator) Valuations(security *data.Security, records []*SecurityMonthRecord, vals []*data.DailyValuation) []*SecurityMonthValuation {
	res := make([]*SecurityMonthValuation, 0, len(records))

	for _, record := range records {
		begin := record.Month.Start()
		idx := sort.Search(len(vals), func(i int) bool {
			return !vals[i].TradeDate.Before(begin)
		})

		if idx == len(vals) || !record.Month.Contains(vals[idx].TradeDate) {
			continue
		}

		val := vals[idx]
		res = append(res, &SecurityMonthValuation{
			SecurityID:       security.ID,
			Name:             security.Name,
			Month:            record.Month,
			TotalShare:       val.TotalShare,
			TotalMarketValue: val.TotalMarketValue,
			PB:               val.PB,
			PETTM:            val.PETTM,
		})
	}

	return res
}

// Aggregate reads the daily series of security from store and builds its monthly panel
func (agg *Aggregator) Aggregate(ctx context.Context, store data.Store, security *data.Security, grid []data.Month) (*SecurityPanel, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "monthly.Aggregate", trace.WithAttributes(opentelemetry.SecurityAttributes(security.ID)...))
	defer span.End()

	subLog := log.With().Str("SecurityID", security.ID).Logger()

	bars, err := store.DailyBars(ctx, security.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "daily bars unavailable")
		subLog.Warn().Err(err).Msg("could not load daily bars")
		return nil, err
	}

	vals, err := store.DailyValuations(ctx, security.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "valuations unavailable")
		subLog.Warn().Err(err).Msg("could not load daily valuations")
		return nil, err
	}

	reports, err := store.Fundamentals(ctx, security.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fundamentals unavailable")
		subLog.Warn().Err(err).Msg("could not load fundamentals")
		return nil, err
	}

	panel := &SecurityPanel{
		Security: security,
		Records:  agg.Returns(security, bars, grid),
	}
	panel.Valuations = agg.Valuations(security, panel.Records, vals)
	panel.Fundamentals = agg.Fundamentals(security, reports, grid)
	panel.Combined = Combine(panel.Records, panel.Valuations, panel.Fundamentals)

	subLog.Debug().Int("NumMonths", len(panel.Records)).Int("NumValuations", len(panel.Valuations)).
		Int("NumFundamentals", len(panel.Fundamentals)).Msg("aggregated security")

	return panel, nil
}
