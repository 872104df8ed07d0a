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
	"math"
	"time"

	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/dataframe"
	"github.com/penny-vault/pv-factors/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Columns of the market series
const (
	MarketReturnAnnualized = "market_return_ann"
	MarketReturnMonth      = "market_return_month"
)

// Market builds the market return series from benchmark index bars. The
// series is indexed by the first day of each month; months where either the
// monthly or the trailing annualized return is undefined are dropped.
func (agg *Aggregator) Market(bars []*data.DailyBar, grid []data.Month) *dataframe.DataFrame[time.Time] {
	df := dataframe.New[time.Time](MarketReturnAnnualized, MarketReturnMonth)

	for _, m := range grid {
		df.InsertMap(m.Start(), map[string]float64{
			MarketReturnAnnualized: agg.Window.Momentum(agg.Window.Trailing(bars, m)),
			MarketReturnMonth:      CompoundReturn(dropMissing(monthBars(bars, m))),
		})
	}

	return df.Drop(math.NaN())
}

// MarketSeries reads the bars of the benchmark index from store and builds the market series
func (agg *Aggregator) MarketSeries(ctx context.Context, store data.Store, indexID string, grid []data.Month) (*dataframe.DataFrame[time.Time], error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "monthly.MarketSeries", trace.WithAttributes(opentelemetry.SecurityAttributes(indexID)...))
	defer span.End()

	bars, err := store.IndexBars(ctx, indexID)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("IndexID", indexID).Msg("could not load benchmark bars")
		return nil, err
	}

	df := agg.Market(bars, grid)
	log.Debug().Str("IndexID", indexID).Int("NumMonths", df.Len()).Msg("built market series")
	return df, nil
}
