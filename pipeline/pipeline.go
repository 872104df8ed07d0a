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
// Package pipeline runs the monthly aggregation, factor derivation and
// rebalancing stages against a data store and exports their results.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/dataframe"
	"github.com/penny-vault/pv-factors/export"
	"github.com/penny-vault/pv-factors/factor"
	"github.com/penny-vault/pv-factors/monthly"
	"github.com/penny-vault/pv-factors/observability/opentelemetry"
	"github.com/penny-vault/pv-factors/rebalance"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Config holds the settings of every stage
type Config struct {
	Workers   int
	StartYear int
	EndYear   int

	Window    monthly.Window
	Lookup    monthly.LookupMode
	Benchmark string

	SizeUnit            float64
	PercentFundamentals bool

	Rebalance rebalance.Config

	OutputDir string
	MonthDir  string
	Parquet   bool
}

// Pipeline wires the stages together
type Pipeline struct {
	Config     Config
	Grid       []data.Month
	Store      data.Store
	Aggregator *monthly.Aggregator
	Deriver    *factor.Deriver
	Rebalancer *rebalance.Rebalancer
	Exporter   *export.Exporter
}

// Panel is the output of the process stage
type Panel struct {
	Combined []*monthly.CombinedRecord
	Market   *dataframe.DataFrame[time.Time]
	Skipped  []string
}

// New validates cfg and builds every stage
func New(cfg Config, store data.Store) (*Pipeline, error) {
	if cfg.EndYear < cfg.StartYear {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidGrid, cfg.StartYear, cfg.EndYear)
	}

	if cfg.OutputDir == "" {
		return nil, ErrMissingOutput
	}

	if cfg.MonthDir == "" {
		cfg.MonthDir = cfg.OutputDir
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	agg, err := monthly.NewAggregator(cfg.Window, cfg.Lookup)
	if err != nil {
		return nil, err
	}

	deriver, err := factor.NewDeriver(cfg.SizeUnit, cfg.PercentFundamentals)
	if err != nil {
		return nil, err
	}

	rebalancer, err := rebalance.New(cfg.Rebalance)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Config:     cfg,
		Grid:       data.YearGrid(cfg.StartYear, cfg.EndYear),
		Store:      store,
		Aggregator: agg,
		Deriver:    deriver,
		Rebalancer: rebalancer,
		Exporter:   export.New(cfg.OutputDir, cfg.MonthDir, cfg.Parquet),
	}, nil
}

// Process builds the monthly panel of every security that has fundamentals and
// the market series of the benchmark. Securities whose data cannot be read are
// logged and skipped.
func (p *Pipeline) Process(ctx context.Context) (*Panel, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.Process")
	defer span.End()

	universe, err := p.Store.Universe(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "universe unavailable")
		log.Error().Err(err).Msg("could not load universe")
		return nil, err
	}

	securities := make([]*data.Security, 0, len(universe))
	for _, security := range universe {
		if !security.HasFundamentals {
			log.Debug().Str("SecurityID", security.ID).Msg("skipping security without fundamentals")
			continue
		}
		securities = append(securities, security)
	}
	data.SortSecurities(securities)

	if len(securities) == 0 {
		span.SetStatus(codes.Error, "empty universe")
		return nil, ErrNoSecurities
	}

	span.SetAttributes(attribute.Int("NumSecurities", len(securities)))
	log.Info().Int("NumSecurities", len(securities)).Int("NumWorkers", p.Config.Workers).Msg("processing securities")

	panels := make([]*monthly.SecurityPanel, len(securities))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.Config.Workers)

	for idx, security := range securities {
		idx, security := idx, security
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			panel, err := p.Aggregator.Aggregate(groupCtx, p.Store, security, p.Grid)
			if err != nil {
				return nil
			}

			if err := p.Exporter.WriteSecurityPanel(panel); err != nil {
				return err
			}

			panels[idx] = panel
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "processing failed")
		return nil, err
	}

	res := &Panel{}
	for idx, panel := range panels {
		if panel == nil {
			res.Skipped = append(res.Skipped, securities[idx].ID)
			continue
		}
		res.Combined = append(res.Combined, panel.Combined...)
	}
	monthly.SortCombined(res.Combined)

	if len(res.Skipped) > 0 {
		log.Warn().Strs("Skipped", res.Skipped).Msg("some securities could not be processed")
	}

	if err := p.Exporter.WriteCombinedAll(res.Combined); err != nil {
		return nil, err
	}

	res.Market, err = p.Aggregator.MarketSeries(ctx, p.Store, p.Config.Benchmark, p.Grid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "market series unavailable")
		return nil, err
	}

	if err := p.Exporter.WriteMarket(res.Market); err != nil {
		return nil, err
	}

	log.Info().Int("NumRecords", len(res.Combined)).Int("NumMarketMonths", res.Market.Len()).Msg("process stage finished")
	return res, nil
}

// Factors derives and writes the factor table
func (p *Pipeline) Factors(ctx context.Context, panel *Panel) ([]*factor.Record, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.Factors", trace.WithAttributes(
		attribute.Int("NumRecords", len(panel.Combined)),
	))
	defer span.End()

	records := p.Deriver.Derive(panel.Combined, panel.Market)
	if err := p.Exporter.WriteFactors(records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return nil, err
	}

	return records, nil
}

// Rebalance forms the factor portfolios, evaluates their monthly returns and
// writes the series. Records outside the grid still take part in formation but
// only grid months are written.
func (p *Pipeline) Rebalance(ctx context.Context, records []*factor.Record, market *dataframe.DataFrame[time.Time]) (*dataframe.DataFrame[time.Time], error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.Rebalance")
	defer span.End()

	results, _ := p.Rebalancer.Run(ctx, records, market)
	df := p.Rebalancer.Frame(results).Trim(p.Grid[0].Start(), p.Grid[len(p.Grid)-1].End())

	if err := p.Exporter.WriteFactorReturns(df); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return nil, err
	}

	log.Info().Int("NumMonths", df.Len()).Msg("rebalance stage finished")
	return df, nil
}

// LoadPanel reads the panel written by a previous process stage
func (p *Pipeline) LoadPanel() (*Panel, error) {
	combined, err := export.ReadCombinedAll(p.Config.OutputDir)
	if err != nil {
		return nil, err
	}

	market, err := export.ReadMarket(p.Config.OutputDir)
	if err != nil {
		return nil, err
	}

	return &Panel{Combined: combined, Market: market}, nil
}

// LoadFactors reads the factor table and market series written by previous stages
func (p *Pipeline) LoadFactors() ([]*factor.Record, *dataframe.DataFrame[time.Time], error) {
	records, err := export.ReadFactors(p.Config.OutputDir)
	if err != nil {
		return nil, nil, err
	}

	market, err := export.ReadMarket(p.Config.OutputDir)
	if err != nil {
		return nil, nil, err
	}

	return records, market, nil
}

// Finish writes the manifest of everything exported by this pipeline
func (p *Pipeline) Finish() error {
	return p.Exporter.WriteManifest()
}

// Run executes every stage in order. Each stage reads back the files written
// by the one before it, so the output is identical to running the process,
// factors and rebalance commands one after another.
func (p *Pipeline) Run(ctx context.Context) (*dataframe.DataFrame[time.Time], error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.Run")
	defer span.End()

	if _, err := p.Process(ctx); err != nil {
		return nil, err
	}

	panel, err := p.LoadPanel()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if _, err := p.Factors(ctx, panel); err != nil {
		return nil, err
	}

	records, market, err := p.LoadFactors()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	df, err := p.Rebalance(ctx, records, market)
	if err != nil {
		return nil, err
	}

	if err := p.Finish(); err != nil {
		return nil, err
	}

	return df, nil
}
