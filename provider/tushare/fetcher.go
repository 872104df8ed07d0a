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
package tushare

import (
	"context"
	"fmt"

	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Repository is where fetched data is cached
type Repository interface {
	data.Store
	data.Writer
}

// FetchConfig selects what the fetcher downloads
type FetchConfig struct {
	// StartDate and EndDate bound the download (YYYYMMDD)
	StartDate         string
	EndDate           string
	UniverseIndex     string
	ExcludeIndustries []string
	Indices           []string
}

// Fetcher downloads everything needed to build the factor panel. Artifacts
// already present in the repository are not downloaded again.
type Fetcher struct {
	Client *Client
	Repo   Repository
	Config FetchConfig
}

// FetchSummary counts what a fetch did
type FetchSummary struct {
	Downloaded int
	Cached     int
	Failed     []string
}

// NewFetcher validates cfg and creates a fetcher
func NewFetcher(client *Client, repo Repository, cfg FetchConfig) (*Fetcher, error) {
	start, err := data.ParseDate(cfg.StartDate)
	if err != nil {
		return nil, err
	}

	end, err := data.ParseDate(cfg.EndDate)
	if err != nil {
		return nil, err
	}

	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s to %s", data.ErrInvalidTimeRange, cfg.StartDate, cfg.EndDate)
	}

	return &Fetcher{
		Client: client,
		Repo:   repo,
		Config: cfg,
	}, nil
}

// Periods returns the semi-annual report periods between the start and end years
func (f *Fetcher) Periods() []string {
	start, _ := data.ParseDate(f.Config.StartDate)
	end, _ := data.ParseDate(f.Config.EndDate)

	periods := make([]string, 0, 2*(end.Year()-start.Year()+1))
	for year := start.Year(); year <= end.Year(); year++ {
		periods = append(periods, fmt.Sprintf("%d0630", year), fmt.Sprintf("%d1231", year))
	}
	return periods
}

// Run downloads the calendar, universe, per-security series and benchmark
// indices. A security whose download fails is logged and skipped.
func (f *Fetcher) Run(ctx context.Context) (*FetchSummary, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tushare.Fetch")
	defer span.End()

	summary := &FetchSummary{}

	universe, err := f.universe(ctx, summary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "universe unavailable")
		return summary, err
	}

	log.Info().Int("NumSecurities", len(universe)).Msg("fetching security data")

	for _, security := range universe {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := f.security(ctx, security.ID, summary); err != nil {
			log.Warn().Err(err).Str("SecurityID", security.ID).Msg("could not fetch security; skipping")
			summary.Failed = append(summary.Failed, security.ID)
		}
	}

	for _, code := range f.Config.Indices {
		if f.Repo.Has(ctx, data.DatasetIndex, code) {
			summary.Cached++
			continue
		}

		bars, err := f.Client.IndexDaily(ctx, code, f.Config.StartDate, f.Config.EndDate)
		if err == nil {
			err = f.Repo.SaveIndexBars(ctx, code, bars)
		}
		if err != nil {
			log.Warn().Err(err).Str("IndexID", code).Msg("could not fetch index; skipping")
			summary.Failed = append(summary.Failed, code)
			continue
		}
		summary.Downloaded++
	}

	span.SetAttributes(
		attribute.Int("downloaded", summary.Downloaded),
		attribute.Int("cached", summary.Cached),
		attribute.Int("failed", len(summary.Failed)),
	)

	log.Info().Int("Downloaded", summary.Downloaded).Int("Cached", summary.Cached).
		Int("Failed", len(summary.Failed)).Msg("fetch finished")

	return summary, nil
}

// universe loads or builds the universe: constituents of the universe index on
// the last trading day minus excluded industries
func (f *Fetcher) universe(ctx context.Context, summary *FetchSummary) ([]*data.Security, error) {
	if !f.Repo.Has(ctx, data.DatasetCalendar, "") {
		days, err := f.Client.TradeCalendar(ctx, f.Config.StartDate, f.Config.EndDate)
		if err != nil {
			return nil, err
		}
		if err := f.Repo.SaveTradingDays(ctx, days); err != nil {
			return nil, err
		}
		summary.Downloaded++
	} else {
		summary.Cached++
	}

	if f.Repo.Has(ctx, data.DatasetUniverse, "") {
		summary.Cached++
		return f.Repo.Universe(ctx)
	}

	days, err := f.Repo.TradingDays(ctx)
	if err != nil {
		return nil, err
	}

	if len(days) == 0 {
		return nil, data.ErrNoTradingDays
	}
	lastDay := days[len(days)-1]

	constituents, err := f.Client.IndexWeight(ctx, f.Config.UniverseIndex, lastDay)
	if err != nil {
		return nil, err
	}

	members := make(map[string]bool, len(constituents))
	for _, code := range constituents {
		members[code] = true
	}

	excluded := make(map[string]bool, len(f.Config.ExcludeIndustries))
	for _, industry := range f.Config.ExcludeIndustries {
		excluded[industry] = true
	}

	basics, err := f.Client.StockBasic(ctx)
	if err != nil {
		return nil, err
	}

	universe := make([]*data.Security, 0, len(constituents))
	for _, security := range basics {
		if !members[security.ID] || excluded[security.Industry] {
			continue
		}
		universe = append(universe, security)
	}
	data.SortSecurities(universe)

	log.Info().Str("UniverseIndex", f.Config.UniverseIndex).Time("TradeDate", lastDay).
		Int("NumConstituents", len(constituents)).Int("NumSelected", len(universe)).Msg("built universe")

	if err := f.Repo.SaveUniverse(ctx, universe); err != nil {
		return nil, err
	}
	summary.Downloaded++

	return universe, nil
}

func (f *Fetcher) security(ctx context.Context, code string, summary *FetchSummary) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tushare.FetchSecurity", trace.WithAttributes(opentelemetry.SecurityAttributes(code)...))
	defer span.End()

	if f.Repo.Has(ctx, data.DatasetDaily, code) {
		summary.Cached++
	} else {
		bars, err := f.Client.Daily(ctx, code, f.Config.StartDate, f.Config.EndDate)
		if err != nil {
			return err
		}
		if err := f.Repo.SaveDailyBars(ctx, code, bars); err != nil {
			return err
		}
		summary.Downloaded++
	}

	if f.Repo.Has(ctx, data.DatasetValuation, code) {
		summary.Cached++
	} else {
		vals, err := f.Client.DailyBasic(ctx, code, f.Config.StartDate, f.Config.EndDate)
		if err != nil {
			return err
		}
		if err := f.Repo.SaveDailyValuations(ctx, code, vals); err != nil {
			return err
		}
		summary.Downloaded++
	}

	if f.Repo.Has(ctx, data.DatasetFundamental, code) {
		summary.Cached++
		return nil
	}

	reports := make([]*data.FundamentalReport, 0)
	for _, period := range f.Periods() {
		report, err := f.Client.FinaIndicator(ctx, code, period)
		if err != nil {
			return err
		}
		if report != nil {
			reports = append(reports, report)
		}
	}

	if err := f.Repo.SaveFundamentals(ctx, code, reports); err != nil {
		return err
	}
	summary.Downloaded++

	return nil
}
