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
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/penny-vault/pv-factors/common"
	"github.com/penny-vault/pv-factors/data"
	"github.com/penny-vault/pv-factors/factor"
	"github.com/penny-vault/pv-factors/monthly"
	"github.com/penny-vault/pv-factors/observability/opentelemetry"
	"github.com/penny-vault/pv-factors/pipeline"
	"github.com/penny-vault/pv-factors/provider/tushare"
	"github.com/penny-vault/pv-factors/rebalance"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// canonical column order of the factor return series
var factorOrder = []string{"smb", "hml", "rmw", "cma", "umd"}

// rebalanceConfig reads the rebalance.* settings
func rebalanceConfig() (rebalance.Config, error) {
	mode, err := rebalance.ParseMode(viper.GetString("rebalance.mode"))
	if err != nil {
		return rebalance.Config{}, err
	}

	// factors from the config file extend the defaults
	configured := make(map[string]bool)
	for _, key := range viper.AllKeys() {
		if rest, ok := strings.CutPrefix(key, "rebalance.factors."); ok {
			if name, _, ok := strings.Cut(rest, "."); ok {
				configured[name] = true
			}
		}
	}

	names := make([]string, 0, len(configured))
	for _, name := range factorOrder {
		if configured[name] {
			names = append(names, name)
			delete(configured, name)
		}
	}

	extra := make([]string, 0, len(configured))
	for name := range configured {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	names = append(names, extra...)

	specs := make([]rebalance.FactorSpec, 0, len(names))
	for _, name := range names {
		prefix := fmt.Sprintf("rebalance.factors.%s.", name)

		field, err := factor.ParseField(viper.GetString(prefix + "field"))
		if err != nil {
			return rebalance.Config{}, fmt.Errorf("%s: %w", name, err)
		}

		direction, err := rebalance.ParseDirection(viper.GetString(prefix + "direction"))
		if err != nil {
			return rebalance.Config{}, fmt.Errorf("%s: %w", name, err)
		}

		specs = append(specs, rebalance.FactorSpec{
			Name:      strings.ToUpper(name),
			Field:     field,
			Direction: direction,
			Ratio:     viper.GetFloat64(prefix + "ratio"),
		})
	}

	return rebalance.Config{
		Schedule:  viper.GetString("rebalance.schedule"),
		FirstYear: viper.GetInt("rebalance.first_year"),
		Mode:      mode,
		Factors:   specs,
	}, nil
}

// pipelineConfig reads the settings of every pipeline stage
func pipelineConfig() (pipeline.Config, error) {
	lookup, err := monthly.ParseLookupMode(viper.GetString("fundamental.lookup"))
	if err != nil {
		return pipeline.Config{}, err
	}

	rebalanceCfg, err := rebalanceConfig()
	if err != nil {
		return pipeline.Config{}, err
	}

	return pipeline.Config{
		Workers:   viper.GetInt("pipeline.workers"),
		StartYear: viper.GetInt("grid.start_year"),
		EndYear:   viper.GetInt("grid.end_year"),
		Window: monthly.Window{
			Months:      viper.GetInt("window.months"),
			TradingDays: viper.GetFloat64("window.trading_days"),
		},
		Lookup:              lookup,
		Benchmark:           viper.GetString("market.benchmark"),
		SizeUnit:            viper.GetFloat64("factor.size_unit"),
		PercentFundamentals: viper.GetBool("factor.percent_fundamentals"),
		Rebalance:           rebalanceCfg,
		OutputDir:           viper.GetString("output.dir"),
		MonthDir:            viper.GetString("output.month_dir"),
		Parquet:             viper.GetBool("output.parquet"),
	}, nil
}

func openStore() (*data.CsvStore, error) {
	return data.NewCsvStore(viper.GetString("data.dir"), viper.GetInt("data.cache_size"))
}

// newPipeline builds a pipeline reading from the configured data directory
func newPipeline() (*pipeline.Pipeline, error) {
	cfg, err := pipelineConfig()
	if err != nil {
		return nil, err
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}

	return pipeline.New(cfg, store)
}

// newFetcher builds a Tushare fetcher writing to the configured data directory
func newFetcher() (*tushare.Fetcher, error) {
	client, err := tushare.NewClient(tushare.Options{
		URL:       viper.GetString("tushare.url"),
		Token:     viper.GetString("tushare.token"),
		RateLimit: viper.GetInt("tushare.rate_limit"),
		Retries:   viper.GetInt("tushare.retries"),
		Timeout:   viper.GetDuration("tushare.timeout"),
	})
	if err != nil {
		return nil, err
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}

	indices := viper.GetStringSlice("tushare.index_list")
	common.ArrToUpper(indices)

	benchmark := strings.ToUpper(viper.GetString("market.benchmark"))
	found := false
	for _, code := range indices {
		if code == benchmark {
			found = true
			break
		}
	}
	if !found && benchmark != "" {
		indices = append(indices, benchmark)
	}

	return tushare.NewFetcher(client, store, tushare.FetchConfig{
		StartDate:         viper.GetString("tushare.start_date"),
		EndDate:           viper.GetString("tushare.end_date"),
		UniverseIndex:     strings.ToUpper(viper.GetString("tushare.universe_index")),
		ExcludeIndustries: viper.GetStringSlice("tushare.exclude_industries"),
		Indices:           indices,
	})
}

// withTracing runs fn with a context that is cancelled on interrupt and
// flushes any recorded spans afterwards
func withTracing(fn func(ctx context.Context) error) error {
	shutdown, err := opentelemetry.Setup()
	if err != nil {
		log.Warn().Err(err).Msg("could not setup tracing; continuing without it")
		shutdown = func(context.Context) error { return nil }
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("could not flush traces")
		}
	}()

	return fn(ctx)
}
