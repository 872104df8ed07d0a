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
package common

import "github.com/spf13/viper"

// SetDefaults registers the default value of every configuration key
func SetDefaults() {
	// logging
	viper.SetDefault("log.level", "warning")
	viper.SetDefault("log.output", "stderr")
	viper.SetDefault("log.pretty", true)
	viper.SetDefault("log.report_caller", false)

	// storage
	viper.SetDefault("data.dir", "data")
	viper.SetDefault("data.cache_size", 256)
	viper.SetDefault("output.dir", "data_processed")
	viper.SetDefault("output.month_dir", "data_month")
	viper.SetDefault("output.parquet", false)

	// monthly panel
	viper.SetDefault("grid.start_year", 2000)
	viper.SetDefault("grid.end_year", 2024)
	viper.SetDefault("window.months", 6)
	viper.SetDefault("window.trading_days", 220)
	viper.SetDefault("fundamental.lookup", "source")
	viper.SetDefault("market.benchmark", "000001.SH")
	viper.SetDefault("pipeline.workers", 1)

	// factors
	viper.SetDefault("factor.size_unit", 1e8)
	viper.SetDefault("factor.percent_fundamentals", true)

	// rebalancing
	viper.SetDefault("rebalance.schedule", "0 0 1 4 *")
	viper.SetDefault("rebalance.first_year", 2001)
	viper.SetDefault("rebalance.mode", "cumulative")
	viper.SetDefault("rebalance.factors.smb.field", "size")
	viper.SetDefault("rebalance.factors.smb.direction", "ascending")
	viper.SetDefault("rebalance.factors.smb.ratio", 0.3)
	viper.SetDefault("rebalance.factors.hml.field", "value")
	viper.SetDefault("rebalance.factors.hml.direction", "descending")
	viper.SetDefault("rebalance.factors.hml.ratio", 0.3)
	viper.SetDefault("rebalance.factors.rmw.field", "profitability")
	viper.SetDefault("rebalance.factors.rmw.direction", "descending")
	viper.SetDefault("rebalance.factors.rmw.ratio", 0.3)
	viper.SetDefault("rebalance.factors.cma.field", "investment")
	viper.SetDefault("rebalance.factors.cma.direction", "descending")
	viper.SetDefault("rebalance.factors.cma.ratio", 0.3)
	viper.SetDefault("rebalance.factors.umd.field", "momentum")
	viper.SetDefault("rebalance.factors.umd.direction", "descending")
	viper.SetDefault("rebalance.factors.umd.ratio", 0.3)

	// tushare
	viper.SetDefault("tushare.url", "http://api.tushare.pro")
	viper.SetDefault("tushare.rate_limit", 200)
	viper.SetDefault("tushare.retries", 3)
	viper.SetDefault("tushare.timeout", "30s")
	viper.SetDefault("tushare.start_date", "20000101")
	viper.SetDefault("tushare.end_date", "20241231")
	viper.SetDefault("tushare.universe_index", "399300.SZ")
	viper.SetDefault("tushare.exclude_industries", []string{"银行", "保险"})
	viper.SetDefault("tushare.index_list", []string{"000001.SH", "000300.SH", "399300.SZ"})

	// tracing
	viper.SetDefault("otlp.endpoint", "")
	viper.SetDefault("otlp.http", false)
}
