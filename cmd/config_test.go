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
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-factors/common"
	"github.com/penny-vault/pv-factors/factor"
	"github.com/penny-vault/pv-factors/monthly"
	"github.com/penny-vault/pv-factors/rebalance"
)

var _ = Describe("Config", func() {
	BeforeEach(func() {
		viper.Reset()
		common.SetDefaults()
	})

	AfterEach(func() {
		viper.Reset()
	})

	It("builds the default factor specs in canonical order", func() {
		cfg, err := rebalanceConfig()
		Expect(err).To(BeNil())
		Expect(cfg.Mode).To(Equal(rebalance.Cumulative))
		Expect(cfg.FirstYear).To(Equal(2001))
		Expect(cfg.Schedule).To(Equal(rebalance.DefaultSchedule))
		Expect(cfg.Factors).To(Equal(rebalance.DefaultSpecs()))
	})

	It("appends extra factors after the standard ones", func() {
		viper.Set("rebalance.factors.wml.field", "return")
		viper.Set("rebalance.factors.wml.direction", "desc")
		viper.Set("rebalance.factors.wml.ratio", 0.1)

		cfg, err := rebalanceConfig()
		Expect(err).To(BeNil())
		Expect(cfg.Factors).To(HaveLen(6))
		Expect(cfg.Factors[5]).To(Equal(rebalance.FactorSpec{
			Name:      "WML",
			Field:     factor.FieldReturn,
			Direction: rebalance.Descending,
			Ratio:     0.1,
		}))
	})

	It("rejects unknown factor fields", func() {
		viper.Set("rebalance.factors.smb.field", "beta")
		_, err := rebalanceConfig()
		Expect(errors.Is(err, factor.ErrUnknownField)).To(BeTrue())
	})

	It("rejects unknown rebalance modes", func() {
		viper.Set("rebalance.mode", "sometimes")
		_, err := rebalanceConfig()
		Expect(errors.Is(err, rebalance.ErrUnknownMode)).To(BeTrue())
	})

	It("reads the pipeline settings", func() {
		viper.Set("fundamental.lookup", "lagged")
		viper.Set("pipeline.workers", 8)

		cfg, err := pipelineConfig()
		Expect(err).To(BeNil())
		Expect(cfg.Lookup).To(Equal(monthly.LookupLagged))
		Expect(cfg.Workers).To(Equal(8))
		Expect(cfg.Window).To(Equal(monthly.DefaultWindow))
		Expect(cfg.StartYear).To(Equal(2000))
		Expect(cfg.EndYear).To(Equal(2024))
		Expect(cfg.SizeUnit).To(Equal(1e8))
		Expect(cfg.PercentFundamentals).To(BeTrue())
		Expect(cfg.OutputDir).To(Equal("data_processed"))
		Expect(cfg.Benchmark).To(Equal("000001.SH"))
	})
})
