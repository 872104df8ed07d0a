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
package common_test

import (
	"os"
	"path/filepath"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-factors/common"
)

var _ = Describe("PairList", func() {
	It("sorts by value then key", func() {
		pairs := common.PairList{
			{Key: "000003.SZ", Value: 2},
			{Key: "000002.SZ", Value: 1},
			{Key: "000001.SZ", Value: 2},
			{Key: "000004.SZ", Value: -1},
		}
		sort.Sort(pairs)

		keys := make([]string, len(pairs))
		for idx, pair := range pairs {
			keys[idx] = pair.Key
		}
		Expect(keys).To(Equal([]string{"000004.SZ", "000002.SZ", "000001.SZ", "000003.SZ"}))
	})
})

var _ = Describe("ArrToUpper", func() {
	It("upper cases and trims in place", func() {
		arr := []string{" 000001.sh", "399300.sz "}
		common.ArrToUpper(arr)
		Expect(arr).To(Equal([]string{"000001.SH", "399300.SZ"}))
	})
})

var _ = Describe("SetupLogging", func() {
	var (
		level zerolog.Level
	)

	BeforeEach(func() {
		level = zerolog.GlobalLevel()
		viper.Reset()
		common.SetDefaults()
	})

	AfterEach(func() {
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(GinkgoWriter)
		viper.Reset()
	})

	It("writes to a log file at the configured level", func() {
		fn := filepath.Join(GinkgoT().TempDir(), "pvfactors.log")
		viper.Set("log.output", fn)
		viper.Set("log.pretty", false)
		viper.Set("log.level", "info")

		common.SetupLogging()
		Expect(zerolog.GlobalLevel()).To(Equal(zerolog.InfoLevel))

		log.Debug().Msg("hidden message")
		log.Info().Str("SecurityID", "000001.SZ").Msg("visible message")

		contents, err := os.ReadFile(fn)
		Expect(err).To(BeNil())
		Expect(string(contents)).To(ContainSubstring(`"SecurityID":"000001.SZ"`))
		Expect(string(contents)).To(ContainSubstring("visible message"))
		Expect(string(contents)).ToNot(ContainSubstring("hidden message"))
	})

	It("falls back to warnings for an unknown level", func() {
		viper.Set("log.output", "stderr")
		viper.Set("log.level", "chatty")

		common.SetupLogging()
		Expect(zerolog.GlobalLevel()).To(Equal(zerolog.WarnLevel))
	})
})
