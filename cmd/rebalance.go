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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var printReturns bool

func init() {
	rebalanceCmd.Flags().BoolVar(&printReturns, "print", false, "print the factor returns and their summary statistics")
	rootCmd.AddCommand(rebalanceCmd)
}

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Form factor portfolios and compute their monthly returns",
	Long: `Form long/short portfolios for every configured factor on each scheduled
month (April by default) and evaluate their returns every month until the next
formation. Reads the factor table written by factors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		return withTracing(func(ctx context.Context) error {
			records, market, err := p.LoadFactors()
			if err != nil {
				log.Error().Err(err).Msg("could not load factor table; run factors first")
				return err
			}

			df, err := p.Rebalance(ctx, records, market)
			if err != nil {
				return err
			}

			if printReturns {
				fmt.Println(df.Table())
				fmt.Println(df.Describe().Table())
			}

			return p.Finish()
		})
	},
}
