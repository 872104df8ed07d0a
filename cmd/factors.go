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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(factorsCmd)
}

var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "Derive the factor table from the monthly panel",
	Long: `Derive size, value, profitability, investment, momentum and market
factors for every security-month of the panel written by process. Rows missing
any factor are dropped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		return withTracing(func(ctx context.Context) error {
			panel, err := p.LoadPanel()
			if err != nil {
				log.Error().Err(err).Msg("could not load monthly panel; run process first")
				return err
			}

			records, err := p.Factors(ctx, panel)
			if err != nil {
				return err
			}

			log.Info().Int("NumRecords", len(records)).Msg("factor table written")
			return p.Finish()
		})
	},
}
