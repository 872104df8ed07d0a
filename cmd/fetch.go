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
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download raw data from Tushare Pro into the data directory",
	Long: `Download the trade calendar, universe, daily bars, daily valuations,
semi-annual financial indicators and benchmark indices from Tushare Pro.
Files that already exist in the data directory are not downloaded again.
The API token is read from tushare.token or the TUSHARE_TOKEN environment
variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fetcher, err := newFetcher()
		if err != nil {
			return err
		}

		return withTracing(func(ctx context.Context) error {
			summary, err := fetcher.Run(ctx)
			if err != nil {
				return err
			}

			if len(summary.Failed) > 0 {
				log.Warn().Strs("Failed", summary.Failed).Msg("some downloads failed; run fetch again to retry them")
			}
			return nil
		})
	},
}
