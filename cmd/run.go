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

	"github.com/spf13/cobra"
)

var (
	runFetch bool
	runPrint bool
)

func init() {
	runCmd.Flags().BoolVar(&runFetch, "fetch", false, "download missing raw data before processing")
	runCmd.Flags().BoolVar(&runPrint, "print", false, "print a summary of the factor returns")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage: process, factors and rebalance",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		return withTracing(func(ctx context.Context) error {
			if runFetch {
				fetcher, err := newFetcher()
				if err != nil {
					return err
				}
				if _, err := fetcher.Run(ctx); err != nil {
					return err
				}
			}

			df, err := p.Run(ctx)
			if err != nil {
				return err
			}

			if runPrint {
				fmt.Println(df.Describe().Table())
			}
			return nil
		})
	},
}
