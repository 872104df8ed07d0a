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
package rebalance

import "errors"

var (
	ErrInvalidSchedule  = errors.New("invalid rebalance schedule")
	ErrInvalidRatio     = errors.New("bucket ratio must be in (0, 0.5]")
	ErrInvalidDirection = errors.New("sort direction must be ascending or descending")
	ErrUnknownMode      = errors.New("unknown rebalance mode")
	ErrDuplicateFactor  = errors.New("duplicate factor name")
	ErrNoFactors        = errors.New("no factors configured")
)
