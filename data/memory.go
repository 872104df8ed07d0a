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

package data

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps all series in memory. It implements both Store and Writer.
type MemoryStore struct {
	locker       sync.RWMutex
	universe     []*Security
	tradingDays  []time.Time
	bars         map[string][]*DailyBar
	valuations   map[string][]*DailyValuation
	fundamentals map[string][]*FundamentalReport
	indices      map[string][]*DailyBar
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bars:         make(map[string][]*DailyBar),
		valuations:   make(map[string][]*DailyValuation),
		fundamentals: make(map[string][]*FundamentalReport),
		indices:      make(map[string][]*DailyBar),
	}
}

func (store *MemoryStore) Universe(ctx context.Context) ([]*Security, error) {
	store.locker.RLock()
	defer store.locker.RUnlock()

	if store.universe == nil {
		return nil, fmt.Errorf("%w: universe", ErrNotFound)
	}

	// report which securities have fundamentals
	res := make([]*Security, len(store.universe))
	for idx, security := range store.universe {
		sec := *security
		_, sec.HasFundamentals = store.fundamentals[sec.ID]
		res[idx] = &sec
	}

	return res, nil
}

func (store *MemoryStore) TradingDays(ctx context.Context) ([]time.Time, error) {
	store.locker.RLock()
	defer store.locker.RUnlock()

	if len(store.tradingDays) == 0 {
		return nil, ErrNoTradingDays
	}
	return store.tradingDays, nil
}

func (store *MemoryStore) DailyBars(ctx context.Context, securityID string) ([]*DailyBar, error) {
	store.locker.RLock()
	defer store.locker.RUnlock()

	if bars, ok := store.bars[securityID]; ok {
		return bars, nil
	}
	return nil, fmt.Errorf("%w: daily bars for %s", ErrNotFound, securityID)
}

func (store *MemoryStore) DailyValuations(ctx context.Context, securityID string) ([]*DailyValuation, error) {
	store.locker.RLock()
	defer store.locker.RUnlock()

	if vals, ok := store.valuations[securityID]; ok {
		return vals, nil
	}
	return nil, fmt.Errorf("%w: valuations for %s", ErrNotFound, securityID)
}

func (store *MemoryStore) Fundamentals(ctx context.Context, securityID string) ([]*FundamentalReport, error) {
	store.locker.RLock()
	defer store.locker.RUnlock()

	if reports, ok := store.fundamentals[securityID]; ok {
		return reports, nil
	}
	return nil, fmt.Errorf("%w: fundamentals for %s", ErrNotFound, securityID)
}

func (store *MemoryStore) IndexBars(ctx context.Context, indexID string) ([]*DailyBar, error) {
	store.locker.RLock()
	defer store.locker.RUnlock()

	if bars, ok := store.indices[indexID]; ok {
		return bars, nil
	}
	return nil, fmt.Errorf("%w: index bars for %s", ErrNotFound, indexID)
}

func (store *MemoryStore) Has(ctx context.Context, dataset Dataset, id string) bool {
	store.locker.RLock()
	defer store.locker.RUnlock()

	var ok bool
	switch dataset {
	case DatasetUniverse:
		ok = store.universe != nil
	case DatasetCalendar:
		ok = len(store.tradingDays) != 0
	case DatasetDaily:
		_, ok = store.bars[id]
	case DatasetValuation:
		_, ok = store.valuations[id]
	case DatasetFundamental:
		_, ok = store.fundamentals[id]
	case DatasetIndex:
		_, ok = store.indices[id]
	}
	return ok
}

func (store *MemoryStore) SaveUniverse(ctx context.Context, securities []*Security) error {
	store.locker.Lock()
	defer store.locker.Unlock()
	store.universe = securities
	return nil
}

func (store *MemoryStore) SaveTradingDays(ctx context.Context, days []time.Time) error {
	store.locker.Lock()
	defer store.locker.Unlock()
	store.tradingDays = days
	return nil
}

func (store *MemoryStore) SaveDailyBars(ctx context.Context, securityID string, bars []*DailyBar) error {
	SortBars(bars)
	store.locker.Lock()
	defer store.locker.Unlock()
	store.bars[securityID] = bars
	return nil
}

func (store *MemoryStore) SaveDailyValuations(ctx context.Context, securityID string, vals []*DailyValuation) error {
	SortValuations(vals)
	store.locker.Lock()
	defer store.locker.Unlock()
	store.valuations[securityID] = vals
	return nil
}

func (store *MemoryStore) SaveFundamentals(ctx context.Context, securityID string, reports []*FundamentalReport) error {
	reports = SortFundamentals(reports)
	store.locker.Lock()
	defer store.locker.Unlock()
	store.fundamentals[securityID] = reports
	return nil
}

func (store *MemoryStore) SaveIndexBars(ctx context.Context, indexID string, bars []*DailyBar) error {
	SortBars(bars)
	store.locker.Lock()
	defer store.locker.Unlock()
	store.indices[indexID] = bars
	return nil
}
