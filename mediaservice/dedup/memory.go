// Copyright 2025 The mosaic Authors
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

package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/mosaic-io/mosaic/pkg/mlog"
)

// MemoryIndex is an in-process Index for single-instance deployments.
// Expired entries are dropped lazily on Lookup and in bulk by Sweep.
type MemoryIndex struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]Entry
}

// NewMemoryIndex creates an index whose entries live for ttl. now is
// injected for deterministic sweep tests; pass time.Now in production.
func NewMemoryIndex(ttl time.Duration, now func() time.Time) *MemoryIndex {
	if now == nil {
		now = time.Now
	}
	return &MemoryIndex{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]Entry),
	}
}

// Lookup implements Index.
func (m *MemoryIndex) Lookup(_ context.Context, fingerprint string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	if m.now().Sub(e.InsertedAt) > m.ttl {
		delete(m.entries, fingerprint)
		return nil, nil
	}
	return &e, nil
}

// Insert implements Index. The insertion timestamp is stamped here so every
// backend ages entries the same way.
func (m *MemoryIndex) Insert(_ context.Context, fingerprint string, entry Entry) error {
	entry.InsertedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fingerprint] = entry
	return nil
}

// Sweep removes expired entries and returns how many it removed.
func (m *MemoryIndex) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	var evicted int
	for fp, e := range m.entries {
		if e.InsertedAt.Before(cutoff) {
			delete(m.entries, fp)
			evicted++
		}
	}
	return evicted
}

// Run sweeps the index on the given interval until stop is closed.
func (m *MemoryIndex) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				mlog.Debugf("evicted %d expired dedup entries", n)
			}
		case <-stop:
			return
		}
	}
}
