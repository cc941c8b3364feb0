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

// Package admission bounds the number of concurrently in-flight ingestions.
package admission

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mosaic-io/mosaic/pkg/mlog"
)

// ErrBusy is returned by Acquire when the gate is at capacity. It is a
// definitive rejection, not a wait: callers retry later at their own
// discretion.
var ErrBusy = errors.New("admission: too many concurrent uploads")

// Slot is a reservation for one in-flight ingestion.
type Slot struct {
	ID         string
	AcquiredAt time.Time
}

// Gate is the process-wide admission table. A slot that is never released,
// for example because the request crashed upstream of Release, is reaped by
// Sweep once it exceeds staleAfter.
type Gate struct {
	mu         sync.Mutex
	capacity   int
	staleAfter time.Duration
	now        func() time.Time
	slots      map[string]time.Time
}

// NewGate creates a gate with the given capacity. now is injected so sweep
// behavior is deterministic under test; pass time.Now in production.
func NewGate(capacity int, staleAfter time.Duration, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{
		capacity:   capacity,
		staleAfter: staleAfter,
		now:        now,
		slots:      make(map[string]time.Time),
	}
}

// Acquire reserves a slot, or returns ErrBusy immediately when the gate is
// at capacity. There is no queueing.
func (g *Gate) Acquire() (Slot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.slots) >= g.capacity {
		return Slot{}, ErrBusy
	}

	s := Slot{ID: uuid.NewString(), AcquiredAt: g.now()}
	g.slots[s.ID] = s.AcquiredAt
	return s, nil
}

// Release returns a slot to the gate. Releasing an already-reaped slot is a
// no-op.
func (g *Gate) Release(s Slot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.slots, s.ID)
}

// InFlight reports the number of currently-held slots.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

// Sweep removes slots older than staleAfter and returns how many it removed.
func (g *Gate) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.staleAfter)
	var reaped int
	for id, acquired := range g.slots {
		if acquired.Before(cutoff) {
			delete(g.slots, id)
			reaped++
		}
	}
	return reaped
}

// Run sweeps the gate on the given interval until stop is closed.
func (g *Gate) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				mlog.Warnf("reaped %d stale admission slot(s)", n)
			}
		case <-stop:
			return
		}
	}
}
