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

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mosaic-io/mosaic/mediaservice/storage"
	"github.com/mosaic-io/mosaic/pkg/backoff"
	"github.com/mosaic-io/mosaic/pkg/mlog"
)

// Executor commits targets to their backends and confirms durability.
// Each write happens exactly once; there are no blind write retries, which
// would risk duplicate-object costs on a flaky backend.
type Executor struct {
	stores    map[string]storage.Store
	attempts  uint64
	baseDelay time.Duration
}

// NewExecutor builds an executor over the configured backends. attempts and
// baseDelay bound the verification poll.
func NewExecutor(stores map[string]storage.Store, attempts uint64, baseDelay time.Duration) *Executor {
	if attempts == 0 {
		attempts = 5
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	return &Executor{stores: stores, attempts: attempts, baseDelay: baseDelay}
}

// CommitOutcome reports where the objects landed and how confident the
// executor is that they are durable.
type CommitOutcome struct {
	URL             string
	Durability      Durability
	ThumbURL        string
	ThumbDurability Durability
}

// Commit writes the primary object and, when present, the thumbnail. A
// failed primary write is fatal. A thumbnail that cannot be written or never
// becomes observable falls back to the primary URL instead of failing the
// request.
func (e *Executor) Commit(ctx context.Context, primary storage.Target, thumb *storage.Target, data, thumbData []byte) (CommitOutcome, error) {
	var out CommitOutcome

	store, ok := e.stores[primary.Backend]
	if !ok {
		return out, fmt.Errorf("%w: backend %q not configured", ErrStorageUnavailable, primary.Backend)
	}

	url, err := store.Put(ctx, primary, data)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	out.URL = url

	durability, _ := e.verify(ctx, store, primary, int64(len(data)))
	out.Durability = durability
	if durability == DurabilityUnconfirmed {
		mlog.Warnf("durability unconfirmed for %s after %d attempts", primary.Key, e.attempts)
	}

	// No thumbnail target: reuse the primary URL so responses always carry
	// a usable thumbnail link.
	if thumb == nil || len(thumbData) == 0 {
		out.ThumbURL = out.URL
		out.ThumbDurability = out.Durability
		return out, nil
	}

	thumbStore, ok := e.stores[thumb.Backend]
	if !ok {
		thumbStore = store
	}

	thumbURL, err := thumbStore.Put(ctx, *thumb, thumbData)
	if err != nil {
		mlog.Warnf("thumbnail write failed, reusing primary URL: %v", err)
		out.ThumbURL = out.URL
		out.ThumbDurability = out.Durability
		return out, nil
	}

	thumbDurability, observed := e.verify(ctx, thumbStore, *thumb, int64(len(thumbData)))
	if thumbDurability == DurabilityUnconfirmed && !observed {
		// The thumbnail was never seen at all; treat it as lost.
		mlog.Warnf("thumbnail %s never became observable, reusing primary URL", thumb.Key)
		out.ThumbURL = out.URL
		out.ThumbDurability = out.Durability
		return out, nil
	}

	out.ThumbURL = thumbURL
	out.ThumbDurability = thumbDurability
	return out, nil
}

// verify polls the backend for the object with increasing backoff. The
// second return reports whether any poll observed the object at all.
func (e *Executor) verify(ctx context.Context, store storage.Store, t storage.Target, wantSize int64) (Durability, bool) {
	var observed bool
	err := backoff.Do(ctx, backoff.Expo(e.attempts, e.baseDelay), func(ctx context.Context) error {
		info, statErr := store.Stat(ctx, t)
		if statErr != nil {
			return backoff.Retryable(statErr)
		}
		observed = true
		if info.Size != wantSize {
			return backoff.Retryable(fmt.Errorf("observed %d bytes, wrote %d", info.Size, wantSize))
		}
		return nil
	})
	if err != nil {
		return DurabilityUnconfirmed, observed
	}
	return DurabilityConfirmed, observed
}
