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

// Package integrity confirms that the declared upload size, the bytes
// persisted to disk, and a full re-read of those bytes all agree before the
// pipeline trusts the payload.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mosaic-io/mosaic/pkg/backoff"
	"github.com/mosaic-io/mosaic/pkg/mlog"
)

// ErrMismatch is a fatal disagreement between declared and observed sizes.
var ErrMismatch = errors.New("integrity: size mismatch")

// ErrTruncated means the transport delivered fewer bytes than declared.
var ErrTruncated = errors.New("integrity: payload truncated")

// sizeTolerance absorbs harmless off-by-one rounding between transport
// accounting and filesystem accounting.
const sizeTolerance = 1

// Record captures the three observations that must converge.
type Record struct {
	DeclaredSize int64
	DiskSize     int64
	BufferSize   int64
	Truncated    bool
}

// Verifier re-checks filesystem observations a few times before declaring a
// mismatch, absorbing write-propagation lag on slow volumes.
type Verifier struct {
	attempts uint64
	delay    time.Duration
}

// NewVerifier returns a verifier retrying each observation up to attempts
// times with a fixed delay between tries.
func NewVerifier(attempts uint64, delay time.Duration) *Verifier {
	if attempts == 0 {
		attempts = 3
	}
	return &Verifier{attempts: attempts, delay: delay}
}

// Verify checks buf against declared, then the on-disk size at path, then a
// full re-read of path. On a final mismatch the temp file at path is removed
// before returning so no partial payload survives the rejection.
func (v *Verifier) Verify(ctx context.Context, path string, declared int64, buf []byte) (Record, error) {
	rec := Record{
		DeclaredSize: declared,
		BufferSize:   int64(len(buf)),
	}

	if !withinTolerance(rec.BufferSize, declared) {
		rec.Truncated = rec.BufferSize < declared
		if rec.Truncated {
			v.discard(path)
			return rec, fmt.Errorf("%w: declared %d bytes, received %d", ErrTruncated, declared, rec.BufferSize)
		}
		v.discard(path)
		return rec, fmt.Errorf("%w: declared %d bytes, buffered %d", ErrMismatch, declared, rec.BufferSize)
	}

	// On-disk size, retried to absorb filesystem propagation lag.
	err := backoff.Do(ctx, backoff.Fixed(v.attempts, v.delay), func(ctx context.Context) error {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return backoff.Retryable(statErr)
		}
		rec.DiskSize = info.Size()
		if !withinTolerance(rec.DiskSize, declared) {
			return backoff.Retryable(fmt.Errorf("disk size %d vs declared %d", rec.DiskSize, declared))
		}
		return nil
	})
	if err != nil {
		v.discard(path)
		return rec, fmt.Errorf("%w: %v", ErrMismatch, err)
	}

	// Full read must yield the same count again.
	err = backoff.Do(ctx, backoff.Fixed(v.attempts, v.delay), func(ctx context.Context) error {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return backoff.Retryable(readErr)
		}
		if !withinTolerance(int64(len(data)), declared) {
			return backoff.Retryable(fmt.Errorf("read %d bytes vs declared %d", len(data), declared))
		}
		return nil
	})
	if err != nil {
		v.discard(path)
		return rec, fmt.Errorf("%w: %v", ErrMismatch, err)
	}

	return rec, nil
}

func (v *Verifier) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		mlog.Warnf("failed to remove rejected payload %s: %v", path, err)
	}
}

func withinTolerance(got, want int64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= sizeTolerance
}
