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

// Package backoff centralizes the retry policies used by the ingestion
// pipeline. Every stage that tolerates transient failure retries through one
// of these constructors instead of hand-rolling a sleep loop.
package backoff

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Fixed retries up to attempts times total, waiting delay between tries.
func Fixed(attempts uint64, delay time.Duration) retry.Backoff {
	if attempts == 0 {
		attempts = 1
	}
	return retry.WithMaxRetries(attempts-1, retry.NewConstant(delay))
}

// Expo retries up to attempts times total with exponential delays starting
// at base, plus 10% jitter so concurrent pollers do not stampede.
func Expo(attempts uint64, base time.Duration) retry.Backoff {
	if attempts == 0 {
		attempts = 1
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(attempts-1, b)
}

// Do runs fn under the given backoff. fn must wrap transient failures with
// Retryable; any other error aborts immediately.
func Do(ctx context.Context, b retry.Backoff, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, b, fn)
}

// Retryable marks err as transient so Do will try again.
func Retryable(err error) error {
	return retry.RetryableError(err)
}
