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
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "mosaic:dedup:"

// RedisIndex implements Index on Redis, for deployments running more than
// one service instance. Expiry is delegated to Redis TTLs.
type RedisIndex struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisIndex connects to Redis at addr and verifies the connection.
func NewRedisIndex(addr string, ttl time.Duration) (*RedisIndex, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisIndex{client: client, ttl: ttl, now: time.Now}, nil
}

// Lookup implements Index.
func (d *RedisIndex) Lookup(ctx context.Context, fingerprint string) (*Entry, error) {
	val, err := d.client.Get(ctx, redisKeyPrefix+fingerprint).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Insert implements Index.
func (d *RedisIndex) Insert(ctx context.Context, fingerprint string, entry Entry) error {
	entry.InsertedAt = d.now()
	jsonEntry, err := json.Marshal(&entry)
	if err != nil {
		return err
	}
	return d.client.Set(ctx, redisKeyPrefix+fingerprint, jsonEntry, d.ttl).Err()
}
