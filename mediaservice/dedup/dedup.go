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

// Package dedup caches the stored result of previously accepted uploads,
// keyed by the SHA-256 of the full payload. A hit lets the pipeline return
// the cached URLs without transcoding or writing anything.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is the committed result for one fingerprint. Entries are immutable
// after insertion and expire 24 hours later.
type Entry struct {
	URL        string    `json:"url"`
	ThumbURL   string    `json:"thumbUrl"`
	InsertedAt time.Time `json:"insertedAt"`
}

// Index maps content fingerprints to their committed results.
// Lookup returns (nil, nil) on a miss.
type Index interface {
	Lookup(ctx context.Context, fingerprint string) (*Entry, error)
	Insert(ctx context.Context, fingerprint string, entry Entry) error
}

// Fingerprint returns the hex SHA-256 of data. Identical bytes always yield
// the identical fingerprint.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
