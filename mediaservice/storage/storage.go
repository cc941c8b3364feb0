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

// Package storage abstracts the blob backends an upload can be committed to
// and derives collision-resistant object keys.
package storage

import (
	"context"
)

// Backend identifiers.
const (
	BackendPrimary = "primary"
	BackendLarge   = "large"
)

// Target is one destination object to be written as part of a commit.
// The original asset and its thumbnail are separate targets.
type Target struct {
	Backend     string
	Bucket      string
	Key         string
	ContentType string
}

// ObjectInfo is the durable state observed by a Stat.
type ObjectInfo struct {
	Size int64
}

// Store writes and observes objects on one backend.
type Store interface {
	// Put writes data to the target exactly once and returns the public URL.
	Put(ctx context.Context, t Target, data []byte) (string, error)
	// Stat observes the object, for post-write durability confirmation.
	Stat(ctx context.Context, t Target) (ObjectInfo, error)
	// Bucket is the namespace targets on this store are written into.
	Bucket() string
}
