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
	"github.com/mosaic-io/mosaic/mediaservice/media"
)

// Durability is the post-write confirmation state of a stored object.
// Unconfirmed is a soft success: the write was accepted, but the backend
// never confirmed it within the polling budget. Callers must surface it as a
// warning, not hide it.
type Durability int

const (
	DurabilityConfirmed Durability = iota
	DurabilityUnconfirmed
)

// Request is one upload handed to the pipeline by an already-authenticated
// caller. Data is owned by the request and released when Ingest returns.
type Request struct {
	Filename     string
	ContentType  string
	DeclaredSize int64
	Folder       string
	PreferLarge  bool
	Data         []byte
}

// Result is the committed outcome of one ingestion.
type Result struct {
	Duplicate bool
	Hash      string

	Kind   media.Kind
	MIME   string
	Width  int
	Height int
	Size   int64

	Filename string
	Folder   string

	URL             string
	ThumbURL        string
	Durability      Durability
	ThumbDurability Durability
}
