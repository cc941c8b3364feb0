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

// Package media classifies uploads into image or video, enforces the image
// dimension and format policy, and produces thumbnails.
package media

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Classification errors surfaced to the caller with a specific status.
var (
	ErrUnsupportedMediaType = errors.New("media: unsupported media type")
	ErrUndecodable          = errors.New("media: image cannot be decoded")
	ErrDimensionsExceeded   = errors.New("media: image dimensions exceed limit")
	ErrTooLarge             = errors.New("media: payload exceeds size limit")
)

// Kind is the media branch an upload is dispatched to.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

// Asset is a classified, policy-checked upload. Thumbnail is nil when
// thumbnailing degraded; the primary asset is still valid.
type Asset struct {
	Kind      Kind
	MIME      string
	Format    string
	Width     int
	Height    int
	Thumbnail []byte
	ThumbMIME string
}

// Policy bounds what the transcoder accepts.
type Policy struct {
	MaxImageDim   int
	ThumbSize     int
	MaxVideoBytes int64
}

// imageFormats is the allow-list of decodable image formats, keyed by the
// format name the decoder reports. Declared MIME does not get a vote.
var imageFormats = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
}

var videoMIMEs = map[string]struct{}{
	"video/mp4":        {},
	"video/webm":       {},
	"video/quicktime":  {},
	"video/mpeg":       {},
	"video/x-matroska": {},
}

// Classifier dispatches uploads by normalized MIME.
type Classifier struct {
	policy Policy
}

func NewClassifier(p Policy) *Classifier {
	if p.MaxImageDim <= 0 {
		p.MaxImageDim = 2000
	}
	if p.ThumbSize <= 0 {
		p.ThumbSize = 300
	}
	return &Classifier{policy: p}
}

// Classify inspects data and returns a policy-checked Asset. The declared
// MIME is only consulted after the signature scan has already passed; when
// absent or generic it is inferred from content, then from the filename
// extension.
func (c *Classifier) Classify(filename, declaredMIME string, data []byte) (*Asset, error) {
	m := normalizeMIME(filename, declaredMIME, data)

	switch {
	case strings.HasPrefix(m, "image/"):
		return c.classifyImage(data)
	case strings.HasPrefix(m, "video/"):
		return c.classifyVideo(m, data)
	default:
		return nil, ErrUnsupportedMediaType
	}
}

func (c *Classifier) classifyVideo(m string, data []byte) (*Asset, error) {
	if _, ok := videoMIMEs[m]; !ok {
		return nil, ErrUnsupportedMediaType
	}
	if c.policy.MaxVideoBytes > 0 && int64(len(data)) > c.policy.MaxVideoBytes {
		return nil, ErrTooLarge
	}
	// Video bytes pass through unmodified; no re-encoding happens here.
	return &Asset{Kind: KindVideo, MIME: m}, nil
}

func normalizeMIME(filename, declared string, data []byte) string {
	m := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(m, ";"); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m != "" && m != "application/octet-stream" {
		return m
	}

	sniffed := mimetype.Detect(data).String()
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = strings.TrimSpace(sniffed[:i])
	}
	if sniffed != "" && sniffed != "application/octet-stream" {
		return sniffed
	}

	byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if i := strings.Index(byExt, ";"); i >= 0 {
		byExt = strings.TrimSpace(byExt[:i])
	}
	return byExt
}
