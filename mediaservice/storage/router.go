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

package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mosaic-io/mosaic/mediaservice/media"
	"github.com/mosaic-io/mosaic/pkg/util"
)

const (
	defaultFolder = "media"
	thumbSubpath  = "thumbnails"
	suffixLen     = 6
)

// Router selects a backend for an asset and derives its object keys.
type Router struct {
	now    func() time.Time
	suffix func() string
}

// NewRouter builds a router. now and suffix are injected for deterministic
// key tests; pass nil for production defaults.
func NewRouter(now func() time.Time, suffix func() string) *Router {
	if now == nil {
		now = time.Now
	}
	if suffix == nil {
		suffix = func() string { return util.KeySuffix(suffixLen) }
	}
	return &Router{now: now, suffix: suffix}
}

// Route picks a backend and derives the targets to write. The default is the
// primary store; only an explicit caller flag combined with a video
// classification routes to the large-object backend. Images get a second
// target for the thumbnail under a thumbnails/ subpath of the same folder,
// or none when thumbnailing degraded.
func (r *Router) Route(asset *media.Asset, folder, filename string, preferLarge bool) (Target, *Target) {
	backend := BackendPrimary
	if preferLarge && asset.Kind == media.KindVideo {
		backend = BackendLarge
	}

	folder = SanitizeName(folder)
	if folder == "" {
		folder = defaultFolder
	}
	base := SanitizeName(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "file"
	}
	stamped := fmt.Sprintf("%d-%s-%s", r.now().UnixMilli(), base, r.suffix())

	primary := Target{
		Backend:     backend,
		Key:         fmt.Sprintf("%s/%s.%s", folder, stamped, extensionFor(asset, filename)),
		ContentType: asset.MIME,
	}

	if asset.Kind != media.KindImage || asset.Thumbnail == nil {
		return primary, nil
	}

	thumb := &Target{
		Backend:     BackendPrimary,
		Key:         fmt.Sprintf("%s/%s/%s.%s", folder, thumbSubpath, stamped, extForMIME(asset.ThumbMIME)),
		ContentType: asset.ThumbMIME,
	}
	return primary, thumb
}

// SanitizeName lowercases, strips everything outside [a-z0-9-], and
// collapses repeated separators. The result is URL- and filesystem-safe and
// cannot traverse paths.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '-' || c == '_' || c == ' ' || c == '.' || c == '/' || c == '\\':
			b.WriteRune('-')
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}

func extensionFor(asset *media.Asset, filename string) string {
	if asset.Kind == media.KindImage {
		return extForMIME(asset.MIME)
	}
	if ext := SanitizeName(strings.TrimPrefix(path.Ext(filename), ".")); ext != "" {
		return ext
	}
	return extForMIME(asset.MIME)
}

func extForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	case "video/quicktime":
		return "mov"
	case "video/x-matroska":
		return "mkv"
	case "video/mpeg":
		return "mpg"
	default:
		return "bin"
	}
}
