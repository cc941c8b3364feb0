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

package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	_ "image/gif"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/mosaic-io/mosaic/pkg/mlog"
)

func (c *Classifier) classifyImage(data []byte) (*Asset, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	mimeType, allowed := imageFormats[format]
	if !allowed {
		return nil, fmt.Errorf("%w: image format %q", ErrUnsupportedMediaType, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrUndecodable, cfg.Width, cfg.Height)
	}
	if cfg.Width > c.policy.MaxImageDim || cfg.Height > c.policy.MaxImageDim {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dpx", ErrDimensionsExceeded, cfg.Width, cfg.Height, c.policy.MaxImageDim)
	}

	asset := &Asset{
		Kind:   KindImage,
		MIME:   mimeType,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	// Advisory self-test: a trivial re-encode catches some corrupt images
	// early, but a failure alone is not fatal. Some valid images fail strict
	// re-encode validation.
	if err := selfTest(img, format); err != nil {
		mlog.Warnf("image self-test failed, continuing: %v", err)
	}

	asset.Thumbnail, asset.ThumbMIME = c.thumbnail(img, format)
	return asset, nil
}

// thumbnail produces a square center-cropped thumbnail. Tier 1 is the
// high-quality imaging pipeline; tier 2 is a lenient bilinear rescale; when
// both fail the asset proceeds without a thumbnail.
func (c *Classifier) thumbnail(img image.Image, format string) ([]byte, string) {
	size := c.policy.ThumbSize

	if data, mimeType, err := thumbnailHQ(img, format, size); err == nil {
		return data, mimeType
	} else {
		mlog.Warnf("high-quality thumbnail failed, falling back: %v", err)
	}

	if data, mimeType, err := thumbnailLenient(img, format, size); err == nil {
		return data, mimeType
	} else {
		mlog.Warnf("fallback thumbnail failed, proceeding without one: %v", err)
	}

	return nil, ""
}

func thumbnailHQ(img image.Image, format string, size int) ([]byte, string, error) {
	thumb := imaging.Fill(img, size, size, imaging.Center, imaging.CatmullRom)
	return encodeThumb(thumb, format)
}

func thumbnailLenient(img image.Image, format string, size int) ([]byte, string, error) {
	src := centerSquare(img)
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, xdraw.Over, nil)
	return encodeThumb(dst, format)
}

// encodeThumb keeps the original format family so PNG-family sources retain
// alpha transparency. GIF and WEBP thumbnails are written as PNG because the
// encoders for those formats are not available; PNG keeps their alpha.
func encodeThumb(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/png", nil
}

func centerSquare(img image.Image) image.Rectangle {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

func selfTest(img image.Image, format string) error {
	if format == "jpeg" {
		return jpeg.Encode(io.Discard, img, &jpeg.Options{Quality: 10})
	}
	return png.Encode(io.Discard, img)
}
