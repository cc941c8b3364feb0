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

// Package pipeline sequences one upload through admission, integrity
// verification, signature scanning, deduplication, transcoding, routing and
// the storage commit.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mosaic-io/mosaic/mediaservice/admission"
	"github.com/mosaic-io/mosaic/mediaservice/dedup"
	"github.com/mosaic-io/mosaic/mediaservice/integrity"
	"github.com/mosaic-io/mosaic/mediaservice/media"
	"github.com/mosaic-io/mosaic/mediaservice/scan"
	"github.com/mosaic-io/mosaic/mediaservice/storage"
	"github.com/mosaic-io/mosaic/pkg/mlog"
)

// Pipeline owns the stages of one ingestion request. All cross-request
// shared state lives behind the gate and the dedup index, which are safe
// under concurrent use.
type Pipeline struct {
	gate       *admission.Gate
	verifier   *integrity.Verifier
	index      dedup.Index
	classifier *media.Classifier
	router     *storage.Router
	executor   *Executor
	tempDir    string
}

// New wires the pipeline stages together.
func New(
	gate *admission.Gate,
	verifier *integrity.Verifier,
	index dedup.Index,
	classifier *media.Classifier,
	router *storage.Router,
	executor *Executor,
	tempDir string,
) *Pipeline {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Pipeline{
		gate:       gate,
		verifier:   verifier,
		index:      index,
		classifier: classifier,
		router:     router,
		executor:   executor,
		tempDir:    tempDir,
	}
}

// Ingest runs one upload through the full pipeline. Stages run sequentially;
// the only deliberate waiting is the bounded verification poll inside the
// executor. The temp copy of the payload is removed on every exit path.
func (p *Pipeline) Ingest(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Data) == 0 {
		return nil, ErrNoFile
	}

	slot, err := p.gate.Acquire()
	if err != nil {
		return nil, err
	}
	defer p.gate.Release(slot)

	tempPath, err := p.spool(req.Data)
	if err != nil {
		return nil, fmt.Errorf("spooling payload: %w", err)
	}
	defer p.cleanup(tempPath)

	if _, err := p.verifier.Verify(ctx, tempPath, req.DeclaredSize, req.Data); err != nil {
		return nil, err
	}

	if verdict := scan.Scan(req.Data); !verdict.Safe {
		mlog.Warnf("rejected %s: signature rule %q", req.Filename, verdict.Rule)
		return nil, &MaliciousContentError{Rule: verdict.Rule, Description: verdict.Description}
	}

	hash := dedup.Fingerprint(req.Data)
	if entry, err := p.index.Lookup(ctx, hash); err != nil {
		mlog.Warnf("dedup lookup failed, continuing without cache: %v", err)
	} else if entry != nil {
		mlog.Infof("dedup hit for %s, short-circuiting", hash[:12])
		return &Result{
			Duplicate: true,
			Hash:      hash,
			URL:       entry.URL,
			ThumbURL:  entry.ThumbURL,
			Filename:  req.Filename,
			Folder:    req.Folder,
			Size:      int64(len(req.Data)),
		}, nil
	}

	asset, err := p.classifier.Classify(req.Filename, req.ContentType, req.Data)
	if err != nil {
		return nil, err
	}

	primary, thumb := p.router.Route(asset, req.Folder, req.Filename, req.PreferLarge)

	outcome, err := p.executor.Commit(ctx, primary, thumb, req.Data, asset.Thumbnail)
	if err != nil {
		return nil, err
	}

	if err := p.index.Insert(ctx, hash, dedup.Entry{URL: outcome.URL, ThumbURL: outcome.ThumbURL}); err != nil {
		mlog.Warnf("dedup insert failed for %s: %v", hash[:12], err)
	}

	return &Result{
		Hash:            hash,
		Kind:            asset.Kind,
		MIME:            asset.MIME,
		Width:           asset.Width,
		Height:          asset.Height,
		Size:            int64(len(req.Data)),
		Filename:        req.Filename,
		Folder:          req.Folder,
		URL:             outcome.URL,
		ThumbURL:        outcome.ThumbURL,
		Durability:      outcome.Durability,
		ThumbDurability: outcome.ThumbDurability,
	}, nil
}

// spool writes the payload to a request-scoped temp file so the integrity
// verifier can compare transport, disk, and buffer observations.
func (p *Pipeline) spool(data []byte) (string, error) {
	f, err := os.CreateTemp(p.tempDir, "upload-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (p *Pipeline) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		mlog.Warnf("failed to remove temp payload %s: %v", filepath.Base(path), err)
	}
}
