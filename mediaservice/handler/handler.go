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

// Package handler is the HTTP surface of the media pipeline. Authentication
// happens upstream; this layer only checks the injected identity headers,
// parses the multipart payload, and maps pipeline outcomes to JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mosaic-io/mosaic/mediaservice/admission"
	"github.com/mosaic-io/mosaic/mediaservice/integrity"
	"github.com/mosaic-io/mosaic/mediaservice/media"
	"github.com/mosaic-io/mosaic/mediaservice/pipeline"
	"github.com/mosaic-io/mosaic/mediaservice/storage"
	"github.com/mosaic-io/mosaic/pkg/mlog"
	"github.com/mosaic-io/mosaic/pkg/util"
)

// Identity headers injected by the upstream auth layer.
const (
	headerUser = "X-Auth-User"
	headerRole = "X-Auth-Role"
)

// allowedRoles may invoke the pipeline; everything else is rejected here.
var allowedRoles = map[string]struct{}{
	"admin":          {},
	"tutor":          {},
	"content-writer": {},
}

// Presigner issues short-lived direct-upload URLs on the large-object
// backend.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (string, time.Time, error)
	PublicURL(key string) string
}

// MediaHandler serves the upload endpoints.
type MediaHandler struct {
	pipe      *pipeline.Pipeline
	gate      *admission.Gate
	presigner Presigner
	maxBytes  int64
}

// NewMediaHandler builds the handler. presigner may be nil when no
// large-object backend is configured.
func NewMediaHandler(pipe *pipeline.Pipeline, gate *admission.Gate, presigner Presigner, maxBytes int64) *MediaHandler {
	return &MediaHandler{pipe: pipe, gate: gate, presigner: presigner, maxBytes: maxBytes}
}

type imageResponse struct {
	URL                      string `json:"url"`
	Thumb                    string `json:"thumb"`
	Width                    int    `json:"width"`
	Height                   int    `json:"height"`
	Type                     string `json:"type"`
	Hash                     string `json:"hash"`
	VerificationPending      bool   `json:"verificationPending,omitempty"`
	ThumbVerificationPending bool   `json:"thumbVerificationPending,omitempty"`
}

type videoResponse struct {
	URL                 string `json:"url"`
	Filename            string `json:"filename"`
	Size                int64  `json:"size"`
	Type                string `json:"type"`
	Folder              string `json:"folder"`
	VerificationPending bool   `json:"verificationPending,omitempty"`
}

type duplicateResponse struct {
	Message      string `json:"message"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Duplicate    bool   `json:"duplicate"`
	OriginalHash string `json:"originalHash"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type directUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Folder      string `json:"folder"`
}

type directUploadResponse struct {
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"publicUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Upload handles POST /v1/media/upload.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.authorize(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Message: "payload too large or malformed", Error: err.Error()})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "no file present in request"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "failed to read upload", Error: err.Error()})
		return
	}

	preferLarge, _ := strconv.ParseBool(r.FormValue("largeObject"))
	req := &pipeline.Request{
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		DeclaredSize: header.Size,
		Folder:       r.FormValue("folder"),
		PreferLarge:  preferLarge,
		Data:         data,
	}

	res, err := h.pipe.Ingest(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if res.Duplicate {
		writeJSON(w, http.StatusOK, duplicateResponse{
			Message:      "identical file already uploaded",
			URL:          res.URL,
			ThumbnailURL: res.ThumbURL,
			Duplicate:    true,
			OriginalHash: res.Hash,
		})
		return
	}

	if res.Kind == media.KindVideo {
		writeJSON(w, http.StatusOK, videoResponse{
			URL:                 res.URL,
			Filename:            res.Filename,
			Size:                res.Size,
			Type:                "video",
			Folder:              res.Folder,
			VerificationPending: res.Durability == pipeline.DurabilityUnconfirmed,
		})
		return
	}

	writeJSON(w, http.StatusOK, imageResponse{
		URL:                      res.URL,
		Thumb:                    res.ThumbURL,
		Width:                    res.Width,
		Height:                   res.Height,
		Type:                     res.MIME,
		Hash:                     res.Hash,
		VerificationPending:      res.Durability == pipeline.DurabilityUnconfirmed,
		ThumbVerificationPending: res.ThumbDurability == pipeline.DurabilityUnconfirmed,
	})
}

// DirectUpload handles POST /v1/media/direct-upload: it hands the client a
// short-lived write URL on the large-object backend so very large payloads
// skip this service entirely.
func (h *MediaHandler) DirectUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.authorize(w, r) {
		return
	}
	if h.presigner == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "large-object backend not configured"})
		return
	}

	var req directUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "filename and contentType are required"})
		return
	}

	key := directUploadKey(req.Folder, req.Filename)
	uploadURL, expiresAt, err := h.presigner.PresignPut(r.Context(), key, req.ContentType)
	if err != nil {
		mlog.Errorf("presign failed for %s: %v", key, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Message: "could not issue upload URL"})
		return
	}

	writeJSON(w, http.StatusOK, directUploadResponse{
		UploadURL: uploadURL,
		PublicURL: h.presigner.PublicURL(key),
		Key:       key,
		ExpiresAt: expiresAt,
	})
}

// Health handles GET /healthz.
func (h *MediaHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"inFlight": h.gate.InFlight(),
	})
}

func (h *MediaHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get(headerUser) == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authentication required"})
		return false
	}
	role := r.Header.Get(headerRole)
	if _, ok := allowedRoles[role]; !ok {
		writeJSON(w, http.StatusForbidden, errorResponse{Message: fmt.Sprintf("role %q may not upload media", role)})
		return false
	}
	return true
}

func (h *MediaHandler) writeError(w http.ResponseWriter, err error) {
	var malicious *pipeline.MaliciousContentError
	if errors.As(err, &malicious) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Message: "malicious content detected: " + malicious.Rule,
			Error:   malicious.Description,
		})
		return
	}

	status := http.StatusInternalServerError
	message := "unexpected failure"

	switch {
	case errors.Is(err, pipeline.ErrNoFile):
		status, message = http.StatusBadRequest, "no file present in request"
	case errors.Is(err, admission.ErrBusy):
		status, message = http.StatusTooManyRequests, "too many concurrent uploads, try again later"
	case errors.Is(err, integrity.ErrTruncated):
		status, message = http.StatusBadRequest, "payload truncated in transit"
	case errors.Is(err, integrity.ErrMismatch):
		status, message = http.StatusUnprocessableEntity, "payload size verification failed"
	case errors.Is(err, media.ErrUnsupportedMediaType):
		status, message = http.StatusUnsupportedMediaType, "unsupported media type"
	case errors.Is(err, media.ErrUndecodable):
		status, message = http.StatusUnprocessableEntity, "image could not be decoded"
	case errors.Is(err, media.ErrDimensionsExceeded):
		status, message = http.StatusUnprocessableEntity, "image dimensions exceed the allowed maximum"
	case errors.Is(err, media.ErrTooLarge):
		status, message = http.StatusRequestEntityTooLarge, "payload exceeds the allowed size"
	case errors.Is(err, pipeline.ErrStorageUnavailable):
		status, message = http.StatusBadGateway, "storage backend unavailable"
	default:
		mlog.Errorf("unexpected pipeline failure: %v", err)
	}

	writeJSON(w, status, errorResponse{Message: message, Error: err.Error()})
}

func directUploadKey(folder, filename string) string {
	folder = storage.SanitizeName(folder)
	if folder == "" {
		folder = "media"
	}
	ext := storage.SanitizeName(strings.TrimPrefix(path.Ext(filename), "."))
	base := storage.SanitizeName(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "file"
	}
	key := fmt.Sprintf("%s/%d-%s-%s", folder, time.Now().UnixMilli(), base, util.KeySuffix(6))
	if ext != "" {
		key += "." + ext
	}
	return key
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		mlog.Errorf("failed to encode response: %v", err)
	}
}
