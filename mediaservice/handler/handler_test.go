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

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaic-io/mosaic/mediaservice/admission"
	"github.com/mosaic-io/mosaic/mediaservice/dedup"
	"github.com/mosaic-io/mosaic/mediaservice/integrity"
	"github.com/mosaic-io/mosaic/mediaservice/media"
	"github.com/mosaic-io/mosaic/mediaservice/pipeline"
	"github.com/mosaic-io/mosaic/mediaservice/storage"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, t storage.Target, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[t.Key] = append([]byte(nil), data...)
	return "https://cdn.test/" + t.Key, nil
}

func (m *memStore) Stat(ctx context.Context, t storage.Target) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[t.Key]
	if !ok {
		return storage.ObjectInfo{}, errors.New("not found")
	}
	return storage.ObjectInfo{Size: int64(len(obj))}, nil
}

func (m *memStore) Bucket() string { return "test-bucket" }

type fakePresigner struct {
	err error
}

func (f *fakePresigner) PresignPut(ctx context.Context, key, contentType string) (string, time.Time, error) {
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return "https://s3.test/presigned/" + key, time.Now().Add(15 * time.Minute), nil
}

func (f *fakePresigner) PublicURL(key string) string {
	return "https://s3.test/bucket/" + key
}

func newTestHandler(t *testing.T, capacity int, presigner Presigner) (*MediaHandler, *admission.Gate) {
	t.Helper()
	gate := admission.NewGate(capacity, 5*time.Minute, nil)
	store := newMemStore()
	stores := map[string]storage.Store{
		storage.BackendPrimary: store,
		storage.BackendLarge:   store,
	}
	pipe := pipeline.New(
		gate,
		integrity.NewVerifier(3, time.Millisecond),
		dedup.NewMemoryIndex(24*time.Hour, nil),
		media.NewClassifier(media.Policy{MaxImageDim: 2000, ThumbSize: 64}),
		storage.NewRouter(nil, nil),
		pipeline.NewExecutor(stores, 2, time.Millisecond),
		t.TempDir(),
	)
	return NewMediaHandler(pipe, gate, presigner, 8<<20), gate
}

func jpegPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 251), G: uint8(y % 241), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, body *bytes.Buffer, contentType string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Auth-User", "u-123")
	req.Header.Set("X-Auth-Role", "content-writer")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestUploadRequiresIdentity(t *testing.T) {
	h, _ := newTestHandler(t, 2, nil)

	body, ct := multipartBody(t, "a.jpg", jpegPayload(t, 8, 8), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/media/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRejectsUnknownRole(t *testing.T) {
	h, _ := newTestHandler(t, 2, nil)

	body, ct := multipartBody(t, "a.jpg", jpegPayload(t, 8, 8), nil)
	req := uploadRequest(t, body, ct)
	req.Header.Set("X-Auth-Role", "student")

	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUploadRequiresFileField(t *testing.T) {
	h, _ := newTestHandler(t, 2, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("folder", "blog"))
	require.NoError(t, mw.Close())

	req := uploadRequest(t, &buf, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "no file present in request", resp.Message)
}

func TestUploadImageSuccess(t *testing.T) {
	h, gate := newTestHandler(t, 2, nil)

	body, ct := multipartBody(t, "photo.jpg", jpegPayload(t, 640, 480), map[string]string{"folder": "blog-posts"})
	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, body, ct))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp imageResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 640, resp.Width)
	assert.Equal(t, 480, resp.Height)
	assert.Equal(t, "image/jpeg", resp.Type)
	assert.NotEmpty(t, resp.Hash)
	assert.Contains(t, resp.URL, "blog-posts/")
	assert.Contains(t, resp.Thumb, "/thumbnails/")
	assert.False(t, resp.VerificationPending)
	assert.Equal(t, 0, gate.InFlight())
}

func TestUploadDuplicateResponse(t *testing.T) {
	h, _ := newTestHandler(t, 2, nil)
	data := jpegPayload(t, 64, 64)

	body, ct := multipartBody(t, "one.jpg", data, nil)
	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, body, ct))
	require.Equal(t, http.StatusOK, rec.Code)

	body, ct = multipartBody(t, "two.jpg", data, nil)
	rec = httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, body, ct))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp duplicateResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Duplicate)
	assert.NotEmpty(t, resp.URL)
	assert.NotEmpty(t, resp.OriginalHash)
}

func TestUploadMaliciousPayload(t *testing.T) {
	h, _ := newTestHandler(t, 2, nil)

	body, ct := multipartBody(t, "evil.jpg", []byte{0x4D, 0x5A, 0x90, 0x00}, nil)
	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, body, ct))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Message, "Windows Executable")
}

func TestUploadAtCapacity(t *testing.T) {
	h, gate := newTestHandler(t, 1, nil)

	_, err := gate.Acquire()
	require.NoError(t, err)

	body, ct := multipartBody(t, "a.jpg", jpegPayload(t, 8, 8), nil)
	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, body, ct))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestUploadVideoResponse(t *testing.T) {
	h, _ := newTestHandler(t, 2, nil)
	payload := append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}, bytes.Repeat([]byte{0x11}, 512)...)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="file"; filename="clip.mp4"`},
		"Content-Type":        {"video/mp4"},
	})
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("folder", "lectures"))
	require.NoError(t, mw.Close())

	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, &buf, mw.FormDataContentType()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp videoResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "video", resp.Type)
	assert.Equal(t, "clip.mp4", resp.Filename)
	assert.Equal(t, "lectures", resp.Folder)
	assert.Equal(t, int64(len(payload)), resp.Size)
}

func TestDirectUploadWithoutBackend(t *testing.T) {
	h, _ := newTestHandler(t, 2, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/media/direct-upload", strings.NewReader(`{"filename":"big.mp4","contentType":"video/mp4"}`))
	req.Header.Set("X-Auth-User", "u-123")
	req.Header.Set("X-Auth-Role", "admin")

	rec := httptest.NewRecorder()
	h.DirectUpload(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDirectUploadIssuesURL(t *testing.T) {
	h, _ := newTestHandler(t, 2, &fakePresigner{})

	req := httptest.NewRequest(http.MethodPost, "/v1/media/direct-upload", strings.NewReader(`{"filename":"Big Lecture.mp4","contentType":"video/mp4","folder":"lectures"}`))
	req.Header.Set("X-Auth-User", "u-123")
	req.Header.Set("X-Auth-Role", "tutor")

	rec := httptest.NewRecorder()
	h.DirectUpload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp directUploadResponse
	decodeBody(t, rec, &resp)
	assert.True(t, strings.HasPrefix(resp.UploadURL, "https://s3.test/presigned/lectures/"))
	assert.True(t, strings.HasPrefix(resp.Key, "lectures/"))
	assert.True(t, strings.HasSuffix(resp.Key, ".mp4"))
	assert.Contains(t, resp.Key, "big-lecture")
	assert.Equal(t, "https://s3.test/bucket/"+resp.Key, resp.PublicURL)
	assert.False(t, resp.ExpiresAt.IsZero())
}

func TestDirectUploadRequiresFilename(t *testing.T) {
	h, _ := newTestHandler(t, 2, &fakePresigner{})

	req := httptest.NewRequest(http.MethodPost, "/v1/media/direct-upload", strings.NewReader(`{"contentType":"video/mp4"}`))
	req.Header.Set("X-Auth-User", "u-123")
	req.Header.Set("X-Auth-Role", "admin")

	rec := httptest.NewRecorder()
	h.DirectUpload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, 2, nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ok", resp["status"])
}
