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

package integrity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestVerifyConverges(t *testing.T) {
	data := []byte("sixteen bytes!!!")
	path := writeTemp(t, data)
	v := NewVerifier(3, time.Millisecond)

	rec, err := v.Verify(context.Background(), path, int64(len(data)), data)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), rec.DiskSize)
	assert.Equal(t, int64(len(data)), rec.BufferSize)
	assert.False(t, rec.Truncated)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "accepted payload must not be deleted")
}

func TestVerifyToleratesOneByte(t *testing.T) {
	data := []byte("payload")
	path := writeTemp(t, data)
	v := NewVerifier(3, time.Millisecond)

	_, err := v.Verify(context.Background(), path, int64(len(data))+1, data)
	assert.NoError(t, err)
}

func TestVerifyTruncatedPayload(t *testing.T) {
	data := []byte("short")
	path := writeTemp(t, data)
	v := NewVerifier(3, time.Millisecond)

	rec, err := v.Verify(context.Background(), path, 100, data)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.True(t, rec.Truncated)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "rejected payload must be deleted")
}

func TestVerifyDiskMismatch(t *testing.T) {
	data := []byte("the full declared payload bytes")
	// Disk holds fewer bytes than the buffer and declaration agree on.
	path := writeTemp(t, data[:10])
	v := NewVerifier(2, time.Millisecond)

	_, err := v.Verify(context.Background(), path, int64(len(data)), data)
	assert.ErrorIs(t, err, ErrMismatch)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "rejected payload must be deleted")
}

func TestVerifyMissingFileRetriesThenFails(t *testing.T) {
	data := []byte("data")
	v := NewVerifier(2, time.Millisecond)

	_, err := v.Verify(context.Background(), filepath.Join(t.TempDir(), "absent"), int64(len(data)), data)
	assert.ErrorIs(t, err, ErrMismatch)
}
