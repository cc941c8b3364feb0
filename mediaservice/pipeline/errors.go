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
	"errors"
	"fmt"
)

// ErrNoFile means the request carried no payload at all.
var ErrNoFile = errors.New("pipeline: no file present")

// ErrStorageUnavailable is a fatal failure writing to a backend. Unlike
// verification-poll exhaustion, a failed write is always surfaced.
var ErrStorageUnavailable = errors.New("pipeline: storage backend unavailable")

// MaliciousContentError reports a signature-scanner match.
type MaliciousContentError struct {
	Rule        string
	Description string
}

func (e *MaliciousContentError) Error() string {
	return fmt.Sprintf("malicious content detected (%s): %s", e.Rule, e.Description)
}
