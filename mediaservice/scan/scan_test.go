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

package scan

import (
	"bytes"
	"testing"
)

func TestScan(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		wantSafe bool
		wantRule string
	}{
		{
			name:     "empty buffer",
			data:     nil,
			wantRule: "Empty File",
		},
		{
			name:     "PE header disguised as jpeg",
			data:     []byte{0x4D, 0x5A, 0x90, 0x00},
			wantRule: "Windows Executable",
		},
		{
			name:     "ELF header",
			data:     append([]byte{0x7F, 0x45, 0x4C, 0x46}, make([]byte, 60)...),
			wantRule: "Linux Executable",
		},
		{
			name:     "shebang",
			data:     []byte("#!/bin/sh\nrm -rf /\n"),
			wantRule: "Script File",
		},
		{
			name:     "php opener",
			data:     []byte("<?php system($_GET['c']); ?>"),
			wantRule: "PHP Script",
		},
		{
			name:     "zip archive",
			data:     []byte{0x50, 0x4B, 0x03, 0x04, 0x14, 0x00},
			wantRule: "ZIP Archive",
		},
		{
			name:     "script tag offset from start",
			data:     []byte("   \t  <ScRiPt>alert(1)</script>"),
			wantRule: "HTML Script Tag",
		},
		{
			name:     "doctype lowercase via marker",
			data:     []byte("\n<!doctype HTML><body>x</body>"),
			wantRule: "HTML Document",
		},
		{
			name:     "javascript protocol heuristic",
			data:     []byte(`<a href="JavaScript:doEvil()">x</a>`),
			wantRule: "Cross-Site Scripting",
		},
		{
			name:     "event handler heuristic",
			data:     []byte(`<img src=x onerror=alert(1)>`),
			wantRule: "Cross-Site Scripting",
		},
		{
			name:     "sql keyword pair",
			data:     []byte("' UNION SELECT password FROM users --"),
			wantRule: "SQL Injection",
		},
		{
			name:     "comment token next to query keyword",
			data:     []byte("x' OR 1=1 -- sElEcT"),
			wantRule: "SQL Injection",
		},
		{
			name:     "comment bytes inside jpeg are not flagged",
			data:     append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("--\x00\x13drop\x7f")...),
			wantSafe: true,
		},
		{
			name:     "comment token without query keyword",
			data:     []byte("front-matter -- just prose"),
			wantSafe: true,
		},
		{
			name:     "plain text",
			data:     []byte("hello, world"),
			wantSafe: true,
		},
		{
			name:     "png payload",
			data:     append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0xAB}, 128)...),
			wantSafe: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := Scan(tc.data)
			if v.Safe != tc.wantSafe {
				t.Errorf("Scan() safe = %v, want %v (rule %q)", v.Safe, tc.wantSafe, v.Rule)
			}
			if tc.wantRule != "" && v.Rule != tc.wantRule {
				t.Errorf("Scan() rule = %q, want %q", v.Rule, tc.wantRule)
			}
			if !tc.wantSafe && v.Description == "" && tc.wantRule != "" {
				t.Errorf("Scan() verdict for %q has empty description", tc.wantRule)
			}
		})
	}
}

func TestScanDeterministic(t *testing.T) {
	data := []byte{0x4D, 0x5A, 0x90, 0x00}
	first := Scan(data)
	second := Scan(data)
	if first != second {
		t.Errorf("Scan() not deterministic: %+v vs %+v", first, second)
	}
}

func TestScanTableOrderTieBreak(t *testing.T) {
	// "<script" is also "<" + text, but the script-tag rule sits first among
	// the HTML openers and must win.
	v := Scan([]byte("<script><html>"))
	if v.Rule != "HTML Script Tag" {
		t.Errorf("Scan() rule = %q, want %q", v.Rule, "HTML Script Tag")
	}
}
