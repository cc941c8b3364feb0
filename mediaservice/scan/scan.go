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

// Package scan classifies raw upload bytes against known-dangerous byte
// patterns and text heuristics. It runs on every upload, before any declared
// or sniffed MIME type is trusted, so a payload cannot hide behind a spoofed
// content type or filename extension.
package scan

import (
	"bytes"
	"strings"
)

const (
	// headerWindow is enough for every header-based signature we match.
	headerWindow = 512
	// markerWindow catches signatures not aligned to offset 0.
	markerWindow = 100
	// textWindow is the slice inspected by the XSS/SQLi heuristics.
	textWindow = 200
)

// Verdict is the result of scanning one payload. Verdicts are never cached:
// content differs per file.
type Verdict struct {
	Safe        bool
	Rule        string
	Description string
}

type signature struct {
	prefix []byte
	// marker, when set, is also searched case-insensitively within the
	// first markerWindow bytes.
	marker      string
	name        string
	description string
}

// signatures is ordered: the first match wins, and the order doubles as the
// tie-break policy. Do not reorder.
var signatures = []signature{
	{prefix: []byte{0x4D, 0x5A}, name: "Windows Executable", description: "PE/MZ executable header"},
	{prefix: []byte{0x7F, 0x45, 0x4C, 0x46}, name: "Linux Executable", description: "ELF executable header"},
	{prefix: []byte{0xCA, 0xFE, 0xBA, 0xBE}, name: "Mach-O/Java Executable", description: "Mach-O fat binary or Java class header"},
	{prefix: []byte("#!"), marker: "#!", name: "Script File", description: "interpreter shebang"},
	{prefix: []byte("<?php"), marker: "<?php", name: "PHP Script", description: "PHP opening tag"},
	{prefix: []byte("<script"), marker: "<script", name: "HTML Script Tag", description: "inline script element"},
	{prefix: []byte("<!DOCTYPE html"), marker: "<!doctype html", name: "HTML Document", description: "HTML doctype declaration"},
	{prefix: []byte("<html"), marker: "<html", name: "HTML Document", description: "HTML document opener"},
	{prefix: []byte("<iframe"), marker: "<iframe", name: "HTML Iframe", description: "iframe element"},
	{prefix: []byte("<object"), marker: "<object", name: "HTML Object Tag", description: "object element"},
	{prefix: []byte("<embed"), marker: "<embed", name: "HTML Embed Tag", description: "embed element"},
	{prefix: []byte{0x50, 0x4B, 0x03, 0x04}, name: "ZIP Archive", description: "ZIP local file header, possible polyglot"},
	{prefix: []byte("Rar!"), name: "RAR Archive", description: "RAR archive header, possible polyglot"},
	{prefix: []byte{0x1F, 0x8B}, name: "GZIP Archive", description: "gzip header, possible polyglot"},
	{prefix: []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, name: "7-Zip Archive", description: "7z header, possible polyglot"},
}

// xssMarkers are substrings that indicate script injection in text content.
var xssMarkers = []string{
	"javascript:",
	"onerror=",
	"onload=",
	"onclick=",
	"onmouseover=",
	"onfocus=",
}

// sqlKeywordPairs must co-occur within the text window to be flagged;
// single keywords are too common in legitimate text.
var sqlKeywordPairs = [][2]string{
	{"union", "select"},
	{"drop", "table"},
	{"insert", "into"},
	{"delete", "from"},
	{"exec", "("},
}

var sqlQueryKeywords = []string{"select", "insert", "update", "delete", "drop", "union"}

// imageHeaders: JPEG, PNG, GIF, the RIFF container carrying WEBP, and BMP.
var imageHeaders = [][]byte{
	{0xFF, 0xD8, 0xFF},
	{0x89, 0x50, 0x4E, 0x47},
	[]byte("GIF87a"),
	[]byte("GIF89a"),
	[]byte("RIFF"),
	{0x42, 0x4D},
}

// Scan classifies data. It is a pure function of the first 512 bytes plus a
// 200-byte text window.
func Scan(data []byte) Verdict {
	if len(data) == 0 {
		return Verdict{Rule: "Empty File", Description: "zero-length payload"}
	}

	header := data
	if len(header) > headerWindow {
		header = header[:headerWindow]
	}

	// Exact prefix match, in table order.
	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.prefix) {
			return Verdict{Rule: sig.name, Description: sig.description}
		}
	}

	// The same markers, case-insensitive, anywhere in the first 100 bytes.
	marker := header
	if len(marker) > markerWindow {
		marker = marker[:markerWindow]
	}
	lowMarker := strings.ToLower(string(marker))
	for _, sig := range signatures {
		if sig.marker == "" {
			continue
		}
		if strings.Contains(lowMarker, sig.marker) {
			return Verdict{Rule: sig.name, Description: sig.description}
		}
	}

	if v, ok := scanHeuristics(header); ok {
		return v
	}

	return Verdict{Safe: true}
}

func scanHeuristics(header []byte) (Verdict, bool) {
	text := header
	if len(text) > textWindow {
		text = text[:textWindow]
	}
	low := strings.ToLower(string(text))

	for _, m := range xssMarkers {
		if strings.Contains(low, m) {
			return Verdict{Rule: "Cross-Site Scripting", Description: "script trigger " + m}, true
		}
	}

	for _, pair := range sqlKeywordPairs {
		if strings.Contains(low, pair[0]) && strings.Contains(low, pair[1]) {
			return Verdict{Rule: "SQL Injection", Description: "keywords " + pair[0] + "/" + pair[1]}, true
		}
	}

	// A lone comment-opening token is only suspicious next to a query
	// keyword, and never inside binary image data, which routinely contains
	// comment-like byte runs.
	if (strings.Contains(low, "--") || strings.Contains(low, "/*")) && !hasImageHeader(header) {
		for _, kw := range sqlQueryKeywords {
			if strings.Contains(low, kw) {
				return Verdict{Rule: "SQL Injection", Description: "comment token near keyword " + kw}, true
			}
		}
	}

	return Verdict{}, false
}

func hasImageHeader(data []byte) bool {
	for _, h := range imageHeaders {
		if bytes.HasPrefix(data, h) {
			return true
		}
	}
	return false
}
