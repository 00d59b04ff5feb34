// Copyright 2024 Michael J. Fromberger. All Rights Reserved.
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

package fabricate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/llmdav/llmdav/internal/vpath"
)

// styleHints maps a lowercased path token to a short instruction for the
// kind of names and content that token implies.
var styleHints = []struct {
	token string
	hint  string
}{
	{"src", "code-ish file and folder names (e.g. main.go, utils.py, components/)"},
	{"lib", "code-ish file and folder names (e.g. main.go, utils.py, components/)"},
	{"docs", "documentation-like files (README.md, guide.md, CHANGELOG.md)"},
	{"readme", "documentation-like files (README.md, guide.md, CHANGELOG.md)"},
	{"music", "tracklist-like names (01 - Song Title.mp3, Album/)"},
	{"photos", "image-looking file names (IMG_1234.jpg, vacation-2023/)"},
	{"images", "image-looking file names (IMG_1234.jpg, vacation-2023/)"},
	{"pictures", "image-looking file names (IMG_1234.jpg, vacation-2023/)"},
}

// styleHintFor inspects the lowercased segments of path, outermost first,
// and returns the hint of the first styleHints entry whose token one of
// them contains, or a generic mixed-content hint if none matches.
func styleHintFor(path vpath.Segments) string {
	for _, seg := range path {
		lower := strings.ToLower(seg)
		for _, sh := range styleHints {
			if strings.Contains(lower, sh.token) {
				return sh.hint
			}
		}
	}
	return "plausible mixed file and folder names appropriate to the context"
}

// folderArray renders path the way the embedded REQUEST JSON expects it:
// the root folder is [] rather than ["root"], per the spec's explicit
// canonicalization rule.
func folderArray(path vpath.Segments) []string {
	if path.IsRoot() {
		return []string{}
	}
	return append([]string(nil), []string(path)...)
}

// ListingPrompt builds the plain-text prompt for a fabricate_listing tool
// call. It is pure and deterministic given its inputs, so it is testable
// without a live LLM transport.
func ListingPrompt(path vpath.Segments, depth *int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Emit exactly one tool call to emit_fs_listing and no prose.\n")
	fmt.Fprintf(&b, "Folder: %s\n", path.Display())
	if depth != nil {
		fmt.Fprintf(&b, "WEBDAV_DEPTH=%d\n", *depth)
	}
	fmt.Fprintf(&b, "Style hint: %s\n", styleHintFor(path))
	if path.IsRoot() {
		fmt.Fprintf(&b, "This is the filesystem root: folder_array must be the empty array [], never an array naming the root.\n")
	}
	req := map[string]any{"folder_array": folderArray(path)}
	data, _ := json.Marshal(req)
	fmt.Fprintf(&b, "REQUEST=%s\n", data)
	return b.String()
}

// FileContentPrompt builds the plain-text prompt for an emit_file_content
// (or, for an image/* mimeHint, emit_image_file) tool call.
func FileContentPrompt(path vpath.Segments, mimeHint string) string {
	toolName := "emit_file_content"
	if strings.HasPrefix(mimeHint, "image/") {
		toolName = "emit_image_file"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Emit exactly one tool call to %s and no prose.\n", toolName)
	fmt.Fprintf(&b, "File: %s\n", path.Display())
	if mimeHint != "" {
		fmt.Fprintf(&b, "MIME hint: %s\n", mimeHint)
	}
	fmt.Fprintf(&b, "Style hint: %s\n", styleHintFor(path))
	req := map[string]any{"path_array": folderArray(path)}
	data, _ := json.Marshal(req)
	fmt.Fprintf(&b, "REQUEST=%s\n", data)
	return b.String()
}

// InflightListingKey returns the canonical coalescing key for a listing
// fabrication, per the spec's string form in §3.
func InflightListingKey(path vpath.Segments, depth *int) string {
	d := "null"
	if depth != nil {
		d = strconv.Itoa(*depth)
	}
	return "LISTING:" + path.Display() + ":DEPTH:" + d
}

// InflightFileKey returns the canonical coalescing key for a file-content
// fabrication.
func InflightFileKey(path vpath.Segments, mime string) string {
	return "FILE:" + path.Display() + ":MIME:" + mime
}
