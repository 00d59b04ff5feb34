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

// Package vpath defines the canonical path representation shared by the
// persistence adapter and the WebDAV protocol engine: an ordered sequence
// of non-empty segments, with "/" represented by the empty sequence.
package vpath

import (
	"fmt"
	"net/url"
	"strings"
)

// Segments is a path broken into its component names. The root path is the
// empty slice, never a slice containing a single empty or "root" element.
type Segments []string

// Parse splits a URL path into Segments, validating each component.
// Leading, trailing and repeated slashes are ignored (empty segments are
// dropped), and so are "." segments. It rejects any segment equal to ".."
// (directory traversal is never permitted).
func Parse(urlPath string) (Segments, error) {
	var out Segments
	for _, p := range strings.Split(urlPath, "/") {
		if p == "" || p == "." {
			continue
		}
		if p == ".." {
			return nil, fmt.Errorf("vpath: illegal segment %q", p)
		}
		if strings.Contains(p, "/") {
			return nil, fmt.Errorf("vpath: segment %q contains separator", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// Display renders Segments as a display path. The root (empty Segments)
// renders as "/", and no other path ever renders with a synthetic "root"
// element.
func (s Segments) Display() string {
	if len(s) == 0 {
		return "/"
	}
	return "/" + strings.Join(s, "/")
}

// URLPath renders Segments as a percent-encoded URL path, suitable for use
// in an <D:href> element. Each segment is encoded independently so that
// slashes within a name (which cannot occur, see Parse) never collide with
// the path separator.
func (s Segments) URLPath() string {
	if len(s) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range s {
		b.WriteByte('/')
		b.WriteString(urlEncodeSegment(seg))
	}
	return b.String()
}

func urlEncodeSegment(s string) string {
	u := url.URL{Path: s}
	return u.EscapedPath()
}

// Name is the last segment of the path, or "" for the root.
func (s Segments) Name() string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

// Parent returns the segments of the immediate parent, and whether s had a
// parent at all (false for the root).
func (s Segments) Parent() (Segments, bool) {
	if len(s) == 0 {
		return nil, false
	}
	return s[:len(s)-1], true
}

// Child returns a new Segments with name appended.
func (s Segments) Child(name string) Segments {
	out := make(Segments, len(s)+1)
	copy(out, s)
	out[len(s)] = name
	return out
}

// IsRoot reports whether s denotes the root path.
func (s Segments) IsRoot() bool { return len(s) == 0 }

// Key returns a canonical string suitable for use as a map key (e.g. in the
// per-path lock manager or a KV-backed persistence adapter). Unlike
// Display it has no leading slash ("a/b"), except that the root is "/".
func (s Segments) Key() string {
	if len(s) == 0 {
		return "/"
	}
	return strings.Join(s, "/")
}

// InTree reports whether child lies within (or equals) subtree.
func InTree(child, subtree Segments) bool {
	if len(child) < len(subtree) {
		return false
	}
	for i, seg := range subtree {
		if child[i] != seg {
			return false
		}
	}
	return true
}

// Equal reports whether a and b name the same path.
func Equal(a, b Segments) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of s that shares no backing array with it.
func (s Segments) Clone() Segments {
	out := make(Segments, len(s))
	copy(out, s)
	return out
}
