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

package davserver

import (
	"path"

	"github.com/llmdav/llmdav/internal/vpath"
)

// IgnoreFilter rejects paths matching any of a set of glob patterns,
// checked against both the full URL-style path and the base name — so a
// pattern like ".DS_Store" matches that file anywhere in the tree, and a
// pattern like "/private/*" can scope to a particular subtree.
type IgnoreFilter struct {
	patterns []string
}

// NewIgnoreFilter constructs a filter from glob patterns in the syntax
// accepted by path.Match.
func NewIgnoreFilter(patterns []string) *IgnoreFilter {
	return &IgnoreFilter{patterns: append([]string(nil), patterns...)}
}

// Matches reports whether path should be hidden from clients.
func (f *IgnoreFilter) Matches(p vpath.Segments) bool {
	if f == nil || len(f.patterns) == 0 {
		return false
	}
	full := p.Display()
	base := ""
	if !p.IsRoot() {
		base = p.Name()
	}
	for _, pat := range f.patterns {
		if ok, _ := path.Match(pat, full); ok {
			return true
		}
		if base != "" {
			if ok, _ := path.Match(pat, base); ok {
				return true
			}
		}
	}
	return false
}
