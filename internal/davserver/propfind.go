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
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	"github.com/llmdav/llmdav/internal/store"
	"github.com/llmdav/llmdav/internal/vpath"
)

// requestAdapter returns the Adapter PROPFIND/GET should read through for
// this request: a fresh per-request memoization wrapper (§5) when the
// server is configured to use one, or the shared Adapter unchanged
// otherwise. Writes always go through s.Adapter directly, never this
// wrapper, so a fresh call after any mutation sees current state.
func (s *Server) requestAdapter() store.Adapter {
	if !s.Cache {
		return s.Adapter
	}
	return store.NewRequestCache(s.Adapter)
}

// doPropfind implements §4.3.4. Depth: infinity is capped to Depth: 1 —
// fabrication is recursive enough as it is; a client that really wants the
// whole subtree can walk it one level at a time.
func (s *Server) doPropfind(w http.ResponseWriter, r *http.Request, segs vpath.Segments) {
	if s.Ignore.Matches(segs) {
		http.NotFound(w, r)
		return
	}

	ad := s.requestAdapter()
	exists, err := ad.Exists(r.Context(), segs)
	if err != nil {
		s.writeStatErr(w, err)
		return
	}
	if !exists {
		if !s.runBeforePropfind(w, r, segs) {
			http.NotFound(w, r)
			return
		}
		ad = s.requestAdapter()
	} else {
		// An existing but empty directory is also eligible for fabrication:
		// the hook runs only when the directory lists no children.
		if st, err := ad.Stat(r.Context(), segs); err == nil && st.Kind.String() == "directory" {
			if names, err := ad.Readdir(r.Context(), segs); err == nil && len(names) == 0 {
				if s.runBeforePropfind(w, r, segs) {
					ad = s.requestAdapter()
				}
			}
		}
	}

	st, err := ad.Stat(r.Context(), segs)
	if err != nil {
		s.writeStatErr(w, err)
		return
	}

	entries := []multistatusEntry{{path: segs, st: st}}
	if st.Kind.String() == "directory" && propfindDepth(r) != 0 {
		names, err := ad.Readdir(r.Context(), segs)
		if err != nil {
			s.writeStatErr(w, err)
			return
		}
		names = s.applyOrder(segs, names)
		for _, name := range names {
			child := segs.Child(name)
			if s.Ignore.Matches(child) {
				continue
			}
			cst, err := ad.Stat(r.Context(), child)
			if err != nil {
				continue
			}
			entries = append(entries, multistatusEntry{path: child, st: cst})
		}
	}

	body := buildMultistatus(entries)
	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.WriteHeader(207)
	w.Write(body)
}

// applyOrder reorders names per the dav-state ORDERPATCH vector for dir, if
// one is recorded (§4.3.4 step 6, §9): vector members come first in vector
// order, then any remaining names in their original readdir order.
func (s *Server) applyOrder(dir vpath.Segments, names []string) []string {
	if s.State == nil {
		return names
	}
	order, ok := s.State.Order(dir)
	if !ok {
		return names
	}
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	used := make(map[string]bool, len(order))
	out := make([]string, 0, len(names))
	for _, n := range order {
		if present[n] && !used[n] {
			out = append(out, n)
			used[n] = true
		}
	}
	for _, n := range names {
		if !used[n] {
			out = append(out, n)
		}
	}
	return out
}

// runBeforePropfind invokes the BeforePropfind hook, if one is set, and
// reports whether it returned a non-nil HookResponse. The caller re-stats
// only on true, to pick up anything the hook materialized.
func (s *Server) runBeforePropfind(w http.ResponseWriter, r *http.Request, segs vpath.Segments) bool {
	if s.Hooks.BeforePropfind == nil {
		return false
	}
	resp := s.Hooks.BeforePropfind(r.URL.Path, segs, s.Adapter, s.Logger)
	return resp != nil
}

// propfindDepth parses the Depth header, defaulting to "infinity" (capped
// to 1) when absent, per RFC 4918 §9.1.
func propfindDepth(r *http.Request) int {
	switch strings.TrimSpace(r.Header.Get("Depth")) {
	case "0":
		return 0
	default:
		return 1
	}
}

// searchRequestBody is a minimal DASL basicsearch request: only the
// <D:contains> term inside <D:where> is read, matching the one query
// shape this engine supports.
type searchRequestBody struct {
	XMLName  xml.Name `xml:"searchrequest"`
	Contains string   `xml:"basicsearch>where>contains"`
}

// doSearch implements a minimal DASL-style SEARCH (§9): a <D:contains>
// text substring match over the immediate children of the request path,
// scoped to that one directory — not a recursive subtree walk. No query
// grammar beyond substring match is supported.
func (s *Server) doSearch(w http.ResponseWriter, r *http.Request, segs vpath.Segments) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var req searchRequestBody
	if err := xml.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed searchrequest", http.StatusBadRequest)
		return
	}
	needle := strings.TrimSpace(req.Contains)
	if needle == "" {
		http.Error(w, "SEARCH requires a <D:contains> term", http.StatusBadRequest)
		return
	}

	names, err := s.Adapter.Readdir(r.Context(), segs)
	if err != nil {
		s.writeStatErr(w, err)
		return
	}
	var entries []multistatusEntry
	for _, name := range names {
		if !strings.Contains(name, needle) {
			continue
		}
		child := segs.Child(name)
		if s.Ignore.Matches(child) {
			continue
		}
		st, err := s.Adapter.Stat(r.Context(), child)
		if err != nil {
			continue
		}
		entries = append(entries, multistatusEntry{path: child, st: st})
	}
	out := buildMultistatus(entries)
	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.WriteHeader(207)
	w.Write(out)
}
