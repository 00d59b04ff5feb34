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

// Package davserver implements the WebDAV protocol engine: verb dispatch,
// XML multistatus bodies, dialect/Depth/ignore policy. It knows nothing
// about LLM fabrication; that is attached entirely through the Hooks
// collaborator so this package stays a plain, testable protocol engine.
package davserver

import (
	"context"
	"html"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/llmdav/llmdav/internal/davstate"
	"github.com/llmdav/llmdav/internal/pathlock"
	"github.com/llmdav/llmdav/internal/store"
	"github.com/llmdav/llmdav/internal/tree"
	"github.com/llmdav/llmdav/internal/vpath"
)

// Server is the http.Handler implementing the dispatch table in §4.3. The
// zero value is not usable; construct with New.
type Server struct {
	Adapter  store.Adapter
	Locks    *pathlock.Manager
	Hooks    Hooks
	Ignore   *IgnoreFilter
	Dialect  DialectPolicy
	Logger   *log.Logger
	Bootstrap func() // called once the first time the root is found empty

	// State is the optional dav-state sidecar backing PROPPATCH dead
	// properties and the ORDERPATCH order vector (§9). A nil State makes
	// both verbs answer 501 and PROPFIND falls back to readdir order.
	State *davstate.Store

	// Cache, when set, wraps Adapter with a fresh per-request memoization
	// layer for the duration of each incoming request (§5).
	Cache bool

	bootstrapOnce sync.Once
}

// New constructs a Server with sane defaults for any field left zero.
func New(adapter store.Adapter, locks *pathlock.Manager) *Server {
	return &Server{
		Adapter: adapter,
		Locks:   locks,
		Dialect: Default(),
		Logger:  log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// maybeBootstrap runs Bootstrap exactly once, the first time any request
// finds the root empty, per §4.5's bootstrap rule. A root that already has
// children by the first request never triggers it.
func (s *Server) maybeBootstrap(ctx context.Context) {
	if s.Bootstrap == nil {
		return
	}
	s.bootstrapOnce.Do(func() {
		names, err := s.Adapter.Readdir(ctx, vpath.Segments{})
		if err == nil && len(names) == 0 {
			s.Bootstrap()
		}
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segs, err := vpath.Parse(r.URL.Path)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}

	s.maybeBootstrap(r.Context())

	switch r.Method {
	case http.MethodOptions:
		s.doOptions(w)
	case http.MethodHead:
		s.doGetOrHead(w, r, segs, false)
	case http.MethodGet:
		s.doGetOrHead(w, r, segs, true)
	case http.MethodPut:
		s.doPut(w, r, segs)
	case http.MethodDelete:
		s.doDelete(w, r, segs)
	case "MKCOL":
		s.doMkcol(w, r, segs)
	case "MOVE":
		s.doMoveOrCopy(w, r, segs, true)
	case "COPY":
		s.doMoveOrCopy(w, r, segs, false)
	case "PROPFIND":
		s.doPropfind(w, r, segs)
	case "SEARCH":
		s.doSearch(w, r, segs)
	case "PROPPATCH":
		s.doProppatch(w, r, segs)
	case "ORDERPATCH":
		s.doOrderpatch(w, r, segs)
	case "LOCK":
		s.doLock(w, r, segs)
	case "UNLOCK":
		s.doUnlock(w, r, segs)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) doOptions(w http.ResponseWriter) {
	w.Header().Set("DAV", "1,2")
	w.Header().Set("MS-Author-Via", "DAV")
	w.Header().Set("Allow", "OPTIONS, PROPFIND, MKCOL, GET, HEAD, PUT, DELETE, MOVE, COPY, LOCK, UNLOCK")
	w.WriteHeader(http.StatusOK)
}

// doGetOrHead implements §4.3.1. withBody is false for HEAD.
func (s *Server) doGetOrHead(w http.ResponseWriter, r *http.Request, segs vpath.Segments, withBody bool) {
	s.logf("%s %s", r.Method, segs.Display())
	if s.Ignore.Matches(segs) {
		http.NotFound(w, r)
		return
	}

	st, err := s.Adapter.Stat(r.Context(), segs)
	if err != nil {
		if store.KindOf(err) != store.KindNotFound {
			s.writeStatErr(w, err)
			return
		}
		refreshed, handled := s.runBeforeGet(w, r, segs)
		if handled {
			return
		}
		if !refreshed {
			s.writeStatErr(w, err)
			return
		}
		st, err = s.Adapter.Stat(r.Context(), segs)
		if err != nil {
			s.writeStatErr(w, err)
			return
		}
	}

	switch st.Kind {
	case tree.Directory:
		s.serveDirectoryIndex(w, r.Context(), segs, withBody)
	case tree.File:
		if st.Size != nil && *st.Size == 0 {
			_, handled := s.runBeforeGet(w, r, segs)
			if handled {
				return
			}
		}
		s.serveFile(w, r.Context(), segs, withBody)
	}
}

// runBeforeGet invokes the BeforeGet hook. refreshed reports whether the
// hook materialized content the caller should re-stat and serve normally;
// handled reports whether the hook already wrote a complete response and
// the caller must stop.
func (s *Server) runBeforeGet(w http.ResponseWriter, r *http.Request, segs vpath.Segments) (refreshed, handled bool) {
	if s.Hooks.BeforeGet == nil {
		return false, false
	}
	resp := s.Hooks.BeforeGet(r.URL.Path, segs, s.Adapter, s.Logger)
	if resp == nil {
		return false, false
	}
	if resp.Status != 0 {
		writeHookResponse(w, resp)
		return false, true
	}
	return true, false
}

func (s *Server) serveFile(w http.ResponseWriter, ctx context.Context, segs vpath.Segments, withBody bool) {
	data, err := s.Adapter.ReadFile(ctx, segs)
	if err != nil {
		s.writeStatErr(w, err)
		return
	}
	mime := "application/octet-stream"
	if mr, ok := s.Adapter.(store.MimeReader); ok {
		if m, ok := mr.FileMime(ctx, segs); ok && m != "" {
			mime = m
		}
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if withBody {
		w.Write(data)
	}
}

func (s *Server) serveDirectoryIndex(w http.ResponseWriter, ctx context.Context, segs vpath.Segments, withBody bool) {
	names, err := s.Adapter.Readdir(ctx, segs)
	if err != nil {
		s.writeStatErr(w, err)
		return
	}
	var b strings.Builder
	b.WriteString("<html><body><ul>\n")
	for _, name := range names {
		child := segs.Child(name)
		if s.Ignore.Matches(child) {
			continue
		}
		st, err := s.Adapter.Stat(ctx, child)
		suffix := ""
		if err == nil && st.Kind == tree.Directory {
			suffix = "/"
		}
		href := html.EscapeString(child.URLPath() + suffix)
		label := html.EscapeString(name + suffix)
		b.WriteString(`<li><a href="` + href + `">` + label + "</a></li>\n")
	}
	b.WriteString("</ul></body></html>")
	body := b.String()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if withBody {
		io.WriteString(w, body)
	}
}

// doPut implements §4.3.2.
func (s *Server) doPut(w http.ResponseWriter, r *http.Request, segs vpath.Segments) {
	if segs.IsRoot() {
		http.Error(w, "cannot PUT to root", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	mime := r.Header.Get("Content-Type")

	if s.Hooks.BeforePut != nil {
		setBody := func(data []byte, m string) { body, mime = data, m }
		if resp := s.Hooks.BeforePut(r.URL.Path, segs, body, setBody, s.Adapter, s.Logger); resp != nil {
			writeHookResponse(w, resp)
			return
		}
	}

	release, err := s.Locks.Acquire(r.Context(), segs)
	if err != nil {
		http.Error(w, "locked", http.StatusInternalServerError)
		return
	}
	defer release()

	if err := s.Adapter.WriteFile(r.Context(), segs, body, mime); err != nil {
		s.writeStatErr(w, err)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusCreated)
}

// doDelete implements the DELETE row of §4.3's dispatch table.
func (s *Server) doDelete(w http.ResponseWriter, r *http.Request, segs vpath.Segments) {
	release, err := s.Locks.Acquire(r.Context(), segs)
	if err != nil {
		http.Error(w, "locked", http.StatusInternalServerError)
		return
	}
	defer release()

	if ok, _ := s.Adapter.Exists(r.Context(), segs); !ok {
		http.NotFound(w, r)
		return
	}
	if err := s.Adapter.Remove(r.Context(), segs, store.RemoveOptions{Recursive: true}); err != nil {
		s.writeStatErr(w, err)
		return
	}
	if s.State != nil {
		s.State.Forget(segs)
	}
	w.WriteHeader(http.StatusNoContent)
}

// doMkcol implements the MKCOL row of §4.3's dispatch table.
func (s *Server) doMkcol(w http.ResponseWriter, r *http.Request, segs vpath.Segments) {
	if segs.IsRoot() {
		http.Error(w, "cannot MKCOL at root", http.StatusForbidden)
		return
	}
	parent, _ := segs.Parent()
	if ok, _ := s.Adapter.Exists(r.Context(), parent); !ok {
		http.Error(w, "parent missing", http.StatusConflict)
		return
	}

	if s.Hooks.BeforeMkcol != nil {
		if resp := s.Hooks.BeforeMkcol(r.URL.Path, segs, s.Adapter, s.Logger); resp != nil {
			writeHookResponse(w, resp)
			if s.Hooks.AfterMkcol != nil {
				s.Hooks.AfterMkcol(w, resp.Status)
			}
			return
		}
	}

	release, err := s.Locks.Acquire(r.Context(), segs)
	if err != nil {
		http.Error(w, "locked", http.StatusInternalServerError)
		return
	}
	status := http.StatusCreated
	if err := s.Adapter.EnsureDir(r.Context(), segs); err != nil {
		status = statusForErr(err)
	}
	release()

	w.WriteHeader(status)
	if s.Hooks.AfterMkcol != nil {
		s.Hooks.AfterMkcol(w, status)
	}
}

