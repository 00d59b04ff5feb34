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
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/llmdav/llmdav/internal/pathlock"
	"github.com/llmdav/llmdav/internal/store"
	"github.com/llmdav/llmdav/internal/vpath"
)

func reqCtx() context.Context { return context.Background() }

func mustSegs(p string) vpath.Segments {
	segs, err := vpath.Parse(p)
	if err != nil {
		panic(err)
	}
	return segs
}

func newTestServer() *Server {
	s := New(store.NewMemoryAdapter(), pathlock.New())
	s.Ignore = NewIgnoreFilter(nil)
	s.Logger = log.New(testWriter{}, "", 0)
	return s
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestPutThenGetRoundTrips(t *testing.T) {
	srv := newTestServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/notes/a.txt", strings.NewReader("hello"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("PUT status = %d, want 201", resp.StatusCode)
	}

	get, err := http.Get(ts.URL + "/notes/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", get.StatusCode)
	}
}

func TestGetMissingWithoutHookIs404(t *testing.T) {
	srv := newTestServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nope.txt")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetMissingInvokesBeforeGetHook(t *testing.T) {
	srv := newTestServer()
	var called bool
	srv.Hooks.BeforeGet = func(urlPath string, segs vpath.Segments, persist store.Adapter, logger *log.Logger) *HookResponse {
		called = true
		persist.WriteFile(reqCtx(), segs, []byte("fabricated"), "text/plain")
		return &HookResponse{Status: 0}
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/missing.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("BeforeGet hook was not invoked")
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMkcolThenPropfindListsChild(t *testing.T) {
	srv := newTestServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	mk, _ := http.NewRequest("MKCOL", ts.URL+"/photos", nil)
	resp, err := http.DefaultClient.Do(mk)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("MKCOL status = %d, want 201", resp.StatusCode)
	}

	pf, _ := http.NewRequest("PROPFIND", ts.URL+"/", nil)
	pf.Header.Set("Depth", "1")
	presp, err := http.DefaultClient.Do(pf)
	if err != nil {
		t.Fatal(err)
	}
	if presp.StatusCode != 207 {
		t.Fatalf("PROPFIND status = %d, want 207", presp.StatusCode)
	}
}

func TestMoveRequiresDestinationHeader(t *testing.T) {
	srv := newTestServer()
	srv.Adapter.WriteFile(reqCtx(), mustSegs("a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	mv, _ := http.NewRequest("MOVE", ts.URL+"/a.txt", nil)
	resp, err := http.DefaultClient.Do(mv)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMoveRelocatesFile(t *testing.T) {
	srv := newTestServer()
	srv.Adapter.WriteFile(reqCtx(), mustSegs("a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	mv, _ := http.NewRequest("MOVE", ts.URL+"/a.txt", nil)
	mv.Header.Set("Destination", ts.URL+"/b.txt")
	resp, err := http.DefaultClient.Do(mv)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if ok, _ := srv.Adapter.Exists(reqCtx(), mustSegs("a.txt")); ok {
		t.Fatal("source still exists after MOVE")
	}
	if ok, _ := srv.Adapter.Exists(reqCtx(), mustSegs("b.txt")); !ok {
		t.Fatal("destination missing after MOVE")
	}
}

func TestIgnoreFilterHidesDotfiles(t *testing.T) {
	srv := newTestServer()
	srv.Ignore = NewIgnoreFilter([]string{".DS_Store"})
	srv.Adapter.WriteFile(reqCtx(), mustSegs(".DS_Store"), []byte("x"), "application/octet-stream")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/.DS_Store")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
