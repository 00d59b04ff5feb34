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
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMoveDirectoryWithoutDepthRejectedForStrictClient(t *testing.T) {
	srv := newTestServer()
	srv.Adapter.WriteFile(reqCtx(), mustSegs("src/a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	mv, _ := http.NewRequest("MOVE", ts.URL+"/src", nil)
	mv.Header.Set("Destination", ts.URL+"/dst")
	mv.Header.Set("User-Agent", "curl/8.0")
	resp, err := http.DefaultClient.Do(mv)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (no Depth, dialect does not relax it)", resp.StatusCode)
	}
}

func TestMoveDirectoryWithoutDepthAllowedForFinder(t *testing.T) {
	srv := newTestServer()
	srv.Adapter.WriteFile(reqCtx(), mustSegs("src/a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	mv, _ := http.NewRequest("MOVE", ts.URL+"/src", nil)
	mv.Header.Set("Destination", ts.URL+"/dst")
	mv.Header.Set("User-Agent", "WebDAVFS/3.0.0 (03018000) Darwin/20.6.0 (x86_64)")
	resp, err := http.DefaultClient.Do(mv)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (Finder relaxes missing Depth)", resp.StatusCode)
	}
}

func TestMoveDirectoryWithDepthInfinityAlwaysAllowed(t *testing.T) {
	srv := newTestServer()
	srv.Adapter.WriteFile(reqCtx(), mustSegs("src/a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	mv, _ := http.NewRequest("MOVE", ts.URL+"/src", nil)
	mv.Header.Set("Destination", ts.URL+"/dst")
	mv.Header.Set("User-Agent", "curl/8.0")
	mv.Header.Set("Depth", "infinity")
	resp, err := http.DefaultClient.Do(mv)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (explicit Depth: infinity satisfies the RFC check)", resp.StatusCode)
	}
}
