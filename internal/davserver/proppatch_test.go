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
	"path/filepath"
	"strings"
	"testing"

	"github.com/llmdav/llmdav/internal/davstate"
)

func newStatefulTestServer(t *testing.T) *Server {
	t.Helper()
	srv := newTestServer()
	st, err := davstate.Open(filepath.Join(t.TempDir(), "dav-state"))
	if err != nil {
		t.Fatalf("davstate.Open: %v", err)
	}
	srv.State = st
	return srv
}

func TestProppatchSetsDeadProperty(t *testing.T) {
	srv := newStatefulTestServer(t)
	srv.Adapter.WriteFile(reqCtx(), mustSegs("a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body := `<?xml version="1.0"?>
<propertyupdate xmlns="DAV:">
  <set><prop><author xmlns="urn:custom">me</author></prop></set>
</propertyupdate>`
	req, _ := http.NewRequest("PROPPATCH", ts.URL+"/a.txt", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 207 {
		t.Fatalf("status = %d, want 207", resp.StatusCode)
	}

	props := srv.State.Properties(mustSegs("a.txt"))
	if len(props) != 1 || props[0].Value != "me" {
		t.Fatalf("Properties = %+v, want one with value %q", props, "me")
	}
}

func TestProppatchWithoutLockTokenAllowedWhenUnlocked(t *testing.T) {
	srv := newStatefulTestServer(t)
	srv.Adapter.WriteFile(reqCtx(), mustSegs("a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, _ := http.NewRequest("PROPPATCH", ts.URL+"/a.txt", strings.NewReader(`<propertyupdate xmlns="DAV:"/>`))
	req.Header.Set("User-Agent", "curl/8.0")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 207 {
		t.Fatalf("status = %d, want 207 (no lock on target, nothing to enforce)", resp.StatusCode)
	}
}

func TestProppatchWithoutLockTokenRejectedForStrictClientWhenLocked(t *testing.T) {
	srv := newStatefulTestServer(t)
	srv.Adapter.WriteFile(reqCtx(), mustSegs("a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	lockReq, _ := http.NewRequest("LOCK", ts.URL+"/a.txt", nil)
	lockResp, err := http.DefaultClient.Do(lockReq)
	if err != nil {
		t.Fatal(err)
	}
	if lockResp.StatusCode != http.StatusCreated {
		t.Fatalf("LOCK status = %d, want 201", lockResp.StatusCode)
	}

	req, _ := http.NewRequest("PROPPATCH", ts.URL+"/a.txt", strings.NewReader(`<propertyupdate xmlns="DAV:"/>`))
	req.Header.Set("User-Agent", "curl/8.0")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusLocked {
		t.Fatalf("status = %d, want 423", resp.StatusCode)
	}
}

func TestProppatchWithoutLockTokenAllowedForOfficeWhenLocked(t *testing.T) {
	srv := newStatefulTestServer(t)
	srv.Adapter.WriteFile(reqCtx(), mustSegs("a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	lockReq, _ := http.NewRequest("LOCK", ts.URL+"/a.txt", nil)
	lockResp, err := http.DefaultClient.Do(lockReq)
	if err != nil {
		t.Fatal(err)
	}
	if lockResp.StatusCode != http.StatusCreated {
		t.Fatalf("LOCK status = %d, want 201", lockResp.StatusCode)
	}

	req, _ := http.NewRequest("PROPPATCH", ts.URL+"/a.txt", strings.NewReader(`<propertyupdate xmlns="DAV:"/>`))
	req.Header.Set("User-Agent", "Microsoft Office Word 2016")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 207 {
		t.Fatalf("status = %d, want 207", resp.StatusCode)
	}
}

func TestProppatchWithValidLockTokenAllowed(t *testing.T) {
	srv := newStatefulTestServer(t)
	srv.Adapter.WriteFile(reqCtx(), mustSegs("a.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	lockReq, _ := http.NewRequest("LOCK", ts.URL+"/a.txt", nil)
	lockResp, err := http.DefaultClient.Do(lockReq)
	if err != nil {
		t.Fatal(err)
	}
	if lockResp.StatusCode != http.StatusCreated {
		t.Fatalf("LOCK status = %d, want 201", lockResp.StatusCode)
	}
	token := lockResp.Header.Get("Lock-Token")
	if token == "" {
		t.Fatal("LOCK response missing Lock-Token header")
	}

	req, _ := http.NewRequest("PROPPATCH", ts.URL+"/a.txt", strings.NewReader(`<propertyupdate xmlns="DAV:"/>`))
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Lock-Token", token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 207 {
		t.Fatalf("status = %d, want 207", resp.StatusCode)
	}
}

func TestOrderpatchReordersPropfindChildren(t *testing.T) {
	srv := newStatefulTestServer(t)
	srv.Adapter.WriteFile(reqCtx(), mustSegs("photos/b.jpg"), []byte("1"), "image/jpeg")
	srv.Adapter.WriteFile(reqCtx(), mustSegs("photos/a.jpg"), []byte("2"), "image/jpeg")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body := `<orderpatch xmlns="DAV:"><order><member><segment>a.jpg</segment></member><member><segment>b.jpg</segment></member></order></orderpatch>`
	req, _ := http.NewRequest("ORDERPATCH", ts.URL+"/photos", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ORDERPATCH status = %d, want 200", resp.StatusCode)
	}

	order, ok := srv.State.Order(mustSegs("photos"))
	if !ok || len(order) != 2 || order[0] != "a.jpg" {
		t.Fatalf("Order = %v, %v, want [a.jpg b.jpg]", order, ok)
	}
}

func TestSearchScopedToOneDirectory(t *testing.T) {
	srv := newTestServer()
	srv.Adapter.WriteFile(reqCtx(), mustSegs("report.txt"), []byte("x"), "text/plain")
	srv.Adapter.WriteFile(reqCtx(), mustSegs("notes.txt"), []byte("x"), "text/plain")
	srv.Adapter.WriteFile(reqCtx(), mustSegs("sub/report.txt"), []byte("x"), "text/plain")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body := `<D:searchrequest xmlns:D="DAV:">
  <D:basicsearch>
    <D:where><D:contains>report</D:contains></D:where>
  </D:basicsearch>
</D:searchrequest>`
	req, _ := http.NewRequest("SEARCH", ts.URL+"/", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 207 {
		t.Fatalf("status = %d, want 207", resp.StatusCode)
	}
	defer resp.Body.Close()
	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	out := string(buf[:n])
	if !strings.Contains(out, "report.txt") {
		t.Fatalf("body %q missing report.txt", out)
	}
	if strings.Contains(out, "sub/report.txt") || strings.Contains(out, "sub%2Freport.txt") {
		t.Fatalf("body %q should not include nested sub/report.txt", out)
	}
	if strings.Contains(out, "notes.txt") {
		t.Fatalf("body %q should not include non-matching notes.txt", out)
	}
}
