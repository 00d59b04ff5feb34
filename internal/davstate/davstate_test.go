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

package davstate_test

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/llmdav/llmdav/internal/davstate"
	"github.com/llmdav/llmdav/internal/vpath"
)

func seg(t *testing.T, s string) vpath.Segments {
	t.Helper()
	p, err := vpath.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return p
}

func TestSetPropertyPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dav-state")
	s, err := davstate.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p := seg(t, "/a/b.txt")
	want := davstate.Property{XMLNS: "DAV:", Name: "displayname", Value: "hello"}
	if err := s.SetProperty(p, want); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}

	reopened, err := davstate.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reopened.Properties(p)
	if len(got) != 1 || got[0] != want {
		t.Fatalf("Properties = %+v, want [%+v]", got, want)
	}
}

func TestRemoveProperty(t *testing.T) {
	s, err := davstate.Open(filepath.Join(t.TempDir(), "dav-state"))
	if err != nil {
		t.Fatal(err)
	}
	p := seg(t, "/f.txt")
	prop := davstate.Property{XMLNS: "DAV:", Name: "getcontenttype", Value: "text/plain"}
	if err := s.SetProperty(p, prop); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveProperty(p, "DAV:", "getcontenttype"); err != nil {
		t.Fatalf("RemoveProperty: %v", err)
	}
	if got := s.Properties(p); len(got) != 0 {
		t.Fatalf("Properties after remove = %+v, want empty", got)
	}
}

func TestRekeyMovesProperties(t *testing.T) {
	s, err := davstate.Open(filepath.Join(t.TempDir(), "dav-state"))
	if err != nil {
		t.Fatal(err)
	}
	from, to := seg(t, "/old.txt"), seg(t, "/new.txt")
	prop := davstate.Property{XMLNS: "custom:", Name: "tag", Value: "v"}
	if err := s.SetProperty(from, prop); err != nil {
		t.Fatal(err)
	}
	if err := s.Rekey(from, to); err != nil {
		t.Fatalf("Rekey: %v", err)
	}
	if got := s.Properties(from); len(got) != 0 {
		t.Fatalf("source still has properties after Rekey: %+v", got)
	}
	if got := s.Properties(to); len(got) != 1 || got[0] != prop {
		t.Fatalf("Properties(to) = %+v, want [%+v]", got, prop)
	}
}

func TestOpenMissingSidecarStartsEmpty(t *testing.T) {
	s, err := davstate.Open(filepath.Join(t.TempDir(), "nonexistent-state"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if diff := cmp.Diff([]davstate.Property{}, s.Properties(seg(t, "/x"))); diff != "" {
		t.Fatalf("Properties mismatch (-want +got):\n%s", diff)
	}
}

func TestSetOrderPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dav-state")
	s, err := davstate.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	dir := seg(t, "/photos")
	want := []string{"c.jpg", "a.jpg", "b.jpg"}
	if err := s.SetOrder(dir, want); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}

	reopened, err := davstate.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Order(dir)
	if !ok {
		t.Fatal("Order not found after reopen")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderAbsentByDefault(t *testing.T) {
	s, err := davstate.Open(filepath.Join(t.TempDir(), "dav-state"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Order(seg(t, "/nothing")); ok {
		t.Fatal("Order reported present for a directory never patched")
	}
}

func TestForgetClearsOrderAndProperties(t *testing.T) {
	s, err := davstate.Open(filepath.Join(t.TempDir(), "dav-state"))
	if err != nil {
		t.Fatal(err)
	}
	p := seg(t, "/d")
	s.SetProperty(p, davstate.Property{XMLNS: "DAV:", Name: "displayname", Value: "x"})
	s.SetOrder(p, []string{"a", "b"})
	if err := s.Forget(p); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if got := s.Properties(p); len(got) != 0 {
		t.Fatalf("Properties after Forget = %+v, want empty", got)
	}
	if _, ok := s.Order(p); ok {
		t.Fatal("Order still present after Forget")
	}
}

func TestRekeyMovesOrder(t *testing.T) {
	s, err := davstate.Open(filepath.Join(t.TempDir(), "dav-state"))
	if err != nil {
		t.Fatal(err)
	}
	from, to := seg(t, "/old"), seg(t, "/new")
	s.SetOrder(from, []string{"x", "y"})
	if err := s.Rekey(from, to); err != nil {
		t.Fatalf("Rekey: %v", err)
	}
	if _, ok := s.Order(from); ok {
		t.Fatal("source still has order vector after Rekey")
	}
	got, ok := s.Order(to)
	if !ok || len(got) != 2 {
		t.Fatalf("Order(to) = %v, %v", got, ok)
	}
}

func TestCompressedSidecarRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dav-state")
	s, err := davstate.Open(path, davstate.WithCompression())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p := seg(t, "/c.txt")
	prop := davstate.Property{XMLNS: "DAV:", Name: "getetag", Value: `"abc123"`}
	if err := s.SetProperty(p, prop); err != nil {
		t.Fatal(err)
	}
	reopened, err := davstate.Open(path, davstate.WithCompression())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reopened.Properties(p)
	if len(got) != 1 || got[0] != prop {
		t.Fatalf("Properties = %+v, want [%+v]", got, prop)
	}
}
