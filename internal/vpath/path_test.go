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

package vpath_test

import (
	"testing"

	"github.com/llmdav/llmdav/internal/vpath"
	"github.com/google/go-cmp/cmp"
)

func TestParseAndDisplay(t *testing.T) {
	tests := []struct {
		in      string
		want    vpath.Segments
		display string
	}{
		{"/", nil, "/"},
		{"", nil, "/"},
		{"/a/b/c", vpath.Segments{"a", "b", "c"}, "/a/b/c"},
		{"a/b/", vpath.Segments{"a", "b"}, "/a/b"},
		{"/a//b", vpath.Segments{"a", "b"}, "/a/b"},
		{"/./a", vpath.Segments{"a"}, "/a"},
	}
	for _, tc := range tests {
		got, err := vpath.Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Parse(%q) (-want +got):\n%s", tc.in, diff)
		}
		if d := got.Display(); d != tc.display {
			t.Errorf("Display(%q) = %q, want %q", tc.in, d, tc.display)
		}
	}
}

func TestParseRejectsTraversal(t *testing.T) {
	for _, in := range []string{"/a/../b", "../escape", "/a/.."} {
		if _, err := vpath.Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", in)
		}
	}
}

func TestRootNeverNamedRoot(t *testing.T) {
	segs, err := vpath.Parse("/")
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 0 {
		t.Fatalf("root segments = %v, want empty", segs)
	}
	if segs.Display() != "/" {
		t.Fatalf("root display = %q, want %q", segs.Display(), "/")
	}
}

func TestChildParent(t *testing.T) {
	root := vpath.Segments{}
	a := root.Child("a")
	b := a.Child("b")
	if b.Display() != "/a/b" {
		t.Fatalf("child chain = %q", b.Display())
	}
	p, ok := b.Parent()
	if !ok || !vpath.Equal(p, a) {
		t.Fatalf("Parent() = %v, %v; want %v, true", p, ok, a)
	}
	_, ok = root.Parent()
	if ok {
		t.Fatalf("root.Parent() ok = true, want false")
	}
}

func TestInTree(t *testing.T) {
	sub := vpath.Segments{"a", "b"}
	if !vpath.InTree(vpath.Segments{"a", "b", "c"}, sub) {
		t.Error("expected child to be in tree")
	}
	if !vpath.InTree(sub, sub) {
		t.Error("a path is in its own tree")
	}
	if vpath.InTree(vpath.Segments{"a"}, sub) {
		t.Error("shorter path should not be in tree")
	}
}

func TestURLPathEncodesSegments(t *testing.T) {
	segs := vpath.Segments{"a b", "c#d"}
	if got, want := segs.URLPath(), "/a%20b/c%23d"; got != want {
		t.Errorf("URLPath() = %q, want %q", got, want)
	}
}
