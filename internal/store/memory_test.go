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

package store_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/llmdav/llmdav/internal/store"
	"github.com/llmdav/llmdav/internal/tree"
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

func TestMemoryAdapterInvariants(t *testing.T) {
	ctx := context.Background()
	a := store.NewMemoryAdapter()

	p := seg(t, "/a/b/c")
	if err := a.EnsureDir(ctx, p); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	ok, err := a.Exists(ctx, p)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
	}
	st, err := a.Stat(ctx, p)
	if err != nil || st.Kind != tree.Directory {
		t.Fatalf("Stat = %+v, %v; want Directory", st, err)
	}

	// EnsureDir is idempotent.
	if err := a.EnsureDir(ctx, p); err != nil {
		t.Fatalf("second EnsureDir: %v", err)
	}
}

func TestMemoryAdapterWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := store.NewMemoryAdapter()
	p := seg(t, "/x/y/z.txt")
	want := []byte("hello world")

	if err := a.WriteFile(ctx, p, want, "text/plain"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := a.ReadFile(ctx, p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadFile = %q, want %q", got, want)
	}
	st, err := a.Stat(ctx, p)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Size == nil || *st.Size != int64(len(want)) {
		t.Fatalf("Stat.Size = %v, want %d", st.Size, len(want))
	}

	// Idempotence: re-writing yields the same size.
	if err := a.WriteFile(ctx, p, want, "text/plain"); err != nil {
		t.Fatalf("second WriteFile: %v", err)
	}
	st2, _ := a.Stat(ctx, p)
	if *st2.Size != int64(len(want)) {
		t.Fatalf("Stat.Size after rewrite = %d, want %d", *st2.Size, len(want))
	}
}

func TestMemoryAdapterMoveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := store.NewMemoryAdapter()
	from, to := seg(t, "/p/q.txt"), seg(t, "/r/s.txt")
	data := []byte("payload")

	if err := a.WriteFile(ctx, from, data, ""); err != nil {
		t.Fatal(err)
	}
	if err := a.Move(ctx, from, to); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := a.ReadFile(ctx, to)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("ReadFile(to) = %q, %v", got, err)
	}
	if ok, _ := a.Exists(ctx, from); ok {
		t.Fatalf("source still exists after Move")
	}
}

func TestMemoryAdapterCopyRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := store.NewMemoryAdapter()
	from, to := seg(t, "/p/q.txt"), seg(t, "/r/s.txt")
	data := []byte("payload")

	if err := a.WriteFile(ctx, from, data, ""); err != nil {
		t.Fatal(err)
	}
	if err := a.Copy(ctx, from, to); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, err := a.ReadFile(ctx, to)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("ReadFile(to) = %q, %v", got, err)
	}
	if ok, _ := a.Exists(ctx, from); !ok {
		t.Fatalf("source should still exist after Copy")
	}
}

func TestMemoryAdapterRemoveRequiresRecursiveForNonEmpty(t *testing.T) {
	ctx := context.Background()
	a := store.NewMemoryAdapter()
	dir := seg(t, "/d")
	file := seg(t, "/d/f.txt")
	if err := a.WriteFile(ctx, file, []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
	if err := a.Remove(ctx, dir, store.RemoveOptions{}); store.KindOf(err) != store.KindNotEmpty {
		t.Fatalf("Remove(non-recursive) kind = %v, want KindNotEmpty", store.KindOf(err))
	}
	if err := a.Remove(ctx, dir, store.RemoveOptions{Recursive: true}); err != nil {
		t.Fatalf("Remove(recursive): %v", err)
	}
	if ok, _ := a.Exists(ctx, dir); ok {
		t.Fatalf("directory still exists after recursive remove")
	}
}

func TestMemoryAdapterDeepCloneOnCopy(t *testing.T) {
	ctx := context.Background()
	a := store.NewMemoryAdapter()
	from, to := seg(t, "/d1"), seg(t, "/d2")
	if err := a.WriteFile(ctx, from.Child("a.txt"), []byte("1"), ""); err != nil {
		t.Fatal(err)
	}
	if err := a.Copy(ctx, from, to); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	// Mutating the copy must not affect the original.
	if err := a.WriteFile(ctx, to.Child("a.txt"), []byte("2"), ""); err != nil {
		t.Fatal(err)
	}
	got, err := a.ReadFile(ctx, from.Child("a.txt"))
	if err != nil || string(got) != "1" {
		t.Fatalf("original mutated by copy-target write: got %q, err %v", got, err)
	}
}

func TestMemoryAdapterNotFound(t *testing.T) {
	ctx := context.Background()
	a := store.NewMemoryAdapter()
	_, err := a.ReadFile(ctx, seg(t, "/nope.txt"))
	if store.KindOf(err) != store.KindNotFound {
		t.Fatalf("ReadFile kind = %v, want KindNotFound", store.KindOf(err))
	}
}
