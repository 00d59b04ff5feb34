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

package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/creachadair/ffs/blob"

	"github.com/llmdav/llmdav/internal/tree"
	"github.com/llmdav/llmdav/internal/vpath"
)

// record is the durable representation of a single Node, keyed by its
// canonical path. This is what makes it possible to implement the same
// path-tree Adapter contract over any github.com/creachadair/ffs/blob.Store
// implementation: bolt, pebble, sqlite, badger, leveldb, pogreb, bitcask,
// s3, and gcs all satisfy blob.Store already, via the matching
// creachadair/*store package, the same way ffs/internal/cmdstorage/registry
// wires them up for the ffs content-addressable tree.
type record struct {
	Kind     tree.Kind `json:"kind"`
	Children []string  `json:"children,omitempty"`
	Bytes    []byte    `json:"bytes,omitempty"`
	Mime     string    `json:"mime,omitempty"`
	MTime    time.Time `json:"mtime"`
}

// KVAdapter implements Adapter over a blob.Store, serializing each Node as
// a JSON record keyed by the path's canonical Key(). A directory's record
// carries the sorted list of its children's names; ensure_dir/write_file
// update each ancestor's record in turn.
type KVAdapter struct {
	mu sync.Mutex
	bs blob.Store
}

// NewKVAdapter wraps an opened blob.Store as a PersistenceAdapter. The
// store must already contain a root record, or one is created empty.
func NewKVAdapter(ctx context.Context, bs blob.Store) (*KVAdapter, error) {
	a := &KVAdapter{bs: bs}
	if _, err := a.getRecord(ctx, nil); err != nil {
		if err := a.putRecord(ctx, nil, &record{Kind: tree.Directory, MTime: time.Now()}); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func recordKey(path vpath.Segments) string {
	if path.IsRoot() {
		return "/"
	}
	return path.Key()
}

func (a *KVAdapter) getRecord(ctx context.Context, path vpath.Segments) (*record, error) {
	data, err := a.bs.Get(ctx, recordKey(path))
	if err != nil {
		return nil, newErr(KindNotFound, "get", path, err)
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, newErr(KindInternal, "get", path, err)
	}
	return &r, nil
}

func (a *KVAdapter) putRecord(ctx context.Context, path vpath.Segments, r *record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return newErr(KindInternal, "put", path, err)
	}
	if err := a.bs.Put(ctx, blob.PutOptions{Key: recordKey(path), Data: data, Replace: true}); err != nil {
		return newErr(KindInternal, "put", path, err)
	}
	return nil
}

func addChild(r *record, name string) {
	for _, c := range r.Children {
		if c == name {
			return
		}
	}
	r.Children = append(r.Children, name)
	sort.Strings(r.Children)
}

func removeChild(r *record, name string) {
	out := r.Children[:0]
	for _, c := range r.Children {
		if c != name {
			out = append(out, c)
		}
	}
	r.Children = out
}

// EnsureDir implements Adapter.
func (a *KVAdapter) EnsureDir(ctx context.Context, path vpath.Segments) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensureDirLocked(ctx, path)
}

func (a *KVAdapter) ensureDirLocked(ctx context.Context, path vpath.Segments) error {
	if path.IsRoot() {
		return nil
	}
	parent, _ := path.Parent()
	if err := a.ensureDirLocked(ctx, parent); err != nil {
		return err
	}
	if _, err := a.getRecord(ctx, path); err == nil {
		return nil // already exists (directory or otherwise; idempotent)
	}
	if err := a.putRecord(ctx, path, &record{Kind: tree.Directory, MTime: time.Now()}); err != nil {
		return err
	}
	pr, err := a.getRecord(ctx, parent)
	if err != nil {
		return err
	}
	addChild(pr, path.Name())
	return a.putRecord(ctx, parent, pr)
}

// Readdir implements Adapter.
func (a *KVAdapter) Readdir(ctx context.Context, path vpath.Segments) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, err := a.getRecord(ctx, path)
	if err != nil {
		return nil, err
	}
	if r.Kind != tree.Directory {
		return nil, newErr(KindNotADirectory, "readdir", path, nil)
	}
	return append([]string(nil), r.Children...), nil
}

// Stat implements Adapter.
func (a *KVAdapter) Stat(ctx context.Context, path vpath.Segments) (tree.Stat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, err := a.getRecord(ctx, path)
	if err != nil {
		return tree.Stat{}, err
	}
	st := tree.Stat{Kind: r.Kind, MTime: r.MTime}
	if r.Kind == tree.File {
		size := int64(len(r.Bytes))
		st.Size = &size
	}
	return st, nil
}

// Exists implements Adapter.
func (a *KVAdapter) Exists(ctx context.Context, path vpath.Segments) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.getRecord(ctx, path)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadFile implements Adapter.
func (a *KVAdapter) ReadFile(ctx context.Context, path vpath.Segments) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, err := a.getRecord(ctx, path)
	if err != nil {
		return nil, err
	}
	if r.Kind != tree.File {
		return nil, newErr(KindIsADirectory, "read_file", path, nil)
	}
	return append([]byte(nil), r.Bytes...), nil
}

// FileMime implements MimeReader.
func (a *KVAdapter) FileMime(ctx context.Context, path vpath.Segments) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, err := a.getRecord(ctx, path)
	if err != nil || r.Kind != tree.File || r.Mime == "" {
		return "", false
	}
	return r.Mime, true
}

// WriteFile implements Adapter.
func (a *KVAdapter) WriteFile(ctx context.Context, path vpath.Segments, data []byte, mime string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	parent, ok := path.Parent()
	if !ok {
		return newErr(KindIsADirectory, "write_file", path, nil)
	}
	if err := a.ensureDirLocked(ctx, parent); err != nil {
		return err
	}
	if err := a.putRecord(ctx, path, &record{
		Kind: tree.File, Bytes: append([]byte(nil), data...), Mime: mime, MTime: time.Now(),
	}); err != nil {
		return err
	}
	pr, err := a.getRecord(ctx, parent)
	if err != nil {
		return err
	}
	addChild(pr, path.Name())
	return a.putRecord(ctx, parent, pr)
}

// Remove implements Adapter.
func (a *KVAdapter) Remove(ctx context.Context, path vpath.Segments, opts RemoveOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if path.IsRoot() {
		return newErr(KindPermissionDenied, "remove", path, nil)
	}
	r, err := a.getRecord(ctx, path)
	if err != nil {
		return err
	}
	if r.Kind == tree.Directory && len(r.Children) > 0 && !opts.Recursive {
		return newErr(KindNotEmpty, "remove", path, nil)
	}
	if r.Kind == tree.Directory {
		for _, c := range append([]string(nil), r.Children...) {
			if err := a.removeLocked(ctx, path.Child(c), true); err != nil {
				return err
			}
		}
	}
	return a.removeLocked(ctx, path, false)
}

func (a *KVAdapter) removeLocked(ctx context.Context, path vpath.Segments, recursive bool) error {
	r, err := a.getRecord(ctx, path)
	if err != nil {
		return err
	}
	if r.Kind == tree.Directory {
		for _, c := range append([]string(nil), r.Children...) {
			if err := a.removeLocked(ctx, path.Child(c), recursive); err != nil {
				return err
			}
		}
	}
	if err := a.bs.Delete(ctx, recordKey(path)); err != nil {
		return newErr(KindInternal, "remove", path, err)
	}
	if parent, ok := path.Parent(); ok {
		pr, err := a.getRecord(ctx, parent)
		if err == nil {
			removeChild(pr, path.Name())
			_ = a.putRecord(ctx, parent, pr)
		}
	}
	return nil
}

// Move implements Adapter.
func (a *KVAdapter) Move(ctx context.Context, from, to vpath.Segments) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.moveLocked(ctx, from, to); err != nil {
		return err
	}
	return nil
}

func (a *KVAdapter) moveLocked(ctx context.Context, from, to vpath.Segments) error {
	r, err := a.getRecord(ctx, from)
	if err != nil {
		return err
	}
	parent, ok := to.Parent()
	if ok {
		if err := a.ensureDirLocked(ctx, parent); err != nil {
			return err
		}
	}
	if r.Kind == tree.Directory {
		for _, c := range append([]string(nil), r.Children...) {
			if err := a.moveLocked(ctx, from.Child(c), to.Child(c)); err != nil {
				return err
			}
		}
	}
	if err := a.putRecord(ctx, to, r); err != nil {
		return err
	}
	if err := a.bs.Delete(ctx, recordKey(from)); err != nil {
		return newErr(KindInternal, "move", from, err)
	}
	if fp, ok := from.Parent(); ok {
		pr, err := a.getRecord(ctx, fp)
		if err == nil {
			removeChild(pr, from.Name())
			_ = a.putRecord(ctx, fp, pr)
		}
	}
	if tp, ok := to.Parent(); ok {
		pr, err := a.getRecord(ctx, tp)
		if err == nil {
			addChild(pr, to.Name())
			_ = a.putRecord(ctx, tp, pr)
		}
	}
	return nil
}

// Copy implements Adapter. A Directory source yields a deep clone.
func (a *KVAdapter) Copy(ctx context.Context, from, to vpath.Segments) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyLocked(ctx, from, to)
}

func (a *KVAdapter) copyLocked(ctx context.Context, from, to vpath.Segments) error {
	r, err := a.getRecord(ctx, from)
	if err != nil {
		return err
	}
	if parent, ok := to.Parent(); ok {
		if err := a.ensureDirLocked(ctx, parent); err != nil {
			return err
		}
	}
	clone := &record{Kind: r.Kind, Mime: r.Mime, MTime: r.MTime}
	if r.Kind == tree.File {
		clone.Bytes = append([]byte(nil), r.Bytes...)
	}
	if err := a.putRecord(ctx, to, clone); err != nil {
		return err
	}
	if tp, ok := to.Parent(); ok {
		pr, err := a.getRecord(ctx, tp)
		if err == nil {
			addChild(pr, to.Name())
			_ = a.putRecord(ctx, tp, pr)
		}
	}
	if r.Kind == tree.Directory {
		for _, c := range r.Children {
			if err := a.copyLocked(ctx, from.Child(c), to.Child(c)); err != nil {
				return err
			}
		}
	}
	return nil
}
