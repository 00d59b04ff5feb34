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
	"sync"
	"time"

	"github.com/llmdav/llmdav/internal/tree"
	"github.com/llmdav/llmdav/internal/vpath"
)

// MemoryAdapter stores the tree in process memory. It has no limits on how
// much memory it will consume for files; this matches the spec's
// description of the backend as a pure in-process structure.
type MemoryAdapter struct {
	mu   sync.Mutex
	root *tree.Node
	now  func() time.Time
}

// NewMemoryAdapter returns an Adapter rooted at an empty directory.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{root: tree.NewDirectory("", time.Now()), now: time.Now}
}

func (a *MemoryAdapter) lookup(path vpath.Segments) (*tree.Node, *Error) {
	n := a.root
	for i, seg := range path {
		if n.Kind != tree.Directory {
			return nil, newErr(KindNotADirectory, "lookup", path[:i], nil)
		}
		kid, ok := n.Children[seg]
		if !ok {
			return nil, newErr(KindNotFound, "lookup", path[:i+1], nil)
		}
		n = kid
	}
	return n, nil
}

// ensureDirLocked walks/creates ancestor directories for path and returns
// the directory node itself, creating missing segments along the way. The
// caller must hold a.mu.
func (a *MemoryAdapter) ensureDirLocked(path vpath.Segments) (*tree.Node, *Error) {
	n := a.root
	for i, seg := range path {
		if n.Kind != tree.Directory {
			return nil, newErr(KindNotADirectory, "ensure_dir", path[:i], nil)
		}
		kid, ok := n.Children[seg]
		if !ok {
			kid = tree.NewDirectory(seg, a.now())
			n.Children[seg] = kid
			n.MTime = a.now()
		} else if kid.Kind != tree.Directory {
			return nil, newErr(KindNotADirectory, "ensure_dir", path[:i+1], nil)
		}
		n = kid
	}
	return n, nil
}

// EnsureDir implements Adapter.
func (a *MemoryAdapter) EnsureDir(ctx context.Context, path vpath.Segments) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.ensureDirLocked(path)
	return errOrNil(err)
}

// Readdir implements Adapter.
func (a *MemoryAdapter) Readdir(ctx context.Context, path vpath.Segments) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.lookup(path)
	if err != nil {
		return nil, err
	}
	if n.Kind != tree.Directory {
		return nil, newErr(KindNotADirectory, "readdir", path, nil)
	}
	return n.ChildNames(), nil
}

// Stat implements Adapter.
func (a *MemoryAdapter) Stat(ctx context.Context, path vpath.Segments) (tree.Stat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.lookup(path)
	if err != nil {
		return tree.Stat{}, err
	}
	return tree.StatOf(n), nil
}

// Exists implements Adapter.
func (a *MemoryAdapter) Exists(ctx context.Context, path vpath.Segments) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.lookup(path)
	if err != nil {
		if err.Kind == KindNotFound || err.Kind == KindNotADirectory {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadFile implements Adapter.
func (a *MemoryAdapter) ReadFile(ctx context.Context, path vpath.Segments) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.lookup(path)
	if err != nil {
		return nil, err
	}
	if n.Kind != tree.File {
		return nil, newErr(KindIsADirectory, "read_file", path, nil)
	}
	return append([]byte(nil), n.Bytes...), nil
}

// WriteFile implements Adapter. A PUT to an unknown nested path succeeds:
// missing ancestors are created silently.
func (a *MemoryAdapter) WriteFile(ctx context.Context, path vpath.Segments, data []byte, mime string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	parent, ok := path.Parent()
	if !ok {
		return newErr(KindIsADirectory, "write_file", path, nil)
	}
	dir, err := a.ensureDirLocked(parent)
	if err != nil {
		return err
	}
	name := path.Name()
	if existing, ok := dir.Children[name]; ok && existing.Kind == tree.Directory {
		return newErr(KindIsADirectory, "write_file", path, nil)
	}
	dir.Children[name] = tree.NewFile(name, append([]byte(nil), data...), mime, a.now())
	dir.MTime = a.now()
	return nil
}

// Remove implements Adapter.
func (a *MemoryAdapter) Remove(ctx context.Context, path vpath.Segments, opts RemoveOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if path.IsRoot() {
		return newErr(KindPermissionDenied, "remove", path, nil)
	}
	parent, _ := path.Parent()
	dir, err := a.lookup(parent)
	if err != nil {
		return err
	}
	name := path.Name()
	target, ok := dir.Children[name]
	if !ok {
		return newErr(KindNotFound, "remove", path, nil)
	}
	if target.Kind == tree.Directory && len(target.Children) > 0 && !opts.Recursive {
		return newErr(KindNotEmpty, "remove", path, nil)
	}
	delete(dir.Children, name)
	dir.MTime = a.now()
	return nil
}

// Move implements Adapter.
func (a *MemoryAdapter) Move(ctx context.Context, from, to vpath.Segments) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	fparent, ok := from.Parent()
	if !ok {
		return newErr(KindPermissionDenied, "move", from, nil)
	}
	srcDir, err := a.lookup(fparent)
	if err != nil {
		return err
	}
	srcName := from.Name()
	node, ok := srcDir.Children[srcName]
	if !ok {
		return newErr(KindNotFound, "move", from, nil)
	}

	tparent, ok := to.Parent()
	if !ok {
		return newErr(KindPermissionDenied, "move", to, nil)
	}
	dstDir, derr := a.ensureDirLocked(tparent)
	if derr != nil {
		return derr
	}
	dstName := to.Name()
	delete(srcDir.Children, srcName)
	node.Name = dstName
	dstDir.Children[dstName] = node
	srcDir.MTime = a.now()
	dstDir.MTime = a.now()
	return nil
}

// Copy implements Adapter. A Directory source yields a deep clone.
func (a *MemoryAdapter) Copy(ctx context.Context, from, to vpath.Segments) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	fparent, ok := from.Parent()
	if !ok {
		return newErr(KindPermissionDenied, "copy", from, nil)
	}
	srcDir, err := a.lookup(fparent)
	if err != nil {
		return err
	}
	node, ok := srcDir.Children[from.Name()]
	if !ok {
		return newErr(KindNotFound, "copy", from, nil)
	}

	tparent, ok := to.Parent()
	if !ok {
		return newErr(KindPermissionDenied, "copy", to, nil)
	}
	dstDir, derr := a.ensureDirLocked(tparent)
	if derr != nil {
		return derr
	}
	dstName := to.Name()
	dstDir.Children[dstName] = node.Clone(dstName)
	dstDir.MTime = a.now()
	return nil
}

// FileMime implements MimeReader.
func (a *MemoryAdapter) FileMime(ctx context.Context, path vpath.Segments) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.lookup(path)
	if err != nil || n.Kind != tree.File || n.Mime == "" {
		return "", false
	}
	return n.Mime, true
}

func errOrNil(e *Error) error {
	if e == nil {
		return nil
	}
	return e
}
