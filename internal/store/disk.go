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
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/creachadair/atomicfile"
	"github.com/pkg/xattr"

	"github.com/llmdav/llmdav/internal/tree"
	"github.com/llmdav/llmdav/internal/vpath"
)

// mimeXattr is the extended attribute name under which DiskAdapter records
// a file's MIME type, the same "capture a side-channel attribute next to
// the bytes" approach putlib.go uses to preserve extended attributes on
// PutFile.
const mimeXattr = "user.llmdav.mime"

// DiskAdapter maps paths under a configured root onto the host filesystem.
// Reads, writes, stats, and listdir operations call through to the host;
// move and copy preserve the host's own mtime semantics by relying on the
// host calls directly rather than re-implementing them.
type DiskAdapter struct {
	root string
}

// NewDiskAdapter returns an Adapter rooted at persistRoot. The directory is
// created if it does not already exist.
func NewDiskAdapter(persistRoot string) (*DiskAdapter, error) {
	if err := os.MkdirAll(persistRoot, 0o755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(persistRoot)
	if err != nil {
		return nil, err
	}
	return &DiskAdapter{root: abs}, nil
}

func (a *DiskAdapter) hostPath(path vpath.Segments) string {
	if path.IsRoot() {
		return a.root
	}
	return filepath.Join(a.root, filepath.Join(path...))
}

func mapOSErr(op string, path vpath.Segments, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return newErr(KindNotFound, op, path, err)
	case errors.Is(err, fs.ErrPermission):
		return newErr(KindPermissionDenied, op, path, err)
	case errors.Is(err, fs.ErrExist):
		return newErr(KindAlreadyExists, op, path, err)
	default:
		return newErr(KindInternal, op, path, err)
	}
}

// EnsureDir implements Adapter.
func (a *DiskAdapter) EnsureDir(ctx context.Context, path vpath.Segments) error {
	if err := os.MkdirAll(a.hostPath(path), 0o755); err != nil {
		return mapOSErr("ensure_dir", path, err)
	}
	return nil
}

// Readdir implements Adapter.
func (a *DiskAdapter) Readdir(ctx context.Context, path vpath.Segments) ([]string, error) {
	fi, err := os.Stat(a.hostPath(path))
	if err != nil {
		return nil, mapOSErr("readdir", path, err)
	}
	if !fi.IsDir() {
		return nil, newErr(KindNotADirectory, "readdir", path, nil)
	}
	entries, err := os.ReadDir(a.hostPath(path))
	if err != nil {
		return nil, mapOSErr("readdir", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Stat implements Adapter.
func (a *DiskAdapter) Stat(ctx context.Context, path vpath.Segments) (tree.Stat, error) {
	fi, err := os.Stat(a.hostPath(path))
	if err != nil {
		return tree.Stat{}, mapOSErr("stat", path, err)
	}
	st := tree.Stat{MTime: fi.ModTime()}
	if fi.IsDir() {
		st.Kind = tree.Directory
	} else {
		st.Kind = tree.File
		size := fi.Size()
		st.Size = &size
	}
	return st, nil
}

// Exists implements Adapter.
func (a *DiskAdapter) Exists(ctx context.Context, path vpath.Segments) (bool, error) {
	_, err := os.Stat(a.hostPath(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, mapOSErr("exists", path, err)
}

// ReadFile implements Adapter.
func (a *DiskAdapter) ReadFile(ctx context.Context, path vpath.Segments) ([]byte, error) {
	fi, err := os.Stat(a.hostPath(path))
	if err != nil {
		return nil, mapOSErr("read_file", path, err)
	}
	if fi.IsDir() {
		return nil, newErr(KindIsADirectory, "read_file", path, nil)
	}
	data, err := os.ReadFile(a.hostPath(path))
	if err != nil {
		return nil, mapOSErr("read_file", path, err)
	}
	return data, nil
}

// WriteFile implements Adapter. The parent directory is created implicitly.
func (a *DiskAdapter) WriteFile(ctx context.Context, path vpath.Segments, data []byte, mime string) error {
	parent, ok := path.Parent()
	if !ok {
		return newErr(KindIsADirectory, "write_file", path, nil)
	}
	if err := a.EnsureDir(ctx, parent); err != nil {
		return err
	}
	hp := a.hostPath(path)
	if err := atomicfile.WriteData(hp, data, 0o644); err != nil {
		return mapOSErr("write_file", path, err)
	}
	if mime != "" {
		// Best-effort: not all filesystems support extended attributes.
		_ = xattr.Set(hp, mimeXattr, []byte(mime))
	}
	return nil
}

// FileMime implements MimeReader.
func (a *DiskAdapter) FileMime(ctx context.Context, path vpath.Segments) (string, bool) {
	b, err := xattr.Get(a.hostPath(path), mimeXattr)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Remove implements Adapter.
func (a *DiskAdapter) Remove(ctx context.Context, path vpath.Segments, opts RemoveOptions) error {
	if path.IsRoot() {
		return newErr(KindPermissionDenied, "remove", path, nil)
	}
	hp := a.hostPath(path)
	fi, err := os.Stat(hp)
	if err != nil {
		return mapOSErr("remove", path, err)
	}
	if fi.IsDir() {
		if !opts.Recursive {
			entries, err := os.ReadDir(hp)
			if err != nil {
				return mapOSErr("remove", path, err)
			}
			if len(entries) > 0 {
				return newErr(KindNotEmpty, "remove", path, nil)
			}
		}
		if err := os.RemoveAll(hp); err != nil {
			return mapOSErr("remove", path, err)
		}
		return nil
	}
	if err := os.Remove(hp); err != nil {
		return mapOSErr("remove", path, err)
	}
	return nil
}

// Move implements Adapter.
func (a *DiskAdapter) Move(ctx context.Context, from, to vpath.Segments) error {
	if _, err := os.Stat(a.hostPath(from)); err != nil {
		return mapOSErr("move", from, err)
	}
	parent, ok := to.Parent()
	if ok {
		if err := a.EnsureDir(ctx, parent); err != nil {
			return err
		}
	}
	if err := os.Rename(a.hostPath(from), a.hostPath(to)); err != nil {
		return mapOSErr("move", from, err)
	}
	return nil
}

// Copy implements Adapter. Directories are copied recursively.
func (a *DiskAdapter) Copy(ctx context.Context, from, to vpath.Segments) error {
	src := a.hostPath(from)
	fi, err := os.Stat(src)
	if err != nil {
		return mapOSErr("copy", from, err)
	}
	if parent, ok := to.Parent(); ok {
		if err := a.EnsureDir(ctx, parent); err != nil {
			return err
		}
	}
	dst := a.hostPath(to)
	if fi.IsDir() {
		return copyDir(src, dst)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return mapOSErr("copy", from, err)
	}
	if err := atomicfile.WriteData(dst, data, 0o644); err != nil {
		return mapOSErr("copy", to, err)
	}
	if b, err := xattr.Get(src, mimeXattr); err == nil {
		_ = xattr.Set(dst, mimeXattr, b)
	}
	return nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := atomicfile.WriteData(target, data, 0o644); err != nil {
			return err
		}
		if b, err := xattr.Get(p, mimeXattr); err == nil {
			_ = xattr.Set(target, mimeXattr, b)
		}
		return nil
	})
}
