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

// Package store defines the PersistenceAdapter contract: the single source
// of truth for filesystem state, implemented by an in-memory backend, a
// disk-backed backend, and a family of KV-backed backends registered in
// package registry.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/llmdav/llmdav/internal/tree"
	"github.com/llmdav/llmdav/internal/vpath"
)

// Kind enumerates the distinct failure modes an Adapter can report. The
// engine maps each Kind to an HTTP status via a single translation function
// (see internal/davserver), never by inspecting error strings.
type Kind int

const (
	// KindNone is the zero value; never returned from a real failure.
	KindNone Kind = iota
	KindNotFound
	KindNotADirectory
	KindIsADirectory
	KindNotEmpty
	KindPermissionDenied
	KindAlreadyExists
	KindInternal
)

// Error is the error type every Adapter method returns on failure.
type Error struct {
	Kind Kind
	Path vpath.Segments
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: %s %q: %v", e.Op, e.Path.Display(), e.Err)
	}
	return fmt.Sprintf("store: %s %q: %s", e.Op, e.Path.Display(), e.kindText())
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) kindText() string {
	switch e.Kind {
	case KindNotFound:
		return "not found"
	case KindNotADirectory:
		return "not a directory"
	case KindIsADirectory:
		return "is a directory"
	case KindNotEmpty:
		return "directory not empty"
	case KindPermissionDenied:
		return "permission denied"
	case KindAlreadyExists:
		return "already exists"
	default:
		return "internal error"
	}
}

func newErr(kind Kind, op string, path vpath.Segments, cause error) *Error {
	return &Error{Kind: kind, Path: path, Op: op, Err: cause}
}

// KindOf extracts the Kind carried by err, if any, defaulting to
// KindInternal for unrecognized errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// RemoveOptions configures Remove.
type RemoveOptions struct {
	// Recursive must be true to remove a non-empty directory.
	Recursive bool
}

// Adapter is the uniform path-tree interface implemented by every
// persistence backend. All operations are safe for concurrent use by
// multiple goroutines only to the extent the concrete backend documents;
// callers that need cross-operation atomicity use internal/pathlock.
type Adapter interface {
	// EnsureDir idempotently creates the directory and any missing
	// ancestors.
	EnsureDir(ctx context.Context, path vpath.Segments) error

	// Readdir lists the names of path's children. Fails with
	// KindNotADirectory if path is not a directory, KindNotFound if it does
	// not exist.
	Readdir(ctx context.Context, path vpath.Segments) ([]string, error)

	// Stat reports the kind/size/mtime of path. Fails with KindNotFound if
	// path does not exist.
	Stat(ctx context.Context, path vpath.Segments) (tree.Stat, error)

	// Exists reports whether path names an existing node.
	Exists(ctx context.Context, path vpath.Segments) (bool, error)

	// ReadFile returns the bytes of path. Fails with KindIsADirectory if
	// path names a directory, KindNotFound if it does not exist.
	ReadFile(ctx context.Context, path vpath.Segments) ([]byte, error)

	// WriteFile replaces (or creates) path with data, implicitly creating
	// any missing ancestor directories.
	WriteFile(ctx context.Context, path vpath.Segments, data []byte, mime string) error

	// Remove deletes path. A non-empty directory requires
	// opts.Recursive, else it fails with KindNotEmpty.
	Remove(ctx context.Context, path vpath.Segments, opts RemoveOptions) error

	// Move relocates from to to, ensuring to's parent exists first.
	Move(ctx context.Context, from, to vpath.Segments) error

	// Copy duplicates from at to, ensuring to's parent exists first. A
	// Directory source yields a deep clone.
	Copy(ctx context.Context, from, to vpath.Segments) error
}

// MimeReader is implemented by backends that track a file's MIME type
// separately from its bytes (MemoryAdapter via the Node record, DiskAdapter
// via an extended attribute, KVAdapter via the stored record). The engine
// falls back to application/octet-stream when a backend does not implement
// this interface or reports ok == false.
type MimeReader interface {
	FileMime(ctx context.Context, path vpath.Segments) (mime string, ok bool)
}
