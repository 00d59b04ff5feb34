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

// Package tree defines the in-memory Node representation used by the
// memory-backed persistence adapter, and the Kind and Stat summary that
// every adapter reports and the protocol engine renders into PROPFIND
// responses.
package tree

import (
	"sort"
	"time"
)

// Kind distinguishes the two Node variants.
type Kind int

const (
	// File denotes a leaf node carrying bytes.
	File Kind = iota
	// Directory denotes an interior node carrying children.
	Directory
)

func (k Kind) String() string {
	if k == Directory {
		return "directory"
	}
	return "file"
}

// Node is a sum type with two variants, matching the data model: a
// Directory carries named children, a File carries bytes. Exactly one of
// Children or Bytes is meaningful, selected by Kind.
type Node struct {
	Name  string
	Kind  Kind
	MTime time.Time

	// Children is non-nil only for Kind == Directory. Keys are unique child
	// names; order is otherwise unspecified (the protocol engine imposes an
	// explicit order only when a dav-state order vector is attached).
	Children map[string]*Node

	// Bytes and Mime are meaningful only for Kind == File.
	Bytes []byte
	Mime  string
}

// NewDirectory returns an empty directory node.
func NewDirectory(name string, mtime time.Time) *Node {
	return &Node{Name: name, Kind: Directory, MTime: mtime, Children: map[string]*Node{}}
}

// NewFile returns a file node with the given content.
func NewFile(name string, data []byte, mime string, mtime time.Time) *Node {
	return &Node{Name: name, Kind: File, MTime: mtime, Bytes: data, Mime: mime}
}

// Stat summarizes a Node for stat() and PROPFIND responses. Size is present
// only when Kind == File.
type Stat struct {
	Kind  Kind
	Size  *int64
	MTime time.Time
}

// StatOf builds a Stat from a Node.
func StatOf(n *Node) Stat {
	st := Stat{Kind: n.Kind, MTime: n.MTime}
	if n.Kind == File {
		size := int64(len(n.Bytes))
		st.Size = &size
	}
	return st
}

// ChildNames returns the sorted names of a directory's children. Callers
// that need dav-state ordering should consult the order vector instead;
// this is the fallback "readdir order" the spec calls out in §4.3.4.
func (n *Node) ChildNames() []string {
	out := make([]string, 0, len(n.Children))
	for name := range n.Children {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone deep-clones a subtree, renaming the root to newName. This implements
// the copy() semantics required by the persistence adapter: a Directory
// yields a deep clone, a File yields a copy of its bytes.
func (n *Node) Clone(newName string) *Node {
	clone := &Node{Name: newName, Kind: n.Kind, MTime: n.MTime, Mime: n.Mime}
	if n.Kind == File {
		clone.Bytes = append([]byte(nil), n.Bytes...)
		return clone
	}
	clone.Children = make(map[string]*Node, len(n.Children))
	for name, kid := range n.Children {
		clone.Children[name] = kid.Clone(name)
	}
	return clone
}
