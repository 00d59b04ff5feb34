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

// Package davstate carries the WebDAV side-channel state that has no home
// in the persistence tree itself: dead properties set by PROPPATCH and the
// active lock table consulted by LOCK/UNLOCK/If-header validation.
//
// The property table is durable, written to a single sidecar file next to
// the persistence root ("dav-state") so that a server restart does not
// forget properties a client patched in. Locks are held only in memory —
// x/net/webdav's MemLS already expires them on its own schedule, and a
// lock that outlives a server restart is not useful to a client that is,
// by definition, still connected to the now-restarted server.
package davstate

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/creachadair/atomicfile"
	"github.com/creachadair/keyfile"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/net/webdav"

	"github.com/llmdav/llmdav/internal/vpath"
)

// Property is a single dead property value, namespaced the way PROPPATCH
// presents it: an XML namespace plus a local name.
type Property struct {
	XMLNS string `json:"xmlns"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type propKey struct{ XMLNS, Name string }

// Store is the durable side-channel for dead properties, the ORDERPATCH
// child-order vector, plus the in-memory WebDAV lock table. It is safe for
// concurrent use.
type Store struct {
	mu    sync.Mutex
	props map[string]map[propKey]Property // canonical path key -> props
	order map[string][]string             // canonical path key -> ordered child names

	sidecarPath string
	codec       sidecarCodec

	Locks webdav.LockSystem
}

// sidecarRecord is the durable shape of one path's side-channel state:
// its dead properties plus, for a directory, the ORDERPATCH order vector
// PROPFIND consults when rendering that directory's children.
type sidecarRecord struct {
	Props []Property `json:"props,omitempty"`
	Order []string   `json:"order,omitempty"`
}

// Option configures sidecar persistence.
type Option func(*Store) error

// WithCompression enables zstd compression of the sidecar file.
func WithCompression() Option {
	return func(s *Store) error {
		s.codec.compress = true
		return nil
	}
}

// WithEncryptionKeyFile enables at-rest encryption of the sidecar using a
// chacha20poly1305 key loaded via keyfile. keyFile may name either a raw
// 32-byte key or a passphrase-protected keyfile.File; in the latter case
// the passphrase is read only from the envVar environment variable — this
// package never prompts interactively, so envVar must be set or Open
// fails rather than block on stdin.
func WithEncryptionKeyFile(keyFile, envVar string) Option {
	return func(s *Store) error {
		key, err := keyfile.LoadKey(keyFile, func() (string, error) {
			pp, ok := os.LookupEnv(envVar)
			if !ok {
				return "", fmt.Errorf("davstate: passphrase required; set %s", envVar)
			}
			return pp, nil
		})
		if err != nil {
			return fmt.Errorf("davstate: load encryption key: %w", err)
		}
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return fmt.Errorf("davstate: init cipher: %w", err)
		}
		s.codec.aead = aead
		return nil
	}
}

// Open loads the property sidecar from sidecarPath if it exists, or starts
// empty if it does not. The lock table is always fresh: locks do not
// survive a restart.
func Open(sidecarPath string, opts ...Option) (*Store, error) {
	s := &Store{
		props:       make(map[string]map[propKey]Property),
		order:       make(map[string][]string),
		sidecarPath: sidecarPath,
		Locks:       webdav.NewMemLS(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(sidecarPath)
	if os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("davstate: read %s: %w", sidecarPath, err)
	}
	plain, err := s.codec.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("davstate: decode %s: %w", sidecarPath, err)
	}
	var flat map[string]sidecarRecord
	if err := json.Unmarshal(plain, &flat); err != nil {
		return nil, fmt.Errorf("davstate: parse %s: %w", sidecarPath, err)
	}
	for key, rec := range flat {
		if len(rec.Props) > 0 {
			m := make(map[propKey]Property, len(rec.Props))
			for _, p := range rec.Props {
				m[propKey{p.XMLNS, p.Name}] = p
			}
			s.props[key] = m
		}
		if len(rec.Order) > 0 {
			s.order[key] = append([]string(nil), rec.Order...)
		}
	}
	return s, nil
}

// SetProperty records or overwrites a dead property for path.
func (s *Store) SetProperty(path vpath.Segments, p Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := path.Key()
	if s.props[key] == nil {
		s.props[key] = make(map[propKey]Property)
	}
	s.props[key][propKey{p.XMLNS, p.Name}] = p
	return s.saveLocked()
}

// RemoveProperty deletes a dead property, if present.
func (s *Store) RemoveProperty(path vpath.Segments, xmlns, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := path.Key()
	delete(s.props[key], propKey{xmlns, name})
	return s.saveLocked()
}

// Properties returns the dead properties recorded for path, in no
// particular order.
func (s *Store) Properties(path vpath.Segments) []Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.props[path.Key()]
	out := make([]Property, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	return out
}

// SetOrder records the ORDERPATCH child-order vector for a directory.
// PROPFIND consults it in place of readdir order (§4.3.4, §9) whenever it
// is present; names readdir reports that are absent from the vector are
// appended after it, in readdir order.
func (s *Store) SetOrder(path vpath.Segments, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order[path.Key()] = append([]string(nil), names...)
	return s.saveLocked()
}

// Order returns the recorded child-order vector for path, and whether one
// has been set.
func (s *Store) Order(path vpath.Segments) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.order[path.Key()]
	if !ok {
		return nil, false
	}
	return append([]string(nil), v...), true
}

// Forget drops all recorded properties and order vector for path, used
// when the underlying resource is deleted or moved away from path.
func (s *Store) Forget(path vpath.Segments) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := path.Key()
	delete(s.props, key)
	delete(s.order, key)
	return s.saveLocked()
}

// Rekey moves the recorded properties and order vector from one path to
// another, used when the underlying resource is moved (a copy does not
// carry them over; the destination's state is forgotten instead).
func (s *Store) Rekey(from, to vpath.Segments) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromKey, toKey := from.Key(), to.Key()
	if m, ok := s.props[fromKey]; ok {
		s.props[toKey] = m
		delete(s.props, fromKey)
	}
	if v, ok := s.order[fromKey]; ok {
		s.order[toKey] = v
		delete(s.order, fromKey)
	}
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.sidecarPath == "" {
		return nil
	}
	keys := make(map[string]bool, len(s.props)+len(s.order))
	for key := range s.props {
		keys[key] = true
	}
	for key := range s.order {
		keys[key] = true
	}
	flat := make(map[string]sidecarRecord, len(keys))
	for key := range keys {
		var rec sidecarRecord
		for _, p := range s.props[key] {
			rec.Props = append(rec.Props, p)
		}
		rec.Order = s.order[key]
		flat[key] = rec
	}
	plain, err := json.Marshal(flat)
	if err != nil {
		return fmt.Errorf("davstate: marshal: %w", err)
	}
	raw, err := s.codec.encode(plain)
	if err != nil {
		return fmt.Errorf("davstate: encode: %w", err)
	}
	return atomicfile.WriteData(s.sidecarPath, raw, 0o600)
}

// sidecarCodec optionally compresses and/or encrypts the sidecar payload.
// Encryption, when configured, wraps compression: plain -> zstd -> aead.
type sidecarCodec struct {
	compress bool
	aead     interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

func (c sidecarCodec) encode(plain []byte) ([]byte, error) {
	data := plain
	if c.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		data = enc.EncodeAll(data, nil)
	}
	if c.aead == nil {
		return data, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return append(nonce, c.aead.Seal(nil, nonce, data, nil)...), nil
}

func (c sidecarCodec) decode(raw []byte) ([]byte, error) {
	data := raw
	if c.aead != nil {
		n := c.aead.NonceSize()
		if len(raw) < n {
			return nil, fmt.Errorf("sidecar too short for nonce")
		}
		plain, err := c.aead.Open(nil, raw[:n], raw[n:], nil)
		if err != nil {
			return nil, err
		}
		data = plain
	}
	if c.compress {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	}
	return data, nil
}

// Close releases resources held by the store. The lock system (MemLS) has
// no explicit shutdown; this exists so callers can defer a single Close
// regardless of which options were configured.
func (s *Store) Close(context.Context) error { return nil }
