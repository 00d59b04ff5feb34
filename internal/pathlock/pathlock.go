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

// Package pathlock serializes operations that touch overlapping paths in
// the persistence tree. A MOVE or COPY that spans two paths must not
// interleave with a PUT or DELETE racing on either one of them, but
// operations on disjoint paths must run concurrently.
//
// The approach is a per-key "tail promise" chain: acquiring a path records
// a new tail for that key and then waits for whatever tail was previously
// there; the returned Release completes the new tail. Operations that touch several paths sort and
// dedup the keys first, so two operations that both lock {"/a", "/b"}
// always acquire them in the same order and cannot deadlock against each
// other.
package pathlock

import (
	"context"
	"sort"

	"github.com/creachadair/taskgroup"

	"github.com/llmdav/llmdav/internal/vpath"
)

// Manager hands out releasable locks keyed by canonical path. The zero
// value is not usable; construct with New.
type Manager struct {
	mu    chan struct{} // 1-buffered mutex guarding tails
	tails map[string]*taskgroup.Single[error]
}

// New constructs an empty Manager.
func New() *Manager {
	m := &Manager{mu: make(chan struct{}, 1), tails: make(map[string]*taskgroup.Single[error])}
	m.mu <- struct{}{}
	return m
}

// Release unlocks the paths acquired by the matching Acquire call.
type Release func()

// Acquire blocks until it holds exclusive access to every path in paths,
// then returns a Release to give that access back up. Paths are sorted and
// deduplicated internally, so the caller need not worry about lock
// ordering: two calls racing on overlapping path sets always serialize
// rather than deadlock.
//
// Acquire installs its own tails first and then waits on the prior
// holders' tails. If ctx ends during that wait it returns ctx.Err() and no
// Release; its tails still complete only after those prior holders have
// finished, so acquirers queued behind it keep their order. Cancelling ctx
// after Acquire returns does not release a held lock.
func (m *Manager) Acquire(ctx context.Context, paths ...vpath.Segments) (Release, error) {
	keys := keysOf(paths)
	if len(keys) == 0 {
		return func() {}, nil
	}

	waits := make([]*taskgroup.Single[error], 0, len(keys))
	myTails := make([]*taskgroup.Single[error], len(keys))
	done := make(chan struct{})

	<-m.mu
	for i, k := range keys {
		if prev, ok := m.tails[k]; ok {
			waits = append(waits, prev)
		}
		tail := taskgroup.Go(func() error {
			<-done
			return nil
		})
		myTails[i] = tail
		m.tails[k] = tail
	}
	m.mu <- struct{}{}

	for _, w := range waits {
		select {
		case <-waitSignal(w):
		case <-ctx.Done():
			go func() {
				for _, w := range waits {
					w.Wait()
				}
				close(done)
				m.clearIfCurrent(keys, myTails)
			}()
			return nil, ctx.Err()
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		close(done)
		m.clearIfCurrent(keys, myTails)
	}, nil
}

// clearIfCurrent removes this acquisition's tails from the map, but only
// the entries that still point at the tail this call installed — a later
// Acquire on the same key may already have replaced it.
func (m *Manager) clearIfCurrent(keys []string, mine []*taskgroup.Single[error]) {
	<-m.mu
	for i, k := range keys {
		if m.tails[k] == mine[i] {
			delete(m.tails, k)
		}
	}
	m.mu <- struct{}{}
}

// waitSignal adapts a *taskgroup.Single[error] into a channel that closes
// when the task completes, so it can be select-ed against ctx.Done.
func waitSignal(s *taskgroup.Single[error]) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		s.Wait()
		close(ch)
	}()
	return ch
}

// keysOf sorts and dedups the canonical keys of paths.
func keysOf(paths []vpath.Segments) []string {
	seen := make(map[string]bool, len(paths))
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		k := p.Key()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
