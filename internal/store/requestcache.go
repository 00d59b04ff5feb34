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

	"github.com/creachadair/mds/cache"

	"github.com/llmdav/llmdav/internal/tree"
	"github.com/llmdav/llmdav/internal/vpath"
)

// RequestCache wraps an Adapter to memoize Stat, Exists, and Readdir for
// the lifetime of one HTTP request — useful for a PROPFIND that lists a
// directory and then stats each child. Writes are not cached; they bypass
// straight through to the wrapped Adapter, and Invalidate drops any stale
// entries for a path this request just mutated.
//
// A RequestCache is meant to be constructed fresh per request and
// discarded at its end; it is safe for concurrent use within that request.
type RequestCache struct {
	Adapter

	mu      sync.Mutex
	stats   *cache.Cache[string, statEntry]
	exist   *cache.Cache[string, bool]
	listing *cache.Cache[string, []string]
}

type statEntry struct {
	st  tree.Stat
	err error
}

// NewRequestCache wraps adapter with a per-request memoization layer sized
// for a single PROPFIND's worth of lookups.
func NewRequestCache(adapter Adapter) *RequestCache {
	const limit = 4096
	return &RequestCache{
		Adapter: adapter,
		stats:   cache.New(cache.LRU[string, statEntry]().WithLimit(limit)),
		exist:   cache.New(cache.LRU[string, bool]().WithLimit(limit)),
		listing: cache.New(cache.LRU[string, []string]().WithLimit(limit)),
	}
}

// Stat implements Adapter, memoizing results by canonical path key.
func (c *RequestCache) Stat(ctx context.Context, path vpath.Segments) (tree.Stat, error) {
	key := path.Key()
	c.mu.Lock()
	if e, ok := c.stats.Get(key); ok {
		c.mu.Unlock()
		return e.st, e.err
	}
	c.mu.Unlock()

	st, err := c.Adapter.Stat(ctx, path)
	c.mu.Lock()
	c.stats.Put(key, statEntry{st, err})
	c.mu.Unlock()
	return st, err
}

// Exists implements Adapter, memoizing results by canonical path key.
func (c *RequestCache) Exists(ctx context.Context, path vpath.Segments) (bool, error) {
	key := path.Key()
	c.mu.Lock()
	if v, ok := c.exist.Get(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	ok, err := c.Adapter.Exists(ctx, path)
	if err == nil {
		c.mu.Lock()
		c.exist.Put(key, ok)
		c.mu.Unlock()
	}
	return ok, err
}

// Readdir implements Adapter, memoizing results by canonical path key.
func (c *RequestCache) Readdir(ctx context.Context, path vpath.Segments) ([]string, error) {
	key := path.Key()
	c.mu.Lock()
	if v, ok := c.listing.Get(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	names, err := c.Adapter.Readdir(ctx, path)
	if err == nil {
		c.mu.Lock()
		c.listing.Put(key, names)
		c.mu.Unlock()
	}
	return names, err
}

// Invalidate drops all cached entries. The spec's request-scoped cache
// only needs to survive for the read-heavy span of a single request;
// rather than track per-key removal, a write simply resets the memo
// tables so the next read goes through to the wrapped Adapter again.
func (c *RequestCache) Invalidate(vpath.Segments) {
	const limit = 4096
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = cache.New(cache.LRU[string, statEntry]().WithLimit(limit))
	c.exist = cache.New(cache.LRU[string, bool]().WithLimit(limit))
	c.listing = cache.New(cache.LRU[string, []string]().WithLimit(limit))
}
