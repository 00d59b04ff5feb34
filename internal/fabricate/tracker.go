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

package fabricate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/creachadair/mds/cache"
)

const trackerRingSize = 500

// Event is one entry in the Tracker's ring buffer.
type Event struct {
	Time    time.Time
	Kind    string // "llm.start" or "llm.end"
	Context string
	Path    string
	Depth   *int
	Mime    string
	Model   string
	Preview string
	Stats   Stats
}

// Stats are the counters maintained while applying tool calls, per §4.5.
type Stats struct {
	Dirs        int
	Files       int
	Bytes       int
	SampleNames []string
}

// Tracker is an append-only bounded ring buffer of fabrication telemetry,
// plus a structured logger sink. 500 events matches the spec's resource
// model; older events age out of the LRU cache as new ones arrive.
type Tracker struct {
	log *slog.Logger

	mu    sync.Mutex
	ring  *cache.Cache[uint64, Event]
	order []uint64
	next  uint64
}

// NewTracker constructs a Tracker. log may be nil, in which case events are
// only retained in the ring buffer and not emitted to structured logging.
func NewTracker(log *slog.Logger) *Tracker {
	return &Tracker{
		log:  log,
		ring: cache.New(cache.LRU[uint64, Event]().WithLimit(trackerRingSize)),
	}
}

func (t *Tracker) record(e Event) {
	e.Time = time.Now()
	t.mu.Lock()
	key := t.next
	t.next++
	t.ring.Put(key, e)
	t.order = append(t.order, key)
	if len(t.order) > trackerRingSize {
		t.order = t.order[len(t.order)-trackerRingSize:]
	}
	t.mu.Unlock()

	if t.log == nil {
		return
	}
	t.log.Info(e.Kind,
		"context", e.Context,
		"path", e.Path,
		"mime", e.Mime,
		"model", e.Model,
		"dirs", e.Stats.Dirs,
		"files", e.Stats.Files,
		"bytes", e.Stats.Bytes,
	)
}

// Start records an llm.start event.
func (t *Tracker) Start(context, path string, depth *int, mime, model, promptPreview string) {
	t.record(Event{Kind: "llm.start", Context: context, Path: path, Depth: depth, Mime: mime, Model: model, Preview: promptPreview})
}

// End records an llm.end event with the resulting stats.
func (t *Tracker) End(context, path string, stats Stats) {
	t.record(Event{Kind: "llm.end", Context: context, Path: path, Stats: stats})
}

// Recent returns up to the last trackerRingSize events, oldest first.
func (t *Tracker) Recent() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, 0, len(t.order))
	for _, key := range t.order {
		if e, ok := t.ring.Get(key); ok {
			out = append(out, e)
		}
	}
	return out
}
