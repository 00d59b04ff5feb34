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

package main

import (
	"context"
	"log"
	"time"

	"github.com/llmdav/llmdav/internal/fabricate"
)

// logRecentActivity is the --ui stand-in for the live terminal dashboard,
// which is explicitly out of scope for this engine (§1): rather than a
// full TUI, it periodically prints the tracker's ring buffer to the
// server log so an operator can see fabrication activity without a
// separate client.
func logRecentActivity(ctx context.Context, tracker *fabricate.Tracker, logger *log.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events := tracker.Recent()
			if len(events) <= seen {
				continue
			}
			for _, e := range events[seen:] {
				logger.Printf("[ui] %s %s %s %s", e.Kind, e.Context, e.Path, e.Preview)
			}
			seen = len(events)
		}
	}
}
