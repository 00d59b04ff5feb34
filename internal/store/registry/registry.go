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

// Package registry carries the registry of available KV-backed persistence
// schemes. This is a separate package from store so that it is fully
// initialized (via the build-tag-gated store_*.go init functions) before
// anything looks up a scheme by name — the same structuring
// ffs/internal/cmdstorage/registry uses for the ffs tool's blob stores.
package registry

import (
	"context"
	"fmt"

	"github.com/creachadair/ffs/blob"
)

// Opener opens a blob.Store given a scheme-specific address, e.g. a bolt
// database path or an s3://bucket/prefix URL.
type Opener func(ctx context.Context, address string) (blob.Store, error)

// Schemes enumerates the KV-backed storage implementations built into this
// binary. Only "kv-memory" is unconditional; the rest are gated by build tags
// in store_*.go so that a minimal binary need not link every cloud SDK and
// embedded database in the pack.
var Schemes = map[string]Opener{}

// Open dispatches to the Opener registered for scheme, or reports an error
// naming the schemes that are actually available in this build.
func Open(ctx context.Context, scheme, address string) (blob.Store, error) {
	open, ok := Schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("store: unknown scheme %q (built with: %s)", scheme, availableSchemes())
	}
	return open(ctx, address)
}

func availableSchemes() string {
	var out string
	for name := range Schemes {
		if out != "" {
			out += ", "
		}
		out += name
	}
	if out == "" {
		return "(none)"
	}
	return out
}
