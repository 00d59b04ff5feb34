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
	"fmt"
	"strings"

	"github.com/llmdav/llmdav/internal/store"
	"github.com/llmdav/llmdav/internal/store/registry"
)

// openAdapter resolves --persist-root into a PersistenceAdapter, per the
// Domain Stack's backend table: empty selects memory, a bare filesystem
// path selects disk, and a "scheme:address" spec dispatches through the
// KV-backed registry (bolt, pebble, s3, ...), whichever backends this
// binary was built with.
func openAdapter(ctx context.Context, persistRoot string) (store.Adapter, error) {
	if persistRoot == "" {
		return store.NewMemoryAdapter(), nil
	}
	if scheme, address, ok := strings.Cut(persistRoot, ":"); ok && isRegistryScheme(scheme) {
		bs, err := registry.Open(ctx, scheme, address)
		if err != nil {
			return nil, fmt.Errorf("open store %q: %w", persistRoot, err)
		}
		return store.NewKVAdapter(ctx, bs)
	}
	return store.NewDiskAdapter(persistRoot)
}

// isRegistryScheme reports whether scheme names a backend registered in
// internal/store/registry, so that a disk path containing a colon (rare,
// but legal on some hosts) is never misread as a scheme spec.
func isRegistryScheme(scheme string) bool {
	_, ok := registry.Schemes[scheme]
	return ok
}
