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

package registry

import "github.com/creachadair/ffs/blob/memstore"

// The "kv-memory" scheme is unconditional: an in-process blob.Store needs no
// external dependency or build tag. It is distinct from the top-level
// MemoryAdapter (which bypasses blob.Store entirely); this one exercises the
// KVAdapter code path against an ephemeral store, useful for testing the
// registry-backed schemes without standing up bolt/pebble/sqlite et al.
func init() { Schemes["kv-memory"] = memstore.Opener }
