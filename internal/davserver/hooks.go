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

package davserver

import (
	"log"
	"net/http"

	"github.com/llmdav/llmdav/internal/store"
	"github.com/llmdav/llmdav/internal/vpath"
)

// HookResponse is what a hook returns, as an optional response (a nil
// pointer stands for "no response"): a nil HookResponse means "fall
// through to the engine's default
// handling"; a non-nil one short-circuits it.
type HookResponse struct {
	Status  int
	Body    []byte
	Headers map[string]string
}

// Hooks is the collaborator the LLM fabrication orchestrator attaches
// through, without the protocol engine depending on it directly. Any
// field may be nil, in which case that hook point is a no-op (falls
// through immediately).
type Hooks struct {
	// BeforeGet runs when a GET target is missing, or present but empty.
	BeforeGet func(urlPath string, segments vpath.Segments, persist store.Adapter, logger *log.Logger) *HookResponse

	// BeforePut runs before a PUT is applied; it may rewrite the body via
	// setBody, or short-circuit with its own response.
	BeforePut func(urlPath string, segments vpath.Segments, body []byte, setBody func(data []byte, mime string), persist store.Adapter, logger *log.Logger) *HookResponse

	// BeforeMkcol runs before a MKCOL is applied.
	BeforeMkcol func(urlPath string, segments vpath.Segments, persist store.Adapter, logger *log.Logger) *HookResponse

	// AfterMkcol runs after a MKCOL completes, successfully or not.
	AfterMkcol func(w http.ResponseWriter, status int)

	// BeforePropfind runs when a PROPFIND target is missing, or present
	// but an empty directory — the same hook point fabrication uses to
	// populate a directory before the listing is built.
	BeforePropfind func(urlPath string, segments vpath.Segments, persist store.Adapter, logger *log.Logger) *HookResponse
}
