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
	"github.com/llmdav/llmdav/internal/config"
	"github.com/llmdav/llmdav/internal/llmevents"
)

// buildTransport selects the configured LLM backend. The wire schema of
// any particular vendor's streaming API is outside this engine's contract
// (§1, §6 treats it as an opaque ResponseEvent source); this is the single
// seam where a concrete llmevents.LlmTransport for OPENAI_API_KEY or
// GEMINI_API_KEY plugs in. Returning nil here degrades fabrication to a
// no-op, the same contract Orchestrator already honors for an absent
// transport.
func buildTransport(cfg *config.Settings) llmevents.LlmTransport {
	return nil
}
