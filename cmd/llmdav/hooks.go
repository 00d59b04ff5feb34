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
	"mime"
	"path/filepath"

	"github.com/llmdav/llmdav/internal/davserver"
	"github.com/llmdav/llmdav/internal/fabricate"
	"github.com/llmdav/llmdav/internal/store"
	"github.com/llmdav/llmdav/internal/vpath"
)

// fabricationHooks wires component E (the orchestrator) into the protocol
// engine's hook points, the "HTTP glue" §2 assigns the remaining 15% of
// the core to. The engine never imports fabricate directly; this is the
// one file that does.
type fabricationHooks struct {
	orch *fabricate.Orchestrator
}

func newFabricationHooks(orch *fabricate.Orchestrator) davserver.Hooks {
	h := &fabricationHooks{orch: orch}
	return davserver.Hooks{
		BeforeGet:      h.beforeGet,
		BeforePropfind: h.beforePropfind,
	}
}

func (h *fabricationHooks) beforeGet(urlPath string, segs vpath.Segments, persist store.Adapter, logger *log.Logger) *davserver.HookResponse {
	hint := mime.TypeByExtension(filepath.Ext(segs.Name()))
	content, err := h.orch.FabricateFileContent(context.Background(), segs, hint)
	if err != nil {
		logger.Printf("fabricate file %s: %v", segs.Display(), err)
		return nil
	}
	if content == "" {
		return nil
	}
	return &davserver.HookResponse{}
}

func (h *fabricationHooks) beforePropfind(urlPath string, segs vpath.Segments, persist store.Adapter, logger *log.Logger) *davserver.HookResponse {
	if err := h.orch.FabricateListing(context.Background(), segs, nil); err != nil {
		logger.Printf("fabricate listing %s: %v", segs.Display(), err)
		return nil
	}
	return &davserver.HookResponse{}
}
