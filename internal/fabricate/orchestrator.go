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

// Package fabricate turns filesystem misses into LLM tool-calling requests
// and applies the resulting structured calls back to the persistence
// layer. It holds the only orchestration-level state: the inflight
// coalescing maps and the telemetry tracker.
package fabricate

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/taskgroup"

	"github.com/llmdav/llmdav/internal/llmevents"
	"github.com/llmdav/llmdav/internal/pathlock"
	"github.com/llmdav/llmdav/internal/store"
	"github.com/llmdav/llmdav/internal/vpath"
)

// ImageResult is one generated image, per the external image provider
// port's documented shape.
type ImageResult struct {
	Size       string
	URL        string
	Caption    string
	Moderation string
}

// ImageRequest carries generation parameters for one emit_image_file call.
type ImageRequest struct {
	RepoID string
	Kind   string
	Prompt string
	Sizes  []string
	Style  string
	Seed   *int
}

// ImageProvider is the opaque port the orchestrator routes image/* tool
// calls through. No implementation is provided here; this mirrors the
// spec's treatment of image backends as an external collaborator.
type ImageProvider interface {
	Generate(ctx context.Context, req ImageRequest) ([]ImageResult, error)
}

// Orchestrator implements component E: fabricate_listing and
// fabricate_file_content, coalescing concurrent duplicate requests and
// applying tool calls atomically through a path-locked persistence
// adapter.
type Orchestrator struct {
	adapter   store.Adapter
	locks     *pathlock.Manager
	transport llmevents.LlmTransport
	images    ImageProvider
	model     string
	tracker   *Tracker

	instruction string

	mu             sync.Mutex
	inflightFiles  map[string]*taskgroup.Single[error]
	fileResults    map[string]string
	inflightDirs   mapset.Set[string]
	inflightDirsWG map[string]*taskgroup.Single[error]
}

// New constructs an Orchestrator. transport or images may be nil, in which
// case the corresponding fabrication kind degrades to a no-op, matching
// the spec's "absent backend disables fabrication" contract.
func New(adapter store.Adapter, locks *pathlock.Manager, transport llmevents.LlmTransport, images ImageProvider, model string, tracker *Tracker) *Orchestrator {
	return &Orchestrator{
		adapter:        adapter,
		locks:          locks,
		transport:      transport,
		images:         images,
		model:          model,
		tracker:        tracker,
		inflightFiles:  make(map[string]*taskgroup.Single[error]),
		fileResults:    make(map[string]string),
		inflightDirs:   mapset.New[string](),
		inflightDirsWG: make(map[string]*taskgroup.Single[error]),
	}
}

// SetInstruction attaches a fixed operator-supplied system instruction
// (the CLI's --instruction flag) that is prepended to every fabrication
// prompt. The zero value prepends nothing.
func (o *Orchestrator) SetInstruction(instruction string) {
	o.instruction = instruction
}

func (o *Orchestrator) withInstruction(prompt string) string {
	if o.instruction == "" {
		return prompt
	}
	return o.instruction + "\n\n" + prompt
}

// FabricateListing synthesizes and materializes children for folder, or
// joins an identical fabrication already in flight. depth, if non-nil, is
// passed through to the prompt as a WEBDAV_DEPTH hint.
func (o *Orchestrator) FabricateListing(ctx context.Context, folder vpath.Segments, depth *int) error {
	if o.transport == nil {
		return nil
	}
	key := InflightListingKey(folder, depth)

	o.mu.Lock()
	if existing, ok := o.inflightDirsWG[key]; ok {
		o.mu.Unlock()
		return existing.Wait()
	}
	task := taskgroup.Go(func() error {
		return o.runListing(ctx, folder, depth)
	})
	o.inflightDirsWG[key] = task
	o.inflightDirs.Add(key)
	o.mu.Unlock()

	err := task.Wait()

	o.mu.Lock()
	delete(o.inflightDirsWG, key)
	o.inflightDirs.Remove(key)
	o.mu.Unlock()

	return err
}

func (o *Orchestrator) runListing(ctx context.Context, folder vpath.Segments, depth *int) error {
	prompt := o.withInstruction(ListingPrompt(folder, depth))
	o.tracker.Start("listing", folder.Display(), depth, "", o.model, preview(prompt))

	stats := Stats{}
	onCall := func(name string, params map[string]any) any {
		if name != "emit_fs_listing" {
			return nil
		}
		if err := o.applyFsListing(ctx, folder, params, &stats); err != nil {
			return nil
		}
		return struct{}{}
	}

	es, err := o.transport.Stream(prompt)
	if err != nil {
		o.tracker.End("listing", folder.Display(), stats)
		return nil // best-effort: swallow transport errors
	}
	llmevents.NewRunner(onCall).Drain(es)
	o.tracker.End("listing", folder.Display(), stats)
	return nil
}

// FabricateFileContent synthesizes content for path and returns it,
// joining an identical fabrication already in flight.
func (o *Orchestrator) FabricateFileContent(ctx context.Context, path vpath.Segments, mimeHint string) (string, error) {
	if o.transport == nil {
		return "", nil
	}
	key := InflightFileKey(path, mimeHint)

	o.mu.Lock()
	if existing, ok := o.inflightFiles[key]; ok {
		o.mu.Unlock()
		existing.Wait()
		o.mu.Lock()
		result := o.fileResults[key]
		o.mu.Unlock()
		return result, nil
	}
	task := taskgroup.Go(func() error {
		return o.runFileContent(ctx, path, mimeHint, key)
	})
	o.inflightFiles[key] = task
	o.mu.Unlock()

	task.Wait()

	o.mu.Lock()
	result := o.fileResults[key]
	delete(o.inflightFiles, key)
	delete(o.fileResults, key)
	o.mu.Unlock()

	return result, nil
}

func (o *Orchestrator) runFileContent(ctx context.Context, path vpath.Segments, mimeHint, key string) error {
	prompt := o.withInstruction(FileContentPrompt(path, mimeHint))
	o.tracker.Start("file", path.Display(), nil, mimeHint, o.model, preview(prompt))

	stats := Stats{}
	var result string
	onCall := func(name string, params map[string]any) any {
		release, lerr := o.locks.Acquire(ctx, path)
		if lerr != nil {
			return nil
		}
		defer release()

		switch name {
		case "emit_file_content":
			content, _ := params["content"].(string)
			mime, _ := params["mime"].(string)
			if mime == "" {
				mime = mimeHint
			}
			if err := o.adapter.WriteFile(ctx, path, []byte(content), mime); err != nil {
				return nil
			}
			stats.Files++
			stats.Bytes += len(content)
			result = content
			return struct{}{}
		case "emit_image_file":
			data, mime, err := o.resolveImage(ctx, path, params)
			if err != nil {
				return nil
			}
			if err := o.adapter.WriteFile(ctx, path, data, mime); err != nil {
				return nil
			}
			stats.Files++
			stats.Bytes += len(data)
			result = string(data)
			return struct{}{}
		}
		return nil
	}

	es, err := o.transport.Stream(prompt)
	if err == nil {
		llmevents.NewRunner(onCall).Drain(es)
	}

	o.mu.Lock()
	o.fileResults[key] = result
	o.mu.Unlock()

	o.tracker.End("file", path.Display(), stats)
	return nil
}

// applyFsListing executes an emit_fs_listing tool call: ensure_dir(folder)
// then ensure_dir or write_file for each entry, per §4.5.
func (o *Orchestrator) applyFsListing(ctx context.Context, folder vpath.Segments, params map[string]any, stats *Stats) error {
	release, err := o.locks.Acquire(ctx, folder)
	if err != nil {
		return err
	}
	defer release()

	if err := o.adapter.EnsureDir(ctx, folder); err != nil {
		return err
	}
	entries, _ := params["entries"].([]any)
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		kind, _ := entry["kind"].(string)
		child := folder.Child(name)

		if kind == "dir" {
			if err := o.adapter.EnsureDir(ctx, child); err != nil {
				continue
			}
			stats.Dirs++
		} else {
			content, _ := entry["content"].(string)
			mime, _ := entry["mime"].(string)
			data := []byte(content)
			if strings.HasPrefix(mime, "image/") {
				if resolved, _, err := o.resolveImage(ctx, child, entry); err == nil {
					data = resolved
				}
			}
			if err := o.adapter.WriteFile(ctx, child, data, mime); err != nil {
				continue
			}
			stats.Files++
			stats.Bytes += len(data)
		}
		if len(stats.SampleNames) < 8 {
			stats.SampleNames = append(stats.SampleNames, name)
		}
	}
	return nil
}

// resolveImage routes an image/* tool call through the configured
// ImageProvider, decoding a data: URL result to raw bytes. If no provider
// is configured, or the provider errs, it returns an error so the caller
// falls back to whatever textual placeholder it already had.
func (o *Orchestrator) resolveImage(ctx context.Context, path vpath.Segments, params map[string]any) ([]byte, string, error) {
	if o.images == nil {
		return nil, "", fmt.Errorf("fabricate: no image provider configured")
	}
	prompt, _ := params["prompt"].(string)
	mime, _ := params["mime"].(string)
	results, err := o.images.Generate(ctx, ImageRequest{
		RepoID: path.Display(),
		Kind:   "file",
		Prompt: prompt,
	})
	if err != nil || len(results) == 0 {
		return nil, "", fmt.Errorf("fabricate: image generation failed: %w", err)
	}
	data, err := decodeImageURL(results[0].URL)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

// decodeImageURL accepts a data: URL and returns its decoded payload.
// Non-data URLs are not fetched here; a caller needing HTTP(S) retrieval
// supplies its own ImageProvider that already returns data: URLs or raw
// bytes via a richer result type.
func decodeImageURL(u string) ([]byte, error) {
	const prefix = "data:"
	if !strings.HasPrefix(u, prefix) {
		return nil, fmt.Errorf("fabricate: only data: URLs are decoded inline, got %q", u)
	}
	comma := strings.IndexByte(u, ',')
	if comma < 0 {
		return nil, fmt.Errorf("fabricate: malformed data URL")
	}
	meta, payload := u[len(prefix):comma], u[comma+1:]
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	return []byte(payload), nil
}

// preview truncates a prompt for telemetry display.
func preview(prompt string) string {
	const max = 200
	if len(prompt) <= max {
		return prompt
	}
	return prompt[:max] + "..."
}
