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

// Program llmdav serves a WebDAV volume whose contents are fabricated by
// an LLM on first access. See internal/davserver, internal/fabricate, and
// internal/config for the engine this command wires together; this file
// is the CLI surface alone (§6), intentionally thin.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/creachadair/command"
	"github.com/creachadair/ctrl"
	"github.com/creachadair/flax"

	"github.com/llmdav/llmdav/internal/config"
	"github.com/llmdav/llmdav/internal/davserver"
	"github.com/llmdav/llmdav/internal/davstate"
	"github.com/llmdav/llmdav/internal/fabricate"
	"github.com/llmdav/llmdav/internal/pathlock"
)

var cliFlags struct {
	Port        int    `flag:"port,Port to listen on"`
	StatePath   string `flag:"state,Path to the dav-state sidecar file"`
	Model       string `flag:"model,LLM model name for fabrication requests"`
	Instruction string `flag:"instruction,Fixed system instruction prepended to every fabrication prompt"`
	PersistRoot string `flag:"persist-root,Persistence backend: empty for in-memory, a filesystem path for disk, or scheme:address for a registered KV backend"`
	UI          bool   `flag:"ui,Log a periodic summary of recent fabrication activity"`
}

// ignoreFlags collects repeated --ignore flag occurrences; flax binds the
// scalar fields above but a repeatable flag still needs a flag.Value.
type ignoreFlags []string

func (f *ignoreFlags) String() string { return strings.Join(*f, ",") }
func (f *ignoreFlags) Set(s string) error {
	*f = append(*f, s)
	return nil
}

var ignorePatterns ignoreFlags

var root = &command.C{
	Name:  command.ProgramName(),
	Usage: "[options]",
	Help: `Serve a WebDAV volume whose missing entries are fabricated by an LLM.

With no LLM credentials configured (OPENAI_API_KEY or GEMINI_API_KEY unset),
llmdav still serves ordinary WebDAV over whatever --persist-root contains.`,

	SetFlags: func(env *command.Env, fs *flag.FlagSet) {
		flax.MustBind(fs, &cliFlags)
		fs.Var(&ignorePatterns, "ignore", "Glob pattern to hide from clients (repeatable)")
	},

	Init: func(env *command.Env) error {
		cfg, err := config.Load(config.Path())
		if err != nil {
			return err
		}
		if cliFlags.Port != 0 {
			cfg.Port = cliFlags.Port
		}
		if cliFlags.StatePath != "" {
			cfg.StatePath = cliFlags.StatePath
		}
		if cliFlags.Model != "" {
			cfg.Model = cliFlags.Model
		}
		if cliFlags.Instruction != "" {
			cfg.Instruction = cliFlags.Instruction
		}
		if cliFlags.PersistRoot != "" {
			cfg.PersistRoot = cliFlags.PersistRoot
		}
		cfg.ApplyIgnoreFlags(ignorePatterns)
		cfg.UI = cfg.UI || cliFlags.UI
		env.Config = cfg
		return nil
	},

	Run: command.Adapt(runServer),
}

func runServer(env *command.Env) error {
	cfg := env.Config.(*config.Settings)
	ctx := env.Context()

	ctrl.Run(func() error {
		adapter, err := openAdapter(ctx, cfg.PersistRoot)
		if err != nil {
			ctrl.Exitf(1, "open persistence backend: %v", err)
		}

		state, err := davstate.Open(cfg.StatePath)
		if err != nil {
			ctrl.Exitf(1, "open dav-state: %v", err)
		}

		locks := pathlock.New()
		srv := davserver.New(adapter, locks)
		srv.State = state
		srv.Cache = true
		srv.Ignore = davserver.NewIgnoreFilter(cfg.IgnoreGlobs)
		srv.Logger = log.New(os.Stderr, "", log.LstdFlags)

		if cfg.FabricationEnabled() {
			tracker := fabricate.NewTracker(slog.Default())
			transport := buildTransport(cfg)
			orch := fabricate.New(adapter, locks, transport, nil, cfg.Model, tracker)
			orch.SetInstruction(cfg.Instruction)
			srv.Hooks = newFabricationHooks(orch)
			srv.Bootstrap = func() {
				depth := 1
				if err := orch.FabricateListing(context.Background(), nil, &depth); err != nil {
					srv.Logger.Printf("bootstrap fabrication: %v", err)
				}
			}
			if cfg.UI {
				go logRecentActivity(ctx, tracker, srv.Logger)
			}
		} else {
			srv.Logger.Printf("no LLM backend configured; serving %q as a plain WebDAV volume", cfg.PersistRoot)
		}

		addr := fmt.Sprintf(":%d", cfg.Port)
		srv.Logger.Printf("llmdav listening on %s", addr)
		httpSrv := &http.Server{Addr: addr, Handler: srv}
		go func() {
			<-ctx.Done()
			httpSrv.Close()
		}()
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	command.RunOrFail(root.NewEnv(nil).SetContext(ctx), os.Args[1:])
}
