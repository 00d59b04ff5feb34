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

// Package config defines the settings shared by the llmdav command line
// tool: a YAML file cascaded with environment variables and flag
// overrides, the same layering ffs/config uses for its tool settings.
package config

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file path used if not overridden by the
// LLMDAV_CONFIG environment variable.
const DefaultPath = "$HOME/.config/llmdav/config.yml"

// Path returns the effective configuration file path.
func Path() string {
	if cf, ok := os.LookupEnv("LLMDAV_CONFIG"); ok && cf != "" {
		return cf
	}
	return os.ExpandEnv(DefaultPath)
}

// Settings is the fully-resolved configuration for one server instance.
// Fields are populated first from a YAML file (if present), then from
// environment variables, then overridden by command-line flags — each
// later layer replaces a value only where it supplies one.
type Settings struct {
	Port          int      `yaml:"port"`
	StatePath     string   `yaml:"state"`
	Model         string   `yaml:"model"`
	Instruction   string   `yaml:"instruction"`
	PersistRoot   string   `yaml:"persist-root"`
	IgnoreGlobs   []string `yaml:"ignore"`
	UI            bool     `yaml:"ui"`
	OpenAIAPIKey  string   `yaml:"-"`
	OpenAIModel   string   `yaml:"-"`
	GeminiAPIKey  string   `yaml:"-"`
}

// Load reads path if it exists (a missing file is not an error), then
// layers in the environment variables documented in §6 of the fabrication
// contract: OPENAI_API_KEY, OPENAI_MODEL, GEMINI_API_KEY.
func Load(path string) (*Settings, error) {
	s := &Settings{Port: 8080, StatePath: "dav-state", Model: "gpt-4o-mini"}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	s.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if m := os.Getenv("OPENAI_MODEL"); m != "" {
		s.OpenAIModel = m
	} else {
		s.OpenAIModel = s.Model
	}
	s.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	return s, nil
}

// FabricationEnabled reports whether any LLM backend has credentials,
// matching the spec's "absent env var disables the corresponding backend"
// rule. A server with no backend enabled still serves ordinary WebDAV
// over whatever the persistence backend already contains.
func (s *Settings) FabricationEnabled() bool {
	return s.OpenAIAPIKey != "" || s.GeminiAPIKey != ""
}

// ApplyIgnoreFlags merges repeatable --ignore flag values (possibly
// comma-joined by the flag parser) into the settings' glob list.
func (s *Settings) ApplyIgnoreFlags(raw []string) {
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				s.IgnoreGlobs = append(s.IgnoreGlobs, part)
			}
		}
	}
}
