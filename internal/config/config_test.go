// Copyright 2026 Perl2J Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"testing"

	"github.com/perl2j/perl2j/llm"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFixAttempts != 4 {
		t.Errorf("MaxFixAttempts = %d, want 4", cfg.MaxFixAttempts)
	}
	if cfg.BackendRetries != 3 {
		t.Errorf("BackendRetries = %d, want 3", cfg.BackendRetries)
	}
	if cfg.RateLimitPerSecond != 0.5 {
		t.Errorf("RateLimitPerSecond = %g, want 0.5", cfg.RateLimitPerSecond)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.OutputDir != "output" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.Neo4jURI != "neo4j://127.0.0.1:7687" {
		t.Errorf("Neo4jURI = %q", cfg.Neo4jURI)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_FIX_ATTEMPTS", "2")
	t.Setenv("BACKEND_RETRIES", "0")
	t.Setenv("RATE_LIMIT_PER_SECOND", "5")
	t.Setenv("CONVERT_CONCURRENCY", "100")
	t.Setenv("TEMPERATURE", "0.7")
	t.Setenv("ENHANCE_FINAL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFixAttempts != 2 || cfg.BackendRetries != 0 {
		t.Errorf("attempt bounds = %d/%d", cfg.MaxFixAttempts, cfg.BackendRetries)
	}
	if cfg.RateLimitPerSecond != 5 {
		t.Errorf("RateLimitPerSecond = %g", cfg.RateLimitPerSecond)
	}
	// Concurrency is clamped to the documented cap, not rejected.
	if cfg.Concurrency != 32 {
		t.Errorf("Concurrency = %d, want 32", cfg.Concurrency)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %g", cfg.Temperature)
	}
	if !cfg.EnhanceFinal {
		t.Error("EnhanceFinal not set")
	}

	pc := cfg.PipelineConfig()
	if err := pc.Validate(); err != nil {
		t.Fatalf("pipeline config invalid: %v", err)
	}
	if pc.MaxFixAttempts != 2 || !pc.EnhanceFinal {
		t.Errorf("pipeline config mismatch: %+v", pc)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"negative fix attempts", "MAX_FIX_ATTEMPTS", "-1"},
		{"non-numeric retries", "BACKEND_RETRIES", "three"},
		{"zero rate", "RATE_LIMIT_PER_SECOND", "0"},
		{"bad bool", "ENHANCE_FINAL", "maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load accepted %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestValidateModel(t *testing.T) {
	cfg := &Config{APIType: "openai", ModelName: "gpt-4o", APIKey: "k"}
	if err := cfg.ValidateModel(); err != nil {
		t.Fatalf("valid model rejected: %v", err)
	}

	cfg = &Config{APIType: "openai", ModelName: "gpt-4o"}
	if err := cfg.ValidateModel(); err == nil {
		t.Fatal("missing API_KEY accepted")
	}

	// Ollama runs locally and needs no key.
	cfg = &Config{APIType: "ollama", ModelName: "qwen2.5"}
	if err := cfg.ValidateModel(); err != nil {
		t.Fatalf("ollama without key rejected: %v", err)
	}

	cfg = &Config{APIType: "frontier-9000", ModelName: "x"}
	if err := cfg.ValidateModel(); err == nil {
		t.Fatal("unknown API_TYPE accepted")
	}

	mc := (&Config{APIType: "claude", ModelName: "m", APIKey: "k", Temperature: 0.1, MaxTokens: 4096}).ModelConfig()
	if mc.APIType != llm.ModelTypeClaude || mc.MaxTokens != 4096 {
		t.Errorf("model config mismatch: %+v", mc)
	}
}
