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

// Package config loads the process configuration from environment
// variables, with an optional .env file picked up automatically.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/perl2j/perl2j/internal/pipeline"
	"github.com/perl2j/perl2j/llm"
)

// Config is everything the conversion binary reads from the environment.
// Flags may override individual fields after Load.
type Config struct {
	// Pipeline control surface.
	MaxFixAttempts     int
	BackendRetries     int
	RateLimitPerSecond float64
	Concurrency        int
	EnhanceFinal       bool

	// Generation backend.
	APIType     string
	APIKey      string
	ModelName   string
	BaseURL     string
	Temperature float32
	MaxTokens   int

	// Graph store. Only used when the graph-backed source is selected.
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Output and collaborators.
	OutputDir  string
	RecipesDir string
	JavacPath  string
}

// Load reads the environment (after a best-effort .env autoload) and
// validates ranges. Model credentials are not required here: only the
// convert action needs them, and it checks separately.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MaxFixAttempts:     4,
		BackendRetries:     3,
		RateLimitPerSecond: 0.5,
		Concurrency:        4,
		Temperature:        0.1,
		MaxTokens:          4096,
		APIType:            os.Getenv("API_TYPE"),
		APIKey:             os.Getenv("API_KEY"),
		ModelName:          os.Getenv("MODEL_NAME"),
		BaseURL:            os.Getenv("BASE_URL"),
		Neo4jURI:           getenvDefault("NEO4J_URI", "neo4j://127.0.0.1:7687"),
		Neo4jUser:          getenvDefault("NEO4J_USER", "neo4j"),
		Neo4jPassword:      os.Getenv("NEO4J_PASSWORD"),
		Neo4jDatabase:      os.Getenv("NEO4J_DATABASE"),
		OutputDir:          getenvDefault("OUTPUT_DIR", "output"),
		RecipesDir:         os.Getenv("RECIPES_DIR"),
		JavacPath:          os.Getenv("JAVAC_PATH"),
	}

	var err error
	if cfg.MaxFixAttempts, err = intVar("MAX_FIX_ATTEMPTS", cfg.MaxFixAttempts); err != nil {
		return nil, err
	}
	if cfg.BackendRetries, err = intVar("BACKEND_RETRIES", cfg.BackendRetries); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerSecond, err = floatVar("RATE_LIMIT_PER_SECOND", cfg.RateLimitPerSecond); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = intVar("CONVERT_CONCURRENCY", cfg.Concurrency); err != nil {
		return nil, err
	}
	if cfg.MaxTokens, err = intVar("MAX_TOKENS", cfg.MaxTokens); err != nil {
		return nil, err
	}
	if t, err := floatVar("TEMPERATURE", float64(cfg.Temperature)); err != nil {
		return nil, err
	} else {
		cfg.Temperature = float32(t)
	}
	if v := os.Getenv("ENHANCE_FINAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ENHANCE_FINAL %q: %v", v, err)
		}
		cfg.EnhanceFinal = b
	}

	// The controller re-validates, but rejecting early gives the message
	// in terms of the env names the user actually set.
	if cfg.MaxFixAttempts < 0 {
		return nil, fmt.Errorf("MAX_FIX_ATTEMPTS must be >= 0, got %d", cfg.MaxFixAttempts)
	}
	if cfg.BackendRetries < 0 {
		return nil, fmt.Errorf("BACKEND_RETRIES must be >= 0, got %d", cfg.BackendRetries)
	}
	if cfg.RateLimitPerSecond <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_SECOND must be > 0, got %g", cfg.RateLimitPerSecond)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Concurrency > 32 {
		cfg.Concurrency = 32
	}
	return cfg, nil
}

// PipelineConfig maps the env surface onto the controller config.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		MaxFixAttempts:     c.MaxFixAttempts,
		BackendRetryCount:  c.BackendRetries,
		RateLimitPerSecond: c.RateLimitPerSecond,
		BatchConcurrency:   c.Concurrency,
		EnhanceFinal:       c.EnhanceFinal,
	}
}

// ModelConfig maps the env surface onto the backend client config. The
// client retry count tracks BACKEND_RETRIES so one knob bounds both.
func (c *Config) ModelConfig() llm.ModelConfig {
	temp := c.Temperature
	return llm.ModelConfig{
		APIType:     llm.NewModelType(c.APIType),
		APIKey:      c.APIKey,
		ModelName:   c.ModelName,
		BaseURL:     c.BaseURL,
		Temperature: &temp,
		MaxTokens:   c.MaxTokens,
		Retries:     c.BackendRetries,
	}
}

// ValidateModel checks the credentials the convert action needs.
func (c *Config) ValidateModel() error {
	if c.APIType == "" {
		return fmt.Errorf("API_TYPE is required (openai, claude, ark, qwen or ollama)")
	}
	if llm.NewModelType(c.APIType) == llm.ModelTypeUnknown {
		return fmt.Errorf("unknown API_TYPE %q", c.APIType)
	}
	if c.ModelName == "" {
		return fmt.Errorf("MODEL_NAME is required")
	}
	if c.APIKey == "" && llm.NewModelType(c.APIType) != llm.ModelTypeOllama {
		return fmt.Errorf("API_KEY is required for %s", c.APIType)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intVar(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", key, v, err)
	}
	return n, nil
}

func floatVar(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", key, v, err)
	}
	return f, nil
}
