/**
 * Copyright 2026 Perl2J Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package recipe

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Knetic/govaluate"
	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// LoadFromFile reads one recipe file. The recipe name must match the file
// stem so a directory listing tells you what is in it.
func (l *Loader) LoadFromFile(path string, source RecipeSource) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file %s: %w", path, err)
	}
	return l.Parse(data, source, path)
}

// Parse parses frontmatter plus markdown body into a Recipe and compiles
// its match expression.
func (l *Loader) Parse(data []byte, source RecipeSource, path string) (*Recipe, error) {
	frontmatter, body, err := extractFrontmatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", path, err)
	}

	var meta struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Match       string   `yaml:"match"`
		Temperature *float32 `yaml:"temperature"`
		MaxTokens   int      `yaml:"max_tokens"`
	}
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return nil, fmt.Errorf("recipe %s: parse frontmatter: %w", path, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := validateName(meta.Name, stem); err != nil {
		return nil, fmt.Errorf("recipe %s: %w", path, err)
	}
	if err := validateDescription(meta.Description); err != nil {
		return nil, fmt.Errorf("recipe %s: %w", path, err)
	}

	r := &Recipe{
		Name:         meta.Name,
		Description:  meta.Description,
		Match:        meta.Match,
		Temperature:  meta.Temperature,
		MaxTokens:    meta.MaxTokens,
		Instructions: strings.TrimSpace(body),
		Source:       source,
		Path:         path,
	}
	if r.Instructions == "" {
		return nil, fmt.Errorf("recipe %s: empty instructions", path)
	}
	if meta.Match != "" {
		expr, err := govaluate.NewEvaluableExpression(meta.Match)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: compile match %q: %w", path, meta.Match, err)
		}
		r.expr = expr
	}
	return r, nil
}

// LoadAllFromDir loads every .md recipe under dir. A broken recipe file
// fails the whole load: silently dropping one would change which units
// get which instructions.
func (l *Loader) LoadAllFromDir(dir string, source RecipeSource) ([]*Recipe, error) {
	var recipes []*Recipe
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		r, err := l.LoadFromFile(path, source)
		if err != nil {
			return err
		}
		recipes = append(recipes, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// extractFrontmatter splits "---\nyaml\n---\nbody".
func extractFrontmatter(content string) (frontmatter, body string, err error) {
	content = strings.TrimSpace(content)
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != frontMatterDelimiter {
		return "", "", fmt.Errorf("no frontmatter (expected '---' on the first line)")
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelimiter {
			frontmatter = strings.Join(lines[1:i], "\n")
			body = strings.Join(lines[i+1:], "\n")
			return strings.TrimSpace(frontmatter), strings.TrimSpace(body), nil
		}
	}
	return "", "", fmt.Errorf("frontmatter not closed")
}

// validateName enforces 1-64 chars of lowercase, digits and single
// hyphens, matching the file stem.
func validateName(name, stem string) error {
	if len(name) == 0 {
		return fmt.Errorf("recipe name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("recipe name must be 1-64 characters, got %d", len(name))
	}
	for _, r := range name {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '-' {
			return fmt.Errorf("recipe name can only contain lowercase letters, numbers, and hyphens, got %q", r)
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("recipe name cannot start or end with a hyphen")
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("recipe name cannot contain consecutive hyphens")
	}
	if name != stem {
		return fmt.Errorf("recipe name %q must match file name %q", name, stem)
	}
	return nil
}

func validateDescription(desc string) error {
	if len(desc) == 0 {
		return fmt.Errorf("recipe description cannot be empty")
	}
	if len(desc) > 1024 {
		return fmt.Errorf("recipe description must be 1-1024 characters, got %d", len(desc))
	}
	return nil
}
