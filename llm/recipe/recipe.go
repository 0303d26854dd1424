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

// Package recipe loads conversion recipes: markdown files with a YAML
// frontmatter whose instructions are appended to the generation prompt
// for the source units they match.
package recipe

import (
	"fmt"

	"github.com/Knetic/govaluate"
	"github.com/perl2j/perl2j/lang/perl"
)

type Recipe struct {
	Name        string
	Description string
	// Match is an expression over unit facts, e.g.
	// "uses_database && archetype == 'module'". Empty matches every unit.
	Match        string
	Temperature  *float32
	MaxTokens    int
	Instructions string

	Source RecipeSource
	Path   string

	expr *govaluate.EvaluableExpression
}

type RecipeSource int

const (
	SourceEmbedded RecipeSource = iota
	SourceLocal
)

func (s RecipeSource) String() string {
	switch s {
	case SourceEmbedded:
		return "embedded"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Matches evaluates the recipe's match expression against unit facts.
func (r *Recipe) Matches(facts map[string]interface{}) (bool, error) {
	if r.expr == nil {
		return true, nil
	}
	result, err := r.expr.Evaluate(facts)
	if err != nil {
		return false, fmt.Errorf("recipe %s: evaluate match: %w", r.Name, err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("recipe %s: match expression must yield a boolean, got %T", r.Name, result)
	}
	return matched, nil
}

// UnitFacts flattens a source unit into the parameters a match expression
// can reference. Numbers are float64 because that is what the expression
// engine computes with.
func UnitFacts(unit *perl.SourceUnit) map[string]interface{} {
	return map[string]interface{}{
		"identity":        unit.Identity,
		"archetype":       string(unit.Archetype),
		"sub_count":       float64(unit.SubCount()),
		"package_count":   float64(len(unit.Packages)),
		"object_oriented": unit.HasObjectOrientation(),
		"uses_database":   unit.UsesModule("DBI"),
	}
}
