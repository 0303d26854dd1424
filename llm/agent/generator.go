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

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/internal/pipeline"
	"github.com/perl2j/perl2j/internal/utils"
	"github.com/perl2j/perl2j/lang/java"
	"github.com/perl2j/perl2j/lang/perl"
	"github.com/perl2j/perl2j/llm"
	"github.com/perl2j/perl2j/llm/prompt"
	"github.com/perl2j/perl2j/llm/recipe"
)

// Generator produces the first Java draft for a unit. A matching recipe
// appends its instructions to the system prompt and may override the
// sampling settings for this unit.
type Generator struct {
	caller  llm.Caller
	recipes *recipe.Registry
}

// NewGenerator builds a generator. recipes may be nil; no recipe is
// applied then.
func NewGenerator(caller llm.Caller, recipes *recipe.Registry) *Generator {
	return &Generator{caller: caller, recipes: recipes}
}

var _ pipeline.Generator = (*Generator)(nil)

func (g *Generator) Generate(ctx context.Context, unit *perl.SourceUnit, analysis *perl.CodeAnalysis) (string, error) {
	system := prompt.PromptGenerator
	var opts []llm.CallOption
	if g.recipes != nil {
		if r := g.recipes.Match(unit); r != nil {
			log.Debug("Recipe %s applied to %s\n", r.Name, unit.Identity)
			system = system + "\n\n## Conversion recipe: " + r.Name + "\n\n" + r.Instructions
			if r.Temperature != nil {
				opts = append(opts, llm.WithTemperature(*r.Temperature))
			}
			if r.MaxTokens > 0 {
				opts = append(opts, llm.WithMaxTokens(r.MaxTokens))
			}
		}
	}

	reply, err := g.caller.Call(ctx, prompt.NewTextPrompt(system), generationPayload(unit, analysis), opts...)
	if err != nil {
		return "", utils.WrapError(err, "fail generate %s", unit.Identity)
	}

	code := CleanCodeResponse(reply)
	if code == "" {
		return "", fmt.Errorf("generation backend returned no code for %s", unit.Identity)
	}
	return code, nil
}

func generationPayload(unit *perl.SourceUnit, analysis *perl.CodeAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Target class name: %s\n", java.ClassNameFor(unit.Identity))
	fmt.Fprintf(&sb, "Source identity: %s\n", unit.Identity)
	fmt.Fprintf(&sb, "Archetype: %s\n", unit.Archetype)

	if analysis != nil {
		sb.WriteString("\n## Analysis\n")
		sb.WriteString(utils.MarshalJSONIndentNoError(analysis))
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Perl source\n")
	sb.WriteString(unit.RawText)
	return sb.String()
}
