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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/internal/pipeline"
	"github.com/perl2j/perl2j/lang/java"
	"github.com/perl2j/perl2j/lang/perl"
	"github.com/perl2j/perl2j/llm"
	"github.com/perl2j/perl2j/llm/prompt"
)

// Analyzer asks the backend for a structured analysis of one unit. A
// backend failure or an unparseable reply falls back to the deterministic
// heuristic, so the pipeline never stalls at analysis; only a canceled
// run surfaces as an error.
type Analyzer struct {
	caller llm.Caller
	system prompt.Prompt
}

func NewAnalyzer(caller llm.Caller) *Analyzer {
	return &Analyzer{
		caller: caller,
		system: prompt.NewTextPrompt(prompt.PromptAnalyzer),
	}
}

var _ pipeline.Analyzer = (*Analyzer)(nil)

func (a *Analyzer) Analyze(ctx context.Context, unit *perl.SourceUnit) (*perl.CodeAnalysis, error) {
	if unit == nil || strings.TrimSpace(unit.RawText) == "" {
		identity := ""
		if unit != nil {
			identity = unit.Identity
		}
		return nil, &pipeline.MissingInputError{Identity: identity, Detail: "no source to analyze"}
	}

	reply, err := a.caller.Call(ctx, a.system, analysisPayload(unit))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		log.Info("Analysis backend failed for %s, falling back to heuristic: %v\n", unit.Identity, err)
		return perl.HeuristicAnalysis(unit), nil
	}

	analysis, err := parseAnalysis(reply)
	if err != nil {
		log.Info("Analysis reply for %s unusable, falling back to heuristic: %v\n", unit.Identity, err)
		return perl.HeuristicAnalysis(unit), nil
	}

	analysis.Normalize(unit)
	fillJavaNames(analysis)
	if err := analysis.Validate(); err != nil {
		log.Info("Analysis for %s failed validation, falling back to heuristic: %v\n", unit.Identity, err)
		return perl.HeuristicAnalysis(unit), nil
	}
	return analysis, nil
}

// analysisPayload anchors the reply on the extracted declarations so the
// backend describes the subs that exist rather than inventing them.
func analysisPayload(unit *perl.SourceUnit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source identity: %s\n", unit.Identity)
	fmt.Fprintf(&sb, "Archetype: %s\n", unit.Archetype)

	subs := unit.AllSubs()
	if len(subs) > 0 {
		sb.WriteString("Declared subroutines:\n")
		for _, sub := range subs {
			fmt.Fprintf(&sb, "- %s(%s)\n", sub.FullName, strings.Join(sub.Parameters, ", "))
		}
	}
	if uses := unit.AllUses(); len(uses) > 0 {
		sb.WriteString("Used modules:\n")
		for _, use := range uses {
			fmt.Fprintf(&sb, "- %s\n", use.ModuleName())
		}
	}

	sb.WriteString("\nPerl source:\n")
	sb.WriteString(unit.RawText)
	return sb.String()
}

func parseAnalysis(reply string) (*perl.CodeAnalysis, error) {
	doc, ok := extractJSONObject(reply)
	if !ok {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	var analysis perl.CodeAnalysis
	if err := json.Unmarshal([]byte(doc), &analysis); err != nil {
		return nil, fmt.Errorf("analysis JSON: %w", err)
	}
	return &analysis, nil
}

// fillJavaNames defaults any java_name the backend left empty.
func fillJavaNames(a *perl.CodeAnalysis) {
	for i := range a.Subroutines {
		if a.Subroutines[i].JavaName == "" {
			a.Subroutines[i].JavaName = java.MethodName(a.Subroutines[i].Name)
		}
	}
}
