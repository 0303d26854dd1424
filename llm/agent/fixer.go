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

	"github.com/perl2j/perl2j/internal/pipeline"
	"github.com/perl2j/perl2j/internal/utils"
	"github.com/perl2j/perl2j/lang/java"
	"github.com/perl2j/perl2j/lang/perl"
	"github.com/perl2j/perl2j/llm"
	"github.com/perl2j/perl2j/llm/prompt"
)

// Fixer asks the backend to repair a draft against the current assurance
// findings. One call per fix attempt; the attempt accounting stays in the
// controller.
type Fixer struct {
	caller llm.Caller
	system prompt.Prompt
}

func NewFixer(caller llm.Caller) *Fixer {
	return &Fixer{
		caller: caller,
		system: prompt.NewTextPrompt(prompt.PromptFixer),
	}
}

var _ pipeline.Fixer = (*Fixer)(nil)

func (f *Fixer) Fix(ctx context.Context, unit *perl.SourceUnit, code string, issues []pipeline.Issue) (string, error) {
	reply, err := f.caller.Call(ctx, f.system, fixPayload(unit, code, issues))
	if err != nil {
		return "", utils.WrapError(err, "fail fix %s", unit.Identity)
	}

	fixed := CleanCodeResponse(reply)
	if fixed == "" {
		return "", fmt.Errorf("fix backend returned no code for %s", unit.Identity)
	}
	return fixed, nil
}

func fixPayload(unit *perl.SourceUnit, code string, issues []pipeline.Issue) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Class name to keep: %s\n", java.ClassNameFor(unit.Identity))
	fmt.Fprintf(&sb, "Source identity: %s\n", unit.Identity)

	sb.WriteString("\n## Findings to fix\n")
	for i, issue := range issues {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, issue.Kind, issue.Message)
	}

	sb.WriteString("\n## Current Java code\n")
	sb.WriteString(code)

	sb.WriteString("\n\n## Original Perl source (reference only)\n")
	sb.WriteString(unit.RawText)
	return sb.String()
}
