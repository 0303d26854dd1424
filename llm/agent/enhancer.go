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
)

// Enhancer polishes a draft that already passed assurance. Acceptance is
// guarded: a polish that shrinks the code below 70% of its length, drops
// more than 20% of the methods or unbalances the braces is discarded and
// the verified draft is returned unchanged.
type Enhancer struct {
	caller llm.Caller
	system prompt.Prompt
}

func NewEnhancer(caller llm.Caller) *Enhancer {
	return &Enhancer{
		caller: caller,
		system: prompt.NewTextPrompt(prompt.PromptEnhancer),
	}
}

var _ pipeline.Enhancer = (*Enhancer)(nil)

func (e *Enhancer) Enhance(ctx context.Context, unit *perl.SourceUnit, code string) (string, error) {
	reply, err := e.caller.Call(ctx, e.system, enhancePayload(unit, code))
	if err != nil {
		return "", utils.WrapError(err, "fail enhance %s", unit.Identity)
	}

	polished := CleanCodeResponse(reply)
	if reason := rejectPolish(code, polished); reason != "" {
		log.Debug("Polish of %s rejected (%s), keeping verified draft\n", unit.Identity, reason)
		return code, nil
	}
	return polished, nil
}

// rejectPolish returns a non-empty reason when the polished code must not
// replace the verified draft.
func rejectPolish(original, polished string) string {
	if polished == "" {
		return "empty reply"
	}
	if 10*len(polished) < 7*len(original) {
		return fmt.Sprintf("shrunk to %d of %d chars", len(polished), len(original))
	}
	origMethods := java.MethodCount(original)
	if newMethods := java.MethodCount(polished); 10*newMethods < 8*origMethods {
		return fmt.Sprintf("methods dropped from %d to %d", origMethods, newMethods)
	}
	if !java.BracesBalanced(polished) {
		return "unbalanced braces"
	}
	return ""
}

func enhancePayload(unit *perl.SourceUnit, code string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Class name to keep: %s\n", java.ClassNameFor(unit.Identity))
	fmt.Fprintf(&sb, "Source identity: %s\n", unit.Identity)
	sb.WriteString("\n## Verified Java code\n")
	sb.WriteString(code)
	return sb.String()
}
