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

// Package agent implements the backend collaborators of the conversion
// pipeline: analyzer, generator, fixer and enhancer. Each one is a single
// system+user exchange through an llm.Caller; retry, rate limiting and
// timeouts live in the caller, response hygiene lives here.
package agent

import "strings"

// codeStarts are line prefixes that mark the beginning of Java source in
// an unfenced reply.
var codeStarts = []string{
	"package ", "import ",
	"public ", "final ", "abstract ",
	"class ", "interface ", "enum ",
	"@", "//", "/*",
}

// CleanCodeResponse strips the chat residue backends wrap around code:
// markdown fences, leading prose, trailing commentary. A fenced reply
// keeps only the first fenced block; an unfenced one is cut down to the
// first code-looking line through the last closing brace line.
func CleanCodeResponse(response string) string {
	response = strings.TrimSpace(response)
	if response == "" {
		return ""
	}

	if start := strings.Index(response, "```"); start >= 0 {
		rest := response[start:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
			if end := strings.Index(rest, "```"); end >= 0 {
				rest = rest[:end]
			}
			return strings.TrimSpace(rest)
		}
		// Fence without a line break carries no block; fall through and
		// treat the reply as unfenced text.
		response = strings.ReplaceAll(response, "```", "")
	}

	lines := strings.Split(response, "\n")

	first := 0
	for i, line := range lines {
		if looksLikeCode(strings.TrimSpace(line)) {
			first = i
			break
		}
	}

	last := len(lines) - 1
	for i := len(lines) - 1; i >= first; i-- {
		if strings.TrimSpace(lines[i]) == "}" {
			last = i
			break
		}
	}

	return strings.TrimSpace(strings.Join(lines[first:last+1], "\n"))
}

func looksLikeCode(line string) bool {
	if line == "" {
		return false
	}
	for _, p := range codeStarts {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// extractJSONObject returns the outermost {...} span of a reply. Backends
// asked for strict JSON still tend to add prose around it.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
