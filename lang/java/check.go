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

// Package java holds the structural assurance checks and naming rules for
// generated Java code. The checks are deterministic and local: the same
// draft always yields the same findings, which keeps the fix loop honest.
package java

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/perl2j/perl2j/internal/pipeline"
)

// minCodeChars is the floor below which a draft cannot be a complete class.
const minCodeChars = 50

// DeepCheck is an optional assurance pass plugged in behind the heuristic
// checks, e.g. a tree-sitter syntax walk or an external javac run. A deep
// check reports findings about the code, never environment errors.
type DeepCheck interface {
	Name() string
	Check(code string) []pipeline.Issue
}

// Checker implements pipeline.Checker. The zero value runs the heuristic
// checks only; deep checks are added at construction.
type Checker struct {
	deep []DeepCheck
}

func NewChecker(deep ...DeepCheck) *Checker {
	return &Checker{deep: deep}
}

// Check returns every structural finding for a draft. Malformed input is
// reported as issues, never as an error, so the controller can always
// route the result through the fix loop.
func (c *Checker) Check(code string) []pipeline.Issue {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return []pipeline.Issue{{Kind: pipeline.IssueCompleteness, Message: "no code to check"}}
	}

	issues := structuralIssues(trimmed)
	for _, d := range c.deep {
		issues = append(issues, d.Check(code)...)
	}
	return issues
}

// Score grades a draft 1..10 by deducting per finding. A passing draft
// scores 10; syntax problems weigh heaviest.
func (c *Checker) Score(code string) int {
	score := 10
	for _, issue := range c.Check(code) {
		switch issue.Kind {
		case pipeline.IssueSyntax:
			score -= 3
		case pipeline.IssueStructure, pipeline.IssueCompleteness:
			score -= 2
		case pipeline.IssuePlaceholder:
			score -= 1
		}
	}
	if score < 1 {
		score = 1
	}
	return score
}

var typeDeclRe = regexp.MustCompile(`(?m)\b(?:class|interface|enum|record)\s+[A-Za-z]\w*`)

func structuralIssues(code string) []pipeline.Issue {
	var issues []pipeline.Issue

	if len(code) < minCodeChars {
		issues = append(issues, pipeline.Issue{
			Kind:    pipeline.IssueCompleteness,
			Message: fmt.Sprintf("code is %d chars, too short for a complete class", len(code)),
		})
	}
	if !typeDeclRe.MatchString(code) {
		issues = append(issues, pipeline.Issue{
			Kind:    pipeline.IssueStructure,
			Message: "no class, interface or enum declaration found",
		})
	}
	if strings.Contains(code, "```") {
		issues = append(issues, pipeline.Issue{
			Kind:    pipeline.IssueStructure,
			Message: "markdown fence left in code",
		})
	}

	braces, parens := scanBalance(code)
	if braces != 0 {
		issues = append(issues, pipeline.Issue{
			Kind:    pipeline.IssueSyntax,
			Message: fmt.Sprintf("unbalanced braces (%+d)", braces),
		})
	}
	if parens != 0 {
		issues = append(issues, pipeline.Issue{
			Kind:    pipeline.IssueSyntax,
			Message: fmt.Sprintf("unbalanced parentheses (%+d)", parens),
		})
	}

	issues = append(issues, placeholderIssues(code)...)
	return issues
}

// placeholder markers a generation backend tends to leave behind. Matched
// case-sensitively for the comment tags, case-insensitively for prose.
var (
	placeholderTags    = []string{"TODO", "FIXME"}
	placeholderPhrases = []string{
		"not implemented",
		"placeholder",
		"implement this",
		"your code here",
		"rest of the code",
	}
)

func placeholderIssues(code string) []pipeline.Issue {
	var issues []pipeline.Issue
	lower := strings.ToLower(code)

	for _, tag := range placeholderTags {
		if n := strings.Count(code, tag); n > 0 {
			issues = append(issues, pipeline.Issue{
				Kind:    pipeline.IssuePlaceholder,
				Message: fmt.Sprintf("%d %s marker(s) in code", n, tag),
			})
		}
	}
	for _, phrase := range placeholderPhrases {
		if strings.Contains(lower, phrase) {
			issues = append(issues, pipeline.Issue{
				Kind:    pipeline.IssuePlaceholder,
				Message: fmt.Sprintf("placeholder text %q in code", phrase),
			})
		}
	}
	if strings.Contains(code, "throw new UnsupportedOperationException") {
		issues = append(issues, pipeline.Issue{
			Kind:    pipeline.IssuePlaceholder,
			Message: "stub method throwing UnsupportedOperationException",
		})
	}
	return issues
}

// scanBalance counts brace and parenthesis nesting outside string, char
// and comment contexts. Positive means unclosed opens, negative means
// extra closes.
func scanBalance(code string) (braces, parens int) {
	const (
		stNormal = iota
		stLineComment
		stBlockComment
		stString
		stChar
	)
	state := stNormal
	escaped := false

	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch state {
		case stNormal:
			switch ch {
			case '{':
				braces++
			case '}':
				braces--
			case '(':
				parens++
			case ')':
				parens--
			case '"':
				state = stString
			case '\'':
				state = stChar
			case '/':
				if i+1 < len(code) {
					switch code[i+1] {
					case '/':
						state = stLineComment
						i++
					case '*':
						state = stBlockComment
						i++
					}
				}
			}
		case stLineComment:
			if ch == '\n' {
				state = stNormal
			}
		case stBlockComment:
			if ch == '*' && i+1 < len(code) && code[i+1] == '/' {
				state = stNormal
				i++
			}
		case stString:
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				state = stNormal
			}
		case stChar:
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '\'' {
				state = stNormal
			}
		}
	}
	return braces, parens
}

// BracesBalanced reports whether every brace opened outside strings and
// comments is closed. The enhancement acceptance guard uses it.
func BracesBalanced(code string) bool {
	braces, _ := scanBalance(code)
	return braces == 0
}

var methodDeclRe = regexp.MustCompile(`(?:public|protected|private)\s+(?:static\s+)?(?:final\s+)?[\w<>\[\], ?]+\s+\w+\s*\(`)

// MethodCount counts declared methods. Constructors are not counted: a
// declaration needs both a return type and a name.
func MethodCount(code string) int {
	return len(methodDeclRe.FindAllString(code, -1))
}
