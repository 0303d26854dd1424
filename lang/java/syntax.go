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

package java

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	tsjava "github.com/smacker/go-tree-sitter/java"

	"github.com/perl2j/perl2j/internal/pipeline"
)

// maxSyntaxFindings caps findings per pass; a draft with dozens of parse
// errors fixes the same root cause either way.
const maxSyntaxFindings = 5

// SyntaxChecker is the tree-sitter deep check: it parses a draft with the
// Java grammar and reports ERROR and missing nodes with line positions.
// Safe for concurrent use; the underlying parser is not, so calls
// serialize on a mutex.
type SyntaxChecker struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

func NewSyntaxChecker() *SyntaxChecker {
	p := sitter.NewParser()
	p.SetLanguage(tsjava.GetLanguage())
	return &SyntaxChecker{parser: p}
}

func (s *SyntaxChecker) Name() string { return "tree-sitter" }

// Close releases the parser.
func (s *SyntaxChecker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parser.Close()
}

func (s *SyntaxChecker) Check(code string) []pipeline.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := []byte(code)
	tree, err := s.parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return []pipeline.Issue{{Kind: pipeline.IssueSyntax, Message: "java parse failed: " + err.Error()}}
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	var issues []pipeline.Issue
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if len(issues) >= maxSyntaxFindings {
			return
		}
		if n.IsMissing() {
			issues = append(issues, pipeline.Issue{
				Kind:    pipeline.IssueSyntax,
				Message: fmt.Sprintf("line %d: missing %q", n.StartPoint().Row+1, n.Type()),
			})
			return
		}
		if n.Type() == "ERROR" {
			issues = append(issues, pipeline.Issue{
				Kind:    pipeline.IssueSyntax,
				Message: fmt.Sprintf("line %d: invalid syntax near %q", n.StartPoint().Row+1, snippet(n.Content(src))),
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	if len(issues) == 0 {
		issues = append(issues, pipeline.Issue{
			Kind:    pipeline.IssueSyntax,
			Message: "parse tree contains errors",
		})
	}
	return issues
}

// snippet compresses a node's text to one short line for an issue message.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}
