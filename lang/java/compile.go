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
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/internal/pipeline"
)

const compileTimeout = 30 * time.Second

// CompileChecker is the javac deep check. It is only constructed when a
// compiler is actually on the path, so a missing JDK disables the pass
// instead of failing every record.
type CompileChecker struct {
	javac string
}

func NewCompileChecker(javacPath string) (*CompileChecker, error) {
	if javacPath == "" {
		javacPath = "javac"
	}
	resolved, err := exec.LookPath(javacPath)
	if err != nil {
		return nil, fmt.Errorf("java compiler %q not found: %w", javacPath, err)
	}
	return &CompileChecker{javac: resolved}, nil
}

func (c *CompileChecker) Name() string { return "javac" }

// Check compiles the draft in a scratch directory and maps compiler
// errors to syntax issues. Environment failures are logged and produce no
// findings; the code is not to blame for a broken scratch dir.
func (c *CompileChecker) Check(code string) []pipeline.Issue {
	dir, err := os.MkdirTemp("", "perl2j-javac-")
	if err != nil {
		log.Error("javac check skipped: %v\n", err)
		return nil
	}
	defer os.RemoveAll(dir)

	className := ClassNameFromCode(code)
	if className == "" {
		className = "Main"
	}
	src := filepath.Join(dir, className+".java")
	if err := os.WriteFile(src, []byte(code), 0644); err != nil {
		log.Error("javac check skipped: %v\n", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), compileTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, c.javac, "-d", dir, src)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return []pipeline.Issue{{Kind: pipeline.IssueSyntax, Message: "javac timed out compiling the draft"}}
	}
	return parseJavacErrors(string(out))
}

var javacErrRe = regexp.MustCompile(`\.java:(\d+):\s*error:\s*(.+)`)

func parseJavacErrors(out string) []pipeline.Issue {
	var issues []pipeline.Issue
	for _, line := range strings.Split(out, "\n") {
		m := javacErrRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		issues = append(issues, pipeline.Issue{
			Kind:    pipeline.IssueSyntax,
			Message: fmt.Sprintf("line %s: %s", m[1], strings.TrimSpace(m[2])),
		})
		if len(issues) >= 2*maxSyntaxFindings {
			break
		}
	}
	if len(issues) == 0 {
		msg := "javac rejected the draft"
		for _, line := range strings.Split(out, "\n") {
			if strings.TrimSpace(line) != "" {
				msg = "javac: " + strings.TrimSpace(line)
				break
			}
		}
		issues = append(issues, pipeline.Issue{Kind: pipeline.IssueSyntax, Message: msg})
	}
	return issues
}
