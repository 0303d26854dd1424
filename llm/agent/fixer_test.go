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
	"errors"
	"strings"
	"testing"

	"github.com/perl2j/perl2j/internal/pipeline"
)

func TestFixerPayloadAndCleaning(t *testing.T) {
	caller := &fakeCaller{reply: "```java\npublic class DbReport {\n    public void run() { }\n}\n```"}
	f := NewFixer(caller)
	unit := scriptUnit()
	issues := []pipeline.Issue{
		{Kind: pipeline.IssueSyntax, Message: "unbalanced braces (+1)"},
		{Kind: pipeline.IssuePlaceholder, Message: "1 TODO marker(s) in code"},
	}

	fixed, err := f.Fix(context.Background(), unit, "public class DbReport {\n    public void run() {\n", issues)
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if strings.Contains(fixed, "```") {
		t.Errorf("fence not stripped: %q", fixed)
	}

	user := caller.lastUser(t)
	for _, want := range []string{
		"Class name to keep: DbReport",
		"1. [syntax] unbalanced braces (+1)",
		"2. [placeholder] 1 TODO marker(s) in code",
		"## Current Java code",
		"## Original Perl source",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("payload missing %q", want)
		}
	}
}

func TestFixerEmptyReply(t *testing.T) {
	f := NewFixer(&fakeCaller{reply: ""})
	if _, err := f.Fix(context.Background(), scriptUnit(), "code", nil); err == nil {
		t.Fatal("expected an error for an empty fix")
	}
}

func TestFixerBackendError(t *testing.T) {
	f := NewFixer(&fakeCaller{err: errors.New("boom")})
	_, err := f.Fix(context.Background(), scriptUnit(), "code", nil)
	if err == nil || !strings.Contains(err.Error(), "fail fix") {
		t.Fatalf("err = %v, want wrapped fix failure", err)
	}
}
