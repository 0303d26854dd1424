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

package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestWrapError(t *testing.T) {
	base := errors.New("boom")
	wrapped := WrapError(base, "step %s failed", "generate")
	if wrapped == nil {
		t.Fatal("WrapError returned nil for non-nil cause")
	}
	if !strings.Contains(wrapped.Error(), "step generate failed") {
		t.Errorf("missing annotation: %v", wrapped)
	}
	if errors.Cause(wrapped) != base {
		t.Errorf("cause lost: %v", errors.Cause(wrapped))
	}
	if WrapError(nil, "ignored") != nil {
		t.Error("WrapError(nil) should be nil")
	}
}

func TestMarshalJSONIndent(t *testing.T) {
	out, err := MarshalJSONIndent(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("MarshalJSONIndent: %v", err)
	}
	if !strings.Contains(out, "\"a\": 1") {
		t.Errorf("unexpected output: %s", out)
	}
	if got := MarshalJSONIndentNoError(map[string]int{"b": 2}); !strings.Contains(got, "\"b\": 2") {
		t.Errorf("unexpected output: %s", got)
	}
}

func TestMustWriteFileCreatesDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "out.json")
	if err := MustWriteFile(path, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("MustWriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("content mismatch: %s", data)
	}
}
