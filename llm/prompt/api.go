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

package prompt

import (
	"bytes"
	_ "embed"
	"os"
	"text/template"
)

type Prompt interface {
	String() string
}

type PromptType string

const (
	PromptTypePlainText  PromptType = "text"
	PromptTypeDummy      PromptType = "dummy"
	PromptTypeGoTemplate PromptType = "go-template"
)

// FilePrompt loads a system prompt from disk, optionally rendering it as
// a Go template over Data. Used for operator-supplied prompt overrides.
type FilePrompt struct {
	Type PromptType         `json:"type"`
	Path string             `json:"path"`
	Data any                `json:"data"`
	tpl  *template.Template `json:"-"`
	file []byte             `json:"-"`
}

func (p *FilePrompt) String() string {
	switch p.Type {
	case PromptTypeGoTemplate:
		var buf = bytes.NewBuffer(nil)
		if err := p.tpl.Execute(buf, p.Data); err != nil {
			panic(err)
		}
		return buf.String()
	default:
		return string(p.file)
	}
}

// NewFilePrompt reads and prepares the prompt file. Prompts load once at
// startup, so failures panic.
func NewFilePrompt(c *FilePrompt) Prompt {
	switch c.Type {
	case PromptTypePlainText:
		bs, err := os.ReadFile(c.Path)
		if err != nil {
			panic(err)
		}
		c.file = bs
		return c
	case PromptTypeDummy:
		return TextPrompt("")
	case PromptTypeGoTemplate:
		tpl, err := template.ParseFiles(c.Path)
		if err != nil {
			panic(err)
		}
		c.tpl = tpl
		return c
	default:
		panic("unsupported prompt type " + string(c.Type))
	}
}

type TextPrompt string

func (p TextPrompt) String() string {
	return string(p)
}

func NewTextPrompt(content string) Prompt {
	return TextPrompt(content)
}

//go:embed analyzer.md
var PromptAnalyzer string

//go:embed generator.md
var PromptGenerator string

//go:embed fixer.md
var PromptFixer string

//go:embed enhancer.md
var PromptEnhancer string
