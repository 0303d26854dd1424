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

package perl

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/internal/utils"
)

// The extractor is a pattern scanner, not a grammar parser: it recognizes
// package boundaries, use statements and brace-delimited subs, and treats
// everything else as executable script code.
var (
	packageRe   = regexp.MustCompile(`^\s*package\s+([^;]+);?`)
	useRe       = regexp.MustCompile(`^\s*(use|no)\s+([^;]+);?`)
	subNameRe   = regexp.MustCompile(`sub\s+([^\s{]+)`)
	subParamsRe = regexp.MustCompile(`my\s*\(([^)]+)\)\s*=\s*@_`)
)

// ParseOptions control directory scanning and parallelism.
type ParseOptions struct {
	Recursive   bool
	Concurrency int
}

// ParseFailure records a file the extractor could not read.
type ParseFailure struct {
	File string `json:"file"`
	Err  string `json:"err"`
}

// CollectFiles returns the Perl sources under path. A file path is
// returned as-is when it carries a Perl extension.
func CollectFiles(path string, recursive bool) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, utils.WrapError(err, "fail stat %s", path)
	}
	if !info.IsDir() {
		if isPerlFile(path) {
			return []string{path}, nil
		}
		return nil, nil
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isPerlFile(p) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, utils.WrapError(err, "fail walk %s", path)
		}
		return files, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, utils.WrapError(err, "fail read dir %s", path)
	}
	for _, e := range entries {
		if !e.IsDir() && isPerlFile(e.Name()) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

func isPerlFile(path string) bool {
	switch filepath.Ext(path) {
	case ".pl", ".pm", ".perl":
		return true
	}
	return false
}

// ParseFile reads and extracts a single source file.
func ParseFile(path string) (*SourceUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.WrapError(err, "fail read %s", path)
	}
	return Parse(string(data), filepath.ToSlash(path)), nil
}

// Parse extracts a source unit from content. Identity is recorded verbatim
// and becomes the record identity downstream. Content that yields no
// declarations still produces a unit; the conversion pipeline decides its
// fate.
func Parse(content string, identity string) *SourceUnit {
	unit := &SourceUnit{
		Identity: identity,
		RawText:  content,
	}

	lines := strings.Split(content, "\n")
	for _, block := range splitBlocks(lines) {
		uses, subs, exec := parseBlockContent(block.lines, block.pkg)
		if block.pkg != "" {
			pkg := PackageDecl{
				Name:          block.pkg,
				UseStatements: uses,
				Subs:          subs,
			}
			if hasCode(exec) {
				pkg.Script = &ScriptBlock{Body: strings.TrimSpace(strings.Join(exec, "\n"))}
			}
			unit.Packages = append(unit.Packages, pkg)
			continue
		}
		unit.UseStatements = append(unit.UseStatements, uses...)
		if hasCode(exec) || len(subs) > 0 {
			unit.Globals = &GlobalScope{
				Body: strings.TrimSpace(strings.Join(exec, "\n")),
				Subs: subs,
			}
		}
	}

	unit.Archetype = detectArchetype(identity, unit)
	return unit
}

type rawBlock struct {
	pkg   string
	lines []string
}

// splitBlocks separates a file into the leading global scope and one block
// per package declaration. Shebang lines are dropped.
func splitBlocks(lines []string) []rawBlock {
	var blocks []rawBlock
	current := rawBlock{}
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "#!") {
			continue
		}
		if m := packageRe.FindStringSubmatch(stripped); m != nil {
			if hasContent(current.lines) {
				blocks = append(blocks, current)
			}
			current = rawBlock{pkg: strings.TrimSpace(m[1])}
			continue
		}
		current.lines = append(current.lines, line)
	}
	if hasContent(current.lines) {
		blocks = append(blocks, current)
	}
	return blocks
}

// parseBlockContent splits block lines into use statements, sub definitions
// and remaining executable lines. Subs are captured by brace counting from
// the `sub name {` line.
func parseBlockContent(lines []string, pkgName string) ([]UseStatement, []SubDecl, []string) {
	var uses []UseStatement
	var subs []SubDecl
	var exec []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		stripped := strings.TrimSpace(line)

		if m := useRe.FindStringSubmatch(stripped); m != nil {
			uses = append(uses, UseStatement{
				Module:  strings.TrimSpace(m[2]),
				Negated: m[1] == "no",
			})
			continue
		}

		if strings.HasPrefix(stripped, "sub ") && strings.Contains(line, "{") {
			if m := subNameRe.FindStringSubmatch(stripped); m != nil {
				start := i
				braces := strings.Count(line, "{") - strings.Count(line, "}")
				for braces > 0 && i+1 < len(lines) {
					i++
					braces += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
				}
				subs = append(subs, makeSub(m[1], lines[start:i+1], pkgName))
				continue
			}
		}

		exec = append(exec, line)
	}
	return uses, subs, exec
}

func makeSub(name string, lines []string, pkgName string) SubDecl {
	full := strings.Join(lines, "\n")
	body := ""
	if open := strings.Index(full, "{"); open >= 0 {
		if close := strings.LastIndex(full, "}"); close > open {
			body = strings.TrimSpace(full[open+1 : close])
		}
	}

	var params []string
	if m := subParamsRe.FindStringSubmatch(body); m != nil {
		for _, p := range strings.Split(m[1], ",") {
			params = append(params, strings.TrimSpace(p))
		}
	}

	sub := SubDecl{
		Name:       name,
		Parameters: params,
		Body:       body,
		Package:    pkgName,
		FullName:   name,
	}
	if pkgName != "" {
		sub.FullName = pkgName + "::" + name
	}
	return sub
}

func hasContent(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

func hasCode(lines []string) bool {
	for _, l := range lines {
		s := strings.TrimSpace(l)
		if s != "" && !strings.HasPrefix(s, "#") {
			return true
		}
	}
	return false
}

// detectArchetype: .pm files are modules, and so is anything that defines
// more than three subs; the rest convert as scripts with a main.
func detectArchetype(identity string, unit *SourceUnit) Archetype {
	if strings.HasSuffix(identity, ".pm") {
		return ArchetypeModule
	}
	if unit.SubCount() > 3 {
		return ArchetypeModule
	}
	return ArchetypeScript
}

// ParseDir extracts every Perl source under root in parallel. Units are
// returned in file-discovery order regardless of completion order; files
// that cannot be read are reported as failures, not dropped silently.
func ParseDir(ctx context.Context, root string, opts ParseOptions) ([]*SourceUnit, []ParseFailure, error) {
	files, err := CollectFiles(root, opts.Recursive)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, nil
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}
	if concurrency > 32 {
		concurrency = 32
	}

	units := make([]*SourceUnit, len(files))
	var failures []ParseFailure
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i, file := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			unit, err := ParseFile(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("Failed to parse %s: %v\n", path, err)
				failures = append(failures, ParseFailure{File: path, Err: err.Error()})
				return
			}
			units[idx] = unit
		}(i, file)
	}
	wg.Wait()

	ordered := make([]*SourceUnit, 0, len(files))
	for _, u := range units {
		if u != nil {
			ordered = append(ordered, u)
		}
	}
	log.Info("Extracted %d Perl units from %s (%d failed)\n", len(ordered), root, len(failures))
	return ordered, failures, ctx.Err()
}
