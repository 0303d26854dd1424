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

// Package perl holds the source-unit document model and the pattern-based
// extractor that produces it from Perl sources.
package perl

import (
	"strings"
)

// Archetype classifies how a unit is expected to be rendered in Java:
// a module becomes a reusable class, a script becomes a class with main.
type Archetype string

const (
	ArchetypeScript Archetype = "script"
	ArchetypeModule Archetype = "module"
)

// UseStatement is a `use`/`no` import line.
type UseStatement struct {
	// Module is the raw statement tail, e.g. "strict" or "POSIX qw(floor)".
	Module  string `json:"module"`
	Negated bool   `json:"negated,omitempty"`
}

// ModuleName returns the bare module identifier without import arguments.
func (u UseStatement) ModuleName() string {
	fields := strings.Fields(u.Module)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// SubDecl is one extracted subroutine definition.
type SubDecl struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters,omitempty"`
	Body       string   `json:"body"`
	Package    string   `json:"package,omitempty"`
	// FullName is "Pkg::name" for package subs, or the bare name.
	FullName string `json:"full_name"`
}

// ScriptBlock is executable code outside any sub.
type ScriptBlock struct {
	Body string `json:"body"`
}

// PackageDecl is one `package Foo;` block and everything it encloses.
type PackageDecl struct {
	Name          string         `json:"name"`
	UseStatements []UseStatement `json:"use_statements,omitempty"`
	Subs          []SubDecl      `json:"subs,omitempty"`
	Script        *ScriptBlock   `json:"script_execution,omitempty"`
}

// GlobalScope is the code of a file outside any package block.
type GlobalScope struct {
	Body string    `json:"body,omitempty"`
	Subs []SubDecl `json:"functions,omitempty"`
}

// SourceUnit is one Perl source document: the unit of conversion. Identity
// is the source file path and must be unique within a fetched batch.
type SourceUnit struct {
	Identity      string         `json:"identity"`
	RawText       string         `json:"raw_text"`
	Archetype     Archetype      `json:"archetype"`
	UseStatements []UseStatement `json:"use_statements,omitempty"`
	Packages      []PackageDecl  `json:"packages,omitempty"`
	Globals       *GlobalScope   `json:"global_scope,omitempty"`
}

// AllSubs returns every subroutine in the unit, package subs first.
func (u *SourceUnit) AllSubs() []SubDecl {
	var subs []SubDecl
	for _, pkg := range u.Packages {
		subs = append(subs, pkg.Subs...)
	}
	if u.Globals != nil {
		subs = append(subs, u.Globals.Subs...)
	}
	return subs
}

// SubCount reports the total number of extracted subroutines.
func (u *SourceUnit) SubCount() int {
	n := 0
	for _, pkg := range u.Packages {
		n += len(pkg.Subs)
	}
	if u.Globals != nil {
		n += len(u.Globals.Subs)
	}
	return n
}

// AllUses returns top-level and package-level use statements, deduplicated
// by module name.
func (u *SourceUnit) AllUses() []UseStatement {
	seen := make(map[string]bool)
	var uses []UseStatement
	appendUse := func(stmt UseStatement) {
		name := stmt.ModuleName()
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		uses = append(uses, stmt)
	}
	for _, stmt := range u.UseStatements {
		appendUse(stmt)
	}
	for _, pkg := range u.Packages {
		for _, stmt := range pkg.UseStatements {
			appendUse(stmt)
		}
	}
	return uses
}

// UsesModule reports whether the unit imports the given module.
func (u *SourceUnit) UsesModule(name string) bool {
	for _, stmt := range u.AllUses() {
		if stmt.ModuleName() == name {
			return true
		}
	}
	return false
}

// HasObjectOrientation reports whether the unit shows Perl OO markers
// (bless, @ISA, use parent/base).
func (u *SourceUnit) HasObjectOrientation() bool {
	if strings.Contains(u.RawText, "bless") || strings.Contains(u.RawText, "@ISA") {
		return true
	}
	return u.UsesModule("parent") || u.UsesModule("base")
}

// ScriptBody returns the executable top-level code of the unit, joining
// global scope and package script blocks.
func (u *SourceUnit) ScriptBody() string {
	var parts []string
	if u.Globals != nil && u.Globals.Body != "" {
		parts = append(parts, u.Globals.Body)
	}
	for _, pkg := range u.Packages {
		if pkg.Script != nil && pkg.Script.Body != "" {
			parts = append(parts, pkg.Script.Body)
		}
	}
	return strings.Join(parts, "\n")
}
