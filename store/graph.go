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

package store

import (
	"fmt"
	"strings"

	"github.com/perl2j/perl2j/lang/perl"
)

// Property-graph schema of the Perl source corpus.
//
// Nodes:  FILE, PACKAGE, METHOD, USE_STATEMENT, SCRIPT_EXECUTION
// Rels:   FILE-CONTAINS_PACKAGE->PACKAGE, PACKAGE-HAS_METHOD->METHOD,
//         FILE-HAS_METHOD->METHOD (global subs), FILE-USES_MODULE->USE_STATEMENT,
//         FILE-HAS_SCRIPT->SCRIPT_EXECUTION
const (
	LabelFile   = "FILE"
	LabelPkg    = "PACKAGE"
	LabelMethod = "METHOD"
	LabelUse    = "USE_STATEMENT"
	LabelScript = "SCRIPT_EXECUTION"

	RelContainsPackage = "CONTAINS_PACKAGE"
	RelHasMethod       = "HAS_METHOD"
	RelUsesModule      = "USES_MODULE"
	RelHasScript       = "HAS_SCRIPT"
)

// maxStoredBody caps code bodies stored as node properties, so one huge
// file cannot bloat the graph.
const maxStoredBody = 5000

// graphNode is one node staged for a batch write.
type graphNode struct {
	Label string
	Props map[string]any
}

// graphRel is one relationship staged for a batch write, by node id.
type graphRel struct {
	Type   string
	FromID string
	ToID   string
}

// normalizeID flattens an identity into a node-id component the way the
// graph keys them: path separators and spaces become underscores.
func normalizeID(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_", ".", "_")
	return replacer.Replace(s)
}

func fileID(identity string) string {
	return "file_" + normalizeID(identity)
}

func pkgID(name, identity string) string {
	return "pkg_" + normalizeID(name) + "_" + normalizeID(identity)
}

func methodID(fullName, identity string) string {
	return "method_" + normalizeID(fullName) + "_" + normalizeID(identity)
}

func useID(module, identity string) string {
	return "use_" + normalizeID(module) + "_" + normalizeID(identity)
}

func scriptID(owner, identity string) string {
	return "script_" + normalizeID(owner) + "_" + normalizeID(identity)
}

func truncateBody(s string) string {
	if len(s) <= maxStoredBody {
		return s
	}
	return s[:maxStoredBody]
}

// unitToGraph stages the nodes and relationships of one source unit.
func unitToGraph(unit *perl.SourceUnit) ([]graphNode, []graphRel) {
	fid := fileID(unit.Identity)
	nodes := []graphNode{{
		Label: LabelFile,
		Props: map[string]any{
			"id":          fid,
			"name":        unit.Identity,
			"source_file": unit.Identity,
			"archetype":   string(unit.Archetype),
			"raw_text":    truncateBody(unit.RawText),
			"sub_count":   unit.SubCount(),
		},
	}}
	var rels []graphRel

	for _, use := range unit.AllUses() {
		uid := useID(use.ModuleName(), unit.Identity)
		nodes = append(nodes, graphNode{
			Label: LabelUse,
			Props: map[string]any{
				"id":      uid,
				"module":  use.ModuleName(),
				"raw":     use.Module,
				"negated": use.Negated,
			},
		})
		rels = append(rels, graphRel{Type: RelUsesModule, FromID: fid, ToID: uid})
	}

	stageSub := func(sub perl.SubDecl, ownerID string) {
		mid := methodID(sub.FullName, unit.Identity)
		nodes = append(nodes, graphNode{
			Label: LabelMethod,
			Props: map[string]any{
				"id":         mid,
				"name":       sub.Name,
				"full_name":  sub.FullName,
				"package":    sub.Package,
				"parameters": strings.Join(sub.Parameters, ","),
				"body":       truncateBody(sub.Body),
			},
		})
		rels = append(rels, graphRel{Type: RelHasMethod, FromID: ownerID, ToID: mid})
	}

	for _, pkg := range unit.Packages {
		pid := pkgID(pkg.Name, unit.Identity)
		nodes = append(nodes, graphNode{
			Label: LabelPkg,
			Props: map[string]any{
				"id":   pid,
				"name": pkg.Name,
			},
		})
		rels = append(rels, graphRel{Type: RelContainsPackage, FromID: fid, ToID: pid})
		for _, sub := range pkg.Subs {
			stageSub(sub, pid)
		}
		if pkg.Script != nil && pkg.Script.Body != "" {
			sid := scriptID(pkg.Name, unit.Identity)
			nodes = append(nodes, graphNode{
				Label: LabelScript,
				Props: map[string]any{"id": sid, "body": truncateBody(pkg.Script.Body)},
			})
			rels = append(rels, graphRel{Type: RelHasScript, FromID: pid, ToID: sid})
		}
	}

	if unit.Globals != nil {
		for _, sub := range unit.Globals.Subs {
			stageSub(sub, fid)
		}
		if unit.Globals.Body != "" {
			sid := scriptID("main", unit.Identity)
			nodes = append(nodes, graphNode{
				Label: LabelScript,
				Props: map[string]any{"id": sid, "body": truncateBody(unit.Globals.Body)},
			})
			rels = append(rels, graphRel{Type: RelHasScript, FromID: fid, ToID: sid})
		}
	}
	return nodes, rels
}

// rowToUnit rebuilds a source unit from one fetched file row. The graph
// flattens nested declarations, so rows carry parallel collections keyed
// back by package name.
func rowToUnit(row fileRow) (*perl.SourceUnit, error) {
	if row.Identity == "" {
		return nil, fmt.Errorf("graph file node has no source_file")
	}
	unit := &perl.SourceUnit{
		Identity:  row.Identity,
		RawText:   row.RawText,
		Archetype: perl.Archetype(row.Archetype),
	}
	switch unit.Archetype {
	case perl.ArchetypeScript, perl.ArchetypeModule:
	default:
		unit.Archetype = perl.ArchetypeScript
	}

	for _, u := range row.Uses {
		unit.UseStatements = append(unit.UseStatements, perl.UseStatement{Module: u})
	}

	pkgIndex := make(map[string]int)
	for _, name := range row.Packages {
		if name == "" {
			continue
		}
		if _, ok := pkgIndex[name]; ok {
			continue
		}
		pkgIndex[name] = len(unit.Packages)
		unit.Packages = append(unit.Packages, perl.PackageDecl{Name: name})
	}

	for _, m := range row.Methods {
		sub := perl.SubDecl{
			Name:     m.Name,
			FullName: m.FullName,
			Package:  m.Package,
			Body:     m.Body,
		}
		if m.Parameters != "" {
			sub.Parameters = strings.Split(m.Parameters, ",")
		}
		if idx, ok := pkgIndex[m.Package]; ok {
			unit.Packages[idx].Subs = append(unit.Packages[idx].Subs, sub)
			continue
		}
		if unit.Globals == nil {
			unit.Globals = &perl.GlobalScope{}
		}
		unit.Globals.Subs = append(unit.Globals.Subs, sub)
	}

	if row.Script != "" {
		if unit.Globals == nil {
			unit.Globals = &perl.GlobalScope{}
		}
		unit.Globals.Body = row.Script
	}
	return unit, nil
}

// fileRow is the flattened result shape of the fetch query.
type fileRow struct {
	Identity  string
	RawText   string
	Archetype string
	Packages  []string
	Methods   []methodRow
	Uses      []string
	Script    string
}

type methodRow struct {
	Name       string
	FullName   string
	Package    string
	Parameters string
	Body       string
}
