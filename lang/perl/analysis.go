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
	"fmt"
	"sort"
	"strings"
)

// SubAnalysis describes one subroutine for generation purposes. Optional
// fields may be left empty by the analyzer and are defaulted by Normalize.
type SubAnalysis struct {
	Name           string   `json:"name"`
	JavaName       string   `json:"java_name,omitempty"`
	Parameters     []string `json:"parameters,omitempty"`
	ParameterTypes []string `json:"parameter_types,omitempty"`
	Returns        string   `json:"returns,omitempty"`
	Purpose        string   `json:"purpose,omitempty"`
	Complexity     string   `json:"complexity,omitempty"`
}

// FieldAnalysis describes an inferred instance field of the target class.
type FieldAnalysis struct {
	Name     string `json:"name"`
	JavaType string `json:"java_type,omitempty"`
}

// CodeAnalysis is the analysis document attached to a conversion record.
// It is an explicit schema with optional fields; the analysis step owns
// validation so downstream steps can rely on its shape.
type CodeAnalysis struct {
	Archetype       Archetype       `json:"archetype"`
	ObjectOriented  bool            `json:"object_oriented"`
	Constructor     string          `json:"constructor,omitempty"`
	Subroutines     []SubAnalysis   `json:"subroutines"`
	InstanceFields  []FieldAnalysis `json:"instance_fields,omitempty"`
	JavaImports     []string        `json:"java_imports,omitempty"`
	PerlFeatures    []string        `json:"perl_features,omitempty"`
	MainFlow        string          `json:"main_flow,omitempty"`
	ComplexityScore int             `json:"complexity_score,omitempty"`
	ConversionRisks []string        `json:"conversion_risks,omitempty"`
	Notes           []string        `json:"notes,omitempty"`
	// Heuristic is set when the analysis came from the deterministic
	// fallback rather than the backend.
	Heuristic bool `json:"heuristic,omitempty"`
}

// Validate enforces the schema contract at the analysis boundary.
func (a *CodeAnalysis) Validate() error {
	if a == nil {
		return fmt.Errorf("analysis is nil")
	}
	switch a.Archetype {
	case ArchetypeScript, ArchetypeModule:
	default:
		return fmt.Errorf("analysis has unknown archetype %q", a.Archetype)
	}
	for i, sub := range a.Subroutines {
		if strings.TrimSpace(sub.Name) == "" {
			return fmt.Errorf("analysis subroutine %d has empty name", i)
		}
	}
	if a.ComplexityScore < 0 || a.ComplexityScore > 10 {
		return fmt.Errorf("analysis complexity score %d out of range [0,10]", a.ComplexityScore)
	}
	return nil
}

// Normalize fills defaulted fields in place: unset archetype from the unit,
// missing returns, and a complexity score derived from sub count.
func (a *CodeAnalysis) Normalize(unit *SourceUnit) {
	if a.Archetype == "" && unit != nil {
		a.Archetype = unit.Archetype
	}
	for i := range a.Subroutines {
		if a.Subroutines[i].Returns == "" {
			a.Subroutines[i].Returns = "Object"
		}
		if a.Subroutines[i].Complexity == "" {
			a.Subroutines[i].Complexity = "low"
		}
	}
	if a.ComplexityScore == 0 {
		score := len(a.Subroutines)
		if score < 2 {
			score = 2
		}
		if score > 8 {
			score = 8
		}
		a.ComplexityScore = score
	}
	if len(a.JavaImports) == 0 {
		a.JavaImports = []string{"java.util.*"}
	}
}

// HeuristicAnalysis builds a deterministic analysis from the extracted
// declarations alone. It backs the pipeline when the backend returns
// unusable analysis output, so a unit can still be converted.
func HeuristicAnalysis(unit *SourceUnit) *CodeAnalysis {
	analysis := &CodeAnalysis{
		Archetype: unit.Archetype,
		Heuristic: true,
	}

	subs := unit.AllSubs()
	hasNew := false
	getters, setters := 0, 0
	for _, sub := range subs {
		sa := SubAnalysis{
			Name:       sub.Name,
			Parameters: sub.Parameters,
		}
		switch {
		case sub.Name == "new":
			hasNew = true
			sa.Purpose = "Constructor, creates a new instance"
			sa.Returns = "Object"
			sa.Complexity = "medium"
		case strings.HasPrefix(sub.Name, "get_"):
			getters++
			sa.Purpose = "Getter for " + strings.TrimPrefix(sub.Name, "get_")
			sa.Returns = "String"
		case strings.HasPrefix(sub.Name, "set_"):
			setters++
			sa.Purpose = "Setter for " + strings.TrimPrefix(sub.Name, "set_")
			sa.Returns = "Object"
		case strings.HasPrefix(sub.Name, "is_") || strings.HasPrefix(sub.Name, "has_"):
			sa.Purpose = "Boolean check"
			sa.Returns = "boolean"
		default:
			sa.Purpose = "Business logic"
			sa.Returns = "Object"
		}
		analysis.Subroutines = append(analysis.Subroutines, sa)
	}

	analysis.ObjectOriented = unit.HasObjectOrientation() || (len(unit.Packages) > 0 && hasNew)
	if hasNew {
		analysis.Constructor = "new"
	}

	// Instance fields inferred from accessor pairs.
	seen := make(map[string]bool)
	for _, sub := range subs {
		name := ""
		if strings.HasPrefix(sub.Name, "get_") {
			name = strings.TrimPrefix(sub.Name, "get_")
		} else if strings.HasPrefix(sub.Name, "set_") {
			name = strings.TrimPrefix(sub.Name, "set_")
		}
		if name != "" && !seen[name] {
			seen[name] = true
			analysis.InstanceFields = append(analysis.InstanceFields, FieldAnalysis{Name: name, JavaType: "String"})
		}
	}

	analysis.PerlFeatures = detectFeatures(unit, hasNew, getters+setters)
	analysis.JavaImports = mapJavaImports(unit)
	analysis.MainFlow = fmt.Sprintf("heuristic analysis: %d packages, %d subs", len(unit.Packages), len(subs))
	analysis.ConversionRisks = []string{"heuristic_analysis"}
	analysis.Normalize(unit)
	return analysis
}

func detectFeatures(unit *SourceUnit, hasNew bool, accessors int) []string {
	var features []string
	if unit.UsesModule("strict") || unit.UsesModule("warnings") {
		features = append(features, "strict_mode")
	}
	if unit.HasObjectOrientation() || hasNew {
		features = append(features, "blessed_objects")
	}
	if accessors > 0 {
		features = append(features, "accessor_methods")
	}
	if strings.Contains(unit.RawText, "@ARGV") {
		features = append(features, "cli_args")
	}
	if strings.Contains(unit.RawText, "<STDIN>") {
		features = append(features, "interactive_input")
	}
	if strings.Contains(unit.RawText, "open(") || strings.Contains(unit.RawText, "open (") {
		features = append(features, "file_io")
	}
	if strings.Contains(unit.RawText, "=~") {
		features = append(features, "regex")
	}
	if strings.Contains(unit.RawText, "%ENV") {
		features = append(features, "env_access")
	}
	return features
}

// mapJavaImports projects Perl module usage onto Java imports.
func mapJavaImports(unit *SourceUnit) []string {
	imports := map[string]bool{"java.util.*": true}
	for _, use := range unit.AllUses() {
		name := use.ModuleName()
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(name, "DBI") || strings.Contains(lower, "database"):
			imports["java.sql.*"] = true
		case strings.Contains(name, "File") || strings.Contains(lower, "file"):
			imports["java.io.*"] = true
			imports["java.nio.file.*"] = true
		case strings.Contains(name, "Time") || strings.Contains(name, "Date"):
			imports["java.time.*"] = true
		}
	}
	if strings.Contains(unit.RawText, "open(") || strings.Contains(unit.RawText, "<STDIN>") {
		imports["java.io.*"] = true
	}

	out := make([]string, 0, len(imports))
	for imp := range imports {
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}
