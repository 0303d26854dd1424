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

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/perl2j/perl2j/internal/pipeline"
	"github.com/perl2j/perl2j/lang/java"
	"github.com/perl2j/perl2j/lang/perl"
	"github.com/perl2j/perl2j/store"
)

const (
	ToolListUnits     = "list_units"
	ToolGetSourceUnit = "get_source_unit"
	ToolCheckJava     = "check_java"
	ToolGetRunReport  = "get_run_report"

	DescListUnits     = "List the parsed Perl source units in the store: identity, archetype and subroutine count."
	DescGetSourceUnit = "Get one parsed Perl source unit by identity, including its raw text and extracted declarations."
	DescCheckJava     = "Run the deterministic structural checks against a Java source text and return the issues and quality score."
	DescGetRunReport  = "Get the aggregate report of the last conversion run, if one exists in the output directory."
)

var (
	SchemaListUnits     = GetJSONSchema(ListUnitsReq{})
	SchemaGetSourceUnit = GetJSONSchema(GetSourceUnitReq{})
	SchemaCheckJava     = GetJSONSchema(CheckJavaReq{})
	SchemaGetRunReport  = GetJSONSchema(GetRunReportReq{})
)

type ListUnitsReq struct{}

type UnitSummary struct {
	Identity  string         `json:"identity"`
	Archetype perl.Archetype `json:"archetype"`
	SubCount  int            `json:"sub_count"`
	Packages  []string       `json:"packages,omitempty"`
}

type ListUnitsResp struct {
	Total int           `json:"total"`
	Units []UnitSummary `json:"units"`
}

type GetSourceUnitReq struct {
	Identity string `json:"identity" jsonschema:"description=Identity of the source unit (its file path as recorded at parse time)"`
}

type CheckJavaReq struct {
	Code string `json:"code" jsonschema:"description=Java source text to check"`
}

type CheckJavaResp struct {
	Issues []pipeline.Issue `json:"issues"`
	Score  int              `json:"score"`
	Passed bool             `json:"passed"`
}

type GetRunReportReq struct{}

// ConversionTools answer MCP requests against one units store and one
// output directory.
type ConversionTools struct {
	units   *store.DirStore
	outDir  string
	checker *java.Checker
}

// ConversionToolsOptions locate the corpus the server exposes.
type ConversionToolsOptions struct {
	// UnitsDir is the directory holding units.json.
	UnitsDir string
	// OutputDir is where conversion runs write run_report.json.
	OutputDir string
}

// NewConversionTools builds the tool set. The checker runs heuristics
// only; deep checks need a configured converter, not a browse server.
func NewConversionTools(opts ConversionToolsOptions) *ConversionTools {
	return &ConversionTools{
		units:   store.NewDirStore(opts.UnitsDir),
		outDir:  opts.OutputDir,
		checker: java.NewChecker(),
	}
}

func (t *ConversionTools) ListUnits(ctx context.Context, req ListUnitsReq) (*ListUnitsResp, error) {
	units, err := t.units.FetchSourceUnits(ctx)
	if err != nil {
		return nil, err
	}
	resp := &ListUnitsResp{Total: len(units), Units: []UnitSummary{}}
	for _, u := range units {
		summary := UnitSummary{
			Identity:  u.Identity,
			Archetype: u.Archetype,
			SubCount:  u.SubCount(),
		}
		for _, pkg := range u.Packages {
			summary.Packages = append(summary.Packages, pkg.Name)
		}
		resp.Units = append(resp.Units, summary)
	}
	return resp, nil
}

func (t *ConversionTools) GetSourceUnit(ctx context.Context, req GetSourceUnitReq) (*perl.SourceUnit, error) {
	if req.Identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	units, err := t.units.FetchSourceUnits(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		if u.Identity == req.Identity {
			return u, nil
		}
	}
	return nil, fmt.Errorf("no source unit %q in store", req.Identity)
}

func (t *ConversionTools) CheckJava(ctx context.Context, req CheckJavaReq) (*CheckJavaResp, error) {
	issues := t.checker.Check(req.Code)
	if issues == nil {
		issues = []pipeline.Issue{}
	}
	return &CheckJavaResp{
		Issues: issues,
		Score:  t.checker.Score(req.Code),
		Passed: len(issues) == 0,
	}, nil
}

func (t *ConversionTools) GetRunReport(ctx context.Context, req GetRunReportReq) (*pipeline.RunReport, error) {
	path := filepath.Join(t.outDir, "run_report.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no run report at %s; run a conversion first", path)
		}
		return nil, err
	}
	var report pipeline.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("malformed run report %s: %v", path, err)
	}
	return &report, nil
}

func conversionTools(opts ConversionToolsOptions) []Tool {
	t := NewConversionTools(opts)
	return []Tool{
		NewTool(ToolListUnits, DescListUnits, SchemaListUnits, t.ListUnits),
		NewTool(ToolGetSourceUnit, DescGetSourceUnit, SchemaGetSourceUnit, t.GetSourceUnit),
		NewTool(ToolCheckJava, DescCheckJava, SchemaCheckJava, t.CheckJava),
		NewTool(ToolGetRunReport, DescGetRunReport, SchemaGetRunReport, t.GetRunReport),
	}
}
