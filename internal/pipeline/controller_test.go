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

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/perl2j/perl2j/lang/perl"
)

func testUnit(identity string) *perl.SourceUnit {
	return perl.Parse("sub run {\n    my ($x) = @_;\n    return $x;\n}\n", identity)
}

type mockSource struct {
	units []*perl.SourceUnit
	err   error
}

func (m *mockSource) FetchSourceUnits(ctx context.Context) ([]*perl.SourceUnit, error) {
	return m.units, m.err
}

type mockAnalyzer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, unit *perl.SourceUnit) (*perl.CodeAnalysis, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return perl.HeuristicAnalysis(unit), nil
}

func (m *mockAnalyzer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	fn    func(unit *perl.SourceUnit) string
}

func (m *mockGenerator) Generate(ctx context.Context, unit *perl.SourceUnit, analysis *perl.CodeAnalysis) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.fn != nil {
		return m.fn(unit)
	}
	return "public class Unit { }", nil
}

type mockFixer struct {
	mu    sync.Mutex
	calls int
	err   error
	fn    func(code string) string
}

func (m *mockFixer) Fix(ctx context.Context, unit *perl.SourceUnit, code string, issues []Issue) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.fn != nil {
		return m.fn(code)
	}
	return code, nil
}

func (m *mockFixer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockChecker classifies by exact code text, so repeated passes over
// unchanged code are deterministic.
type mockChecker struct {
	pass map[string]bool
}

func (m *mockChecker) Check(code string) []Issue {
	if m.pass == nil || m.pass[code] {
		return nil
	}
	return []Issue{{Kind: IssueStructure, Message: "draft rejected"}}
}

func (m *mockChecker) Score(code string) int { return 7 }

type mockEnhancer struct {
	out string
	err error
}

func (m *mockEnhancer) Enhance(ctx context.Context, unit *perl.SourceUnit, code string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.out, nil
}

type captureArtifacts struct {
	mu   sync.Mutex
	recs []*ConversionRecord
}

func (c *captureArtifacts) WriteArtifact(ctx context.Context, rec *ConversionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return nil
}

type captureReports struct {
	err error
	got *RunReport
}

func (c *captureReports) WriteRunReport(ctx context.Context, report *RunReport) error {
	c.got = report
	return c.err
}

func passAllChecker() *mockChecker { return &mockChecker{} }

func newTestController(t *testing.T, cfg Config, deps Deps) *Controller {
	t.Helper()
	if deps.Analyzer == nil {
		deps.Analyzer = &mockAnalyzer{}
	}
	if deps.Generator == nil {
		deps.Generator = &mockGenerator{}
	}
	if deps.Fixer == nil {
		deps.Fixer = &mockFixer{}
	}
	if deps.Checker == nil {
		deps.Checker = passAllChecker()
	}
	if deps.Source == nil {
		deps.Source = &mockSource{}
	}
	c, err := NewController(cfg, deps)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func TestConvertUnitSucceedsFirstPass(t *testing.T) {
	c := newTestController(t, DefaultConfig(), Deps{})
	rec := c.ConvertUnit(context.Background(), testUnit("a.pl"))

	if rec.Phase != PhaseSucceeded {
		t.Fatalf("phase: %s", rec.Phase)
	}
	if rec.FixAttempts != 0 {
		t.Errorf("fix attempts: %d", rec.FixAttempts)
	}
	if len(rec.Issues) != 0 {
		t.Errorf("issues on succeeded record: %+v", rec.Issues)
	}
	if rec.Report == nil {
		t.Fatal("report missing")
	}
	if rec.Report.QualityScore != 7 {
		t.Errorf("quality score: %d", rec.Report.QualityScore)
	}

	wantSteps := []string{"analyze", "generate", "assure"}
	if len(rec.Report.Steps) != len(wantSteps) {
		t.Fatalf("steps: %+v", rec.Report.Steps)
	}
	for i, name := range wantSteps {
		if rec.Report.Steps[i].StepName != name || rec.Report.Steps[i].Status != StepOK {
			t.Errorf("step %d: %+v", i, rec.Report.Steps[i])
		}
	}
}

func TestConvertUnitFixLoopRecovers(t *testing.T) {
	gen := &mockGenerator{fn: func(*perl.SourceUnit) string { return "draft-v0" }}
	fixer := &mockFixer{fn: func(code string) string { return "draft-v1" }}
	checker := &mockChecker{pass: map[string]bool{"draft-v1": true}}
	c := newTestController(t, DefaultConfig(), Deps{Generator: gen, Fixer: fixer, Checker: checker})

	rec := c.ConvertUnit(context.Background(), testUnit("b.pl"))

	if rec.Phase != PhaseSucceeded {
		t.Fatalf("phase: %s (report %+v)", rec.Phase, rec.Report)
	}
	if rec.FixAttempts != 1 {
		t.Errorf("fix attempts: %d, want 1", rec.FixAttempts)
	}
	if rec.GeneratedCode != "draft-v1" {
		t.Errorf("code: %q", rec.GeneratedCode)
	}

	wantSteps := []string{"analyze", "generate", "assure", "fix", "assure"}
	var got []string
	for _, s := range rec.Report.Steps {
		got = append(got, s.StepName)
	}
	if strings.Join(got, ",") != strings.Join(wantSteps, ",") {
		t.Errorf("step sequence: %v", got)
	}
}

func TestConvertUnitAttemptsExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFixAttempts = 2
	gen := &mockGenerator{fn: func(*perl.SourceUnit) string { return "always-bad" }}
	fixer := &mockFixer{fn: func(code string) string { return code + "x" }}
	c := newTestController(t, cfg, Deps{Generator: gen, Fixer: fixer, Checker: &mockChecker{pass: map[string]bool{}}})

	rec := c.ConvertUnit(context.Background(), testUnit("c.pl"))

	if rec.Phase != PhaseFailed {
		t.Fatalf("phase: %s", rec.Phase)
	}
	if rec.FixAttempts != 2 {
		t.Errorf("fix attempts: %d, want 2", rec.FixAttempts)
	}
	if rec.Report.Reason != ReasonAttemptsExhausted {
		t.Errorf("reason: %s", rec.Report.Reason)
	}
	if len(rec.Report.Issues) == 0 {
		t.Error("last issues should be attached to the report")
	}
	if fixer.callCount() != 2 {
		t.Errorf("fixer calls: %d, want 2", fixer.callCount())
	}
}

func TestConvertUnitZeroMaxFixAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFixAttempts = 0
	fixer := &mockFixer{}
	c := newTestController(t, cfg, Deps{Fixer: fixer, Checker: &mockChecker{pass: map[string]bool{}}})

	rec := c.ConvertUnit(context.Background(), testUnit("d.pl"))

	if rec.Phase != PhaseFailed || rec.Report.Reason != ReasonAttemptsExhausted {
		t.Fatalf("phase %s reason %s", rec.Phase, rec.Report.Reason)
	}
	if rec.FixAttempts != 0 {
		t.Errorf("fix attempts: %d", rec.FixAttempts)
	}
	if fixer.callCount() != 0 {
		t.Errorf("fixer must not run with MaxFixAttempts=0, got %d calls", fixer.callCount())
	}
}

func TestConvertUnitMissingInput(t *testing.T) {
	analyzer := &mockAnalyzer{}
	c := newTestController(t, DefaultConfig(), Deps{Analyzer: analyzer})

	rec := c.ConvertUnit(context.Background(), perl.Parse("", "empty.pl"))

	if rec.Phase != PhaseFailed || rec.Report.Reason != ReasonMissingInput {
		t.Fatalf("phase %s reason %s", rec.Phase, rec.Report.Reason)
	}
	if rec.FixAttempts != 0 {
		t.Errorf("missing input must not consume fix attempts: %d", rec.FixAttempts)
	}
	if analyzer.callCount() != 0 {
		t.Errorf("analyzer should not run on empty source, got %d calls", analyzer.callCount())
	}
}

func TestConvertUnitGenerationBackendFailure(t *testing.T) {
	gen := &mockGenerator{err: fmt.Errorf("backend exhausted after retries")}
	fixer := &mockFixer{}
	c := newTestController(t, DefaultConfig(), Deps{Generator: gen, Fixer: fixer})

	rec := c.ConvertUnit(context.Background(), testUnit("e.pl"))

	if rec.Phase != PhaseFailed || rec.Report.Reason != ReasonBackendUnavailable {
		t.Fatalf("phase %s reason %s", rec.Phase, rec.Report.Reason)
	}
	if rec.GeneratedCode != "" {
		t.Errorf("failed generation should leave no code: %q", rec.GeneratedCode)
	}
	if fixer.callCount() != 0 {
		t.Errorf("fixer calls: %d", fixer.callCount())
	}
}

func TestConvertUnitFixBackendFailureConsumesAttempt(t *testing.T) {
	gen := &mockGenerator{fn: func(*perl.SourceUnit) string { return "bad" }}
	fixer := &mockFixer{err: fmt.Errorf("model unreachable")}
	c := newTestController(t, DefaultConfig(), Deps{Generator: gen, Fixer: fixer, Checker: &mockChecker{pass: map[string]bool{}}})

	rec := c.ConvertUnit(context.Background(), testUnit("f.pl"))

	if rec.Phase != PhaseFailed || rec.Report.Reason != ReasonBackendUnavailable {
		t.Fatalf("phase %s reason %s", rec.Phase, rec.Report.Reason)
	}
	if rec.FixAttempts != 1 {
		t.Errorf("a failed fix still consumes an attempt: got %d", rec.FixAttempts)
	}
}

func TestConvertUnitDeterministicRepeat(t *testing.T) {
	// Two conversions of the same unit with pure collaborators settle
	// identically: assurance is a pure function of the code.
	c := newTestController(t, DefaultConfig(), Deps{})
	first := c.ConvertUnit(context.Background(), testUnit("same.pl"))
	second := c.ConvertUnit(context.Background(), testUnit("same.pl"))

	if first.Phase != second.Phase || first.FixAttempts != second.FixAttempts {
		t.Errorf("divergent outcomes: %s/%d vs %s/%d",
			first.Phase, first.FixAttempts, second.Phase, second.FixAttempts)
	}
	if len(first.Issues) != len(second.Issues) {
		t.Errorf("divergent issues: %d vs %d", len(first.Issues), len(second.Issues))
	}
}

func TestConvertUnitEnhancement(t *testing.T) {
	tests := []struct {
		name         string
		enhancer     *mockEnhancer
		checkerPass  map[string]bool
		wantCode     string
		wantEnhanced bool
	}{
		{
			name:         "accepted polish",
			enhancer:     &mockEnhancer{out: "polished"},
			checkerPass:  map[string]bool{"public class Unit { }": true, "polished": true},
			wantCode:     "polished",
			wantEnhanced: true,
		},
		{
			name:         "polish reintroduces issues",
			enhancer:     &mockEnhancer{out: "broken"},
			checkerPass:  map[string]bool{"public class Unit { }": true},
			wantCode:     "public class Unit { }",
			wantEnhanced: false,
		},
		{
			name:         "backend failure keeps draft",
			enhancer:     &mockEnhancer{err: fmt.Errorf("unavailable")},
			checkerPass:  map[string]bool{"public class Unit { }": true},
			wantCode:     "public class Unit { }",
			wantEnhanced: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.EnhanceFinal = true
			c := newTestController(t, cfg, Deps{
				Enhancer: tt.enhancer,
				Checker:  &mockChecker{pass: tt.checkerPass},
			})
			rec := c.ConvertUnit(context.Background(), testUnit("g.pl"))

			if rec.Phase != PhaseSucceeded {
				t.Fatalf("phase: %s", rec.Phase)
			}
			if rec.GeneratedCode != tt.wantCode {
				t.Errorf("code: %q, want %q", rec.GeneratedCode, tt.wantCode)
			}
			if rec.Report.Enhanced != tt.wantEnhanced {
				t.Errorf("enhanced flag: %v", rec.Report.Enhanced)
			}
		})
	}
}

func TestRunScenarioThreeUnits(t *testing.T) {
	// a converts cleanly, b needs one fix, c never passes with max 2.
	cfg := DefaultConfig()
	cfg.MaxFixAttempts = 2
	cfg.BatchConcurrency = 3

	drafts := map[string]string{"a.pl": "A-v0", "b.pl": "B-v0", "c.pl": "C-v0"}
	fixes := map[string]string{"B-v0": "B-v1", "C-v0": "C-v1", "C-v1": "C-v2"}
	gen := &mockGenerator{fn: func(u *perl.SourceUnit) string { return drafts[u.Identity] }}
	fixer := &mockFixer{fn: func(code string) string { return fixes[code] }}
	checker := &mockChecker{pass: map[string]bool{"A-v0": true, "B-v1": true}}

	artifacts := &captureArtifacts{}
	reports := &captureReports{}
	c := newTestController(t, cfg, Deps{
		Source: &mockSource{units: []*perl.SourceUnit{
			testUnit("a.pl"), testUnit("b.pl"), testUnit("c.pl"),
		}},
		Generator: gen,
		Fixer:     fixer,
		Checker:   checker,
		Artifacts: artifacts,
		Reports:   reports,
	})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.TotalUnits != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("totals: %d/%d/%d", report.TotalUnits, report.Succeeded, report.Failed)
	}
	if report.AverageFixAttempts != 0.5 {
		t.Errorf("average fix attempts: %g, want 0.5", report.AverageFixAttempts)
	}

	// Report order follows fetch order, not completion order.
	if len(report.Records) != 3 {
		t.Fatalf("record reports: %d", len(report.Records))
	}
	wantOrder := []string{"a.pl", "b.pl", "c.pl"}
	for i, id := range wantOrder {
		if report.Records[i].Identity != id {
			t.Errorf("record %d: %s, want %s", i, report.Records[i].Identity, id)
		}
	}

	if report.Records[0].FixAttempts != 0 || report.Records[0].Phase != PhaseSucceeded {
		t.Errorf("a.pl: %+v", report.Records[0])
	}
	if report.Records[1].FixAttempts != 1 || report.Records[1].Phase != PhaseSucceeded {
		t.Errorf("b.pl: %+v", report.Records[1])
	}
	if report.Records[2].FixAttempts != 2 || report.Records[2].Phase != PhaseFailed ||
		report.Records[2].Reason != ReasonAttemptsExhausted {
		t.Errorf("c.pl: %+v", report.Records[2])
	}

	// Exactly one artifact write per settled record.
	if len(artifacts.recs) != 3 {
		t.Errorf("artifact writes: %d", len(artifacts.recs))
	}
	for _, rec := range artifacts.recs {
		if !rec.Terminal() {
			t.Errorf("artifact written for non-terminal record %s in phase %s", rec.Identity, rec.Phase)
		}
	}
	if reports.got == nil {
		t.Error("run report not written to sink")
	}
}

func TestRunDuplicateIdentity(t *testing.T) {
	c := newTestController(t, DefaultConfig(), Deps{
		Source: &mockSource{units: []*perl.SourceUnit{
			testUnit("dup.pl"), testUnit("dup.pl"),
		}},
	})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("totals: %d/%d", report.Succeeded, report.Failed)
	}
	if report.Records[1].Reason != ReasonMissingInput {
		t.Errorf("duplicate reason: %s", report.Records[1].Reason)
	}
}

func TestRunCancellationSettlesRecords(t *testing.T) {
	analyzer := &mockAnalyzer{}
	c := newTestController(t, DefaultConfig(), Deps{
		Source: &mockSource{units: []*perl.SourceUnit{
			testUnit("x.pl"), testUnit("y.pl"),
		}},
		Analyzer: analyzer,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Failed != 2 {
		t.Fatalf("failed: %d", report.Failed)
	}
	for _, rec := range report.Records {
		if rec.Phase != PhaseFailed || rec.Reason != ReasonRunCanceled {
			t.Errorf("record %s: phase %s reason %s", rec.Identity, rec.Phase, rec.Reason)
		}
	}
	if analyzer.callCount() != 0 {
		t.Errorf("no backend work after cancel, got %d analyzer calls", analyzer.callCount())
	}
}

func TestRunReportSinkFailureIsFatal(t *testing.T) {
	c := newTestController(t, DefaultConfig(), Deps{
		Source:  &mockSource{units: []*perl.SourceUnit{testUnit("a.pl")}},
		Reports: &captureReports{err: fmt.Errorf("disk full")},
	})

	report, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("report sink failure must fail the run")
	}
	if report == nil {
		t.Fatal("report should still be returned for inspection")
	}
}

func TestRunEmptyFetch(t *testing.T) {
	c := newTestController(t, DefaultConfig(), Deps{Source: &mockSource{}})
	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.TotalUnits != 0 || report.Succeeded != 0 || report.Failed != 0 {
		t.Errorf("empty run totals: %+v", report)
	}
	if report.AverageFixAttempts != 0 {
		t.Errorf("average with no records: %g", report.AverageFixAttempts)
	}
}

func TestNewControllerValidation(t *testing.T) {
	_, err := NewController(Config{MaxFixAttempts: -1, BackendRetryCount: 0, RateLimitPerSecond: 1, BatchConcurrency: 1}, Deps{})
	if err == nil || !strings.Contains(err.Error(), "max fix attempts") {
		t.Errorf("want max fix attempts error, got %v", err)
	}

	cfg := DefaultConfig()
	_, err = NewController(cfg, Deps{})
	if err == nil || !strings.Contains(err.Error(), "unit source") {
		t.Errorf("want missing source error, got %v", err)
	}

	cfg.RateLimitPerSecond = 0
	_, err = NewController(cfg, Deps{Source: &mockSource{}})
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("want rate limit error, got %v", err)
	}
}
