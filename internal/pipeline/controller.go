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
	"time"

	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/internal/utils"
	"github.com/perl2j/perl2j/lang/perl"
)

// Config is the control surface of a conversion run.
type Config struct {
	// MaxFixAttempts bounds the fix loop per record. Zero disables fixing:
	// the first failing assurance goes straight to Failed.
	MaxFixAttempts int
	// BackendRetryCount bounds transparent retries of transient backend
	// failures inside one generation or fix step.
	BackendRetryCount int
	// RateLimitPerSecond throttles backend calls across all records.
	RateLimitPerSecond float64
	// BatchConcurrency is the number of records converted in parallel.
	BatchConcurrency int
	// EnhanceFinal turns on the optional polish pass for passing drafts.
	EnhanceFinal bool
}

// DefaultConfig mirrors the documented defaults of the conversion service.
func DefaultConfig() Config {
	return Config{
		MaxFixAttempts:     4,
		BackendRetryCount:  3,
		RateLimitPerSecond: 0.5,
		BatchConcurrency:   4,
	}
}

// Validate rejects configurations outside the documented ranges.
func (c Config) Validate() error {
	if c.MaxFixAttempts < 0 {
		return fmt.Errorf("max fix attempts must be >= 0, got %d", c.MaxFixAttempts)
	}
	if c.BackendRetryCount < 0 {
		return fmt.Errorf("backend retry count must be >= 0, got %d", c.BackendRetryCount)
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("rate limit per second must be > 0, got %g", c.RateLimitPerSecond)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch concurrency must be >= 1, got %d", c.BatchConcurrency)
	}
	return nil
}

// UnitSource delivers the units of one run. Identities must be unique
// within a fetch; the controller fails duplicates rather than dropping
// them silently.
type UnitSource interface {
	FetchSourceUnits(ctx context.Context) ([]*perl.SourceUnit, error)
}

// Analyzer produces the analysis document for a unit.
type Analyzer interface {
	Analyze(ctx context.Context, unit *perl.SourceUnit) (*perl.CodeAnalysis, error)
}

// Generator produces the first Java draft for a unit.
type Generator interface {
	Generate(ctx context.Context, unit *perl.SourceUnit, analysis *perl.CodeAnalysis) (string, error)
}

// Fixer repairs a draft given the current assurance findings.
type Fixer interface {
	Fix(ctx context.Context, unit *perl.SourceUnit, code string, issues []Issue) (string, error)
}

// Enhancer optionally polishes a passing draft before it is sealed.
type Enhancer interface {
	Enhance(ctx context.Context, unit *perl.SourceUnit, code string) (string, error)
}

// Checker runs the deterministic structural checks. Check must be a pure
// function of the code so assurance stays idempotent.
type Checker interface {
	Check(code string) []Issue
	Score(code string) int
}

// ArtifactSink persists one settled record. The controller calls it
// exactly once per terminal record.
type ArtifactSink interface {
	WriteArtifact(ctx context.Context, rec *ConversionRecord) error
}

// ReportSink persists the aggregate run report. A sink failure is fatal
// for the run, unlike any per-record failure.
type ReportSink interface {
	WriteRunReport(ctx context.Context, report *RunReport) error
}

// ProgressFunc observes settled records. done counts settled units.
type ProgressFunc func(done, total int, rec *ConversionRecord)

// Deps are the collaborators of a Controller. Source, Analyzer, Generator,
// Fixer and Checker are required; the rest are optional.
type Deps struct {
	Source    UnitSource
	Analyzer  Analyzer
	Generator Generator
	Fixer     Fixer
	Enhancer  Enhancer
	Checker   Checker
	Artifacts ArtifactSink
	Reports   ReportSink
	Progress  ProgressFunc
}

// Controller drives conversion records through the phase machine. Records
// never block each other: each one advances independently, and only the
// backend rate gate (inside the llm client) is shared.
type Controller struct {
	cfg  Config
	deps Deps
}

// NewController validates config and collaborators.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("controller requires a unit source")
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("controller requires an analyzer")
	case deps.Generator == nil:
		return nil, fmt.Errorf("controller requires a generator")
	case deps.Fixer == nil:
		return nil, fmt.Errorf("controller requires a fixer")
	case deps.Checker == nil:
		return nil, fmt.Errorf("controller requires a checker")
	}
	return &Controller{cfg: cfg, deps: deps}, nil
}

// Run converts every fetched unit and returns the aggregate report.
// Canceling ctx stops new backend calls; records already past their last
// backend call settle normally, the rest settle Failed(RunCanceled), so
// the report never contains a non-terminal record.
func (c *Controller) Run(ctx context.Context) (*RunReport, error) {
	runID := NewRunID()
	startedAt := time.Now()

	units, err := c.deps.Source.FetchSourceUnits(ctx)
	if err != nil {
		return nil, utils.WrapError(err, "fail fetch source units")
	}
	log.Info("Run %s: converting %d units (concurrency %d)\n", runID, len(units), c.cfg.BatchConcurrency)

	records := make([]*ConversionRecord, len(units))
	seen := make(map[string]bool, len(units))
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0
	semaphore := make(chan struct{}, c.cfg.BatchConcurrency)

	settle := func(idx int, rec *ConversionRecord) {
		if c.deps.Artifacts != nil {
			if err := c.deps.Artifacts.WriteArtifact(ctx, rec); err != nil {
				log.Error("Failed to write artifact for %s: %v\n", rec.Identity, err)
			}
		}
		mu.Lock()
		records[idx] = rec
		done++
		d := done
		mu.Unlock()
		if c.deps.Progress != nil {
			c.deps.Progress(d, len(units), rec)
		}
	}

	for i, unit := range units {
		if seen[unit.Identity] {
			var steps []StepRecord
			rec := c.fail(NewRecord(unit.Identity), ReasonMissingInput, "duplicate identity in batch", &steps)
			settle(i, rec)
			continue
		}
		seen[unit.Identity] = true

		wg.Add(1)
		go func(idx int, u *perl.SourceUnit) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			settle(idx, c.ConvertUnit(ctx, u))
		}(i, unit)
	}
	wg.Wait()

	report := BuildRunReport(runID, startedAt, time.Now(), records, c.cfg.BatchConcurrency)
	if c.deps.Reports != nil {
		if err := c.deps.Reports.WriteRunReport(ctx, report); err != nil {
			return report, utils.WrapError(err, "fail write run report")
		}
	}
	log.Info("Run %s finished: %d succeeded, %d failed\n", runID, report.Succeeded, report.Failed)
	return report, nil
}

// ConvertUnit drives one record from Pending to a terminal phase.
func (c *Controller) ConvertUnit(ctx context.Context, unit *perl.SourceUnit) *ConversionRecord {
	rec := NewRecord(unit.Identity)
	var steps []StepRecord

	for !rec.Terminal() {
		switch rec.Phase {
		case PhasePending:
			rec = c.stepAnalyze(ctx, rec, unit, &steps)
		case PhaseAnalyzed:
			rec = c.stepGenerate(ctx, rec, unit, &steps)
		case PhaseGenerated, PhaseAssuring:
			rec = c.stepAssure(ctx, rec, unit, &steps)
		case PhaseFixing:
			rec = c.stepFix(ctx, rec, unit, &steps)
		default:
			rec = c.fail(rec, ReasonMissingInput, fmt.Sprintf("record in unknown phase %q", rec.Phase), &steps)
		}
	}
	log.Debug("Record %s settled: %s (fix attempts %d)\n", rec.Identity, rec.Phase, rec.FixAttempts)
	return rec
}

func appendStep(steps *[]StepRecord, name string, attempt int, status StepStatus, errMsg string, from, to Phase) {
	*steps = append(*steps, StepRecord{
		StepName: name,
		Attempt:  attempt,
		Status:   status,
		Error:    errMsg,
		From:     from,
		To:       to,
		Time:     time.Now(),
	})
}

func (c *Controller) stepAnalyze(ctx context.Context, rec *ConversionRecord, unit *perl.SourceUnit, steps *[]StepRecord) *ConversionRecord {
	if ctx.Err() != nil {
		appendStep(steps, "analyze", 1, StepFailed, "run canceled", rec.Phase, PhaseFailed)
		return c.fail(rec, ReasonRunCanceled, "canceled before analysis", steps)
	}
	if strings.TrimSpace(unit.RawText) == "" {
		appendStep(steps, "analyze", 1, StepFailed, "empty source", rec.Phase, PhaseFailed)
		return c.fail(rec, ReasonMissingInput, "source unit has no content", steps)
	}

	analysis, err := c.deps.Analyzer.Analyze(ctx, unit)
	if err != nil {
		appendStep(steps, "analyze", 1, StepFailed, err.Error(), rec.Phase, PhaseFailed)
		switch {
		case IsMissingInput(err):
			return c.fail(rec, ReasonMissingInput, err.Error(), steps)
		case ctx.Err() != nil:
			return c.fail(rec, ReasonRunCanceled, err.Error(), steps)
		default:
			return c.fail(rec, ReasonBackendUnavailable, err.Error(), steps)
		}
	}
	if err := analysis.Validate(); err != nil {
		appendStep(steps, "analyze", 1, StepFailed, err.Error(), rec.Phase, PhaseFailed)
		return c.fail(rec, ReasonMissingInput, err.Error(), steps)
	}

	next, err := rec.WithAnalysis(analysis)
	if err != nil {
		appendStep(steps, "analyze", 1, StepFailed, err.Error(), rec.Phase, PhaseFailed)
		return c.fail(rec, ReasonMissingInput, err.Error(), steps)
	}
	appendStep(steps, "analyze", 1, StepOK, "", PhasePending, PhaseAnalyzed)
	return next
}

func (c *Controller) stepGenerate(ctx context.Context, rec *ConversionRecord, unit *perl.SourceUnit, steps *[]StepRecord) *ConversionRecord {
	if ctx.Err() != nil {
		appendStep(steps, "generate", 1, StepFailed, "run canceled", rec.Phase, PhaseFailed)
		return c.fail(rec, ReasonRunCanceled, "canceled before generation", steps)
	}

	code, err := c.deps.Generator.Generate(ctx, unit, rec.Analysis)
	if err != nil {
		appendStep(steps, "generate", 1, StepFailed, err.Error(), rec.Phase, PhaseFailed)
		if ctx.Err() != nil {
			return c.fail(rec, ReasonRunCanceled, err.Error(), steps)
		}
		return c.fail(rec, ReasonBackendUnavailable, err.Error(), steps)
	}

	next, err := rec.WithGeneratedCode(code)
	if err != nil {
		appendStep(steps, "generate", 1, StepFailed, "empty code from backend", rec.Phase, PhaseFailed)
		return c.fail(rec, ReasonBackendUnavailable, "backend returned empty code", steps)
	}
	appendStep(steps, "generate", 1, StepOK, "", PhaseAnalyzed, PhaseGenerated)
	return next
}

func (c *Controller) stepAssure(ctx context.Context, rec *ConversionRecord, unit *perl.SourceUnit, steps *[]StepRecord) *ConversionRecord {
	from := rec.Phase
	next, err := rec.StartAssurance()
	if err != nil {
		appendStep(steps, "assure", rec.FixAttempts+1, StepFailed, err.Error(), from, PhaseFailed)
		return c.fail(rec, ReasonMissingInput, err.Error(), steps)
	}

	issues := c.deps.Checker.Check(next.GeneratedCode)
	next, err = next.WithIssues(issues)
	if err != nil {
		appendStep(steps, "assure", rec.FixAttempts+1, StepFailed, err.Error(), from, PhaseFailed)
		return c.fail(rec, ReasonMissingInput, err.Error(), steps)
	}

	if len(issues) == 0 {
		enhanced := false
		if c.deps.Enhancer != nil && c.cfg.EnhanceFinal && ctx.Err() == nil {
			next, enhanced = c.tryEnhance(ctx, next, unit)
		}
		appendStep(steps, "assure", next.FixAttempts+1, StepOK, "", from, PhaseSucceeded)
		rep := c.buildReport(next, PhaseSucceeded, "", "", *steps)
		rep.Enhanced = enhanced
		sealed, err := next.Succeed(rep)
		if err != nil {
			return c.fail(next, ReasonMissingInput, err.Error(), steps)
		}
		return sealed
	}

	appendStep(steps, "assure", next.FixAttempts+1, StepFailed,
		fmt.Sprintf("%d issues", len(issues)), from, PhaseAssuring)
	if next.FixAttempts < c.cfg.MaxFixAttempts {
		fixing, err := next.BeginFix()
		if err != nil {
			return c.fail(next, ReasonMissingInput, err.Error(), steps)
		}
		return fixing
	}
	detail := fmt.Sprintf("%d issues after %d fix attempts", len(issues), next.FixAttempts)
	return c.fail(next, ReasonAttemptsExhausted, detail, steps)
}

// tryEnhance asks the enhancer for a polish of a passing draft. The
// polished code is adopted only if the checks still pass; any rejection
// or backend failure keeps the verified draft and the phase.
func (c *Controller) tryEnhance(ctx context.Context, rec *ConversionRecord, unit *perl.SourceUnit) (*ConversionRecord, bool) {
	polished, err := c.deps.Enhancer.Enhance(ctx, unit, rec.GeneratedCode)
	if err != nil {
		log.Debug("Enhancement skipped for %s: %v\n", rec.Identity, err)
		return rec, false
	}
	if polished == "" || polished == rec.GeneratedCode {
		return rec, false
	}
	if len(c.deps.Checker.Check(polished)) != 0 {
		log.Debug("Enhanced draft for %s reintroduced issues, keeping verified code\n", rec.Identity)
		return rec, false
	}
	next, err := rec.WithEnhancedCode(polished)
	if err != nil {
		return rec, false
	}
	return next, true
}

func (c *Controller) stepFix(ctx context.Context, rec *ConversionRecord, unit *perl.SourceUnit, steps *[]StepRecord) *ConversionRecord {
	if ctx.Err() != nil {
		appendStep(steps, "fix", rec.FixAttempts+1, StepFailed, "run canceled", rec.Phase, PhaseFailed)
		return c.fail(rec, ReasonRunCanceled, "canceled before fix", steps)
	}

	code, err := c.deps.Fixer.Fix(ctx, unit, rec.GeneratedCode, rec.Issues)
	if err != nil || code == "" {
		detail := "backend returned empty fix"
		if err != nil {
			detail = err.Error()
		}
		// A fix attempt that produced nothing still counts against the
		// bound, so a flaky backend cannot loop forever.
		burned, ferr := rec.FixFailed()
		if ferr != nil {
			burned = rec
		}
		appendStep(steps, "fix", burned.FixAttempts, StepFailed, detail, PhaseFixing, PhaseFailed)
		if ctx.Err() != nil {
			return c.fail(burned, ReasonRunCanceled, detail, steps)
		}
		return c.fail(burned, ReasonBackendUnavailable, detail, steps)
	}

	next, err := rec.FixApplied(code)
	if err != nil {
		appendStep(steps, "fix", rec.FixAttempts+1, StepFailed, err.Error(), PhaseFixing, PhaseFailed)
		return c.fail(rec, ReasonBackendUnavailable, err.Error(), steps)
	}
	appendStep(steps, "fix", next.FixAttempts, StepOK, "", PhaseFixing, PhaseAssuring)
	return next
}

// fail seals rec as Failed with reason and detail in its report.
func (c *Controller) fail(rec *ConversionRecord, reason FailReason, detail string, steps *[]StepRecord) *ConversionRecord {
	rep := c.buildReport(rec, PhaseFailed, reason, detail, *steps)
	next, err := rec.Fail(rep)
	if err != nil {
		log.Error("Record %s could not settle: %v\n", rec.Identity, err)
		return rec
	}
	log.Info("Record %s failed: %s (%s)\n", rec.Identity, reason, detail)
	return next
}

func (c *Controller) buildReport(rec *ConversionRecord, phase Phase, reason FailReason, detail string, steps []StepRecord) *RecordReport {
	now := time.Now()
	rep := &RecordReport{
		Identity:    rec.Identity,
		Phase:       phase,
		Reason:      reason,
		Detail:      detail,
		FixAttempts: rec.FixAttempts,
		Issues:      append([]Issue(nil), rec.Issues...),
		CodeChars:   len(rec.GeneratedCode),
		Heuristic:   rec.Analysis != nil && rec.Analysis.Heuristic,
		StartedAt:   rec.StartedAt,
		EndedAt:     now,
		DurationMS:  now.Sub(rec.StartedAt).Milliseconds(),
		Steps:       append([]StepRecord(nil), steps...),
	}
	if rec.GeneratedCode != "" {
		rep.QualityScore = c.deps.Checker.Score(rec.GeneratedCode)
	}
	return rep
}
