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
	"time"

	"github.com/perl2j/perl2j/lang/perl"
)

// Phase is the conversion state of one record.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseAnalyzed  Phase = "analyzed"
	PhaseGenerated Phase = "generated"
	PhaseAssuring  Phase = "assuring"
	PhaseFixing    Phase = "fixing"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether the phase is final.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Issue kinds produced by assurance checks.
const (
	IssueSyntax       = "syntax"
	IssueStructure    = "structure"
	IssueCompleteness = "completeness"
	IssuePlaceholder  = "placeholder"
)

// Issue is one structural finding from an assurance pass.
type Issue struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StepRecord is an immutable log entry for one step execution. The
// sequence of step records for a record lands in its terminal report.
type StepRecord struct {
	StepName string     `json:"step_name"`
	Attempt  int        `json:"attempt"`
	Status   StepStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
	From     Phase      `json:"from"`
	To       Phase      `json:"to"`
	Time     time.Time  `json:"time"`
}

// StepStatus is the outcome of a step run.
type StepStatus string

const (
	StepOK     StepStatus = "ok"
	StepFailed StepStatus = "failed"
)

// ConversionRecord tracks one source unit through the pipeline. Records
// are updated functionally: every transition clones and returns a new
// value, and a record becomes immutable once its phase is terminal.
type ConversionRecord struct {
	Identity string `json:"identity"`
	Phase    Phase  `json:"phase"`

	// Analysis is set exactly once, by the analysis step.
	Analysis *perl.CodeAnalysis `json:"analysis,omitempty"`

	// GeneratedCode is overwritten by each generation or fix attempt and
	// is never empty in Generated, Assuring, Fixing or Succeeded.
	GeneratedCode string `json:"generated_code,omitempty"`

	// Issues hold the findings of the latest assurance pass only.
	Issues []Issue `json:"issues,omitempty"`

	// FixAttempts grows monotonically and never exceeds the configured
	// maximum.
	FixAttempts int `json:"fix_attempts"`

	// Report is attached when the record reaches a terminal phase.
	Report *RecordReport `json:"report,omitempty"`

	StartedAt time.Time `json:"started_at"`
}

// NewRecord returns a Pending record for identity.
func NewRecord(identity string) *ConversionRecord {
	return &ConversionRecord{
		Identity:  identity,
		Phase:     PhasePending,
		StartedAt: time.Now(),
	}
}

// Terminal reports whether the record reached Succeeded or Failed.
func (r *ConversionRecord) Terminal() bool {
	return r.Phase.Terminal()
}

// Clone returns a copy with its own issues slice. Analysis and Report are
// shared; both are write-once.
func (r *ConversionRecord) Clone() *ConversionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Issues = append([]Issue(nil), r.Issues...)
	return &out
}

func (r *ConversionRecord) illegal(to Phase, detail string) error {
	return &IllegalTransitionError{Identity: r.Identity, From: r.Phase, To: to, Detail: detail}
}

// WithAnalysis moves Pending -> Analyzed, attaching the analysis document.
func (r *ConversionRecord) WithAnalysis(a *perl.CodeAnalysis) (*ConversionRecord, error) {
	if r.Phase != PhasePending {
		return r, r.illegal(PhaseAnalyzed, "analysis only follows pending")
	}
	if r.Analysis != nil {
		return r, r.illegal(PhaseAnalyzed, "analysis already set")
	}
	if a == nil {
		return r, r.illegal(PhaseAnalyzed, "analysis is nil")
	}
	next := r.Clone()
	next.Analysis = a
	next.Phase = PhaseAnalyzed
	return next, nil
}

// WithGeneratedCode moves Analyzed -> Generated with the first code draft.
func (r *ConversionRecord) WithGeneratedCode(code string) (*ConversionRecord, error) {
	if r.Phase != PhaseAnalyzed {
		return r, r.illegal(PhaseGenerated, "generation only follows analysis")
	}
	if code == "" {
		return r, r.illegal(PhaseGenerated, "generated code is empty")
	}
	next := r.Clone()
	next.GeneratedCode = code
	next.Phase = PhaseGenerated
	return next, nil
}

// StartAssurance moves Generated -> Assuring. A record re-entering
// assurance after a fix is already in Assuring and passes through.
func (r *ConversionRecord) StartAssurance() (*ConversionRecord, error) {
	switch r.Phase {
	case PhaseGenerated:
		next := r.Clone()
		next.Phase = PhaseAssuring
		return next, nil
	case PhaseAssuring:
		return r, nil
	default:
		return r, r.illegal(PhaseAssuring, "assurance follows generation or a fix")
	}
}

// WithIssues replaces the record's issues with the findings of the pass
// that just ran. Previous findings are discarded, never merged.
func (r *ConversionRecord) WithIssues(issues []Issue) (*ConversionRecord, error) {
	if r.Phase != PhaseAssuring {
		return r, r.illegal(PhaseAssuring, "issues only change during assurance")
	}
	next := r.Clone()
	next.Issues = append([]Issue(nil), issues...)
	return next, nil
}

// WithEnhancedCode overwrites the code while still in Assuring. Used for
// the optional final polish of a passing draft before it is sealed.
func (r *ConversionRecord) WithEnhancedCode(code string) (*ConversionRecord, error) {
	if r.Phase != PhaseAssuring {
		return r, r.illegal(PhaseAssuring, "enhancement only happens during assurance")
	}
	if code == "" {
		return r, r.illegal(PhaseAssuring, "enhanced code is empty")
	}
	next := r.Clone()
	next.GeneratedCode = code
	return next, nil
}

// BeginFix moves Assuring -> Fixing. Requires open issues.
func (r *ConversionRecord) BeginFix() (*ConversionRecord, error) {
	if r.Phase != PhaseAssuring {
		return r, r.illegal(PhaseFixing, "fixing follows a failed assurance")
	}
	if len(r.Issues) == 0 {
		return r, r.illegal(PhaseFixing, "no issues to fix")
	}
	next := r.Clone()
	next.Phase = PhaseFixing
	return next, nil
}

// FixApplied moves Fixing -> Assuring with the repaired code, consuming
// one fix attempt.
func (r *ConversionRecord) FixApplied(code string) (*ConversionRecord, error) {
	if r.Phase != PhaseFixing {
		return r, r.illegal(PhaseAssuring, "not fixing")
	}
	if code == "" {
		return r, r.illegal(PhaseAssuring, "fixed code is empty")
	}
	next := r.Clone()
	next.GeneratedCode = code
	next.FixAttempts++
	next.Phase = PhaseAssuring
	return next, nil
}

// FixFailed consumes one fix attempt without producing code. A fix that
// could not run still counts, so a flaky backend cannot retry forever.
func (r *ConversionRecord) FixFailed() (*ConversionRecord, error) {
	if r.Phase != PhaseFixing {
		return r, r.illegal(PhaseFixing, "not fixing")
	}
	next := r.Clone()
	next.FixAttempts++
	return next, nil
}

// Succeed seals the record: Assuring with no open issues -> Succeeded.
func (r *ConversionRecord) Succeed(rep *RecordReport) (*ConversionRecord, error) {
	if r.Phase != PhaseAssuring {
		return r, r.illegal(PhaseSucceeded, "success follows assurance")
	}
	if len(r.Issues) != 0 {
		return r, r.illegal(PhaseSucceeded, "open issues remain")
	}
	if r.GeneratedCode == "" {
		return r, r.illegal(PhaseSucceeded, "no generated code")
	}
	next := r.Clone()
	next.Phase = PhaseSucceeded
	next.Report = rep
	return next, nil
}

// Fail seals the record from any non-terminal phase. The failure reason
// travels in the report.
func (r *ConversionRecord) Fail(rep *RecordReport) (*ConversionRecord, error) {
	if r.Terminal() {
		return r, r.illegal(PhaseFailed, "record already terminal")
	}
	next := r.Clone()
	next.Phase = PhaseFailed
	next.Report = rep
	return next, nil
}
