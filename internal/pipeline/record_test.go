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
	"testing"

	"github.com/perl2j/perl2j/lang/perl"
)

func analysisFor(t *testing.T, code string) *perl.CodeAnalysis {
	t.Helper()
	return perl.HeuristicAnalysis(perl.Parse(code, "unit.pl"))
}

func recordInAssurance(t *testing.T) *ConversionRecord {
	t.Helper()
	rec := NewRecord("unit.pl")
	rec, err := rec.WithAnalysis(analysisFor(t, "sub run { return 1; }\n"))
	if err != nil {
		t.Fatalf("WithAnalysis: %v", err)
	}
	rec, err = rec.WithGeneratedCode("public class Unit {}")
	if err != nil {
		t.Fatalf("WithGeneratedCode: %v", err)
	}
	rec, err = rec.StartAssurance()
	if err != nil {
		t.Fatalf("StartAssurance: %v", err)
	}
	return rec
}

func TestRecordHappyTransitions(t *testing.T) {
	rec := NewRecord("unit.pl")
	if rec.Phase != PhasePending || rec.Terminal() {
		t.Fatalf("new record: phase %s terminal %v", rec.Phase, rec.Terminal())
	}

	rec = recordInAssurance(t)
	if rec.Phase != PhaseAssuring {
		t.Fatalf("phase after StartAssurance: %s", rec.Phase)
	}

	rec, err := rec.WithIssues(nil)
	if err != nil {
		t.Fatalf("WithIssues: %v", err)
	}
	sealed, err := rec.Succeed(&RecordReport{Identity: rec.Identity, Phase: PhaseSucceeded})
	if err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	if sealed.Phase != PhaseSucceeded || !sealed.Terminal() {
		t.Errorf("sealed: phase %s", sealed.Phase)
	}
	if sealed.Report == nil {
		t.Error("report not attached at terminal")
	}
	if sealed.FixAttempts != 0 {
		t.Errorf("fix attempts: %d", sealed.FixAttempts)
	}
}

func TestRecordFixLoopTransitions(t *testing.T) {
	rec := recordInAssurance(t)

	rec, err := rec.WithIssues([]Issue{{Kind: IssueStructure, Message: "unbalanced braces"}})
	if err != nil {
		t.Fatalf("WithIssues: %v", err)
	}
	rec, err = rec.BeginFix()
	if err != nil {
		t.Fatalf("BeginFix: %v", err)
	}
	if rec.Phase != PhaseFixing {
		t.Fatalf("phase: %s", rec.Phase)
	}

	rec, err = rec.FixApplied("public class Unit { }")
	if err != nil {
		t.Fatalf("FixApplied: %v", err)
	}
	if rec.Phase != PhaseAssuring || rec.FixAttempts != 1 {
		t.Errorf("after fix: phase %s attempts %d", rec.Phase, rec.FixAttempts)
	}

	// A second pass replaces, never merges, the previous findings.
	rec, err = rec.WithIssues([]Issue{{Kind: IssuePlaceholder, Message: "TODO left"}})
	if err != nil {
		t.Fatalf("WithIssues: %v", err)
	}
	if len(rec.Issues) != 1 || rec.Issues[0].Kind != IssuePlaceholder {
		t.Errorf("issues not replaced: %+v", rec.Issues)
	}
}

func TestRecordFixFailedConsumesAttempt(t *testing.T) {
	rec := recordInAssurance(t)
	rec, _ = rec.WithIssues([]Issue{{Kind: IssueSyntax, Message: "x"}})
	rec, _ = rec.BeginFix()

	burned, err := rec.FixFailed()
	if err != nil {
		t.Fatalf("FixFailed: %v", err)
	}
	if burned.FixAttempts != 1 {
		t.Errorf("attempts after failed fix: %d, want 1", burned.FixAttempts)
	}
	if burned.GeneratedCode != rec.GeneratedCode {
		t.Error("failed fix must not change the code")
	}
}

func TestRecordIllegalTransitions(t *testing.T) {
	analysis := analysisFor(t, "sub run { return 1; }\n")

	t.Run("analysis set exactly once", func(t *testing.T) {
		rec := NewRecord("unit.pl")
		rec, err := rec.WithAnalysis(analysis)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := rec.WithAnalysis(analysis); err == nil {
			t.Error("second WithAnalysis should fail")
		}
	})

	t.Run("generate requires analysis", func(t *testing.T) {
		rec := NewRecord("unit.pl")
		if _, err := rec.WithGeneratedCode("x"); err == nil {
			t.Error("WithGeneratedCode from pending should fail")
		}
	})

	t.Run("generated code never empty", func(t *testing.T) {
		rec := NewRecord("unit.pl")
		rec, _ = rec.WithAnalysis(analysis)
		if _, err := rec.WithGeneratedCode(""); err == nil {
			t.Error("empty generated code should be rejected")
		}
	})

	t.Run("succeed requires no issues", func(t *testing.T) {
		rec := recordInAssurance(t)
		rec, _ = rec.WithIssues([]Issue{{Kind: IssueSyntax, Message: "x"}})
		if _, err := rec.Succeed(nil); err == nil {
			t.Error("Succeed with open issues should fail")
		}
	})

	t.Run("fix requires issues", func(t *testing.T) {
		rec := recordInAssurance(t)
		if _, err := rec.BeginFix(); err == nil {
			t.Error("BeginFix without issues should fail")
		}
	})

	t.Run("empty fix output rejected", func(t *testing.T) {
		rec := recordInAssurance(t)
		rec, _ = rec.WithIssues([]Issue{{Kind: IssueSyntax, Message: "x"}})
		rec, _ = rec.BeginFix()
		if _, err := rec.FixApplied(""); err == nil {
			t.Error("FixApplied with empty code should fail")
		}
	})

	t.Run("terminal records are sealed", func(t *testing.T) {
		rec := recordInAssurance(t)
		rec, _ = rec.WithIssues(nil)
		sealed, err := rec.Succeed(&RecordReport{})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := sealed.Fail(&RecordReport{}); err == nil {
			t.Error("Fail on succeeded record should be rejected")
		}
		if _, err := sealed.StartAssurance(); err == nil {
			t.Error("StartAssurance on terminal record should be rejected")
		}
	})

	t.Run("no re-entry into generation", func(t *testing.T) {
		rec := recordInAssurance(t)
		if _, err := rec.WithGeneratedCode("y"); err == nil {
			t.Error("WithGeneratedCode after leaving Generated should fail")
		}
	})
}

func TestRecordCloneIndependence(t *testing.T) {
	rec := recordInAssurance(t)
	rec, _ = rec.WithIssues([]Issue{{Kind: IssueSyntax, Message: "a"}})

	clone := rec.Clone()
	clone.Issues[0].Message = "mutated"
	if rec.Issues[0].Message != "a" {
		t.Error("clone shares issue storage with original")
	}
}
