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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordReport is the terminal metadata of one conversion record.
type RecordReport struct {
	Identity    string       `json:"identity"`
	Phase       Phase        `json:"phase"`
	Reason      FailReason   `json:"reason,omitempty"`
	Detail      string       `json:"detail,omitempty"`
	FixAttempts int          `json:"fix_attempts"`
	Issues      []Issue      `json:"issues,omitempty"`
	QualityScore int         `json:"quality_score,omitempty"`
	CodeChars   int          `json:"code_chars"`
	Enhanced    bool         `json:"enhanced,omitempty"`
	Heuristic   bool         `json:"heuristic_analysis,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     time.Time    `json:"ended_at"`
	DurationMS  int64        `json:"duration_ms"`
	Steps       []StepRecord `json:"steps,omitempty"`
}

// RunReport aggregates one batch run.
type RunReport struct {
	RunID              string          `json:"run_id"`
	StartedAt          time.Time       `json:"started_at"`
	EndedAt            time.Time       `json:"ended_at"`
	DurationMS         int64           `json:"duration_ms"`
	TotalUnits         int             `json:"total_units"`
	Succeeded          int             `json:"succeeded"`
	Failed             int             `json:"failed"`
	AverageFixAttempts float64         `json:"average_fix_attempts"`
	Concurrency        int             `json:"concurrency"`
	Records            []*RecordReport `json:"records"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// BuildRunReport derives the aggregate from settled records. The average
// counts fix attempts among Succeeded records only; with none succeeded
// it is zero. Record order follows the input slice, which the controller
// keeps aligned with store iteration order.
func BuildRunReport(runID string, startedAt, endedAt time.Time, records []*ConversionRecord, concurrency int) *RunReport {
	report := &RunReport{
		RunID:       runID,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		DurationMS:  endedAt.Sub(startedAt).Milliseconds(),
		TotalUnits:  len(records),
		Concurrency: concurrency,
	}

	fixTotal := 0
	for _, rec := range records {
		if rec == nil {
			continue
		}
		switch rec.Phase {
		case PhaseSucceeded:
			report.Succeeded++
			fixTotal += rec.FixAttempts
		case PhaseFailed:
			report.Failed++
		}
		if rec.Report != nil {
			report.Records = append(report.Records, rec.Report)
		}
	}
	if report.Succeeded > 0 {
		report.AverageFixAttempts = float64(fixTotal) / float64(report.Succeeded)
	}
	return report
}

// SaveToFile writes an indented JSON snapshot of the run report.
func (r *RunReport) SaveToFile(path string) error {
	if r == nil {
		return nil
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Summary renders the human-readable run digest.
func (r *RunReport) Summary() string {
	var sb strings.Builder
	sb.WriteString("PERL TO JAVA CONVERSION SUMMARY\n")
	sb.WriteString("===============================\n")
	fmt.Fprintf(&sb, "Run:                %s\n", r.RunID)
	fmt.Fprintf(&sb, "Total units:        %d\n", r.TotalUnits)
	fmt.Fprintf(&sb, "Succeeded:          %d\n", r.Succeeded)
	fmt.Fprintf(&sb, "Failed:             %d\n", r.Failed)
	fmt.Fprintf(&sb, "Avg fix attempts:   %.2f\n", r.AverageFixAttempts)
	fmt.Fprintf(&sb, "Duration:           %s\n", time.Duration(r.DurationMS)*time.Millisecond)
	if r.Failed > 0 {
		sb.WriteString("\nFailed units:\n")
		for _, rec := range r.Records {
			if rec.Phase == PhaseFailed {
				fmt.Fprintf(&sb, "  %-40s %s", rec.Identity, rec.Reason)
				if rec.Detail != "" {
					fmt.Fprintf(&sb, " (%s)", rec.Detail)
				}
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}
