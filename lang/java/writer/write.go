/**
 * Copyright 2026 Perl2J Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package writer persists converted Java classes and run reports to an
// output directory tree, and renders the Maven pom.xml for the generated
// code.
package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/internal/pipeline"
	"github.com/perl2j/perl2j/internal/utils"
	"github.com/perl2j/perl2j/lang/java"
)

// Options configures a Writer.
type Options struct {
	// OutDir is the root of the output tree, "output" when empty.
	OutDir string

	// PomTemplate optionally names a pom.xml whose coordinates and
	// dependencies seed the generated pom.
	PomTemplate string
}

// Writer lays settled conversions out on disk:
//
//	<out>/success/<Class>.java        verified code
//	<out>/success/<Class>.report.json per-unit report
//	<out>/failed/<Class>.report.json  report (plus last draft, if any)
//	<out>/run_report.json             aggregate run report
//	<out>/summary.txt                 human-readable summary
//	<out>/pom.xml                     Maven build for the success tree
type Writer struct {
	opts Options

	mu   sync.Mutex
	seen map[string]int
}

var (
	_ pipeline.ArtifactSink = (*Writer)(nil)
	_ pipeline.ReportSink   = (*Writer)(nil)
)

// NewWriter returns a Writer rooted at opts.OutDir.
func NewWriter(opts Options) *Writer {
	if opts.OutDir == "" {
		opts.OutDir = "output"
	}
	return &Writer{opts: opts, seen: make(map[string]int)}
}

// WriteArtifact persists one terminal record. Succeeded records land
// under success/, failed ones under failed/. The last code draft of a
// failed record is still written so it can be inspected.
func (w *Writer) WriteArtifact(ctx context.Context, rec *pipeline.ConversionRecord) error {
	if rec == nil || !rec.Terminal() {
		return fmt.Errorf("artifact for %s not terminal", recIdentity(rec))
	}

	subdir := "failed"
	if rec.Phase == pipeline.PhaseSucceeded {
		subdir = "success"
	}
	dir := filepath.Join(w.opts.OutDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return utils.WrapError(err, "fail create artifact dir %s", dir)
	}

	class := w.className(rec)
	if rec.GeneratedCode != "" {
		path := filepath.Join(dir, class+".java")
		code := normalizeImports(rec.GeneratedCode)
		if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
			return utils.WrapError(err, "fail write class %s", path)
		}
		log.Debug("Wrote %s for %s\n", path, rec.Identity)
	}

	if rec.Report != nil {
		data, err := utils.MarshalJSONBytes(rec.Report)
		if err != nil {
			return utils.WrapError(err, "fail marshal report for %s", rec.Identity)
		}
		path := filepath.Join(dir, class+".report.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return utils.WrapError(err, "fail write report %s", path)
		}
	}
	return nil
}

// WriteRunReport persists the aggregate report, the text summary and the
// pom.xml. Report and summary failures are fatal for the run; a pom
// failure is only logged since the converted classes are already on
// disk.
func (w *Writer) WriteRunReport(ctx context.Context, report *pipeline.RunReport) error {
	if err := os.MkdirAll(w.opts.OutDir, 0o755); err != nil {
		return utils.WrapError(err, "fail create output dir %s", w.opts.OutDir)
	}

	reportPath := filepath.Join(w.opts.OutDir, "run_report.json")
	if err := report.SaveToFile(reportPath); err != nil {
		return utils.WrapError(err, "fail write run report %s", reportPath)
	}

	summaryPath := filepath.Join(w.opts.OutDir, "summary.txt")
	if err := os.WriteFile(summaryPath, []byte(report.Summary()), 0o644); err != nil {
		return utils.WrapError(err, "fail write summary %s", summaryPath)
	}

	pomPath := filepath.Join(w.opts.OutDir, "pom.xml")
	pom, err := w.buildPom()
	if err != nil {
		log.Error("Failed to build pom.xml: %v\n", err)
		return nil
	}
	if err := os.WriteFile(pomPath, []byte(pom), 0o644); err != nil {
		log.Error("Failed to write %s: %v\n", pomPath, err)
	}
	return nil
}

// className picks the file stem for a record's artifacts and suffixes
// repeats so two units never overwrite each other's output.
func (w *Writer) className(rec *pipeline.ConversionRecord) string {
	name := java.ClassNameFromCode(rec.GeneratedCode)
	if name == "" {
		name = java.ClassNameFor(rec.Identity)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen[name]++
	if n := w.seen[name]; n > 1 {
		return fmt.Sprintf("%s_%d", name, n)
	}
	return name
}

func recIdentity(rec *pipeline.ConversionRecord) string {
	if rec == nil {
		return "<nil>"
	}
	return rec.Identity
}
