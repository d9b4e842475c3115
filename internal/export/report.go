/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export produces release and reporting artifacts for a chapter:
// a CBZ archive of the Final pages and a PDF status report.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"scanstation/internal/domain"
	"scanstation/internal/pages"
)

// ReportMeta describes the chapter a report is generated for.
type ReportMeta struct {
	Repo      string
	Project   string
	Chapter   string
	Generated time.Time
}

type rgb struct{ r, g, b int }

var stageColors = map[domain.Stage]rgb{
	domain.StageCL: {96, 125, 139},
	domain.StageTL: {33, 150, 243},
	domain.StageTS: {156, 39, 176},
	domain.StagePR: {255, 152, 0},
	domain.StageQC: {76, 175, 80},
}

const (
	reportMargin = 15.0
	rowHeight    = 6.0
)

// ChapterReportPDF writes an A4 report with per-stage progress bars and one row per logical page.
func ChapterReportPDF(outPath string, meta ReportMeta, ps []domain.Page) error {
	if meta.Generated.IsZero() {
		meta.Generated = time.Now()
	}
	sum := pages.Summarize(ps)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(reportMargin, reportMargin, reportMargin)
	pdf.SetAutoPageBreak(true, reportMargin)
	pdf.SetCreationDate(meta.Generated)
	pdf.SetTitle(fmt.Sprintf("%s - %s status", meta.Project, meta.Chapter), true)
	pdf.SetAuthor("Scanstation", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*reportMargin

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, tr(meta.Chapter), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	sub := meta.Project
	if meta.Repo != "" {
		sub = meta.Repo + " / " + meta.Project
	}
	pdf.CellFormat(contentW, 6, tr(sub), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 6, "Generated "+meta.Generated.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 8, fmt.Sprintf("Overall progress: %d%%  (%d pages, %d with open notes)", sum.Percent, sum.Total, sum.Annotated), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	// stage bars
	labelW, pctW := 12.0, 30.0
	barW := contentW - labelW - pctW
	pdf.SetFont("Helvetica", "", 10)
	for _, st := range domain.Stages {
		pct := sum.StagePercent(st)
		x, y := pdf.GetXY()
		pdf.CellFormat(labelW, rowHeight, string(st), "", 0, "L", false, 0, "")
		pdf.SetFillColor(230, 230, 230)
		pdf.Rect(x+labelW, y+1, barW, rowHeight-2, "F")
		if pct > 0 {
			c := stageColors[st]
			pdf.SetFillColor(c.r, c.g, c.b)
			pdf.Rect(x+labelW, y+1, barW*float64(pct)/100, rowHeight-2, "F")
		}
		pdf.SetXY(x+labelW+barW, y)
		pdf.CellFormat(pctW, rowHeight, fmt.Sprintf("%d/%d  %d%%", sum.Count(st), sum.Total, pct), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	numW, markW := 12.0, 14.0
	fileW := contentW - numW - markW*float64(len(domain.Stages))
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(numW, rowHeight, "#", "1", 0, "C", true, 0, "")
		pdf.CellFormat(fileW, rowHeight, "Page", "1", 0, "L", true, 0, "")
		for _, st := range domain.Stages {
			pdf.CellFormat(markW, rowHeight, string(st), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 10)
	}
	header()
	_, pageH := pdf.GetPageSize()
	for i, p := range ps {
		if pdf.GetY()+rowHeight > pageH-reportMargin {
			pdf.AddPage()
			header()
		}
		name := p.FileName
		if p.Spread {
			name += " (spread)"
		}
		pdf.CellFormat(numW, rowHeight, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(fileW, rowHeight, tr(name), "1", 0, "L", false, 0, "")
		for _, st := range domain.Stages {
			pdf.CellFormat(markW, rowHeight, markGlyph(p.Status.Mark(st)), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(ps) == 0 {
		pdf.CellFormat(contentW, rowHeight, "No pages in Raws.", "1", 1, "C", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// markGlyph uses plain ASCII so the core Helvetica font can render it.
func markGlyph(m domain.Mark) string {
	switch m {
	case domain.MarkDone:
		return "x"
	case domain.MarkAnnotated:
		return "~"
	default:
		return "-"
	}
}
