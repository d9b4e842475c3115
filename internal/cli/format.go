/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"scanstation/internal/domain"
	"scanstation/internal/pages"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *App) mark(m domain.Mark) string {
	if a.Glyphs {
		switch m {
		case domain.MarkDone:
			return "✓"
		case domain.MarkAnnotated:
			return "✎"
		}
		return "·"
	}
	switch m {
	case domain.MarkDone:
		return "x"
	case domain.MarkAnnotated:
		return "~"
	}
	return "-"
}

func (a *App) bar(pct, width int) string {
	filled := pct * width / 100
	full, empty := "#", "."
	if a.Glyphs {
		full, empty = "█", "░"
	}
	return "[" + strings.Repeat(full, filled) + strings.Repeat(empty, width-filled) + "]"
}

func (a *App) printPages(w io.Writer, ps []domain.Page) {
	fmt.Fprintf(w, "%-24s %-2s %-2s %-2s %-2s %-2s\n", "PAGE", "CL", "TL", "TS", "PR", "QC")
	for _, p := range ps {
		name := p.FileName
		if p.Spread {
			name += " (spread)"
		}
		fmt.Fprintf(w, "%-24s", name)
		for _, st := range domain.Stages {
			fmt.Fprintf(w, " %-2s", a.mark(p.Status.Mark(st)))
		}
		fmt.Fprintln(w)
	}
}

func (a *App) printSummary(w io.Writer, s pages.Summary) {
	fmt.Fprintf(w, "Pages: %d  Progress: %d%%  Open notes: %d\n", s.Total, s.Percent, s.Annotated)
	for _, st := range domain.Stages {
		pct := s.StagePercent(st)
		fmt.Fprintf(w, "  %-2s %s %3d%% (%d/%d)\n", st, a.bar(pct, 20), pct, s.Count(st), s.Total)
	}
}
