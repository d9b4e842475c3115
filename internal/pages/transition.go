/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pages

import (
	"strings"

	"scanstation/internal/domain"
)

// The transitions below update one entry of a status map in place and return
// the new entry. m must be non-nil.

// ApplyTranslation marks the page translated iff text has non-whitespace content.
func ApplyTranslation(m domain.StatusMap, pageFile, text string) domain.StatusEntry {
	e := m[pageFile]
	tl := strings.TrimSpace(text) != ""
	e.TL = &tl
	m[pageFile] = e
	return e
}

// ApplyProofread records proofreading notes. Non-empty notes set PR and QC to
// annotated. Clearing the notes reverts an annotated stage to false but leaves
// a confirmed stage alone.
func ApplyProofread(m domain.StatusMap, pageFile, annotations string) domain.StatusEntry {
	e := m[pageFile]
	if strings.TrimSpace(annotations) != "" {
		e.PR = markPtr(domain.MarkAnnotated)
		e.QC = markPtr(domain.MarkAnnotated)
	} else {
		if e.Proofread() == domain.MarkAnnotated {
			e.PR = markPtr(domain.MarkNone)
		}
		if e.Checked() == domain.MarkAnnotated {
			e.QC = markPtr(domain.MarkNone)
		}
	}
	m[pageFile] = e
	return e
}

// ApplyCorrect confirms PR and QC regardless of their previous value.
func ApplyCorrect(m domain.StatusMap, pageFile string) domain.StatusEntry {
	e := m[pageFile]
	e.PR = markPtr(domain.MarkDone)
	e.QC = markPtr(domain.MarkDone)
	m[pageFile] = e
	return e
}

func markPtr(m domain.Mark) *domain.Mark { return &m }
