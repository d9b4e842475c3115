/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain holds the data model shared by the page-status engine,
// its storage collaborators and the command line.
package domain

import (
	"encoding/json"
	"fmt"
)

// Stage names one step of the scanlation pipeline. The string values are the
// keys used in page_status.json and must not change.
type Stage string

const (
	StageCL Stage = "CL" // cleaned
	StageTL Stage = "TL" // translated
	StageTS Stage = "TS" // typeset
	StagePR Stage = "PR" // proofread
	StageQC Stage = "QC" // quality check
)

// Stages lists all pipeline stages in display order.
var Stages = []Stage{StageCL, StageTL, StageTS, StagePR, StageQC}

// Mark is the tri-state value of the PR and QC stages: untouched, annotated
// (open proofreading notes) or confirmed. On disk it is false, "annotated" or true.
type Mark uint8

const (
	MarkNone Mark = iota
	MarkAnnotated
	MarkDone
)

const annotatedLiteral = "annotated"

// MarkOf converts a plain boolean stage value into a Mark.
func MarkOf(b bool) Mark {
	if b {
		return MarkDone
	}
	return MarkNone
}

// Done reports whether the mark is exactly true (confirmed).
func (m Mark) Done() bool { return m == MarkDone }

func (m Mark) String() string {
	switch m {
	case MarkDone:
		return "true"
	case MarkAnnotated:
		return annotatedLiteral
	default:
		return "false"
	}
}

func (m Mark) MarshalJSON() ([]byte, error) {
	switch m {
	case MarkDone:
		return []byte("true"), nil
	case MarkAnnotated:
		return []byte(`"` + annotatedLiteral + `"`), nil
	default:
		return []byte("false"), nil
	}
}

func (m *Mark) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "true":
		*m = MarkDone
		return nil
	case "false", "null":
		*m = MarkNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("mark: unsupported value %s", string(b))
	}
	if s != annotatedLiteral {
		return fmt.Errorf("mark: unsupported string %q", s)
	}
	*m = MarkAnnotated
	return nil
}

// PageStatus is the five-stage completion status of one logical page.
// CL and TS are always derived from folder contents; TL, PR and QC come from
// the persisted status map.
type PageStatus struct {
	CL bool `json:"CL"`
	TL bool `json:"TL"`
	TS bool `json:"TS"`
	PR Mark `json:"PR"`
	QC Mark `json:"QC"`
}

// Mark returns the value of the given stage as a Mark.
func (s PageStatus) Mark(stage Stage) Mark {
	switch stage {
	case StageCL:
		return MarkOf(s.CL)
	case StageTL:
		return MarkOf(s.TL)
	case StageTS:
		return MarkOf(s.TS)
	case StagePR:
		return s.PR
	case StageQC:
		return s.QC
	}
	return MarkNone
}

// Completed counts the stages whose value is exactly true.
func (s PageStatus) Completed() int {
	n := 0
	for _, st := range Stages {
		if s.Mark(st).Done() {
			n++
		}
	}
	return n
}

// Page is one logical page of a chapter: a single raw image or a merged
// two-page spread taken from the Typesetted folder.
type Page struct {
	FileName string     `json:"fileName"`
	Status   PageStatus `json:"status"`
	Spread   bool       `json:"spread,omitempty"`
}

// StatusEntry is the persisted, partial status of a page. Absent fields
// default to false.
type StatusEntry struct {
	TL *bool `json:"TL,omitempty"`
	PR *Mark `json:"PR,omitempty"`
	QC *Mark `json:"QC,omitempty"`
}

// Translated returns TL, defaulting to false.
func (e StatusEntry) Translated() bool { return e.TL != nil && *e.TL }

// Proofread returns PR, defaulting to MarkNone.
func (e StatusEntry) Proofread() Mark {
	if e.PR == nil {
		return MarkNone
	}
	return *e.PR
}

// Checked returns QC, defaulting to MarkNone.
func (e StatusEntry) Checked() Mark {
	if e.QC == nil {
		return MarkNone
	}
	return *e.QC
}

// StatusMap maps a page filename (raw or spread) to its persisted status.
type StatusMap map[string]StatusEntry

// Entry returns the entry for file, or the zero entry when absent.
func (m StatusMap) Entry(file string) StatusEntry {
	if m == nil {
		return StatusEntry{}
	}
	return m[file]
}

// Clone returns a deep copy of the map.
func (m StatusMap) Clone() StatusMap {
	out := make(StatusMap, len(m))
	for k, e := range m {
		var c StatusEntry
		if e.TL != nil {
			v := *e.TL
			c.TL = &v
		}
		if e.PR != nil {
			v := *e.PR
			c.PR = &v
		}
		if e.QC != nil {
			v := *e.QC
			c.QC = &v
		}
		out[k] = c
	}
	return out
}

// Listing is what the folder scanner found in one chapter.
type Listing struct {
	RawFiles         []string            // image files in Raws, natural order
	CleanedBaseNames map[string]struct{} // base names present in Raws Cleaned
	TypesetFiles     []string            // every file in Typesetted, spreads included
}
