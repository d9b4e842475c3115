/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pages

import (
	"math"

	"scanstation/internal/domain"
)

// ProgressPercent is the share of confirmed stages over all pages, floored to
// an integer in [0, 100]. "annotated" does not count. No pages yields 0.
func ProgressPercent(pages []domain.Page) int {
	if len(pages) == 0 {
		return 0
	}
	done := 0
	for _, p := range pages {
		done += p.Status.Completed()
	}
	return 100 * done / (len(domain.Stages) * len(pages))
}

// Summary holds per-stage counts for a chapter dashboard.
type Summary struct {
	Total     int `json:"total"`
	CL        int `json:"cl"`
	TL        int `json:"tl"`
	TS        int `json:"ts"`
	PR        int `json:"pr"`
	QC        int `json:"qc"`
	Annotated int `json:"annotated"` // pages with open proofreading notes
	Percent   int `json:"percent"`
}

// Summarize counts confirmed stages across pages.
func Summarize(pages []domain.Page) Summary {
	s := Summary{Total: len(pages), Percent: ProgressPercent(pages)}
	for _, p := range pages {
		st := p.Status
		if st.CL {
			s.CL++
		}
		if st.TL {
			s.TL++
		}
		if st.TS {
			s.TS++
		}
		if st.PR.Done() {
			s.PR++
		}
		if st.QC.Done() {
			s.QC++
		}
		if st.PR == domain.MarkAnnotated {
			s.Annotated++
		}
	}
	return s
}

// Count returns the number of pages whose stage is confirmed.
func (s Summary) Count(stage domain.Stage) int {
	switch stage {
	case domain.StageCL:
		return s.CL
	case domain.StageTL:
		return s.TL
	case domain.StageTS:
		return s.TS
	case domain.StagePR:
		return s.PR
	case domain.StageQC:
		return s.QC
	}
	return 0
}

// StagePercent is the rounded share of pages that completed stage.
func (s Summary) StagePercent(stage domain.Stage) int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.Count(stage)) / float64(s.Total)))
}
