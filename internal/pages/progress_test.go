/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scanstation/internal/domain"
)

func TestProgressPercent(t *testing.T) {
	full := domain.Page{FileName: "01.jpg", Status: domain.PageStatus{CL: true, TL: true, TS: true, PR: domain.MarkDone, QC: domain.MarkDone}}
	cleanedOnly := domain.Page{FileName: "02.jpg", Status: domain.PageStatus{CL: true}}

	assert.Equal(t, 60, ProgressPercent([]domain.Page{full, cleanedOnly}))
	assert.Equal(t, 100, ProgressPercent([]domain.Page{full}))
}

func TestProgressPercentZeroPages(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Equal(t, 0, ProgressPercent(nil))
		assert.Equal(t, 0, ProgressPercent([]domain.Page{}))
	})
}

func TestProgressIgnoresAnnotated(t *testing.T) {
	p := domain.Page{Status: domain.PageStatus{PR: domain.MarkAnnotated, QC: domain.MarkAnnotated}}
	assert.Equal(t, 0, ProgressPercent([]domain.Page{p}))
}

func TestProgressFloors(t *testing.T) {
	// 1 of 15 stages = 6.67%
	ps := []domain.Page{{Status: domain.PageStatus{CL: true}}, {}, {}}
	assert.Equal(t, 6, ProgressPercent(ps))
}

func TestSummarize(t *testing.T) {
	ps := []domain.Page{
		{Status: domain.PageStatus{CL: true, TL: true, TS: true, PR: domain.MarkDone, QC: domain.MarkDone}},
		{Status: domain.PageStatus{CL: true, PR: domain.MarkAnnotated, QC: domain.MarkAnnotated}},
		{Status: domain.PageStatus{}},
	}
	s := Summarize(ps)
	assert.Equal(t, Summary{Total: 3, CL: 2, TL: 1, TS: 1, PR: 1, QC: 1, Annotated: 1, Percent: 40}, s)
	assert.Equal(t, 67, s.StagePercent(domain.StageCL))
	assert.Equal(t, 33, s.StagePercent(domain.StagePR))
	assert.Equal(t, 0, Summary{}.StagePercent(domain.StageTL))
}
