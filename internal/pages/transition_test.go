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

func TestApplyTranslationToggles(t *testing.T) {
	m := domain.StatusMap{}

	assert.False(t, ApplyTranslation(m, "01.jpg", "  ").Translated())
	assert.True(t, ApplyTranslation(m, "01.jpg", "hello").Translated())
	assert.False(t, ApplyTranslation(m, "01.jpg", "").Translated())
	assert.False(t, m.Entry("01.jpg").Translated())
}

func TestApplyTranslationLeavesProofreadAlone(t *testing.T) {
	m := domain.StatusMap{}
	ApplyCorrect(m, "01.jpg")
	e := ApplyTranslation(m, "01.jpg", "text")
	assert.Equal(t, domain.MarkDone, e.Proofread())
	assert.Equal(t, domain.MarkDone, e.Checked())
}

func TestAnnotationLifecycle(t *testing.T) {
	m := domain.StatusMap{}

	e := ApplyProofread(m, "01.jpg", "note")
	assert.Equal(t, domain.MarkAnnotated, e.Proofread())
	assert.Equal(t, domain.MarkAnnotated, e.Checked())

	e = ApplyProofread(m, "01.jpg", "")
	assert.Equal(t, domain.MarkNone, e.Proofread())
	assert.Equal(t, domain.MarkNone, e.Checked())

	e = ApplyCorrect(m, "01.jpg")
	assert.Equal(t, domain.MarkDone, e.Proofread())
	assert.Equal(t, domain.MarkDone, e.Checked())

	e = ApplyProofread(m, "01.jpg", "   ")
	assert.Equal(t, domain.MarkDone, e.Proofread(), "confirmed status survives clearing notes")
	assert.Equal(t, domain.MarkDone, e.Checked())
}

func TestApplyProofreadReopensConfirmedPage(t *testing.T) {
	m := domain.StatusMap{}
	ApplyCorrect(m, "01.jpg")
	e := ApplyProofread(m, "01.jpg", "fix the SFX")
	assert.Equal(t, domain.MarkAnnotated, e.Proofread())
}

func TestApplyProofreadClearOnUntouchedPage(t *testing.T) {
	m := domain.StatusMap{}
	e := ApplyProofread(m, "01.jpg", "")
	assert.Nil(t, e.PR)
	assert.Nil(t, e.QC)
	_, ok := m["01.jpg"]
	assert.True(t, ok)
}
