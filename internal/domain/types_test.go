/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"testing"
)

func TestStatusMapJSONKeepsKeyNames(t *testing.T) {
	tl := true
	pr := MarkAnnotated
	qc := MarkNone
	m := StatusMap{"01.jpg": {TL: &tl, PR: &pr, QC: &qc}}

	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `{"01.jpg":{"TL":true,"PR":"annotated","QC":false}}`; got != want {
		t.Fatalf("marshal = %s, want %s", got, want)
	}

	var back StatusMap
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	e := back.Entry("01.jpg")
	if !e.Translated() || e.Proofread() != MarkAnnotated || e.Checked() != MarkNone {
		t.Fatalf("unexpected entry after decode: %+v", e)
	}
}

func TestMarkRejectsUnknownString(t *testing.T) {
	var m Mark
	if err := json.Unmarshal([]byte(`"maybe"`), &m); err == nil {
		t.Fatalf("expected error for unknown mark string")
	}
	if err := json.Unmarshal([]byte(`3`), &m); err == nil {
		t.Fatalf("expected error for numeric mark")
	}
}

func TestPartialEntryDefaults(t *testing.T) {
	var m StatusMap
	if err := json.Unmarshal([]byte(`{"02.jpg":{"PR":true}}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	e := m.Entry("02.jpg")
	if e.Translated() {
		t.Fatalf("TL should default to false")
	}
	if e.Proofread() != MarkDone || e.Checked() != MarkNone {
		t.Fatalf("unexpected PR/QC: %v/%v", e.Proofread(), e.Checked())
	}
	if (StatusMap(nil)).Entry("x") != (StatusEntry{}) {
		t.Fatalf("nil map should yield zero entry")
	}
}

func TestCompletedCountsOnlyConfirmed(t *testing.T) {
	s := PageStatus{CL: true, TL: true, TS: false, PR: MarkAnnotated, QC: MarkDone}
	if got := s.Completed(); got != 3 {
		t.Fatalf("Completed() = %d, want 3", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tl := true
	m := StatusMap{"a.jpg": {TL: &tl}}
	c := m.Clone()
	*c["a.jpg"].TL = false
	if !m.Entry("a.jpg").Translated() {
		t.Fatalf("clone shares pointers with original")
	}
}
