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

// Resolve merges a chapter's folder listings and persisted status into the
// ordered list of logical pages.
//
// Raw files become one page each, in natural order. CL and TS are derived from
// the cleaned and typeset listings by base name. Every typeset file whose base
// name is a spread replaces the raw pages it covers with a single entry placed
// where the first of them stood; spreads whose first page has no raw file are
// ignored. A spread counts as cleaned, translated and typeset; only its PR and
// QC come from the status map, keyed by the spread filename.
//
// The inputs are not modified.
func Resolve(rawFiles []string, cleanedBaseNames map[string]struct{}, typesetFiles []string, status domain.StatusMap) []domain.Page {
	raws := append([]string(nil), rawFiles...)
	SortNatural(raws)

	typesetBases := make(map[string]struct{}, len(typesetFiles))
	var spreads []string
	for _, f := range typesetFiles {
		base := BaseName(f)
		if _, ok := MatchSpread(base); ok {
			spreads = append(spreads, f)
			continue
		}
		typesetBases[base] = struct{}{}
	}
	SortNatural(spreads)

	out := make([]domain.Page, 0, len(raws))
	for _, f := range raws {
		base := BaseName(f)
		e := status.Entry(f)
		_, cl := cleanedBaseNames[base]
		_, ts := typesetBases[base]
		out = append(out, domain.Page{
			FileName: f,
			Status: domain.PageStatus{
				CL: cl,
				TL: e.Translated(),
				TS: ts,
				PR: e.Proofread(),
				QC: e.Checked(),
			},
		})
	}

	for _, f := range spreads {
		sp, _ := MatchSpread(BaseName(f))
		out = mergeSpread(out, f, sp, status.Entry(f))
	}
	return out
}

// ResolveListing is Resolve over a scanner listing.
func ResolveListing(l domain.Listing, status domain.StatusMap) []domain.Page {
	return Resolve(l.RawFiles, l.CleanedBaseNames, l.TypesetFiles, status)
}

func mergeSpread(list []domain.Page, file string, sp Spread, e domain.StatusEntry) []domain.Page {
	at := -1
	for i, p := range list {
		if !p.Spread && strings.HasPrefix(BaseName(p.FileName), sp.First) {
			at = i
			break
		}
	}
	if at < 0 {
		return list
	}

	merged := domain.Page{
		FileName: file,
		Spread:   true,
		Status: domain.PageStatus{
			CL: true,
			TL: true,
			TS: true,
			PR: e.Proofread(),
			QC: e.Checked(),
		},
	}
	out := make([]domain.Page, 0, len(list))
	for i, p := range list {
		if i == at {
			out = append(out, merged)
		}
		if !p.Spread && sp.Covers(BaseName(p.FileName)) {
			continue
		}
		out = append(out, p)
	}
	return out
}
