/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pages is the page-status engine of a chapter. It merges folder
// listings and the persisted status map into an ordered list of logical pages,
// collapses two-page spreads, and reduces the list to progress figures.
//
// Nothing in this package touches the filesystem; callers supply the listings.
package pages

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

var spreadPattern = regexp.MustCompile(`^(\d+)[-_](\d+)$`)

// Spread is a typeset file that stands for two consecutive raw pages.
// First and Second are the page numbers left-padded to two digits.
type Spread struct {
	First  string
	Second string
}

// BaseName strips the extension from a filename. Two files belong to the same
// logical page when their base names are equal.
func BaseName(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

// MatchSpread reports whether base (a filename without extension) names a
// spread such as "02-03" or "7_8".
func MatchSpread(base string) (Spread, bool) {
	m := spreadPattern.FindStringSubmatch(base)
	if m == nil {
		return Spread{}, false
	}
	return Spread{First: padPage(m[1]), Second: padPage(m[2])}, true
}

// Covers reports whether a raw page with the given base name is one of the two
// halves of the spread. Raw files are expected to start with a zero-padded page number.
func (s Spread) Covers(rawBase string) bool {
	return strings.HasPrefix(rawBase, s.First) || strings.HasPrefix(rawBase, s.Second)
}

func padPage(n string) string {
	if len(n) >= 2 {
		return n
	}
	return strings.Repeat("0", 2-len(n)) + n
}

// SortNatural sorts filenames in place so embedded numbers compare by value
// ("2.jpg" before "10.jpg").
func SortNatural(files []string) {
	sort.SliceStable(files, func(i, j int) bool { return NaturalLess(files[i], files[j]) })
}

// NaturalLess is the ordering used by SortNatural.
func NaturalLess(a, b string) bool { return natural.Less(a, b) }
