/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"scanstation/internal/domain"
	"scanstation/internal/pages"
)

var imageExt = regexp.MustCompile(`(?i)\.(jpe?g|png|webp)$`)

// IsImage reports whether name has one of the page image extensions.
func IsImage(name string) bool { return imageExt.MatchString(name) }

// ScanRawFiles lists page images in <chapter>/Raws in natural order.
func ScanRawFiles(chapterPath string) ([]string, error) {
	files, err := listFiles(filepath.Join(chapterPath, RawsDir))
	if err != nil {
		return nil, err
	}
	out := files[:0]
	for _, f := range files {
		if IsImage(f) {
			out = append(out, f)
		}
	}
	pages.SortNatural(out)
	return out, nil
}

// ScanCleanedBaseNames returns the base names of all files in <chapter>/Raws Cleaned.
func ScanCleanedBaseNames(chapterPath string) (map[string]struct{}, error) {
	files, err := listFiles(filepath.Join(chapterPath, CleanedDir))
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(files))
	for _, f := range files {
		out[pages.BaseName(f)] = struct{}{}
	}
	return out, nil
}

// ScanTypesetFiles lists all files in <chapter>/Typesetted in natural order.
func ScanTypesetFiles(chapterPath string) ([]string, error) {
	files, err := listFiles(filepath.Join(chapterPath, TypesetDir))
	if err != nil {
		return nil, err
	}
	pages.SortNatural(files)
	return files, nil
}

// ScanChapter runs all three scans.
func ScanChapter(chapterPath string) (domain.Listing, error) {
	var l domain.Listing
	var err error
	if l.RawFiles, err = ScanRawFiles(chapterPath); err != nil {
		return l, err
	}
	if l.CleanedBaseNames, err = ScanCleanedBaseNames(chapterPath); err != nil {
		return l, err
	}
	if l.TypesetFiles, err = ScanTypesetFiles(chapterPath); err != nil {
		return l, err
	}
	return l, nil
}

// listFiles returns the names of regular, non-hidden entries of dir. A missing dir yields no files.
func listFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("scan %s: %w", filepath.Base(dir), err)
	}
	out := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}
