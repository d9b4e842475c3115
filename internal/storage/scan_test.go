/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanMissingFoldersAreEmpty(t *testing.T) {
	dir := t.TempDir()
	l, err := ScanChapter(dir)
	require.NoError(t, err)
	assert.Empty(t, l.RawFiles)
	assert.Empty(t, l.CleanedBaseNames)
	assert.Empty(t, l.TypesetFiles)
	assert.NotNil(t, l.RawFiles)
}

func TestScanRawFilesFiltersAndSortsNaturally(t *testing.T) {
	_, ch := newChapter(t)
	raws := filepath.Join(ch, RawsDir)
	touch(t, raws, "10.jpg", "2.JPG", "01.png", "03.webp", "notes.txt", ".gitkeep", "sub/04.jpg", "05.jpeg")

	got, err := ScanRawFiles(ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"01.png", "2.JPG", "03.webp", "05.jpeg", "10.jpg"}, got)
}

func TestScanCleanedBaseNames(t *testing.T) {
	_, ch := newChapter(t)
	touch(t, filepath.Join(ch, CleanedDir), "01.png", "02.psd", ".DS_Store")

	got, err := ScanCleanedBaseNames(ch)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"01": {}, "02": {}}, got)
}

func TestScanTypesetFilesKeepsAllExtensions(t *testing.T) {
	_, ch := newChapter(t)
	touch(t, filepath.Join(ch, TypesetDir), "10.png", "02-03.png", "01.psd")

	got, err := ScanTypesetFiles(ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"01.psd", "02-03.png", "10.png"}, got)
}
