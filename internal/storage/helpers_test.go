/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"testing"
)

// touch creates an empty file (and its parents) below dir.
func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
}

// newChapter returns a fresh chapter folder inside a temp storage root.
func newChapter(t *testing.T) (root, chapterPath string) {
	t.Helper()
	root = filepath.Join(t.TempDir(), "projects")
	if _, err := CreateProject(root, "team", "Solo Hunter"); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	ch, err := CreateChapter(root, "team", "Solo Hunter", "1", "Awakening")
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	return root, ch.Path
}
