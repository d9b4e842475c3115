/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"scanstation/internal/pages"
)

// Page artifact naming inside data/.
const (
	translationSuffix = ".txt"
	drawingSuffix     = "_drawing.json"
	proofSuffix       = "_proof.txt"
)

// ValidatePageFile rejects names that would escape the chapter folders.
func ValidatePageFile(pageFile string) error {
	if pageFile == "" || pageFile == "." || pageFile == ".." ||
		strings.ContainsAny(pageFile, `/\`) || strings.Contains(pageFile, "..") {
		return fmt.Errorf("%q: %w", pageFile, ErrInvalidPageFile)
	}
	return nil
}

func translationPath(chapterPath, pageFile string) string {
	return filepath.Join(chapterPath, DataDir, TLDataDir, pageFile+translationSuffix)
}

func drawingPath(chapterPath, pageFile string) string {
	return filepath.Join(chapterPath, DataDir, TLDataDir, pageFile+drawingSuffix)
}

func proofPath(chapterPath, pageFile string) string {
	return filepath.Join(chapterPath, DataDir, PRDataDir, pageFile+proofSuffix)
}

// WriteTranslation stores the translation text and drawing data of a page.
// A nil drawing is stored as JSON null.
func WriteTranslation(chapterPath, pageFile, text string, drawing json.RawMessage) error {
	if err := ValidatePageFile(pageFile); err != nil {
		return err
	}
	if len(drawing) == 0 {
		drawing = json.RawMessage("null")
	} else if !json.Valid(drawing) {
		return fmt.Errorf("drawing for %s is not valid JSON", pageFile)
	}
	if err := writeAtomic(translationPath(chapterPath, pageFile), []byte(text)); err != nil {
		return fmt.Errorf("write translation: %w", err)
	}
	if err := writeAtomic(drawingPath(chapterPath, pageFile), drawing); err != nil {
		return fmt.Errorf("write drawing: %w", err)
	}
	return nil
}

// ReadTranslation returns the saved translation text, or "" when none exists.
func ReadTranslation(chapterPath, pageFile string) (string, error) {
	if err := ValidatePageFile(pageFile); err != nil {
		return "", err
	}
	return readOptional(translationPath(chapterPath, pageFile))
}

// ReadDrawing returns the saved drawing JSON, or nil when none exists.
func ReadDrawing(chapterPath, pageFile string) (json.RawMessage, error) {
	if err := ValidatePageFile(pageFile); err != nil {
		return nil, err
	}
	s, err := readOptional(drawingPath(chapterPath, pageFile))
	if err != nil || s == "" {
		return nil, err
	}
	return json.RawMessage(s), nil
}

// WriteAnnotations stores proofreading notes. Empty notes are written too.
func WriteAnnotations(chapterPath, pageFile, notes string) error {
	if err := ValidatePageFile(pageFile); err != nil {
		return err
	}
	if err := writeAtomic(proofPath(chapterPath, pageFile), []byte(notes)); err != nil {
		return fmt.Errorf("write annotations: %w", err)
	}
	return nil
}

// ReadAnnotations returns the saved proofreading notes, or "" when none exist.
func ReadAnnotations(chapterPath, pageFile string) (string, error) {
	if err := ValidatePageFile(pageFile); err != nil {
		return "", err
	}
	return readOptional(proofPath(chapterPath, pageFile))
}

// RemoveAnnotations deletes the notes file; a missing file is fine.
func RemoveAnnotations(chapterPath, pageFile string) error {
	if err := ValidatePageFile(pageFile); err != nil {
		return err
	}
	if err := os.Remove(proofPath(chapterPath, pageFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove annotations: %w", err)
	}
	return nil
}

// TypesetFile finds the Typesetted file of a page: the exact name first, otherwise the
// first file in natural order with the same base name, which is how typeset status is derived.
func TypesetFile(chapterPath, pageFile string) (string, bool) {
	if ValidatePageFile(pageFile) != nil {
		return "", false
	}
	if exists(filepath.Join(chapterPath, TypesetDir, pageFile)) {
		return pageFile, true
	}
	files, err := ScanTypesetFiles(chapterPath)
	if err != nil {
		return "", false
	}
	base := pages.BaseName(pageFile)
	for _, f := range files {
		if pages.BaseName(f) == base {
			return f, true
		}
	}
	return "", false
}

// TypesetExists reports whether the page has a typeset file.
func TypesetExists(chapterPath, pageFile string) bool {
	_, ok := TypesetFile(chapterPath, pageFile)
	return ok
}

// PublishFinal copies the page's typeset file to Final under the typeset file's own name,
// overwriting. It returns that name.
func PublishFinal(chapterPath, pageFile string) (string, error) {
	if err := ValidatePageFile(pageFile); err != nil {
		return "", err
	}
	name, ok := TypesetFile(chapterPath, pageFile)
	if !ok {
		return "", fmt.Errorf("publish final: %s: %w", pageFile, fs.ErrNotExist)
	}
	if err := copyFile(filepath.Join(chapterPath, TypesetDir, name), filepath.Join(chapterPath, FinalDir, name)); err != nil {
		return "", fmt.Errorf("publish final: %w", err)
	}
	return name, nil
}

func readOptional(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}
