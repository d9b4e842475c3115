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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslationArtifacts(t *testing.T) {
	_, ch := newChapter(t)

	text, err := ReadTranslation(ch, "01.jpg")
	require.NoError(t, err)
	assert.Empty(t, text)

	require.NoError(t, WriteTranslation(ch, "01.jpg", "Hello", json.RawMessage(`{"lines":[]}`)))
	text, err = ReadTranslation(ch, "01.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	d, err := ReadDrawing(ch, "01.jpg")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lines":[]}`, string(d))

	require.NoError(t, WriteTranslation(ch, "01.jpg", "", nil))
	d, err = ReadDrawing(ch, "01.jpg")
	require.NoError(t, err)
	assert.Equal(t, "null", string(d))
	assert.FileExists(t, filepath.Join(ch, DataDir, TLDataDir, "01.jpg.txt"))

	assert.Error(t, WriteTranslation(ch, "01.jpg", "x", json.RawMessage(`{broken`)))
}

func TestAnnotationArtifacts(t *testing.T) {
	_, ch := newChapter(t)
	require.NoError(t, WriteAnnotations(ch, "02.jpg", "fix bubble 3"))
	notes, err := ReadAnnotations(ch, "02.jpg")
	require.NoError(t, err)
	assert.Equal(t, "fix bubble 3", notes)
	assert.FileExists(t, filepath.Join(ch, DataDir, PRDataDir, "02.jpg_proof.txt"))

	require.NoError(t, RemoveAnnotations(ch, "02.jpg"))
	require.NoError(t, RemoveAnnotations(ch, "02.jpg"))
	notes, err = ReadAnnotations(ch, "02.jpg")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestPageFileValidation(t *testing.T) {
	for _, bad := range []string{"", "..", "../x.jpg", "a/b.jpg", `a\b.jpg`} {
		assert.ErrorIs(t, ValidatePageFile(bad), ErrInvalidPageFile, bad)
	}
	assert.NoError(t, ValidatePageFile("02-03.png"))
	_, err := ReadTranslation(t.TempDir(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPageFile)
}

func TestPublishFinal(t *testing.T) {
	_, ch := newChapter(t)
	assert.False(t, TypesetExists(ch, "01.jpg"))
	_, err := PublishFinal(ch, "01.jpg")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(ch, TypesetDir, "01.jpg"), []byte("typeset"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ch, FinalDir, "01.jpg"), []byte("old"), 0o644))
	assert.True(t, TypesetExists(ch, "01.jpg"))
	name, err := PublishFinal(ch, "01.jpg")
	require.NoError(t, err)
	assert.Equal(t, "01.jpg", name)

	b, err := os.ReadFile(filepath.Join(ch, FinalDir, "01.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "typeset", string(b))
}

func TestTypesetFileMatchesByBaseName(t *testing.T) {
	_, ch := newChapter(t)
	require.NoError(t, os.WriteFile(filepath.Join(ch, TypesetDir, "02.png"), []byte("png"), 0o644))

	name, ok := TypesetFile(ch, "02.jpg")
	require.True(t, ok)
	assert.Equal(t, "02.png", name)
	_, ok = TypesetFile(ch, "03.jpg")
	assert.False(t, ok)

	name, err := PublishFinal(ch, "02.jpg")
	require.NoError(t, err)
	assert.Equal(t, "02.png", name)
	assert.FileExists(t, filepath.Join(ch, FinalDir, "02.png"))
	assert.NoFileExists(t, filepath.Join(ch, FinalDir, "02.jpg"))
}
