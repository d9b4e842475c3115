/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package chapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanstation/internal/domain"
	"scanstation/internal/pages"
	"scanstation/internal/storage"
)

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	root := filepath.Join(t.TempDir(), "projects")
	_, err := storage.CreateProject(root, "team", "Alpha")
	require.NoError(t, err)
	ch, err := storage.CreateChapter(root, "team", "Alpha", "1", "Start")
	require.NoError(t, err)
	s, err := Open(ch.Path, opts...)
	require.NoError(t, err)
	return s
}

func put(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644))
	}
}

type fakeRecorder struct {
	mu   sync.Mutex
	last pages.Summary
	path string
	err  error
	n    int
}

func (f *fakeRecorder) RecordProgress(_ context.Context, p string, s pages.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	f.path, f.last = p, s
	return f.err
}

func TestOpenRejectsMissingFolder(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, storage.ErrNotChapter)
}

func TestTranslationToggle(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	for _, tc := range []struct {
		text string
		want bool
	}{{"  ", false}, {"hello", true}, {"", false}} {
		e, err := s.SaveTranslation(ctx, "01.jpg", tc.text, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, e.Translated(), "text %q", tc.text)
		got, err := s.Translation("01.jpg")
		require.NoError(t, err)
		assert.Equal(t, tc.text, got)
	}
}

func TestAnnotationLifecycle(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	put(t, filepath.Join(s.Path(), storage.TypesetDir), "01.jpg")

	e, err := s.SaveProofread(ctx, "01.jpg", "note")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkAnnotated, e.Proofread())
	assert.Equal(t, domain.MarkAnnotated, e.Checked())

	e, err = s.SaveProofread(ctx, "01.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkNone, e.Proofread())

	_, err = s.SaveProofread(ctx, "01.jpg", "again")
	require.NoError(t, err)
	e, err = s.MarkCorrect(ctx, "01.jpg")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkDone, e.Proofread())
	assert.Equal(t, domain.MarkDone, e.Checked())
	notes, err := s.Annotations("01.jpg")
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.FileExists(t, filepath.Join(s.Path(), storage.FinalDir, "01.jpg"))

	e, err = s.SaveProofread(ctx, "01.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkDone, e.Proofread(), "confirmed stays confirmed")
}

func TestMarkCorrectRequiresTypeset(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	_, err := s.SaveProofread(ctx, "02.jpg", "fix")
	require.NoError(t, err)

	_, err = s.MarkCorrect(ctx, "02.jpg")
	assert.True(t, errors.Is(err, ErrTypesetMissing))

	m, err := storage.LoadStatusMap(s.Path())
	require.NoError(t, err)
	assert.Equal(t, domain.MarkAnnotated, m.Entry("02.jpg").Proofread(), "status unchanged")
	notes, err := s.Annotations("02.jpg")
	require.NoError(t, err)
	assert.Equal(t, "fix", notes)
}

func TestPagesAndProgressAgree(t *testing.T) {
	rec := &fakeRecorder{}
	s := newSession(t, WithRecorder(rec))
	ctx := context.Background()
	put(t, filepath.Join(s.Path(), storage.RawsDir), "01.jpg", "02.jpg", "03.jpg", "04.jpg")
	put(t, filepath.Join(s.Path(), storage.CleanedDir), "01.jpg", "02.jpg", "03.jpg", "04.jpg")
	put(t, filepath.Join(s.Path(), storage.TypesetDir), "01.jpg", "02-03.jpg")

	_, err := s.SaveTranslation(ctx, "01.jpg", "hi", nil)
	require.NoError(t, err)
	_, err = s.MarkCorrect(ctx, "01.jpg")
	require.NoError(t, err)

	ps, err := s.Pages(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "02-03.jpg", ps[1].FileName)
	assert.True(t, ps[1].Spread)

	p, ok, err := s.Page(ctx, "04.jpg")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Status.CL)
	assert.False(t, p.Status.TS)

	sum, err := s.Progress(ctx)
	require.NoError(t, err)
	// 01: 5, spread: CL TL TS = 3, 04: CL = 1 -> 9/15
	assert.Equal(t, 60, sum.Percent)
	assert.Equal(t, pages.ProgressPercent(ps), sum.Percent)
	assert.Equal(t, 3, rec.n, "two saves and one progress query")
	assert.Equal(t, s.Path(), rec.path)
	assert.Equal(t, sum, rec.last)
}

func TestSavesRecordFreshProgress(t *testing.T) {
	rec := &fakeRecorder{}
	s := newSession(t, WithRecorder(rec))
	ctx := context.Background()
	put(t, filepath.Join(s.Path(), storage.RawsDir), "01.jpg", "02.jpg")

	_, err := s.SaveTranslation(ctx, "01.jpg", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.n)
	assert.Equal(t, 10, rec.last.Percent)

	_, err = s.SaveTranslation(ctx, "02.jpg", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 20, rec.last.Percent)
	assert.Equal(t, 2, rec.last.TL)
}

func TestMarkCorrectMatchesTypesetByBaseName(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	put(t, filepath.Join(s.Path(), storage.RawsDir), "02.jpg")
	put(t, filepath.Join(s.Path(), storage.TypesetDir), "02.png")

	p, ok, err := s.Page(ctx, "02.jpg")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, p.Status.TS)

	e, err := s.MarkCorrect(ctx, "02.jpg")
	require.NoError(t, err)
	assert.Equal(t, domain.MarkDone, e.Proofread())
	assert.FileExists(t, filepath.Join(s.Path(), storage.FinalDir, "02.png"))
}

func TestRecorderFailureDoesNotFailProgress(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	s := newSession(t, WithRecorder(rec))
	_, err := s.Progress(context.Background())
	assert.NoError(t, err)
}

func TestConcurrentSavesAreSerialized(t *testing.T) {
	s := newSession(t)
	// a second session on the same folder shares the lock
	other, err := Open(s.Path())
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := s
			if i%2 == 1 {
				sess = other
			}
			_, err := sess.SaveTranslation(ctx, fmt.Sprintf("%02d.jpg", i), "text", nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	m, err := storage.LoadStatusMap(s.Path())
	require.NoError(t, err)
	assert.Len(t, m, 20)
}

func TestInvalidPageFileRejected(t *testing.T) {
	s := newSession(t)
	_, err := s.SaveTranslation(context.Background(), "../x.jpg", "a", nil)
	assert.ErrorIs(t, err, storage.ErrInvalidPageFile)
}

func TestCanceledContext(t *testing.T) {
	s := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Pages(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.SaveProofread(ctx, "01.jpg", "x")
	assert.ErrorIs(t, err, context.Canceled)
}
