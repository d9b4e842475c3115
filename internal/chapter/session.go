/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package chapter is the single entry point for working with one chapter folder.
// Both the page list and the progress dashboard are served from Session.Pages, so
// they always agree. Mutations read, modify and write the whole status map while
// holding a per-chapter lock.
package chapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"scanstation/internal/domain"
	applog "scanstation/internal/log"
	"scanstation/internal/pages"
	"scanstation/internal/storage"
)

// ErrTypesetMissing is returned by MarkCorrect when Typesetted/<page> does not exist.
var ErrTypesetMissing = errors.New("typeset file not found")

// Recorder receives every computed chapter summary, e.g. the workspace progress index.
type Recorder interface {
	RecordProgress(ctx context.Context, chapterPath string, s pages.Summary) error
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder records each Progress result and the summary after every status save. Recorder failures are logged, not returned.
func WithRecorder(r Recorder) Option { return func(s *Session) { s.rec = r } }

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }

// Session operates on one chapter folder.
type Session struct {
	path string
	log  *slog.Logger
	rec  Recorder
	mu   *sync.Mutex
}

// locks serializes status read-modify-write cycles per chapter within the process.
var locks sync.Map // cleaned chapter path -> *sync.Mutex

func lockFor(path string) *sync.Mutex {
	mu, _ := locks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Open returns a Session for an existing chapter folder.
func Open(chapterPath string, opts ...Option) (*Session, error) {
	p, err := filepath.Abs(chapterPath)
	if err != nil {
		return nil, fmt.Errorf("resolve chapter path: %w", err)
	}
	if err := storage.RequireChapter(p); err != nil {
		return nil, err
	}
	s := &Session{path: p, mu: lockFor(p)}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = applog.WithComponent("chapter")
	}
	return s, nil
}

// Path returns the absolute chapter folder.
func (s *Session) Path() string { return s.path }

// Name returns the chapter folder name.
func (s *Session) Name() string { return filepath.Base(s.path) }

func (s *Session) ctx(ctx context.Context) context.Context {
	return applog.WithChapterContext(ctx, s.path)
}

// Pages scans the chapter and resolves its logical page list.
func (s *Session) Pages(ctx context.Context) ([]domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	listing, err := storage.ScanChapter(s.path)
	if err != nil {
		return nil, err
	}
	m, err := storage.LoadStatusMap(s.path)
	if err != nil {
		return nil, err
	}
	ps := pages.ResolveListing(listing, m)
	s.log.DebugContext(s.ctx(ctx), "pages resolved", slog.Int("raws", len(listing.RawFiles)), slog.Int("pages", len(ps)))
	return ps, nil
}

// Page returns one logical page by file name.
func (s *Session) Page(ctx context.Context, pageFile string) (domain.Page, bool, error) {
	ps, err := s.Pages(ctx)
	if err != nil {
		return domain.Page{}, false, err
	}
	for _, p := range ps {
		if p.FileName == pageFile {
			return p, true, nil
		}
	}
	return domain.Page{}, false, nil
}

// Progress summarizes the resolved pages and hands the result to the recorder, if any.
func (s *Session) Progress(ctx context.Context) (pages.Summary, error) {
	ps, err := s.Pages(ctx)
	if err != nil {
		return pages.Summary{}, err
	}
	sum := pages.Summarize(ps)
	if s.rec != nil {
		if err := s.rec.RecordProgress(ctx, s.path, sum); err != nil {
			s.log.WarnContext(s.ctx(ctx), "record progress failed", slog.Any("err", err))
		}
	}
	return sum, nil
}

// update runs fn on the current status map under the chapter lock and saves the result.
// With a recorder attached, the fresh summary is recorded after the save.
func (s *Session) update(ctx context.Context, op, pageFile string, fn func(domain.StatusMap) (domain.StatusEntry, error)) (domain.StatusEntry, error) {
	if err := storage.ValidatePageFile(pageFile); err != nil {
		return domain.StatusEntry{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.StatusEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := storage.LoadStatusMap(s.path)
	if err != nil {
		return domain.StatusEntry{}, err
	}
	e, err := fn(m)
	if err != nil {
		return domain.StatusEntry{}, err
	}
	if err := storage.SaveStatusMap(s.path, m); err != nil {
		return domain.StatusEntry{}, err
	}
	applog.WithOperation(s.log, op).InfoContext(s.ctx(ctx), "status updated",
		slog.String("page", pageFile),
		slog.Bool("tl", e.Translated()),
		slog.String("pr", e.Proofread().String()),
		slog.String("qc", e.Checked().String()))
	if s.rec != nil {
		if _, err := s.Progress(ctx); err != nil {
			s.log.WarnContext(s.ctx(ctx), "refresh progress failed", slog.Any("err", err))
		}
	}
	return e, nil
}

// SaveTranslation stores the text and drawing and sets TL from whether text has content.
func (s *Session) SaveTranslation(ctx context.Context, pageFile, text string, drawing json.RawMessage) (domain.StatusEntry, error) {
	return s.update(ctx, "save_translation", pageFile, func(m domain.StatusMap) (domain.StatusEntry, error) {
		if err := storage.WriteTranslation(s.path, pageFile, text, drawing); err != nil {
			return domain.StatusEntry{}, err
		}
		return pages.ApplyTranslation(m, pageFile, text), nil
	})
}

// SaveProofread stores the notes (even when empty) and applies the annotate/clear rules.
func (s *Session) SaveProofread(ctx context.Context, pageFile, annotations string) (domain.StatusEntry, error) {
	return s.update(ctx, "save_proofread", pageFile, func(m domain.StatusMap) (domain.StatusEntry, error) {
		if err := storage.WriteAnnotations(s.path, pageFile, annotations); err != nil {
			return domain.StatusEntry{}, err
		}
		return pages.ApplyProofread(m, pageFile, annotations), nil
	})
}

// MarkCorrect copies the typeset page to Final, confirms PR and QC and drops the notes.
// The typeset file is matched by base name, so 02.jpg is confirmed by Typesetted/02.png.
// Nothing changes when no typeset file exists.
func (s *Session) MarkCorrect(ctx context.Context, pageFile string) (domain.StatusEntry, error) {
	e, err := s.update(ctx, "mark_correct", pageFile, func(m domain.StatusMap) (domain.StatusEntry, error) {
		if !storage.TypesetExists(s.path, pageFile) {
			return domain.StatusEntry{}, fmt.Errorf("%s: %w", pageFile, ErrTypesetMissing)
		}
		if _, err := storage.PublishFinal(s.path, pageFile); err != nil {
			return domain.StatusEntry{}, err
		}
		return pages.ApplyCorrect(m, pageFile), nil
	})
	if err != nil {
		return e, err
	}
	return e, storage.RemoveAnnotations(s.path, pageFile)
}

// Translation returns the saved translation text of a page.
func (s *Session) Translation(pageFile string) (string, error) {
	return storage.ReadTranslation(s.path, pageFile)
}

// Drawing returns the saved drawing JSON of a page, or nil.
func (s *Session) Drawing(pageFile string) (json.RawMessage, error) {
	return storage.ReadDrawing(s.path, pageFile)
}

// Annotations returns the saved proofreading notes of a page.
func (s *Session) Annotations(pageFile string) (string, error) {
	return storage.ReadAnnotations(s.path, pageFile)
}
