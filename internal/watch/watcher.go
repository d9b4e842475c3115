/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package watch notices file changes in a chapter's image folders and status file
// and reports them in debounced batches so callers can re-resolve the page list.
// It never writes to the chapter.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "scanstation/internal/log"
	"scanstation/internal/storage"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts such as an editor's save-rename sequence.
const DefaultDebounce = 300 * time.Millisecond

// Options tunes a Watcher. A zero Debounce means DefaultDebounce.
type Options struct {
	Debounce time.Duration
}

// Change is one coalesced file change. Folder is relative to the chapter (e.g. "Raws").
type Change struct {
	Folder string
	Name   string
	Op     fsnotify.Op
}

// Watcher watches one chapter.
type Watcher struct {
	chapter  string
	debounce time.Duration
	fw       *fsnotify.Watcher
	log      *slog.Logger
}

var watchedDirs = []string{storage.RawsDir, storage.CleanedDir, storage.TypesetDir, storage.DataDir}

// New registers the chapter folders with the OS watcher. Missing folders are skipped;
// at least one must exist.
func New(chapterPath string, opts Options) (*Watcher, error) {
	if err := storage.RequireChapter(chapterPath); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		chapter:  chapterPath,
		debounce: opts.Debounce,
		fw:       fw,
		log:      applog.WithComponent("watch").With(slog.String("chapter", chapterPath)),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	added := 0
	for _, d := range watchedDirs {
		p := filepath.Join(chapterPath, d)
		if err := fw.Add(p); err != nil {
			w.log.Debug("folder not watched", slog.String("dir", d), slog.Any("err", err))
			continue
		}
		added++
	}
	if added == 0 {
		_ = fw.Close()
		return nil, errors.New("no chapter folders to watch")
	}
	return w, nil
}

// Run delivers batches to onChange until ctx is done. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, onChange func([]Change)) error {
	defer w.fw.Close()

	pending := map[string]Change{}
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			c, keep := w.classify(e)
			if !keep {
				continue
			}
			key := c.Folder + "/" + c.Name
			if prev, ok := pending[key]; ok {
				c.Op |= prev.Op
			}
			pending[key] = c
			timer.Reset(w.debounce)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", slog.Any("err", err))
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]Change, 0, len(pending))
			for _, c := range pending {
				batch = append(batch, c)
			}
			pending = map[string]Change{}
			sort.Slice(batch, func(i, j int) bool {
				if batch[i].Folder != batch[j].Folder {
					return batch[i].Folder < batch[j].Folder
				}
				return batch[i].Name < batch[j].Name
			})
			w.log.Debug("changes", slog.Int("count", len(batch)))
			onChange(batch)
		}
	}
}

// classify keeps page images in the image folders, any file in Typesetted and the status file in data.
func (w *Watcher) classify(e fsnotify.Event) (Change, bool) {
	if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return Change{}, false
	}
	name := filepath.Base(e.Name)
	folder := filepath.Base(filepath.Dir(e.Name))
	if strings.HasPrefix(name, ".") {
		return Change{}, false
	}
	switch folder {
	case storage.RawsDir, storage.CleanedDir:
		if !storage.IsImage(name) {
			return Change{}, false
		}
	case storage.TypesetDir:
	case storage.DataDir:
		if name != storage.StatusFileName {
			return Change{}, false
		}
	default:
		return Change{}, false
	}
	return Change{Folder: folder, Name: name, Op: e.Op}, true
}

// Chapter is New followed by Run.
func Chapter(ctx context.Context, chapterPath string, opts Options, onChange func([]Change)) error {
	w, err := New(chapterPath, opts)
	if err != nil {
		return err
	}
	return w.Run(ctx, onChange)
}
