/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scanstation/internal/domain"
	"scanstation/internal/pages"
)

func TestIndexRecordsProgressAndHistory(t *testing.T) {
	root, ch := newChapter(t)
	ix, err := OpenIndex(root)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()
	ctx := context.Background()

	steps := []pages.Summary{
		{Total: 2, CL: 1, Percent: 10},
		{Total: 2, CL: 2, Percent: 20},
		{Total: 2, CL: 2, TL: 0, Percent: 20},
		{Total: 2, CL: 2, TL: 2, Percent: 40},
	}
	for _, s := range steps {
		if err := ix.RecordProgress(ctx, ch, s); err != nil {
			t.Fatalf("RecordProgress: %v", err)
		}
	}

	rec, ok, err := ix.ChapterProgress(ctx, ch)
	if err != nil || !ok {
		t.Fatalf("ChapterProgress ok=%v err=%v", ok, err)
	}
	if rec.Repo != "team" || rec.Project != "Solo Hunter" || rec.Chapter != "chapter 1 - Awakening" {
		t.Fatalf("unexpected names: %+v", rec)
	}
	if rec.Summary.Percent != 40 || rec.Summary.TL != 2 {
		t.Fatalf("unexpected summary: %+v", rec.Summary)
	}
	if rec.UpdatedAt.IsZero() {
		t.Fatalf("UpdatedAt not parsed")
	}

	hist, err := ix.ProgressHistory(ctx, ch, 10)
	if err != nil {
		t.Fatalf("ProgressHistory: %v", err)
	}
	var got []int
	for _, h := range hist {
		got = append(got, h.Percent)
	}
	if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 40 {
		t.Fatalf("history = %v, want [10 20 40]", got)
	}

	list, err := ix.ListProgress(ctx, "team", "")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListProgress len=%d err=%v", len(list), err)
	}
	list, err = ix.ListProgress(ctx, "other", "")
	if err != nil || len(list) != 0 {
		t.Fatalf("filtered ListProgress len=%d err=%v", len(list), err)
	}

	if err := ix.ForgetChapter(ctx, ch); err != nil {
		t.Fatalf("ForgetChapter: %v", err)
	}
	if _, ok, _ := ix.ChapterProgress(ctx, ch); ok {
		t.Fatalf("chapter still indexed after ForgetChapter")
	}
}

func TestIndexMigratesToCurrentSchema(t *testing.T) {
	root := t.TempDir()
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer db.Close()
	v, err := SchemaVersion(context.Background(), db)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != schemaVersion {
		t.Fatalf("schema = %d, want %d", v, schemaVersion)
	}
	var name string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name='idx_progress_history_chapter_ts'`).Scan(&name); err != nil {
		t.Fatalf("migration index missing: %v", err)
	}
}

func TestDetectAndRebuildIndex_OnCorruption(t *testing.T) {
	root, ch := newChapter(t)
	touch(t, filepath.Join(ch, RawsDir), "01.jpg", "02.jpg")
	touch(t, filepath.Join(ch, CleanedDir), "01.png")
	tl := true
	if err := SaveStatusMap(ch, domain.StatusMap{"01.jpg": {TL: &tl}}); err != nil {
		t.Fatalf("SaveStatusMap: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rebuilt, err := DetectAndRebuildIndex(ctx, root)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex (healthy): %v", err)
	}
	if rebuilt {
		t.Fatalf("healthy index should not be rebuilt")
	}

	if err := os.WriteFile(IndexPath(root), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	rebuilt, err = DetectAndRebuildIndex(ctx, root)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}

	ents, err := os.ReadDir(filepath.Join(root, WorkDirName, "backups"))
	if err != nil || len(ents) == 0 {
		t.Fatalf("expected index backup, err=%v", err)
	}

	ix, err := OpenIndex(root)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()
	rec, ok, err := ix.ChapterProgress(ctx, ch)
	if err != nil || !ok {
		t.Fatalf("rebuilt index missing chapter: ok=%v err=%v", ok, err)
	}
	// 01: CL+TL, 02: nothing -> 2 of 10 stages
	if rec.Summary.Total != 2 || rec.Summary.Percent != 20 {
		t.Fatalf("unexpected rebuilt summary: %+v", rec.Summary)
	}
}

func TestCheckpointIndex(t *testing.T) {
	root := t.TempDir()
	if err := CheckpointIndex(root); err != nil {
		t.Fatalf("checkpoint without index: %v", err)
	}
	if _, err := os.Stat(IndexPath(root)); !os.IsNotExist(err) {
		t.Fatalf("checkpoint must not create an index")
	}
	ix, err := OpenIndex(root)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	_ = ix.Close()
	if err := CheckpointIndex(root); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
}

func TestForgetProjectDropsOnlyItsChapters(t *testing.T) {
	root, ch := newChapter(t)
	ix, err := OpenIndex(root)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()
	ctx := context.Background()

	other := filepath.Join(root, "team", "Other", "chapter 1")
	for _, p := range []string{ch, other} {
		if err := ix.RecordProgress(ctx, p, pages.Summary{Total: 1, CL: 1, Percent: 20}); err != nil {
			t.Fatalf("RecordProgress: %v", err)
		}
	}

	n, err := ix.ForgetProject(ctx, "team", "Solo Hunter")
	if err != nil || n != 1 {
		t.Fatalf("ForgetProject n=%d err=%v", n, err)
	}
	if _, ok, _ := ix.ChapterProgress(ctx, ch); ok {
		t.Fatalf("chapter of the forgotten project still indexed")
	}
	if _, ok, _ := ix.ChapterProgress(ctx, other); !ok {
		t.Fatalf("chapter of another project was dropped")
	}
	if _, err := ix.ForgetProject(ctx, "team", ""); err == nil {
		t.Fatalf("expected error for empty project")
	}
}
