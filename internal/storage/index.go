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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "scanstation/internal/log"
	"scanstation/internal/pages"
	"scanstation/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump it with a new migration step.
	schemaVersion = 2
)

// IndexPath returns the workspace index file below the storage root.
func IndexPath(root string) string {
	return filepath.Join(root, WorkDirName, IndexFileName)
}

// ProgressRecord is one chapter row of the progress index.
type ProgressRecord struct {
	ChapterPath string        `json:"chapterPath"`
	Repo        string        `json:"repo"`
	Project     string        `json:"project"`
	Chapter     string        `json:"chapter"`
	Summary     pages.Summary `json:"summary"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// HistoryPoint is a recorded change of a chapter's completion percentage.
type HistoryPoint struct {
	Percent int       `json:"percent"`
	At      time.Time `json:"at"`
}

// Index is the workspace progress index. It caches the last computed summary per chapter
// so listings do not rescan every chapter folder, and keeps a history of percent changes.
type Index struct {
	root string
	db   *sql.DB
}

// OpenIndex opens (creating if needed) the index under root.
func OpenIndex(root string) (*Index, error) {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	return &Index{root: root, db: db}, nil
}

// Close releases the database handle.
func (ix *Index) Close() error { return ix.db.Close() }

// InitOrOpenIndex ensures the index exists, opens it in WAL mode and brings the schema up to date.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, WorkDirName), 0o755); err != nil {
		l.Error("create work dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", WorkDirName, err)
	}

	path := IndexPath(root)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// A fresh database starts at schema 1 and is migrated forward like any other.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// SchemaVersion returns the schema recorded in the version table.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return cur, nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	cur, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if cur > schemaVersion {
		// newer binary wrote this index; leave it alone
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_progress_history_chapter_ts ON progress_history(chapter_path, ts);`,
				`CREATE INDEX IF NOT EXISTS idx_chapter_progress_project ON chapter_progress(repo, project);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS chapter_progress (
			chapter_path TEXT PRIMARY KEY,
			repo         TEXT NOT NULL,
			project      TEXT NOT NULL,
			chapter      TEXT NOT NULL,
			pages        INTEGER NOT NULL,
			cl           INTEGER NOT NULL,
			tl           INTEGER NOT NULL,
			ts           INTEGER NOT NULL,
			pr           INTEGER NOT NULL,
			qc           INTEGER NOT NULL,
			annotated    INTEGER NOT NULL,
			percent      INTEGER NOT NULL,
			updated_at   TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS progress_history (
			id           INTEGER PRIMARY KEY,
			chapter_path TEXT NOT NULL,
			percent      INTEGER NOT NULL,
			ts           TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	return nil
}

// splitChapterPath derives repo/project/chapter names from a chapter path below root.
func (ix *Index) splitChapterPath(chapterPath string) (repo, project, chapter string) {
	chapter = filepath.Base(chapterPath)
	project = filepath.Base(filepath.Dir(chapterPath))
	repo = filepath.Base(filepath.Dir(filepath.Dir(chapterPath)))
	if rel, err := filepath.Rel(ix.root, chapterPath); err == nil {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) == 3 && parts[0] != ".." {
			repo, project, chapter = parts[0], parts[1], parts[2]
		}
	}
	return repo, project, chapter
}

// RecordProgress upserts the chapter summary and appends a history point when the percentage changed.
func (ix *Index) RecordProgress(ctx context.Context, chapterPath string, s pages.Summary) error {
	chapterPath = filepath.Clean(chapterPath)
	repo, project, chapter := ix.splitChapterPath(chapterPath)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var last sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT percent FROM progress_history WHERE chapter_path=? ORDER BY id DESC LIMIT 1`, chapterPath).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return fmt.Errorf("read last history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO chapter_progress
		(chapter_path, repo, project, chapter, pages, cl, tl, ts, pr, qc, annotated, percent, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(chapter_path) DO UPDATE SET
			repo=excluded.repo, project=excluded.project, chapter=excluded.chapter, pages=excluded.pages,
			cl=excluded.cl, tl=excluded.tl, ts=excluded.ts, pr=excluded.pr, qc=excluded.qc,
			annotated=excluded.annotated, percent=excluded.percent, updated_at=excluded.updated_at;`,
		chapterPath, repo, project, chapter, s.Total, s.CL, s.TL, s.TS, s.PR, s.QC, s.Annotated, s.Percent, now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert progress: %w", err)
	}
	if !last.Valid || int(last.Int64) != s.Percent {
		if _, err := tx.ExecContext(ctx, `INSERT INTO progress_history(chapter_path, percent, ts) VALUES(?,?,?)`, chapterPath, s.Percent, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert history: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const progressColumns = `chapter_path, repo, project, chapter, pages, cl, tl, ts, pr, qc, annotated, percent, updated_at`

func scanProgress(sc interface{ Scan(...any) error }) (ProgressRecord, error) {
	var r ProgressRecord
	var updated string
	s := &r.Summary
	if err := sc.Scan(&r.ChapterPath, &r.Repo, &r.Project, &r.Chapter, &s.Total, &s.CL, &s.TL, &s.TS, &s.PR, &s.QC, &s.Annotated, &s.Percent, &updated); err != nil {
		return r, err
	}
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return r, nil
}

// ChapterProgress returns the cached record for a chapter; ok is false when none is stored.
func (ix *Index) ChapterProgress(ctx context.Context, chapterPath string) (ProgressRecord, bool, error) {
	row := ix.db.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM chapter_progress WHERE chapter_path=?`, filepath.Clean(chapterPath))
	r, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ProgressRecord{}, false, nil
	}
	if err != nil {
		return ProgressRecord{}, false, fmt.Errorf("read progress: %w", err)
	}
	return r, true, nil
}

// ListProgress returns cached records, optionally filtered by repo and project (empty = any).
func (ix *Index) ListProgress(ctx context.Context, repo, project string) ([]ProgressRecord, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT `+progressColumns+` FROM chapter_progress
		WHERE (?='' OR repo=?) AND (?='' OR project=?) ORDER BY repo, project, chapter_path`, repo, repo, project, project)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()
	var out []ProgressRecord
	for rows.Next() {
		r, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProgressHistory returns up to limit most recent percentage changes, oldest first.
func (ix *Index) ProgressHistory(ctx context.Context, chapterPath string, limit int) ([]HistoryPoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := ix.db.QueryContext(ctx, `SELECT percent, ts FROM (
		SELECT id, percent, ts FROM progress_history WHERE chapter_path=? ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`, filepath.Clean(chapterPath), limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()
	var out []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		var ts string
		if err := rows.Scan(&p.Percent, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		p.At, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ForgetChapter removes a chapter and its history from the index.
func (ix *Index) ForgetChapter(ctx context.Context, chapterPath string) error {
	p := filepath.Clean(chapterPath)
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM chapter_progress WHERE chapter_path=?`, p); err != nil {
		return fmt.Errorf("forget chapter: %w", err)
	}
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM progress_history WHERE chapter_path=?`, p); err != nil {
		return fmt.Errorf("forget history: %w", err)
	}
	return nil
}

// ForgetProject removes every indexed chapter of a project. It returns how many were dropped.
func (ix *Index) ForgetProject(ctx context.Context, repo, project string) (int, error) {
	if repo == "" || project == "" {
		return 0, errors.New("forget project: repo and project are required")
	}
	recs, err := ix.ListProgress(ctx, repo, project)
	if err != nil {
		return 0, err
	}
	for _, r := range recs {
		if err := ix.ForgetChapter(ctx, r.ChapterPath); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}

// CheckpointIndex folds the WAL into the index file. A root without an index is a no-op.
func CheckpointIndex(root string) error {
	if !exists(IndexPath(root)) {
		return nil
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return fmt.Errorf("checkpoint index: %w", err)
	}
	return nil
}

// DetectAndRebuildIndex checks the index for corruption or missing schema and rebuilds it
// from the chapter folders if needed. It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, root string) (bool, error) {
	path := IndexPath(root)
	db, err := InitOrOpenIndex(root)
	if err != nil {
		backupIndexFile(path)
		removeIndexFiles(path)
		if _, rbErr := RebuildIndex(ctx, root); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM chapter_progress LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	removeIndexFiles(path)
	if _, err := RebuildIndex(ctx, root); err != nil {
		return false, err
	}
	return true, nil
}

// RebuildIndex clears the progress tables and re-records every chapter found under root.
// It returns the number of chapters indexed.
func RebuildIndex(ctx context.Context, root string) (int, error) {
	ix, err := OpenIndex(root)
	if err != nil {
		return 0, err
	}
	defer ix.Close()
	for _, q := range []string{`DELETE FROM chapter_progress;`, `DELETE FROM progress_history;`} {
		if _, err := ix.db.ExecContext(ctx, q); err != nil {
			return 0, fmt.Errorf("clear index: %w", err)
		}
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "index_rebuild")
	n := 0
	repos, err := ListRepositories(root)
	if err != nil {
		return 0, err
	}
	for _, repo := range repos {
		projects, err := ListProjects(root, repo)
		if err != nil {
			return n, err
		}
		for _, p := range projects {
			chapters, err := ListChapters(root, repo, p.Name)
			if err != nil {
				return n, err
			}
			for _, ch := range chapters {
				if err := ctx.Err(); err != nil {
					return n, err
				}
				s, err := SummarizeChapter(ch.Path)
				if err != nil {
					l.Warn("skip chapter", slog.String("chapter", ch.Path), slog.Any("err", err))
					continue
				}
				if err := ix.RecordProgress(ctx, ch.Path, s); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	l.Info("index rebuilt", slog.Int("chapters", n))
	return n, nil
}

// SummarizeChapter scans a chapter, resolves its pages and summarizes them.
func SummarizeChapter(chapterPath string) (pages.Summary, error) {
	listing, err := ScanChapter(chapterPath)
	if err != nil {
		return pages.Summary{}, err
	}
	m, err := LoadStatusMap(chapterPath)
	if err != nil {
		return pages.Summary{}, err
	}
	return pages.Summarize(pages.ResolveListing(listing, m)), nil
}

// backupIndexFile copies the current index file into a timestamped backup next to it.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeIndexFiles(indexPath string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(indexPath + suffix)
	}
}
