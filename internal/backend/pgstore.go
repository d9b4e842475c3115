/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	applog "scanstation/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore is the Postgres ProgressStore.
type PGStore struct {
	db *sql.DB
}

// OpenPG connects through the pgx stdlib driver, pings and applies pending migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PGStore) SaveProgress(ctx context.Context, r ProgressReport) (ProgressReport, error) {
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return r, fmt.Errorf("begin tx: %w", err)
	}
	sm := r.Summary
	err = tx.QueryRowContext(ctx, `INSERT INTO chapter_progress
		(id, repo, project, chapter, pages, cl, tl, ts, pr, qc, annotated, percent, reported_by, reported_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (repo, project, chapter) DO UPDATE SET
			pages=EXCLUDED.pages, cl=EXCLUDED.cl, tl=EXCLUDED.tl, ts=EXCLUDED.ts, pr=EXCLUDED.pr,
			qc=EXCLUDED.qc, annotated=EXCLUDED.annotated, percent=EXCLUDED.percent,
			reported_by=EXCLUDED.reported_by, reported_at=EXCLUDED.reported_at
		RETURNING id`,
		uuid.NewString(), r.Repo, r.Project, r.Chapter, sm.Total, sm.CL, sm.TL, sm.TS, sm.PR, sm.QC, sm.Annotated, sm.Percent,
		r.ReportedBy, r.ReportedAt).Scan(&r.ID)
	if err != nil {
		_ = tx.Rollback()
		return r, fmt.Errorf("upsert progress: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO progress_events (repo, project, chapter, percent, reported_by, reported_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, r.Repo, r.Project, r.Chapter, sm.Percent, r.ReportedBy, r.ReportedAt); err != nil {
		_ = tx.Rollback()
		return r, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return r, fmt.Errorf("commit: %w", err)
	}
	return r, nil
}

func (s *PGStore) ListProgress(ctx context.Context, repo, project string) ([]ProgressReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, repo, project, chapter, pages, cl, tl, ts, pr, qc, annotated, percent, reported_by, reported_at
		FROM chapter_progress
		WHERE ($1 = '' OR repo = $1) AND ($2 = '' OR project = $2)
		ORDER BY repo, project`, repo, project)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()
	var out []ProgressReport
	for rows.Next() {
		var r ProgressReport
		sm := &r.Summary
		if err := rows.Scan(&r.ID, &r.Repo, &r.Project, &r.Chapter, &sm.Total, &sm.CL, &sm.TL, &sm.TS, &sm.PR, &sm.QC, &sm.Annotated, &sm.Percent, &r.ReportedBy, &r.ReportedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// chapter folder names sort by their numbers, which SQL collation does not do
	sortReports(out)
	return out, nil
}

// applyMigrations applies embedded SQL migrations in filename order, each in its own transaction.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithOperation(applog.WithComponent("backend"), "migrate")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
