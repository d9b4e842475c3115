/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend is the thin team progress service: chapter summaries published by
// workstations are stored in Postgres and listed back per repository and project.
// It also carries the HTTP client used by the CLI.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scanstation/internal/pages"
)

// ErrInvalidReport is returned for reports missing names or with out-of-range counts.
var ErrInvalidReport = errors.New("invalid progress report")

// ProgressReport is one chapter's published summary.
type ProgressReport struct {
	ID         string        `json:"id,omitempty"`
	Repo       string        `json:"repo"`
	Project    string        `json:"project"`
	Chapter    string        `json:"chapter"`
	Summary    pages.Summary `json:"summary"`
	ReportedBy string        `json:"reported_by,omitempty"`
	ReportedAt time.Time     `json:"reported_at"`
}

// Validate checks names and counts.
func (r ProgressReport) Validate() error {
	if strings.TrimSpace(r.Repo) == "" || strings.TrimSpace(r.Project) == "" || strings.TrimSpace(r.Chapter) == "" {
		return fmt.Errorf("%w: repo, project and chapter are required", ErrInvalidReport)
	}
	s := r.Summary
	if s.Total < 0 || s.Percent < 0 || s.Percent > 100 {
		return fmt.Errorf("%w: counts out of range", ErrInvalidReport)
	}
	for _, n := range []int{s.CL, s.TL, s.TS, s.PR, s.QC, s.Annotated} {
		if n < 0 || n > s.Total {
			return fmt.Errorf("%w: stage count %d outside 0..%d", ErrInvalidReport, n, s.Total)
		}
	}
	return nil
}

// ProgressStore persists reports. One report per (repo, project, chapter) is kept; newer replaces older.
type ProgressStore interface {
	Ping(ctx context.Context) error
	SaveProgress(ctx context.Context, r ProgressReport) (ProgressReport, error)
	ListProgress(ctx context.Context, repo, project string) ([]ProgressReport, error)
}

// MemoryStore is a ProgressStore kept in process memory, for local runs without Postgres.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]ProgressReport
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{rows: map[string]ProgressReport{}} }

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) SaveProgress(_ context.Context, r ProgressReport) (ProgressReport, error) {
	key := r.Repo + "\x00" + r.Project + "\x00" + r.Chapter
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.rows[key]; ok {
		r.ID = prev.ID
	} else {
		r.ID = uuid.NewString()
	}
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now().UTC()
	}
	m.rows[key] = r
	return r, nil
}

func (m *MemoryStore) ListProgress(_ context.Context, repo, project string) ([]ProgressReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ProgressReport, 0, len(m.rows))
	for _, r := range m.rows {
		if (repo == "" || r.Repo == repo) && (project == "" || r.Project == project) {
			out = append(out, r)
		}
	}
	sortReports(out)
	return out, nil
}

// sortReports orders by repo and project, then chapter folders by their numbers.
func sortReports(out []ProgressReport) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Repo != b.Repo {
			return a.Repo < b.Repo
		}
		if a.Project != b.Project {
			return a.Project < b.Project
		}
		return pages.NaturalLess(a.Chapter, b.Chapter)
	})
}
