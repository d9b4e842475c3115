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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	applog "scanstation/internal/log"
	"scanstation/internal/version"
)

// DevSecret is used when no auth secret is configured. It is only fit for local runs.
const DevSecret = "dev-secret-change-me"

// EnvAuthSecret names the env var holding the HMAC token secret.
const EnvAuthSecret = "SCN_AUTH_SECRET"

// ServerConfig configures Start.
type ServerConfig struct {
	Addr        string // e.g. ":8080"
	DatabaseURL string // empty selects the in-memory store
	Secret      string
}

const maxBody = 1 << 20

// NewHandler returns the HTTP API over store.
func NewHandler(store ProgressStore, secret string) http.Handler {
	if secret == "" {
		secret = DevSecret
	}
	l := applog.WithComponent("backend")
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("scanstation " + version.String()))
	})

	// POST /api/auth/token {subject, ttl_seconds} -> {token, expires_at}
	mux.HandleFunc("/api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Subject    string `json:"subject"`
			TTLSeconds int64  `json:"ttl_seconds"`
		}
		b, _ := io.ReadAll(io.LimitReader(r.Body, maxBody))
		_ = r.Body.Close()
		if len(strings.TrimSpace(string(b))) > 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
				return
			}
		}
		if req.Subject == "" {
			req.Subject = "anonymous"
		}
		if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
			req.TTLSeconds = 3600
		}
		exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		tok, err := signToken(secret, req.Subject, exp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":      tok,
			"expires_at": exp.UTC().Format(time.RFC3339),
		})
	})

	// POST publishes one chapter report; GET lists reports filtered by ?repo=&project=.
	mux.HandleFunc("/api/progress", withAuth(secret, func(w http.ResponseWriter, r *http.Request, sub string) {
		switch r.Method {
		case http.MethodPost:
			var rep ProgressReport
			dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&rep); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("decode report: %w", err))
				return
			}
			if err := rep.Validate(); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			rep.ReportedBy = sub
			rep.ReportedAt = time.Now().UTC()
			saved, err := store.SaveProgress(r.Context(), rep)
			if err != nil {
				l.Error("save progress failed", slog.Any("err", err))
				writeError(w, http.StatusInternalServerError, errors.New("save failed"))
				return
			}
			l.Info("progress published",
				slog.String("repo", saved.Repo), slog.String("project", saved.Project),
				slog.String("chapter", saved.Chapter), slog.Int("percent", saved.Summary.Percent),
				slog.String("by", sub))
			writeJSON(w, http.StatusOK, saved)
		case http.MethodGet:
			q := r.URL.Query()
			list, err := store.ListProgress(r.Context(), q.Get("repo"), q.Get("project"))
			if err != nil {
				l.Error("list progress failed", slog.Any("err", err))
				writeError(w, http.StatusInternalServerError, errors.New("list failed"))
				return
			}
			if list == nil {
				list = []ProgressReport{}
			}
			writeJSON(w, http.StatusOK, list)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	return mux
}

// Start serves the API until ctx is done, then shuts down gracefully.
func Start(ctx context.Context, cfg ServerConfig) error {
	l := applog.WithComponent("backend")
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Secret == "" {
		l.Warn(EnvAuthSecret + " not set; using insecure dev secret")
	}

	var store ProgressStore
	if cfg.DatabaseURL == "" {
		l.Warn("no database configured; progress is kept in memory")
		store = NewMemoryStore()
	} else {
		pg, err := OpenPG(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := pg.Close(); err != nil {
				l.Warn("db close", slog.Any("err", err))
			}
		}()
		store = pg
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(store, cfg.Secret),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		l.Info("server listening", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
