/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestFromEnvAndGetenv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvSource, "yes")
	t.Setenv(EnvFile, "/tmp/x.log")
	o := FromEnv()
	if o.Level != "debug" || o.Format != "json" || !o.AddSource || o.File != "/tmp/x.log" {
		t.Fatalf("unexpected options: %+v", o)
	}

	t.Setenv(EnvLevel, "  ")
	if got := getenv(EnvLevel, "info"); got != "info" {
		t.Fatalf("blank env should fall back, got %q", got)
	}
	if parseLevel("warning") != slog.LevelWarn || parseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("parseLevel mismatch")
	}
}

func TestPrettyTextHandler_Behavior(t *testing.T) {
	var buf bytes.Buffer
	h := &prettyTextHandler{level: slog.LevelWarn, w: &buf}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be disabled at warn level")
	}
	hh := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp").WithAttrs([]slog.Attr{slog.Int("n", 42)})

	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Float64("pi", 3.14), slog.String("file", "chapter 1/01.jpg"))
	if err := hh.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ERR boom", " k=v", "grp.n=42", "grp.pi=3.14", `grp.file="chapter 1/01.jpg"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestPrettyTextHandlerAddsSource(t *testing.T) {
	var buf bytes.Buffer
	h := &prettyTextHandler{level: slog.LevelInfo, addSource: true, w: &buf}

	var pcs [1]uintptr
	runtime.Callers(1, pcs[:])
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "located", pcs[0])
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, " src=") || !strings.Contains(out, "logger_more_test.go:") {
		t.Fatalf("output %q missing source", out)
	}

	buf.Reset()
	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "nowhere", 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if strings.Contains(buf.String(), "src=") {
		t.Fatalf("record without pc should have no source: %q", buf.String())
	}
}
