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
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitJSONWritesStaticAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Writer: &buf})
	L().Info("hello", slog.Int("n", 3))

	line := strings.TrimSpace(buf.String())
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("json decode %q: %v", line, err)
	}
	if m["app"] != "scanstation" {
		t.Fatalf("app attr = %v", m["app"])
	}
	if m["msg"] != "hello" || m["n"] != float64(3) {
		t.Fatalf("unexpected record: %v", m)
	}
}

func TestChapterContextIsAttached(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Format: "json", Writer: &buf})
	ctx := WithChapterContext(context.Background(), "/tmp/chapter 1 - start")
	WithComponent("chapter").InfoContext(ctx, "resolved")

	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["chapter"] != "/tmp/chapter 1 - start" || m["component"] != "chapter" {
		t.Fatalf("missing enrichment: %v", m)
	}
	if _, ok := ChapterFromContext(context.Background()); ok {
		t.Fatalf("empty context should carry no chapter")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Writer: &buf})
	L().Info("quiet")
	L().Warn("loud")
	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "WRN loud") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFileOutputAlsoReceivesRecords(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "scanstation.log")
	Init(Options{Writer: &buf, File: file})
	WithOperation(L(), "save").Info("stored")

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"op":"save"`) {
		t.Fatalf("file log missing op attr: %s", b)
	}
	if !strings.Contains(buf.String(), "op=save") {
		t.Fatalf("console log missing op attr: %q", buf.String())
	}
}
