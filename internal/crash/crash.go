/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a logged error and a crash report file.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "scanstation/internal/log"
	"scanstation/internal/storage"
	"scanstation/internal/telemetry"
	"scanstation/internal/version"
)

// DirName is the folder under <root>/.scanstation that holds crash reports.
const DirName = "crash"

// exitFn is replaced in tests.
var exitFn = os.Exit

// Recover captures a panic, logs it with the stack, writes a crash report
// under the storage root (or the temp dir when root is empty), checkpoints the
// progress index and exits with code 2.
//
// Usage: defer crash.Recover(root)
func Recover(root string) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(root, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if root != "" {
		if err := storage.CheckpointIndex(root); err != nil {
			l.Warn("index checkpoint failed", slog.Any("err", err))
		}
	}

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// ReportDir returns where crash reports for root are written.
func ReportDir(root string) string {
	if root == "" {
		return os.TempDir()
	}
	return filepath.Join(root, storage.WorkDirName, DirName)
}

func writeReport(root string, panicVal any, stack []byte) (string, error) {
	dir := ReportDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		dir = os.TempDir()
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405.000")))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Scanstation Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if root != "" {
		fmt.Fprintf(&buf, "StorageRoot: %s\n", root)
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	telemetry.Default().UploadCrash(buf.Bytes())
	return path, nil
}
