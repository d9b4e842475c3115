/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scanstation/internal/domain"
	applog "scanstation/internal/log"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// statusBackupSuffix names the copy of the last good status file kept next to it.
const statusBackupSuffix = ".bak"

// statusCorruptSuffix prefixes the timestamp of a status file that failed validation and was set aside.
const statusCorruptSuffix = ".corrupt-"

//go:embed schema/page_status.schema.json
var statusSchemaJSON []byte

var (
	statusSchemaOnce sync.Once
	statusSchema     *gojsonschema.Schema
	statusSchemaErr  error
)

// StatusPath returns <chapter>/data/page_status.json.
func StatusPath(chapterPath string) string {
	return filepath.Join(chapterPath, DataDir, StatusFileName)
}

// LoadStatusMap reads the chapter's status map. A missing file yields an empty map.
// A malformed file falls back to the rolling backup, and to an empty map if that is unusable too;
// both cases are logged as warnings rather than returned.
func LoadStatusMap(chapterPath string) (domain.StatusMap, error) {
	path := StatusPath(chapterPath)
	l := applog.WithOperation(applog.WithComponent("storage"), "status_load").With(slog.String("path", path))

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.StatusMap{}, nil
		}
		return nil, fmt.Errorf("read status: %w", err)
	}
	m, derr := decodeStatus(b)
	if derr == nil {
		return m, nil
	}
	l.Warn("status file malformed, trying backup", slog.Any("err", derr))

	bb, err := os.ReadFile(path + statusBackupSuffix)
	if err == nil {
		m, berr := decodeStatus(bb)
		if berr == nil {
			l.Warn("status restored from backup")
			return m, nil
		}
		l.Warn("status backup malformed", slog.Any("err", berr))
	}
	l.Warn("status reset to empty")
	return domain.StatusMap{}, nil
}

// SaveStatusMap writes the status map as two-space indented JSON. The previous file,
// when it is still valid, is kept as page_status.json.bak; an invalid one is renamed
// to page_status.json.corrupt-<timestamp>.
func SaveStatusMap(chapterPath string, m domain.StatusMap) error {
	if m == nil {
		m = domain.StatusMap{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	path := StatusPath(chapterPath)
	if cur, err := os.ReadFile(path); err == nil {
		if _, derr := decodeStatus(cur); derr == nil {
			if err := writeAtomic(path+statusBackupSuffix, cur); err != nil {
				return fmt.Errorf("backup status: %w", err)
			}
		} else {
			// keep the unreadable file for manual recovery instead of overwriting it
			keep := path + statusCorruptSuffix + time.Now().Format("20060102-150405.000")
			if err := os.Rename(path, keep); err != nil {
				return fmt.Errorf("set aside corrupt status: %w", err)
			}
			applog.WithOperation(applog.WithComponent("storage"), "status_save").Warn("corrupt status file set aside",
				slog.String("path", keep), slog.Any("err", derr))
		}
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}

// ValidateStatusJSON checks raw bytes against the embedded status schema.
func ValidateStatusJSON(b []byte) error {
	statusSchemaOnce.Do(func() {
		statusSchema, statusSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(statusSchemaJSON))
	})
	if statusSchemaErr != nil {
		return fmt.Errorf("load status schema: %w", statusSchemaErr)
	}
	res, err := statusSchema.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return fmt.Errorf("parse status: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("status does not match schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func decodeStatus(b []byte) (domain.StatusMap, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errors.New("empty status file")
	}
	if err := ValidateStatusJSON(b); err != nil {
		return nil, err
	}
	var m domain.StatusMap
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if m == nil {
		m = domain.StatusMap{}
	}
	return m, nil
}
