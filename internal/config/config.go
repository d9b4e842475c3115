/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int                `yaml:"config_version"`
	General       GeneralConfig      `yaml:"general"`
	Repositories  RepositoriesConfig `yaml:"repositories"`
	Editors       EditorsConfig      `yaml:"editors"`
	Backend       BackendConfig      `yaml:"backend"`
	Logging       LoggingConfig      `yaml:"logging"`
}

type GeneralConfig struct {
	// StoragePath is the base folder holding projects/ and backup/. Empty means the config dir.
	StoragePath    string `yaml:"storage_path"`
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	EnableServer   bool   `yaml:"enable_server"`
}

// RepositoriesConfig lists known repository folders under projects/.
type RepositoriesConfig struct {
	List     []string `yaml:"list"`
	Selected string   `yaml:"selected"`
}

// EditorsConfig holds executable paths used by `scanstation edit`.
type EditorsConfig struct {
	Photoshop   string `yaml:"photoshop"`
	Illustrator string `yaml:"illustrator"`
	GIMP        string `yaml:"gimp"`
}

// Path returns the configured executable for an editor name.
func (e EditorsConfig) Path(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "photoshop":
		return e.Photoshop, true
	case "illustrator":
		return e.Illustrator, true
	case "gimp":
		return e.GIMP, true
	}
	return "", false
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	ListenAddr  string `yaml:"listen_addr"`
	DatabaseURL string `yaml:"database_url"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, ListenAddr: ":8080"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvStoragePath      = "SCN_STORAGE_PATH"
	EnvBackendURL       = "SCN_BACKEND_URL"
	EnvBackendTimeoutMs = "SCN_BACKEND_TIMEOUT_MS"
	EnvListenAddr       = "SCN_LISTEN_ADDR"
	EnvDatabaseURL      = "SCN_DATABASE_URL"
	EnvTelemetryOptIn   = "SCN_TELEMETRY_OPT_IN"
	EnvEnableServer     = "SCN_ENABLE_SERVER"
	EnvLogLevel         = "SCN_LOG_LEVEL"
	EnvLogFormat        = "SCN_LOG_FORMAT"
	EnvLogSource        = "SCN_LOG_SOURCE"
	EnvLogFile          = "SCN_LOG_FILE"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Scanstation")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Scanstation")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "scanstation")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "scanstation")
		}
	}
	if base == "" || base == "." {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// StoragePath returns the projects root: <base>/projects.
func StoragePath(cfg AppConfig) (string, error) {
	base := strings.TrimSpace(cfg.General.StoragePath)
	if base == "" {
		p, err := ConfigPath()
		if err != nil {
			return "", err
		}
		base = filepath.Dir(p)
	}
	return filepath.Join(base, "projects"), nil
}

// Load reads the user config file (if present), applies defaults and merges environment overrides.
// The backend token is read from the keychain and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	tok, err := LoadToken()
	if err != nil {
		return cfg, "", err
	}
	return cfg, tok, nil
}

// Save writes the user config YAML and stores the token in the keychain when non-empty.
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		return SaveToken(token)
	}
	return nil
}

// SelectRepository marks repo as selected, adding it to the list if unknown.
func (c *AppConfig) SelectRepository(repo string) {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return
	}
	found := false
	for _, r := range c.Repositories.List {
		if r == repo {
			found = true
			break
		}
	}
	if !found {
		c.Repositories.List = append(c.Repositories.List, repo)
	}
	c.Repositories.Selected = repo
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.TrimSpace(src.General.StoragePath); v != "" {
		dst.General.StoragePath = v
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.EnableServer = src.General.EnableServer
	if len(src.Repositories.List) > 0 {
		dst.Repositories.List = append([]string(nil), src.Repositories.List...)
	}
	if src.Repositories.Selected != "" {
		dst.Repositories.Selected = src.Repositories.Selected
	}
	if src.Editors.Photoshop != "" {
		dst.Editors.Photoshop = src.Editors.Photoshop
	}
	if src.Editors.Illustrator != "" {
		dst.Editors.Illustrator = src.Editors.Illustrator
	}
	if src.Editors.GIMP != "" {
		dst.Editors.GIMP = src.Editors.GIMP
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if src.Backend.ListenAddr != "" {
		dst.Backend.ListenAddr = src.Backend.ListenAddr
	}
	if src.Backend.DatabaseURL != "" {
		dst.Backend.DatabaseURL = src.Backend.DatabaseURL
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.General.StoragePath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		cfg.Backend.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Backend.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvEnableServer)); v != "" {
		cfg.General.EnableServer = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"general.storage_path":     EnvStoragePath,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.enable_server":    EnvEnableServer,
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.listen_addr":      EnvListenAddr,
	"backend.database_url":     EnvDatabaseURL,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// EffectiveTimeout returns the backend timeout as a duration string for time.ParseDuration.
func (b BackendConfig) EffectiveTimeout() string {
	if b.TimeoutMs <= 0 {
		return fmt.Sprintf("%dms", Defaults().Backend.TimeoutMs)
	}
	return fmt.Sprintf("%dms", b.TimeoutMs)
}
