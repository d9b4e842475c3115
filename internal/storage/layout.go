/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	applog "scanstation/internal/log"

	"github.com/maruel/natural"
)

// Chapter folder layout.
const (
	RawsDir        = "Raws"
	CleanedDir     = "Raws Cleaned"
	EditFilesDir   = "Edit Files"
	TypesetDir     = "Typesetted"
	FinalDir       = "Final"
	DataDir        = "data"
	TLDataDir      = "TL Data"
	PRDataDir      = "PR Data"
	StatusFileName = "page_status.json"
	CoverFileName  = "cover.jpg"

	// BackupDirName is the sibling of the projects root receiving BackupProjects copies.
	BackupDirName = "backup"
	// WorkDirName holds index, crash reports and other non-project data under the storage root.
	WorkDirName = ".scanstation"

	chapterPrefix = "chapter "
)

var chapterSubDirs = []string{RawsDir, CleanedDir, EditFilesDir, TypesetDir, FinalDir, DataDir}

var (
	ErrExists          = errors.New("already exists")
	ErrNotChapter      = errors.New("not a chapter folder")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidPageFile = errors.New("invalid page file name")
)

var (
	unsafeNameChars = regexp.MustCompile(`(?i)[^a-z0-9_ -]`)
	chapterNumberRe = regexp.MustCompile(`^\d+(\.\d+)?$`)
	chapterNumberIn = regexp.MustCompile(`(?i)^chapter\s+(\d+(?:\.\d+)?)`)
	nonDigits       = regexp.MustCompile(`\D`)
)

// Project is one folder below a repository.
type Project struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	HasCover bool   `json:"hasCover"`
}

// Chapter is one "chapter ..." folder below a project.
type Chapter struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Number returns the chapter number from a folder name like "chapter 12.5 - title", or "".
func (c Chapter) Number() string { return ChapterNumber(c.Name) }

// ChapterNumber extracts the number following the "chapter " prefix.
func ChapterNumber(folder string) string {
	m := chapterNumberIn.FindStringSubmatch(strings.TrimSpace(folder))
	if m == nil {
		return ""
	}
	return m[1]
}

// ListRepositories returns the repository folders under root. Hidden folders are skipped.
func ListRepositories(root string) ([]string, error) {
	return listDirs(root)
}

// EnsureRepository creates the repository folder under root if it is missing.
func EnsureRepository(root, repo string) error {
	if err := validName(repo); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(root, repo), 0o755); err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	return nil
}

// ListProjects returns the projects of a repository, sorted by name.
func ListProjects(root, repo string) ([]Project, error) {
	base := filepath.Join(root, repo)
	names, err := listDirs(base)
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(names))
	for _, n := range names {
		p := filepath.Join(base, n)
		out = append(out, Project{Name: n, Path: p, HasCover: exists(filepath.Join(p, CoverFileName))})
	}
	return out, nil
}

// CreateProject creates an empty project folder. It fails with ErrExists if the folder is present.
func CreateProject(root, repo, name string) (Project, error) {
	if err := validName(repo); err != nil {
		return Project{}, err
	}
	if err := validName(name); err != nil {
		return Project{}, err
	}
	p := filepath.Join(root, repo, name)
	if exists(p) {
		return Project{}, fmt.Errorf("project %q: %w", name, ErrExists)
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	applog.WithComponent("storage").Info("project created", slog.String("path", p))
	return Project{Name: name, Path: p}, nil
}

// RenameProject renames a project folder within its repository.
func RenameProject(root, repo, oldName, newName string) error {
	if err := validName(newName); err != nil {
		return err
	}
	from := filepath.Join(root, repo, oldName)
	to := filepath.Join(root, repo, newName)
	if !exists(from) {
		return fmt.Errorf("project %q: %w", oldName, os.ErrNotExist)
	}
	if exists(to) {
		return fmt.Errorf("project %q: %w", newName, ErrExists)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename project: %w", err)
	}
	return nil
}

// DeleteProject removes a project folder and everything below it.
func DeleteProject(root, repo, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	p := filepath.Join(root, repo, name)
	if !exists(p) {
		return fmt.Errorf("project %q: %w", name, os.ErrNotExist)
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	applog.WithComponent("storage").Info("project deleted", slog.String("path", p))
	return nil
}

// ListChapters returns the chapter folders of a project ordered by the number formed
// from all digits in the folder name; ties fall back to natural name order.
func ListChapters(root, repo, project string) ([]Chapter, error) {
	base := filepath.Join(root, repo, project)
	names, err := listDirs(base)
	if err != nil {
		return nil, err
	}
	out := make([]Chapter, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(strings.ToLower(n), chapterPrefix) {
			out = append(out, Chapter{Name: n, Path: filepath.Join(base, n)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := digitKey(out[i].Name), digitKey(out[j].Name)
		if a != b {
			return a < b
		}
		return natural.Less(out[i].Name, out[j].Name)
	})
	return out, nil
}

func digitKey(name string) int64 {
	n, err := strconv.ParseInt(nonDigits.ReplaceAllString(name, ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ChapterFolderName builds "chapter <number> - <name>" with unsafe characters dropped from name.
func ChapterFolderName(number, name string) string {
	clean := strings.TrimSpace(unsafeNameChars.ReplaceAllString(name, ""))
	if clean == "" {
		return chapterPrefix + number
	}
	return chapterPrefix + number + " - " + clean
}

// CreateChapter creates a chapter folder with its standard subfolders.
func CreateChapter(root, repo, project, number, name string) (Chapter, error) {
	number = strings.TrimSpace(number)
	if !chapterNumberRe.MatchString(number) {
		return Chapter{}, fmt.Errorf("chapter number %q: %w", number, ErrInvalidName)
	}
	base := filepath.Join(root, repo, project)
	if !exists(base) {
		return Chapter{}, fmt.Errorf("project %q: %w", project, os.ErrNotExist)
	}
	folder := ChapterFolderName(number, name)
	p := filepath.Join(base, folder)
	if exists(p) {
		return Chapter{}, fmt.Errorf("chapter %q: %w", folder, ErrExists)
	}
	for _, d := range chapterSubDirs {
		if err := os.MkdirAll(filepath.Join(p, d), 0o755); err != nil {
			return Chapter{}, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	applog.WithComponent("storage").Info("chapter created", slog.String("path", p))
	return Chapter{Name: folder, Path: p}, nil
}

// HealChapter recreates any missing standard subfolders, including the data artifact folders.
func HealChapter(chapterPath string) error {
	if err := RequireChapter(chapterPath); err != nil {
		return err
	}
	dirs := append([]string{}, chapterSubDirs...)
	dirs = append(dirs, filepath.Join(DataDir, TLDataDir), filepath.Join(DataDir, PRDataDir))
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(chapterPath, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// RequireChapter returns ErrNotChapter unless path is an existing directory.
func RequireChapter(chapterPath string) error {
	st, err := os.Stat(chapterPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", chapterPath, ErrNotChapter)
		}
		return fmt.Errorf("stat chapter: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%s: %w", chapterPath, ErrNotChapter)
	}
	return nil
}

// BackupProjects copies the projects tree rooted at root into the sibling backup folder,
// overwriting existing files. It returns the backup path, or "" when root does not exist.
// Workspace data (index, crash reports) is not copied.
func BackupProjects(root string) (string, error) {
	if !exists(root) {
		return "", nil
	}
	dst := filepath.Join(filepath.Dir(filepath.Clean(root)), BackupDirName)
	n := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == WorkDirName {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		n++
		return copyFile(p, filepath.Join(dst, rel))
	})
	if err != nil {
		return "", fmt.Errorf("backup projects: %w", err)
	}
	applog.WithComponent("storage").Info("projects backed up", slog.String("dst", dst), slog.Int("files", n))
	return dst, nil
}

func validName(name string) error {
	n := strings.TrimSpace(name)
	if n == "" || n == "." || n == ".." || strings.ContainsAny(n, `/\`) || strings.HasPrefix(n, ".") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// listDirs returns non-hidden subdirectory names in natural order. A missing dir yields nil.
func listDirs(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return natural.Less(out[i], out[j]) })
	return out, nil
}
