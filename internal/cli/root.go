/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli wires the scanstation command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scanstation/internal/backend"
	"scanstation/internal/chapter"
	"scanstation/internal/config"
	"scanstation/internal/storage"
	"scanstation/internal/telemetry"
)

// App holds the loaded configuration and the collaborators commands use.
// Function fields default to the real implementations and are replaced in tests.
type App struct {
	Config    config.AppConfig
	Token     string
	Root      string // storage root, <base>/projects
	Telemetry *telemetry.Client
	Glyphs    bool // unicode status glyphs when stdout is a terminal

	SaveConfig  func(cfg config.AppConfig, token string) error
	StartEditor func(exe, file string) error
	Serve       func(ctx context.Context, cfg backend.ServerConfig) error

	repo    string
	project string
}

// NewApp builds an App from loaded configuration.
func NewApp(cfg config.AppConfig, token, root string) *App {
	return &App{
		Config:    cfg,
		Token:     token,
		Root:      root,
		Telemetry: telemetry.Default(),
		SaveConfig: func(c config.AppConfig, tok string) error {
			return config.Save(c, tok)
		},
		StartEditor: func(exe, file string) error {
			return exec.Command(exe, file).Start()
		},
		Serve: backend.Start,
	}
}

// NewRootCmd creates the top-level "scanstation" command.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "scanstation",
		Short:         "Scanlation page status and chapter progress",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&app.repo, "repo", "", "repository (default: selected repository)")
	root.PersistentFlags().StringVar(&app.project, "project", "", "project within the repository")

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(app),
		newRepoCmd(app),
		newProjectCmd(app),
		newChapterCmd(app),
		newPageCmd(app),
		newIndexCmd(app),
		newPublishCmd(app),
		newServeCmd(app),
		newBackupCmd(app),
		newEditCmd(app),
	)
	return root
}

// Execute runs the command tree and prints errors as "Error: ...".
func Execute(ctx context.Context, app *App, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(app)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *App) selectedRepo() (string, error) {
	repo := a.repo
	if repo == "" {
		repo = a.Config.Repositories.Selected
	}
	if repo == "" {
		return "", errors.New("no repository selected; use --repo or `scanstation repo select`")
	}
	return repo, nil
}

func (a *App) selectedProject() (repo, project string, err error) {
	repo, err = a.selectedRepo()
	if err != nil {
		return "", "", err
	}
	if a.project == "" {
		return "", "", errors.New("--project is required")
	}
	return repo, a.project, nil
}

// chapterPath resolves a chapter argument. Existing directories are used as is;
// otherwise the argument is matched against the chapter folders of --repo/--project,
// by folder name or by chapter number.
func (a *App) chapterPath(arg string) (string, error) {
	if st, err := os.Stat(arg); err == nil && st.IsDir() {
		return filepath.Abs(arg)
	}
	repo, project, err := a.selectedProject()
	if err != nil {
		return "", fmt.Errorf("%s: %w", arg, storage.ErrNotChapter)
	}
	chs, err := storage.ListChapters(a.Root, repo, project)
	if err != nil {
		return "", err
	}
	want := strings.TrimSpace(arg)
	for _, c := range chs {
		if strings.EqualFold(c.Name, want) || c.Number() == want {
			return c.Path, nil
		}
	}
	return "", fmt.Errorf("%s: %w", arg, storage.ErrNotChapter)
}

// openChapter opens a chapter session that records progress into the workspace index.
// The returned close func releases the index.
func (a *App) openChapter(arg string) (*chapter.Session, func(), error) {
	p, err := a.chapterPath(arg)
	if err != nil {
		return nil, nil, err
	}
	var opts []chapter.Option
	closeFn := func() {}
	if ix, err := storage.OpenIndex(a.Root); err == nil {
		opts = append(opts, chapter.WithRecorder(ix))
		closeFn = func() { _ = ix.Close() }
	}
	s, err := chapter.Open(p, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return s, closeFn, nil
}

func (a *App) saveConfig() error {
	return a.SaveConfig(a.Config, "")
}
