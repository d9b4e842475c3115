/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scanstation/internal/backend"
	"scanstation/internal/config"
	"scanstation/internal/storage"
)

func newIndexCmd(app *App) *cobra.Command {
	var check bool
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the progress index from the chapter folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if check {
				rebuilt, err := storage.DetectAndRebuildIndex(cmd.Context(), app.Root)
				if err != nil {
					return err
				}
				if rebuilt {
					fmt.Fprintln(out, "Index was damaged and has been rebuilt")
				} else {
					fmt.Fprintln(out, "Index is healthy")
				}
				return nil
			}
			n, err := storage.RebuildIndex(cmd.Context(), app.Root)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Indexed %d chapters\n", n)
			return nil
		},
	}
	rebuild.Flags().BoolVar(&check, "check", false, "only rebuild when the index is damaged")

	cmd := &cobra.Command{Use: "index", Short: "Maintain the workspace progress index"}
	cmd.AddCommand(rebuild)
	return cmd
}

func newPublishCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <chapter>",
		Short: "Publish a chapter's progress to the team backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Token == "" {
				return errors.New("no backend token; run `scanstation config set-token`")
			}
			s, done, err := app.openChapter(args[0])
			if err != nil {
				return err
			}
			defer done()
			ctx := cmd.Context()
			sum, err := s.Progress(ctx)
			if err != nil {
				return err
			}
			project := filepath.Dir(s.Path())
			rep := backend.ProgressReport{
				Repo:    filepath.Base(filepath.Dir(project)),
				Project: filepath.Base(project),
				Chapter: s.Name(),
				Summary: sum,
			}
			timeout, _ := time.ParseDuration(app.Config.Backend.EffectiveTimeout())
			c := backend.NewClient(app.Config.Backend.BaseURL, app.Token, timeout)
			saved, err := c.PublishProgress(ctx, rep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s/%s/%s at %d%% (%s)\n", saved.Repo, saved.Project, saved.Chapter, saved.Summary.Percent, saved.ID)
			return nil
		},
	}
}

func newServeCmd(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the team progress server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.Config.General.EnableServer {
				return fmt.Errorf("server disabled; set general.enable_server or %s", config.EnvEnableServer)
			}
			if addr == "" {
				addr = app.Config.Backend.ListenAddr
			}
			return app.Serve(cmd.Context(), backend.ServerConfig{
				Addr:        addr,
				DatabaseURL: app.Config.Backend.DatabaseURL,
				Secret:      os.Getenv(backend.EnvAuthSecret),
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default backend.listen_addr)")
	return cmd
}

func newBackupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy all projects to the backup folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dst, err := storage.BackupProjects(app.Root)
			if err != nil {
				return err
			}
			if dst == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to back up")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Backed up to", dst)
			return nil
		},
	}
}

func newEditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <photoshop|illustrator|gimp> <file>",
		Short: "Open a file in a configured image editor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, known := app.Config.Editors.Path(args[0])
			if !known {
				return fmt.Errorf("unknown editor %q", args[0])
			}
			if strings.TrimSpace(exe) == "" {
				return fmt.Errorf("no path configured for %s; set editors.%s in the config file", args[0], strings.ToLower(args[0]))
			}
			if _, err := os.Stat(exe); err != nil {
				return fmt.Errorf("editor executable: %w", err)
			}
			file, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			if _, err := os.Stat(file); err != nil {
				return fmt.Errorf("file: %w", err)
			}
			if err := app.StartEditor(exe, file); err != nil {
				return fmt.Errorf("start %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s in %s\n", filepath.Base(file), args[0])
			return nil
		},
	}
}
