/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scanstation/internal/config"
	applog "scanstation/internal/log"
	"scanstation/internal/storage"
	"scanstation/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "scanstation", version.String())
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Show or change configuration"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				out := cmd.OutOrStdout()
				b, err := yaml.Marshal(app.Config)
				if err != nil {
					return err
				}
				path, _ := config.ConfigPath()
				fmt.Fprintf(out, "# %s\n%s", path, b)
				fmt.Fprintf(out, "# storage root: %s\n", app.Root)
				for _, key := range []string{"general.storage_path", "backend.base_url", "backend.database_url", "logging.level"} {
					if env, ok := config.EnvOverrideFor(key); ok {
						fmt.Fprintf(out, "# %s overridden by %s\n", key, env)
					}
				}
				tok := "unset"
				if app.Token != "" {
					tok = "set"
				}
				fmt.Fprintf(out, "# backend token: %s\n", tok)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-token <token>",
			Short: "Store the backend token in the OS keychain",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app.SaveConfig(app.Config, args[0]); err != nil {
					return err
				}
				app.Token = args[0]
				fmt.Fprintln(cmd.OutOrStdout(), "Token saved")
				return nil
			},
		},
	)
	return cmd
}

func newRepoCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "repo", Short: "List and select repositories"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List repositories under the storage root",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				repos, err := storage.ListRepositories(app.Root)
				if err != nil {
					return err
				}
				for _, r := range repos {
					sel := " "
					if r == app.Config.Repositories.Selected {
						sel = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", sel, r)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "select <repo>",
			Short: "Select (creating if needed) the working repository",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := storage.EnsureRepository(app.Root, args[0]); err != nil {
					return err
				}
				app.Config.SelectRepository(args[0])
				if err := app.saveConfig(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Selected repository", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newProjectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects of a repository"}

	var yes bool
	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a project and all its chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := app.selectedRepo()
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete %q without --yes", args[0])
			}
			if err := storage.DeleteProject(app.Root, repo, args[0]); err != nil {
				return err
			}
			app.forgetIndexedProject(cmd.Context(), repo, args[0])
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted project", args[0])
			return nil
		},
	}
	del.Flags().BoolVar(&yes, "yes", false, "confirm deletion")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List projects",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				repo, err := app.selectedRepo()
				if err != nil {
					return err
				}
				ps, err := storage.ListProjects(app.Root, repo)
				if err != nil {
					return err
				}
				for _, p := range ps {
					cover := ""
					if p.HasCover {
						cover = " [cover]"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", p.Name, cover)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a project",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				repo, err := app.selectedRepo()
				if err != nil {
					return err
				}
				p, err := storage.CreateProject(app.Root, repo, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Created", p.Path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "Rename a project",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				repo, err := app.selectedRepo()
				if err != nil {
					return err
				}
				if err := storage.RenameProject(app.Root, repo, args[0], args[1]); err != nil {
					return err
				}
				app.forgetIndexedProject(cmd.Context(), repo, args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], args[1])
				return nil
			},
		},
		del,
	)
	return cmd
}

// forgetIndexedProject drops a project that no longer exists under its name from the progress index.
// The folders are already gone, so failures are only logged.
func (a *App) forgetIndexedProject(ctx context.Context, repo, project string) {
	l := applog.WithOperation(applog.WithComponent("cli"), "forget_project")
	ix, err := storage.OpenIndex(a.Root)
	if err != nil {
		l.WarnContext(ctx, "open index failed", slog.Any("err", err))
		return
	}
	defer ix.Close()
	n, err := ix.ForgetProject(ctx, repo, project)
	if err != nil {
		l.WarnContext(ctx, "forget project failed", slog.String("project", project), slog.Any("err", err))
		return
	}
	l.DebugContext(ctx, "project removed from index", slog.String("project", project), slog.Int("chapters", n))
}
