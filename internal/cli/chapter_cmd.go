/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scanstation/internal/export"
	applog "scanstation/internal/log"
	"scanstation/internal/storage"
	"scanstation/internal/watch"
)

func newChapterCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapter",
		Short: "Work with chapter folders",
		Long: "Chapter arguments are either a folder path or, together with --repo/--project,\n" +
			"a chapter folder name or number.",
	}
	cmd.AddCommand(
		newChapterListCmd(app),
		newChapterCreateCmd(app),
		newChapterHealCmd(app),
		newChapterStatusCmd(app),
		newChapterProgressCmd(app),
		newChapterWatchCmd(app),
		newChapterReportCmd(app),
		newChapterPackCmd(app),
	)
	return cmd
}

func newChapterListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chapters with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, project, err := app.selectedProject()
			if err != nil {
				return err
			}
			chs, err := storage.ListChapters(app.Root, repo, project)
			if err != nil {
				return err
			}
			ix, err := storage.OpenIndex(app.Root)
			if err != nil {
				return err
			}
			defer ix.Close()
			ctx := cmd.Context()
			for _, c := range chs {
				// always resolved from the folders; the index only keeps the history
				sum, err := storage.SummarizeChapter(c.Path)
				if err != nil {
					return err
				}
				prev, seen, err := ix.ChapterProgress(ctx, c.Path)
				if err != nil {
					return err
				}
				if err := ix.RecordProgress(ctx, c.Path, sum); err != nil {
					return err
				}
				change := ""
				if seen && prev.Summary.Percent != sum.Percent {
					change = fmt.Sprintf(" (%+d)", sum.Percent-prev.Summary.Percent)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s %3d%%%s\n", c.Name, app.bar(sum.Percent, 10), sum.Percent, change)
			}
			return nil
		},
	}
}

func newChapterCreateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create <number> [name...]",
		Short: "Create a chapter folder with its standard subfolders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, project, err := app.selectedProject()
			if err != nil {
				return err
			}
			c, err := storage.CreateChapter(app.Root, repo, project, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Created", c.Path)
			return nil
		},
	}
}

func newChapterHealCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "heal <chapter>",
		Short: "Recreate missing chapter subfolders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.chapterPath(args[0])
			if err != nil {
				return err
			}
			if err := storage.HealChapter(p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Healed", p)
			return nil
		},
	}
}

func newChapterStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <chapter>",
		Short: "Show the status of every logical page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := app.openChapter(args[0])
			if err != nil {
				return err
			}
			defer done()
			ps, err := s.Pages(cmd.Context())
			if err != nil {
				return err
			}
			app.printPages(cmd.OutOrStdout(), ps)
			return nil
		},
	}
}

func newChapterProgressCmd(app *App) *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "progress <chapter>",
		Short: "Show chapter completion per stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			app.Telemetry.ChapterProgress(sum.Percent, sum.Total)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, s.Name())
			app.printSummary(out, sum)
			if history <= 0 {
				return nil
			}
			ix, err := storage.OpenIndex(app.Root)
			if err != nil {
				return err
			}
			defer ix.Close()
			pts, err := ix.ProgressHistory(ctx, s.Path(), history)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "History:")
			for _, pt := range pts {
				fmt.Fprintf(out, "  %s %3d%%\n", pt.At.Local().Format("2006-01-02 15:04"), pt.Percent)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&history, "history", 0, "also print the last N recorded percentage changes")
	return cmd
}

func newChapterWatchCmd(app *App) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <chapter>",
		Short: "Print progress whenever chapter folders change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := app.openChapter(args[0])
			if err != nil {
				return err
			}
			defer done()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			l := applog.WithComponent("cli")
			report := func() {
				sum, err := s.Progress(ctx)
				if err != nil {
					l.Warn("progress failed", slog.Any("err", err))
					return
				}
				fmt.Fprintf(out, "%s %s %3d%% (%d pages)\n", time.Now().Format("15:04:05"), app.bar(sum.Percent, 20), sum.Percent, sum.Total)
			}
			report()
			return watch.Chapter(ctx, s.Path(), watch.Options{Debounce: debounce}, func(changes []watch.Change) {
				l.Debug("chapter changed", slog.Int("events", len(changes)))
				report()
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before reacting to changes")
	return cmd
}

func newChapterReportCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report <chapter>",
		Short: "Write a PDF status report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := app.openChapter(args[0])
			if err != nil {
				return err
			}
			defer done()
			ps, err := s.Pages(cmd.Context())
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(s.Path(), "status-report.pdf")
			}
			project := filepath.Dir(s.Path())
			meta := export.ReportMeta{
				Repo:      filepath.Base(filepath.Dir(project)),
				Project:   filepath.Base(project),
				Chapter:   s.Name(),
				Generated: time.Now(),
			}
			if err := export.ChapterReportPDF(out, meta, ps); err != nil {
				return err
			}
			app.Telemetry.Exported("pdf", len(ps))
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default <chapter>/status-report.pdf)")
	return cmd
}

func newChapterPackCmd(app *App) *cobra.Command {
	var (
		out string
		opt export.CBZOptions
		ltr bool
	)
	cmd := &cobra.Command{
		Use:   "pack <chapter>",
		Short: "Pack the Final folder into a CBZ archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.chapterPath(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(p), filepath.Base(p)+".cbz")
			}
			if ltr {
				opt.ReadingDirection = export.LeftToRight
			}
			n, err := export.ChapterCBZ(p, out, opt)
			if err != nil {
				return err
			}
			app.Telemetry.Exported("cbz", n)
			fmt.Fprintf(cmd.OutOrStdout(), "Packed %d pages into %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default <project>/<chapter>.cbz)")
	cmd.Flags().StringVar(&opt.Series, "series", "", "series name (default: project folder)")
	cmd.Flags().StringVar(&opt.Title, "title", "", "chapter title (default: from folder name)")
	cmd.Flags().StringVar(&opt.ScanInformation, "scan-info", "", "scanlation group credit")
	cmd.Flags().BoolVar(&ltr, "ltr", false, "left-to-right reading direction")
	return cmd
}
