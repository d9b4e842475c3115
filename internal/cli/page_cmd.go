/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scanstation/internal/domain"
)

func newPageCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "page", Short: "Translate, proofread and check single pages"}
	cmd.AddCommand(
		newPageTranslateCmd(app),
		newPageProofreadCmd(app),
		newPageCorrectCmd(app),
		newPageShowCmd(app),
	)
	return cmd
}

func newPageTranslateCmd(app *App) *cobra.Command {
	var text, textFile, drawingFile string
	cmd := &cobra.Command{
		Use:   "translate <chapter> <page>",
		Short: "Save a page translation; empty text marks the page untranslated",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if text != "" && textFile != "" {
				return errors.New("use either --text or --text-file")
			}
			if textFile != "" {
				b, err := os.ReadFile(textFile)
				if err != nil {
					return err
				}
				text = string(b)
			}
			var drawing json.RawMessage
			if drawingFile != "" {
				b, err := os.ReadFile(drawingFile)
				if err != nil {
					return err
				}
				drawing = b
			}
			s, done, err := app.openChapter(args[0])
			if err != nil {
				return err
			}
			defer done()
			e, err := s.SaveTranslation(cmd.Context(), args[1], text, drawing)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s TL=%t\n", args[1], e.Translated())
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "translation text")
	cmd.Flags().StringVar(&textFile, "text-file", "", "read the translation from a file")
	cmd.Flags().StringVar(&drawingFile, "drawing-file", "", "JSON drawing data to store with the translation")
	return cmd
}

func newPageProofreadCmd(app *App) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "proofread <chapter> <page>",
		Short: "Save proofreading notes; empty notes clear the page's open notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := app.openChapter(args[0])
			if err != nil {
				return err
			}
			defer done()
			e, err := s.SaveProofread(cmd.Context(), args[1], notes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s PR=%s\n", args[1], e.Proofread())
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "proofreading notes")
	return cmd
}

func newPageCorrectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "correct <chapter> <page>",
		Short: "Mark a typeset page correct and publish it to Final",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := app.openChapter(args[0])
			if err != nil {
				return err
			}
			defer done()
			if _, err := s.MarkCorrect(cmd.Context(), args[1]); err != nil {
				return err
			}
			app.Telemetry.PageMarkedCorrect()
			fmt.Fprintf(cmd.OutOrStdout(), "%s PR=true, copied to Final\n", args[1])
			return nil
		},
	}
}

func newPageShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <chapter> <page>",
		Short: "Show a page's status, translation and notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := app.openChapter(args[0])
			if err != nil {
				return err
			}
			defer done()
			p, ok, err := s.Page(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("page %q not found in %s", args[1], s.Name())
			}
			out := cmd.OutOrStdout()
			app.printPages(out, []domain.Page{p})
			tl, err := s.Translation(args[1])
			if err != nil {
				return err
			}
			notes, err := s.Annotations(args[1])
			if err != nil {
				return err
			}
			if tl != "" {
				fmt.Fprintf(out, "\nTranslation:\n%s\n", tl)
			}
			if notes != "" {
				fmt.Fprintf(out, "\nNotes:\n%s\n", notes)
			}
			return nil
		},
	}
}
