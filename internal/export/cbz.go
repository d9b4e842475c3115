/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"scanstation/internal/pages"
	"scanstation/internal/storage"
)

// ErrNoFinalPages is returned when Final holds no page images.
var ErrNoFinalPages = errors.New("no final pages to pack")

// Reading directions for ComicInfo.xml.
const (
	RightToLeft = "RightToLeft"
	LeftToRight = "LeftToRight"
)

// CBZOptions overrides the ComicInfo metadata derived from the folder names.
type CBZOptions struct {
	Series           string // default: project folder name
	Title            string // default: chapter name after "chapter N - "
	Number           string // default: number parsed from the chapter folder
	ScanInformation  string
	ReadingDirection string // "rtl"/"ltr" or the ComicInfo values; default RightToLeft
}

type comicInfo struct {
	XMLName          xml.Name `xml:"ComicInfo"`
	XSI              string   `xml:"xmlns:xsi,attr"`
	Series           string   `xml:"Series,omitempty"`
	Title            string   `xml:"Title,omitempty"`
	Number           string   `xml:"Number,omitempty"`
	PageCount        int      `xml:"PageCount"`
	ScanInformation  string   `xml:"ScanInformation,omitempty"`
	Manga            string   `xml:"Manga,omitempty"`
	ReadingDirection string   `xml:"ReadingDirection"`
}

// ChapterCBZ packs the images in <chapter>/Final, in natural order, as 001.ext, 002.ext, ...
// together with a ComicInfo.xml. It returns the number of pages written.
func ChapterCBZ(chapterPath, outPath string, opt CBZOptions) (int, error) {
	finalDir := filepath.Join(chapterPath, storage.FinalDir)
	ents, err := os.ReadDir(finalDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read final: %w", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") && storage.IsImage(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return 0, ErrNoFinalPages
	}
	pages.SortNatural(files)

	if !strings.HasSuffix(strings.ToLower(outPath), ".cbz") {
		outPath += ".cbz"
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create cbz: %w", err)
	}
	if err := writeCBZ(f, finalDir, files, comicInfoFor(chapterPath, len(files), opt)); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close cbz: %w", err)
	}
	return len(files), nil
}

func writeCBZ(w io.Writer, dir string, files []string, info comicInfo) error {
	zw := zip.NewWriter(w)
	pad := len(fmt.Sprint(len(files)))
	if pad < 3 {
		pad = 3
	}
	for i, name := range files {
		entry := fmt.Sprintf("%0*d%s", pad, i+1, strings.ToLower(filepath.Ext(name)))
		// images are already compressed
		hw, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Store})
		if err != nil {
			return fmt.Errorf("zip add %s: %w", entry, err)
		}
		src, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		_, err = io.Copy(hw, src)
		_ = src.Close()
		if err != nil {
			return fmt.Errorf("copy %s: %w", name, err)
		}
	}
	manifest, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	mw, err := zw.Create("ComicInfo.xml")
	if err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if _, err := io.WriteString(mw, xml.Header); err != nil {
		return err
	}
	if _, err := mw.Write(append(manifest, '\n')); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func comicInfoFor(chapterPath string, pageCount int, opt CBZOptions) comicInfo {
	folder := filepath.Base(chapterPath)
	info := comicInfo{
		XSI:              "http://www.w3.org/2001/XMLSchema-instance",
		Series:           opt.Series,
		Title:            opt.Title,
		Number:           opt.Number,
		PageCount:        pageCount,
		ScanInformation:  opt.ScanInformation,
		ReadingDirection: readingDirection(opt.ReadingDirection),
	}
	if info.Series == "" {
		info.Series = filepath.Base(filepath.Dir(chapterPath))
	}
	if info.Number == "" {
		info.Number = storage.ChapterNumber(folder)
	}
	if info.Title == "" {
		if _, after, ok := strings.Cut(folder, " - "); ok && strings.TrimSpace(after) != "" {
			info.Title = strings.TrimSpace(after)
		} else {
			info.Title = folder
		}
	}
	if info.ReadingDirection == RightToLeft {
		info.Manga = "YesAndRightToLeft"
	}
	return info
}

func readingDirection(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ltr", "left-to-right", "lefttoright":
		return LeftToRight
	default:
		return RightToLeft
	}
}
